// Package smf decodes Standard MIDI Files into a single time-ordered sequence of
// playable events stamped in absolute nanoseconds.
//
// Tracks are decoded independently on a worker pool, merged by tick with a
// stable sort, and converted to wall-clock time through a tempo map built from
// every tempo event in the file. Tempo events themselves do not appear in the
// output.
package smf

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/zurustar/smfdecode/pkg/logger"
)

// Event is one playable event.
// SysEx events have Status 0xF0, zero data bytes and the raw payload in SysEx
// (including the trailing 0xF7 when the file has one). SysEx is nil for every
// other event.
type Event struct {
	Nanos  uint64 // Absolute time since the start of the file
	Status uint8
	Data1  uint8
	Data2  uint8
	Track  uint16
	SysEx  []byte
}

// IsSysEx reports whether e carries a system-exclusive payload.
func (e Event) IsSysEx() bool {
	return e.SysEx != nil
}

// Time returns the event's absolute time as a time.Duration.
func (e Event) Time() time.Duration {
	return time.Duration(e.Nanos)
}

// Parser owns the result of the last successful parse.
//
// Parse calls on one instance should not overlap. Read accessors are safe from
// any number of goroutines; they always observe either the previous complete
// result or the new one.
type Parser struct {
	log     *slog.Logger
	workers int

	mu       sync.RWMutex
	parsed   bool
	header   Header
	events   []Event
	timeline []TempoPoint
	names    []string
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.log = l
		}
	}
}

// WithWorkers bounds the number of goroutines used for track decoding and time
// conversion. Values below 1 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewParser creates an unparsed Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		log:     logger.GetLogger(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// decoded is the complete output of one parse, built before anything in the
// Parser is touched.
type decoded struct {
	header   Header
	events   []Event
	timeline []TempoPoint
	names    []string
}

// ParseFile opens and parses the file at path.
func (p *Parser) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return newIOError("failed to open MIDI file", err)
	}
	defer f.Close()

	return p.Parse(bufio.NewReader(f))
}

// Parse decodes an SMF from r. On success the previous result is replaced
// wholesale; on failure it is left untouched.
func (p *Parser) Parse(r io.Reader) error {
	res, err := p.decode(r)
	if err != nil {
		p.log.Debug("MIDI parse failed", "error", err)
		return err
	}

	p.mu.Lock()
	p.header = res.header
	p.events = res.events
	p.timeline = res.timeline
	p.names = res.names
	p.parsed = true
	p.mu.Unlock()

	p.log.Info("MIDI file parsed",
		"format", res.header.Format,
		"tracks", res.header.Tracks,
		"ppqn", res.header.PPQN,
		"events", len(res.events),
		"tempo_points", len(res.timeline))
	return nil
}

func (p *Parser) decode(r io.Reader) (*decoded, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	tracks, err := readTracks(r, header.Tracks)
	if err != nil {
		return nil, err
	}

	p.log.Debug("Decoding tracks", "tracks", header.Tracks, "workers", p.workers)
	raw, names, err := p.decodeTracks(tracks)
	if err != nil {
		return nil, err
	}
	p.log.Debug("All tracks decoded", "events", len(raw))

	p.mergeByTick(raw)

	tl := buildTimeline(raw, header.PPQN)
	p.log.Debug("Tempo map built", "points", len(tl.points))

	events := p.convertEvents(raw, tl)
	return &decoded{header: header, events: events, timeline: tl.points, names: names}, nil
}

// IsParsed reports whether a parse has completed successfully.
func (p *Parser) IsParsed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.parsed
}

// Header returns the header of the last successful parse. The second result is
// false until a parse has succeeded.
func (p *Parser) Header() (Header, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.parsed {
		return Header{}, false
	}
	return p.header, true
}

// Events returns a copy of the decoded event sequence, ordered by time.
func (p *Parser) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Event, len(p.events))
	for i, e := range p.events {
		out[i] = cloneEvent(e)
	}
	return out
}

// EventCount returns the number of decoded events.
func (p *Parser) EventCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.events)
}

// EventAt returns the event at index i. Callers must bound i by EventCount;
// an out-of-range index panics.
func (p *Parser) EventAt(i int) Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneEvent(p.events[i])
}

// Timeline returns a copy of the tempo map of the last successful parse.
func (p *Parser) Timeline() []TempoPoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]TempoPoint, len(p.timeline))
	copy(out, p.timeline)
	return out
}

// TrackNames returns the name of every track, taken from its first track name
// meta event. Tracks without one have an empty name.
func (p *Parser) TrackNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.names)
}

// Duration returns the time of the last event.
func (p *Parser) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.events) == 0 {
		return 0
	}
	return p.events[len(p.events)-1].Time()
}

// TrackEventIndices returns, for every track index in [0, tracks), the
// positions in the event sequence that belong to that track, in order.
// It is recomputed on every call.
func (p *Parser) TrackEventIndices() [][]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	groups := make([][]int, p.header.Tracks)
	if !p.parsed {
		return groups
	}
	for i, e := range p.events {
		if int(e.Track) < len(groups) {
			groups[e.Track] = append(groups[e.Track], i)
		}
	}
	return groups
}

func cloneEvent(e Event) Event {
	if e.SysEx != nil {
		e.SysEx = bytes.Clone(e.SysEx)
	}
	return e
}
