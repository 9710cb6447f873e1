// Package report renders the result of a parse for people (text) and for
// tools (JSON).
package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zurustar/smfdecode/pkg/smf"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Source is the read side of a parser.
type Source interface {
	Header() (smf.Header, bool)
	Events() []smf.Event
	TrackEventIndices() [][]int
	TrackNames() []string
	Timeline() []smf.TempoPoint
	Duration() time.Duration
}

// Options controls what is rendered.
type Options struct {
	Title  string // Shown in the text header, usually the file path
	Format string // FormatText or FormatJSON; empty means text
	Limit  int    // Maximum number of events listed; 0 lists all
	Tracks bool   // Include the per-track summary
}

// Write renders src to w. It returns smf.ErrNotParsed when src holds no
// successful parse.
func Write(w io.Writer, src Source, opts Options) error {
	header, ok := src.Header()
	if !ok {
		return smf.ErrNotParsed
	}

	doc := build(header, src, opts)
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatText, "":
		return writeText(w, doc, opts)
	default:
		return fmt.Errorf("unknown report format: %s", opts.Format)
	}
}

// document is the format-independent report.
type document struct {
	Title      string       `json:"title,omitempty"`
	Format     uint16       `json:"format"`
	Tracks     uint16       `json:"tracks"`
	PPQN       uint16       `json:"ppqn"`
	EventCount int          `json:"event_count"`
	DurationNs uint64       `json:"duration_ns"`
	Tempo      []tempoEntry `json:"tempo"`
	Events     []eventEntry `json:"events"`
	Omitted    int          `json:"omitted,omitempty"`
	TrackInfo  []trackEntry `json:"track_summary,omitempty"`
}

type tempoEntry struct {
	Tick             uint64  `json:"tick"`
	Ns               uint64  `json:"ns"`
	MicrosPerQuarter uint32  `json:"us_per_quarter"`
	BPM              float64 `json:"bpm"`
}

type eventEntry struct {
	Index   int    `json:"index"`
	Ns      uint64 `json:"ns"`
	Track   uint16 `json:"track"`
	Status  uint8  `json:"status"`
	Data1   uint8  `json:"data1"`
	Data2   uint8  `json:"data2"`
	SysEx   string `json:"sysex,omitempty"`
	Message string `json:"message"`
}

type trackEntry struct {
	Track  int    `json:"track"`
	Name   string `json:"name,omitempty"`
	Events int    `json:"events"`
}

func build(header smf.Header, src Source, opts Options) *document {
	events := src.Events()
	doc := &document{
		Title:      opts.Title,
		Format:     header.Format,
		Tracks:     header.Tracks,
		PPQN:       header.PPQN,
		EventCount: len(events),
		DurationNs: uint64(src.Duration()),
		Tempo:      []tempoEntry{},
		Events:     []eventEntry{},
	}

	for _, tp := range src.Timeline() {
		doc.Tempo = append(doc.Tempo, tempoEntry{
			Tick:             tp.Tick,
			Ns:               tp.Nanos,
			MicrosPerQuarter: tp.MicrosPerQuarter,
			BPM:              tp.BPM(),
		})
	}

	shown := events
	if opts.Limit > 0 && len(events) > opts.Limit {
		shown = events[:opts.Limit]
		doc.Omitted = len(events) - opts.Limit
	}
	for i, e := range shown {
		entry := eventEntry{
			Index:   i,
			Ns:      e.Nanos,
			Track:   e.Track,
			Status:  e.Status,
			Data1:   e.Data1,
			Data2:   e.Data2,
			Message: describe(e),
		}
		if e.IsSysEx() {
			entry.SysEx = hex.EncodeToString(e.SysEx)
		}
		doc.Events = append(doc.Events, entry)
	}

	if opts.Tracks {
		names := src.TrackNames()
		for track, indices := range src.TrackEventIndices() {
			entry := trackEntry{Track: track, Events: len(indices)}
			if track < len(names) {
				entry.Name = names[track]
			}
			doc.TrackInfo = append(doc.TrackInfo, entry)
		}
	}
	return doc
}

// describe names an event the way gomidi prints messages.
func describe(e smf.Event) string {
	if e.IsSysEx() {
		return fmt.Sprintf("SysEx len: %d", len(e.SysEx))
	}
	switch e.Status & 0xF0 {
	case 0xC0, 0xD0:
		return midi.Message{e.Status, e.Data1}.String()
	default:
		return midi.Message{e.Status, e.Data1, e.Data2}.String()
	}
}

func writeText(w io.Writer, doc *document, opts Options) error {
	p := message.NewPrinter(language.English)
	r := lipgloss.NewRenderer(w)

	box := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	title := r.NewStyle().Bold(true)
	section := r.NewStyle().Bold(true).Underline(true)

	summary := p.Sprintf("format %d · %d tracks · %d ppqn\n%d events · %v",
		doc.Format, doc.Tracks, doc.PPQN, doc.EventCount, time.Duration(doc.DurationNs))
	if doc.Title != "" {
		summary = title.Render(doc.Title) + "\n" + summary
	}
	if _, err := fmt.Fprintln(w, box.Render(summary)); err != nil {
		return err
	}

	fmt.Fprintln(w, section.Render("Tempo"))
	for _, tp := range doc.Tempo {
		p.Fprintf(w, "  tick %-10d %16d ns  %9d µs/qn  %7.2f bpm\n",
			tp.Tick, tp.Ns, tp.MicrosPerQuarter, tp.BPM)
	}

	fmt.Fprintln(w, section.Render("Events"))
	for _, e := range doc.Events {
		p.Fprintf(w, "  %6d %16d ns  trk %-3d %s\n", e.Index, e.Ns, e.Track, e.Message)
	}
	if doc.Omitted > 0 {
		p.Fprintf(w, "  ... %d more events\n", doc.Omitted)
	}

	if opts.Tracks {
		fmt.Fprintln(w, section.Render("Tracks"))
		for _, t := range doc.TrackInfo {
			name := t.Name
			if name == "" {
				name = "-"
			}
			p.Fprintf(w, "  %3d  %-24s %8d events\n", t.Track, name, t.Events)
		}
	}
	return nil
}
