// Package handle exposes parsers through integer handles and explicitly
// released buffers, the shape a foreign-function boundary needs.
//
// Every fetch hands out a fresh copy that the caller owns until it releases
// it; nothing returned here aliases parser state. Invalid handles answer zero
// values instead of failing, the same way a C boundary guards null pointers.
package handle

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zurustar/smfdecode/pkg/fileutil"
	"github.com/zurustar/smfdecode/pkg/logger"
	"github.com/zurustar/smfdecode/pkg/smf"
)

// Handle identifies a parser in a Table.
type Handle int

// minHandleID is the minimum handle assigned by Table.
// Handles start from 1 (not 0) to distinguish from uninitialized values.
const minHandleID = 1

// HeaderRecord mirrors the header layout exposed across the boundary.
type HeaderRecord struct {
	Format uint16
	Tracks uint16
	PPQN   uint16
}

// EventRecord mirrors the event layout exposed across the boundary. Track
// index and SysEx payload do not cross it.
type EventRecord struct {
	AbsoluteNs uint64
	Status     uint8
	Data1      uint8
	Data2      uint8
}

// HeaderBuf is a released-by-caller copy of a header.
type HeaderBuf struct {
	id uint64
	HeaderRecord
}

// EventBuf is a released-by-caller copy of the event sequence.
type EventBuf struct {
	id     uint64
	Events []EventRecord
}

// IndexBuf is a released-by-caller copy of the per-track index lists.
type IndexBuf struct {
	id     uint64
	Tracks [][]int
}

// entry はハンドルテーブルの1エントリ
type entry struct {
	parser  *smf.Parser
	lastErr error
}

// Table maps handles to parsers and tracks buffers handed out to callers.
type Table struct {
	log     *slog.Logger
	workers int

	mu          sync.Mutex
	parsers     map[Handle]*entry
	outstanding map[uint64]struct{}
	nextBufID   uint64
}

// NewTable creates an empty table. workers is passed to every parser; values
// below 1 select the parser default.
func NewTable(workers int) *Table {
	return &Table{
		log:         logger.GetLogger(),
		workers:     workers,
		parsers:     make(map[Handle]*entry),
		outstanding: make(map[uint64]struct{}),
	}
}

// New allocates a fresh, unparsed parser and returns the smallest unused
// handle (>= 1).
func (t *Table) New() Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := Handle(minHandleID)
	for {
		if _, exists := t.parsers[h]; !exists {
			break
		}
		h++
	}

	t.parsers[h] = &entry{
		parser: smf.NewParser(smf.WithLogger(t.log), smf.WithWorkers(t.workers)),
	}
	return h
}

func (t *Table) get(h Handle) (*entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.parsers[h]
	return e, ok
}

// Parse parses the file at path into the parser behind h. The detailed error
// is collapsed to false here; LastError keeps it for diagnostics.
func (t *Table) Parse(h Handle, path string) bool {
	e, ok := t.get(h)
	if !ok {
		return false
	}
	if path == "" {
		t.mu.Lock()
		e.lastErr = fmt.Errorf("empty path")
		t.mu.Unlock()
		return false
	}

	// 大文字小文字の違いは許容する。見つからなければ元のパスでエラーを報告する
	if actual, err := fileutil.ResolvePath(path); err == nil {
		path = actual
	}
	err := e.parser.ParseFile(path)

	t.mu.Lock()
	e.lastErr = err
	t.mu.Unlock()

	if err != nil {
		t.log.Warn("MIDI parse failed", "handle", int(h), "path", path, "error", err)
		return false
	}
	return true
}

// LastError returns the error of the most recent Parse on h, or nil.
func (t *Table) LastError(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.parsers[h]
	if !ok {
		return fmt.Errorf("invalid parser handle: %d", h)
	}
	return e.lastErr
}

// Header returns a copy of the header, or nil when h is invalid or nothing
// has been parsed yet. The caller must pass it to ReleaseHeader.
func (t *Table) Header(h Handle) *HeaderBuf {
	e, ok := t.get(h)
	if !ok {
		return nil
	}
	hdr, ok := e.parser.Header()
	if !ok {
		return nil
	}
	return &HeaderBuf{
		id:           t.track(),
		HeaderRecord: HeaderRecord{Format: hdr.Format, Tracks: hdr.Tracks, PPQN: hdr.PPQN},
	}
}

// Events returns a copy of the full event sequence, or nil when h is invalid.
// The caller must pass it to ReleaseEvents.
func (t *Table) Events(h Handle) *EventBuf {
	e, ok := t.get(h)
	if !ok {
		return nil
	}
	events := e.parser.Events()
	records := make([]EventRecord, len(events))
	for i, ev := range events {
		records[i] = toRecord(ev)
	}
	return &EventBuf{id: t.track(), Events: records}
}

// EventCount returns the number of events, or 0 when h is invalid.
func (t *Table) EventCount(h Handle) int {
	e, ok := t.get(h)
	if !ok {
		return 0
	}
	return e.parser.EventCount()
}

// EventAt returns one event by value. Callers must bound i with EventCount;
// an out-of-range index panics.
func (t *Table) EventAt(h Handle, i int) EventRecord {
	e, ok := t.get(h)
	if !ok {
		return EventRecord{}
	}
	return toRecord(e.parser.EventAt(i))
}

// TrackEvents returns the per-track index lists, or nil when h is invalid.
// The caller must pass it to ReleaseIndices.
func (t *Table) TrackEvents(h Handle) *IndexBuf {
	e, ok := t.get(h)
	if !ok {
		return nil
	}
	return &IndexBuf{id: t.track(), Tracks: e.parser.TrackEventIndices()}
}

// ReleaseHeader releases a buffer returned by Header. Releasing nil or an
// already released buffer is a no-op that returns false.
func (t *Table) ReleaseHeader(b *HeaderBuf) bool {
	if b == nil {
		return false
	}
	return t.release(b.id)
}

// ReleaseEvents releases a buffer returned by Events.
func (t *Table) ReleaseEvents(b *EventBuf) bool {
	if b == nil {
		return false
	}
	if !t.release(b.id) {
		return false
	}
	b.Events = nil
	return true
}

// ReleaseIndices releases a buffer returned by TrackEvents.
func (t *Table) ReleaseIndices(b *IndexBuf) bool {
	if b == nil {
		return false
	}
	if !t.release(b.id) {
		return false
	}
	b.Tracks = nil
	return true
}

// Outstanding returns the number of buffers handed out and not yet released.
func (t *Table) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outstanding)
}

// Free drops the parser behind h. Buffers already handed out stay valid until
// released. The handle is reused by a later New.
func (t *Table) Free(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.parsers[h]; !exists {
		return false
	}
	delete(t.parsers, h)
	return true
}

// track registers a new outstanding buffer and returns its id.
func (t *Table) track() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextBufID++
	t.outstanding[t.nextBufID] = struct{}{}
	return t.nextBufID
}

func (t *Table) release(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.outstanding[id]; !ok {
		return false
	}
	delete(t.outstanding, id)
	return true
}

func toRecord(e smf.Event) EventRecord {
	return EventRecord{
		AbsoluteNs: e.Nanos,
		Status:     e.Status,
		Data1:      e.Data1,
		Data2:      e.Data2,
	}
}
