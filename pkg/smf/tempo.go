package smf

import (
	"math"
	"math/bits"
	"sort"
)

// DefaultMicrosPerQuarter is the tempo in force until the first tempo event
// (120 BPM).
const DefaultMicrosPerQuarter = 500_000

// TempoPoint anchors one segment of the tempo map.
//
// TickNanos is the truncated length of one tick under this tempo, kept for
// display. It is not the conversion factor: event times are computed from
// MicrosPerQuarter with the division done last, so they carry no per-tick
// rounding error.
type TempoPoint struct {
	Tick             uint64 // Absolute tick at which the tempo takes effect
	Nanos            uint64 // Elapsed time at Tick
	TickNanos        uint64 // Nanoseconds per tick under this tempo (truncated)
	MicrosPerQuarter uint32
}

// BPM returns the tempo in quarter notes per minute, or 0 for a zero tempo.
func (tp TempoPoint) BPM() float64 {
	if tp.MicrosPerQuarter == 0 {
		return 0
	}
	return 60_000_000 / float64(tp.MicrosPerQuarter)
}

// tickNanos returns the (truncated) length of one tick.
func tickNanos(microsPerQuarter uint32, ppqn uint16) uint64 {
	return uint64(microsPerQuarter) * 1000 / uint64(ppqn)
}

// ticksToNanos converts a tick span to nanoseconds under one tempo.
// The product is formed before dividing by ppqn so that spans are exact
// whenever the tempo divides evenly; the 128-bit intermediate saturates
// instead of wrapping.
func ticksToNanos(ticks uint64, microsPerQuarter uint32, ppqn uint16) uint64 {
	hi, lo := bits.Mul64(ticks, uint64(microsPerQuarter)*1000)
	if hi >= uint64(ppqn) {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, uint64(ppqn))
	return q
}

func addSaturating(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// timelineBuilder folds tempo events, in tick order, into a tempo map.
// Each point depends on every earlier one, so it is fed sequentially.
type timelineBuilder struct {
	ppqn     uint16
	lastTick uint64
	elapsed  uint64
	tempo    uint32
	points   []TempoPoint
}

func newTimelineBuilder(ppqn uint16) *timelineBuilder {
	b := &timelineBuilder{
		ppqn:  ppqn,
		tempo: DefaultMicrosPerQuarter,
	}
	b.points = append(b.points, TempoPoint{
		Tick:             0,
		Nanos:            0,
		TickNanos:        tickNanos(b.tempo, ppqn),
		MicrosPerQuarter: b.tempo,
	})
	return b
}

// add records a tempo change at tick. The time up to tick is accumulated under
// the tempo in force before the change.
func (b *timelineBuilder) add(tick uint64, microsPerQuarter uint32) {
	b.elapsed = addSaturating(b.elapsed, ticksToNanos(tick-b.lastTick, b.tempo, b.ppqn))
	b.tempo = microsPerQuarter
	b.lastTick = tick
	b.points = append(b.points, TempoPoint{
		Tick:             tick,
		Nanos:            b.elapsed,
		TickNanos:        tickNanos(microsPerQuarter, b.ppqn),
		MicrosPerQuarter: microsPerQuarter,
	})
}

func (b *timelineBuilder) build() timeline {
	return timeline{ppqn: b.ppqn, points: b.points}
}

// buildTimeline scans tick-sorted events for tempo changes.
func buildTimeline(sorted []rawEvent, ppqn uint16) timeline {
	b := newTimelineBuilder(ppqn)
	for i := range sorted {
		if sorted[i].kind == kindTempo {
			b.add(sorted[i].tick, sorted[i].tempo)
		}
	}
	return b.build()
}

// timeline is a complete, read-only tempo map. It always holds at least the
// implicit point at tick 0.
type timeline struct {
	ppqn   uint16
	points []TempoPoint
}

// segment returns the last point whose tick is <= tick. When several points
// share a tick the last one wins.
func (t timeline) segment(tick uint64) TempoPoint {
	i := sort.Search(len(t.points), func(i int) bool {
		return t.points[i].Tick > tick
	})
	return t.points[i-1]
}

// nanosAt maps an absolute tick to elapsed nanoseconds.
func (t timeline) nanosAt(tick uint64) uint64 {
	p := t.segment(tick)
	return addSaturating(p.Nanos, ticksToNanos(tick-p.Tick, p.MicrosPerQuarter, t.ppqn))
}
