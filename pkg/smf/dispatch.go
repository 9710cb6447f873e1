package smf

import (
	"cmp"
	"slices"

	"golang.org/x/sync/errgroup"
)

// minConvertChunk and minSortChunk keep tiny files from being split into many
// goroutines.
const (
	minConvertChunk = 4096
	minSortChunk    = 4096
)

// trackResult is what one track worker hands back.
type trackResult struct {
	events  []rawEvent
	endTick uint64
	name    []byte
	err     error
}

// decodeTracks decodes every track on the worker pool. Workers never share
// state: each one reads its own chunk and writes its own result slot. All
// workers run to completion; the error of the lowest-indexed failing track is
// returned and every other result is discarded.
//
// The second result holds each track's name, empty when the track has none.
func (p *Parser) decodeTracks(tracks [][]byte) ([]rawEvent, []string, error) {
	results := make([]trackResult, len(tracks))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, data := range tracks {
		i, data := i, data
		g.Go(func() error {
			d := newTrackDecoder(data, uint16(i))
			err := d.run()
			results[i] = trackResult{events: d.events, endTick: d.tick, name: d.name, err: err}
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	names := make([]string, len(results))
	for i, res := range results {
		if res.err != nil {
			return nil, nil, res.err
		}
		names[i] = decodeText(res.name)
		p.log.Debug("Track decoded",
			"track", i+1,
			"tracks", len(tracks),
			"name", names[i],
			"bytes", len(tracks[i]),
			"events", len(res.events),
			"end_tick", res.endTick)
		total += len(res.events)
	}

	merged := make([]rawEvent, 0, total)
	for _, res := range results {
		merged = append(merged, res.events...)
	}
	return merged, names, nil
}

// mergeByTick orders events by tick. The sort is stable, so events on the same
// tick stay in track order and then in their order within the track.
func (p *Parser) mergeByTick(events []rawEvent) {
	sortStableByTick(events, p.workers, minSortChunk)
}

func byTick(a, b rawEvent) int {
	return cmp.Compare(a.tick, b.tick)
}

// sortStableByTick sorts chunks of at least minChunk events in parallel and then
// merges neighbouring runs pairwise, one round at a time, until a single run is
// left. Merges take from the left run on ties.
func sortStableByTick(events []rawEvent, workers, minChunk int) {
	n := len(events)
	workers = max(workers, 1)
	chunk := max(minChunk, 1, (n+workers-1)/workers)
	if chunk >= n {
		slices.SortStableFunc(events, byTick)
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			slices.SortStableFunc(events[start:end], byTick)
			return nil
		})
	}
	_ = g.Wait()

	src, dst := events, make([]rawEvent, n)
	for width := chunk; width < n; width *= 2 {
		var round errgroup.Group
		round.SetLimit(workers)
		for lo := 0; lo < n; lo += 2 * width {
			lo, mid := lo, min(lo+width, n)
			hi := min(lo+2*width, n)
			round.Go(func() error {
				mergeRuns(dst[lo:hi], src[lo:mid], src[mid:hi])
				return nil
			})
		}
		_ = round.Wait()
		src, dst = dst, src
	}
	if &src[0] != &events[0] {
		copy(events, src)
	}
}

// mergeRuns merges two sorted runs into dst, which must hold both.
func mergeRuns(dst, left, right []rawEvent) {
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if right[j].tick < left[i].tick {
			dst[k] = right[j]
			j++
		} else {
			dst[k] = left[i]
			i++
		}
		k++
	}
	k += copy(dst[k:], left[i:])
	copy(dst[k:], right[j:])
}

// convertEvents maps every non-tempo event to absolute nanoseconds. The
// timeline must be complete; it is only read here, so chunks of events are
// converted in parallel. The input slice is reused for filtering.
func (p *Parser) convertEvents(sorted []rawEvent, tl timeline) []Event {
	playable := slices.DeleteFunc(sorted, func(e rawEvent) bool {
		return e.kind == kindTempo
	})
	out := make([]Event, len(playable))
	if len(playable) == 0 {
		return out
	}

	chunk := max(minConvertChunk, (len(playable)+p.workers-1)/p.workers)

	var g errgroup.Group
	g.SetLimit(p.workers)
	for start := 0; start < len(playable); start += chunk {
		start, end := start, min(start+chunk, len(playable))
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = toEvent(&playable[i], tl.nanosAt(playable[i].tick))
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func toEvent(e *rawEvent, nanos uint64) Event {
	if e.kind == kindSysEx {
		return Event{
			Nanos:  nanos,
			Status: statusSysEx,
			Track:  e.track,
			SysEx:  e.sysex,
		}
	}
	return Event{
		Nanos:  nanos,
		Status: e.status,
		Data1:  e.data1,
		Data2:  e.data2,
		Track:  e.track,
	}
}
