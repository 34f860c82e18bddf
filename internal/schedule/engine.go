package schedule

import (
	"iter"
	"slices"
	"sort"
	"time"
)

// MergeIntervals collapses a set of intervals into the minimal sorted,
// non-overlapping sequence covering their union. Touching intervals
// coalesce: two busy blocks with no gap between them become one block,
// since a zero-width gap is never usable. Empty input yields nil.
func MergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := slices.Clone(intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// ClipToWindow intersects each interval with the window. Intervals fully
// outside the window are dropped; partially overlapping intervals are
// truncated to the window boundary. Input order is preserved.
func ClipToWindow(intervals []Interval, window Interval) []Interval {
	var clipped []Interval
	for _, iv := range intervals {
		if !iv.Overlaps(window) {
			continue
		}
		start, end := iv.Start, iv.End
		if start.Before(window.Start) {
			start = window.Start
		}
		if end.After(window.End) {
			end = window.End
		}
		clipped = append(clipped, Interval{Start: start, End: end})
	}
	return clipped
}

// FreeGaps returns the unoccupied spans of the window, in ascending
// order. The busy list must already be merged, clipped to the window and
// sorted; together the gaps and the busy intervals partition the window
// exactly. Zero-width gaps are never emitted.
func FreeGaps(window Interval, busy []Interval) []Interval {
	var gaps []Interval
	cursor := window.Start
	for _, b := range busy {
		if b.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if window.End.After(cursor) {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}

// AlignedStarts yields the candidate start instants within a gap: the
// first grid-aligned instant at or after gap.Start, then successive
// instants one grid step apart, for as long as a slot of length d still
// fits inside the gap. Alignment is measured from the top of the hour in
// loc and always rounds up, so a candidate never precedes the true free
// boundary. This is the only place duration fit is checked.
func AlignedStarts(gap Interval, d time.Duration, gridMinutes int, loc *time.Location) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		grid := time.Duration(gridMinutes) * time.Minute

		local := gap.Start.In(loc)
		hour := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
		offset := local.Sub(hour)
		if rem := offset % grid; rem != 0 {
			offset += grid - rem
		}

		for cand := hour.Add(offset); !cand.Add(d).After(gap.End); cand = cand.Add(grid) {
			if !yield(cand) {
				return
			}
		}
	}
}

// SuggestSlots is the engine entry point. It merges the supplied busy
// intervals, walks each day of the horizon in the request's location,
// derives the free gaps inside that day's working window and emits one
// slot per grid-aligned start that fits, stopping at the result cap.
//
// Busy intervals may be unsorted, overlapping or adjacent. An interval
// with start >= end rejects the whole call with an *InputDataError. A
// request violating its invariants is rejected with a
// *ConfigurationError before any computation. An unsatisfiable request
// is not an error: it returns an empty result.
//
// A slot may start exactly when a busy block ends; touching boundaries
// are free. No slot on the anchor's day starts at or before the anchor.
func SuggestSlots(req Request, busy []Interval) ([]Slot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for i, b := range busy {
		if !b.Start.Before(b.End) {
			return nil, &InputDataError{Index: i, Reason: "start must precede end"}
		}
	}

	merged := MergeIntervals(busy)
	limit := req.maxResults()
	anchor := req.Anchor.In(req.Location)

	var slots []Slot
	seen := make(map[int64]struct{})

days:
	for d := 0; d < req.HorizonDays; d++ {
		day := anchor.AddDate(0, 0, d)
		window := Interval{
			Start: req.WorkStart.On(day, req.Location),
			End:   req.WorkEnd.On(day, req.Location),
		}
		if d == 0 && anchor.After(window.Start) {
			window.Start = anchor
		}
		if !window.Start.Before(window.End) {
			continue
		}

		clipped := ClipToWindow(merged, window)
		for _, gap := range FreeGaps(window, clipped) {
			for start := range AlignedStarts(gap, req.Duration, req.GridMinutes, req.Location) {
				if d == 0 && !start.After(anchor) {
					continue
				}
				if _, dup := seen[start.UnixNano()]; dup {
					continue
				}
				seen[start.UnixNano()] = struct{}{}
				slots = append(slots, Slot{
					Start:    start,
					End:      start.Add(req.Duration),
					Location: req.Location,
				})
				if len(slots) >= limit {
					break days
				}
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}
