// Package schedule computes bookable time slots from calendar busy data.
//
// The package is pure computation: it performs no I/O, reads no clocks,
// and keeps no state between calls. Callers fetch busy intervals (for
// example via the Calendar freebusy API), build a Request describing the
// scheduling constraints, and receive a finite, ordered list of Slot
// values. Identical inputs always produce identical output, which makes
// the engine safe for concurrent use and trivial to test.
//
// The pipeline is MergeIntervals -> ClipToWindow -> FreeGaps ->
// AlignedStarts, driven day by day across the search horizon by
// SuggestSlots.
package schedule
