package schedule

import (
	"fmt"
	"time"
)

// DefaultMaxResults is used when a Request does not cap the number of
// returned slots. Three suggestions is what the email-reply flow offers.
const DefaultMaxResults = 3

// Interval is a half-open time span [Start, End). Comparisons happen on
// the absolute timeline; the location carried by the time values is only
// used for display and for deriving wall-clock boundaries.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t falls inside the half-open interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Overlaps reports whether two intervals share any positive-width span.
// Touching intervals (one ends exactly when the other starts) do not
// overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// WallClock is a time of day without a date, e.g. the start of working
// hours.
type WallClock struct {
	Hour   int
	Minute int
}

// ParseWallClock parses a "HH:MM" string such as "09:00".
func ParseWallClock(s string) (WallClock, error) {
	var wc WallClock
	if _, err := fmt.Sscanf(s, "%d:%d", &wc.Hour, &wc.Minute); err != nil {
		return WallClock{}, fmt.Errorf("invalid wall clock time %q: %w", s, err)
	}
	if wc.Hour < 0 || wc.Hour > 23 || wc.Minute < 0 || wc.Minute > 59 {
		return WallClock{}, fmt.Errorf("invalid wall clock time %q: out of range", s)
	}
	return wc, nil
}

// Before reports whether wc is earlier in the day than other.
func (wc WallClock) Before(other WallClock) bool {
	if wc.Hour != other.Hour {
		return wc.Hour < other.Hour
	}
	return wc.Minute < other.Minute
}

// On anchors the wall-clock time to a calendar day in the given location.
// The day is identified by any instant within it.
func (wc WallClock) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), wc.Hour, wc.Minute, 0, 0, loc)
}

// String formats the time of day as "HH:MM".
func (wc WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", wc.Hour, wc.Minute)
}

// Request describes one slot search. The anchor is the earliest instant
// a slot may start at and must be supplied by the caller; the engine
// never reads the wall clock itself.
type Request struct {
	// Anchor is the earliest instant from which searching begins,
	// typically "now" at the call site.
	Anchor time.Time

	// Duration is the required length of each slot.
	Duration time.Duration

	// HorizonDays is the number of calendar days to search, starting at
	// the anchor's day in Location.
	HorizonDays int

	// WorkStart and WorkEnd bound the portion of each day eligible for
	// scheduling.
	WorkStart WallClock
	WorkEnd   WallClock

	// Location is the timezone in which working hours and grid
	// alignment are interpreted, and in which slots are reported.
	Location *time.Location

	// GridMinutes constrains slot starts to multiples of this many
	// minutes past the top of the hour (e.g. 30 for :00/:30 starts).
	GridMinutes int

	// MaxResults caps the number of returned slots. Zero means
	// DefaultMaxResults.
	MaxResults int
}

// Validate checks the request invariants. A violation is reported as a
// *ConfigurationError before any computation happens.
func (r Request) Validate() error {
	switch {
	case r.Anchor.IsZero():
		return &ConfigurationError{Field: "Anchor", Reason: "must be set"}
	case r.Duration <= 0:
		return &ConfigurationError{Field: "Duration", Reason: "must be positive"}
	case r.HorizonDays < 1:
		return &ConfigurationError{Field: "HorizonDays", Reason: "must be at least 1"}
	case r.GridMinutes <= 0:
		return &ConfigurationError{Field: "GridMinutes", Reason: "must be positive"}
	case r.MaxResults < 0:
		return &ConfigurationError{Field: "MaxResults", Reason: "must not be negative"}
	case r.Location == nil:
		return &ConfigurationError{Field: "Location", Reason: "must be set"}
	case !r.WorkStart.Before(r.WorkEnd):
		return &ConfigurationError{
			Field:  "WorkStart",
			Reason: fmt.Sprintf("working hours %s-%s are empty or inverted", r.WorkStart, r.WorkEnd),
		}
	}
	return nil
}

// maxResults resolves the effective cap.
func (r Request) maxResults() int {
	if r.MaxResults == 0 {
		return DefaultMaxResults
	}
	return r.MaxResults
}

// Slot is a bookable time window. Slots are plain values with no
// identity; End is always Start plus the requested duration and Start is
// aligned to the request grid in Location.
type Slot struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// WithBuffer shrinks the slot by the given leading and trailing margins,
// e.g. to leave five minutes between back-to-back meetings. It returns
// an error if the margins consume the whole slot.
func (s Slot) WithBuffer(before, after time.Duration) (Slot, error) {
	start := s.Start.Add(before)
	end := s.End.Add(-after)
	if !start.Before(end) {
		return Slot{}, fmt.Errorf("buffer %v+%v leaves no time in slot %v-%v", before, after, s.Start, s.End)
	}
	return Slot{Start: start, End: end, Location: s.Location}, nil
}

// String formats the slot in its display location.
func (s Slot) String() string {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s - %s",
		s.Start.In(loc).Format(time.RFC3339),
		s.End.In(loc).Format(time.RFC3339))
}
