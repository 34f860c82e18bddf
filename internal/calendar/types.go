package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/slotwise/slotwise/internal/schedule"
)

// EventInput represents the input for creating a calendar event.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string

	// AddMeet attaches a Google Meet conference to the event.
	AddMeet bool

	// NotifyAttendees sends invitation emails (sendUpdates=all).
	NotifyAttendees bool
}

// EventSummary represents a simplified calendar event for listing.
type EventSummary struct {
	ID        string
	Summary   string
	Start     time.Time
	End       time.Time
	Organizer string
	Status    string
	Attendees []string
	MeetLink  string
}

// CalendarInfo represents information about a calendar.
type CalendarInfo struct {
	ID          string
	Summary     string
	Description string
	TimeZone    string
	Primary     bool
	AccessRole  string
}

// FreeBusyInfo represents availability information for one calendar.
type FreeBusyInfo struct {
	Calendar string
	Busy     []schedule.Interval
	Errors   []string
}

// toEventSummary converts a Google Calendar event to an EventSummary.
func toEventSummary(event *calendar.Event) EventSummary {
	summary := EventSummary{
		ID:      event.Id,
		Summary: event.Summary,
		Status:  event.Status,
	}

	if event.Start != nil {
		if event.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
				summary.Start = t
			}
		} else if event.Start.Date != "" {
			if t, err := time.Parse("2006-01-02", event.Start.Date); err == nil {
				summary.Start = t
			}
		}
	}
	if event.End != nil {
		if event.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.End.DateTime); err == nil {
				summary.End = t
			}
		} else if event.End.Date != "" {
			if t, err := time.Parse("2006-01-02", event.End.Date); err == nil {
				summary.End = t
			}
		}
	}

	if event.Organizer != nil {
		summary.Organizer = event.Organizer.Email
	}
	for _, a := range event.Attendees {
		summary.Attendees = append(summary.Attendees, a.Email)
	}

	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				summary.MeetLink = ep.Uri
				break
			}
		}
	}
	return summary
}

// toCalendarInfo converts a calendar list entry to a CalendarInfo.
func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	return CalendarInfo{
		ID:          entry.Id,
		Summary:     entry.Summary,
		Description: entry.Description,
		TimeZone:    entry.TimeZone,
		Primary:     entry.Primary,
		AccessRole:  entry.AccessRole,
	}
}

// BusyIntervals flattens freebusy responses for one or more calendars
// into the busy interval list the slot engine consumes. Entries with
// unparseable timestamps or an empty span are filtered here, per the
// engine's input contract: the collaborator, not the engine, cleans up
// the wire format.
func BusyIntervals(infos []FreeBusyInfo) []schedule.Interval {
	var busy []schedule.Interval
	for _, info := range infos {
		for _, iv := range info.Busy {
			if iv.Start.IsZero() || iv.End.IsZero() || !iv.Start.Before(iv.End) {
				continue
			}
			busy = append(busy, iv)
		}
	}
	return busy
}
