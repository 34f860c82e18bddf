package calendar

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/slotwise/slotwise/internal/google"
	"github.com/slotwise/slotwise/internal/schedule"
)

// Client wraps the Google Calendar service
type Client struct {
	svc           *calendar.Service
	account       string // The account this client is associated with
	tokenProvider google.TokenProvider
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccountWithProvider checks if a valid OAuth token exists for the specified account
func HasTokenForAccountWithProvider(account string, provider google.TokenProvider) bool {
	if provider == nil {
		return false
	}
	return provider.HasTokenForAccount(account)
}

// HasTokenForAccount checks if a valid OAuth token exists for the specified account
func HasTokenForAccount(account string) bool {
	provider := google.NewFileTokenProvider()
	return HasTokenForAccountWithProvider(account, provider)
}

// NewClientForAccountWithProvider creates a new Calendar client with OAuth2 authentication
// for a specific account. The OAuth token is retrieved from the provided token provider.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	conf := google.GetOAuthConfig()
	client := google.NewHTTPClient(ctx, conf.TokenSource(ctx, token))

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:           svc,
		account:       account,
		tokenProvider: tokenProvider,
	}, nil
}

// NewClientForAccount creates a new Calendar client for a specific account
// using the default file-based token provider.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	provider := google.NewFileTokenProvider()
	return NewClientForAccountWithProvider(ctx, account, provider)
}

// NewClient creates a new Calendar client for the default account.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default")
}

// ListEvents lists events in a calendar within a time range
func (c *Client) ListEvents(calendarID string, timeMin, timeMax time.Time, query string) ([]EventSummary, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	if query != "" {
		call = call.Q(query)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var summaries []EventSummary
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}
	return summaries, nil
}

// ListCalendars lists all calendars accessible to the user
func (c *Client) ListCalendars() ([]CalendarInfo, error) {
	list, err := c.svc.CalendarList.List().Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	var calendars []CalendarInfo
	for _, entry := range list.Items {
		calendars = append(calendars, toCalendarInfo(entry))
	}
	return calendars, nil
}

// GetPrimaryCalendar retrieves information about the primary calendar
func (c *Client) GetPrimaryCalendar() (*CalendarInfo, error) {
	entry, err := c.svc.CalendarList.Get("primary").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get primary calendar: %w", err)
	}

	info := toCalendarInfo(entry)
	return &info, nil
}

// QueryFreeBusy checks availability for calendars in a time range
func (c *Client) QueryFreeBusy(timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	query := &calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   items,
	}

	result, err := c.svc.Freebusy.Query(query).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	var infos []FreeBusyInfo
	for calID, cal := range result.Calendars {
		info := FreeBusyInfo{Calendar: calID}

		for _, busy := range cal.Busy {
			// Unparseable timestamps become zero times here and are
			// filtered by BusyIntervals before reaching the engine.
			start, _ := time.Parse(time.RFC3339, busy.Start)
			end, _ := time.Parse(time.RFC3339, busy.End)
			info.Busy = append(info.Busy, schedule.Interval{Start: start, End: end})
		}
		for _, fbErr := range cal.Errors {
			info.Errors = append(info.Errors, fbErr.Reason)
		}

		infos = append(infos, info)
	}
	return infos, nil
}

// SuggestSlots computes bookable slots for the request by running one
// freebusy query over the whole search horizon and handing the busy
// intervals to the slot engine. calendarIDs defaults to the primary
// calendar.
func (c *Client) SuggestSlots(ctx context.Context, req schedule.Request, calendarIDs []string) ([]schedule.Slot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}

	// One query spanning from the first day's working start to the last
	// day's working end is cheaper than one query per day.
	anchor := req.Anchor.In(req.Location)
	timeMin := req.WorkStart.On(anchor, req.Location)
	timeMax := req.WorkEnd.On(anchor.AddDate(0, 0, req.HorizonDays-1), req.Location)

	infos, err := c.QueryFreeBusy(timeMin, timeMax, calendarIDs)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		for _, reason := range info.Errors {
			return nil, fmt.Errorf("freebusy lookup failed for calendar %s: %s", info.Calendar, reason)
		}
	}

	return schedule.SuggestSlots(req, BusyIntervals(infos))
}

// IsFree reports whether the primary calendar has no busy blocks inside
// the slot. An API failure is treated as not free so that a booking is
// never made on stale information.
func (c *Client) IsFree(slot schedule.Slot) bool {
	infos, err := c.QueryFreeBusy(slot.Start, slot.End, []string{"primary"})
	if err != nil {
		return false
	}
	return len(BusyIntervals(infos)) == 0
}

// CreateEvent creates a new calendar event, optionally with a Google
// Meet conference and invitation emails to all attendees.
func (c *Client) CreateEvent(calendarID string, input EventInput) (*EventSummary, error) {
	if input.TimeZone == "" {
		input.TimeZone = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
	}

	if len(input.Attendees) > 0 {
		var attendees []*calendar.EventAttendee
		for _, email := range input.Attendees {
			attendees = append(attendees, &calendar.EventAttendee{
				Email: email,
			})
		}
		event.Attendees = attendees
	}

	call := c.svc.Events.Insert(calendarID, event)
	if input.AddMeet {
		call = call.ConferenceDataVersion(1)
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: fmt.Sprintf("meet-%d", input.Start.Unix()),
			},
		}
	}
	if input.NotifyAttendees {
		call = call.SendUpdates("all")
	}

	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// BookSlot creates an event occupying the given slot on the primary
// calendar. The slot's location provides the event timezone.
func (c *Client) BookSlot(slot schedule.Slot, title, description string, attendees []string, addMeet bool) (*EventSummary, error) {
	tz := "UTC"
	if slot.Location != nil {
		tz = slot.Location.String()
	}
	return c.CreateEvent("primary", EventInput{
		Summary:         title,
		Description:     description,
		Start:           slot.Start,
		End:             slot.End,
		TimeZone:        tz,
		Attendees:       attendees,
		AddMeet:         addMeet,
		NotifyAttendees: true,
	})
}

// DeleteEvent deletes a calendar event
func (c *Client) DeleteEvent(calendarID, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
