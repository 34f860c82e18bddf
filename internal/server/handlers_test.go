package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	gapi "google.golang.org/api/gmail/v1"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/classify"
	"github.com/slotwise/slotwise/internal/gmail"
	"github.com/slotwise/slotwise/internal/instrumentation"
	"github.com/slotwise/slotwise/internal/schedule"
)

type fakeGmail struct {
	email    string
	messages []gmail.MessageSummary
	bodies   map[string]string
	threads  map[string]string
	replies  []string
	err      error
}

func (f *fakeGmail) ProfileEmail() (string, error) {
	return f.email, f.err
}

func (f *fakeGmail) ListRecentMessages(int64) ([]gmail.MessageSummary, error) {
	return f.messages, f.err
}

func (f *fakeGmail) GetMessage(id string) (*gapi.Message, error) {
	thread, ok := f.threads[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return &gapi.Message{Id: id, ThreadId: thread}, nil
}

func (f *fakeGmail) GetMessageBody(id string) (string, error) {
	body, ok := f.bodies[id]
	if !ok {
		return "", fmt.Errorf("message %s not found", id)
	}
	return body, nil
}

func (f *fakeGmail) SendReply(messageID, threadID, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.replies = append(f.replies, body)
	return "reply-1", nil
}

type fakeCalendar struct {
	slots   []schedule.Slot
	booked  []calendar.EventInput
	busy    bool
	slotErr error
	bookErr error
}

func (f *fakeCalendar) IsFree(schedule.Slot) bool {
	return !f.busy
}

func (f *fakeCalendar) SuggestSlots(_ context.Context, req schedule.Request, _ []string) ([]schedule.Slot, error) {
	if f.slotErr != nil {
		return nil, f.slotErr
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return f.slots, nil
}

func (f *fakeCalendar) BookSlot(slot schedule.Slot, title, description string, attendees []string, addMeet bool) (*calendar.EventSummary, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	f.booked = append(f.booked, calendar.EventInput{
		Summary:     title,
		Description: description,
		Start:       slot.Start,
		End:         slot.End,
		Attendees:   attendees,
		AddMeet:     addMeet,
	})
	return &calendar.EventSummary{ID: "evt-1", Summary: title, Start: slot.Start, End: slot.End}, nil
}

type fakeClassifier struct {
	intent *classify.MeetingIntent
	err    error
}

func (f *fakeClassifier) Classify(context.Context, string) (*classify.MeetingIntent, error) {
	return f.intent, f.err
}

func newTestServer(t *testing.T, gm GmailAPI, cal CalendarAPI, cl IntentClassifier) *Server {
	t.Helper()
	sc := NewServerContext(context.Background(), nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := NewServer(Config{}, sc)
	s.gmailFor = func(string) (GmailAPI, error) {
		if gm == nil {
			return nil, fmt.Errorf("no token")
		}
		return gm, nil
	}
	s.calendarFor = func(string) (CalendarAPI, error) {
		if cal == nil {
			return nil, fmt.Errorf("no token")
		}
		return cal, nil
	}
	s.classifier = cl
	return s
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.health.SetReady(false)
	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuthGoogleRedirects(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")

	s := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google?account=work", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "accounts.google.com")
	assert.Contains(t, location, "state=")
	assert.Contains(t, location, "access_type=offline")
}

func TestAuthCallbackRejectsUnknownState(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=bogus&code=abc", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthCallbackReportsDeniedConsent(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}

func TestListEmails(t *testing.T) {
	gm := &fakeGmail{
		messages: []gmail.MessageSummary{
			{ID: "m1", Subject: "Quick sync?", From: "ana@example.com"},
			{ID: "m2", Subject: "Invoice", From: "billing@example.com"},
		},
	}
	s := newTestServer(t, gm, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/emails", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []gmail.MessageSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Quick sync?", got[0].Subject)
}

func TestListEmailsWithoutToken(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/emails", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClassifyEmail(t *testing.T) {
	gm := &fakeGmail{
		threads: map[string]string{"m1": "t1"},
		bodies:  map[string]string{"m1": "Can we meet Tuesday at 3pm for an hour?"},
	}
	cl := &fakeClassifier{
		intent: &classify.MeetingIntent{
			IsMeetingSuggested: true,
			Details: &classify.MeetingDetails{
				Topic: "quick sync",
				SuggestedTimes: []classify.SuggestedTime{
					{Date: "Tuesday", Time: "3pm", RawText: "Tuesday at 3pm"},
				},
			},
		},
	}
	s := newTestServer(t, gm, nil, cl)

	req := httptest.NewRequest(http.MethodGet, "/api/emails/m1/classify", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		MessageID string                  `json:"message_id"`
		ThreadID  string                  `json:"thread_id"`
		Intent    *classify.MeetingIntent `json:"intent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "m1", got.MessageID)
	assert.Equal(t, "t1", got.ThreadID)
	require.NotNil(t, got.Intent)
	assert.True(t, got.Intent.IsMeetingSuggested)
}

func TestClassifyEmailWithoutClassifier(t *testing.T) {
	gm := &fakeGmail{threads: map[string]string{"m1": "t1"}, bodies: map[string]string{"m1": "hi"}}
	s := newTestServer(t, gm, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/emails/m1/classify", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClassifyEmailUnknownMessage(t *testing.T) {
	gm := &fakeGmail{threads: map[string]string{}, bodies: map[string]string{}}
	cl := &fakeClassifier{intent: &classify.MeetingIntent{}}
	s := newTestServer(t, gm, nil, cl)

	req := httptest.NewRequest(http.MethodGet, "/api/emails/nope/classify", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSuggestSlots(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	start := time.Date(2026, 3, 3, 9, 0, 0, 0, denver)
	cal := &fakeCalendar{
		slots: []schedule.Slot{
			{Start: start, End: start.Add(30 * time.Minute), Location: denver},
		},
	}
	s := newTestServer(t, nil, cal, nil)

	rec := postJSON(t, s, "/api/slots", slotRequest{
		Anchor:          time.Date(2026, 3, 2, 12, 0, 0, 0, denver),
		DurationMinutes: 30,
		Timezone:        "America/Denver",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var got []slotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(start))
	assert.Equal(t, "America/Denver", got[0].Timezone)
}

func TestSuggestSlotsEmptyResultIsOK(t *testing.T) {
	cal := &fakeCalendar{}
	s := newTestServer(t, nil, cal, nil)

	rec := postJSON(t, s, "/api/slots", slotRequest{DurationMinutes: 30})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSuggestSlotsRejectsBadConfiguration(t *testing.T) {
	cal := &fakeCalendar{}
	s := newTestServer(t, nil, cal, nil)

	// Zero duration is a configuration error from validation.
	rec := postJSON(t, s, "/api/slots", slotRequest{DurationMinutes: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, "/api/slots", slotRequest{DurationMinutes: 30, Timezone: "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, "/api/slots", slotRequest{DurationMinutes: 30, WorkStart: "25:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedule(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	cal := &fakeCalendar{}
	gm := &fakeGmail{threads: map[string]string{"m1": "t1"}, bodies: map[string]string{"m1": "hi"}}
	s := newTestServer(t, gm, cal, nil)

	start := time.Date(2026, 3, 3, 9, 0, 0, 0, denver)
	rec := postJSON(t, s, "/api/schedule", scheduleRequest{
		Start:            start,
		End:              start.Add(30 * time.Minute),
		Timezone:         "America/Denver",
		Title:            "Quick sync",
		Attendees:        []string{"ana@example.com"},
		AddMeet:          true,
		ReplyToMessageID: "m1",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, cal.booked, 1)
	assert.Equal(t, "Quick sync", cal.booked[0].Summary)
	assert.True(t, cal.booked[0].AddMeet)
	require.Len(t, gm.replies, 1)
	assert.Contains(t, gm.replies[0], "Confirmed")
}

func TestScheduleValidatesInput(t *testing.T) {
	cal := &fakeCalendar{}
	s := newTestServer(t, nil, cal, nil)

	now := time.Now()

	rec := postJSON(t, s, "/api/schedule", scheduleRequest{Title: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, "/api/schedule", scheduleRequest{Start: now, End: now, Title: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, s, "/api/schedule", scheduleRequest{Start: now, End: now.Add(time.Hour)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, cal.booked)
}

func TestScheduleRejectsTakenSlot(t *testing.T) {
	cal := &fakeCalendar{busy: true}
	s := newTestServer(t, nil, cal, nil)

	now := time.Now().Truncate(time.Minute)
	rec := postJSON(t, s, "/api/schedule", scheduleRequest{
		Start: now,
		End:   now.Add(time.Hour),
		Title: "Planning",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, cal.booked)
}

func TestScheduleWithoutReplyDoesNotTouchGmail(t *testing.T) {
	cal := &fakeCalendar{}
	s := newTestServer(t, nil, cal, nil)

	now := time.Now().Truncate(time.Minute)
	rec := postJSON(t, s, "/api/schedule", scheduleRequest{
		Start: now,
		End:   now.Add(time.Hour),
		Title: "Planning",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, cal.booked, 1)
}

// collectHistogram collects all metrics from the reader and returns the
// float64 histogram with the given name, if it was recorded.
func collectHistogram(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Histogram[float64], bool) {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok, "metric %s is not a float64 histogram", name)
				return hist, true
			}
		}
	}
	return metricdata.Histogram[float64]{}, false
}

func TestHandlersRecordGoogleAPIMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	cal := &fakeCalendar{}
	s := newTestServer(t, nil, cal, nil)
	s.metrics = metrics

	rec := postJSON(t, s, "/api/slots", slotRequest{DurationMinutes: 30})
	require.Equal(t, http.StatusOK, rec.Code)

	hist, found := collectHistogram(t, reader, "slotwise.google.api.duration")
	require.True(t, found, "google api duration histogram was not recorded")
	require.NotEmpty(t, hist.DataPoints)

	dp := hist.DataPoints[0]
	service, _ := dp.Attributes.Value(attribute.Key("google.service"))
	assert.Equal(t, "calendar", service.AsString())
	operation, _ := dp.Attributes.Value(attribute.Key("google.operation"))
	assert.Equal(t, "freebusy", operation.AsString())
	status, _ := dp.Attributes.Value(attribute.Key("status"))
	assert.Equal(t, "success", status.AsString())
}

func TestScheduleRecordsGmailSendMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	cal := &fakeCalendar{}
	gm := &fakeGmail{threads: map[string]string{"m1": "t1"}, bodies: map[string]string{"m1": "hi"}}
	s := newTestServer(t, gm, cal, nil)
	s.metrics = metrics

	now := time.Now().Truncate(time.Minute)
	rec := postJSON(t, s, "/api/schedule", scheduleRequest{
		Start:            now,
		End:              now.Add(time.Hour),
		Title:            "Planning",
		ReplyToMessageID: "m1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	hist, found := collectHistogram(t, reader, "slotwise.google.api.duration")
	require.True(t, found, "google api duration histogram was not recorded")

	operations := make(map[string]bool)
	for _, dp := range hist.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("google.operation"))
		operations[op.AsString()] = true
	}
	assert.True(t, operations["freebusy"], "freebusy check was not recorded")
	assert.True(t, operations["insert"], "event insert was not recorded")
	assert.True(t, operations["send"], "reply send was not recorded")
}

func TestStateStoreConsumeIsOneShot(t *testing.T) {
	states := newStateStore()

	state, err := states.issue("work")
	require.NoError(t, err)

	account, ok := states.consume(state)
	require.True(t, ok)
	assert.Equal(t, "work", account)

	_, ok = states.consume(state)
	assert.False(t, ok)
}
