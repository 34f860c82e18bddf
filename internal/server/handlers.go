package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/slotwise/slotwise/internal/gmail"
	"github.com/slotwise/slotwise/internal/google"
	"github.com/slotwise/slotwise/internal/logging"
	"github.com/slotwise/slotwise/internal/schedule"
	"github.com/slotwise/slotwise/internal/store"
)

const stateTTL = 10 * time.Minute

// stateStore tracks outstanding OAuth states and the account each
// consent flow was started for.
type stateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
}

type stateEntry struct {
	account string
	expires time.Time
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[string]stateEntry)}
}

func (s *stateStore) issue(account string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.states {
		if time.Now().After(e.expires) {
			delete(s.states, k)
		}
	}
	s.states[state] = stateEntry{account: account, expires: time.Now().Add(stateTTL)}
	return state, nil
}

func (s *stateStore) consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[state]
	if !ok || time.Now().After(e.expires) {
		return "", false
	}
	delete(s.states, state)
	return e.account, true
}

// staticTokenProvider serves one freshly issued token, used to look up
// the profile of the user who just completed the consent flow.
type staticTokenProvider struct {
	token *oauth2.Token
}

func (p staticTokenProvider) GetTokenForAccount(context.Context, string) (*oauth2.Token, error) {
	return p.token, nil
}

func (p staticTokenProvider) HasTokenForAccount(string) bool {
	return p.token != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func accountParam(r *http.Request) string {
	if account := r.URL.Query().Get("account"); account != "" {
		return account
	}
	return defaultAccount
}

// handleAuthGoogle starts the consent flow by redirecting to Google.
func (s *Server) handleAuthGoogle(w http.ResponseWriter, r *http.Request) {
	account := accountParam(r)

	state, err := s.states.issue(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start auth flow: %v", err)
		return
	}

	http.Redirect(w, r, google.GetAuthURL(state), http.StatusFound)
}

// handleAuthCallback finishes the consent flow: it exchanges the code,
// resolves the user's email via the Gmail profile and persists the
// token.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, "consent was denied: %s", errMsg)
		return
	}

	state := r.URL.Query().Get("state")
	account, ok := s.states.consume(state)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown or expired state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := google.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, "code exchange failed: %v", err)
		return
	}

	email := account
	if client, err := gmail.NewClientForAccountWithProvider(r.Context(), account, staticTokenProvider{token}); err == nil {
		done := s.googleOp(r.Context(), "gmail", "get_profile")
		profile, err := client.ProfileEmail()
		done(err)
		if err == nil {
			email = profile
		} else {
			slog.Warn("failed to resolve profile email", logging.Err(err))
		}
	}
	slog.Debug("authorization code exchanged",
		logging.Account(account),
		"access_token", logging.SanitizeToken(token.AccessToken),
	)

	if st := s.sc.Store(); st != nil {
		rec := &google.TokenRecord{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
		}
		if err := st.SaveToken(r.Context(), account, rec); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to persist token: %v", err)
			return
		}
	} else if err := google.CacheToken(account, token); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cache token: %v", err)
		return
	}

	s.sc.ResetClientsForAccount(account)
	s.metrics.RecordOAuthTokenRefresh(r.Context(), "authorized")
	slog.Info("account authorized",
		logging.Account(account),
		logging.UserHash(email),
		logging.Domain(email),
	)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "authenticated",
		"account": account,
		"email":   email,
	})
}

// handleListEmails returns summaries of the most recent inbox messages.
func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	client, err := s.gmailFor(accountParam(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no Gmail access for account: %v", err)
		return
	}

	var max int64
	if v := r.URL.Query().Get("max"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &max); err != nil || max < 1 {
			writeError(w, http.StatusBadRequest, "invalid max parameter: %q", v)
			return
		}
	}

	done := s.googleOp(r.Context(), "gmail", "list")
	messages, err := client.ListRecentMessages(max)
	done(err)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to list messages: %v", err)
		return
	}
	if messages == nil {
		messages = []gmail.MessageSummary{}
	}

	writeJSON(w, http.StatusOK, messages)
}

// classifyResponse pairs the classification verdict with the message it
// was computed for.
type classifyResponse struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	Intent    any    `json:"intent"`
}

// handleClassifyEmail fetches a message body and runs the meeting
// intent classifier on it.
func (s *Server) handleClassifyEmail(w http.ResponseWriter, r *http.Request) {
	if s.classifier == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier is not configured")
		return
	}

	client, err := s.gmailFor(accountParam(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no Gmail access for account: %v", err)
		return
	}

	messageID := r.PathValue("id")
	done := s.googleOp(r.Context(), "gmail", "get")
	msg, err := client.GetMessage(messageID)
	done(err)
	if err != nil {
		writeError(w, http.StatusNotFound, "failed to fetch message %s: %v", messageID, err)
		return
	}

	done = s.googleOp(r.Context(), "gmail", "get")
	body, err := client.GetMessageBody(messageID)
	done(err)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to read message body: %v", err)
		return
	}

	// With a store, the classifier sees the whole thread transcript, so
	// follow-up emails keep their context.
	input := body
	if st := s.sc.Store(); st != nil {
		m := store.Message{
			ThreadID:  msg.ThreadId,
			Sender:    gmail.HeaderValue(msg, "From"),
			Subject:   gmail.HeaderValue(msg, "Subject"),
			Content:   body,
			Timestamp: time.Now().UTC(),
		}
		if err := st.AppendMessage(r.Context(), m); err != nil {
			slog.Warn("failed to record message", "message_id", messageID, logging.Err(err))
		} else if history, err := st.ThreadHistory(r.Context(), msg.ThreadId, 10); err == nil {
			input = history
		}
	}

	start := time.Now()
	intent, err := s.classifier.Classify(r.Context(), input)
	if err != nil {
		s.metrics.RecordClassification(r.Context(), "error", time.Since(start))
		writeError(w, http.StatusBadGateway, "classification failed: %v", err)
		return
	}
	result := "no_meeting"
	if intent.IsMeetingSuggested {
		result = "meeting"
	}
	s.metrics.RecordClassification(r.Context(), result, time.Since(start))

	writeJSON(w, http.StatusOK, classifyResponse{
		MessageID: messageID,
		ThreadID:  msg.ThreadId,
		Intent:    intent,
	})
}

// slotRequest is the JSON body of POST /api/slots.
type slotRequest struct {
	Account         string    `json:"account,omitempty"`
	Anchor          time.Time `json:"anchor,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	HorizonDays     int       `json:"horizon_days,omitempty"`
	WorkStart       string    `json:"work_start,omitempty"`
	WorkEnd         string    `json:"work_end,omitempty"`
	Timezone        string    `json:"timezone,omitempty"`
	GridMinutes     int       `json:"grid_minutes,omitempty"`
	MaxResults      int       `json:"max_results,omitempty"`
	Calendars       []string  `json:"calendars,omitempty"`
}

// slotResponse is one suggested slot in the API response.
type slotResponse struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Display  string    `json:"display"`
	Timezone string    `json:"timezone"`
}

func (req slotRequest) toScheduleRequest() (schedule.Request, error) {
	loc := time.Local
	if req.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(req.Timezone)
		if err != nil {
			return schedule.Request{}, fmt.Errorf("unknown timezone %q", req.Timezone)
		}
	}

	workStart := schedule.WallClock{Hour: 9}
	workEnd := schedule.WallClock{Hour: 17}
	var err error
	if req.WorkStart != "" {
		if workStart, err = schedule.ParseWallClock(req.WorkStart); err != nil {
			return schedule.Request{}, fmt.Errorf("invalid work_start: %w", err)
		}
	}
	if req.WorkEnd != "" {
		if workEnd, err = schedule.ParseWallClock(req.WorkEnd); err != nil {
			return schedule.Request{}, fmt.Errorf("invalid work_end: %w", err)
		}
	}

	anchor := req.Anchor
	if anchor.IsZero() {
		anchor = time.Now()
	}
	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = 7
	}
	grid := req.GridMinutes
	if grid == 0 {
		grid = 30
	}

	return schedule.Request{
		Anchor:      anchor,
		Duration:    time.Duration(req.DurationMinutes) * time.Minute,
		HorizonDays: horizon,
		WorkStart:   workStart,
		WorkEnd:     workEnd,
		Location:    loc,
		GridMinutes: grid,
		MaxResults:  req.MaxResults,
	}, nil
}

func (s *Server) account(req slotRequest) string {
	if req.Account != "" {
		return req.Account
	}
	return defaultAccount
}

// handleSuggestSlots computes free slots against the account's
// calendars. An empty result is a successful response with an empty
// list.
func (s *Server) handleSuggestSlots(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	scheduleReq, err := req.toScheduleRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	client, err := s.calendarFor(s.account(req))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no Calendar access for account: %v", err)
		return
	}

	calendarIDs := req.Calendars
	if len(calendarIDs) == 0 {
		calendarIDs = s.config.CalendarIDs
	}

	done := s.googleOp(r.Context(), "calendar", "freebusy")
	slots, err := client.SuggestSlots(r.Context(), scheduleReq, calendarIDs)
	done(err)
	if err != nil {
		var confErr *schedule.ConfigurationError
		var inputErr *schedule.InputDataError
		switch {
		case errors.As(err, &confErr), errors.As(err, &inputErr):
			s.metrics.RecordSlotComputation(r.Context(), "invalid", 0)
			writeError(w, http.StatusBadRequest, "%v", err)
		default:
			s.metrics.RecordSlotComputation(r.Context(), "error", 0)
			writeError(w, http.StatusBadGateway, "failed to compute slots: %v", err)
		}
		return
	}
	s.metrics.RecordSlotComputation(r.Context(), "success", len(slots))

	response := make([]slotResponse, 0, len(slots))
	for _, slot := range slots {
		response = append(response, slotResponse{
			Start:    slot.Start,
			End:      slot.End,
			Display:  slot.String(),
			Timezone: slot.Location.String(),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// scheduleRequest is the JSON body of POST /api/schedule.
type scheduleRequest struct {
	Account          string    `json:"account,omitempty"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Timezone         string    `json:"timezone,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Attendees        []string  `json:"attendees,omitempty"`
	AddMeet          bool      `json:"add_meet,omitempty"`
	ReplyToMessageID string    `json:"reply_to_message_id,omitempty"`
	ReplyBody        string    `json:"reply_body,omitempty"`
}

// handleSchedule books a chosen slot as a calendar event and optionally
// sends a confirmation reply on the originating email thread.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Start.IsZero() || req.End.IsZero() || !req.Start.Before(req.End) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	loc := time.Local
	if req.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(req.Timezone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown timezone %q", req.Timezone)
			return
		}
	}

	account := req.Account
	if account == "" {
		account = defaultAccount
	}

	client, err := s.calendarFor(account)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no Calendar access for account: %v", err)
		return
	}

	slot := schedule.Slot{Start: req.Start, End: req.End, Location: loc}
	done := s.googleOp(r.Context(), "calendar", "freebusy")
	free := client.IsFree(slot)
	done(nil)
	if !free {
		writeError(w, http.StatusConflict, "slot %s is no longer free", slot)
		return
	}

	done = s.googleOp(r.Context(), "calendar", "insert")
	event, err := client.BookSlot(slot, req.Title, req.Description, req.Attendees, req.AddMeet)
	done(err)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to book slot: %v", err)
		return
	}
	s.metrics.RecordEventBooked(r.Context())
	slog.Info("slot booked", "event_id", event.ID, "start", req.Start, "title", req.Title)

	var replyID string
	if req.ReplyToMessageID != "" {
		gm, err := s.gmailFor(account)
		if err != nil {
			writeError(w, http.StatusBadGateway, "event booked but no Gmail access for reply: %v", err)
			return
		}
		done = s.googleOp(r.Context(), "gmail", "get")
		msg, err := gm.GetMessage(req.ReplyToMessageID)
		done(err)
		if err != nil {
			writeError(w, http.StatusBadGateway, "event booked but reply target not found: %v", err)
			return
		}
		body := req.ReplyBody
		if body == "" {
			body = fmt.Sprintf("Confirmed: %s on %s.", req.Title, slot.String())
		}
		done = s.googleOp(r.Context(), "gmail", "send")
		replyID, err = gm.SendReply(req.ReplyToMessageID, msg.ThreadId, body)
		done(err)
		if err != nil {
			writeError(w, http.StatusBadGateway, "event booked but reply failed: %v", err)
			return
		}
		s.metrics.RecordReplySent(r.Context())
	}

	response := map[string]any{"event": event}
	if replyID != "" {
		response["reply_id"] = replyID
	}
	writeJSON(w, http.StatusCreated, response)
}
