package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gapi "google.golang.org/api/gmail/v1"

	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/classify"
	"github.com/slotwise/slotwise/internal/gmail"
	"github.com/slotwise/slotwise/internal/instrumentation"
	"github.com/slotwise/slotwise/internal/logging"
	"github.com/slotwise/slotwise/internal/schedule"
)

const (
	// DefaultAddr is the default address for the API server.
	DefaultAddr = ":8080"

	// defaultAccount is used when a request names no account.
	defaultAccount = "default"
)

// GmailAPI is the slice of the Gmail client the handlers use.
type GmailAPI interface {
	ProfileEmail() (string, error)
	ListRecentMessages(maxResults int64) ([]gmail.MessageSummary, error)
	GetMessage(messageID string) (*gapi.Message, error)
	GetMessageBody(messageID string) (string, error)
	SendReply(messageID, threadID, body string) (string, error)
}

// CalendarAPI is the slice of the Calendar client the handlers use.
type CalendarAPI interface {
	SuggestSlots(ctx context.Context, req schedule.Request, calendarIDs []string) ([]schedule.Slot, error)
	IsFree(slot schedule.Slot) bool
	BookSlot(slot schedule.Slot, title, description string, attendees []string, addMeet bool) (*calendar.EventSummary, error)
}

// IntentClassifier decides whether an email suggests a meeting.
type IntentClassifier interface {
	Classify(ctx context.Context, emailBody string) (*classify.MeetingIntent, error)
}

// Config holds the configuration of the API server.
type Config struct {
	// Addr is the address to bind to (e.g., ":8080").
	Addr string

	// CalendarIDs are the calendars consulted for availability.
	// Defaults to the primary calendar.
	CalendarIDs []string

	// Metrics records request and domain metrics. Optional; the zero
	// recorder is used when nil.
	Metrics *instrumentation.Metrics
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	sc         *ServerContext
	health     *HealthChecker
	httpServer *http.Server
	metrics    *instrumentation.Metrics
	states     *stateStore

	// Client lookup is indirected so tests can substitute fakes.
	gmailFor    func(account string) (GmailAPI, error)
	calendarFor func(account string) (CalendarAPI, error)
	classifier  IntentClassifier
}

// NewServer creates an API server on top of the given server context.
func NewServer(config Config, sc *ServerContext) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	s := &Server{
		config:  config,
		sc:      sc,
		health:  NewHealthChecker(sc),
		metrics: metrics,
		states:  newStateStore(),
	}
	s.gmailFor = func(account string) (GmailAPI, error) {
		return sc.GmailClientForAccount(account)
	}
	s.calendarFor = func(account string) (CalendarAPI, error) {
		return sc.CalendarClientForAccount(account)
	}
	if c := sc.Classifier(); c != nil {
		s.classifier = c
	}
	return s
}

// Health returns the health checker, so callers can flip readiness
// during shutdown.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.health.RegisterHealthEndpoints(mux)

	mux.Handle("GET /auth/google", s.instrument("/auth/google", s.handleAuthGoogle))
	mux.Handle("GET /auth/callback", s.instrument("/auth/callback", s.handleAuthCallback))
	mux.Handle("GET /api/emails", s.instrument("/api/emails", s.handleListEmails))
	mux.Handle("GET /api/emails/{id}/classify", s.instrument("/api/emails/{id}/classify", s.handleClassifyEmail))
	mux.Handle("POST /api/slots", s.instrument("/api/slots", s.handleSuggestSlots))
	mux.Handle("POST /api/schedule", s.instrument("/api/schedule", s.handleSchedule))

	return mux
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("starting API server", "addr", s.config.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the API server. Readiness is dropped
// first so probes fail before in-flight requests drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		slog.Info("shutting down API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, route, rec.status, duration)
		slog.Debug("request served",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", duration,
		)
	})
}

// googleOp starts timing one Google API call. The returned func takes
// the call error and records the measurement on the metrics recorder.
func (s *Server) googleOp(ctx context.Context, service, operation string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		duration := time.Since(start)
		s.metrics.RecordGoogleAPIOperation(ctx, service, operation, status, duration)
		slog.Debug("google api call",
			logging.Service(service),
			logging.Operation(operation),
			logging.Status(status),
			"duration", duration,
		)
	}
}
