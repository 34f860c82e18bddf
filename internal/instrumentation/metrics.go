package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records the observability metrics of the scheduling flow.
// The zero value is a no-op recorder.
type Metrics struct {
	httpRequestDuration metric.Float64Histogram
	googleAPIDuration   metric.Float64Histogram
	slotComputations    metric.Int64Counter
	slotsEmitted        metric.Int64Counter
	classifierDuration  metric.Float64Histogram
	oauthTokenRefreshes metric.Int64Counter
	repliesSent         metric.Int64Counter
	eventsBooked        metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.httpRequestDuration, err = meter.Float64Histogram(
		"slotwise.http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	if m.googleAPIDuration, err = meter.Float64Histogram(
		"slotwise.google.api.duration",
		metric.WithDescription("Google API call duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create google api histogram: %w", err)
	}

	if m.slotComputations, err = meter.Int64Counter(
		"slotwise.slots.computations",
		metric.WithDescription("Number of slot computations by status"),
	); err != nil {
		return nil, fmt.Errorf("failed to create slot computations counter: %w", err)
	}

	if m.slotsEmitted, err = meter.Int64Counter(
		"slotwise.slots.emitted",
		metric.WithDescription("Total slots returned to callers"),
	); err != nil {
		return nil, fmt.Errorf("failed to create slots emitted counter: %w", err)
	}

	if m.classifierDuration, err = meter.Float64Histogram(
		"slotwise.classifier.duration",
		metric.WithDescription("Email classification duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create classifier histogram: %w", err)
	}

	if m.oauthTokenRefreshes, err = meter.Int64Counter(
		"slotwise.oauth.token.refreshes",
		metric.WithDescription("OAuth token refresh attempts by result"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token refresh counter: %w", err)
	}

	if m.repliesSent, err = meter.Int64Counter(
		"slotwise.gmail.replies.sent",
		metric.WithDescription("Reply emails sent"),
	); err != nil {
		return nil, fmt.Errorf("failed to create replies counter: %w", err)
	}

	if m.eventsBooked, err = meter.Int64Counter(
		"slotwise.calendar.events.booked",
		metric.WithDescription("Calendar events created for chosen slots"),
	); err != nil {
		return nil, fmt.Errorf("failed to create events booked counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m.httpRequestDuration == nil {
		return
	}
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	))
}

// RecordGoogleAPIOperation records one Google API call.
//
// service is "calendar" or "gmail"; operation is the API method
// (freebusy, insert, send, ...); status is "success" or "error".
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.googleAPIDuration == nil {
		return
	}
	m.googleAPIDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("google.service", service),
		attribute.String("google.operation", operation),
		attribute.String("status", status),
	))
}

// RecordSlotComputation records one engine invocation and the number of
// slots it produced.
func (m *Metrics) RecordSlotComputation(ctx context.Context, status string, slots int) {
	if m.slotComputations == nil {
		return
	}
	m.slotComputations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
	if slots > 0 {
		m.slotsEmitted.Add(ctx, int64(slots))
	}
}

// RecordClassification records one classifier call.
func (m *Metrics) RecordClassification(ctx context.Context, result string, duration time.Duration) {
	if m.classifierDuration == nil {
		return
	}
	m.classifierDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordOAuthTokenRefresh records a token refresh attempt.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshes == nil {
		return
	}
	m.oauthTokenRefreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordReplySent records one reply email delivered.
func (m *Metrics) RecordReplySent(ctx context.Context) {
	if m.repliesSent == nil {
		return
	}
	m.repliesSent.Add(ctx, 1)
}

// RecordEventBooked records one calendar event created.
func (m *Metrics) RecordEventBooked(ctx context.Context) {
	if m.eventsBooked == nil {
		return
	}
	m.eventsBooked.Add(ctx, 1)
}
