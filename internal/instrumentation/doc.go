// Package instrumentation provides OpenTelemetry metrics and tracing
// for slotwise.
//
// Metrics can be exported via a Prometheus scrape endpoint or pushed
// over OTLP; traces go to an OTLP collector or stdout for development.
// When disabled, all recording calls are cheap no-ops so the rest of
// the code never needs to check.
package instrumentation
