// Package server provides the HTTP API of the scheduling assistant.
//
// The server exposes the OAuth consent flow, inbox listing and
// classification, free-slot suggestion and event booking as a JSON API,
// plus health endpoints for Kubernetes probes and an optional dedicated
// metrics listener for Prometheus scraping.
package server
