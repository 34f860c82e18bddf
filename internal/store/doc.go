// Package store manages SQLite persistence for slotwise.
//
// Two things are persisted: OAuth tokens keyed by user email (so the
// HTTP server survives restarts without re-running the consent flow)
// and per-thread message history (so the classifier can be given the
// conversation so far). The slot engine itself persists nothing.
package store
