// Package google provides OAuth2 authentication and token management for
// the Google APIs used by slotwise (Gmail and Calendar).
//
// Tokens can come from disk files (CLI usage) or from the SQLite store
// (server usage, one token per authenticated user). The TokenProvider
// interface lets the calendar and gmail clients stay agnostic to where
// tokens live.
package google
