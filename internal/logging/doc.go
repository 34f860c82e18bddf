// Package logging provides shared slog attribute helpers so log lines
// use consistent keys across the codebase, plus sanitizers that keep
// email addresses and tokens out of log output.
package logging
