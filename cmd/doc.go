// Package cmd implements the command-line interface for slotwise.
//
// This package provides the following commands:
//   - auth: Run the Google OAuth consent flow and cache the token
//   - suggest: Print free meeting slots for the coming days
//   - serve: Start the HTTP API server
//   - version: Display version information
//
// The suggest command is the default command when no subcommand is
// specified.
package cmd
