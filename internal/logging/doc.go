// Package logging assembles the structured slog loggers used across inkmark.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes small attr helpers so pipeline code can tag log lines
// with run IDs and phases consistently. A no-op logger is provided for tests
// and wiring code that cannot fail.
package logging
