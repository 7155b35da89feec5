// Package logging assembles structured slog loggers used across emotrack.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context helpers that tag log lines with session IDs, capture cycles,
// external service names, and correlation IDs. Warnings and errors go through
// WarnWithContext and ErrorWithContext so each line carries an event type and
// an operator hint.
package logging
