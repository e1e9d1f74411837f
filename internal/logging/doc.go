// Package logging assembles structured slog loggers and formatting helpers used
// across archflow.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request handlers and the
// workflow manager tag log lines with correlation, job and task identifiers.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
