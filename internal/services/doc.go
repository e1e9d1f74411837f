// Package services defines shared utilities consumed by the workflow manager,
// the HTTP server and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, job and task ids and
//     the acting user for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (validation, not found, conflict, integration) with errors.Is.
package services
