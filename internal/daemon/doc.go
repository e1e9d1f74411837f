// Package daemon runs the long-lived archflow process.
//
// It acquires a flock-based single-instance lock under the data directory,
// runs preflight checks and serves the JSON API over the workflow manager
// until its context is cancelled. Handlers are thin: they decode requests
// with package api, call the manager and map error kinds to status codes
// (400 validation, 404 not found, 409 conflict, 502 integration, 500
// otherwise).
package daemon
