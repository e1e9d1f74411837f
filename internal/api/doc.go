// Package api defines the wire-format types shared by the HTTP server and the
// CLI's JSON output. It translates store rows and workflow views into
// transport-friendly DTOs and decodes request bodies and query strings into
// workflow requests and store filters.
//
// # Key Types
//
// Job, Task, Material, Param, Batch: listing rows with their localized
// profile labels.
//
// JobDefinition: a profile job definition with its steps.
//
// ListResponse: a page of items with the offset it was read from.
//
// ErrorResponse: an error message with its classification kind.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC. State enums are passed through unchanged in upper case, the same
// values the profile and the database use.
package api
