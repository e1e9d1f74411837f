// Package config loads, normalizes, and validates archflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ARCHFLOW_DATABASE_DSN. The Config type centralizes every knob the server and
// CLI need: data/log directories, the workflow profile document, the database
// driver, catalog endpoints and pagination limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
