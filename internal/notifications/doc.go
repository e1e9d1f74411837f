// Package notifications delivers workflow milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Workflow code
// depends only on the Service interface and publishes an Event with a small
// string payload; formatting lives here.
package notifications
