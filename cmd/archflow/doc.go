// Command archflow manages digitization workflow jobs from the command line.
//
// Every subcommand except serve opens the configured database directly and
// drives the workflow manager in-process, so the CLI works with or without a
// running daemon. serve starts the HTTP API.
package main
