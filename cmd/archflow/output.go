package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// listing is a command result that can be printed as JSON or as rows.
type listing struct {
	payload any
	headers []string
	rows    [][]string
	aligns  []columnAlignment
	empty   string
}

// render writes l in the format selected by --json and by whether stdout is
// a terminal.
func (c *commandContext) render(cmd *cobra.Command, l listing) error {
	if c.jsonOutput() {
		return writeJSON(cmd, l.payload)
	}
	out := cmd.OutOrStdout()
	if len(l.rows) == 0 && l.empty != "" {
		fmt.Fprintln(out, l.empty)
		return nil
	}
	if isTerminal(out) {
		fmt.Fprintln(out, renderTable(l.headers, l.rows, l.aligns))
		return nil
	}
	renderTSV(out, l.headers, l.rows)
	return nil
}
