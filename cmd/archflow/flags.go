package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archflow/internal/api"
	"archflow/internal/services"
)

// queryFlag binds a command-line flag to a listing query key, so the CLI
// decodes filters exactly like the HTTP API does.
type queryFlag struct {
	name  string
	key   string
	usage string
	multi bool
}

type queryFlags struct {
	slices  map[string]*[]string
	singles map[string]*string
}

func addQueryFlags(cmd *cobra.Command, flags ...queryFlag) *queryFlags {
	qf := &queryFlags{
		slices:  make(map[string]*[]string),
		singles: make(map[string]*string),
	}
	paging := []queryFlag{
		{name: "offset", key: api.QueryOffset, usage: "Skip this many rows"},
		{name: "max", key: api.QueryMax, usage: "Return at most this many rows"},
		{name: "sort", key: api.QuerySort, usage: "Sort key, prefix with - for descending"},
	}
	for _, f := range append(flags, paging...) {
		if f.multi {
			qf.slices[f.key] = cmd.Flags().StringSlice(f.name, nil, f.usage+" (repeatable)")
			continue
		}
		qf.singles[f.key] = cmd.Flags().String(f.name, "", f.usage)
	}
	return qf
}

func (q *queryFlags) values(locale string) url.Values {
	values := url.Values{}
	for key, list := range q.slices {
		for _, v := range *list {
			values.Add(key, v)
		}
	}
	for key, v := range q.singles {
		if s := strings.TrimSpace(*v); s != "" {
			values.Set(key, s)
		}
	}
	if locale != "" {
		values.Set(api.QueryLocale, locale)
	}
	return values
}

func timeRangeFlags(prefix string) []queryFlag {
	return []queryFlag{
		{name: prefix + "-from", key: prefix + "From", usage: "Earliest " + prefix + " time (RFC3339 or YYYY-MM-DD)"},
		{name: prefix + "-to", key: prefix + "To", usage: "Latest " + prefix + " time (RFC3339 or YYYY-MM-DD)"},
	}
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "cli", "parse", fmt.Sprintf("%s id %q is not a positive number", kind, raw), nil)
	}
	return id, nil
}

// parseParams turns name=value pairs into a parameter map. An empty value
// clears the parameter.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, services.Wrap(services.ErrValidation, "cli", "parse", fmt.Sprintf("parameter %q must be name=value", pair), nil)
		}
		params[name] = value
	}
	return params, nil
}

// textFlag returns a pointer to the flag's value when it was set, else nil.
func textFlag(cmd *cobra.Command, name string, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func intFlag(cmd *cobra.Command, name string, value int) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

// readText returns inline when set, else the contents of path.
func readText(inline, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return inline, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
