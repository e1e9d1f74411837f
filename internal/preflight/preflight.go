package preflight

import (
	"context"
	"fmt"
	"strings"

	"archflow/internal/config"
	"archflow/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.CatalogCache.Enabled {
		results = append(results, CheckDirectoryAccess("Catalog cache", cfg.CatalogCache.Dir))
	}
	results = append(results, CheckProfile(cfg.Paths.Profile))
	for _, cat := range cfg.Catalogs {
		results = append(results, CheckCatalog(ctx, cat))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarizes failed required checks as a configuration error, or
// returns nil when every required check passed.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "run", strings.Join(parts, "; "), nil)
}
