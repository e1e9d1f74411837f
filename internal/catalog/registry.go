package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"archflow/internal/config"
	"archflow/internal/services"
)

// Entry is a configured catalog.
type Entry struct {
	ID       string
	Name     string
	Field    string
	Required bool
	Lookup   Lookup
}

// Registry resolves catalog ids from job creation requests.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// FromConfig builds HTTP clients for every configured catalog, wrapped in the
// disk cache when it is enabled.
func FromConfig(cfg *config.Config, opts ...Option) (*Registry, error) {
	reg := NewRegistry()
	if cfg == nil {
		return reg, nil
	}
	for _, cat := range cfg.Catalogs {
		clientOpts := append([]Option{WithTimeout(cat.Timeout())}, opts...)
		client, err := NewHTTPClient(cat.ID, cat.URL, clientOpts...)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "catalog", "configure", cat.ID, err)
		}
		var lookup Lookup = client
		if cfg.CatalogCache.Enabled && cfg.CatalogCache.Dir != "" && cat.CacheTTL() > 0 {
			lookup = NewCached(cat.ID, client, filepath.Join(cfg.CatalogCache.Dir, cat.ID), cat.CacheTTL())
		}
		if err := reg.Register(Entry{
			ID:       cat.ID,
			Name:     cat.Name,
			Field:    cat.Field,
			Required: cat.Required,
			Lookup:   lookup,
		}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds entry, rejecting duplicate ids.
func (r *Registry) Register(entry Entry) error {
	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" || entry.Lookup == nil {
		return services.Wrap(services.ErrConfiguration, "catalog", "register", "id and lookup are required", nil)
	}
	if _, exists := r.entries[entry.ID]; exists {
		return services.Wrap(services.ErrConfiguration, "catalog", "register", fmt.Sprintf("duplicate catalog %q", entry.ID), nil)
	}
	r.entries[entry.ID] = entry
	return nil
}

// Get returns the catalog with id.
func (r *Registry) Get(id string) (Entry, error) {
	if r != nil {
		if entry, ok := r.entries[strings.TrimSpace(id)]; ok {
			return entry, nil
		}
	}
	return Entry{}, services.Wrap(services.ErrNotFound, "catalog", "get", fmt.Sprintf("unknown catalog %q", id), nil)
}

// IDs lists registered catalog ids in order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
