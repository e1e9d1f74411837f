// Package catalog queries bibliographic catalogs for the metadata used to seed
// a new job's physical document.
//
// Lookups are external calls with their own availability. Callers bound them
// with a context deadline; failures carry services.ErrIntegration (joined with
// services.ErrTimeout when the deadline expired) so the workflow manager can
// decide whether to continue without enrichment.
package catalog

import (
	"context"
	"errors"

	"archflow/internal/services"
)

// Record is one catalog hit.
type Record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Metadata is the MODS document describing the record.
	Metadata string `json:"metadata"`
}

// Lookup searches a catalog by field (barcode, signature, ccnb, ...).
type Lookup interface {
	Find(ctx context.Context, field, value string) ([]Record, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, field, value string) ([]Record, error)

// Find calls f.
func (f LookupFunc) Find(ctx context.Context, field, value string) ([]Record, error) {
	return f(ctx, field, value)
}

func integrationError(catalogID, message string, err error) error {
	wrapped := services.Wrap(services.ErrIntegration, "catalog", catalogID, message, err)
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(wrapped, services.ErrTimeout)
	}
	return wrapped
}
