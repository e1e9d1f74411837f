package testsupport

import (
	"testing"

	"archflow/internal/config"
	"archflow/internal/profile"
	"archflow/internal/store"
	"archflow/internal/workflow"
)

// SampleMODS is a minimal MODS record used to seed jobs.
const SampleMODS = `<mods xmlns="http://www.loc.gov/mods/v3">
  <titleInfo><title>Sample Volume</title><partNumber>1</partNumber></titleInfo>
  <identifier type="barcode">2610000001</identifier>
</mods>`

// NewManager opens a store for cfg, loads its profile and returns a manager
// over both. catalogs may be nil.
func NewManager(t testing.TB, cfg *config.Config, catalogs workflow.CatalogResolver, opts ...workflow.ManagerOption) (*workflow.Manager, *store.Store) {
	t.Helper()

	st := MustOpenStore(t, cfg)
	holder := profile.NewHolder(MustLoadProfile(t, cfg))
	return workflow.NewManager(st, holder, catalogs, opts...), st
}
