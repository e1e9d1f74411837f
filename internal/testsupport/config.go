package testsupport

import (
	"path/filepath"
	"testing"

	"archflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The database is a SQLite file under the data directory and the profile is a
// private copy of the shared workflow fixture.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.Profile = WriteProfile(t, base)
	cfgVal.Database.Driver = config.DriverSQLite
	cfgVal.Database.DSN = filepath.Join(cfgVal.Paths.DataDir, "archflow.db")
	cfgVal.CatalogCache.Dir = filepath.Join(base, "catalog-cache")
	cfgVal.CatalogCache.Enabled = false
	cfgVal.Catalogs = nil

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDatabase points the test config at another database.
func WithDatabase(driver, dsn string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.Driver = driver
		b.cfg.Database.DSN = dsn
	}
}

// WithPageSize overrides the default and maximum listing page sizes.
func WithPageSize(defaultSize, maxSize int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.DefaultPageSize = defaultSize
		b.cfg.Workflow.MaxPageSize = maxSize
	}
}

// WithCatalog appends a catalog endpoint to the test config.
func WithCatalog(cat config.Catalog) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalogs = append(b.cfg.Catalogs, cat)
	}
}

// WithCatalogCache enables the on-disk catalog cache.
func WithCatalogCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.CatalogCache.Enabled = true
	}
}

// WithProfileDocument replaces the profile with the given XML text.
func WithProfileDocument(doc string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.Profile = writeText(b.t, filepath.Join(b.baseDir, "custom-workflow.xml"), doc)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
