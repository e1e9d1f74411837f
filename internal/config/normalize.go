package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	if err := c.normalizeCatalogs(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if value, ok := os.LookupEnv(profilePathEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.Profile = strings.TrimSpace(value)
	}
	if c.Paths.Profile, err = expandPath(strings.TrimSpace(c.Paths.Profile)); err != nil {
		return fmt.Errorf("paths.profile: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	if value, ok := os.LookupEnv(databaseDriverEnv); ok && strings.TrimSpace(value) != "" {
		c.Database.Driver = value
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "":
		c.Database.Driver = defaultDatabaseDriver
	case "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Database.Driver = DriverPostgres
	}

	if value, ok := os.LookupEnv(databaseDSNEnv); ok && strings.TrimSpace(value) != "" {
		c.Database.DSN = value
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" && c.Database.Driver == DriverSQLite {
		c.Database.DSN = filepath.Join(c.Paths.DataDir, defaultSQLiteDatabaseFile)
	}
	if c.Database.Driver == DriverSQLite && !strings.HasPrefix(c.Database.DSN, "file:") && c.Database.DSN != ":memory:" {
		expanded, err := expandPath(c.Database.DSN)
		if err != nil {
			return fmt.Errorf("database.dsn: %w", err)
		}
		c.Database.DSN = expanded
	}

	if c.Database.BusyTimeoutMS <= 0 {
		c.Database.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if c.Database.MaxIdleConns < 0 {
		c.Database.MaxIdleConns = 0
	}
	if c.Database.ConnMaxLifetimeSeconds < 0 {
		c.Database.ConnMaxLifetimeSeconds = 0
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.DefaultPageSize <= 0 {
		c.Workflow.DefaultPageSize = defaultPageSize
	}
	if c.Workflow.MaxPageSize <= 0 {
		c.Workflow.MaxPageSize = defaultMaxPageSize
	}
	c.Workflow.DefaultLocale = strings.TrimSpace(c.Workflow.DefaultLocale)
	if c.Workflow.DefaultLocale == "" {
		c.Workflow.DefaultLocale = defaultLocale
	}
}

func (c *Config) normalizeCatalogs() error {
	for i := range c.Catalogs {
		cat := &c.Catalogs[i]
		cat.ID = strings.TrimSpace(cat.ID)
		cat.Name = strings.TrimSpace(cat.Name)
		if cat.Name == "" {
			cat.Name = cat.ID
		}
		cat.URL = strings.TrimSpace(cat.URL)
		cat.Field = strings.TrimSpace(cat.Field)
		if cat.Field == "" {
			cat.Field = defaultCatalogSearchField
		}
		if cat.TimeoutSeconds <= 0 {
			cat.TimeoutSeconds = defaultCatalogTimeout
		}
		if cat.CacheTTLSeconds <= 0 {
			cat.CacheTTLSeconds = defaultCatalogCacheTTL
		}
	}
	var err error
	if strings.TrimSpace(c.CatalogCache.Dir) == "" {
		c.CatalogCache.Dir = defaultCatalogCacheDir
	}
	if c.CatalogCache.Dir, err = expandPath(c.CatalogCache.Dir); err != nil {
		return fmt.Errorf("catalog_cache.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv(ntfyTopicEnv); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
