package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateCatalogs(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("database.driver must be one of sqlite, postgres, mysql (got %q)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the %s driver. Set %s or edit the config file", c.Database.Driver, databaseDSNEnv)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return errors.New("database.max_idle_conns must not exceed database.max_open_conns")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.DefaultPageSize > c.Workflow.MaxPageSize {
		return fmt.Errorf("workflow.default_page_size (%d) must not exceed workflow.max_page_size (%d)",
			c.Workflow.DefaultPageSize, c.Workflow.MaxPageSize)
	}
	if _, err := language.Parse(c.Workflow.DefaultLocale); err != nil {
		return fmt.Errorf("workflow.default_locale: %w", err)
	}
	return nil
}

func (c *Config) validateCatalogs() error {
	seen := make(map[string]struct{}, len(c.Catalogs))
	for i, cat := range c.Catalogs {
		if cat.ID == "" {
			return fmt.Errorf("catalogs[%d].id must be set", i)
		}
		if _, dup := seen[cat.ID]; dup {
			return fmt.Errorf("catalogs[%d].id %q is not unique", i, cat.ID)
		}
		seen[cat.ID] = struct{}{}
		parsed, err := url.Parse(cat.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("catalogs[%d].url must be an absolute http(s) URL (got %q)", i, cat.URL)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("catalogs[%d].url scheme %q is not supported", i, parsed.Scheme)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	u, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
