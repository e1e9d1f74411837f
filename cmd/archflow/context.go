package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"archflow/internal/catalog"
	"archflow/internal/config"
	"archflow/internal/logging"
	"archflow/internal/notifications"
	"archflow/internal/profile"
	"archflow/internal/store"
	"archflow/internal/workflow"
)

type globalFlags struct {
	config string
	json   bool
	locale string
}

type commandContext struct {
	flags *globalFlags

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

// runtime is the set of resources a command needs to drive the workflow
// manager. close releases the store.
type runtime struct {
	logger  *slog.Logger
	store   *store.Store
	manager *workflow.Manager
}

func (r *runtime) close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags.json
}

func (c *commandContext) locale() string {
	return strings.TrimSpace(c.flags.locale)
}

// cliLogger keeps stdout free for command output: only warnings and errors
// are written, to stderr.
func cliLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       "warn",
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

// openRuntime opens the store, loads the profile and builds the workflow
// manager. The caller must close the returned runtime.
func (c *commandContext) openRuntime(logger *slog.Logger) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		if logger, err = cliLogger(cfg); err != nil {
			return nil, err
		}
	}

	p, err := profile.Load(cfg.Paths.Profile)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	registry, err := catalog.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	mgr := workflow.NewManager(st, profile.NewHolder(p), registry,
		workflow.WithLogger(logger),
		workflow.WithDefaultLocale(cfg.Workflow.DefaultLocale),
		workflow.WithNotifier(notifications.NewService(cfg)),
	)
	return &runtime{logger: logger, store: st, manager: mgr}, nil
}

func (c *commandContext) withManager(fn func(*workflow.Manager) error) error {
	rt, err := c.openRuntime(nil)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(rt.manager)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
