package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"archflow/internal/config"
	"archflow/internal/logging"
	"archflow/internal/preflight"
	"archflow/internal/store"
	"archflow/internal/workflow"
)

// Daemon serves the workflow API and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *workflow.Manager
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running  bool
	Address  string
	LockPath string
	Driver   string
}

// New constructs a daemon over an open store and manager.
func New(cfg *config.Config, st *store.Store, mgr *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || mgr == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		manager:  mgr,
		api:      newAPIServer(cfg, st, mgr, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks and starts the API
// listener. The listener shuts down when ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another archflow daemon instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg)
	for _, r := range results {
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("optional", r.Optional),
		}
		if r.Passed {
			d.logger.Debug("preflight check passed", logging.Args(attrs...)...)
			continue
		}
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "preflight check failed", "preflight_failed",
			append(attrs,
				logging.String(logging.FieldErrorHint, "fix the path or endpoint named in the check"),
				logging.String(logging.FieldImpact, impactOf(r)),
			)...,
		)
	}
	if err := preflight.Err(results); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	if err := d.api.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("archflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.String("driver", d.store.Driver()),
	)
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Stop stops the API listener and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("archflow daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:  d.running.Load(),
		Address:  d.api.addr(),
		LockPath: d.lockPath,
		Driver:   d.store.Driver(),
	}
}

func impactOf(r preflight.Result) string {
	if r.Optional {
		return "catalog lookups against this endpoint will be skipped"
	}
	return "daemon will not start"
}
