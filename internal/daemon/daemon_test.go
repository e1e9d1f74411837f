package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"archflow/internal/api"
	"archflow/internal/daemon"
	"archflow/internal/services"
	"archflow/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, st := testsupport.NewManager(t, cfg, nil)
	d, err := daemon.New(cfg, st, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running || status.Address == "" {
		t.Fatalf("expected daemon to report running with an address, got %#v", status)
	}
	if _, err := os.Stat(status.LockPath); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	resp, err := http.Get("http://" + status.Address + "/api/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	var health api.HealthResponse
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil || health.Status != "ok" {
		t.Fatalf("unexpected health: %#v (%v)", health, err)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, st := testsupport.NewManager(t, cfg, nil)
	first, err := daemon.New(cfg, st, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, st, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention to prevent a second instance")
	}
}

func TestDaemonRefusesFailedPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, st := testsupport.NewManager(t, cfg, nil)
	if err := os.Remove(cfg.Paths.Profile); err != nil {
		t.Fatalf("remove profile: %v", err)
	}
	d, err := daemon.New(cfg, st, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	err = d.Start(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if d.Status().Running {
		t.Fatal("daemon must not run after failed preflight")
	}
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, st := testsupport.NewManager(t, cfg, nil)
	d, err := daemon.New(cfg, st, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !d.Status().Running {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("daemon did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}
