package testsupport

import (
	"context"
	"testing"

	"archflow/internal/config"
	"archflow/internal/profile"
	"archflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustLoadProfile parses the profile referenced by cfg.
func MustLoadProfile(t testing.TB, cfg *config.Config) *profile.Profile {
	t.Helper()

	p, err := profile.Load(cfg.Paths.Profile)
	if err != nil {
		t.Fatalf("profile.Load: %v", err)
	}
	return p
}

// NewJob inserts a bare OPEN job row without tasks.
func NewJob(t testing.TB, st *store.Store, profileName, label string) *store.Job {
	t.Helper()

	job := &store.Job{ProfileName: profileName, Label: label, State: store.JobOpen}
	if err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertJob(context.Background(), job)
	}); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	return job
}
