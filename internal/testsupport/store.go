package testsupport

import (
	"context"
	"testing"

	"reidpipe/internal/config"
	"reidpipe/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun seeds a run record for tests using the provided store.
func NewRun(t testing.TB, store *runstore.Store, id string) *runstore.Run {
	t.Helper()

	run, err := store.CreateRun(context.Background(), id, Experiment(), nil)
	if err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
