package testsupport

import (
	"context"
	"testing"

	"inkmark/internal/config"
	"inkmark/internal/runstore"
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

// NewRun creates a run row for tests using the provided store.
func NewRun(t testing.TB, store *runstore.Store, sourceURL, watermarkURL string) *runstore.Run {
	t.Helper()

	run := &runstore.Run{
		ID:           "test-" + sourceURL,
		SourceURL:    sourceURL,
		WatermarkURL: watermarkURL,
		OutputFormat: "webm",
		Status:       runstore.StatusLoading,
	}
	if err := store.Create(context.Background(), run); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return run
}
