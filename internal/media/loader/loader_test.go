package loader

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"inkmark/internal/logging"
	"inkmark/internal/services"
	"inkmark/internal/testsupport"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Loader.BackoffBaseSeconds = 1.0
	l := New(cfg, logging.NewNop())

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, expected := range want {
		if got := l.Backoff(i + 1); got != expected {
			t.Errorf("Backoff(%d) = %s, want %s", i+1, got, expected)
		}
	}
}

func TestLoadExhaustsAttemptsOnServerError(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Loader.MaxAttempts = 3
	cfg.Loader.BackoffBaseSeconds = 1.0
	l := New(cfg, logging.NewNop())

	var slept []time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := l.Load(context.Background(), server.URL+"/image.png", KindImage)
	if err == nil {
		t.Fatal("expected load to fail")
	}
	if !errors.Is(err, services.ErrResourceLoad) {
		t.Fatalf("expected resource load marker, got %v", err)
	}

	var loadErr *Error
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *loader.Error in chain, got %v", err)
	}
	if loadErr.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", loadErr.Attempts)
	}
	if loadErr.Cause != CauseHTTPStatus {
		t.Fatalf("Cause = %s, want %s", loadErr.Cause, CauseHTTPStatus)
	}
	if hits != 3 {
		t.Fatalf("server saw %d requests, want 3", hits)
	}

	// Backoff applies between attempts only: two gaps for three attempts.
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
	if slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("backoff gaps = %v, want [1s 2s]", slept)
	}
}

func TestLoadReportsAttemptsActuallyMade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		// Cancellation mid-run ends the retry loop after this attempt.
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Loader.MaxAttempts = 3
	l := New(cfg, logging.NewNop())
	l.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := l.Load(ctx, server.URL+"/image.png", KindImage)
	if err == nil {
		t.Fatal("expected load to fail")
	}

	var loadErr *Error
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *loader.Error in chain, got %v", err)
	}
	if loadErr.Attempts != 1 {
		t.Fatalf("Attempts = %d, want the single attempt made, not the full budget", loadErr.Attempts)
	}
	if hits != 1 {
		t.Fatalf("server saw %d requests, want 1", hits)
	}
}

func TestLoadDownloadsAndDecodesImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	png := testsupport.PNGBytes(t, 24, 16, color.RGBA{R: 255, A: 255})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer server.Close()

	l := New(cfg, logging.NewNop())
	handle, err := l.Load(context.Background(), server.URL+"/mark.png", KindImage)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if handle.Image == nil {
		t.Fatal("expected decoded image")
	}
	bounds := handle.Image.Bounds()
	if bounds.Dx() != 24 || bounds.Dy() != 16 {
		t.Fatalf("decoded bounds %v, want 24x16", bounds)
	}
	if _, statErr := os.Stat(handle.Path); statErr != nil {
		t.Fatalf("staged file missing: %v", statErr)
	}

	if err := handle.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, statErr := os.Stat(handle.Path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("staged download should be deleted on release")
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestLoadKeepsLocalFilesOnRelease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(t.TempDir(), "mark.png")
	testsupport.WritePNG(t, path, 10, 10, color.RGBA{B: 255, A: 255})

	l := New(cfg, logging.NewNop())
	handle, err := l.Load(context.Background(), path, KindImage)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if handle.Path != path {
		t.Fatalf("Path = %q, want %q", handle.Path, path)
	}

	if err := handle.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatal("local files must survive release")
	}
}

func TestLoadTagsFilesystemCause(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Loader.MaxAttempts = 1
	l := New(cfg, logging.NewNop())

	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.png"), KindImage)
	var loadErr *Error
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *loader.Error, got %v", err)
	}
	if loadErr.Cause != CauseFilesystem {
		t.Fatalf("Cause = %s, want %s", loadErr.Cause, CauseFilesystem)
	}
}

func TestLoadTagsDecodeCause(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Loader.MaxAttempts = 1
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l := New(cfg, logging.NewNop())
	_, err := l.Load(context.Background(), path, KindImage)
	var loadErr *Error
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *loader.Error, got %v", err)
	}
	if loadErr.Cause != CauseDecode {
		t.Fatalf("Cause = %s, want %s", loadErr.Cause, CauseDecode)
	}
}
