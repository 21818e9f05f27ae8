package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
workspace_dir = "` + filepath.Join(dir, "work") + `"
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[watermark]
position = "top-left"
opacity = 0.5

[loader]
max_attempts = 5

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Watermark.Position != "top-left" {
		t.Fatalf("position = %q", cfg.Watermark.Position)
	}
	if cfg.Watermark.Opacity != 0.5 {
		t.Fatalf("opacity = %v", cfg.Watermark.Opacity)
	}
	if cfg.Loader.MaxAttempts != 5 {
		t.Fatalf("max_attempts = %d", cfg.Loader.MaxAttempts)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %s/%s", cfg.Logging.Format, cfg.Logging.Level)
	}
	// Untouched sections keep defaults.
	if cfg.Recorder.FrameRate != Default().Recorder.FrameRate {
		t.Fatalf("frame_rate = %d, want default", cfg.Recorder.FrameRate)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to be reported")
	}
	if cfg.Watermark.Position != Default().Watermark.Position {
		t.Fatal("missing file should fall back to defaults")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Config)
		fragment string
	}{
		{"bad position", func(c *Config) { c.Watermark.Position = "middle" }, "watermark.position"},
		{"opacity above one", func(c *Config) { c.Watermark.Opacity = 1.5 }, "watermark.opacity"},
		{"zero scale", func(c *Config) { c.Watermark.Scale = 0 }, "watermark.scale"},
		{"negative margin", func(c *Config) { c.Watermark.Margin = -1 }, "watermark.margin"},
		{"zero attempts", func(c *Config) { c.Loader.MaxAttempts = 0 }, "loader.max_attempts"},
		{"zero backoff", func(c *Config) { c.Loader.BackoffBaseSeconds = 0 }, "loader.backoff_base_seconds"},
		{"zero frame rate", func(c *Config) { c.Recorder.FrameRate = 0 }, "recorder.frame_rate"},
		{"fraction above one", func(c *Config) { c.Recorder.SafetyBufferFraction = 1.5 }, "recorder.safety_buffer_fraction"},
		{"crf out of range", func(c *Config) { c.Transcode.CRF = 99 }, "transcode.crf"},
		{"negative retries", func(c *Config) { c.Pipeline.RetryLimit = -1 }, "pipeline.retry_limit"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.fragment) {
			t.Errorf("%s: error %q missing %q", tc.name, err, tc.fragment)
		}
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := expandPath("~/videos")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "videos") {
		t.Fatalf("got %q", got)
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	written, err := CreateSample(target)
	if err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if written != target {
		t.Fatalf("written = %q, want %q", written, target)
	}
	if _, err := CreateSample(target); err == nil {
		t.Fatal("expected second CreateSample to fail")
	}
}

func TestSampleConfigParses(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, err := CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, _, err := Load(target); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}
