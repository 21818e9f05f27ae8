package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
}

// Tools names the external binaries the pipeline shells out to.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Watermark holds the default overlay settings applied when a caller does not
// supply its own options.
type Watermark struct {
	Image    string  `toml:"image"`
	Position string  `toml:"position"`
	Opacity  float64 `toml:"opacity"`
	Scale    float64 `toml:"scale"`
	Margin   int     `toml:"margin"`
}

// Loader configures resource download retry behaviour.
type Loader struct {
	MaxAttempts         int     `toml:"max_attempts"`
	BackoffBaseSeconds  float64 `toml:"backoff_base_seconds"`
	ImageTimeoutSeconds int     `toml:"image_timeout_seconds"`
	VideoTimeoutSeconds int     `toml:"video_timeout_seconds"`
}

// Recorder configures the encode leg of the pipeline.
type Recorder struct {
	FrameRate            int     `toml:"frame_rate"`
	ChunkSliceSeconds    int     `toml:"chunk_slice_seconds"`
	SafetyBufferSeconds  int     `toml:"safety_buffer_seconds"`
	SafetyBufferFraction float64 `toml:"safety_buffer_fraction"`
	SoftChunkCeiling     int     `toml:"soft_chunk_ceiling"`
	AudioBitrateKbps     int     `toml:"audio_bitrate_kbps"`
}

// Transcode configures the optional second-pass format conversion.
type Transcode struct {
	TimeoutFloorSeconds int    `toml:"timeout_floor_seconds"`
	TimeoutSecondsPerMB int    `toml:"timeout_seconds_per_mb"`
	Preset              string `toml:"preset"`
	CRF                 int    `toml:"crf"`
}

// Pipeline configures the outer end-to-end retry.
type Pipeline struct {
	RetryLimit        int `toml:"retry_limit"`
	RetryDelaySeconds int `toml:"retry_delay_seconds"`
}

// Memory configures the advisory memory-pressure precheck.
type Memory struct {
	MinAvailableMB  int `toml:"min_available_mb"`
	WarnAvailableMB int `toml:"warn_available_mb"`
}

// Validation holds the pre-flight input file limits.
type Validation struct {
	MaxSizeMB           int `toml:"max_size_mb"`
	WarnSizeMB          int `toml:"warn_size_mb"`
	WarnDurationSeconds int `toml:"warn_duration_seconds"`
	WarnWidth           int `toml:"warn_width"`
	WarnHeight          int `toml:"warn_height"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for inkmark.
//
// Configuration sections by subsystem:
//   - Paths: workspace, output, and log directories
//   - Tools: ffmpeg/ffprobe binary overrides
//   - Watermark: default overlay image and geometry
//   - Loader: resource download retry and timeout tuning
//   - Recorder: frame rate, chunk slicing, and the safety timeout buffer
//   - Transcode: second-pass preset and size-proportional timeout
//   - Pipeline: outer retry bounds
//   - Memory: advisory memory-pressure thresholds
//   - Validation: input size/duration/resolution limits
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Watermark     Watermark     `toml:"watermark"`
	Loader        Loader        `toml:"loader"`
	Recorder      Recorder      `toml:"recorder"`
	Transcode     Transcode     `toml:"transcode"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Memory        Memory        `toml:"memory"`
	Validation    Validation    `toml:"validation"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inkmark/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inkmark.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for decode, encode, and transcode.
func (c *Config) FFmpegBinary() string {
	if b := strings.TrimSpace(c.Tools.FFmpeg); b != "" {
		return b
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if b := strings.TrimSpace(c.Tools.FFprobe); b != "" {
		return b
	}
	return "ffprobe"
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("INKMARK_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	c.Watermark.Position = strings.ToLower(strings.TrimSpace(c.Watermark.Position))
	if c.Watermark.Position == "" {
		c.Watermark.Position = defaultWatermarkPosition
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return "", fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}
