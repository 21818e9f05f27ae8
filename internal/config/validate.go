package config

import (
	"errors"
	"fmt"
)

var watermarkPositions = map[string]struct{}{
	"top-left":     {},
	"top-right":    {},
	"bottom-left":  {},
	"bottom-right": {},
	"center":       {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWatermark(); err != nil {
		return err
	}
	if err := c.validateLoader(); err != nil {
		return err
	}
	if err := c.validateRecorder(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWatermark() error {
	if _, ok := watermarkPositions[c.Watermark.Position]; !ok {
		return fmt.Errorf("watermark.position %q is not one of top-left, top-right, bottom-left, bottom-right, center", c.Watermark.Position)
	}
	if c.Watermark.Opacity < 0 || c.Watermark.Opacity > 1 {
		return errors.New("watermark.opacity must be between 0 and 1")
	}
	if c.Watermark.Scale <= 0 || c.Watermark.Scale > 1 {
		return errors.New("watermark.scale must be between 0 and 1")
	}
	if c.Watermark.Margin < 0 {
		return errors.New("watermark.margin must not be negative")
	}
	return nil
}

func (c *Config) validateLoader() error {
	if c.Loader.MaxAttempts < 1 {
		return errors.New("loader.max_attempts must be at least 1")
	}
	if c.Loader.BackoffBaseSeconds <= 0 {
		return errors.New("loader.backoff_base_seconds must be positive")
	}
	if c.Loader.ImageTimeoutSeconds < 1 || c.Loader.VideoTimeoutSeconds < 1 {
		return errors.New("loader timeouts must be at least 1 second")
	}
	return nil
}

func (c *Config) validateRecorder() error {
	if c.Recorder.FrameRate < 1 {
		return errors.New("recorder.frame_rate must be at least 1")
	}
	if c.Recorder.ChunkSliceSeconds < 1 {
		return errors.New("recorder.chunk_slice_seconds must be at least 1")
	}
	if c.Recorder.SafetyBufferSeconds < 0 {
		return errors.New("recorder.safety_buffer_seconds must not be negative")
	}
	if c.Recorder.SafetyBufferFraction < 0 || c.Recorder.SafetyBufferFraction > 1 {
		return errors.New("recorder.safety_buffer_fraction must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.TimeoutFloorSeconds < 1 {
		return errors.New("transcode.timeout_floor_seconds must be at least 1")
	}
	if c.Transcode.TimeoutSecondsPerMB < 0 {
		return errors.New("transcode.timeout_seconds_per_mb must not be negative")
	}
	if c.Transcode.CRF < 0 || c.Transcode.CRF > 51 {
		return errors.New("transcode.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.RetryLimit < 0 {
		return errors.New("pipeline.retry_limit must not be negative")
	}
	if c.Pipeline.RetryDelaySeconds < 0 {
		return errors.New("pipeline.retry_delay_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	return nil
}
