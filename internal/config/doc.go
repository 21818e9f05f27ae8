// Package config loads, normalizes, and validates inkmark configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// INKMARK_NTFY_TOPIC. The Config type centralizes every knob the pipeline and
// CLI need, including the empirically tuned timing constants (retry backoff,
// safety-timeout buffer, transcode timeout factor) so deployments can adjust
// them without code changes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
