// Package validation pre-flights candidate upload files before the
// watermarking pipeline is invoked.
//
// Hard limits (non-video MIME, oversize files) reject the file outright;
// soft limits (large files, long durations, high resolutions) only attach
// warnings so the caller can decide.
package validation
