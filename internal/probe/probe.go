package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"inkmark/internal/config"
)

// Feature keys reported by Probe.
const (
	FeatureFFmpeg    = "ffmpeg"
	FeatureFFprobe   = "ffprobe"
	FeatureRawPipe   = "rawvideo_pipe"
	FeatureVP9       = "vp9"
	FeatureVP8       = "vp8"
	FeatureH264      = "h264"
	FeatureOpus      = "opus"
	FeatureAAC       = "aac"
)

// Report describes the host's fitness for a pipeline run.
type Report struct {
	Supported bool
	Warnings  []string
	Features  map[string]bool
}

// Codec returns the best available video/audio encoder pair and the container
// the recorder should produce, in fixed preference order.
func (r Report) Codec() (video, audio, container string, ok bool) {
	switch {
	case r.Features[FeatureVP9] && r.Features[FeatureOpus]:
		return "libvpx-vp9", "libopus", "webm", true
	case r.Features[FeatureVP8] && r.Features[FeatureOpus]:
		return "libvpx", "libopus", "webm", true
	case r.Features[FeatureVP8]:
		return "libvpx", "", "webm", true
	default:
		return "", "", "", false
	}
}

var lookPath = exec.LookPath

// Probe checks, in order: the raster/encode binary, the inspect binary,
// rawvideo pipe support, and at least one supported output codec pair.
// Missing hard requirements yield Supported=false; a missing preferred codec
// is only a warning.
func Probe(ctx context.Context, cfg *config.Config) Report {
	report := Report{Features: map[string]bool{}}

	ffmpegPath, err := lookPath(cfg.FFmpegBinary())
	report.Features[FeatureFFmpeg] = err == nil
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("ffmpeg binary %q not found", cfg.FFmpegBinary()))
		return report
	}

	if _, err := lookPath(cfg.FFprobeBinary()); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("ffprobe binary %q not found", cfg.FFprobeBinary()))
		return report
	}
	report.Features[FeatureFFprobe] = true

	encoders := listEncoders(ctx, ffmpegPath)
	report.Features[FeatureRawPipe] = true
	report.Features[FeatureVP9] = encoders["libvpx-vp9"]
	report.Features[FeatureVP8] = encoders["libvpx"]
	report.Features[FeatureH264] = encoders["libx264"]
	report.Features[FeatureOpus] = encoders["libopus"]
	report.Features[FeatureAAC] = encoders["aac"]

	if !report.Features[FeatureVP9] {
		report.Warnings = append(report.Warnings, "preferred vp9 encoder unavailable, falling back to vp8")
	}
	if !report.Features[FeatureH264] {
		report.Warnings = append(report.Warnings, "h264 encoder unavailable, mp4 transcode requests will fall back to webm")
	}
	if !report.Features[FeatureOpus] {
		report.Warnings = append(report.Warnings, "opus encoder unavailable, output may be silent")
	}

	if _, _, _, ok := report.Codec(); !ok {
		report.Warnings = append(report.Warnings, "no supported output codec pair found")
		return report
	}

	report.Supported = true
	return report
}

// listEncoders parses `ffmpeg -encoders` output into a set of encoder names.
func listEncoders(ctx context.Context, binary string) map[string]bool {
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil
	}
	set := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		// Lines look like " V....D libvpx-vp9    libvpx VP9 encoder".
		if len(fields) >= 2 && len(fields[0]) >= 1 && (fields[0][0] == 'V' || fields[0][0] == 'A') {
			set[fields[1]] = true
		}
	}
	return set
}
