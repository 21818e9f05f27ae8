package recorder

import (
	"fmt"
	"math"
	"time"

	"inkmark/internal/config"
)

// Bitrate tiers keyed on output pixel count.
const (
	bitrateTier1080p = 8_000_000
	bitrateTier720p  = 5_000_000
	bitrateTier480p  = 2_500_000
	bitrateTierSD    = 1_000_000
)

// VideoBitrate selects the encode bitrate for the given output dimensions.
func VideoBitrate(width, height int) int {
	pixels := width * height
	switch {
	case pixels >= 1920*1080:
		return bitrateTier1080p
	case pixels >= 1280*720:
		return bitrateTier720p
	case pixels >= 854*480:
		return bitrateTier480p
	default:
		return bitrateTierSD
	}
}

// SafetyTimeout computes the hard recording deadline for a source of the
// given duration: duration plus the larger of the fixed buffer and the
// fractional buffer. The constants are tunable via config because they are
// empirical, not derived.
func SafetyTimeout(duration time.Duration, cfg config.Recorder) time.Duration {
	buffer := time.Duration(cfg.SafetyBufferSeconds) * time.Second
	if fractional := time.Duration(cfg.SafetyBufferFraction * float64(duration)); fractional > buffer {
		buffer = fractional
	}
	return duration + buffer
}

// MimeType renders the container/codec pair in the form recorded on output
// blobs, e.g. "video/webm;codecs=vp9,opus".
func MimeType(container, videoCodec, audioCodec string) string {
	video := codecLabel(videoCodec)
	if audioCodec == "" {
		return fmt.Sprintf("video/%s;codecs=%s", container, video)
	}
	return fmt.Sprintf("video/%s;codecs=%s,%s", container, video, codecLabel(audioCodec))
}

func codecLabel(encoder string) string {
	switch encoder {
	case "libvpx-vp9":
		return "vp9"
	case "libvpx":
		return "vp8"
	case "libx264":
		return "avc1"
	case "libopus":
		return "opus"
	case "aac":
		return "mp4a"
	default:
		return encoder
	}
}

// estimateTotalFrames recomputes the run's expected frame count from the
// observed decode rate so progress stays consistent when real playback rate
// deviates from nominal.
func estimateTotalFrames(processed int, elapsed time.Duration, duration time.Duration, nominalFPS int) int {
	if duration <= 0 {
		return 0
	}
	fps := float64(nominalFPS)
	if processed > 0 && elapsed > time.Second {
		fps = float64(processed) / elapsed.Seconds()
	}
	estimate := int(math.Round(fps * duration.Seconds()))
	if estimate < processed {
		estimate = processed
	}
	return estimate
}
