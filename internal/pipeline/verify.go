package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os/exec"

	"inkmark/internal/logging"
	"inkmark/internal/media/loader"
	"inkmark/internal/services"
)

// variationThreshold is the luminance standard deviation above which a
// sampled region is considered to contain drawn content.
const variationThreshold = 12.0

// extractFrame is replaced in tests.
var extractFrame = func(ctx context.Context, binary, path string, timestamp float64, width, height int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", path,
		"-frames:v", "1",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("extract frame at %.3fs: %w", timestamp, err)
	}
	if len(out) < width*height*4 {
		return nil, fmt.Errorf("extract frame at %.3fs: short frame (%d bytes)", timestamp, len(out))
	}
	return out[:width*height*4], nil
}

// VerifyWatermark samples evenly spaced timestamps and inspects a fixed
// top-left region for pixel variation above a fixed threshold, returning true
// when a majority of samples exceed it. This is a best-effort heuristic, not
// an exact or tamper-proof check.
func (p *Pipeline) VerifyWatermark(ctx context.Context, videoURL, watermarkURL string, samplePoints int) (bool, error) {
	if samplePoints <= 0 {
		samplePoints = 5
	}

	video, err := p.loader.Load(ctx, videoURL, loader.KindVideo)
	if err != nil {
		return false, err
	}
	defer func() {
		if releaseErr := video.Release(); releaseErr != nil {
			p.logger.Warn("verify cleanup failed", logging.Error(releaseErr))
		}
	}()

	stream, ok := video.Probe.PrimaryVideo()
	duration := video.Probe.DurationSeconds()
	if !ok || stream.Width <= 0 || stream.Height <= 0 || duration <= 0 {
		return false, services.Wrap(services.ErrValidation, "verify", "inspect", "source is not inspectable video", nil)
	}

	region := image.Rect(0, 0, stream.Width/4, stream.Height/4)
	hits := 0
	for i := 0; i < samplePoints; i++ {
		timestamp := duration * float64(i+1) / float64(samplePoints+1)
		frame, frameErr := extractFrame(ctx, p.cfg.FFmpegBinary(), video.Path, timestamp, stream.Width, stream.Height)
		if frameErr != nil {
			p.logger.Warn("verify sample failed", slog.Float64("timestamp", timestamp), logging.Error(frameErr))
			continue
		}
		variation := frameRegionVariation(frame, stream.Width, region)
		if variation > variationThreshold {
			hits++
		}
	}
	return hits > samplePoints/2, nil
}

// frameRegionVariation computes the luminance standard deviation over a
// region of a raw RGBA frame.
func frameRegionVariation(pix []byte, frameW int, region image.Rectangle) float64 {
	count := region.Dx() * region.Dy()
	if count <= 0 {
		return 0
	}
	var sum, sumSq float64
	for y := region.Min.Y; y < region.Max.Y; y++ {
		rowStart := (y*frameW + region.Min.X) * 4
		for x := 0; x < region.Dx(); x++ {
			offset := rowStart + x*4
			if offset+2 >= len(pix) {
				return 0
			}
			luma := 0.299*float64(pix[offset]) + 0.587*float64(pix[offset+1]) + 0.114*float64(pix[offset+2])
			sum += luma
			sumSq += luma * luma
		}
	}
	n := float64(count)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
