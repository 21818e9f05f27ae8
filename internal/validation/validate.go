package validation

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"inkmark/internal/config"
	"inkmark/internal/media/ffprobe"
)

// FileInfo describes a candidate input file.
type FileInfo struct {
	Name            string
	MIME            string
	SizeBytes       int64
	DurationSeconds float64
	Width           int
	Height          int
}

// Result is the pre-flight verdict for one file.
type Result struct {
	Valid    bool
	Error    string
	Warnings []string
}

// Check applies the configured limits to the file description. MIME and size
// violations reject; everything else only warns.
func Check(cfg config.Validation, info FileInfo) Result {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(info.MIME)), "video/") {
		return Result{Error: fmt.Sprintf("file %q is not a video (%s)", info.Name, info.MIME)}
	}
	maxBytes := int64(cfg.MaxSizeMB) << 20
	if maxBytes > 0 && info.SizeBytes > maxBytes {
		return Result{Error: fmt.Sprintf("file is %d bytes, over the %dMB limit", info.SizeBytes, cfg.MaxSizeMB)}
	}

	var warnings []string
	if warnBytes := int64(cfg.WarnSizeMB) << 20; warnBytes > 0 && info.SizeBytes > warnBytes {
		warnings = append(warnings, fmt.Sprintf("file is over %dMB, processing may be slow", cfg.WarnSizeMB))
	}
	if cfg.WarnDurationSeconds > 0 && info.DurationSeconds > float64(cfg.WarnDurationSeconds) {
		warnings = append(warnings, fmt.Sprintf("duration exceeds %d seconds, processing may be slow", cfg.WarnDurationSeconds))
	}
	if cfg.WarnWidth > 0 && cfg.WarnHeight > 0 && (info.Width > cfg.WarnWidth || info.Height > cfg.WarnHeight) {
		warnings = append(warnings, fmt.Sprintf("resolution %dx%d exceeds %dx%d, consider downscaling first",
			info.Width, info.Height, cfg.WarnWidth, cfg.WarnHeight))
	}
	return Result{Valid: true, Warnings: warnings}
}

// CheckFile stats and probes a local file, then applies Check.
func CheckFile(ctx context.Context, cfg *config.Config, path string) (Result, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat input: %w", err)
	}

	info := FileInfo{
		Name:      filepath.Base(path),
		MIME:      mimeForFile(path),
		SizeBytes: stat.Size(),
	}

	probe, probeErr := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
	if probeErr == nil {
		info.DurationSeconds = probe.DurationSeconds()
		if stream, ok := probe.PrimaryVideo(); ok {
			info.Width = stream.Width
			info.Height = stream.Height
			if info.MIME == "" {
				info.MIME = "video/" + primaryFormat(probe.Format.FormatName)
			}
		}
	}

	return Check(cfg.Validation, info), nil
}

func mimeForFile(path string) string {
	return mime.TypeByExtension(filepath.Ext(path))
}

// primaryFormat picks the first name from ffprobe's comma-separated
// format_name field, e.g. "mov,mp4,m4a,3gp,3g2,mj2".
func primaryFormat(formatName string) string {
	if name, _, ok := strings.Cut(formatName, ","); ok {
		return name
	}
	return formatName
}
