package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"inkmark/internal/chunks"
	"inkmark/internal/config"
	"inkmark/internal/logging"
	"inkmark/internal/services"
)

var commandContext = exec.CommandContext

// Transcoder re-encodes a finished blob into the requested target format.
type Transcoder struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *RuntimePool
}

// New constructs a Transcoder sharing the given runtime pool. A nil pool gets
// a fresh one for the configured binary.
func New(cfg *config.Config, logger *slog.Logger, pool *RuntimePool) *Transcoder {
	if pool == nil {
		pool = NewRuntimePool(cfg.FFmpegBinary())
	}
	return &Transcoder{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "transcode"),
		pool:   pool,
	}
}

// Timeout computes the size-proportional transcode deadline. The formula is
// empirical and configurable.
func (t *Transcoder) Timeout(sizeBytes int64) time.Duration {
	floor := time.Duration(t.cfg.Transcode.TimeoutFloorSeconds) * time.Second
	perMB := time.Duration(t.cfg.Transcode.TimeoutSecondsPerMB) * time.Second
	mb := sizeBytes / (1 << 20)
	if proportional := time.Duration(mb) * perMB; proportional > floor {
		return proportional
	}
	return floor
}

// Transcode converts source into the target container ("mp4"). The source
// bytes are staged to the workspace, re-encoded with a quality-balanced
// preset and fast-start layout, read back, and the staging files removed.
func (t *Transcoder) Transcode(ctx context.Context, source *chunks.Blob, target string) (*chunks.Blob, error) {
	if source == nil || len(source.Data) == 0 {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "input", "empty source blob", nil)
	}
	if target != "mp4" {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "input", fmt.Sprintf("unsupported target %q", target), nil)
	}

	runtime, err := t.pool.Get(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "runtime", "", err)
	}

	if err := os.MkdirAll(t.cfg.Paths.WorkspaceDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "workspace", "", err)
	}
	stem := filepath.Join(t.cfg.Paths.WorkspaceDir, "transcode-"+uuid.NewString())
	inPath := stem + ".webm"
	outPath := stem + ".mp4"
	defer func() {
		_ = os.Remove(inPath)
		_ = os.Remove(outPath)
	}()

	if err := os.WriteFile(inPath, source.Data, 0o644); err != nil {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "stage input", "", err)
	}

	timeout := t.Timeout(source.Size())
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t.logger.Info("transcode started",
		slog.Int64("input_bytes", source.Size()),
		slog.Duration("timeout", timeout),
		slog.String("target", target),
	)

	cmd := commandContext(runCtx, runtime.Path,
		"-v", "error", "-hide_banner",
		"-i", inPath,
		"-c:v", "libx264",
		"-preset", t.cfg.Transcode.Preset,
		"-crf", strconv.Itoa(t.cfg.Transcode.CRF),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", t.cfg.Recorder.AudioBitrateKbps),
		"-movflags", "+faststart",
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, services.Wrap(services.ErrTranscode, "transcode", "run", "deadline exceeded", err)
		}
		return nil, services.Wrap(services.ErrTranscode, "transcode", "run", stderr.String(), err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "read output", "", err)
	}
	t.logger.Info("transcode finished", slog.Int("output_bytes", len(data)))
	return &chunks.Blob{Data: data, MIME: "video/mp4"}, nil
}
