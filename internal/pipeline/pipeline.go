package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"inkmark/internal/chunks"
	"inkmark/internal/compositor"
	"inkmark/internal/config"
	"inkmark/internal/logging"
	"inkmark/internal/media/ffprobe"
	"inkmark/internal/media/loader"
	"inkmark/internal/notifications"
	"inkmark/internal/probe"
	"inkmark/internal/recorder"
	"inkmark/internal/runstore"
	"inkmark/internal/services"
	"inkmark/internal/transcode"
)

// Pipeline produces watermarked videos. One Pipeline may serve many runs, but
// runs against the same workspace are serialized by a file lock so a single
// compositing surface is never shared.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *runstore.Store
	notifier notifications.Service
	loader   *loader.Loader
	pool     *transcode.RuntimePool
	suspend  *SuspendController

	sleep   func(context.Context, time.Duration) error
	execute func(ctx context.Context, runID, videoURL string, opts Options, emit *progressEmitter) (*chunks.Blob, error)
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

// WithStore attaches run history persistence.
func WithStore(store *runstore.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(p *Pipeline) {
		if notifier != nil {
			p.notifier = notifier
		}
	}
}

// WithRuntimePool shares a transcode runtime pool across pipelines.
func WithRuntimePool(pool *transcode.RuntimePool) Option {
	return func(p *Pipeline) {
		if pool != nil {
			p.pool = pool
		}
	}
}

// New constructs a Pipeline.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "pipeline"),
		notifier: notifications.Noop(),
		loader:   loader.New(cfg, logger),
		pool:     transcode.NewRuntimePool(cfg.FFmpegBinary()),
		suspend:  NewSuspendController(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.execute = p.runOnce
	return p
}

// Suspend pauses decode work, e.g. while the host UI is backgrounded.
// Encoded chunks already aggregated are kept.
func (p *Pipeline) Suspend() { p.suspend.Pause() }

// Resume releases a prior Suspend.
func (p *Pipeline) Resume() { p.suspend.Resume() }

// AddWatermark runs the full pipeline with a bounded end-to-end retry and
// returns the deliverable blob. After the retry budget is exhausted the error
// notes that the unwatermarked original remains available as a fallback.
func (p *Pipeline) AddWatermark(ctx context.Context, videoURL string, opts Options, onProgress func(Progress)) (*chunks.Blob, error) {
	opts = opts.withDefaults(p.cfg)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	attempts := p.cfg.Pipeline.RetryLimit + 1
	delay := time.Duration(p.cfg.Pipeline.RetryDelaySeconds) * time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		runID := uuid.NewString()
		emit := newProgressEmitter(onProgress)
		blob, err := p.execute(ctx, runID, videoURL, opts, emit)
		if err == nil {
			return blob, nil
		}
		lastErr = err
		p.logger.Warn("pipeline attempt failed",
			slog.String(logging.FieldRunID, runID),
			slog.Int(logging.FieldAttempt, attempt),
			slog.Int("attempts", attempts),
			logging.Error(err),
		)
		if !services.Retryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				break
			}
		}
	}
	return nil, fmt.Errorf("watermarking failed, unwatermarked original remains available: %w", lastErr)
}

// runOnce executes one pipeline attempt: probe, load, geometry, record,
// aggregate, optional transcode, cleanup.
func (p *Pipeline) runOnce(ctx context.Context, runID, videoURL string, opts Options, emit *progressEmitter) (_ *chunks.Blob, err error) {
	logger := p.logger.With(slog.String(logging.FieldRunID, runID))
	resources := NewResourceSet()
	defer func() {
		for _, releaseErr := range resources.ReleaseAll() {
			logger.Warn("resource cleanup failed", logging.Error(releaseErr))
		}
		if err != nil {
			p.recordFailure(runID, err)
		}
	}()

	if err := p.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrCapability, "pipeline", "workspace", "", err)
	}
	lock := flock.New(filepath.Join(p.cfg.Paths.WorkspaceDir, ".inkmark.lock"))
	locked, lockErr := lock.TryLock()
	if lockErr != nil {
		return nil, services.Wrap(services.ErrRecording, "pipeline", "lock workspace", "", lockErr)
	}
	if !locked {
		return nil, services.Wrap(services.ErrRecording, "pipeline", "lock workspace", "another run is active", nil)
	}
	resources.Register(ResourceFunc("workspace-lock", lock.Unlock))

	emit.emit(Progress{Percent: 0, Phase: PhaseLoading})
	logger.Info("run started",
		slog.String(logging.FieldSource, videoURL),
		slog.String(logging.FieldPhase, string(PhaseLoading)),
	)

	report := probe.Probe(ctx, p.cfg)
	for _, warning := range report.Warnings {
		logger.Warn("capability warning", slog.String("detail", warning))
	}
	if !report.Supported {
		return nil, services.Wrap(services.ErrCapability, "pipeline", "probe", "host cannot run the watermarking pipeline", nil)
	}
	videoCodec, audioCodec, container, _ := report.Codec()

	pressure := probe.CheckMemoryPressure(ctx, p.cfg)
	if !pressure.CanProceed {
		return nil, services.Wrap(services.ErrMemoryPressure, "pipeline", "memory precheck",
			fmt.Sprintf("only %d MB available", pressure.AvailableMB), nil)
	}
	if pressure.WarningLevel != probe.WarningLow {
		logger.Warn("memory headroom is limited",
			slog.String("level", string(pressure.WarningLevel)),
			slog.Uint64("available_mb", pressure.AvailableMB),
		)
	}

	p.createRun(runID, videoURL, opts)
	if notifyErr := p.notifier.NotifyRunStarted(ctx, runID, videoURL); notifyErr != nil {
		logger.Warn("start notification failed", logging.Error(notifyErr))
	}

	watermark, err := p.loader.Load(ctx, opts.WatermarkURL, loader.KindImage)
	if err != nil {
		return nil, err
	}
	resources.Register(watermark)

	video, err := p.loader.Load(ctx, videoURL, loader.KindVideo)
	if err != nil {
		return nil, err
	}
	resources.Register(video)

	stream, hasVideo := video.Probe.PrimaryVideo()
	duration := video.Probe.DurationSeconds()
	if !hasVideo || stream.Width <= 0 || stream.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "inspect", "source has no usable video stream", nil)
	}
	if duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "inspect", "source duration is invalid", nil)
	}

	// Advisory only: a decode hiccup here does not block the run.
	if checkErr := ffprobe.DecodeCheck(ctx, p.cfg.FFmpegBinary(), video.Path, 5); checkErr != nil {
		logger.Warn("source failed the advisory corruption check", logging.Error(checkErr))
	}

	emit.emit(Progress{Percent: 10, Phase: PhaseLoading})

	comp, err := compositor.New(stream.Width, stream.Height, watermark.Image, opts.spec())
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "geometry", "", err)
	}

	fps := int(math.Round(stream.FrameRate()))
	if fps <= 0 {
		fps = p.cfg.Recorder.FrameRate
	}
	hasAudio := video.Probe.AudioStreamCount() > 0 && audioCodec != ""
	if !hasAudio {
		// Silence is an accepted degradation, not a failure.
		logger.Warn("no audio track available, output will be silent")
	}

	aggregator := chunks.NewAggregator(p.logger, p.cfg.Recorder.SoftChunkCeiling)
	durationSpan := time.Duration(duration * float64(time.Second))

	emit.emit(Progress{Percent: 20, Phase: PhaseProcessing})
	logger.Info("recording phase started",
		slog.String(logging.FieldPhase, string(PhaseProcessing)),
		slog.Int("fps", fps),
		slog.Bool("audio", hasAudio),
	)
	p.updateRun(runID, runstore.StatusProcessing, 20, 0, 0, 0)

	rec := recorder.New(p.cfg, p.logger.With(slog.String(logging.FieldRunID, runID)))
	result, err := rec.Record(ctx, recorder.Params{
		SourcePath: video.Path,
		Width:      stream.Width,
		Height:     stream.Height,
		Duration:   durationSpan,
		FrameRate:  fps,
		HasAudio:   hasAudio,
		VideoCodec: videoCodec,
		AudioCodec: audioCodec,
		Container:  container,
		Gate:       p.suspend,
		OnFrame: func(buf []byte) {
			comp.ComposeFrame(buf)
		},
		OnChunk: func(chunk []byte) {
			if addErr := aggregator.Add(chunk); addErr != nil {
				logger.Warn("chunk dropped", logging.Error(addErr))
			}
		},
		OnProgress: func(processed, estimate int) {
			percent := recordingPercent(processed, estimate)
			emit.emit(Progress{
				Percent:      percent,
				Phase:        PhaseProcessing,
				CurrentFrame: processed,
				TotalFrames:  estimate,
			})
			p.updateRun(runID, runstore.StatusProcessing, percent, processed, estimate, comp.SkippedFrames())
		},
	})
	if err != nil {
		return nil, err
	}

	emit.emit(Progress{Percent: 90, Phase: PhaseFinalizing, CurrentFrame: result.FramesProcessed, TotalFrames: result.TotalEstimate})
	p.updateRun(runID, runstore.StatusFinalizing, 90, result.FramesProcessed, result.TotalEstimate, result.FramesSkipped+comp.SkippedFrames())

	blob := aggregator.Blob(result.MIME)
	if blob.Size() == 0 {
		return nil, services.Wrap(services.ErrRecording, "pipeline", "aggregate", "recorder produced no output", nil)
	}
	stats := aggregator.Stats()
	logger.Info("recording aggregated",
		slog.Int("chunks", stats.ChunkCount),
		slog.Int64("bytes", stats.TotalBytes),
		slog.String("outcome", string(result.Outcome)),
	)

	if opts.OutputFormat == "mp4" {
		emit.emit(Progress{Percent: 92, Phase: PhaseFinalizing})
		transcoder := transcode.New(p.cfg, p.logger, p.pool)
		converted, transcodeErr := transcoder.Transcode(ctx, blob, "mp4")
		if transcodeErr != nil {
			// Non-fatal: deliver the native format instead.
			logger.Warn("transcode failed, delivering native format", logging.Error(transcodeErr))
		} else {
			blob = converted
		}
		emit.emit(Progress{Percent: 98, Phase: PhaseFinalizing})
	}

	outputPath, writeErr := p.writeOutput(runID, blob)
	if writeErr != nil {
		return nil, services.Wrap(services.ErrRecording, "pipeline", "write output", "", writeErr)
	}

	p.completeRun(runID, blob, outputPath)
	if notifyErr := p.notifier.NotifyRunCompleted(ctx, runID, blob.Size(), blob.MIME); notifyErr != nil {
		logger.Warn("completion notification failed", logging.Error(notifyErr))
	}

	emit.emit(Progress{Percent: 100, Phase: PhaseFinalizing, CurrentFrame: result.FramesProcessed, TotalFrames: result.TotalEstimate})
	logger.Info("run completed",
		slog.String("output", outputPath),
		slog.String("mime", blob.MIME),
		slog.Int64("bytes", blob.Size()),
	)
	return blob, nil
}

// recordingPercent maps frame progress onto the 20-90 span of the run.
func recordingPercent(processed, estimate int) float64 {
	if estimate <= 0 {
		return 20
	}
	fraction := float64(processed) / float64(estimate)
	if fraction > 1 {
		fraction = 1
	}
	return 20 + 70*fraction
}

func (p *Pipeline) writeOutput(runID string, blob *chunks.Blob) (string, error) {
	ext := "webm"
	if blob.MIME == "video/mp4" {
		ext = "mp4"
	}
	path := filepath.Join(p.cfg.Paths.OutputDir, fmt.Sprintf("%s.%s", runID, ext))
	if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Run-store bookkeeping is best-effort: persistence problems are logged and
// never fail a run.

func (p *Pipeline) createRun(runID, videoURL string, opts Options) {
	if p.store == nil {
		return
	}
	run := &runstore.Run{
		ID:           runID,
		SourceURL:    videoURL,
		WatermarkURL: opts.WatermarkURL,
		OutputFormat: opts.OutputFormat,
		Status:       runstore.StatusLoading,
	}
	if err := p.store.Create(context.Background(), run); err != nil {
		p.logger.Warn("run record create failed", logging.Error(err))
	}
}

func (p *Pipeline) updateRun(runID string, status runstore.Status, percent float64, processed, total, skipped int) {
	if p.store == nil {
		return
	}
	if err := p.store.UpdateProgress(context.Background(), runID, status, percent, processed, total, skipped); err != nil {
		p.logger.Warn("run record update failed", logging.Error(err))
	}
}

func (p *Pipeline) completeRun(runID string, blob *chunks.Blob, outputPath string) {
	if p.store == nil {
		return
	}
	if err := p.store.MarkCompleted(context.Background(), runID, blob.MIME, blob.Size(), outputPath); err != nil {
		p.logger.Warn("run record completion failed", logging.Error(err))
	}
}

func (p *Pipeline) recordFailure(runID string, cause error) {
	if p.store != nil {
		err := p.store.MarkFailed(context.Background(), runID, cause.Error())
		// Runs that fail before their record is created have nothing to mark.
		if err != nil && !errors.Is(err, runstore.ErrNotFound) {
			p.logger.Warn("run record failure update failed", logging.Error(err))
		}
	}
	if notifyErr := p.notifier.NotifyRunFailed(context.Background(), runID, cause); notifyErr != nil {
		p.logger.Warn("failure notification failed", logging.Error(notifyErr))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
