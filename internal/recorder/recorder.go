package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"inkmark/internal/config"
	"inkmark/internal/logging"
	"inkmark/internal/services"
)

var commandContext = exec.CommandContext

// Gate pauses the frame pump while the host is suspended. Wait returns when
// the gate is open or the context ends.
type Gate interface {
	Wait(ctx context.Context) error
}

// Params configures one recording.
type Params struct {
	SourcePath string
	Width      int
	Height     int
	Duration   time.Duration
	FrameRate  int

	// HasAudio enables muxing a second demux of the same source. Playback
	// alignment between the two demuxes is best-effort.
	HasAudio   bool
	VideoCodec string
	AudioCodec string
	Container  string

	// OnFrame composites the watermark into the raw RGBA frame in place.
	OnFrame func(buf []byte)
	// OnChunk receives encoded output sliced on the configured time slice.
	OnChunk func(chunk []byte)
	// OnProgress receives processed and estimated-total frame counts.
	OnProgress func(processed, estimate int)

	Gate Gate
}

// Result summarizes a finished recording.
type Result struct {
	Outcome         State
	MIME            string
	FramesProcessed int
	FramesSkipped   int
	TotalEstimate   int
}

// Recorder encodes composited frames plus source audio into chunked output.
type Recorder struct {
	cfg    *config.Config
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New constructs an idle Recorder.
func New(cfg *config.Config, logger *slog.Logger) *Recorder {
	return &Recorder{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "recorder"),
		state:  StateIdle,
	}
}

// Record runs the decode/compose/encode loop to completion. It returns a
// Result for both natural end and safety timeout; only stream or encoder
// failures produce an error. The recorder is single-use.
func (r *Recorder) Record(ctx context.Context, params Params) (*Result, error) {
	if err := validateParams(params); err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "validate", "", err)
	}
	if err := r.transition(StateRecording); err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "start", "", err)
	}

	safety := SafetyTimeout(params.Duration, r.cfg.Recorder)
	recCtx, cancel := context.WithTimeout(ctx, safety)
	defer cancel()

	r.logger.Info("recording started",
		slog.String("source", params.SourcePath),
		slog.Int("width", params.Width),
		slog.Int("height", params.Height),
		slog.Duration("safety_timeout", safety),
		slog.Bool("audio", params.HasAudio),
	)

	decoder := commandContext(recCtx, r.cfg.FFmpegBinary(), decodeArgs(params)...)
	decOut, err := decoder.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "decoder pipe", "", err)
	}
	var decErr bytes.Buffer
	decoder.Stderr = &decErr

	encoder := commandContext(recCtx, r.cfg.FFmpegBinary(), r.encodeArgs(params)...)
	encIn, err := encoder.StdinPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "encoder pipe", "", err)
	}
	encOut, err := encoder.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "encoder pipe", "", err)
	}
	var encErr bytes.Buffer
	encoder.Stderr = &encErr

	if err := decoder.Start(); err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "start decoder", "", err)
	}
	if err := encoder.Start(); err != nil {
		_ = decoder.Process.Kill()
		_ = decoder.Wait()
		return nil, services.Wrap(services.ErrRecording, "recorder", "start encoder", "", err)
	}

	chunkDone := make(chan error, 1)
	go func() {
		chunkDone <- r.pumpChunks(encOut, params.OnChunk)
	}()

	processed, skipped, estimate, pumpErr := r.pumpFrames(recCtx, params, decOut, encIn)

	_ = encIn.Close()
	decWaitErr := decoder.Wait()
	chunkErr := <-chunkDone
	encWaitErr := encoder.Wait()

	timedOut := recCtx.Err() != nil && ctx.Err() == nil

	var failure error
	switch {
	case timedOut:
		// The terminal guarantee: the run finalizes with whatever was encoded.
		r.logger.Warn("safety timeout fired before end of stream",
			slog.Duration("safety_timeout", safety),
			slog.Int("frames", processed),
		)
	case ctx.Err() != nil:
		failure = ctx.Err()
	case pumpErr != nil:
		failure = pumpErr
	case chunkErr != nil:
		failure = chunkErr
	case decWaitErr != nil:
		failure = fmt.Errorf("decoder: %w: %s", decWaitErr, bytes.TrimSpace(decErr.Bytes()))
	case encWaitErr != nil:
		failure = fmt.Errorf("encoder: %w: %s", encWaitErr, bytes.TrimSpace(encErr.Bytes()))
	}

	outcome := StateEnded
	if timedOut {
		outcome = StateTimedOut
	} else if failure != nil {
		outcome = StateErrored
	}
	if err := r.transition(outcome); err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "finalize", "", err)
	}
	if err := r.transition(StateStopped); err != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "finalize", "", err)
	}

	if failure != nil {
		return nil, services.Wrap(services.ErrRecording, "recorder", "record", "", failure)
	}

	result := &Result{
		Outcome:         outcome,
		MIME:            MimeType(params.Container, params.VideoCodec, audioCodecOrEmpty(params)),
		FramesProcessed: processed,
		FramesSkipped:   skipped,
		TotalEstimate:   estimate,
	}
	r.logger.Info("recording stopped",
		slog.String("outcome", string(outcome)),
		slog.Int("frames", processed),
		slog.Int("skipped", skipped),
	)
	return result, nil
}

// pumpFrames reads raw frames from the decoder, composites, and feeds the
// encoder. Returns processed/skipped counts and the latest total estimate.
func (r *Recorder) pumpFrames(ctx context.Context, params Params, decOut io.Reader, encIn io.Writer) (processed, skipped, estimate int, err error) {
	frameSize := params.Width * params.Height * 4
	buf := make([]byte, frameSize)
	estimate = int(params.Duration.Seconds() * float64(params.FrameRate))
	start := time.Now()

	for {
		if params.Gate != nil {
			if waitErr := params.Gate.Wait(ctx); waitErr != nil {
				return processed, skipped, estimate, nil
			}
		}

		_, readErr := io.ReadFull(decOut, buf)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return processed, skipped, estimate, nil
			}
			if errors.Is(readErr, io.ErrUnexpectedEOF) {
				// Trailing partial frame; never composite incomplete pixels.
				skipped++
				return processed, skipped, estimate, nil
			}
			if ctx.Err() != nil {
				return processed, skipped, estimate, nil
			}
			return processed, skipped, estimate, fmt.Errorf("read frame: %w", readErr)
		}

		if params.OnFrame != nil {
			params.OnFrame(buf)
		}
		if _, writeErr := encIn.Write(buf); writeErr != nil {
			if ctx.Err() != nil {
				return processed, skipped, estimate, nil
			}
			return processed, skipped, estimate, fmt.Errorf("write frame: %w", writeErr)
		}
		processed++

		if processed%30 == 0 {
			estimate = estimateTotalFrames(processed, time.Since(start), params.Duration, params.FrameRate)
			if params.OnProgress != nil {
				params.OnProgress(processed, estimate)
			}
		}
	}
}

// pumpChunks slices encoder output on the configured time slice.
func (r *Recorder) pumpChunks(encOut io.Reader, onChunk func([]byte)) error {
	slice := time.Duration(r.cfg.Recorder.ChunkSliceSeconds) * time.Second
	var pending []byte
	lastFlush := time.Now()
	buf := make([]byte, 64*1024)

	flush := func() {
		if len(pending) > 0 && onChunk != nil {
			onChunk(pending)
			pending = nil
		}
		lastFlush = time.Now()
	}

	for {
		n, err := encOut.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if time.Since(lastFlush) >= slice {
				flush()
			}
		}
		if err != nil {
			flush()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read encoded output: %w", err)
		}
	}
}

func decodeArgs(params Params) []string {
	return []string{
		"-v", "error", "-hide_banner",
		"-i", params.SourcePath,
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	}
}

func (r *Recorder) encodeArgs(params Params) []string {
	args := []string{
		"-v", "error", "-hide_banner",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", strconv.Itoa(params.FrameRate),
		"-i", "pipe:0",
	}
	if params.HasAudio && params.AudioCodec != "" {
		args = append(args,
			"-i", params.SourcePath,
			"-map", "0:v:0", "-map", "1:a:0",
			"-c:a", params.AudioCodec,
			"-b:a", fmt.Sprintf("%dk", r.cfg.Recorder.AudioBitrateKbps),
		)
	}
	args = append(args,
		"-c:v", params.VideoCodec,
		"-b:v", strconv.Itoa(VideoBitrate(params.Width, params.Height)),
		"-deadline", "realtime",
		"-f", params.Container,
		"pipe:1",
	)
	return args
}

func audioCodecOrEmpty(params Params) string {
	if params.HasAudio && params.AudioCodec != "" {
		return params.AudioCodec
	}
	return ""
}

func validateParams(params Params) error {
	if params.SourcePath == "" {
		return errors.New("source path required")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", params.Width, params.Height)
	}
	if params.Duration <= 0 {
		return errors.New("invalid duration")
	}
	if params.FrameRate <= 0 {
		return errors.New("invalid frame rate")
	}
	if params.VideoCodec == "" || params.Container == "" {
		return errors.New("output codec and container required")
	}
	return nil
}
