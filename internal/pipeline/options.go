package pipeline

import (
	"fmt"
	"sync"

	"inkmark/internal/compositor"
	"inkmark/internal/config"
	"inkmark/internal/services"
)

// Phase names the caller-visible stage of a run.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseProcessing Phase = "processing"
	PhaseFinalizing Phase = "finalizing"
)

// Progress is reported to the caller at defined checkpoints.
type Progress struct {
	Percent      float64
	Phase        Phase
	CurrentFrame int
	TotalFrames  int
}

// Options configures one watermarking run. Zero values fall back to the
// configured watermark defaults, so a fully transparent overlay (Opacity 0)
// and a zero Margin cannot be requested per run; set them in the watermark
// config section instead.
type Options struct {
	Position     compositor.Position
	Opacity      float64
	Scale        float64
	Margin       int
	WatermarkURL string
	OutputFormat string
}

func (o Options) withDefaults(cfg *config.Config) Options {
	if o.Position == "" {
		o.Position = compositor.Position(cfg.Watermark.Position)
	}
	if o.Opacity == 0 {
		o.Opacity = cfg.Watermark.Opacity
	}
	if o.Scale == 0 {
		o.Scale = cfg.Watermark.Scale
	}
	if o.Margin == 0 {
		o.Margin = cfg.Watermark.Margin
	}
	if o.WatermarkURL == "" {
		o.WatermarkURL = cfg.Watermark.Image
	}
	if o.OutputFormat == "" {
		o.OutputFormat = "webm"
	}
	return o
}

func (o Options) validate() error {
	switch o.Position {
	case compositor.PositionTopLeft, compositor.PositionTopRight,
		compositor.PositionBottomLeft, compositor.PositionBottomRight,
		compositor.PositionCenter:
	default:
		return services.Wrap(services.ErrValidation, "pipeline", "options", fmt.Sprintf("unknown position %q", o.Position), nil)
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return services.Wrap(services.ErrValidation, "pipeline", "options", "opacity must be between 0 and 1", nil)
	}
	if o.Scale <= 0 || o.Scale > 1 {
		return services.Wrap(services.ErrValidation, "pipeline", "options", "scale must be between 0 and 1", nil)
	}
	if o.Margin < 0 {
		return services.Wrap(services.ErrValidation, "pipeline", "options", "margin must not be negative", nil)
	}
	switch o.OutputFormat {
	case "webm", "mp4":
	default:
		return services.Wrap(services.ErrValidation, "pipeline", "options", fmt.Sprintf("output format %q is not webm or mp4", o.OutputFormat), nil)
	}
	return nil
}

func (o Options) spec() compositor.Spec {
	return compositor.Spec{
		Position: o.Position,
		Opacity:  o.Opacity,
		Scale:    o.Scale,
		Margin:   o.Margin,
	}
}

// progressEmitter clamps emitted percentages so they never decrease within a
// run, regardless of checkpoint interleaving.
type progressEmitter struct {
	mu   sync.Mutex
	last float64
	fn   func(Progress)
}

func newProgressEmitter(fn func(Progress)) *progressEmitter {
	return &progressEmitter{fn: fn}
}

func (e *progressEmitter) emit(p Progress) {
	e.mu.Lock()
	if p.Percent < e.last {
		p.Percent = e.last
	} else {
		e.last = p.Percent
	}
	fn := e.fn
	e.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}
