package pipeline

import (
	"errors"
	"testing"

	"inkmark/internal/compositor"
	"inkmark/internal/services"
	"inkmark/internal/testsupport"
)

func TestOptionsWithDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	opts := Options{}.withDefaults(cfg)
	if opts.Position != compositor.Position(cfg.Watermark.Position) {
		t.Fatalf("Position = %q", opts.Position)
	}
	if opts.Opacity != cfg.Watermark.Opacity {
		t.Fatalf("Opacity = %v", opts.Opacity)
	}
	if opts.Scale != cfg.Watermark.Scale {
		t.Fatalf("Scale = %v", opts.Scale)
	}
	if opts.WatermarkURL != cfg.Watermark.Image {
		t.Fatalf("WatermarkURL = %q", opts.WatermarkURL)
	}
	if opts.OutputFormat != "webm" {
		t.Fatalf("OutputFormat = %q", opts.OutputFormat)
	}

	custom := Options{Position: compositor.PositionCenter, Opacity: 0.3, OutputFormat: "mp4"}.withDefaults(cfg)
	if custom.Position != compositor.PositionCenter || custom.Opacity != 0.3 || custom.OutputFormat != "mp4" {
		t.Fatal("explicit options must survive defaulting")
	}

	// The documented contract: zero opacity and zero margin read as unset.
	zeroed := Options{Opacity: 0, Margin: 0}.withDefaults(cfg)
	if zeroed.Opacity != cfg.Watermark.Opacity || zeroed.Margin != cfg.Watermark.Margin {
		t.Fatalf("zero opacity/margin must fall back to config defaults, got %v/%d", zeroed.Opacity, zeroed.Margin)
	}
}

func TestOptionsValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	valid := Options{}.withDefaults(cfg)
	if err := valid.validate(); err != nil {
		t.Fatalf("defaulted options should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"unknown position", func(o *Options) { o.Position = "somewhere" }},
		{"opacity above one", func(o *Options) { o.Opacity = 2 }},
		{"negative opacity", func(o *Options) { o.Opacity = -0.1 }},
		{"scale above one", func(o *Options) { o.Scale = 1.2 }},
		{"negative margin", func(o *Options) { o.Margin = -5 }},
		{"unknown format", func(o *Options) { o.OutputFormat = "avi" }},
	}
	for _, tc := range cases {
		opts := valid
		tc.mutate(&opts)
		err := opts.validate()
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Errorf("%s: expected validation marker, got %v", tc.name, err)
		}
	}
}

func TestProgressEmitterMonotonic(t *testing.T) {
	var got []float64
	emit := newProgressEmitter(func(p Progress) {
		got = append(got, p.Percent)
	})

	for _, percent := range []float64{0, 10, 20, 55, 40, 90, 85, 100} {
		emit.emit(Progress{Percent: percent})
	}

	want := []float64{0, 10, 20, 55, 55, 90, 90, 100}
	if len(got) != len(want) {
		t.Fatalf("emitted %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}

func TestProgressEmitterNilCallback(t *testing.T) {
	emit := newProgressEmitter(nil)
	emit.emit(Progress{Percent: 50})
}

func TestRecordingPercent(t *testing.T) {
	if got := recordingPercent(0, 300); got != 20 {
		t.Fatalf("start = %v, want 20", got)
	}
	if got := recordingPercent(150, 300); got != 55 {
		t.Fatalf("midpoint = %v, want 55", got)
	}
	if got := recordingPercent(300, 300); got != 90 {
		t.Fatalf("end = %v, want 90", got)
	}
	// The estimate can lag reality; the percent still caps at 90.
	if got := recordingPercent(400, 300); got != 90 {
		t.Fatalf("overshoot = %v, want 90", got)
	}
	if got := recordingPercent(10, 0); got != 20 {
		t.Fatalf("no estimate = %v, want 20", got)
	}
}
