package recorder

import (
	"testing"
	"time"

	"inkmark/internal/config"
)

func TestVideoBitrateTiers(t *testing.T) {
	cases := []struct {
		width, height int
		want          int
	}{
		{1920, 1080, 8_000_000},
		{2560, 1440, 8_000_000},
		{1280, 720, 5_000_000},
		{1600, 900, 5_000_000},
		{854, 480, 2_500_000},
		{640, 360, 1_000_000},
		{320, 240, 1_000_000},
	}
	for _, tc := range cases {
		if got := VideoBitrate(tc.width, tc.height); got != tc.want {
			t.Errorf("VideoBitrate(%d, %d) = %d, want %d", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestSafetyTimeout(t *testing.T) {
	cfg := config.Recorder{SafetyBufferSeconds: 10, SafetyBufferFraction: 0.10}

	// Short source: the fixed 10s floor dominates.
	if got := SafetyTimeout(30*time.Second, cfg); got != 40*time.Second {
		t.Fatalf("short source timeout = %s, want 40s", got)
	}
	// Long source: 10% of duration exceeds the floor.
	if got := SafetyTimeout(20*time.Minute, cfg); got != 22*time.Minute {
		t.Fatalf("long source timeout = %s, want 22m", got)
	}
	// Crossover point: both buffers equal at 100s.
	if got := SafetyTimeout(100*time.Second, cfg); got != 110*time.Second {
		t.Fatalf("crossover timeout = %s, want 110s", got)
	}
}

func TestMimeType(t *testing.T) {
	cases := []struct {
		container, video, audio string
		want                    string
	}{
		{"webm", "libvpx-vp9", "libopus", "video/webm;codecs=vp9,opus"},
		{"webm", "libvpx", "libopus", "video/webm;codecs=vp8,opus"},
		{"webm", "libvpx", "", "video/webm;codecs=vp8"},
		{"mp4", "libx264", "aac", "video/mp4;codecs=avc1,mp4a"},
	}
	for _, tc := range cases {
		if got := MimeType(tc.container, tc.video, tc.audio); got != tc.want {
			t.Errorf("MimeType(%s, %s, %s) = %q, want %q", tc.container, tc.video, tc.audio, got, tc.want)
		}
	}
}

func TestEstimateTotalFrames(t *testing.T) {
	// Before any frames arrive the nominal rate drives the estimate.
	if got := estimateTotalFrames(0, 0, 10*time.Second, 30); got != 300 {
		t.Fatalf("nominal estimate = %d, want 300", got)
	}
	// Observed decode rate replaces the nominal one once established.
	if got := estimateTotalFrames(120, 2*time.Second, 10*time.Second, 30); got != 600 {
		t.Fatalf("observed estimate = %d, want 600", got)
	}
	// The estimate never drops below what has already been processed.
	if got := estimateTotalFrames(500, 100*time.Second, 10*time.Second, 30); got < 500 {
		t.Fatalf("estimate %d dropped below processed count", got)
	}
	if got := estimateTotalFrames(10, time.Millisecond, 0, 30); got != 0 {
		t.Fatalf("zero duration estimate = %d, want 0", got)
	}
}

func TestStateTransitions(t *testing.T) {
	allowed := []struct {
		from, to State
	}{
		{StateIdle, StateRecording},
		{StateRecording, StateEnded},
		{StateRecording, StateTimedOut},
		{StateRecording, StateErrored},
		{StateEnded, StateStopped},
		{StateTimedOut, StateStopped},
		{StateErrored, StateStopped},
	}
	for _, tc := range allowed {
		if !tc.from.canTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct {
		from, to State
	}{
		{StateIdle, StateEnded},
		{StateIdle, StateStopped},
		{StateEnded, StateRecording},
		{StateStopped, StateRecording},
		{StateTimedOut, StateRecording},
		{StateRecording, StateIdle},
	}
	for _, tc := range forbidden {
		if tc.from.canTransition(tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}
