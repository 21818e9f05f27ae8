package recorder

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"inkmark/internal/logging"
	"inkmark/internal/services"
	"inkmark/internal/testsupport"
)

// stubCommands replaces the decoder and encoder subprocesses with shell
// scripts, in invocation order.
func stubCommands(t *testing.T, scripts ...string) {
	t.Helper()
	prev := commandContext
	var mu sync.Mutex
	call := 0
	commandContext = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		mu.Lock()
		defer mu.Unlock()
		script := scripts[len(scripts)-1]
		if call < len(scripts) {
			script = scripts[call]
		}
		call++
		return exec.CommandContext(ctx, "/bin/sh", "-c", script)
	}
	t.Cleanup(func() { commandContext = prev })
}

func baseParams() Params {
	return Params{
		SourcePath: "/tmp/source.webm",
		Width:      4,
		Height:     4,
		Duration:   time.Second,
		FrameRate:  2,
		HasAudio:   true,
		VideoCodec: "libvpx-vp9",
		AudioCodec: "libopus",
		Container:  "webm",
	}
}

func TestRecordProcessesFramesAndChunks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Decoder emits exactly two 64-byte RGBA frames; encoder echoes stdin.
	stubCommands(t,
		"head -c 128 /dev/zero",
		"cat",
	)

	r := New(cfg, logging.NewNop())
	params := baseParams()

	var frames int
	var chunkBytes int
	params.OnFrame = func(buf []byte) {
		if len(buf) != 64 {
			t.Errorf("frame length = %d, want 64", len(buf))
		}
		frames++
	}
	params.OnChunk = func(chunk []byte) {
		chunkBytes += len(chunk)
	}

	result, err := r.Record(context.Background(), params)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if result.Outcome != StateEnded {
		t.Fatalf("Outcome = %s, want ended", result.Outcome)
	}
	if result.FramesProcessed != 2 || frames != 2 {
		t.Fatalf("processed %d frames (callback %d), want 2", result.FramesProcessed, frames)
	}
	if result.FramesSkipped != 0 {
		t.Fatalf("FramesSkipped = %d", result.FramesSkipped)
	}
	if chunkBytes != 128 {
		t.Fatalf("chunk bytes = %d, want 128", chunkBytes)
	}
	if result.MIME != "video/webm;codecs=vp9,opus" {
		t.Fatalf("MIME = %q", result.MIME)
	}
	if r.State() != StateStopped {
		t.Fatalf("State = %s, want stopped", r.State())
	}
}

func TestRecordSilentSourceDropsAudioLabel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubCommands(t,
		"head -c 64 /dev/zero",
		"cat",
	)

	r := New(cfg, logging.NewNop())
	params := baseParams()
	params.HasAudio = false

	result, err := r.Record(context.Background(), params)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if result.MIME != "video/webm;codecs=vp9" {
		t.Fatalf("MIME = %q, want the audio label dropped", result.MIME)
	}
}

func TestRecordSkipsTrailingPartialFrame(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Two full frames plus 10 trailing bytes.
	stubCommands(t,
		"head -c 138 /dev/zero",
		"cat",
	)

	r := New(cfg, logging.NewNop())
	result, err := r.Record(context.Background(), baseParams())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if result.FramesProcessed != 2 {
		t.Fatalf("FramesProcessed = %d, want 2", result.FramesProcessed)
	}
	if result.FramesSkipped != 1 {
		t.Fatalf("FramesSkipped = %d, want the trailing partial counted", result.FramesSkipped)
	}
}

func TestRecordTimedOutStillFinalizes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Recorder.SafetyBufferSeconds = 0
	cfg.Recorder.SafetyBufferFraction = 0
	// Decoder stalls past the safety deadline after one frame.
	stubCommands(t,
		"head -c 64 /dev/zero; sleep 30",
		"cat",
	)

	r := New(cfg, logging.NewNop())
	params := baseParams()
	params.Duration = 200 * time.Millisecond

	var chunkBytes int
	params.OnChunk = func(chunk []byte) { chunkBytes += len(chunk) }

	result, err := r.Record(context.Background(), params)
	if err != nil {
		t.Fatalf("timed out recording must finalize, got %v", err)
	}
	if result.Outcome != StateTimedOut {
		t.Fatalf("Outcome = %s, want timed_out", result.Outcome)
	}
	if result.FramesProcessed != 1 {
		t.Fatalf("FramesProcessed = %d, want 1", result.FramesProcessed)
	}
	if chunkBytes != 64 {
		t.Fatalf("chunk bytes = %d, partial output must be kept", chunkBytes)
	}
	if r.State() != StateStopped {
		t.Fatalf("State = %s, want stopped", r.State())
	}
}

func TestRecordCancelledContextErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubCommands(t,
		"head -c 64 /dev/zero; sleep 30",
		"cat",
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	r := New(cfg, logging.NewNop())
	params := baseParams()
	params.Duration = time.Minute

	if _, err := r.Record(ctx, params); !errors.Is(err, services.ErrRecording) {
		t.Fatalf("cancellation should surface as a recording error, got %v", err)
	}
}

func TestRecordValidatesParams(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r := New(cfg, logging.NewNop())

	bad := baseParams()
	bad.Width = 0
	if _, err := r.Record(context.Background(), bad); !errors.Is(err, services.ErrRecording) {
		t.Fatalf("expected recording error for bad params, got %v", err)
	}
	if r.State() != StateIdle {
		t.Fatalf("failed validation must leave the recorder idle, got %s", r.State())
	}
}

func TestRecorderIsSingleUse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stubCommands(t,
		"head -c 64 /dev/zero",
		"cat",
	)

	r := New(cfg, logging.NewNop())
	if _, err := r.Record(context.Background(), baseParams()); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if _, err := r.Record(context.Background(), baseParams()); err == nil {
		t.Fatal("second Record on the same recorder must fail")
	}
}

func TestEncodeArgsIncludeAudioDemux(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r := New(cfg, logging.NewNop())

	params := baseParams()
	params.HasAudio = true
	args := r.encodeArgs(params)

	joined := strings.Join(args, " ")
	for _, want := range []string{"-map 0:v:0", "-map 1:a:0", "-c:a libopus", "-b:a 128k", "-c:v libvpx-vp9", "-f webm"} {
		if !strings.Contains(joined, want) {
			t.Errorf("encode args missing %q in %q", want, joined)
		}
	}

	params.HasAudio = false
	silent := r.encodeArgs(params)
	for _, a := range silent {
		if a == "-map" || a == "-c:a" {
			t.Fatalf("silent encode must not include audio flags: %v", silent)
		}
	}
}
