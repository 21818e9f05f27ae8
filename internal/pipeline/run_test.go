package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"inkmark/internal/logging"
	"inkmark/internal/services"
	"inkmark/internal/testsupport"
)

// ffmpegScript builds a dispatching ffmpeg stand-in. The decoder invocation
// emits frameBytes of raw pixels, the encoder echoes its stdin, and any
// libx264 transcode fails so the native-format fallback is reachable.
func ffmpegScript(frameBytes int, encoderBody string) string {
	return fmt.Sprintf(`#!/bin/sh
case "$*" in
*-encoders*)
	printf ' V....D libvpx-vp9           libvpx VP9 encoder\n'
	printf ' V....D libvpx               libvpx VP8 encoder\n'
	printf ' V....D libx264              x264 H.264 encoder\n'
	printf ' A....D libopus              libopus Opus encoder\n'
	printf ' A....D aac                  AAC encoder\n'
	;;
*-version*)
	printf 'ffmpeg version 6.1-test\n'
	;;
*libx264*)
	echo "libx264 refused the input" >&2
	exit 1
	;;
*"-f null"*)
	exit 0
	;;
*pipe:0*)
	%s
	;;
*rawvideo*)
	head -c %d /dev/zero
	;;
*)
	exit 0
	;;
esac
`, encoderBody, frameBytes)
}

const ffprobeScript = `#!/bin/sh
cat <<'EOF'
{
  "streams": [
    {"index": 0, "codec_name": "vp9", "codec_type": "video", "width": 64, "height": 48, "pix_fmt": "yuv420p", "avg_frame_rate": "2/1"},
    {"index": 1, "codec_name": "opus", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"nb_streams": 2, "duration": "1.000000", "size": "1024", "format_name": "matroska,webm"}
}
EOF
`

// Two 64x48 RGBA frames.
const twoFrames = 2 * 64 * 48 * 4

func newRunPipeline(t *testing.T, encoderBody string, opts ...testsupport.ConfigOption) *Pipeline {
	t.Helper()
	opts = append([]testsupport.ConfigOption{
		testsupport.WithBinaryScript("ffmpeg", ffmpegScript(twoFrames, encoderBody)),
		testsupport.WithBinaryScript("ffprobe", ffprobeScript),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Pipeline.RetryLimit = 0
	cfg.Memory.MinAvailableMB = 0
	cfg.Memory.WarnAvailableMB = 0
	p := New(cfg, logging.NewNop())
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestAddWatermarkFallsBackToNativeFormatOnTranscodeFailure(t *testing.T) {
	wmPath := filepath.Join(t.TempDir(), "logo.png")
	testsupport.WritePNG(t, wmPath, 4, 2, color.White)

	p := newRunPipeline(t, "cat", testsupport.WithWatermarkImage(wmPath))

	videoPath := filepath.Join(t.TempDir(), "source.webm")
	testsupport.WriteFile(t, videoPath, 1024)

	var percents []float64
	blob, err := p.AddWatermark(context.Background(), videoPath, Options{OutputFormat: "mp4"}, func(pr Progress) {
		percents = append(percents, pr.Percent)
	})
	if err != nil {
		t.Fatalf("AddWatermark: %v", err)
	}

	if blob.MIME != "video/webm;codecs=vp9,opus" {
		t.Fatalf("MIME = %q, want the native format after the failed transcode", blob.MIME)
	}
	if blob.Size() != twoFrames {
		t.Fatalf("blob size = %d, want %d passthrough bytes", blob.Size(), twoFrames)
	}

	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	if percents[0] != 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("progress spans %v, want 0 through 100", percents)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, percents)
		}
	}
	seen := map[float64]bool{}
	for _, pct := range percents {
		seen[pct] = true
	}
	for _, want := range []float64{0, 10, 20, 90, 92, 98, 100} {
		if !seen[want] {
			t.Fatalf("progress missing the %v checkpoint: %v", want, percents)
		}
	}

	outputs, err := filepath.Glob(filepath.Join(p.cfg.Paths.OutputDir, "*.webm"))
	if err != nil || len(outputs) != 1 {
		t.Fatalf("output dir holds %v (err %v), want one webm file", outputs, err)
	}
	info, err := os.Stat(outputs[0])
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != twoFrames {
		t.Fatalf("output file size = %d, want %d", info.Size(), twoFrames)
	}
}

func TestFailedRunReleasesStagedResourcesAndLock(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testsupport.PNGBytes(t, 4, 2, color.White))
	})
	mux.HandleFunc("/video.webm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newRunPipeline(t, "exit 1")

	opts := Options{WatermarkURL: server.URL + "/logo.png"}
	_, err := p.AddWatermark(context.Background(), server.URL+"/video.webm", opts, nil)
	if !errors.Is(err, services.ErrRecording) {
		t.Fatalf("expected a recording failure, got %v", err)
	}

	entries, readErr := os.ReadDir(p.cfg.Paths.WorkspaceDir)
	if readErr != nil {
		t.Fatalf("read workspace: %v", readErr)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "image-") || strings.HasPrefix(entry.Name(), "video-") {
			t.Fatalf("staged download %s survived the failed run", entry.Name())
		}
	}

	lock := flock.New(filepath.Join(p.cfg.Paths.WorkspaceDir, ".inkmark.lock"))
	locked, lockErr := lock.TryLock()
	if lockErr != nil || !locked {
		t.Fatalf("workspace lock was not released (locked=%v err=%v)", locked, lockErr)
	}
	_ = lock.Unlock()
}
