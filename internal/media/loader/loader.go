package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/google/uuid"

	"inkmark/internal/config"
	"inkmark/internal/logging"
	"inkmark/internal/media/ffprobe"
	"inkmark/internal/services"
)

// Kind selects the decode path for a resource.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Cause tags the category of a load failure. Causes are assigned where the
// failure happens, never inferred from message text downstream.
type Cause string

const (
	CauseTimeout    Cause = "timeout"
	CauseHTTPStatus Cause = "http_status"
	CauseNetwork    Cause = "network"
	CauseDecode     Cause = "decode"
	CauseFilesystem Cause = "filesystem"
)

// Error reports an exhausted load with enough context for the orchestrator.
type Error struct {
	Kind     Kind
	Cause    Cause
	URL      string
	Attempts int
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("load %s %q: %d attempts exhausted (%s): %v", e.Kind, e.URL, e.Attempts, e.Cause, e.Last)
}

func (e *Error) Unwrap() error { return e.Last }

// Handle is a loaded, decodable resource. Video handles point at a local
// file already probed for metadata; image handles carry the decoded pixels.
type Handle struct {
	Kind  Kind
	URL   string
	Path  string
	Image image.Image
	Probe ffprobe.Result

	temp     bool
	released bool
}

// Name identifies the handle in resource-set bookkeeping.
func (h *Handle) Name() string {
	return fmt.Sprintf("%s:%s", h.Kind, h.URL)
}

// Release frees the handle. Staged downloads are deleted; caller-owned local
// files are left alone. Safe to call more than once.
func (h *Handle) Release() error {
	if h == nil || h.released {
		return nil
	}
	h.released = true
	h.Image = nil
	if h.temp && h.Path != "" {
		if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove staged file: %w", err)
		}
	}
	return nil
}

// Released reports whether the handle has been freed.
func (h *Handle) Released() bool { return h != nil && h.released }

// Loader downloads and decodes media resources.
type Loader struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger

	// sleep is replaced in tests to avoid real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// New constructs a Loader using the configured retry policy.
func New(cfg *config.Config, logger *slog.Logger) *Loader {
	return &Loader{
		cfg:    cfg,
		client: &http.Client{},
		logger: logging.WithComponent(logger, "loader"),
		sleep:  sleepContext,
	}
}

// Backoff returns the wait applied after the given failed attempt (1-based).
func (l *Loader) Backoff(attempt int) time.Duration {
	base := time.Duration(l.cfg.Loader.BackoffBaseSeconds * float64(time.Second))
	return base << (attempt - 1)
}

func (l *Loader) attemptTimeout(kind Kind) time.Duration {
	if kind == KindImage {
		return time.Duration(l.cfg.Loader.ImageTimeoutSeconds) * time.Second
	}
	return time.Duration(l.cfg.Loader.VideoTimeoutSeconds) * time.Second
}

// Load fetches and decodes the resource at url, retrying with exponential
// backoff up to the configured attempt budget.
func (l *Loader) Load(ctx context.Context, url string, kind Kind) (*Handle, error) {
	maxAttempts := l.cfg.Loader.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	lastCause := CauseNetwork
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		handle, cause, err := l.loadOnce(ctx, url, kind)
		if err == nil {
			return handle, nil
		}
		lastErr = err
		lastCause = cause
		l.logger.Warn("load attempt failed",
			slog.String(logging.FieldSource, url),
			slog.String("kind", string(kind)),
			slog.Int(logging.FieldAttempt, attempt),
			slog.String("cause", string(cause)),
			logging.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			if err := l.sleep(ctx, l.Backoff(attempt)); err != nil {
				break
			}
		}
	}

	loadErr := &Error{Kind: kind, Cause: lastCause, URL: url, Attempts: attempts, Last: lastErr}
	return nil, services.Wrap(services.ErrResourceLoad, "loader", "load", string(kind), loadErr)
}

func (l *Loader) loadOnce(ctx context.Context, url string, kind Kind) (*Handle, Cause, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, l.attemptTimeout(kind))
	defer cancel()

	path, temp, cause, err := l.fetch(attemptCtx, url, kind)
	if err != nil {
		return nil, cause, err
	}

	handle := &Handle{Kind: kind, URL: url, Path: path, temp: temp}
	switch kind {
	case KindImage:
		img, err := decodeImageFile(path)
		if err != nil {
			_ = handle.Release()
			return nil, CauseDecode, err
		}
		handle.Image = img
	case KindVideo:
		probe, err := ffprobe.Inspect(attemptCtx, l.cfg.FFprobeBinary(), path)
		if err != nil {
			_ = handle.Release()
			if attemptCtx.Err() != nil {
				return nil, CauseTimeout, err
			}
			return nil, CauseDecode, err
		}
		handle.Probe = probe
	default:
		_ = handle.Release()
		return nil, CauseDecode, fmt.Errorf("unknown resource kind %q", kind)
	}
	return handle, "", nil
}

// fetch resolves url to a local file path, downloading when remote.
func (l *Loader) fetch(ctx context.Context, url string, kind Kind) (path string, temp bool, cause Cause, err error) {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return l.download(ctx, url, kind)
	case strings.HasPrefix(url, "file://"):
		url = strings.TrimPrefix(url, "file://")
		fallthrough
	default:
		if _, statErr := os.Stat(url); statErr != nil {
			return "", false, CauseFilesystem, fmt.Errorf("stat local resource: %w", statErr)
		}
		return url, false, "", nil
	}
}

func (l *Loader) download(ctx context.Context, url string, kind Kind) (string, bool, Cause, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, CauseNetwork, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", false, CauseTimeout, fmt.Errorf("fetch %s: %w", url, err)
		}
		return "", false, CauseNetwork, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, CauseHTTPStatus, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(l.cfg.Paths.WorkspaceDir, 0o755); err != nil {
		return "", false, CauseFilesystem, fmt.Errorf("ensure workspace: %w", err)
	}
	ext := filepath.Ext(url)
	if len(ext) > 8 {
		ext = ""
	}
	staged := filepath.Join(l.cfg.Paths.WorkspaceDir, fmt.Sprintf("%s-%s%s", kind, uuid.NewString(), ext))
	file, err := os.Create(staged)
	if err != nil {
		return "", false, CauseFilesystem, fmt.Errorf("create staged file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(staged)
		if errors.Is(copyErr, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", false, CauseTimeout, fmt.Errorf("download %s: %w", url, copyErr)
		}
		return "", false, CauseNetwork, fmt.Errorf("download %s: %w", url, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(staged)
		return "", false, CauseFilesystem, fmt.Errorf("flush staged file: %w", closeErr)
	}
	return staged, true, "", nil
}

var webpMagic = []byte("WEBP")

func decodeImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	// RIFF container with a WEBP fourcc; stdlib image.Decode has no webp support.
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], webpMagic) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
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
