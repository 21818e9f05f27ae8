package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkmark/internal/config"
)

const userAgent = "inkmark/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID, source string) error
	NotifyRunCompleted(ctx context.Context, runID string, outputBytes int64, mime string) error
	NotifyRunFailed(ctx context.Context, runID string, cause error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID, source string) error {
	return n.send(ctx, payload{
		title:   "inkmark - Run Started",
		message: fmt.Sprintf("Watermarking started: %s (%s)", source, shortID(runID)),
		tags:    []string{"inkmark", "run", "started"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, runID string, outputBytes int64, mime string) error {
	return n.send(ctx, payload{
		title:   "inkmark - Run Complete",
		message: fmt.Sprintf("Watermarked output ready: %d bytes (%s, %s)", outputBytes, mime, shortID(runID)),
		tags:    []string{"inkmark", "run", "completed"},
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, runID string, cause error) error {
	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}
	return n.send(ctx, payload{
		title:    "inkmark - Run Failed",
		message:  fmt.Sprintf("Watermarking failed (%s): %s", shortID(runID), message),
		tags:     []string{"inkmark", "run", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "inkmark - Test",
		message: "Notifications are configured correctly",
		tags:    []string{"inkmark", "test"},
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, string) error          { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, int64, string) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error            { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }

// Noop returns a Service that does nothing, for tests and disabled setups.
func Noop() Service { return noopService{} }
