package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapability marks a missing host primitive. Fatal, never retried.
	ErrCapability = errors.New("capability error")
	// ErrMemoryPressure marks an unsafe memory precheck. Fatal for this call.
	ErrMemoryPressure = errors.New("memory pressure error")
	// ErrResourceLoad marks an image or video that failed to load after
	// bounded retries. Fatal for the run; the outer retry may re-run it.
	ErrResourceLoad = errors.New("resource load error")
	// ErrRecording marks an encoder or stream failure mid-run.
	ErrRecording = errors.New("recording error")
	// ErrTranscode marks a second-pass failure. Non-fatal; the orchestrator
	// falls back to the native-format output.
	ErrTranscode = errors.New("transcode error")
	// ErrValidation marks input that failed pre-flight size/type/duration
	// checks. Fatal, never retried.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRecording
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the outer end-to-end retry should attempt the
// whole pipeline again after this error.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrCapability),
		errors.Is(err, ErrMemoryPressure),
		errors.Is(err, ErrValidation):
		return false
	default:
		return true
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
