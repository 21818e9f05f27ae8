package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Runtime is a resolved, version-checked encoder binary.
type Runtime struct {
	Path    string
	Version string
}

// RuntimePool lazily resolves the encoder runtime at most once, sharing the
// in-flight resolution between callers. A failed resolution resets the pool
// to uninitialized so a future call may retry.
type RuntimePool struct {
	mu       sync.Mutex
	ready    *Runtime
	inFlight chan struct{}

	// resolve is replaced in tests.
	resolve func(ctx context.Context) (*Runtime, error)
}

// NewRuntimePool builds a pool resolving the given ffmpeg binary.
func NewRuntimePool(binary string) *RuntimePool {
	return &RuntimePool{resolve: func(ctx context.Context) (*Runtime, error) {
		return resolveFFmpeg(ctx, binary)
	}}
}

// Get returns the ready runtime, resolving it on first use.
func (p *RuntimePool) Get(ctx context.Context) (*Runtime, error) {
	for {
		p.mu.Lock()
		if p.ready != nil {
			rt := p.ready
			p.mu.Unlock()
			return rt, nil
		}
		if p.inFlight == nil {
			done := make(chan struct{})
			p.inFlight = done
			p.mu.Unlock()

			rt, err := p.resolve(ctx)

			p.mu.Lock()
			if err == nil {
				p.ready = rt
			}
			// On failure the pool returns to uninitialized.
			p.inFlight = nil
			p.mu.Unlock()
			close(done)

			if err != nil {
				return nil, fmt.Errorf("load transcode runtime: %w", err)
			}
			return rt, nil
		}

		waiting := p.inFlight
		p.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-waiting:
			// Loop: either the load succeeded and ready is set, or it failed
			// and this caller becomes the next loader.
		}
	}
}

func resolveFFmpeg(ctx context.Context, binary string) (*Runtime, error) {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("locate %q: %w", binary, err)
	}
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("probe %q version: %w", path, err)
	}
	version := ""
	if line, _, ok := strings.Cut(string(out), "\n"); ok {
		version = strings.TrimSpace(line)
	}
	return &Runtime{Path: path, Version: version}, nil
}
