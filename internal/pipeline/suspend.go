package pipeline

import (
	"context"
	"sync"
)

// SuspendController is the single authority for pausing decode work while the
// host is backgrounded. Registered pumps call Wait before consuming the next
// frame; pausing stalls them in place without stopping the encoder or
// discarding chunks already aggregated.
type SuspendController struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewSuspendController returns an active (not paused) controller.
func NewSuspendController() *SuspendController {
	return &SuspendController{resume: closedChan()}
}

// Pause suspends registered pumps at their next Wait call.
func (c *SuspendController) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.paused = true
		c.resume = make(chan struct{})
	}
}

// Resume releases all pumps blocked in Wait.
func (c *SuspendController) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.paused = false
		close(c.resume)
	}
}

// Active reports whether work may proceed.
func (c *SuspendController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.paused
}

// Wait blocks while the controller is paused. It returns the context error
// when the context ends first.
func (c *SuspendController) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		paused := c.paused
		resume := c.resume
		c.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
