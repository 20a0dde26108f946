package ratelimiter

import (
	"sync"
	"time"
)

// Coalescer runs fn at most once per interval. Triggers arriving while
// limited collapse into a single trailing run, so the last trigger is
// never lost.
type Coalescer struct {
	limiter *Limiter
	fn      func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewCoalescer creates a coalescer for fn.
func NewCoalescer(interval time.Duration, fn func()) *Coalescer {
	return &Coalescer{
		limiter: New(interval),
		fn:      fn,
	}
}

// Trigger requests a run. It runs fn synchronously when the interval
// has elapsed, otherwise schedules one trailing run.
func (c *Coalescer) Trigger() {
	c.mu.Lock()
	if c.stopped || c.timer != nil {
		c.mu.Unlock()
		return
	}
	allowed, wait := c.limiter.Allow()
	if !allowed {
		c.timer = time.AfterFunc(wait, c.trailing)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.fn()
}

// Flush cancels any pending trailing run and runs fn now.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.limiter.Mark()
	c.mu.Unlock()

	c.fn()
}

// Pending reports whether a trailing run is scheduled.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Stop cancels any pending run. Later triggers are ignored.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer) trailing() {
	c.mu.Lock()
	if c.stopped || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.limiter.Mark()
	c.mu.Unlock()

	c.fn()
}
