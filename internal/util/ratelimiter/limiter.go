package ratelimiter

import (
	"sync"
	"time"
)

// Limiter allows one action per interval. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// New creates a limiter allowing at most one action per interval.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow reports whether an action may run now and records it if so.
// When blocked it returns the remaining wait.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	since := now.Sub(l.last)
	if l.last.IsZero() || since >= l.interval {
		l.last = now
		return true, 0
	}
	return false, l.interval - since
}

// Mark records an action that ran regardless of the limit.
func (l *Limiter) Mark() {
	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
}
