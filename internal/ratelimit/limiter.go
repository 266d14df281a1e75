// Package ratelimit implements the soft, client-side per-provider request cap.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window counter. The count resets when a full window has
// elapsed since the window opened, so up to twice the limit may be admitted
// around a window boundary. This is a soft guard, not a sliding window.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	count   int
	started time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter admitting limit calls per window. A limit of zero
// or less disables limiting.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PerMinute is shorthand for New(limit, time.Minute)
func PerMinute(limit int, opts ...Option) *Limiter {
	return New(limit, time.Minute, opts...)
}

// Allow records a call and reports whether it is within the cap
func (l *Limiter) Allow() bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.started.IsZero() || now.Sub(l.started) >= l.window {
		l.started = now
		l.count = 0
	}

	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// Remaining reports how many calls the current window still admits
func (l *Limiter) Remaining() int {
	if l.limit <= 0 {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started.IsZero() || l.now().Sub(l.started) >= l.window {
		return l.limit
	}
	return l.limit - l.count
}
