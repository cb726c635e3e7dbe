package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between outbound market data requests.
const DefaultMinInterval = 1200 * time.Millisecond

// Clock abstracts time so the limiter can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Limiter enforces a minimum wall-clock interval between calls.
// It keeps a single "last request" timestamp shared by every caller,
// regardless of destination.
type Limiter struct {
	interval time.Duration
	clock    Clock

	// sem serialises callers; a buffered channel lets a waiter give up on ctx.
	sem  chan struct{}
	mu   sync.Mutex
	last time.Time // zero until the first request
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New creates a Limiter. A non-positive interval falls back to DefaultMinInterval.
func New(interval time.Duration, opts ...Option) *Limiter {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	l := &Limiter{
		interval: interval,
		clock:    realClock{},
		sem:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait suspends the caller until at least Interval has passed since the
// previous recorded request, then records the current time.
// If ctx ends first, Wait returns ctx.Err() and the recorded time is unchanged.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	if delay := l.remaining(); delay > 0 {
		select {
		case <-l.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.mu.Lock()
	l.last = l.clock.Now()
	l.mu.Unlock()
	return nil
}

// Last returns the time recorded by the most recent Wait, or the zero time.
func (l *Limiter) Last() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *Limiter) remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last.IsZero() {
		return 0
	}
	elapsed := l.clock.Now().Sub(l.last)
	if elapsed >= l.interval {
		return 0
	}
	return l.interval - elapsed
}
