// Package ratelimit serializes outbound acquisition calls to a minimum
// inter-call interval shared across all concurrent callers.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiter grants at most one call per minimum interval. Acquire blocks
// the caller until the interval since the previous grant has elapsed.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastGranted time.Time
	clock       Clock
}

// New creates a limiter with the given minimum interval between grants.
func New(minInterval time.Duration) *Limiter {
	return NewWithClock(minInterval, realClock{})
}

// NewWithClock creates a limiter with an injected clock.
func NewWithClock(minInterval time.Duration, clock Clock) *Limiter {
	return &Limiter{minInterval: minInterval, clock: clock}
}

// Acquire blocks until the minimum interval since the last grant has
// passed, then records the grant. The mutex is held across the wait so
// concurrent callers serialize and never read a stale last-granted time.
// Cancellation aborts the wait promptly and does not record a grant.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if !l.lastGranted.IsZero() {
		earliest := l.lastGranted.Add(l.minInterval)
		if wait := earliest.Sub(now); wait > 0 {
			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
			now = l.clock.Now()
		}
	}

	l.lastGranted = now
	return nil
}
