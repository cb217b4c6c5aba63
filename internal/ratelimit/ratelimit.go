// Package ratelimit paces outbound provider calls so a pipeline run
// stays under per-provider request quotas.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for the pacer so tests run without real waits.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock implements Clock with the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Sleep waits d or until ctx is cancelled, whichever comes first.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacer enforces a minimum gap between successive calls. Safe for
// concurrent use.
type Pacer struct {
	mu       sync.Mutex
	gap      time.Duration
	clock    Clock
	lastCall time.Time
}

// NewPacer creates a pacer with the given minimum gap between calls.
func NewPacer(gap time.Duration) *Pacer {
	return NewPacerWithClock(gap, RealClock{})
}

// NewPacerWithClock creates a pacer using the supplied clock.
func NewPacerWithClock(gap time.Duration, clock Clock) *Pacer {
	return &Pacer{gap: gap, clock: clock}
}

// Wait blocks until the minimum gap since the previous call has elapsed.
// The first call never waits. Returns ctx.Err() if cancelled while
// waiting; the slot is still consumed so a retry does not double-wait.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := p.clock.Now()
	var wait time.Duration
	if !p.lastCall.IsZero() {
		if elapsed := now.Sub(p.lastCall); elapsed < p.gap {
			wait = p.gap - elapsed
		}
	}
	p.lastCall = now.Add(wait)
	p.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}
	return p.clock.Sleep(ctx, wait)
}
