// Package ratelimit spaces outbound calls to a remote API.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the minimum spacing TMDB requests are held to.
const DefaultInterval = 300 * time.Millisecond

// Limiter hands out request slots at least interval apart. Each caller
// reserves its slot under the mutex before sleeping, so overlapping callers
// never share a slot.
type Limiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a limiter with the given interval. Non-positive intervals
// disable throttling.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Interval returns the configured spacing.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// SetInterval changes the spacing for future reservations.
func (l *Limiter) SetInterval(d time.Duration) {
	l.mu.Lock()
	l.interval = d
	l.mu.Unlock()
}

// Throttle blocks until the caller may issue its request and returns how long
// it waited. A cancelled context returns early with ctx.Err(); the reserved
// slot is not given back.
func (l *Limiter) Throttle(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	now := l.now()
	slot := now
	if l.interval > 0 && !l.last.IsZero() {
		if next := l.last.Add(l.interval); next.After(now) {
			slot = next
		}
	}
	l.last = slot
	l.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return 0, nil
	}
	if err := l.sleep(ctx, delay); err != nil {
		return delay, err
	}
	return delay, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
