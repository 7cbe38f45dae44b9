package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter guards the enrichment provider: a daily call budget plus a
// minimum spacing between calls. Zero for either disables that check.
type Limiter struct {
	mu          sync.Mutex
	count       int
	max         int
	minInterval time.Duration
	lastCall    time.Time
	resetAt     time.Time

	now func() time.Time
}

func New(maxPerDay int, minInterval time.Duration) *Limiter {
	l := &Limiter{
		max:         maxPerDay,
		minInterval: minInterval,
		now:         time.Now,
	}
	l.resetAt = l.now().Add(24 * time.Hour)
	return l
}

// Allow reports whether another call fits the budget, without
// consuming it.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()
	return l.max <= 0 || l.count < l.max
}

// Wait blocks until the minimum spacing since the previous call has
// passed, then consumes one unit of budget.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	l.checkReset()

	if l.max > 0 && l.count >= l.max {
		used, max := l.count, l.max
		l.mu.Unlock()
		return fmt.Errorf("enrichment call budget exhausted (%d/%d)", used, max)
	}

	var sleep time.Duration
	if l.minInterval > 0 && !l.lastCall.IsZero() {
		if elapsed := l.now().Sub(l.lastCall); elapsed < l.minInterval {
			sleep = l.minInterval - elapsed
		}
	}
	l.mu.Unlock()

	if sleep > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}

	l.mu.Lock()
	l.count++
	l.lastCall = l.now()
	l.mu.Unlock()
	return nil
}

func (l *Limiter) GetStats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"calls_used":  l.count,
		"calls_limit": l.max,
		"reset_time":  l.resetAt,
	}
}

// checkReset rolls the budget over once the daily window has passed.
// Callers hold the lock.
func (l *Limiter) checkReset() {
	if l.now().After(l.resetAt) {
		l.count = 0
		l.resetAt = l.now().Add(24 * time.Hour)
	}
}
