package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces requests evenly, one every minute/perMinute. Callers
// reserve slots in arrival order.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // 0 means unlimited
	next     time.Time     // earliest time the next request may start
}

// NewRateLimiter allows perMinute requests per minute. perMinute <= 0
// disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Wait reserves the next request slot and blocks until it starts. A
// cancelled wait gives the slot back.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval == 0 {
		return ctx.Err()
	}
	rl.mu.Lock()
	now := time.Now()
	slot := rl.next
	if slot.Before(now) {
		slot = now
	}
	rl.next = slot.Add(rl.interval)
	rl.mu.Unlock()

	d := slot.Sub(now)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		rl.mu.Lock()
		if rl.next.Equal(slot.Add(rl.interval)) {
			rl.next = slot
		}
		rl.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
