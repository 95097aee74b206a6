package fetch

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source used by Gate. Tests substitute a fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock
func RealClock() Clock { return realClock{} }

// Gate enforces a minimum interval between calls. Callers reserve slots under
// the lock and then sleep outside it, so concurrent callers are spaced exactly
// interval apart in arrival order.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // Earliest start time of the next reservation
	clock    Clock
}

// NewGate creates a gate. A nil clock means the wall clock.
func NewGate(interval time.Duration, clock Clock) *Gate {
	if clock == nil {
		clock = realClock{}
	}
	return &Gate{interval: interval, clock: clock}
}

// Interval returns the configured spacing
func (g *Gate) Interval() time.Duration {
	if g == nil {
		return 0
	}
	return g.interval
}

// Wait blocks until the caller's slot arrives or ctx is done.
// A cancelled wait still consumes its slot.
func (g *Gate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil || g.interval <= 0 {
		return nil
	}

	g.mu.Lock()
	now := g.clock.Now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}
	select {
	case <-g.clock.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RateLimiter spaces requests per host using one Gate per hostname
type RateLimiter struct {
	mu           sync.Mutex
	gates        map[string]*Gate
	defaultDelay time.Duration
	clock        Clock
}

// NewRateLimiter creates a per-host limiter. defaultDelay applies when a caller passes <= 0.
func NewRateLimiter(defaultDelay time.Duration, clock Clock) *RateLimiter {
	if clock == nil {
		clock = realClock{}
	}
	return &RateLimiter{
		gates:        make(map[string]*Gate),
		defaultDelay: defaultDelay,
		clock:        clock,
	}
}

// ApplyDelay waits for the host's next slot. The first delay seen for a host fixes its interval.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, host string, minDelay time.Duration) error {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	g, ok := rl.gates[host]
	if !ok {
		g = NewGate(minDelay, rl.clock)
		rl.gates[host] = g
	}
	rl.mu.Unlock()

	return g.Wait(ctx)
}
