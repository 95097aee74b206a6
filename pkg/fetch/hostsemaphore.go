package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// hostSlot is the permit set for one image host
type hostSlot struct {
	permits   *semaphore.Weighted
	users     int       // Holders plus waiters
	idleSince time.Time // Set when users drops to zero
}

// HostSemaphorePool caps concurrent requests per image host. Search results
// often point many brands at the same CDN, so one pool is shared by all workers.
type HostSemaphorePool struct {
	mu             sync.Mutex
	slots          map[string]*hostSlot
	perHost        int64
	acquireTimeout time.Duration
	log            *logrus.Entry
}

// NewHostSemaphorePool creates a pool with the given per-host limit.
// acquireTimeout <= 0 waits as long as the caller's context allows.
func NewHostSemaphorePool(maxPerHost int, acquireTimeout time.Duration, log *logrus.Entry) *HostSemaphorePool {
	perHost := int64(maxPerHost)
	if perHost <= 0 {
		perHost = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", perHost)
	}
	return &HostSemaphorePool{
		slots:          make(map[string]*hostSlot),
		perHost:        perHost,
		acquireTimeout: acquireTimeout,
		log:            log,
	}
}

// Acquire takes one permit for host and returns the matching release func.
// Host names are compared case-insensitively.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) (func(), error) {
	host = strings.ToLower(host)
	slot := p.join(host)

	waitCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	if err := slot.permits.Acquire(waitCtx, 1); err != nil {
		p.leave(slot)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: image host %s busy for %v", utils.ErrSemaphoreTimeout, host, p.acquireTimeout)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.permits.Release(1)
			p.leave(slot)
		})
	}, nil
}

// join registers a user on host's slot, creating it on first use
func (p *HostSemaphorePool) join(host string) *hostSlot {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[host]
	if !ok {
		slot = &hostSlot{permits: semaphore.NewWeighted(p.perHost)}
		p.slots[host] = slot
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.perHost}).Debug("Tracking new image host")
	}
	slot.users++
	return slot
}

func (p *HostSemaphorePool) leave(slot *hostSlot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot.users--
	if slot.users == 0 {
		slot.idleSince = time.Now()
	}
}

// RunEviction periodically forgets hosts idle for longer than interval. Should be run in a goroutine.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle(interval)
		case <-ctx.Done():
			p.log.Debugf("Stopping host semaphore eviction: %v", ctx.Err())
			return
		}
	}
}

// evictIdle drops slots with no users whose last release is older than maxIdle
func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	before := len(p.slots)
	for host, slot := range p.slots {
		if slot.users == 0 && !slot.idleSince.IsZero() && !slot.idleSince.After(cutoff) {
			delete(p.slots, host)
		}
	}
	if evicted := before - len(p.slots); evicted > 0 {
		p.log.Debugf("Forgot %d idle image hosts, %d remain", evicted, len(p.slots))
	}
}

// Len returns the number of tracked hosts
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
