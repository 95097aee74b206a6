package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

func newTestPool(limit int) *HostSemaphorePool {
	return NewHostSemaphorePool(limit, 0, testLogger())
}

func TestHostSemaphore_LimitAndRelease(t *testing.T) {
	pool := newTestPool(2)

	r1, err := pool.Acquire(context.Background(), "cdn.example")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	r2, err := pool.Acquire(context.Background(), "cdn.example")
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx, "cdn.example"); err == nil {
		t.Fatal("expected third acquire to block")
	}

	r1()
	r1() // second call is a no-op
	r3, err := pool.Acquire(context.Background(), "cdn.example")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	r2()
	r3()
}

func TestHostSemaphore_AcquireTimeoutIsSemaphoreError(t *testing.T) {
	pool := NewHostSemaphorePool(1, 20*time.Millisecond, testLogger())
	release, err := pool.Acquire(context.Background(), "a.example")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = pool.Acquire(context.Background(), "a.example")
	if !errors.Is(err, utils.ErrSemaphoreTimeout) {
		t.Errorf("expected ErrSemaphoreTimeout, got %v", err)
	}
}

func TestHostSemaphore_HostsIndependent(t *testing.T) {
	pool := newTestPool(1)
	ra, err := pool.Acquire(context.Background(), "a.example")
	if err != nil {
		t.Fatal(err)
	}
	rb, err := pool.Acquire(context.Background(), "b.example")
	if err != nil {
		t.Fatal(err)
	}
	if pool.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", pool.Len())
	}
	ra()
	rb()
}

func TestHostSemaphore_EvictIdle(t *testing.T) {
	pool := newTestPool(1)

	held, _ := pool.Acquire(context.Background(), "held.example")
	for _, host := range []string{"a.example", "b.example"} {
		release, err := pool.Acquire(context.Background(), host)
		if err != nil {
			t.Fatalf("acquire %s: %v", host, err)
		}
		release()
	}

	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)

	if pool.Len() != 1 {
		t.Errorf("expected only the held host to remain, got %d entries", pool.Len())
	}
	held()
}

func TestHostSemaphore_RunEvictionStopsOnCancel(t *testing.T) {
	pool := newTestPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.RunEviction(ctx, time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunEviction did not stop")
	}
}

func TestHostSemaphore_Concurrent(t *testing.T) {
	pool := newTestPool(3)
	var wg sync.WaitGroup
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := pool.Acquire(context.Background(), "busy.example")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			time.Sleep(time.Millisecond)
			release()
		}()
	}
	wg.Wait()

	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)
	if pool.Len() != 0 {
		t.Errorf("expected 0 entries after all released, got %d", pool.Len())
	}
}

func TestHostSemaphore_HostCaseInsensitive(t *testing.T) {
	pool := NewHostSemaphorePool(1, 20*time.Millisecond, testLogger())
	release, err := pool.Acquire(context.Background(), "CDN.Example")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if _, err := pool.Acquire(context.Background(), "cdn.example"); !errors.Is(err, utils.ErrSemaphoreTimeout) {
		t.Errorf("expected the same host slot to be full, got %v", err)
	}
	if pool.Len() != 1 {
		t.Errorf("expected 1 tracked host, got %d", pool.Len())
	}
}
