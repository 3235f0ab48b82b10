package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	locks := New()
	ctx := context.Background()

	var inCritical int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locks.WithLock(ctx, "gift-1", func() error {
				n := atomic.AddInt32(&inCritical, 1)
				if n > atomic.LoadInt32(&maxSeen) {
					atomic.StoreInt32(&maxSeen, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inCritical, -1)
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxSeen); got != 1 {
		t.Fatalf("expected at most 1 goroutine in critical section, saw %d", got)
	}
	if locks.Len() != 0 {
		t.Fatalf("expected all entries reclaimed, %d remain", locks.Len())
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	locks := New()
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, "gift-a")
	if err != nil {
		t.Fatalf("acquire gift-a: %v", err)
	}
	defer releaseA()

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := locks.WithLock(waitCtx, "gift-b", func() error { return nil }); err != nil {
		t.Fatalf("gift-b should not wait behind gift-a: %v", err)
	}
}

func TestAcquireTimesOutBehindHolder(t *testing.T) {
	t.Parallel()

	locks := New()
	release, err := locks.Acquire(context.Background(), "gift-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, "gift-1")
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}

	release()
	if locks.Len() != 0 {
		t.Fatalf("expected entry reclaimed after release, %d remain", locks.Len())
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	t.Parallel()

	locks := New()
	ctx := context.Background()
	sentinel := errors.New("validation failed")

	if err := locks.WithLock(ctx, "gift-1", func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	// The key must be free again.
	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if err := locks.WithLock(waitCtx, "gift-1", func() error { return nil }); err != nil {
		t.Fatalf("lock not released after error: %v", err)
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	t.Parallel()

	locks := New()
	ctx := context.Background()

	func() {
		defer func() { _ = recover() }()
		_ = locks.WithLock(ctx, "gift-1", func() error { panic("boom") })
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if err := locks.WithLock(waitCtx, "gift-1", func() error { return nil }); err != nil {
		t.Fatalf("lock not released after panic: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	locks := New()
	release, err := locks.Acquire(context.Background(), "gift-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()

	if locks.Len() != 0 {
		t.Fatalf("expected zero entries, got %d", locks.Len())
	}
}

func TestFIFOOrderUnderContention(t *testing.T) {
	t.Parallel()

	locks := New()
	ctx := context.Background()

	hold, err := locks.Acquire(ctx, "gift-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	const waiters = 8
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	started := make(chan struct{}, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			started <- struct{}{}
			_ = locks.WithLock(ctx, "gift-1", func() error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
		}(i)
		<-started
		// Give the goroutine time to park on the lock before
		// starting the next so arrival order is deterministic.
		time.Sleep(5 * time.Millisecond)
	}

	hold()
	wg.Wait()

	for i, n := range order {
		if n != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}
