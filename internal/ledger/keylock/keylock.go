// Package keylock provides per-key mutual exclusion for the gift
// ledger. Operations on the same key are applied one at a time in
// arrival order; operations on different keys never block each other.
package keylock

import (
	"context"
	"errors"
	"sync"
)

// ErrWaitTimeout is returned when the caller's context expires before
// the key's lock becomes available.
var ErrWaitTimeout = errors.New("timed out waiting for key lock")

type entry struct {
	// token has capacity one. Holding the token is holding the lock.
	// Goroutines blocked on the send are queued FIFO by the runtime.
	token chan struct{}
	refs  int
}

// KeyedLock is a map of lightweight per-key locks. Entries exist only
// while at least one goroutine holds or waits for the key.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty keyed lock.
func New() *KeyedLock {
	return &KeyedLock{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx expires. On
// success it returns a release function that must be called exactly
// once; on timeout it returns ErrWaitTimeout.
func (l *KeyedLock) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.token <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-e.token
				l.drop(key, e)
			})
		}
		return release, nil
	case <-ctx.Done():
		l.drop(key, e)
		return nil, ErrWaitTimeout
	}
}

// WithLock runs fn while holding the key's lock. The lock is released
// on every exit path, including a panic inside fn.
func (l *KeyedLock) WithLock(ctx context.Context, key string, fn func() error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (l *KeyedLock) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Len reports how many keys currently have holders or waiters.
func (l *KeyedLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
