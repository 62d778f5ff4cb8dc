// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lock provides keyed mutual exclusion. Local serializes work inside
// one process; Redis extends the same contract across processes with a
// leased key.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned by TryAcquire when the key is held elsewhere.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives a lock back. It is safe to call more than once.
type Release func()

// Locker hands out exclusive access per key.
type Locker interface {
	// Acquire blocks until the key is free or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)

	// TryAcquire returns ErrNotAcquired instead of waiting.
	TryAcquire(ctx context.Context, key string) (Release, error)
}

// Local is an in-process keyed mutex. Entries are reference counted and
// dropped when the last holder or waiter leaves, so the map does not grow
// with the number of keys ever seen.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

var _ Locker = (*Local)(nil)

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) release(key string, s *slot) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.sem
			l.unref(key, s)
		})
	}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	s := l.ref(key)
	select {
	case s.sem <- struct{}{}:
		return l.release(key, s), nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

// TryAcquire implements Locker.
func (l *Local) TryAcquire(_ context.Context, key string) (Release, error) {
	s := l.ref(key)
	select {
	case s.sem <- struct{}{}:
		return l.release(key, s), nil
	default:
		l.unref(key, s)
		return nil, ErrNotAcquired
	}
}

// Held returns the number of keys currently tracked.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
