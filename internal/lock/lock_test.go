// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocalTryAcquire(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	rel, err := l.TryAcquire(ctx, "a")
	require.NoError(t, err)

	_, err = l.TryAcquire(ctx, "a")
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.TryAcquire(ctx, "b")
	require.NoError(t, err, "different keys are independent")
	other()

	rel()
	rel() // idempotent

	again, err := l.TryAcquire(ctx, "a")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, l.Held())
}

func TestLocalAcquireSerializes(t *testing.T) {
	l := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := l.Acquire(context.Background(), "article-1")
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			rel()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Held())
}

func TestLocalAcquireHonorsContext(t *testing.T) {
	l := NewLocal()
	rel, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer rel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Held(), "waiter must drop its reference")
}
