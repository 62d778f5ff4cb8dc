// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "content-engine:lock:"

	// DefaultTTL bounds how long a lease survives a crashed holder. Live
	// holders renew it every third of the TTL until they release.
	DefaultTTL = 15 * time.Minute

	// opTimeout bounds one renew or release call.
	opTimeout = 5 * time.Second
)

// retryInterval is how often a blocked Acquire polls Redis. Tests shorten it.
var retryInterval = 100 * time.Millisecond

// releaseScript deletes the key only when it still holds our token, so an
// expired lease re-acquired by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Client is the subset of *redis.Client the locker uses.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Redis leases keys with SET NX PX. Each lease carries a random token.
type Redis struct {
	client Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ Locker = (*Redis)(nil)

// NewRedis wraps a go-redis client. A zero ttl uses DefaultTTL.
func NewRedis(client Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, ttl: ttl, logger: logger.Named("lock")}
}

// Acquire implements Locker by polling until the lease is won or ctx ends.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		rel, err := r.TryAcquire(ctx, key)
		if err == nil {
			return rel, nil
		}
		if !errors.Is(err, ErrNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryAcquire implements Locker.
func (r *Redis) TryAcquire(ctx context.Context, key string) (Release, error) {
	full := keyPrefix + key
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	stop, done := make(chan struct{}), make(chan struct{})
	go r.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release must work after the caller's ctx is cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{full}, token).Err(); err != nil {
				r.logger.Warn("release failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive renews the lease until stop is closed or the lease is lost.
func (r *Redis) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	full := keyPrefix + key
	ticker := time.NewTicker(max(r.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		n, err := renewScript.Run(ctx, r.client, []string{full}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			r.logger.Warn("lease renewal failed", zap.String("key", key), zap.Error(err))
		case n == 0:
			r.logger.Warn("lease lost", zap.String("key", key))
			return
		}
	}
}
