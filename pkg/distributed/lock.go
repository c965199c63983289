// Package distributed provides a Redis-backed mutual exclusion lock. The
// broadcaster daemon and the screencast agent share one media engine; the
// lock guarantees a single owner at a time.
package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when this holder still owns it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lock is a Redis-backed lock with TTL-based expiry. The TTL bounds how
// long a crashed holder can block other processes.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration

	stopRenew chan struct{}
}

// NewLock creates a lock on the given key. The lock is not held until
// Acquire succeeds.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	b := make([]byte, 16)
	rand.Read(b)

	return &Lock{
		client: client,
		key:    key,
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

// Acquire takes the lock, polling until it is free or ctx expires. On
// success a background goroutine renews the TTL until Release.
func (l *Lock) Acquire(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
		}
		if ok {
			l.stopRenew = make(chan struct{})
			go l.renew()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %s: %w", l.key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// TryAcquire takes the lock without waiting. Returns false when another
// holder owns it.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if ok {
		l.stopRenew = make(chan struct{})
		go l.renew()
	}
	return ok, nil
}

// Release drops the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if l.stopRenew != nil {
		close(l.stopRenew)
		l.stopRenew = nil
	}

	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

func (l *Lock) renew() {
	interval := l.ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stop := l.stopRenew
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			l.client.Expire(ctx, l.key, l.ttl)
			cancel()
		}
	}
}
