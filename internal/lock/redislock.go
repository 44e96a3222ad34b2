// Package lock serialises work across service instances with a Redis lease.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
	defaultPrefix  = "pos:lock:"
)

// ErrNotConfigured is returned when the locker has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

// releaseScript deletes the key only while it still holds our token, so a lease that
// expired and was taken by another instance is never released by us.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker hands out Redis leases keyed by name.
type Locker struct {
	R            redis.Cmdable
	Prefix       string
	RetryBackoff time.Duration
}

// Acquire blocks until the lease for key is held or ctx is done. The returned release
// func is safe to call once the work is finished; an expired lease is left alone.
func (l Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.R == nil {
		return nil, ErrNotConfigured
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultBackoff
	}
	name := l.key(key)
	token := uuid.NewString()

	for {
		ok, err := l.R.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(name, token) }, nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// WithLock runs fn while holding the lease for key.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	release, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (l Locker) key(name string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + name
}

func (l Locker) release(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.R, []string{name}, token).Err()
}
