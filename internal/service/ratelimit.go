package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts attempts per key inside a fixed window.
type Limiter interface {
	// Allow records one attempt and reports whether it is within limit.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Quota is a limit per window.
type Quota struct {
	Limit  int
	Window time.Duration
}

func (q Quota) enabled() bool {
	return q.Limit > 0 && q.Window > 0
}

// CounterStore is the subset of Redis commands the limiter issues.
// persistence.Redis satisfies it.
type CounterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// noExpiry is what TTL reports for a key that exists without a timeout.
const noExpiry = time.Duration(-1)

// RedisLimiter is a fixed-window counter kept in Redis.
type RedisLimiter struct {
	store  CounterStore
	prefix string
}

// NewRedisLimiter builds a limiter over store.
func NewRedisLimiter(store CounterStore) *RedisLimiter {
	return &RedisLimiter{store: store, prefix: "ratelimit:"}
}

// Allow increments the counter for key, starting the window on the first
// hit. A counter left without a timeout, e.g. because the first EXPIRE
// failed, gets one on the next hit so it cannot lock the key forever.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := l.prefix + key
	count, err := l.store.Incr(ctx, fullKey).Result()
	if err != nil {
		return true, err
	}
	allowed := count <= int64(limit)

	if count > 1 {
		ttl, err := l.store.TTL(ctx, fullKey).Result()
		if err != nil {
			return allowed, err
		}
		if ttl != noExpiry {
			return allowed, nil
		}
	}
	if err := l.store.Expire(ctx, fullKey, window).Err(); err != nil {
		return allowed, err
	}
	return allowed, nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.store.Del(ctx, l.prefix+key).Err()
}
