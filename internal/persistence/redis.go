package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/config"
)

const redisDialTimeout = 2 * time.Second

// Redis holds the throttle counters. Every key is placed under the
// application namespace so several deployments can share one database.
type Redis struct {
	Client    *redis.Client
	namespace string
}

// NewRedis connects to Redis. An unreachable server is logged rather than
// fatal: login and reset throttling fail open until it comes back.
func NewRedis(cfg config.RedisConfig, namespace string, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})
	r := &Redis{Client: client, namespace: namespace}

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		logger.Warn("unable to reach redis, throttling disabled until it recovers", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.String("namespace", namespace))
	}
	return r
}

func (r *Redis) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + ":" + k
}

// Incr increments the namespaced counter k.
func (r *Redis) Incr(ctx context.Context, k string) *redis.IntCmd {
	return r.Client.Incr(ctx, r.key(k))
}

// TTL reports the remaining window of counter k.
func (r *Redis) TTL(ctx context.Context, k string) *redis.DurationCmd {
	return r.Client.TTL(ctx, r.key(k))
}

// Expire sets the window of counter k.
func (r *Redis) Expire(ctx context.Context, k string, expiration time.Duration) *redis.BoolCmd {
	return r.Client.Expire(ctx, r.key(k), expiration)
}

// Del removes the given counters.
func (r *Redis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = r.key(k)
	}
	return r.Client.Del(ctx, namespaced...)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
