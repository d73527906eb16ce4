// Package ratelimit provides request rate limiting keyed by client, backed
// by Redis when available with an in-process fallback.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter reports whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config controls limiter behavior. Limit is requests per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = 30
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

// RedisLimiter implements a fixed-window counter shared across instances.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
}

// NewRedisLimiter constructs a Redis-backed limiter.
func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.withDefaults()}
}

// Allow increments the window counter for key and compares it to the limit.
// The first hit in a window sets the expiry, so an abandoned key costs at
// most one window of memory.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := time.Now().Unix() / int64(l.cfg.Window.Seconds())
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, window)

	count, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, counterKey, l.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("expire rate counter: %w", err)
		}
	}
	return count <= int64(l.cfg.Limit), nil
}

// LocalLimiter is a per-process token bucket fallback for deployments
// without Redis. Limits are not shared across instances.
type LocalLimiter struct {
	cfg Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalLimiter constructs an in-memory limiter.
func NewLocalLimiter(cfg Config) *LocalLimiter {
	return &LocalLimiter{cfg: cfg.withDefaults(), limiters: map[string]*rate.Limiter{}}
}

// Allow consults the per-key token bucket, creating one on first use.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		perSecond := rate.Limit(float64(l.cfg.Limit) / l.cfg.Window.Seconds())
		limiter = rate.NewLimiter(perSecond, l.cfg.Limit)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow(), nil
}

// Pick returns a Redis-backed limiter when a client is configured and
// reachable, otherwise the in-process fallback. Mirrors how the rest of the
// system treats Redis as optional shared state.
func Pick(ctx context.Context, client redis.UniversalClient, cfg Config, logger *slog.Logger) Limiter {
	if client != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err == nil {
			return NewRedisLimiter(client, cfg)
		} else if logger != nil {
			logger.Warn("redis unavailable, using in-memory rate limiting", "error", err)
		}
	}
	return NewLocalLimiter(cfg)
}
