// Package ratelimit bounds how often the scrape worker pool may hit any one
// source host (spec.md §5: "Parallelism... bounded by a rate-limit per
// source host"). It is a Redis-backed fixed window, keyed by host, so the
// limit holds across the pool's goroutines and across process restarts.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
	"github.com/fourthplaces/rootsignal/internal/config"
)

// Limiter enforces a fixed request budget per host per window, using a
// Redis INCR+EXPIRE counter keyed by host and the window's start. Like
// kubernaut's cache.Client it checks the connection with a fast-path atomic
// load and pings only until a ping succeeds (no lock, so concurrent first
// calls may each ping), so a hot path doesn't pay a round trip just to
// confirm it's connected.
type Limiter struct {
	client    *redis.Client
	perHost   int
	window    time.Duration
	connected atomic.Bool
}

// New builds a Limiter from an already-constructed client, so tests can pass
// one pointed at miniredis.
func New(client *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{client: client, perHost: cfg.RequestsPerHost, window: cfg.Window}
}

// NewFromConfig dials Redis per cfg without blocking the caller; the first
// Allow call pays the connection cost.
func NewFromConfig(cfg config.RateLimitConfig) *Limiter {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return New(client, cfg)
}

func (l *Limiter) ensureConnection(ctx context.Context) error {
	if l.connected.Load() {
		return nil
	}
	if err := l.client.Ping(ctx).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "redis unavailable for rate limiter")
	}
	l.connected.Store(true)
	return nil
}

// Allow increments the current window's counter for host and reports
// whether the caller may proceed. A request the limiter can't reach Redis
// for is allowed through (fail open) rather than blocking the whole scrape
// run on a rate limiter outage — the scrape's own timeout/circuit breaker
// is the backstop for a host that's actually unresponsive.
func (l *Limiter) Allow(ctx context.Context, host string) (bool, error) {
	if err := l.ensureConnection(ctx); err != nil {
		return true, nil
	}

	key := windowKey(host, l.window)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	return count <= int64(l.perHost), nil
}

// HostOf extracts the rate-limit key from a URL: scheme-less, lowercase
// host, so http/https and www-prefixed variants of the same site share one
// budget.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}

func windowKey(host string, window time.Duration) string {
	bucket := time.Now().Unix() / int64(window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%d", host, bucket)
}

func (l *Limiter) Close() error {
	return l.client.Close()
}
