// Package store provides the shared key-value backends behind request throttling and search caching.
//
// Two backends implement [Store]:
//   - [RedisStore] : go-redis client; counters are incremented and armed with an expiry by a single Lua script
//   - [MemoryStore] : process-local maps for single-instance deployments and tests
//
// Keys are namespaced by their callers: "throttle:{client}" for counters and "search:{digest}" for cached results.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunegate/internal/shared"
)

// Counter is an atomic fixed-window counter.
type Counter interface {
	// Incr increments key and returns the new count. The first increment of a window sets its expiry.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Cache is a TTL-bounded byte cache.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Store is a backend that serves both counters and cache entries.
type Store interface {
	Counter
	Cache
	Ping(ctx context.Context) error
	Close() error
}

// ThrottleKey is the counter key for a client identity.
func ThrottleKey(client string) string {
	return "throttle:" + client
}

// New builds the backend selected by cfg.Store.Backend.
func New(ctx context.Context, cfg *shared.Config) (Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis", "":
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, cfg.Store.Backend)
	}
}
