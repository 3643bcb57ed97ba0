// Package cache holds the storefront menu cache. The menu is read on every
// storefront load and changes a few times a day at most, so responses are
// cached as rendered JSON bytes.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-payload cache with TTL. Satisfied by *Redis; Noop disables
// caching without branching at call sites.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Noop is a Cache that stores nothing. Used when REDIS_ADDR is unset.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) ([]byte, bool)                 { return nil, false }
func (Noop) Set(ctx context.Context, key string, value []byte, t time.Duration) {}
func (Noop) Delete(ctx context.Context, key string)                             {}
