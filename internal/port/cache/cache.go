// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching of authorization
// state (effective permission sets, tenant lookups). Values are opaque
// bytes; callers own serialization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Clear removes every entry. Used by full invalidation sweeps.
	Clear(ctx context.Context) error
}
