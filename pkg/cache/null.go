package cache

import (
	"context"
	"time"
)

// NullCache disables memoization: every lookup misses, so each run
// recomputes its snapshot, scene, and constellation stages from
// scratch. Backs the --no-cache flag and the "none" backend.
type NullCache struct{}

// NewNullCache creates the disabled backend.
func NewNullCache() Cache { return NullCache{} }

// Get misses for every key.
func (NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards the value.
func (NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete is a no-op.
func (NullCache) Delete(ctx context.Context, key string) error { return nil }

// Close is a no-op.
func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
