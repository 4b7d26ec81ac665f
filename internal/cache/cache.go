// Package cache provides the query cache used by read-side projections
// of the ledgers: an in-memory TTL cache by default, or Redis when a
// shared backend is configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache stores opaque byte values under string keys. A zero TTL means
// the entry lives until the process exits (or, for Redis, indefinitely).
type Cache interface {
	// Get returns the cached value and whether it was present. Expired
	// entries count as absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. ttl == 0 disables expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// WithCache returns the cached value for key, or produces, caches, and
// returns it on a miss. Values round-trip through JSON.
//
// This is check-then-act, not single-flight: concurrent misses for the
// same key may each invoke produce and each populate the cache. That is
// acceptable for idempotent, side-effect-free read aggregations — do not
// reuse it for anything with side effects.
func WithCache[T any](ctx context.Context, c Cache, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	var value T

	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		return value, fmt.Errorf("cache get %s: %w", key, err)
	}
	if ok {
		if err := json.Unmarshal(raw, &value); err != nil {
			return value, fmt.Errorf("cache decode %s: %w", key, err)
		}
		return value, nil
	}

	value, err = produce(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value, fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.Set(ctx, key, encoded, ttl); err != nil {
		return value, fmt.Errorf("cache set %s: %w", key, err)
	}
	return value, nil
}
