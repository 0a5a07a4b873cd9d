// Package cache provides the TTL quote caches. Entries are stored as JSON
// bytes so the in-memory and Redis backends are interchangeable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is the backend contract. Get reports a miss (not an error) for
// absent or expired keys; an entry is served only while now < expiresAt.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	Close() error
}

// ProviderKey caches one provider's normalized quotes for one request shape.
func ProviderKey(providerID, requestHash string) string {
	return fmt.Sprintf("quotes:%s:%s", providerID, requestHash)
}

// AggregateKey caches the fully ranked comparison for one request shape.
func AggregateKey(requestHash string) string {
	return fmt.Sprintf("agg:%s", requestHash)
}

// GetJSON fetches and decodes a cached value. A decode failure is treated
// as a miss so a stale schema can never poison reads.
func GetJSON[T any](ctx context.Context, c Cache, key string) (*T, bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		_ = c.Invalidate(ctx, key)
		return nil, false, nil
	}
	return &v, true, nil
}

// PutJSON encodes and stores a value under the given TTL.
func PutJSON[T any](ctx context.Context, c Cache, key string, v *T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.Put(ctx, key, raw, ttl)
}
