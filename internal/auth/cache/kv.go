// Package cache provides the fast key-value layer used for hot user
// profiles, per-user session versions, and resolved organization scopes.
// The backing store is redis; when redis is unreachable the layer degrades
// to an in-process map so authentication keeps working (single-instance
// semantics only).
package cache

import (
	"context"
	"time"
)

// KV is the minimal key-value contract the session cache is built on.
// Implementations: Redis (shared, cross-instance) and Memory (in-process
// fallback). The cache is best-effort and never the source of truth.
type KV interface {
	// Get returns the value and whether the key existed.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment atomically increments an integer value, creating it at 1
	// when absent, and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection, if any.
	Close() error
}
