// Package cache stores rendered artifacts keyed by content hash.
//
// Rendering a layout through Graphviz is the slowest step of the render
// command and of the image endpoint, and the same positioned graph is often
// drawn repeatedly. Artifacts are keyed by the hash of the DOT source and
// the output format, so any change to positions, labels or styling yields a
// new key and stale entries simply age out.
//
// Three backends implement [Cache]:
//
//   - [FileCache] for the CLI, under the user cache directory
//   - [Redis] for servers that share a Redis instance with their workers
//   - [NullCache] when caching is disabled
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long artifacts are kept when no TTL is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ArtifactKey keys a rendered artifact by its DOT source and format.
func ArtifactKey(dot, format string) string {
	return hashKey("artifact", Hash([]byte(dot)), format)
}

// Fetch returns the cached value for key, or computes, stores and returns
// it. hit reports whether the value came from the cache. Read and write
// failures of the cache degrade to a miss; only compute errors are returned.
func Fetch(ctx context.Context, c Cache, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) (data []byte, hit bool, err error) {
	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}
	data, err = compute(ctx)
	if err != nil {
		return nil, false, err
	}
	_ = c.Set(ctx, key, data, ttl)
	return data, false, nil
}
