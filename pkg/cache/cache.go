// Package cache stores derived bytes: downloaded datasets, world geometry
// and rendered artifacts. Story state is never cached.
//
// Three backends implement [Cache]:
//   - [FileCache] keeps entries under the user cache directory (CLI default)
//   - [RedisCache] shares entries between `harvest serve` replicas
//   - [NullCache] disables caching (--no-cache)
//
// Keys come from a [Keyer] so every backend agrees on naming.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the entry for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// DefaultDir returns the directory the file backend uses when none is
// configured: $XDG_CACHE_HOME/harvest or ~/.cache/harvest.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "harvest"), nil
}

// Fetch returns the cached entry for key or calls load and stores its
// result. Cache read and write failures degrade to a direct load.
func Fetch(ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}
	data, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	_ = c.Set(ctx, key, data, ttl)
	return data, false, nil
}
