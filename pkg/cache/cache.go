// Package cache stores kernel results and rendered artifacts between runs.
//
// # Backends
//
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the HTTP server
//   - [Disabled]: keeps nothing, used with --no-cache and backend "none"
//
// # Keys
//
// Keys are built by a [Keyer] from content hashes of the inputs, never from
// file names, so renaming a tensor file does not invalidate its results:
//
//	keyer := cache.NewDefaultKeyer()
//	key := keyer.RunKey("matmul", []string{hashA, hashB}, cache.RunKeyOpts{})
//
// [ScopedKeyer] prefixes every key, which lets several servers share one
// Redis database.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values for cached entries.
const (
	TTLRun      = 7 * 24 * time.Hour
	TTLArtifact = 30 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the data stored under key. A missing or expired entry is
	// reported as a miss (false) with a nil error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
