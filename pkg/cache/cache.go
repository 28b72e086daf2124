// Package cache provides byte-oriented caching with pluggable backends.
//
// pybundle caches downloaded source tarballs and HTTP responses so that
// repeated builds of the same release do not hit the network. Three
// backends are provided:
//   - FileCache: on-disk cache for local CLI usage (the default)
//   - RedisCache: shared cache for CI fleets building many versions
//   - NullCache: disables caching entirely
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Default TTLs for the cached data classes.
const (
	// TTLSource is the TTL for source tarballs. Release tarballs are
	// immutable once published, so they effectively never go stale.
	TTLSource = 0 * time.Second

	// TTLRemote is the TTL for remote artifact-store lookups.
	TTLRemote = time.Hour
)

// Cache stores opaque byte payloads under string keys with optional expiry.
//
// Implementations must treat a missing key as (nil, false, nil), reserving
// errors for genuine backend failures. A ttl of 0 means the entry never
// expires.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was present
	// and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL (0 = no expiry).
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// SourceKey returns the cache key for a source tarball, keyed by its
// expected digest so that a manifest change invalidates the entry.
func SourceKey(sha256 string) string {
	return "source:" + sha256
}

// RemoteKey returns the cache key for an artifact-store existence lookup.
// The archive name is hashed so that characters like '+' never leak into
// backend key syntax.
func RemoteKey(archiveName string) string {
	return "remote:" + hashHex(archiveName)
}

// hashHex returns the full SHA-256 of s as a 64-character hex string.
func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// keyType reports the namespace prefix of a key ("source", "remote") for
// observability hooks.
func keyType(key string) string {
	if prefix, _, ok := strings.Cut(key, ":"); ok {
		return prefix
	}
	return key
}
