package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pybundle/pybundle/pkg/observability"
)

// FileCache implements an on-disk cache for CLI usage.
//
// Payloads here are frequently source tarballs tens of megabytes large, so
// entries are split into two files: a small JSON metadata file holding the
// expiry, and a raw payload file written verbatim. Embedding the payload in
// JSON would base64-inflate every tarball by a third.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-based cache in the given directory.
// The directory will be created if it doesn't exist.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// entryMeta is the sidecar metadata stored next to each payload.
type entryMeta struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// Get retrieves a value from the cache.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	metaPath, dataPath := c.paths(key)

	raw, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		observability.Cache().OnCacheMiss(ctx, keyType(key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var meta entryMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		// Corrupt metadata - treat as miss and discard the entry
		c.remove(key)
		observability.Cache().OnCacheMiss(ctx, keyType(key))
		return nil, false, nil
	}

	if !meta.ExpiresAt.IsZero() && time.Now().After(meta.ExpiresAt) {
		c.remove(key)
		observability.Cache().OnCacheMiss(ctx, keyType(key))
		return nil, false, nil
	}

	data, err := os.ReadFile(dataPath)
	if os.IsNotExist(err) {
		// Payload vanished out from under the metadata - treat as miss
		c.remove(key)
		observability.Cache().OnCacheMiss(ctx, keyType(key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	observability.Cache().OnCacheHit(ctx, keyType(key))
	return data, true, nil
}

// Set stores a value in the cache.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var meta entryMeta
	if ttl > 0 {
		meta.ExpiresAt = time.Now().Add(ttl)
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	metaPath, dataPath := c.paths(key)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return err
	}

	// Payload first: a metadata file without its payload reads as a miss,
	// but a payload without metadata is simply invisible.
	if err := os.WriteFile(dataPath, data, 0644); err != nil {
		return err
	}
	if err := os.WriteFile(metaPath, metaData, 0644); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, keyType(key), len(data))
	return nil
}

// Delete removes a value from the cache.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	c.remove(key)
	return nil
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

// remove discards both files of an entry, ignoring missing ones.
func (c *FileCache) remove(key string) {
	metaPath, dataPath := c.paths(key)
	_ = os.Remove(metaPath)
	_ = os.Remove(dataPath)
}

// paths converts a cache key to its metadata and payload file paths.
// Uses a hash-based subdirectory to avoid too many files in one dir.
func (c *FileCache) paths(key string) (metaPath, dataPath string) {
	hash := hashHex(key)
	base := filepath.Join(c.dir, hash[:2], hash[2:])
	return base + ".json", base + ".bin"
}

// Ensure FileCache implements Cache.
var _ Cache = (*FileCache)(nil)
