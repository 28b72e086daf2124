// Package source acquires and unpacks the upstream source tree: download
// the release tarball (with caching), verify its digest, and extract it
// with the leading path component stripped.
package source

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"os"

	"github.com/pybundle/pybundle/pkg/cache"
	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/httputil"
	"github.com/pybundle/pybundle/pkg/manifest"
)

// Downloader fetches release tarballs, caching them by expected digest.
type Downloader struct {
	Client *http.Client // nil means httputil.DefaultClient
	Cache  cache.Cache  // nil means no caching
}

// Fetch downloads the release tarball to dest, verifying its SHA-256
// digest. Cached tarballs are verified again before use: the cache is
// convenience, not a trust anchor.
func (d *Downloader) Fetch(ctx context.Context, rel manifest.Release, dest string) error {
	key := cache.SourceKey(rel.SHA256)

	if d.Cache != nil {
		if data, hit, err := d.Cache.Get(ctx, key); err == nil && hit {
			if err := verify(data, rel.SHA256); err == nil {
				return os.WriteFile(dest, data, 0o644)
			}
			// Corrupt cached tarball: discard and re-download.
			_ = d.Cache.Delete(ctx, key)
		}
	}

	data, err := httputil.Fetch(ctx, d.Client, rel.URL)
	if err != nil {
		return pberrors.Wrap(pberrors.ErrCodeNetwork, err, "download %s", rel.URL)
	}
	if err := verify(data, rel.SHA256); err != nil {
		return err
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, key, data, cache.TTLSource)
	}
	return os.WriteFile(dest, data, 0o644)
}

// verify checks data against the expected hex digest using a
// constant-time comparison.
func verify(data []byte, wantHex string) error {
	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(wantHex)) != 1 {
		return pberrors.New(pberrors.ErrCodeChecksum, "checksum mismatch:\n- got: %s\n- expected: %s", got, wantHex)
	}
	return nil
}
