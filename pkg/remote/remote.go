// Package remote answers "is this artifact already published?" against the
// artifact store, so CI can skip multi-hour rebuilds of archives that
// already exist.
package remote

import (
	"context"
	"net/http"
	"strings"

	"github.com/pybundle/pybundle/pkg/cache"
	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/httputil"
)

// DefaultBaseURL is the public artifact store prefix.
const DefaultBaseURL = "https://storage.googleapis.com/pybundle-assets/prebuilt-pythons"

// Store checks the artifact store for published archives.
type Store struct {
	BaseURL string       // empty means DefaultBaseURL
	Client  *http.Client // nil means httputil.DefaultClient
	Cache   cache.Cache  // nil means no caching
}

// URL returns the download URL for archiveName.
func (s *Store) URL(archiveName string) string {
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + archiveName
}

// AlreadyBuilt reports whether archiveName exists in the store. A 404 means
// not built; any non-2xx other than 404 is an error so a flaky store never
// silently skips a build. Only positive answers are cached: an archive,
// once published, never disappears, but "missing" changes the moment CI
// uploads it.
func (s *Store) AlreadyBuilt(ctx context.Context, archiveName string) (bool, error) {
	key := cache.RemoteKey(archiveName)
	if s.Cache != nil {
		if _, hit, err := s.Cache.Get(ctx, key); err == nil && hit {
			return true, nil
		}
	}

	built, err := httputil.Exists(ctx, s.Client, s.URL(archiveName))
	if err != nil {
		return false, pberrors.Wrap(pberrors.ErrCodeNetwork, err, "check %s", s.URL(archiveName))
	}

	if built && s.Cache != nil {
		_ = s.Cache.Set(ctx, key, []byte("1"), cache.TTLRemote)
	}
	return built, nil
}
