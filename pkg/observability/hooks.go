// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers can register
// hooks at startup to receive events about build stages, the relink walk,
// and cache operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetBuildHooks(&myBuildHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Build().OnStageStart(ctx, buildID, "download")
//	// ... do the work ...
//	observability.Build().OnStageComplete(ctx, buildID, "download", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// BuildHooks receives events from the build pipeline.
type BuildHooks interface {
	// OnBuildStart fires once per pipeline run.
	OnBuildStart(ctx context.Context, buildID, version string)

	// OnStageStart and OnStageComplete bracket each sequential stage
	// (download, extract, build, prune, relink, archive).
	OnStageStart(ctx context.Context, buildID, stage string)
	OnStageComplete(ctx context.Context, buildID, stage string, duration time.Duration, err error)

	// OnBuildComplete fires after the last stage, or after the stage
	// that failed.
	OnBuildComplete(ctx context.Context, buildID string, duration time.Duration, err error)
}

// RelinkHooks receives events from the closure walk.
type RelinkHooks interface {
	// OnVendor records a library copied into the destination directory.
	OnVendor(ctx context.Context, library, from string)

	// OnRelink records a binary whose link metadata was rewritten.
	OnRelink(ctx context.Context, binary string, linkCount int)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopBuildHooks is a no-op implementation of BuildHooks.
type NoopBuildHooks struct{}

func (NoopBuildHooks) OnBuildStart(context.Context, string, string)                          {}
func (NoopBuildHooks) OnStageStart(context.Context, string, string)                          {}
func (NoopBuildHooks) OnStageComplete(context.Context, string, string, time.Duration, error) {}
func (NoopBuildHooks) OnBuildComplete(context.Context, string, time.Duration, error)         {}

// NoopRelinkHooks is a no-op implementation of RelinkHooks.
type NoopRelinkHooks struct{}

func (NoopRelinkHooks) OnVendor(context.Context, string, string) {}
func (NoopRelinkHooks) OnRelink(context.Context, string, int)    {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	buildHooks  BuildHooks  = NoopBuildHooks{}
	relinkHooks RelinkHooks = NoopRelinkHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetBuildHooks registers custom build hooks.
// This should be called once at application startup before any builds.
func SetBuildHooks(h BuildHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		buildHooks = h
	}
}

// SetRelinkHooks registers custom relink hooks.
func SetRelinkHooks(h RelinkHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		relinkHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Build returns the registered build hooks.
func Build() BuildHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return buildHooks
}

// Relink returns the registered relink hooks.
func Relink() RelinkHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return relinkHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	buildHooks = NoopBuildHooks{}
	relinkHooks = NoopRelinkHooks{}
	cacheHooks = NoopCacheHooks{}
}
