// Package pipeline drives the complete build: download → extract → build →
// prune → relink → archive. Centralizing the stage sequence here keeps the
// CLI a thin shell and gives every entry point the same logging, hook
// events, and skip-if-published behavior.
//
// Stages are strictly sequential. They share one temporary workspace and
// the relink walk mutates binaries in place, so nothing here is safe to
// parallelize across stages.
package pipeline

import (
	"time"

	"github.com/pybundle/pybundle/pkg/manifest"
)

// Stage names, in execution order.
const (
	StageDownload = "download"
	StageExtract  = "extract"
	StageBuild    = "build"
	StagePrune    = "prune"
	StageRelink   = "relink"
	StageArchive  = "archive"
)

// DefaultDistDir is where finished archives land.
const DefaultDistDir = "dist"

// Options configures a pipeline run.
type Options struct {
	// Version selects the release to build. Required.
	Version manifest.Version

	// DistDir receives the finished archive. Empty means DefaultDistDir.
	DistDir string

	// Force builds even when the archive is already published.
	Force bool

	// Jobs caps parallel make jobs. Zero means NumCPU.
	Jobs int
}

// Stats records per-stage wall time.
type Stats struct {
	Stages map[string]time.Duration
	Total  time.Duration
}

// Result describes a finished (or skipped) pipeline run.
type Result struct {
	BuildID     string
	ArchiveName string
	ArchivePath string // empty when skipped or delegated

	// Skipped is true when the archive was already published and no
	// build ran.
	Skipped bool

	// Delegated is true when the build re-ran inside the CI container;
	// the archive was produced by the inner invocation.
	Delegated bool

	// Vendored lists the libraries copied next to the binary, in the
	// order the closure walk found them.
	Vendored []string

	Stats Stats
}
