// Package relink makes already-built binaries relocatable: it discovers the
// shared libraries a binary links against, copies the non-system ones into a
// bundled library directory, and rewrites every link reference so it
// resolves relative to the referencing file's own location. After the walk,
// the whole prefix can be moved to any absolute path (and the build
// machine's development libraries deleted) without breaking the binary.
//
// The package is split along the platform boundary: [Inspector] and
// [Relinker] hide the per-OS introspection and rewrite tools (ldd/patchelf
// on Linux, otool/install_name_tool/codesign on macOS), while
// [VendorClosure] walks the dependency closure with no platform-conditional
// logic at all.
package relink

import (
	"context"
)

// Inspector reports the shared libraries a binary directly links against.
type Inspector interface {
	// Linked returns the ordered absolute paths of the libraries binary
	// directly references, excluding the dynamic loader, libraries shipped
	// with the base operating system, self-references, and references with
	// no backing file on disk.
	//
	// Introspection output the parser does not recognize is a hard error:
	// silently skipping an unknown dependency would ship a broken artifact.
	Linked(ctx context.Context, binary string) ([]string, error)
}

// Relinker rewrites a binary's link metadata in place.
type Relinker interface {
	// Relink mutates binary so that all its direct library references
	// resolve inside libdir via a path relative to the binary's own
	// location. When setName is true the binary's own declared identity is
	// also rewritten to a loader-relative form; this is required for every
	// vendored library (other binaries reference it by that identity) and
	// skipped for top-level executables.
	//
	// Any rewrite-tool failure is fatal: a partially relinked binary is
	// unsafe to ship, so callers must abort the whole build.
	Relink(ctx context.Context, binary, libdir string, setName bool) error
}

// Platform bundles the inspection and rewrite mechanisms for one operating
// system. Implementations carry all platform divergence; everything above
// them is platform-agnostic.
type Platform interface {
	Inspector
	Relinker

	// Name returns the GOOS-style platform name ("linux", "darwin").
	Name() string
}
