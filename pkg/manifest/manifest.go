// Package manifest describes the CPython releases pybundle knows how to
// build: for each version, the upstream source tarball URL and its expected
// SHA-256 digest.
//
// A default manifest is embedded in the binary; an alternative file can be
// supplied with --manifest for testing new releases before they are added
// upstream.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
)

//go:embed releases.toml
var defaultTOML []byte

// Version is a CPython version triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a "major.minor.patch" string.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, pberrors.New(pberrors.ErrCodeInvalidVersion, "expected major.minor.patch, got %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, pberrors.New(pberrors.ErrCodeInvalidVersion, "expected major.minor.patch, got %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String returns the "major.minor.patch" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// PyMinor returns the "pythonX.Y" name used for the interpreter binary and
// its lib directory (e.g. "python3.10").
func (v Version) PyMinor() string {
	return fmt.Sprintf("python%d.%d", v.Major, v.Minor)
}

// Release describes one buildable CPython release.
type Release struct {
	Version string `toml:"version"` // e.g. "3.10.5"
	URL     string `toml:"url"`     // upstream source tarball
	SHA256  string `toml:"sha256"`  // hex digest of the tarball
	Build   int    `toml:"build"`   // local build number, bumped for rebuilds of the same version
}

// Manifest is the set of known releases.
type Manifest struct {
	Releases []Release `toml:"release"`
}

// Default returns the manifest embedded in the binary.
func Default() (*Manifest, error) {
	return parse(defaultTOML)
}

// Load reads a manifest from a TOML file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for _, r := range m.Releases {
		if _, err := ParseVersion(r.Version); err != nil {
			return nil, err
		}
		if r.URL == "" || r.SHA256 == "" {
			return nil, pberrors.New(pberrors.ErrCodeInvalidVersion, "release %s is missing url or sha256", r.Version)
		}
	}
	return &m, nil
}

// Lookup returns the release record for the given version.
func (m *Manifest) Lookup(v Version) (Release, bool) {
	want := v.String()
	for _, r := range m.Releases {
		if r.Version == want {
			return r, true
		}
	}
	return Release{}, false
}

// Versions returns the version strings of all releases, in manifest order.
func (m *Manifest) Versions() []string {
	out := make([]string, 0, len(m.Releases))
	for _, r := range m.Releases {
		out = append(out, r.Version)
	}
	return out
}
