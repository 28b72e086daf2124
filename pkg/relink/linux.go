package relink

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
)

// lddLine matches resolved dependency lines such as
// "libz.so.1 => /lib/x86_64-linux-gnu/libz.so.1 (0x00007f...)".
var lddLine = regexp.MustCompile(`^[^ ]+ => ([^ ]+) \([^(]+\)$`)

// Linux inspects binaries with ldd and rewrites them with patchelf.
//
// Libraries belonging to libc6 are never vendored: every manylinux-style
// target guarantees them, and shipping a foreign libc alongside the system
// loader breaks at runtime.
type Linux struct {
	run Runner

	excludeOnce sync.Once
	exclude     map[string]struct{}
	excludeErr  error
}

// NewLinux returns the Linux platform using the given runner.
func NewLinux(run Runner) *Linux {
	return &Linux{run: run}
}

// Name returns "linux".
func (l *Linux) Name() string { return "linux" }

// Linked implements Inspector via ldd.
func (l *Linux) Linked(ctx context.Context, binary string) ([]string, error) {
	excluded, err := l.baseExclusions(ctx)
	if err != nil {
		return nil, err
	}

	out, err := l.run.Output(ctx, "ldd", binary)
	if err != nil {
		return nil, pberrors.Wrap(pberrors.ErrCodeToolFailed, err, "inspect %s", binary)
	}

	var linked []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := lddLine.FindStringSubmatch(line)
		if m == nil {
			switch {
			case line == "statically linked":
			case strings.HasPrefix(line, "linux-vdso.so.1 "):
			case strings.HasPrefix(line, "/lib/ld-linux-"):
			case strings.HasPrefix(line, "/lib64/ld-linux-"):
			default:
				return nil, pberrors.New(pberrors.ErrCodeInspectOutput, "unexpected ldd line: %q", line)
			}
			continue
		}

		if _, ok := excluded[m[1]]; !ok {
			linked = append(linked, m[1])
		}
	}
	return linked, nil
}

// Relink implements Relinker via patchelf.
//
// A single rpath entry anchored at $ORIGIN covers every reference, so there
// is no per-reference rewrite. ELF identity (SONAME) needs no rewrite
// either - the loader resolves by name through the rpath - so setName is
// accepted for interface symmetry and otherwise unused.
func (l *Linux) Relink(ctx context.Context, binary, libdir string, setName bool) error {
	rel, err := filepath.Rel(filepath.Dir(binary), libdir)
	if err != nil {
		return err
	}
	origin := "$ORIGIN/" + rel

	// --force-rpath: DT_RUNPATH does not apply to transitive loads, which
	// is exactly what vendored extension modules rely on.
	if err := l.run.Run(ctx, "patchelf", "--force-rpath", "--set-rpath", origin, binary); err != nil {
		return pberrors.Wrap(pberrors.ErrCodeRelinkFailed, err, "set rpath on %s", binary)
	}
	return nil
}

// baseExclusions returns the set of shared-library paths owned by the libc6
// package. Querying dpkg is slow and the answer cannot change mid-run, so
// the set is computed once per process and shared read-only afterwards.
func (l *Linux) baseExclusions(ctx context.Context) (map[string]struct{}, error) {
	l.excludeOnce.Do(func() {
		out, err := l.run.Output(ctx, "dpkg", "-L", "libc6")
		if err != nil {
			l.excludeErr = pberrors.Wrap(pberrors.ErrCodeToolFailed, err, "list libc6 files")
			return
		}
		set := make(map[string]struct{})
		for _, line := range strings.Split(string(out), "\n") {
			if strings.HasPrefix(line, "/lib/") && strings.Contains(line, ".so") {
				set[line] = struct{}{}
			}
		}
		l.exclude = set
	})
	return l.exclude, l.excludeErr
}

// statFile reports whether path exists and is a regular file.
func statFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
