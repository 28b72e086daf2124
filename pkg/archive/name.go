package archive

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/execx"
	"github.com/pybundle/pybundle/pkg/manifest"
)

// Name composes the distributable archive file name, e.g.
// python-3.10.5+2-manylinux_2_31_x86_64.tgz. The +N local segment is
// omitted for the first build of a version.
func Name(rel manifest.Release, platformTag string) string {
	v := rel.Version
	if rel.Build > 0 {
		v = fmt.Sprintf("%s+%d", v, rel.Build)
	}
	return fmt.Sprintf("python-%s-%s.tgz", v, platformTag)
}

// lddVersion matches the glibc version at the end of ldd's banner line,
// e.g. "ldd (Ubuntu GLIBC 2.31-0ubuntu9.9) 2.31".
var lddVersion = regexp.MustCompile(`(\d+)\.(\d+)\s*$`)

// PlatformTag derives the wheel-style platform tag for goos by probing the
// host: the glibc version on linux, the product version on macOS.
func PlatformTag(ctx context.Context, goos string, run execx.Runner) (string, error) {
	switch goos {
	case "linux":
		return linuxTag(ctx, run)
	case "darwin":
		return darwinTag(ctx, run)
	default:
		return "", pberrors.New(pberrors.ErrCodeUnsupported, "no platform tag for %s", goos)
	}
}

func linuxTag(ctx context.Context, run execx.Runner) (string, error) {
	out, err := run.Output(ctx, "ldd", "--version")
	if err != nil {
		return "", pberrors.Wrap(pberrors.ErrCodeToolFailed, err, "ldd --version")
	}
	banner, _, _ := strings.Cut(string(out), "\n")
	m := lddVersion.FindStringSubmatch(banner)
	if m == nil {
		return "", pberrors.New(pberrors.ErrCodeInspectOutput, "no glibc version in %q", banner)
	}
	return fmt.Sprintf("manylinux_%s_%s_%s", m[1], m[2], machine()), nil
}

func darwinTag(ctx context.Context, run execx.Runner) (string, error) {
	out, err := run.Output(ctx, "sw_vers", "-productVersion")
	if err != nil {
		return "", pberrors.Wrap(pberrors.ErrCodeToolFailed, err, "sw_vers -productVersion")
	}
	fields := strings.SplitN(strings.TrimSpace(string(out)), ".", 3)
	if len(fields) < 2 {
		return "", pberrors.New(pberrors.ErrCodeInspectOutput, "unexpected macOS version %q", strings.TrimSpace(string(out)))
	}
	major, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", pberrors.New(pberrors.ErrCodeInspectOutput, "unexpected macOS version %q", strings.TrimSpace(string(out)))
	}
	minor := fields[1]
	// macOS 11+ reports point releases as minors but keeps ABI stable
	// across them, so the tag pins the minor to 0.
	if major >= 11 {
		minor = "0"
	}
	return fmt.Sprintf("macosx_%d_%s_%s", major, minor, machine()), nil
}

// machine maps GOARCH to the uname -m spelling used in platform tags.
func machine() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		if runtime.GOOS == "darwin" {
			return "arm64"
		}
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}
