package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/execx"
	"github.com/pybundle/pybundle/pkg/manifest"
)

// Toolchain prepares the platform's compiler environment.
type Toolchain interface {
	// Name identifies the toolchain ("linux" or "darwin").
	Name() string

	// SetupDeps installs or locates the build dependencies. On linux this
	// re-runs the build inside the manylinux container; it returns
	// delegated=true when the container performed the whole build and the
	// caller should stop.
	SetupDeps(ctx context.Context, version manifest.Version) (delegated bool, err error)

	// ConfigureArgs returns extra ./configure arguments for the platform.
	ConfigureArgs(ctx context.Context) ([]string, error)

	// ModifyEnv adjusts the build environment after sanitization.
	ModifyEnv(ctx context.Context, env Env) error
}

// inContainerEnv marks a build already running inside the CI container so
// SetupDeps does not recurse.
const inContainerEnv = "PYBUNDLE_IN_CONTAINER"

// linuxToolchain builds inside a pinned manylinux container so the produced
// binary links against an old enough glibc.
type linuxToolchain struct {
	run   execx.Runner
	image string
}

func (t *linuxToolchain) Name() string { return "linux" }

func (t *linuxToolchain) SetupDeps(ctx context.Context, version manifest.Version) (bool, error) {
	if os.Getenv(inContainerEnv) != "" {
		return false, nil
	}

	dist, err := filepath.Abs("dist")
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(dist, 0o755); err != nil {
		return false, err
	}
	self, err := os.Executable()
	if err != nil {
		return false, err
	}

	args := containerRunArgs()
	args = append(args,
		"--pull=always",
		"--rm",
		"--env", inContainerEnv+"=1",
		"--volume", dist+":/dist:rw",
		"--volume", self+":/usr/local/bin/pybundle",
		"--workdir", "/dist",
		t.image,
		"pybundle", "build", version.String(),
	)
	if err := t.run.Run(ctx, args[0], args[1:]...); err != nil {
		return false, pberrors.Wrap(pberrors.ErrCodeBuildFailed, err, "container build of %s", version)
	}
	return true, nil
}

func (t *linuxToolchain) ConfigureArgs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (t *linuxToolchain) ModifyEnv(ctx context.Context, env Env) error {
	return nil
}

// containerRunArgs prefers podman (rootless, no uid remapping needed) and
// falls back to docker with the invoking user's uid so /dist stays writable.
func containerRunArgs() []string {
	if execx.LookPath("podman") {
		return []string{"podman", "run"}
	}
	return []string{"docker", "run", "--user", fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())}
}

const brewSSL = "openssl@1.1"

var brewLibs = []string{"ncurses", "sqlite", "xz"}

// darwinToolchain compiles against homebrew's openssl, ncurses, sqlite and
// xz since the macOS SDK ships none of them (or ships ancient versions).
type darwinToolchain struct {
	run execx.Runner
}

func (t *darwinToolchain) Name() string { return "darwin" }

func (t *darwinToolchain) brew() string {
	if runtime.GOARCH == "arm64" {
		return "/opt/homebrew/bin/brew"
	}
	return "/usr/local/bin/brew"
}

func (t *darwinToolchain) SetupDeps(ctx context.Context, version manifest.Version) (bool, error) {
	brew := t.brew()
	if _, err := os.Stat(brew); err != nil {
		return false, pberrors.New(pberrors.ErrCodeToolNotFound, "homebrew not found at %s", brew)
	}
	pkgs := append([]string{"install", "-q", "pkg-config", brewSSL}, brewLibs...)
	if err := t.run.Run(ctx, brew, pkgs...); err != nil {
		return false, pberrors.Wrap(pberrors.ErrCodeBuildFailed, err, "brew install build deps")
	}
	return false, nil
}

func (t *darwinToolchain) ConfigureArgs(ctx context.Context) ([]string, error) {
	paths, err := t.brewPaths(ctx, brewSSL)
	if err != nil {
		return nil, err
	}
	return []string{"--with-openssl=" + paths[0]}, nil
}

func (t *darwinToolchain) ModifyEnv(ctx context.Context, env Env) error {
	paths, err := t.brewPaths(ctx, brewLibs...)
	if err != nil {
		return err
	}

	var cpp, ld, pkgconfig []string
	for _, p := range paths {
		cpp = append(cpp, "-I"+filepath.Join(p, "include"))
		ld = append(ld, "-L"+filepath.Join(p, "lib"))
		pkgconfig = append(pkgconfig, filepath.Join(p, "lib", "pkgconfig"))
	}
	env["CPPFLAGS"] = strings.Join(cpp, " ")
	env["LDFLAGS"] = strings.Join(ld, " ")
	env["PKG_CONFIG_PATH"] = strings.Join(pkgconfig, ":")
	return nil
}

func (t *darwinToolchain) brewPaths(ctx context.Context, pkgs ...string) ([]string, error) {
	args := append([]string{"--prefix"}, pkgs...)
	out, err := t.run.Output(ctx, t.brew(), args...)
	if err != nil {
		return nil, pberrors.Wrap(pberrors.ErrCodeToolFailed, err, "brew --prefix %s", strings.Join(pkgs, " "))
	}
	paths := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(paths) != len(pkgs) {
		return nil, pberrors.New(pberrors.ErrCodeInspectOutput, "brew --prefix returned %d paths for %d packages", len(paths), len(pkgs))
	}
	return paths, nil
}

// ToolchainForOS returns the toolchain for the given GOOS.
func ToolchainForOS(goos string, run execx.Runner) (Toolchain, error) {
	switch goos {
	case "linux":
		return &linuxToolchain{run: run, image: DefaultImage()}, nil
	case "darwin":
		return &darwinToolchain{run: run}, nil
	default:
		return nil, pberrors.New(pberrors.ErrCodeUnsupported, "no toolchain for %s", goos)
	}
}

// DefaultImage is the manylinux CI image for the host architecture.
func DefaultImage() string {
	return "ghcr.io/pybundle/manylinux-" + machine() + "-ci"
}

// machine maps GOARCH to the uname -m spelling used in image and archive
// names.
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
