// Package build compiles an interpreter source tree into an install prefix.
// The compile runs with a sanitized environment and platform-specific
// toolchain setup: a pinned manylinux container on linux, homebrew-provided
// libraries on macOS.
package build

import (
	"context"
	"runtime"
	"strconv"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/execx"
)

// Builder drives ./configure && make && make install.
type Builder struct {
	Run       execx.Runner
	Toolchain Toolchain
	Jobs      int // parallel make jobs, 0 means NumCPU
}

// NewBuilder returns a Builder for the host platform.
func NewBuilder() (*Builder, error) {
	run := execx.New()
	tc, err := ToolchainForOS(runtime.GOOS, run)
	if err != nil {
		return nil, err
	}
	return &Builder{Run: run, Toolchain: tc}, nil
}

// Compile configures and builds the source tree at buildDir, installing
// into prefix. env must already be sanitized; the toolchain's env mutation
// is applied here.
func (b *Builder) Compile(ctx context.Context, buildDir, prefix string, env Env) error {
	if err := b.Toolchain.ModifyEnv(ctx, env); err != nil {
		return err
	}
	envList := env.List()

	args, err := b.Toolchain.ConfigureArgs(ctx)
	if err != nil {
		return err
	}
	configure := append([]string{
		"--prefix", prefix,
		"--without-ensurepip",
		"--enable-optimizations",
		"--with-lto",
	}, args...)
	if err := b.Run.RunIn(ctx, buildDir, envList, "./configure", configure...); err != nil {
		return pberrors.Wrap(pberrors.ErrCodeBuildFailed, err, "configure")
	}

	// Build before install so profile-guided optimization gets a full
	// instrumented run.
	jobs := b.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if err := b.Run.RunIn(ctx, buildDir, envList, "make", "-j"+strconv.Itoa(jobs)); err != nil {
		return pberrors.Wrap(pberrors.ErrCodeBuildFailed, err, "make")
	}
	if err := b.Run.RunIn(ctx, buildDir, envList, "make", "install"); err != nil {
		return pberrors.Wrap(pberrors.ErrCodeBuildFailed, err, "make install")
	}
	return nil
}
