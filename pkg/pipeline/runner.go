package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pybundle/pybundle/pkg/archive"
	"github.com/pybundle/pybundle/pkg/build"
	"github.com/pybundle/pybundle/pkg/cache"
	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/execx"
	"github.com/pybundle/pybundle/pkg/manifest"
	"github.com/pybundle/pybundle/pkg/observability"
	"github.com/pybundle/pybundle/pkg/prune"
	"github.com/pybundle/pybundle/pkg/relink"
	"github.com/pybundle/pybundle/pkg/remote"
	"github.com/pybundle/pybundle/pkg/source"
)

// Runner executes the build pipeline. It is stateless apart from its
// collaborators; a single Runner can serve multiple sequential builds.
type Runner struct {
	Manifest   *manifest.Manifest
	Downloader *source.Downloader
	Builder    *build.Builder
	Platform   relink.Platform
	Store      *remote.Store // nil disables the already-built check
	Run        execx.Runner
	Logger     *log.Logger
}

// NewRunner wires a Runner for the host platform. A nil cache disables
// tarball and already-built caching; a nil logger uses the default.
func NewRunner(c cache.Cache, logger *log.Logger) (*Runner, error) {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	builder, err := build.NewBuilder()
	if err != nil {
		return nil, err
	}
	plat, err := relink.Host()
	if err != nil {
		return nil, err
	}
	m, err := manifest.Default()
	if err != nil {
		return nil, err
	}
	return &Runner{
		Manifest:   m,
		Downloader: &source.Downloader{Cache: c},
		Builder:    builder,
		Platform:   plat,
		Store:      &remote.Store{Cache: c},
		Run:        execx.New(),
		Logger:     logger,
	}, nil
}

// Execute runs the full pipeline for opts.Version.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	rel, ok := r.Manifest.Lookup(opts.Version)
	if !ok {
		return nil, pberrors.New(pberrors.ErrCodeInvalidVersion, "no known release for %s", opts.Version)
	}
	distDir := opts.DistDir
	if distDir == "" {
		distDir = DefaultDistDir
	}

	result := &Result{
		BuildID: uuid.NewString(),
		Stats:   Stats{Stages: make(map[string]time.Duration)},
	}
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("build", result.BuildID, "version", opts.Version.String())
	observability.Build().OnBuildStart(ctx, result.BuildID, opts.Version.String())
	start := time.Now()
	defer func() {
		result.Stats.Total = time.Since(start)
	}()

	env := build.NewEnv()
	env.Sanitize()

	delegated, err := r.Builder.Toolchain.SetupDeps(ctx, opts.Version)
	if err != nil {
		observability.Build().OnBuildComplete(ctx, result.BuildID, time.Since(start), err)
		return nil, err
	}
	if delegated {
		result.Delegated = true
		logger.Info("build ran in container", "duration", time.Since(start))
		observability.Build().OnBuildComplete(ctx, result.BuildID, time.Since(start), nil)
		return result, nil
	}

	tag, err := archive.PlatformTag(ctx, r.Platform.Name(), r.Run)
	if err != nil {
		return nil, err
	}
	result.ArchiveName = archive.Name(rel, tag)

	if !opts.Force && r.Store != nil {
		built, err := r.Store.AlreadyBuilt(ctx, result.ArchiveName)
		if err != nil {
			return nil, err
		}
		if built {
			result.Skipped = true
			logger.Info("already built", "archive", result.ArchiveName)
			observability.Build().OnBuildComplete(ctx, result.BuildID, time.Since(start), nil)
			return result, nil
		}
	}

	tmpdir, err := os.MkdirTemp("", "pybundle-build-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpdir)

	tarball := filepath.Join(tmpdir, "python.tgz")
	buildDir := filepath.Join(tmpdir, "build")
	prefix := filepath.Join(tmpdir, "prefix")

	r.Builder.Jobs = opts.Jobs
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageDownload, func(ctx context.Context) error {
			return r.Downloader.Fetch(ctx, rel, tarball)
		}},
		{StageExtract, func(ctx context.Context) error {
			return source.Extract(tarball, buildDir)
		}},
		{StageBuild, func(ctx context.Context) error {
			return r.Builder.Compile(ctx, buildDir, prefix, env)
		}},
		{StagePrune, func(ctx context.Context) error {
			return prune.Prune(prefix, opts.Version)
		}},
		{StageRelink, func(ctx context.Context) error {
			vendored, err := r.relinkPrefix(ctx, prefix, opts.Version)
			result.Vendored = vendored
			return err
		}},
		{StageArchive, func(ctx context.Context) error {
			archivePath := filepath.Join(tmpdir, result.ArchiveName)
			if err := archive.Create(prefix, archivePath); err != nil {
				return err
			}
			if err := os.MkdirAll(distDir, 0o755); err != nil {
				return err
			}
			result.ArchivePath = filepath.Join(distDir, result.ArchiveName)
			return moveFile(archivePath, result.ArchivePath)
		}},
	}
	for _, s := range stages {
		if err := r.stage(ctx, logger, result, s.name, s.fn); err != nil {
			observability.Build().OnBuildComplete(ctx, result.BuildID, time.Since(start), err)
			return nil, err
		}
	}

	logger.Info("build finished",
		"archive", result.ArchiveName,
		"vendored", len(result.Vendored),
		"duration", time.Since(start))
	observability.Build().OnBuildComplete(ctx, result.BuildID, time.Since(start), nil)
	return result, nil
}

// stage runs one pipeline stage with timing, logging, and hook events.
func (r *Runner) stage(ctx context.Context, logger *log.Logger, result *Result, name string, fn func(context.Context) error) error {
	observability.Build().OnStageStart(ctx, result.BuildID, name)
	stageStart := time.Now()
	err := fn(ctx)
	d := time.Since(stageStart)
	result.Stats.Stages[name] = d
	observability.Build().OnStageComplete(ctx, result.BuildID, name, d, err)
	if err != nil {
		// Plain wrapping keeps the stage's own error code reachable
		// through errors.As.
		return fmt.Errorf("stage %s: %w", name, err)
	}
	logger.Info("stage complete", "stage", name, "duration", d)
	return nil
}

// relinkPrefix vendors the closure of the interpreter binary and of every
// extension module under lib-dynload into prefix/lib.
func (r *Runner) relinkPrefix(ctx context.Context, prefix string, v manifest.Version) ([]string, error) {
	libdir := filepath.Join(prefix, "lib")

	res, err := relink.VendorClosure(ctx, r.Platform, filepath.Join(prefix, "bin", v.PyMinor()), libdir)
	if err != nil {
		return nil, err
	}
	vendored := res.Vendored

	dynDir := filepath.Join(prefix, "lib", v.PyMinor(), "lib-dynload")
	entries, err := os.ReadDir(dynDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		res, err := relink.VendorClosure(ctx, r.Platform, filepath.Join(dynDir, e.Name()), libdir)
		if err != nil {
			return nil, err
		}
		vendored = append(vendored, res.Vendored...)
	}
	return vendored, nil
}

// moveFile renames src to dst, copying when they sit on different
// filesystems (the temp dir often does).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
