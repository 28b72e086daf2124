// Package cli implements the pybundle command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pybundle/pybundle/pkg/buildinfo"
	"github.com/pybundle/pybundle/pkg/cache"
	"github.com/pybundle/pybundle/pkg/manifest"
	"github.com/pybundle/pybundle/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "pybundle"

// redisEnv selects a shared redis cache instead of the local file cache.
// CI runners use this so parallel jobs share downloaded tarballs.
const redisEnv = "PYBUNDLE_REDIS_URL"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// manifestPath overrides the embedded release manifest (--manifest).
	manifestPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "pybundle",
		Short:        "pybundle builds relocatable Python interpreters",
		Long:         `pybundle compiles CPython from source, vendors every non-system shared library next to the binary, rewrites all link references to be loader-relative, and packs the result into a reproducible archive that runs on machines without the build toolchain.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.relinkCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.versionsCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadManifest returns the release manifest, honoring --manifest.
func (c *CLI) loadManifest() (*manifest.Manifest, error) {
	if c.manifestPath != "" {
		return manifest.Load(c.manifestPath)
	}
	return manifest.Default()
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	cch, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	runner, err := pipeline.NewRunner(cch, c.Logger)
	if err != nil {
		return nil, err
	}
	if c.manifestPath != "" {
		m, err := manifest.Load(c.manifestPath)
		if err != nil {
			return nil, err
		}
		runner.Manifest = m
	}
	return runner, nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if url := os.Getenv(redisEnv); url != "" {
		return cache.NewRedisCache(context.Background(), url)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/pybundle/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
