package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pybundle/pybundle/pkg/manifest"
	"github.com/pybundle/pybundle/pkg/pipeline"
)

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		distDir string
		force   bool
		jobs    int
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "build <version>",
		Short: "Build a relocatable interpreter archive",
		Long: `Build a relocatable interpreter archive.

The build downloads the release source, compiles it with an isolated
toolchain, prunes test payload, vendors every non-system shared library
next to the binary with loader-relative link references, and writes a
reproducible .tgz into the dist directory.

Versions already published to the artifact store are skipped unless
--force is given. Run 'pybundle versions' to list buildable versions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := manifest.ParseVersion(args[0])
			if err != nil {
				return err
			}

			runner, err := c.newRunner(noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}

			p := newProgress(c.Logger)
			res, err := runner.Execute(cmd.Context(), pipeline.Options{
				Version: version,
				DistDir: distDir,
				Force:   force,
				Jobs:    jobs,
			})
			if err != nil {
				printError("Build failed")
				return err
			}

			switch {
			case res.Skipped:
				printInfo("%s is already published, nothing to do", res.ArchiveName)
			case res.Delegated:
				p.done("Build completed in container")
			default:
				p.done(fmt.Sprintf("Built %s", res.ArchiveName))
				printKeyValue("build", res.BuildID)
				printDetail("vendored %d libraries", len(res.Vendored))
				printFile(res.ArchivePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&distDir, "dist", pipeline.DefaultDistDir, "directory for finished archives")
	cmd.Flags().BoolVar(&force, "force", false, "build even when the archive is already published")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "parallel make jobs (default: number of CPUs)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable tarball and publish-check caching")
	cmd.Flags().StringVar(&c.manifestPath, "manifest", "", "path to an alternative release manifest (TOML)")

	return cmd
}
