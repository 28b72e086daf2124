package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pybundle/pybundle/pkg/validate"
)

// validateCommand creates the validate command for smoke-testing archives.
func (c *CLI) validateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <archive>",
		Short: "Smoke-test a built archive",
		Long: `Smoke-test a built archive.

Unpacks the archive into a scratch directory and runs the bundled
interpreter through the validation suite: importing every expected
extension module, completing a TLS request, and checking for
wide-character curses. Validation must run on a machine of the same
platform the archive was built for.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := log.WithContext(cmd.Context(), c.Logger)

			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Validating %s...", args[0]))
			spinner.Start()

			if err := validate.NewValidator().Archive(ctx, args[0]); err != nil {
				spinner.StopWithError("Validation failed")
				return err
			}
			spinner.StopWithSuccess("All checks passed")
			return nil
		},
	}

	return cmd
}
