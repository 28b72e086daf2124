package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pybundle/pybundle/pkg/relink"
)

// relinkCommand creates the relink command for operating on a single binary.
func (c *CLI) relinkCommand() *cobra.Command {
	var libdir string

	cmd := &cobra.Command{
		Use:   "relink <binary>",
		Short: "Vendor a binary's shared library closure",
		Long: `Vendor a binary's shared library closure.

Copies every non-system shared library the binary transitively links
against into the library directory and rewrites all link references
(including those of the copied libraries) to resolve relative to each
file's own location. Afterwards the binary plus the library directory can
be moved anywhere as a unit.

The binary is modified in place. A failed rewrite aborts immediately and
may leave the binary partially rewritten, so run this on a disposable
copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			binary, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if libdir == "" {
				libdir = filepath.Join(filepath.Dir(binary), "..", "lib")
			}

			plat, err := relink.Host()
			if err != nil {
				return err
			}

			p := newProgress(c.Logger)
			res, err := relink.VendorClosure(cmd.Context(), plat, binary, libdir)
			if err != nil {
				printError("Relink failed")
				return err
			}

			p.done(fmt.Sprintf("Vendored %d libraries", len(res.Vendored)))
			for _, lib := range res.Vendored {
				printFile(lib)
			}
			if len(res.Vendored) == 0 {
				printWarning("no non-system libraries to vendor")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&libdir, "libdir", "", "destination library directory (default: <binary>/../../lib)")

	return cmd
}
