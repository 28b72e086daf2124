package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	pberrors "github.com/pybundle/pybundle/pkg/errors"
	"github.com/pybundle/pybundle/pkg/relink"
	"github.com/pybundle/pybundle/pkg/render"
)

// depsCommand creates the deps command for inspecting a binary's closure.
func (c *CLI) depsCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "deps <binary>",
		Short: "Show a binary's shared library closure",
		Long: `Show a binary's shared library closure.

Walks the transitive link references of the binary without modifying
anything and prints each discovered library. With --graph the closure is
written as Graphviz output instead (dot, svg, or png).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			binary, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			plat, err := relink.Host()
			if err != nil {
				return err
			}

			g, err := relink.Closure(cmd.Context(), plat, binary)
			if err != nil {
				return err
			}

			if format == "" {
				printInfo("%s links %d libraries", StyleHighlight.Render(filepath.Base(binary)), g.NodeCount()-1)
				for _, n := range g.Nodes() {
					if n.Root {
						continue
					}
					printFile(n.ID)
				}
				return nil
			}

			dot := render.ToDOT(g, render.Options{Detailed: true})
			var data []byte
			switch strings.ToLower(format) {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = render.SVG(cmd.Context(), dot)
			case "png":
				data, err = render.PNG(cmd.Context(), dot)
			default:
				return pberrors.New(pberrors.ErrCodeInvalidFormat, "unknown graph format %q (want dot, svg, or png)", format)
			}
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("%s-deps.%s", filepath.Base(binary), strings.ToLower(format))
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Wrote dependency graph")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "graph", "", "write the closure as a graph: dot, svg, or png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file for --graph (default: <binary>-deps.<ext>)")

	return cmd
}
