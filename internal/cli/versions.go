package cli

import (
	"github.com/spf13/cobra"
)

// versionsCommand creates the versions command listing buildable releases.
func (c *CLI) versionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List buildable interpreter versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadManifest()
			if err != nil {
				return err
			}
			for _, v := range m.Versions() {
				cmd.Println(v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&c.manifestPath, "manifest", "", "path to an alternative release manifest (TOML)")

	return cmd
}
