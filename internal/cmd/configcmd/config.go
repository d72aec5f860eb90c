// Package configcmd provides config inspection commands.
package configcmd

import (
	"github.com/spf13/cobra"
)

// NewCmdConfig creates the config command.
func NewCmdConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect picodoc configuration",
		Long:  `Commands for viewing the configuration a build would use.`,
	}

	cmd.AddCommand(NewCmdShow())

	return cmd
}
