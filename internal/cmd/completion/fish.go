package completion

import (
	"github.com/spf13/cobra"
)

// NewCmdFish creates the fish completion command.
func NewCmdFish() *cobra.Command {
	return &cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		Long: `Generate fish completion script for picodoc.

To load completions in your current shell session:

  picodoc completion fish | source

To load completions for every new session:

  picodoc completion fish > ~/.config/fish/completions/picodoc.fish`,
		Example: `  # Load in current session
  picodoc completion fish | source

  # Install permanently
  picodoc completion fish > ~/.config/fish/completions/picodoc.fish`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		},
	}
}
