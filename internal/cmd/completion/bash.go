package completion

import (
	"github.com/spf13/cobra"
)

// NewCmdBash creates the bash completion command.
func NewCmdBash() *cobra.Command {
	return &cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		Long: `Generate bash completion script for picodoc.

To load completions in your current shell session:

  source <(picodoc completion bash)

To load completions for every new session:

  # Linux
  picodoc completion bash > /etc/bash_completion.d/picodoc

  # macOS (requires bash-completion)
  picodoc completion bash > $(brew --prefix)/etc/bash_completion.d/picodoc`,
		Example: `  # Load in current session
  source <(picodoc completion bash)

  # Install permanently (Linux)
  picodoc completion bash | sudo tee /etc/bash_completion.d/picodoc > /dev/null

  # Install permanently (macOS with Homebrew)
  picodoc completion bash > $(brew --prefix)/etc/bash_completion.d/picodoc`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
		},
	}
}
