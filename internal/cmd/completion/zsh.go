package completion

import (
	"github.com/spf13/cobra"
)

// NewCmdZsh creates the zsh completion command.
func NewCmdZsh() *cobra.Command {
	return &cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		Long: `Generate zsh completion script for picodoc.

To load completions in your current shell session:

  source <(picodoc completion zsh)

To load completions for every new session, first ensure completion is enabled
(add to ~/.zshrc if not already present):

  autoload -Uz compinit && compinit

Then add the completion script to your fpath:

  picodoc completion zsh > "${fpath[1]}/_picodoc"

You may need to start a new shell for completions to take effect.`,
		Example: `  # Load in current session
  source <(picodoc completion zsh)

  # Install permanently
  mkdir -p ~/.zsh/completions
  picodoc completion zsh > ~/.zsh/completions/_picodoc

  # Then add to ~/.zshrc:
  # fpath=(~/.zsh/completions $fpath)
  # autoload -Uz compinit && compinit`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		},
	}
}
