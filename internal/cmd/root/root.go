// Package root provides the root command for the picodoc CLI.
package root

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/picodoc-lang/picodoc/internal/cmd/build"
	"github.com/picodoc-lang/picodoc/internal/cmd/completion"
	"github.com/picodoc-lang/picodoc/internal/cmd/configcmd"
	"github.com/picodoc-lang/picodoc/internal/cmd/importcmd"
	"github.com/picodoc-lang/picodoc/internal/cmd/initcmd"
	"github.com/picodoc-lang/picodoc/internal/cmd/watch"
	"github.com/picodoc-lang/picodoc/internal/version"
	"github.com/picodoc-lang/picodoc/lexer"
	"github.com/picodoc-lang/picodoc/parser"
)

// NewCmdRoot creates the root command for picodoc.
func NewCmdRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "picodoc",
		Short: "Compiler for the PicoDoc markup language",
		Long: `picodoc compiles PicoDoc markup into standalone HTML documents.

Documents define macros, reference environment values, include other
files, and call external filter programs. Everything is expanded to a
fixed point before rendering.

Get started by running: picodoc init`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}

	// Global flags
	cmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	// Set version template
	cmd.SetVersionTemplate("picodoc version {{.Version}} (commit: " + version.Commit + ", built: " + version.Date + ")\n")

	// Subcommands
	cmd.AddCommand(build.NewCmdBuild())
	cmd.AddCommand(watch.NewCmdWatch())
	cmd.AddCommand(importcmd.NewCmdImport())
	cmd.AddCommand(initcmd.NewCmdInit())
	cmd.AddCommand(configcmd.NewCmdConfig())
	cmd.AddCommand(completion.NewCmdCompletion())

	return cmd
}

// ExitCode maps a command error to the process exit status: 1 for
// lexical and syntax errors, 2 for everything else.
func ExitCode(err error) int {
	var lexErr *lexer.Error
	var parseErr *parser.Error
	if errors.As(err, &lexErr) || errors.As(err, &parseErr) {
		return 1
	}
	return 2
}
