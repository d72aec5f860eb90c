package main

import (
	"os"

	"github.com/picodoc-lang/picodoc/internal/cmd/root"
	"github.com/picodoc-lang/picodoc/internal/view"
)

func main() {
	cmd := root.NewCmdRoot()
	if err := cmd.Execute(); err != nil {
		noColor, _ := cmd.PersistentFlags().GetBool("no-color")
		view.NewPrinter(noColor).Diagnostic(err)
		os.Exit(root.ExitCode(err))
	}
}
