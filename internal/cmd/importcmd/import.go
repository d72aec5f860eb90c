// Package importcmd provides the import command for picodoc.
package importcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/picodoc-lang/picodoc/convert"
)

type importOptions struct {
	input  string
	output string
	format string
}

// NewCmdImport creates the import command.
func NewCmdImport() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:     "import <input.md|input.html>",
		Aliases: []string{"convert"},
		Short:   "Convert a Markdown or HTML document to PicoDoc markup",
		Long: `Convert an existing Markdown or HTML document to PicoDoc markup.

The input format is taken from the file extension; use --format when
the extension does not tell.`,
		Example: `  # Convert a Markdown file
  picodoc import README.md -o readme.pdoc

  # Convert HTML from a file with an odd extension
  picodoc import export.txt --format html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.input = args[0]
			return runImport(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Input format: markdown or html (default: by extension)")

	return cmd
}

func runImport(opts *importOptions) error {
	format := opts.format
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.input)) {
		case ".md", ".markdown":
			format = "markdown"
		case ".html", ".htm":
			format = "html"
		default:
			return fmt.Errorf("cannot tell the input format from %q: use --format markdown or --format html", opts.input)
		}
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.input, err)
	}

	var markup string
	switch format {
	case "markdown", "md":
		markup, err = convert.FromMarkdown(data)
	case "html":
		markup, err = convert.FromHTML(string(data))
	default:
		return fmt.Errorf("invalid input format %q (expected markdown or html)", format)
	}
	if err != nil {
		return err
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(markup), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.output, err)
		}
		return nil
	}

	_, err = fmt.Fprint(os.Stdout, markup)
	return err
}
