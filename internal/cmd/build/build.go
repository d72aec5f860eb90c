// Package build provides the build command for picodoc.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/picodoc-lang/picodoc"
	"github.com/picodoc-lang/picodoc/inject"
	"github.com/picodoc-lang/picodoc/internal/config"
)

// Params are the compile inputs shared by the build and watch commands.
type Params struct {
	Input         string
	Output        string
	EnvPairs      []string
	CSS           []string
	JS            []string
	MetaPairs     []string
	ConfigPath    string
	FilterPaths   []string
	FilterTimeout time.Duration
	Debug         bool
	Verbose       bool
}

// BindFlags registers the shared compile flags on cmd.
func BindFlags(cmd *cobra.Command, p *Params) {
	cmd.Flags().StringVarP(&p.Output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringArrayVarP(&p.EnvPairs, "env", "e", nil, "Set environment variable NAME=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&p.CSS, "css", nil, "CSS file to link from the document head (repeatable)")
	cmd.Flags().StringArrayVar(&p.JS, "js", nil, "JS file to load from the document head (repeatable)")
	cmd.Flags().StringArrayVar(&p.MetaPairs, "meta", nil, "Meta tag NAME=CONTENT to add (repeatable)")
	cmd.Flags().StringVarP(&p.ConfigPath, "config", "c", "", "Config file (default: picodoc.yaml beside the input)")
	cmd.Flags().StringArrayVar(&p.FilterPaths, "filter-path", nil, "Extra filter search directory (repeatable)")
	cmd.Flags().DurationVar(&p.FilterTimeout, "filter-timeout", 0, "Filter execution timeout (default 5s)")
	cmd.Flags().BoolVar(&p.Debug, "debug", false, "Dump the expanded AST to stderr")
}

// NewCmdBuild creates the build command.
func NewCmdBuild() *cobra.Command {
	params := &Params{}

	cmd := &cobra.Command{
		Use:     "build <input.pdoc>",
		Aliases: []string{"compile"},
		Short:   "Compile a PicoDoc document to HTML",
		Long: `Compile a PicoDoc document to a standalone HTML file.

A picodoc.yaml beside the input provides defaults for environment
values, head items, and filter settings; command-line flags override
it.`,
		Example: `  # Compile to stdout
  picodoc build doc.pdoc

  # Compile to a file with environment values
  picodoc build doc.pdoc -o doc.html -e version=2.0

  # Attach a stylesheet and metadata
  picodoc build doc.pdoc --css style.css --meta author=Ada`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Input = args[0]
			params.Verbose, _ = cmd.Flags().GetBool("verbose")
			return Run(cmd.Context(), params)
		},
	}

	BindFlags(cmd, params)

	return cmd
}

// Run compiles p.Input and writes the result to p.Output or stdout.
func Run(ctx context.Context, p *Params) error {
	opts, err := CompileOptions(p)
	if err != nil {
		return err
	}

	html, err := picodoc.CompileFile(ctx, p.Input, opts...)
	if err != nil {
		return err
	}

	if p.Output != "" {
		if err := os.WriteFile(p.Output, []byte(html), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.Output, err)
		}
		return nil
	}

	_, err = fmt.Fprint(os.Stdout, html)
	return err
}

// CompileOptions merges the project config under the command-line flags
// and returns the resulting compile options.
func CompileOptions(p *Params) ([]picodoc.Option, error) {
	cfg, err := config.LoadForInput(p.ConfigPath, filepath.Dir(p.Input))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	env := make(map[string]string, len(cfg.Env)+len(p.EnvPairs))
	for name, value := range cfg.Env {
		env[name] = value
	}
	for _, raw := range p.EnvPairs {
		name, value, err := splitPair(raw, "env")
		if err != nil {
			return nil, err
		}
		env[name] = value
	}

	meta := cfg.MetaTags()
	for _, raw := range p.MetaPairs {
		name, content, err := splitPair(raw, "meta")
		if err != nil {
			return nil, err
		}
		meta = append(meta, inject.MetaTag{Name: name, Content: content})
	}

	timeout := cfg.FilterTimeout()
	if p.FilterTimeout > 0 {
		timeout = p.FilterTimeout
	}

	opts := []picodoc.Option{
		picodoc.WithEnv(env),
		picodoc.WithCSS(cfg.CSS...),
		picodoc.WithCSS(p.CSS...),
		picodoc.WithJS(cfg.JS...),
		picodoc.WithJS(p.JS...),
		picodoc.WithMeta(meta...),
		picodoc.WithFilterPaths(cfg.Filters.Paths...),
		picodoc.WithFilterPaths(p.FilterPaths...),
		picodoc.WithFilterTimeout(timeout),
	}
	if len(cfg.Filters.Depth) > 0 {
		opts = append(opts, picodoc.WithFilterDepths(cfg.Filters.Depth))
	}
	if p.Debug {
		opts = append(opts, picodoc.WithDebugWriter(os.Stderr))
	}
	if p.Verbose || os.Getenv("PICODOC_DEBUG") == "1" {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		opts = append(opts, picodoc.WithLogger(logger))
	}

	return opts, nil
}

// splitPair parses a NAME=VALUE argument.
func splitPair(raw, kind string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid %s format (expected NAME=VALUE): %s", kind, raw)
	}
	return name, value, nil
}
