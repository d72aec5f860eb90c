package configcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/picodoc-lang/picodoc/internal/config"
)

// NewCmdShow creates the config show command.
func NewCmdShow() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show [input.pdoc]",
		Short: "Display the effective configuration",
		Long: `Display the configuration a build of the given input would use, after
file discovery and environment overrides. With no input the current
directory is searched.`,
		Example: `  # Config discovered in the current directory
  picodoc config show

  # Config a build of docs/index.pdoc would use
  picodoc config show docs/index.pdoc`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noColor, _ := cmd.Flags().GetBool("no-color")
			dir := "."
			if len(args) > 0 {
				dir = filepath.Dir(args[0])
			}
			return runShow(dir, configPath, noColor)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (overrides discovery)")

	return cmd
}

func runShow(inputDir, explicitPath string, noColor bool) error {
	if noColor {
		color.NoColor = true
	}

	path := explicitPath
	if path == "" {
		path = config.Discover(inputDir)
	}

	cfg, err := config.LoadForInput(explicitPath, inputDir)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	printField := func(label string, values []string) {
		_, _ = bold.Printf("%-16s", label+":")
		if len(values) == 0 {
			_, _ = dim.Println("-")
			return
		}
		fmt.Println(strings.Join(values, ", "))
	}

	printField("env", pairs(cfg.Env))
	printField("css", cfg.CSS)
	printField("js", cfg.JS)
	printField("meta", pairs(cfg.Meta))
	printField("filter paths", cfg.Filters.Paths)
	printField("filter depth", depthPairs(cfg.Filters.Depth))

	_, _ = bold.Printf("%-16s", "filter timeout:")
	fmt.Print(cfg.FilterTimeout())
	if os.Getenv("PICODOC_FILTER_TIMEOUT") != "" {
		_, _ = dim.Print("  (source: PICODOC_FILTER_TIMEOUT)")
	}
	fmt.Println()

	fmt.Println()
	if path == "" {
		_, _ = dim.Println("Config file: (not found)")
	} else {
		_, _ = dim.Printf("Config file: %s\n", path)
	}
	if os.Getenv("PICODOC_FILTER_PATH") != "" {
		_, _ = dim.Println("PICODOC_FILTER_PATH appends to the filter paths above")
	}

	return nil
}

// pairs flattens a string map into sorted name=value entries.
func pairs(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// depthPairs flattens the per-filter depth map the same way.
func depthPairs(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, fmt.Sprintf("%s=%d", k, v))
	}
	sort.Strings(out)
	return out
}
