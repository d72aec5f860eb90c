// Package watch provides the watch command for picodoc.
package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/picodoc-lang/picodoc"
	"github.com/picodoc-lang/picodoc/internal/cmd/build"
	"github.com/picodoc-lang/picodoc/internal/view"
)

// NewCmdWatch creates the watch command.
func NewCmdWatch() *cobra.Command {
	params := &build.Params{}
	noColor := false

	cmd := &cobra.Command{
		Use:   "watch <input.pdoc>",
		Short: "Recompile a PicoDoc document on every change",
		Long: `Compile a PicoDoc document, then watch it and recompile on each
save. Compile errors are reported and the watch continues.`,
		Example: `  # Rebuild doc.html on every save
  picodoc watch doc.pdoc -o doc.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Input = args[0]
			params.Verbose, _ = cmd.Flags().GetBool("verbose")
			noColor, _ = cmd.Flags().GetBool("no-color")
			return runWatch(cmd.Context(), params, noColor)
		},
	}

	build.BindFlags(cmd, params)

	return cmd
}

func runWatch(ctx context.Context, params *build.Params, noColor bool) error {
	printer := view.NewPrinter(noColor)

	// Option errors are fatal; the document has to resolve before a
	// watch makes sense.
	opts, err := build.CompileOptions(params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory, not the file. Editors that save by replace
	// would otherwise drop the watch on the first write.
	target := filepath.Clean(params.Input)
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	compile := func() {
		html, err := picodoc.CompileFile(ctx, params.Input, opts...)
		if err != nil {
			printer.Diagnostic(err)
			return
		}
		if params.Output != "" {
			if err := os.WriteFile(params.Output, []byte(html), 0644); err != nil {
				printer.Diagnostic(err)
				return
			}
		} else {
			fmt.Fprint(os.Stdout, html)
		}
		printer.Success("Compiled " + params.Input)
	}

	printer.Infof("Watching %s for changes...", params.Input)
	compile()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				compile()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printer.Diagnostic(err)
		}
	}
}
