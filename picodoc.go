// Package picodoc compiles PicoDoc markup into standalone HTML documents.
//
// The pipeline is parse, evaluate, inject, render. Compile runs it over a
// source string; CompileFile reads the document first and roots include and
// filter resolution in its directory.
package picodoc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/eval"
	"github.com/picodoc-lang/picodoc/filter"
	"github.com/picodoc-lang/picodoc/inject"
	"github.com/picodoc-lang/picodoc/parser"
	"github.com/picodoc-lang/picodoc/render"
)

// Options configure a compilation.
type Options struct {
	// Env seeds the expansion environment.
	Env map[string]string
	// CSSFiles, JSFiles, and MetaTags become injected head items.
	CSSFiles []string
	JSFiles  []string
	MetaTags []inject.MetaTag
	// FilterPaths are extra filter search directories.
	FilterPaths []string
	// FilterTimeout bounds each filter invocation. Zero means the
	// runner default.
	FilterTimeout time.Duration
	// FilterDepths caps rescanning of named filters' output.
	FilterDepths map[string]int
	// DebugWriter, when set, receives an AST dump after expansion.
	DebugWriter io.Writer
	// Logger receives engine and filter debug logging.
	Logger *slog.Logger
}

// Option adjusts compilation options.
type Option func(*Options)

// WithEnv seeds the expansion environment.
func WithEnv(env map[string]string) Option { return func(o *Options) { o.Env = env } }

// WithCSS adds stylesheet links to the document head.
func WithCSS(files ...string) Option {
	return func(o *Options) { o.CSSFiles = append(o.CSSFiles, files...) }
}

// WithJS adds script sources to the document head.
func WithJS(files ...string) Option {
	return func(o *Options) { o.JSFiles = append(o.JSFiles, files...) }
}

// WithMeta adds meta tags to the document head.
func WithMeta(tags ...inject.MetaTag) Option {
	return func(o *Options) { o.MetaTags = append(o.MetaTags, tags...) }
}

// WithFilterPaths adds filter search directories.
func WithFilterPaths(dirs ...string) Option {
	return func(o *Options) { o.FilterPaths = append(o.FilterPaths, dirs...) }
}

// WithFilterTimeout bounds each filter invocation.
func WithFilterTimeout(d time.Duration) Option {
	return func(o *Options) { o.FilterTimeout = d }
}

// WithFilterDepths caps rescanning of named filters' output.
func WithFilterDepths(depths map[string]int) Option {
	return func(o *Options) { o.FilterDepths = depths }
}

// WithDebugWriter dumps the expanded AST to w before rendering.
func WithDebugWriter(w io.Writer) Option { return func(o *Options) { o.DebugWriter = w } }

// WithLogger routes engine and filter debug logging to logger.
func WithLogger(logger *slog.Logger) Option { return func(o *Options) { o.Logger = logger } }

// CompileFile compiles the PicoDoc document at path to HTML. Includes and
// filter lookups resolve relative to the document's directory.
func CompileFile(ctx context.Context, path string, opts ...Option) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Compile(ctx, string(source), path, opts...)
}

// Compile compiles PicoDoc source to HTML. The filename labels diagnostics
// and anchors include and filter resolution.
func Compile(ctx context.Context, source, filename string, opts ...Option) (string, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := parser.Parse(source, filename)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(filename)
	runnerOpts := []filter.RunnerOption{}
	if o.FilterTimeout > 0 {
		runnerOpts = append(runnerOpts, filter.WithTimeout(o.FilterTimeout))
	}
	if o.Logger != nil {
		runnerOpts = append(runnerOpts, filter.WithLogger(o.Logger))
	}
	runner := filter.NewRunner(filter.NewRegistry(dir, o.FilterPaths...), runnerOpts...)

	evalOpts := []eval.Option{
		eval.WithFilename(filename),
		eval.WithSource(source),
		eval.WithBaseDir(dir),
		eval.WithFilters(runner),
	}
	if o.Env != nil {
		evalOpts = append(evalOpts, eval.WithEnv(o.Env))
	}
	if o.FilterDepths != nil {
		evalOpts = append(evalOpts, eval.WithFilterDepths(o.FilterDepths))
	}
	if o.Logger != nil {
		evalOpts = append(evalOpts, eval.WithLogger(o.Logger))
	}

	doc, err = eval.Evaluate(ctx, doc, evalOpts...)
	if err != nil {
		return "", err
	}

	if o.DebugWriter != nil {
		ast.Dump(o.DebugWriter, doc)
	}

	doc = inject.HeadItems(doc, o.CSSFiles, o.JSFiles, o.MetaTags)

	return render.HTML(doc, render.WithFilename(filename), render.WithSource(source))
}
