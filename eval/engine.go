// Package eval expands a parsed PicoDoc document. It collects top-level
// definitions, resolves parameter defaults, then repeatedly walks the
// document replacing macro calls with their expansions until a full pass
// changes nothing. The converged tree contains only render-time structure.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/token"
)

const (
	// DefaultMaxDepth is the global expansion depth budget.
	DefaultMaxDepth = 64
	// DefaultMaxIncludeDepth bounds transitive includes.
	DefaultMaxIncludeDepth = 16
)

// Options configure an evaluation.
type Options struct {
	// Filename and Source identify the root document for diagnostics.
	Filename string
	Source   string
	// Env holds environment bindings by bare name, without the env. prefix.
	Env map[string]string
	// Filters resolves and invokes external filters; nil disables them.
	Filters FilterInvoker
	// MaxDepth caps nested expansion; MaxIncludeDepth caps nested includes.
	MaxDepth        int
	MaxIncludeDepth int
	// FilterDepths caps how deeply each filter's output is re-expanded. A
	// depth of zero splices the output as final text.
	FilterDepths map[string]int
	// BaseDir resolves include paths. Defaults to the root document's
	// directory.
	BaseDir string
	Logger  *slog.Logger
}

// Option adjusts evaluation options.
type Option func(*Options)

// WithFilename sets the root document's name for diagnostics and include
// resolution.
func WithFilename(name string) Option { return func(o *Options) { o.Filename = name } }

// WithSource provides the root document's text for diagnostic context.
func WithSource(source string) Option { return func(o *Options) { o.Source = source } }

// WithEnv preseeds the environment. Keys are bare names without the env.
// prefix.
func WithEnv(env map[string]string) Option { return func(o *Options) { o.Env = env } }

// WithFilters wires an external filter invoker into name resolution.
func WithFilters(inv FilterInvoker) Option { return func(o *Options) { o.Filters = inv } }

// WithMaxDepth overrides the global expansion depth budget.
func WithMaxDepth(depth int) Option { return func(o *Options) { o.MaxDepth = depth } }

// WithMaxIncludeDepth overrides the include nesting limit.
func WithMaxIncludeDepth(depth int) Option { return func(o *Options) { o.MaxIncludeDepth = depth } }

// WithFilterDepths sets per-filter re-expansion limits.
func WithFilterDepths(depths map[string]int) Option { return func(o *Options) { o.FilterDepths = depths } }

// WithBaseDir overrides the directory include paths resolve against.
func WithBaseDir(dir string) Option { return func(o *Options) { o.BaseDir = dir } }

// WithLogger sets the structured logger. Evaluation is silent by default.
func WithLogger(logger *slog.Logger) Option { return func(o *Options) { o.Logger = logger } }

type evaluator struct {
	tree    *arena
	reg     *Registry
	env     *Environment
	invoker FilterInvoker
	logger  *slog.Logger

	maxDepth        int
	maxIncludeDepth int
	filterDepths    map[string]int

	src       *sourceDoc
	baseDir   string
	rootPath  string
	rootFrame *frame

	transitions int
	passes      int
	jobs        []*filterJob
}

// Evaluate expands doc to convergence and returns the materialized result.
// Definitions are collected from the document's top level before the first
// pass; the environment is frozen once expansion begins.
func Evaluate(ctx context.Context, doc *ast.Document, opts ...Option) (*ast.Document, error) {
	o := &Options{MaxDepth: DefaultMaxDepth, MaxIncludeDepth: DefaultMaxIncludeDepth}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	baseDir := o.BaseDir
	if baseDir == "" {
		if o.Filename != "" {
			baseDir = filepath.Dir(o.Filename)
		} else {
			baseDir = "."
		}
	}
	rootPath := ""
	if o.Filename != "" {
		if abs, err := filepath.Abs(o.Filename); err == nil {
			rootPath = abs
		}
	}

	env := NewEnvironment()
	for k, v := range o.Env {
		if err := env.Set(k, v); err != nil {
			return nil, err
		}
	}

	ev := &evaluator{
		tree:            newArena(),
		reg:             NewRegistry(),
		env:             env,
		invoker:         o.Filters,
		logger:          o.Logger,
		maxDepth:        o.MaxDepth,
		maxIncludeDepth: o.MaxIncludeDepth,
		filterDepths:    o.FilterDepths,
		src:             &sourceDoc{filename: o.Filename, source: o.Source},
		baseDir:         baseDir,
		rootPath:        rootPath,
		rootFrame:       &frame{budget: o.MaxDepth},
	}
	return ev.run(ctx, doc)
}

func (ev *evaluator) run(ctx context.Context, doc *ast.Document) (*ast.Document, error) {
	blocks, err := collectDefinitions(ev.reg, doc, ev.src)
	if err != nil {
		return nil, err
	}
	if err := ev.resolveDefaults(ctx); err != nil {
		return nil, err
	}
	ev.env.Freeze()

	root := &enode{frame: ev.rootFrame, doc: ev.src}
	root.kids = ev.tree.buildBlocks(blocks, ev.rootFrame, ev.src)
	if err := ev.runPasses(ctx, root); err != nil {
		return nil, err
	}
	if errs := ev.collectUndefined(root.kids); len(errs) > 0 {
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, errs
	}
	ev.logger.Debug("expansion converged",
		"passes", ev.passes, "nodes", len(ev.tree.nodes))
	return ev.tree.materializeDoc(root.kids, doc.Loc), nil
}

// runPasses walks root until a pass completes with no state transitions.
// Subtrees spliced during a pass are scanned on the next one.
func (ev *evaluator) runPasses(ctx context.Context, root *enode) error {
	savedTransitions, savedJobs := ev.transitions, ev.jobs
	defer func() { ev.transitions, ev.jobs = savedTransitions, savedJobs }()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev.transitions = 0
		ev.jobs = nil
		if err := ev.walkChildren(ctx, root); err != nil {
			return err
		}
		if err := ev.runFilters(ctx); err != nil {
			return err
		}
		ev.passes++
		ev.logger.Debug("expansion pass complete",
			"pass", ev.passes, "transitions", ev.transitions)
		if ev.transitions == 0 {
			return nil
		}
	}
}

// walkChildren makes one depth-first sweep over parent's children. A
// replaced child's new subtree is skipped until the next pass; an in-place
// expansion keeps its children eligible immediately.
func (ev *evaluator) walkChildren(ctx context.Context, parent *enode) error {
	for i := 0; i < len(parent.kids); i++ {
		kid := ev.tree.node(parent.kids[i])
		if kid.call == nil || kid.state == stateFinal || kid.state == stateExpanding {
			continue
		}
		if kid.state == stateExpanded {
			if err := ev.walkChildren(ctx, kid); err != nil {
				return err
			}
			continue
		}
		repl, oc, err := ev.expand(ctx, parent, kid)
		if err != nil {
			return err
		}
		switch oc {
		case outcomeReplace:
			parent.kids = spliceKids(parent.kids, i, repl)
			i += len(repl) - 1
			ev.transitions++
		case outcomeExpand:
			ev.transitions++
			if err := ev.walkChildren(ctx, kid); err != nil {
				return err
			}
		case outcomeDefer:
			if err := ev.walkChildren(ctx, kid); err != nil {
				return err
			}
		}
	}
	return nil
}

// outcome is the result of one expansion attempt.
type outcome uint8

const (
	// outcomeDefer leaves the node Pending for the next pass.
	outcomeDefer outcome = iota
	// outcomeExpand bound the node in place; it is now Expanded.
	outcomeExpand
	// outcomeReplace replaced the node with a spliced subtree.
	outcomeReplace
	// outcomeScheduled queued a filter invocation for the end of the pass.
	outcomeScheduled
)

// expand attempts to resolve one Pending call. Resolution order: builtins,
// then user definitions, then the environment and the trailing-dot retry,
// then external filters. An unresolvable name defers.
func (ev *evaluator) expand(ctx context.Context, parent, n *enode) ([]nodeID, outcome, error) {
	if n.frame.budget <= 0 {
		return nil, 0, ev.errAt(DepthExceeded, n.doc, n.call.span, n.frame.chain(),
			"macro call depth limit (%d) exceeded", ev.maxDepth)
	}
	name := CanonicalName(n.call.name)

	if b, ok := lookupBuiltin(name); ok {
		if b.expansionTime {
			return ev.expandBuiltin(ctx, parent, n, name, b)
		}
		return ev.expandRender(n, name, b)
	}
	if def, ok := ev.reg.Lookup(name); ok {
		return ev.expandUserMacro(n, def, "")
	}
	if value, ok := ev.envHit(n.call.name); ok {
		return ev.spliceText(n, value), outcomeReplace, nil
	}
	if base, ok := strings.CutSuffix(n.call.name, "."); ok && base != "" {
		if def, found := ev.reg.Lookup(CanonicalName(base)); found {
			return ev.expandUserMacro(n, def, ".")
		}
		if value, found := ev.envHit(base); found {
			return ev.spliceText(n, value+"."), outcomeReplace, nil
		}
	}
	if strings.HasPrefix(n.call.name, "env.") {
		return nil, outcomeReplace, nil
	}
	if ev.invoker != nil && ev.invoker.Lookup(n.call.name) {
		return ev.scheduleFilter(parent, n)
	}
	n.deferOn(n.call.name, n.call.span)
	return nil, outcomeDefer, nil
}

// spliceText builds the replacement for a reference that resolved to plain
// text. An empty value splices to nothing.
func (ev *evaluator) spliceText(n *enode, value string) []nodeID {
	if value == "" {
		return nil
	}
	return []nodeID{ev.tree.newText(value, n.call.span, n.frame, n.doc)}
}

// expandRender binds a render-time builtin in place: arguments flatten to
// text, string bodies resolve their code sections, and the node survives
// into the output tree.
func (ev *evaluator) expandRender(n *enode, name string, b *builtin) ([]nodeID, outcome, error) {
	if err := ev.validateArgs(n, b); err != nil {
		return nil, 0, err
	}
	if name == "table" {
		if repl, ok := ev.expandTable(n); ok {
			return repl, outcomeReplace, nil
		}
	}
	if err := ev.flattenArgs(n); err != nil {
		return ev.deferOrFail(n, err)
	}
	if s, ok := n.call.body.(*ast.InterpString); ok {
		resolved, err := ev.resolveStringBody(s)
		if err != nil {
			return ev.deferOrFail(n, err)
		}
		n.call.body = resolved
	}
	n.state = stateExpanded
	return nil, outcomeExpand, nil
}

// expandUserMacro replaces a call with its instantiated definition body.
// The suffix carries the trailing dot restored after a dot-stripped lookup.
func (ev *evaluator) expandUserMacro(n *enode, def *Definition, suffix string) ([]nodeID, outcome, error) {
	sc, err := ev.bindArgs(n, def)
	if err != nil {
		return nil, 0, err
	}
	budget := n.frame.budget - 1
	if def.Depth >= 0 && def.Depth < budget {
		budget = def.Depth
	}
	f := n.frame.child(n.call.name, budget)
	repl, err := ev.instantiate(def, sc, f)
	if err != nil {
		return ev.deferOrFail(n, err)
	}
	if def.Depth == 0 {
		ev.tree.markFinal(repl)
	}
	if suffix != "" {
		repl = append(repl, ev.tree.newText(suffix, n.call.span, n.frame, n.doc))
	}
	return repl, outcomeReplace, nil
}

// expandBuiltin dispatches the expansion-time builtins.
func (ev *evaluator) expandBuiltin(ctx context.Context, parent, n *enode, name string, b *builtin) ([]nodeID, outcome, error) {
	switch name {
	case "comment":
		return nil, outcomeReplace, nil
	case "set":
		// Top-level definitions are collected before expansion and the
		// parser rejects nested ones, so a definition here must have come
		// back from a filter.
		return nil, 0, ev.errNode(NestedDefinition, n, n.call.span,
			"definition not allowed in filter output")
	case "ifeq", "ifne":
		return ev.expandConditional(n, name, b)
	case "ifset":
		return ev.expandIfSet(n, b)
	case "include":
		return ev.expandInclude(ctx, parent, n, b)
	}
	return nil, 0, ev.errNode(UndefinedMacro, n, n.call.span,
		"undefined macro: %s", n.call.name)
}

// expandConditional splices the body of #ifeq and #ifne when the comparison
// holds, and nothing otherwise. The body keeps the caller's frame.
func (ev *evaluator) expandConditional(n *enode, name string, b *builtin) ([]nodeID, outcome, error) {
	if err := ev.validateArgs(n, b); err != nil {
		return nil, 0, err
	}
	lhs, err := ev.resolveValue(n.call.Arg("lhs"))
	if err != nil {
		return ev.deferOrFail(n, err)
	}
	rhs, err := ev.resolveValue(n.call.Arg("rhs"))
	if err != nil {
		return ev.deferOrFail(n, err)
	}
	if (lhs == rhs) != (name == "ifeq") {
		return nil, outcomeReplace, nil
	}
	repl, err := ev.conditionalBody(n)
	if err != nil {
		return ev.deferOrFail(n, err)
	}
	return repl, outcomeReplace, nil
}

// expandIfSet splices the body of #ifset when the name is a definition or a
// bound environment variable.
func (ev *evaluator) expandIfSet(n *enode, b *builtin) ([]nodeID, outcome, error) {
	if err := ev.validateArgs(n, b); err != nil {
		return nil, 0, err
	}
	name, err := ev.resolveValue(n.call.Arg("name"))
	if err != nil {
		return ev.deferOrFail(n, err)
	}
	_, inRegistry := ev.reg.Lookup(CanonicalName(name))
	_, inEnv := ev.envHit(name)
	if !inRegistry && !inEnv {
		return nil, outcomeReplace, nil
	}
	repl, err := ev.conditionalBody(n)
	if err != nil {
		return ev.deferOrFail(n, err)
	}
	return repl, outcomeReplace, nil
}

// conditionalBody returns a conditional's body as replacement nodes. The
// body keeps the caller's frame.
func (ev *evaluator) conditionalBody(n *enode) ([]nodeID, error) {
	switch body := n.call.body.(type) {
	case *ast.InterpString:
		text, err := ev.resolveParts(body.Parts)
		if err != nil {
			return nil, err
		}
		return ev.spliceText(n, text), nil
	case *ast.RawString:
		return ev.spliceText(n, body.Value), nil
	}
	return n.kids, nil
}

// deferOrFail turns an unresolved reference into a deferral and passes any
// other error through.
func (ev *evaluator) deferOrFail(n *enode, err error) ([]nodeID, outcome, error) {
	if d, ok := asDefer(err); ok {
		n.deferOn(d.name, d.span)
		return nil, outcomeDefer, nil
	}
	return nil, 0, err
}

// validateArgs checks supplied arguments against a builtin's declared
// parameters.
func (ev *evaluator) validateArgs(n *enode, b *builtin) error {
	for _, arg := range n.call.args {
		if _, ok := b.param(arg.Name); !ok {
			return ev.errNode(UnknownArgument, n, arg.NameLoc,
				"unknown argument: %s", arg.Name)
		}
	}
	for _, p := range b.params {
		if !p.required {
			continue
		}
		if n.call.Arg(p.name) == nil {
			return ev.errNode(MissingRequiredArgument, n, n.call.span,
				"missing required argument: %s", p.name)
		}
	}
	return nil
}

// collectUndefined reports every call still unresolved after convergence,
// one error per call site in document order. A deferred call reports the
// reference that blocked it; its subtree is not searched further.
func (ev *evaluator) collectUndefined(ids []nodeID) ErrorList {
	var errs ErrorList
	ev.walkPending(ids, &errs)
	return errs
}

func (ev *evaluator) walkPending(ids []nodeID, errs *ErrorList) {
	for _, id := range ids {
		n := ev.tree.node(id)
		if n.call == nil || n.state == stateFinal {
			continue
		}
		if n.state == stateExpanded {
			ev.walkPending(n.kids, errs)
			continue
		}
		name, span := n.call.name, n.call.span
		if n.deferSet {
			name, span = n.deferName, n.deferSpan
		}
		*errs = append(*errs, ev.errAt(UndefinedMacro, n.doc, span, n.frame.chain(),
			"undefined macro: %s%s", name, ev.suggest(name)))
	}
}

func (ev *evaluator) errAt(kind Kind, src *sourceDoc, span token.Span, chain []string, format string, args ...any) *Error {
	e := &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Span:      span,
		CallStack: chain,
	}
	if src != nil {
		e.Filename = src.filename
		e.Source = src.source
	}
	return e
}

// errNode builds an error raised while expanding n; the chain includes the
// call itself.
func (ev *evaluator) errNode(kind Kind, n *enode, span token.Span, format string, args ...any) *Error {
	chain := append(n.frame.chain(), n.call.name)
	return ev.errAt(kind, n.doc, span, chain, format, args...)
}
