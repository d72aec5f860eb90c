package eval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/token"
)

// errDefer signals a reference that cannot resolve yet. The expansion that
// hit it stays Pending and is retried on the next pass; definitions spliced
// in by a later include may satisfy it.
type errDefer struct {
	name string
	span token.Span
}

func (e *errDefer) Error() string {
	return fmt.Sprintf("unresolved reference: %s", e.name)
}

func asDefer(err error) (*errDefer, bool) {
	d, ok := err.(*errDefer)
	return d, ok
}

// refText resolves a bare macro reference in a flattening context. The
// registry wins over the environment; a miss with a trailing dot retries
// without it and appends the dot to the result; an env.* miss is the empty
// string; anything else defers.
func (ev *evaluator) refText(name string, span token.Span) (string, error) {
	if def, ok := ev.reg.Lookup(CanonicalName(name)); ok {
		return ev.defText(def), nil
	}
	if text, ok := ev.envHit(name); ok {
		return text, nil
	}
	if base, ok := strings.CutSuffix(name, "."); ok && base != "" {
		if def, found := ev.reg.Lookup(CanonicalName(base)); found {
			return ev.defText(def) + ".", nil
		}
		if text, found := ev.envHit(base); found {
			return text + ".", nil
		}
	}
	if strings.HasPrefix(name, "env.") {
		return "", nil
	}
	return "", &errDefer{name: name, span: span}
}

// envHit returns the environment value bound to an env.* reference.
func (ev *evaluator) envHit(name string) (string, bool) {
	key, ok := strings.CutPrefix(name, "env.")
	if !ok {
		return "", false
	}
	return ev.env.Get(key)
}

// defText flattens a definition's body to its literal text: a Body's text
// and escape children joined, an interpreted string's text parts, or a raw
// string's value. The result is memoized on the definition.
func (ev *evaluator) defText(def *Definition) string {
	if def.hasBodyText {
		return def.bodyText
	}
	var b strings.Builder
	switch body := def.Body.(type) {
	case *ast.Body:
		for _, child := range body.Children {
			switch c := child.(type) {
			case *ast.Text:
				b.WriteString(c.Value)
			case *ast.Escape:
				b.WriteString(c.Value)
			}
		}
	case *ast.InterpString:
		for _, part := range body.Parts {
			if t, ok := part.(*ast.Text); ok {
				b.WriteString(t.Value)
			}
		}
	case *ast.RawString:
		b.WriteString(body.Value)
	}
	def.bodyText = b.String()
	def.hasBodyText = true
	return def.bodyText
}

// resolveValue flattens an argument value to text.
func (ev *evaluator) resolveValue(v ast.Value) (string, error) {
	switch val := v.(type) {
	case *ast.Text:
		return val.Value, nil
	case *ast.RawString:
		return val.Value, nil
	case *ast.InterpString:
		return ev.resolveParts(val.Parts)
	case *ast.MacroCall:
		return ev.refText(val.Name, val.Loc)
	}
	return "", nil
}

// resolveParts flattens interpreted-string parts, resolving code sections.
func (ev *evaluator) resolveParts(parts []ast.StringPart) (string, error) {
	var b strings.Builder
	for _, part := range parts {
		switch p := part.(type) {
		case *ast.Text:
			b.WriteString(p.Value)
		case *ast.CodeSection:
			text, err := ev.resolveInlines(p.Children)
			if err != nil {
				return "", err
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}

// resolveInlines flattens code-section content to text.
func (ev *evaluator) resolveInlines(nodes []ast.Inline) (string, error) {
	var b strings.Builder
	for _, node := range nodes {
		switch n := node.(type) {
		case *ast.Text:
			b.WriteString(n.Value)
		case *ast.Escape:
			b.WriteString(n.Value)
		case *ast.MacroCall:
			text, err := ev.refText(n.Name, n.Loc)
			if err != nil {
				return "", err
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}

// resolveStringBody returns a copy of an interpreted-string body with every
// code section resolved to literal text. Section structure is preserved for
// the renderer.
func (ev *evaluator) resolveStringBody(s *ast.InterpString) (*ast.InterpString, error) {
	parts := make([]ast.StringPart, len(s.Parts))
	for i, part := range s.Parts {
		cs, ok := part.(*ast.CodeSection)
		if !ok {
			parts[i] = part
			continue
		}
		text, err := ev.resolveInlines(cs.Children)
		if err != nil {
			return nil, err
		}
		parts[i] = &ast.CodeSection{
			Children: []ast.Inline{&ast.Text{Value: text, Loc: cs.Loc}},
			Loc:      cs.Loc,
		}
	}
	return &ast.InterpString{Parts: parts, Loc: s.Loc}, nil
}

// flattenArgs resolves every argument value to literal text, replacing the
// call's argument list. Deferred references propagate to the caller.
func (ev *evaluator) flattenArgs(n *enode) error {
	if len(n.call.args) == 0 {
		return nil
	}
	out := make([]*ast.NamedArg, len(n.call.args))
	for i, arg := range n.call.args {
		text, err := ev.resolveValue(arg.Value)
		if err != nil {
			return err
		}
		out[i] = &ast.NamedArg{
			Name:    arg.Name,
			Value:   &ast.Text{Value: text, Loc: arg.Loc},
			NameLoc: arg.NameLoc,
			Loc:     arg.Loc,
		}
	}
	n.call.args = out
	return nil
}

// subEvalValue runs a bounded sub-evaluation of a default-value expression
// and flattens the result to text. The sub-run shares the global depth
// budget through f.
func (ev *evaluator) subEvalValue(ctx context.Context, v ast.Value, f *frame, src *sourceDoc) (string, error) {
	switch val := v.(type) {
	case *ast.Text:
		return val.Value, nil
	case *ast.RawString:
		return val.Value, nil
	case *ast.InterpString:
		return ev.resolveParts(val.Parts)
	case *ast.MacroCall:
		root := &enode{kids: []nodeID{ev.tree.buildCall(val, f, src)}}
		if err := ev.runPasses(ctx, root); err != nil {
			return "", err
		}
		if name, span, pending := ev.firstPending(root.kids); pending {
			return "", &errDefer{name: name, span: span}
		}
		var b strings.Builder
		ev.tree.text(root.kids, &b)
		return b.String(), nil
	}
	return "", nil
}

// firstPending finds the first unresolved call in document order.
func (ev *evaluator) firstPending(ids []nodeID) (string, token.Span, bool) {
	for _, id := range ids {
		n := ev.tree.node(id)
		if n.state == stateFinal {
			continue
		}
		if n.call != nil && n.state != stateExpanded {
			if n.deferSet {
				return n.deferName, n.deferSpan, true
			}
			return n.call.name, n.call.span, true
		}
		if name, span, ok := ev.firstPending(n.kids); ok {
			return name, span, true
		}
	}
	return "", token.Span{}, false
}

// resolveDefaults evaluates every unresolved default-value expression in
// the registry and caches the result on its parameter. Defaults do not
// defer: a reference that cannot resolve is an immediate error.
func (ev *evaluator) resolveDefaults(ctx context.Context) error {
	names := ev.reg.Names()
	sort.Strings(names)
	for _, name := range names {
		def, _ := ev.reg.Lookup(name)
		if err := ev.resolveDefDefaults(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) resolveDefDefaults(ctx context.Context, def *Definition) error {
	for _, p := range def.Params {
		if p.Required || p.hasResolved || p.Default == nil {
			continue
		}
		f := ev.rootFrame.child(def.Name, ev.maxDepth-1)
		text, err := ev.subEvalValue(ctx, p.Default, f, def.src)
		if err != nil {
			if d, ok := asDefer(err); ok {
				return ev.errAt(UndefinedMacro, def.src, d.span, f.chain(),
					"undefined macro: %s%s", d.name, ev.suggest(d.name))
			}
			return err
		}
		p.resolved = text
		p.hasResolved = true
	}
	return nil
}
