package eval

import (
	"strings"

	"github.com/picodoc-lang/picodoc/ast"
)

// binding is a value bound to one parameter for one call. Exactly one of
// value and inlines is set; inlines carries colon-body content.
type binding struct {
	value   ast.Value
	inlines []ast.Inline
	src     *sourceDoc
}

// scope is the flat per-call namespace of parameter bindings. A call's
// scope never sees the caller's scope; bindings shadow definitions of the
// same name only through substitution into the body template.
type scope map[string]*binding

// bindArgs validates a call against a definition and binds every declared
// parameter: supplied arguments first, then the call body for the body
// parameter, then resolved defaults.
func (ev *evaluator) bindArgs(n *enode, def *Definition) (scope, error) {
	supplied := make(map[string]*ast.NamedArg, len(n.call.args))
	for _, arg := range n.call.args {
		if _, ok := def.Param(arg.Name); !ok {
			return nil, ev.errNode(UnknownArgument, n, arg.NameLoc,
				"unknown argument: %s", arg.Name)
		}
		supplied[arg.Name] = arg
	}

	sc := make(scope, len(def.Params))
	for _, p := range def.Params {
		if p.Name == "body" && n.call.hasBody {
			if n.call.body != nil {
				sc["body"] = &binding{value: n.call.body.(ast.Value), src: n.doc}
			} else {
				sc["body"] = &binding{inlines: ev.tree.materializeInlines(n.kids), src: n.doc}
			}
			continue
		}
		if arg, ok := supplied[p.Name]; ok {
			sc[p.Name] = &binding{value: arg.Value, src: n.doc}
			continue
		}
		if p.Required {
			return nil, ev.errNode(MissingRequiredArgument, n, n.call.span,
				"missing required argument: %s", p.Name)
		}
		sc[p.Name] = &binding{
			value: &ast.Text{Value: p.resolved, Loc: n.call.span},
			src:   def.src,
		}
	}
	return sc, nil
}

// instantiate builds the replacement subtree for a user-macro call: the
// definition's body template with parameter references substituted. Every
// produced node carries the child frame f.
func (ev *evaluator) instantiate(def *Definition, sc scope, f *frame) ([]nodeID, error) {
	switch body := def.Body.(type) {
	case *ast.Body:
		return ev.instInlines(body.Children, sc, f, def)
	case *ast.InterpString:
		s, err := ev.substString(body, sc)
		if err != nil {
			return nil, err
		}
		text, err := ev.resolveParts(s.Parts)
		if err != nil {
			return nil, err
		}
		return []nodeID{ev.tree.newText(text, body.Loc, f, def.src)}, nil
	case *ast.RawString:
		return []nodeID{ev.tree.newText(body.Value, body.Loc, f, def.src)}, nil
	}
	return nil, nil
}

func (ev *evaluator) instInlines(nodes []ast.Inline, sc scope, f *frame, def *Definition) ([]nodeID, error) {
	var out []nodeID
	for _, node := range nodes {
		ids, err := ev.instInline(node, sc, f, def)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

func (ev *evaluator) instInline(node ast.Inline, sc scope, f *frame, def *Definition) ([]nodeID, error) {
	call, ok := node.(*ast.MacroCall)
	if !ok {
		return []nodeID{ev.tree.newLeaf(node, f, def.src)}, nil
	}
	if b, bound := sc[call.Name]; bound && len(call.Args) == 0 && call.Body == nil {
		return ev.spliceBinding(b, call, f)
	}
	subst, err := ev.substCall(call, sc)
	if err != nil {
		return nil, err
	}
	return []nodeID{ev.tree.buildCall(subst, f, def.src)}, nil
}

// spliceBinding expands a bare parameter reference in body position into
// working nodes.
func (ev *evaluator) spliceBinding(b *binding, ref *ast.MacroCall, f *frame) ([]nodeID, error) {
	if b.inlines != nil {
		return ev.tree.buildInlines(b.inlines, f, b.src), nil
	}
	switch v := b.value.(type) {
	case *ast.Text:
		return []nodeID{ev.tree.newText(v.Value, ref.Loc, f, b.src)}, nil
	case *ast.RawString:
		return []nodeID{ev.tree.newText(v.Value, ref.Loc, f, b.src)}, nil
	case *ast.InterpString:
		text, err := ev.resolveParts(v.Parts)
		if err != nil {
			return nil, err
		}
		return []nodeID{ev.tree.newText(text, ref.Loc, f, b.src)}, nil
	case *ast.MacroCall:
		return []nodeID{ev.tree.buildCall(v, f, b.src)}, nil
	}
	return nil, nil
}

// substCall clones a template call, substituting parameter references in
// argument values, code sections, and nested bodies.
func (ev *evaluator) substCall(call *ast.MacroCall, sc scope) (*ast.MacroCall, error) {
	out := &ast.MacroCall{Name: call.Name, Bracketed: call.Bracketed, Loc: call.Loc}
	if len(call.Args) > 0 {
		out.Args = make([]*ast.NamedArg, len(call.Args))
		for i, arg := range call.Args {
			v, err := ev.substValue(arg.Value, sc)
			if err != nil {
				return nil, err
			}
			out.Args[i] = &ast.NamedArg{
				Name:    arg.Name,
				Value:   v,
				NameLoc: arg.NameLoc,
				Loc:     arg.Loc,
			}
		}
	}
	switch body := call.Body.(type) {
	case *ast.Body:
		children, err := ev.substInlines(body.Children, sc)
		if err != nil {
			return nil, err
		}
		out.Body = &ast.Body{Children: children, Loc: body.Loc}
	case *ast.InterpString:
		s, err := ev.substString(body, sc)
		if err != nil {
			return nil, err
		}
		out.Body = s
	case *ast.RawString:
		out.Body = body
	}
	return out, nil
}

func (ev *evaluator) substInlines(nodes []ast.Inline, sc scope) ([]ast.Inline, error) {
	out := make([]ast.Inline, 0, len(nodes))
	for _, node := range nodes {
		call, ok := node.(*ast.MacroCall)
		if !ok {
			out = append(out, node)
			continue
		}
		if b, bound := sc[call.Name]; bound && len(call.Args) == 0 && call.Body == nil {
			inline, err := ev.bindingInline(b, call)
			if err != nil {
				return nil, err
			}
			out = append(out, inline)
			continue
		}
		subst, err := ev.substCall(call, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, subst)
	}
	return out, nil
}

func (ev *evaluator) substValue(v ast.Value, sc scope) (ast.Value, error) {
	switch val := v.(type) {
	case *ast.InterpString:
		return ev.substString(val, sc)
	case *ast.MacroCall:
		if b, bound := sc[val.Name]; bound && len(val.Args) == 0 && val.Body == nil {
			return ev.bindingValue(b)
		}
		return ev.substCall(val, sc)
	}
	return v, nil
}

func (ev *evaluator) substString(s *ast.InterpString, sc scope) (*ast.InterpString, error) {
	parts := make([]ast.StringPart, len(s.Parts))
	for i, part := range s.Parts {
		cs, ok := part.(*ast.CodeSection)
		if !ok {
			parts[i] = part
			continue
		}
		children, err := ev.substInlines(cs.Children, sc)
		if err != nil {
			return nil, err
		}
		parts[i] = &ast.CodeSection{Children: children, Loc: cs.Loc}
	}
	return &ast.InterpString{Parts: parts, Loc: s.Loc}, nil
}

// bindingInline renders a bound parameter where an inline node is needed.
func (ev *evaluator) bindingInline(b *binding, ref *ast.MacroCall) (ast.Inline, error) {
	if b.inlines != nil {
		return &ast.Text{Value: inlineText(b.inlines), Loc: ref.Loc}, nil
	}
	switch v := b.value.(type) {
	case *ast.Text:
		return v, nil
	case *ast.RawString:
		return &ast.Text{Value: v.Value, Loc: ref.Loc}, nil
	case *ast.InterpString:
		text, err := ev.resolveParts(v.Parts)
		if err != nil {
			return nil, err
		}
		return &ast.Text{Value: text, Loc: ref.Loc}, nil
	case *ast.MacroCall:
		return v, nil
	}
	return &ast.Text{Loc: ref.Loc}, nil
}

// bindingValue renders a bound parameter where an argument value is needed.
func (ev *evaluator) bindingValue(b *binding) (ast.Value, error) {
	if b.value != nil {
		return b.value, nil
	}
	return &ast.Text{Value: inlineText(b.inlines)}, nil
}

// inlineText flattens inline nodes to their literal text.
func inlineText(nodes []ast.Inline) string {
	var b strings.Builder
	for _, node := range nodes {
		switch n := node.(type) {
		case *ast.Text:
			b.WriteString(n.Value)
		case *ast.Escape:
			b.WriteString(n.Value)
		}
	}
	return b.String()
}
