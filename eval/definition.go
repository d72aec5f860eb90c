package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/token"
)

// Param is one declared parameter of a user-defined macro.
type Param struct {
	Name     string
	Required bool
	Default  ast.Value // nil when required
	Loc      token.Span

	// Default value resolved to text, filled by the resolver.
	resolved    string
	hasResolved bool
}

// Definition is a user-defined macro collected from a #set call.
type Definition struct {
	Name   string
	Params []*Param // declaration order, excluding name and depth
	Body   ast.BodyContent
	Depth  int // declared expansion limit, -1 when undeclared
	Loc    token.Span

	src *sourceDoc

	// Body flattened to text, memoized by the resolver on first reference.
	bodyText    string
	hasBodyText bool
}

// Param returns the declared parameter with the given name.
func (d *Definition) Param(name string) (*Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Registry is the flat, write-once namespace of user definitions.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Lookup returns the definition bound to name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns every defined macro name, for suggestions.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}

func (r *Registry) insert(d *Definition) error {
	if _, exists := r.defs[d.Name]; exists {
		return defError(DuplicateDefinition, d.src, d.Loc,
			"duplicate definition: %s", d.Name)
	}
	r.defs[d.Name] = d
	return nil
}

// collectDefinitions walks the top level of a document, moving every #set
// call into the registry. It returns the remaining blocks in order.
func collectDefinitions(reg *Registry, doc *ast.Document, src *sourceDoc) ([]ast.Block, error) {
	rest := make([]ast.Block, 0, len(doc.Children))
	for _, block := range doc.Children {
		call, ok := block.(*ast.MacroCall)
		if !ok || CanonicalName(call.Name) != "set" {
			rest = append(rest, block)
			continue
		}
		def, err := parseDefinition(call, src)
		if err != nil {
			return nil, err
		}
		if err := reg.insert(def); err != nil {
			return nil, err
		}
	}
	return rest, nil
}

// parseDefinition turns a #set call into a Definition. The name argument is
// required and must be a literal; depth must be a non-negative integer; a
// parameter named body must come last.
func parseDefinition(call *ast.MacroCall, src *sourceDoc) (*Definition, error) {
	def := &Definition{Depth: -1, Loc: call.Loc, Body: call.Body, src: src}

	seenName := false
	seenDepth := false
	for _, arg := range call.Args {
		switch {
		case arg.Name == "name" && !seenName:
			seenName = true
			name, ok := staticText(arg.Value)
			if !ok {
				return nil, defError(BadDefinition, src, arg.Loc,
					"definition name must be a literal")
			}
			if name == "" {
				return nil, defError(BadDefinition, src, arg.Loc,
					"definition name cannot be empty")
			}
			def.Name = name
		case arg.Name == "depth" && !seenDepth:
			seenDepth = true
			text, ok := staticText(arg.Value)
			if !ok {
				return nil, defError(BadDefinition, src, arg.Loc,
					"depth limit must be an integer")
			}
			depth, err := strconv.Atoi(strings.TrimSpace(text))
			if err != nil {
				return nil, defError(BadDefinition, src, arg.Loc,
					"depth limit must be an integer")
			}
			if depth < 0 {
				return nil, defError(BadDefinition, src, arg.Loc,
					"depth limit cannot be negative")
			}
			def.Depth = depth
		default:
			if strings.HasPrefix(arg.Name, "env.") {
				return nil, defError(BadDefinition, src, arg.NameLoc,
					"cannot shadow environment variable: %s", arg.Name)
			}
			if _, dup := def.Param(arg.Name); dup {
				return nil, defError(BadDefinition, src, arg.NameLoc,
					"duplicate parameter: %s", arg.Name)
			}
			p := &Param{Name: arg.Name, Loc: arg.Loc}
			if _, required := arg.Value.(*ast.RequiredMarker); required {
				p.Required = true
			} else {
				p.Default = arg.Value
			}
			def.Params = append(def.Params, p)
		}
	}

	if !seenName {
		return nil, defError(MissingRequiredArgument, src, call.Loc,
			"missing required argument: name")
	}
	for i, p := range def.Params {
		if p.Name == "body" && i != len(def.Params)-1 {
			return nil, defError(BadDefinition, src, p.Loc,
				"the body parameter must be declared last")
		}
	}
	return def, nil
}

// staticText flattens a value that contains no macro references. It is used
// where a value must be known before expansion runs.
func staticText(v ast.Value) (string, bool) {
	switch val := v.(type) {
	case *ast.Text:
		return val.Value, true
	case *ast.RawString:
		return val.Value, true
	case *ast.InterpString:
		var b strings.Builder
		for _, part := range val.Parts {
			text, ok := part.(*ast.Text)
			if !ok {
				return "", false
			}
			b.WriteString(text.Value)
		}
		return b.String(), true
	}
	return "", false
}

func defError(kind Kind, src *sourceDoc, span token.Span, format string, args ...any) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
	if src != nil {
		e.Filename = src.filename
		e.Source = src.source
	}
	return e
}
