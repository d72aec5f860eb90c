package eval

import (
	"strings"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/token"
)

// nodeState tracks a working node through the pass loop.
type nodeState uint8

const (
	// statePending marks a call not yet resolved. Pending nodes are
	// retried every pass until they expand or the tree converges.
	statePending nodeState = iota
	// stateExpanding marks a call whose filter invocation is in flight.
	stateExpanding
	// stateExpanded marks a call whose arguments are bound; its children
	// stay eligible for later passes.
	stateExpanded
	// stateFinal marks a subtree that is never rescanned.
	stateFinal
)

// nodeID indexes the arena. Splicing a replacement subtree is an index
// update in the parent's kid list; node identities never move.
type nodeID int32

// sourceDoc ties nodes to the file they were parsed from, for diagnostics.
type sourceDoc struct {
	filename string
	source   string
}

// frame is one level of the expansion stack. Every spliced subtree carries
// the frame created for it; the budget bounds how much deeper expansion may
// go below that point.
type frame struct {
	parent  *frame
	name    string // call name as written at the call site
	budget  int    // remaining expansion depth
	incPath string // absolute file path when the frame is an include
}

func (f *frame) child(name string, budget int) *frame {
	return &frame{parent: f, name: name, budget: budget}
}

// chain returns the call names from the outermost entered frame inward.
func (f *frame) chain() []string {
	var names []string
	for cur := f; cur != nil; cur = cur.parent {
		if cur.name != "" {
			names = append(names, cur.name)
		}
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// includeDepth counts the include frames from here to the root.
func (f *frame) includeDepth() int {
	depth := 0
	for cur := f; cur != nil; cur = cur.parent {
		if cur.incPath != "" {
			depth++
		}
	}
	return depth
}

// onIncludePath reports whether path is already being included.
func (f *frame) onIncludePath(path string) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.incPath == path {
			return true
		}
	}
	return false
}

// callNode is the mutable call data of an interior node. Arguments are
// replaced wholesale when they are flattened; the parsed tree itself is
// never written to.
type callNode struct {
	name      string
	args      []*ast.NamedArg
	body      ast.BodyContent // string-form body; nil when kids carry it
	bodySpan  token.Span
	hasBody   bool
	bracketed bool
	span      token.Span
}

// Arg returns the value of the named argument, or nil if absent.
func (c *callNode) Arg(name string) ast.Value {
	for _, a := range c.args {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// enode is one working node. Leaves wrap a literal parsed node; interior
// nodes are macro calls whose body children live in kids.
type enode struct {
	state nodeState
	frame *frame
	doc   *sourceDoc
	lit   ast.Node  // *ast.Text or *ast.Escape, nil for calls
	call  *callNode // nil for leaves
	kids  []nodeID

	// Why the node is still Pending, reported at convergence.
	deferName string
	deferSpan token.Span
	deferSet  bool
}

func (n *enode) deferOn(name string, span token.Span) {
	n.deferName = name
	n.deferSpan = span
	n.deferSet = true
}

// arena owns every working node of an evaluation.
type arena struct {
	nodes []*enode
}

func newArena() *arena {
	return &arena{}
}

func (a *arena) node(id nodeID) *enode { return a.nodes[id] }

func (a *arena) add(n *enode) nodeID {
	a.nodes = append(a.nodes, n)
	return nodeID(len(a.nodes) - 1)
}

func (a *arena) newLeaf(lit ast.Node, f *frame, src *sourceDoc) nodeID {
	return a.add(&enode{state: stateExpanded, frame: f, doc: src, lit: lit})
}

func (a *arena) newText(value string, span token.Span, f *frame, src *sourceDoc) nodeID {
	return a.newLeaf(&ast.Text{Value: value, Loc: span}, f, src)
}

// buildBlocks converts parsed top-level blocks into Pending working nodes.
// Paragraphs wrap in an implicit #p call.
func (a *arena) buildBlocks(blocks []ast.Block, f *frame, src *sourceDoc) []nodeID {
	ids := make([]nodeID, 0, len(blocks))
	for _, block := range blocks {
		switch b := block.(type) {
		case *ast.MacroCall:
			ids = append(ids, a.buildCall(b, f, src))
		case *ast.Paragraph:
			ids = append(ids, a.buildParagraph(b, f, src))
		}
	}
	return ids
}

// buildFragment converts parsed blocks for an inline splice point:
// paragraphs dissolve into their children instead of wrapping in #p.
func (a *arena) buildFragment(blocks []ast.Block, f *frame, src *sourceDoc) []nodeID {
	var ids []nodeID
	for _, block := range blocks {
		switch b := block.(type) {
		case *ast.MacroCall:
			ids = append(ids, a.buildCall(b, f, src))
		case *ast.Paragraph:
			ids = append(ids, a.buildInlines(b.Children, f, src)...)
		}
	}
	return ids
}

func (a *arena) buildParagraph(p *ast.Paragraph, f *frame, src *sourceDoc) nodeID {
	n := &enode{state: statePending, frame: f, doc: src, call: &callNode{
		name:     "p",
		hasBody:  true,
		bodySpan: p.Loc,
		span:     p.Loc,
	}}
	n.kids = a.buildInlines(p.Children, f, src)
	return a.add(n)
}

func (a *arena) buildInlines(nodes []ast.Inline, f *frame, src *sourceDoc) []nodeID {
	ids := make([]nodeID, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, a.buildInline(node, f, src))
	}
	return ids
}

func (a *arena) buildInline(node ast.Inline, f *frame, src *sourceDoc) nodeID {
	switch n := node.(type) {
	case *ast.MacroCall:
		return a.buildCall(n, f, src)
	default:
		return a.newLeaf(node, f, src)
	}
}

func (a *arena) buildCall(call *ast.MacroCall, f *frame, src *sourceDoc) nodeID {
	n := &enode{state: statePending, frame: f, doc: src, call: &callNode{
		name:      call.Name,
		args:      call.Args,
		bracketed: call.Bracketed,
		span:      call.Loc,
	}}
	switch body := call.Body.(type) {
	case *ast.Body:
		n.call.hasBody = true
		n.call.bodySpan = body.Loc
		n.kids = a.buildInlines(body.Children, f, src)
	case *ast.InterpString:
		n.call.hasBody = true
		n.call.body = body
	case *ast.RawString:
		n.call.hasBody = true
		n.call.body = body
	}
	return a.add(n)
}

// spliceKids replaces kids[i] with repl.
func spliceKids(kids []nodeID, i int, repl []nodeID) []nodeID {
	out := make([]nodeID, 0, len(kids)-1+len(repl))
	out = append(out, kids[:i]...)
	out = append(out, repl...)
	out = append(out, kids[i+1:]...)
	return out
}

// markFinal seals a subtree; Final nodes are never rescanned.
func (a *arena) markFinal(ids []nodeID) {
	for _, id := range ids {
		n := a.node(id)
		n.state = stateFinal
		a.markFinal(n.kids)
	}
}

// hasPending reports whether any node in the subtree is still unresolved.
// Final subtrees do not count.
func (a *arena) hasPending(ids []nodeID) bool {
	for _, id := range ids {
		n := a.node(id)
		if n.state == stateFinal {
			continue
		}
		if n.call != nil && (n.state == statePending || n.state == stateExpanding) {
			return true
		}
		if a.hasPending(n.kids) {
			return true
		}
	}
	return false
}

// text flattens a subtree to its literal text: leaf values, resolved string
// bodies, and body children, in document order.
func (a *arena) text(ids []nodeID, b *strings.Builder) {
	for _, id := range ids {
		n := a.node(id)
		if n.call == nil {
			switch lit := n.lit.(type) {
			case *ast.Text:
				b.WriteString(lit.Value)
			case *ast.Escape:
				b.WriteString(lit.Value)
			}
			continue
		}
		if n.call.body != nil {
			b.WriteString(stringBodyText(n.call.body))
		}
		a.text(n.kids, b)
	}
}

// stringBodyText flattens a string-form body. Code sections contribute the
// text they resolved to.
func stringBodyText(body ast.BodyContent) string {
	var b strings.Builder
	switch v := body.(type) {
	case *ast.RawString:
		b.WriteString(v.Value)
	case *ast.InterpString:
		for _, part := range v.Parts {
			switch p := part.(type) {
			case *ast.Text:
				b.WriteString(p.Value)
			case *ast.CodeSection:
				for _, child := range p.Children {
					if t, ok := child.(*ast.Text); ok {
						b.WriteString(t.Value)
					}
				}
			}
		}
	}
	return b.String()
}

// materializeDoc converts the converged tree back into a parsed-form
// document for the renderer. Stray top-level text is dropped; only calls
// survive at block level.
func (a *arena) materializeDoc(kids []nodeID, loc token.Span) *ast.Document {
	doc := &ast.Document{Loc: loc}
	for _, id := range kids {
		n := a.node(id)
		if n.call == nil {
			continue
		}
		doc.Children = append(doc.Children, a.materializeCall(n))
	}
	return doc
}

func (a *arena) materializeCall(n *enode) *ast.MacroCall {
	c := n.call
	call := &ast.MacroCall{
		Name:      c.name,
		Args:      c.args,
		Bracketed: c.bracketed,
		Loc:       c.span,
	}
	switch {
	case c.body != nil:
		call.Body = c.body
	case c.hasBody:
		call.Body = &ast.Body{Children: a.materializeInlines(n.kids), Loc: c.bodySpan}
	}
	return call
}

func (a *arena) materializeInlines(ids []nodeID) []ast.Inline {
	out := make([]ast.Inline, 0, len(ids))
	for _, id := range ids {
		n := a.node(id)
		if n.call != nil {
			out = append(out, a.materializeCall(n))
			continue
		}
		switch lit := n.lit.(type) {
		case *ast.Text:
			out = append(out, lit)
		case *ast.Escape:
			out = append(out, lit)
		}
	}
	return out
}
