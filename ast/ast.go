// Package ast defines the syntax tree produced by the PicoDoc parser and
// consumed by the evaluator and renderer.
//
// Node categories mirror the places a node may legally appear: Block nodes
// are direct children of a Document, Inline nodes appear in paragraph and
// macro bodies, Value nodes appear as argument values, and StringPart nodes
// make up interpreted strings.
package ast

import "github.com/picodoc-lang/picodoc/token"

// Node is implemented by every syntax tree node.
type Node interface {
	Span() token.Span
}

// Block nodes appear at the top level of a Document.
type Block interface {
	Node
	blockNode()
}

// Inline nodes appear inside paragraph and macro bodies.
type Inline interface {
	Node
	inlineNode()
}

// Value nodes appear as named-argument values.
type Value interface {
	Node
	valueNode()
}

// StringPart nodes make up an interpreted string.
type StringPart interface {
	Node
	stringPart()
}

// BodyContent is the body of a macro call: a Body subtree, an interpreted
// string, or a raw string.
type BodyContent interface {
	Node
	bodyContent()
}

// Text is coalesced literal text.
type Text struct {
	Value string
	Loc   token.Span
}

func (n *Text) Span() token.Span { return n.Loc }
func (*Text) inlineNode()        {}
func (*Text) valueNode()         {}
func (*Text) stringPart()        {}

// Escape is a resolved prose escape character.
type Escape struct {
	Value string
	Loc   token.Span
}

func (n *Escape) Span() token.Span { return n.Loc }
func (*Escape) inlineNode()        {}

// RawString is a raw string literal with no escape processing.
type RawString struct {
	Value string
	Loc   token.Span
}

func (n *RawString) Span() token.Span { return n.Loc }
func (*RawString) valueNode()         {}
func (*RawString) bodyContent()       {}

// RequiredMarker is the '?' in a definition's parameter list.
type RequiredMarker struct {
	Loc token.Span
}

func (n *RequiredMarker) Span() token.Span { return n.Loc }
func (*RequiredMarker) valueNode()         {}

// CodeSection is a \[...] code-mode section inside an interpreted string.
type CodeSection struct {
	Children []Inline
	Loc      token.Span
}

func (n *CodeSection) Span() token.Span { return n.Loc }
func (*CodeSection) stringPart()        {}

// InterpString is an interpreted string literal with possible code sections.
type InterpString struct {
	Parts []StringPart
	Loc   token.Span
}

func (n *InterpString) Span() token.Span { return n.Loc }
func (*InterpString) valueNode()         {}
func (*InterpString) bodyContent()       {}

// NamedArg is a name=value argument on a macro call.
type NamedArg struct {
	Name    string
	Value   Value
	NameLoc token.Span
	Loc     token.Span
}

// Span returns the range from the argument name to the end of its value.
func (n *NamedArg) Span() token.Span { return n.Loc }

// Body is colon-delimited body content of a macro call.
type Body struct {
	Children []Inline
	Loc      token.Span
}

func (n *Body) Span() token.Span { return n.Loc }
func (*Body) bodyContent()       {}

// MacroCall is a macro invocation: #name or [#name ...].
type MacroCall struct {
	Name      string
	Args      []*NamedArg
	Body      BodyContent // nil when the call has no body
	Bracketed bool
	Loc       token.Span
}

func (n *MacroCall) Span() token.Span { return n.Loc }
func (*MacroCall) blockNode()         {}
func (*MacroCall) inlineNode()        {}
func (*MacroCall) valueNode()         {}

// Arg returns the value of the named argument, or nil if absent.
func (n *MacroCall) Arg(name string) Value {
	for _, a := range n.Args {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// Paragraph is a run of prose; the evaluator wraps it in an implicit #p.
type Paragraph struct {
	Children []Inline
	Loc      token.Span
}

func (n *Paragraph) Span() token.Span { return n.Loc }
func (*Paragraph) blockNode()         {}

// Document is the root node.
type Document struct {
	Children []Block
	Loc      token.Span
}

func (n *Document) Span() token.Span { return n.Loc }
