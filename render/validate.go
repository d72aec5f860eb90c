package render

import (
	"fmt"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/eval"
	"github.com/picodoc-lang/picodoc/internal/diag"
	"github.com/picodoc-lang/picodoc/token"
)

// Error reports a structural problem in the expanded document.
type Error struct {
	Message  string
	Span     token.Span
	Filename string
	Source   string
}

func (e *Error) Error() string {
	pos := e.Span.Start
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, pos.Line, pos.Column, e.Message)
}

// Format returns the error with a source excerpt, when available.
func (e *Error) Format() string {
	return diag.Format(e.Filename, e.Source, e.Span, e.Message)
}

// validateNesting checks that table and list structure macros sit under
// the container they belong to. Rows need a table, cells need a row,
// and items need a list.
func validateNesting(doc *ast.Document, filename, source string) error {
	w := &nestingWalker{filename: filename, source: source}
	for _, child := range doc.Children {
		if call, ok := child.(*ast.MacroCall); ok {
			if err := w.check(call, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

type nestingWalker struct {
	filename string
	source   string
}

func (w *nestingWalker) check(call *ast.MacroCall, parent string) error {
	name := eval.CanonicalName(call.Name)
	switch name {
	case "td", "th":
		if parent != "tr" {
			return w.errorf(call, "#%s must appear inside #tr", call.Name)
		}
	case "tr":
		if parent != "table" {
			return w.errorf(call, "#%s must appear inside #table", call.Name)
		}
	case "*":
		if parent != "ul" && parent != "ol" {
			return w.errorf(call, "#%s must appear inside #ol or #ul", call.Name)
		}
	}
	return w.checkBody(call.Body, name)
}

func (w *nestingWalker) checkBody(body ast.BodyContent, parent string) error {
	switch b := body.(type) {
	case *ast.Body:
		for _, child := range b.Children {
			if call, ok := child.(*ast.MacroCall); ok {
				if err := w.check(call, parent); err != nil {
					return err
				}
			}
		}
	case *ast.InterpString:
		for _, part := range b.Parts {
			section, ok := part.(*ast.CodeSection)
			if !ok {
				continue
			}
			for _, child := range section.Children {
				if call, ok := child.(*ast.MacroCall); ok {
					if err := w.check(call, parent); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (w *nestingWalker) errorf(call *ast.MacroCall, format string, args ...any) *Error {
	return &Error{
		Message:  fmt.Sprintf(format, args...),
		Span:     call.Loc,
		Filename: w.filename,
		Source:   w.source,
	}
}
