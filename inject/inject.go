// Package inject synthesizes head-item AST nodes from compiler options.
//
// Stylesheets, scripts, and meta tags supplied on the command line or in a
// project config have no source text of their own. They are injected as
// ordinary #link, #script, and #meta calls at the front of the document so
// the renderer routes them into <head> like any authored head item.
package inject

import (
	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/token"
)

// MetaTag is a name/content pair destined for a <meta> element.
type MetaTag struct {
	Name    string
	Content string
}

// Synthesized nodes carry the zero span so diagnostics never point at them.
var cliSpan = token.Span{}

// HeadItems prepends #link, #script, and #meta calls to doc.
// The document is returned unchanged when there is nothing to inject.
func HeadItems(doc *ast.Document, cssFiles, jsFiles []string, metaTags []MetaTag) *ast.Document {
	if len(cssFiles) == 0 && len(jsFiles) == 0 && len(metaTags) == 0 {
		return doc
	}

	items := make([]ast.Block, 0, len(cssFiles)+len(jsFiles)+len(metaTags))

	for _, path := range cssFiles {
		items = append(items, call("link",
			arg("rel", "stylesheet"),
			arg("href", path),
		))
	}
	for _, path := range jsFiles {
		items = append(items, call("script", arg("src", path)))
	}
	for _, tag := range metaTags {
		items = append(items, call("meta",
			arg("name", tag.Name),
			arg("content", tag.Content),
		))
	}

	children := make([]ast.Block, 0, len(items)+len(doc.Children))
	children = append(children, items...)
	children = append(children, doc.Children...)
	return &ast.Document{Children: children, Loc: doc.Loc}
}

func call(name string, args ...*ast.NamedArg) *ast.MacroCall {
	return &ast.MacroCall{Name: name, Args: args, Bracketed: true, Loc: cliSpan}
}

func arg(name, value string) *ast.NamedArg {
	return &ast.NamedArg{
		Name:    name,
		Value:   &ast.Text{Value: value, Loc: cliSpan},
		NameLoc: cliSpan,
		Loc:     cliSpan,
	}
}
