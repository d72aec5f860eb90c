// Package render converts an expanded document tree to a complete HTML
// page. Documents reach this package after macro expansion, so every
// remaining call is either a rendering builtin or inert content.
package render

import (
	"strings"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/eval"
)

// Options configure rendering. Filename and Source feed the diagnostics
// attached to structural errors.
type Options struct {
	Filename string
	Source   string
}

// Option adjusts rendering options.
type Option func(*Options)

// WithFilename records the document's filename for diagnostics.
func WithFilename(name string) Option {
	return func(o *Options) { o.Filename = name }
}

// WithSource provides the document source for diagnostic excerpts.
func WithSource(source string) Option {
	return func(o *Options) { o.Source = source }
}

// HTML renders an expanded document. Top-level #lang sets the html lang
// attribute, #meta, #link, and #script calls collect into <head>, and
// everything else renders into <body> in document order.
func HTML(doc *ast.Document, opts ...Option) (string, error) {
	o := Options{Filename: "<input>"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateNesting(doc, o.Filename, o.Source); err != nil {
		return "", err
	}

	var lang string
	var head, body []*ast.MacroCall
	for _, child := range doc.Children {
		call, ok := child.(*ast.MacroCall)
		if !ok {
			continue
		}
		switch eval.CanonicalName(call.Name) {
		case "lang":
			lang = plainText(call.Body)
		case "meta", "link", "script":
			head = append(head, call)
		default:
			body = append(body, call)
		}
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	if lang != "" {
		b.WriteString(`<html lang="` + escapeAttr(lang) + "\">\n")
	} else {
		b.WriteString("<html>\n")
	}
	b.WriteString("<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	for _, item := range head {
		b.WriteString(renderHeadItem(item))
		b.WriteByte('\n')
	}
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	for _, item := range body {
		if rendered := renderNode(item); rendered != "" {
			b.WriteString(rendered)
			b.WriteByte('\n')
		}
	}
	b.WriteString("</body>\n")
	b.WriteString("</html>\n")
	return b.String(), nil
}

func renderNode(node *ast.MacroCall) string {
	switch eval.CanonicalName(node.Name) {
	case "title":
		return "<h1>" + renderBody(node.Body) + "</h1>"
	case "h2":
		return "<h2>" + renderBody(node.Body) + "</h2>"
	case "h3":
		return "<h3>" + renderBody(node.Body) + "</h3>"
	case "h4":
		return "<h4>" + renderBody(node.Body) + "</h4>"
	case "h5":
		return "<h5>" + renderBody(node.Body) + "</h5>"
	case "h6":
		return "<h6>" + renderBody(node.Body) + "</h6>"
	case "p":
		return "<p>" + renderBody(node.Body) + "</p>"
	case "hr":
		return "<hr>"
	case "b":
		return "<strong>" + renderBody(node.Body) + "</strong>"
	case "i":
		return "<em>" + renderBody(node.Body) + "</em>"
	case "url":
		return renderURL(node)
	case "code":
		return renderCode(node)
	case "literal":
		return renderLiteral(node)
	case "ul":
		return renderContainer(node, "ul")
	case "ol":
		return renderContainer(node, "ol")
	case "*":
		return renderItem(node)
	case "table":
		return renderContainer(node, "table")
	case "tr":
		return renderRow(node)
	case "td":
		return renderCell(node, "td")
	case "th":
		return renderCell(node, "th")
	default:
		// Unexpanded leftovers (depth-limited content) render their
		// body content only.
		return renderBody(node.Body)
	}
}

func renderBody(body ast.BodyContent) string {
	switch b := body.(type) {
	case nil:
		return ""
	case *ast.Body:
		var sb strings.Builder
		for _, child := range b.Children {
			sb.WriteString(renderChild(child))
		}
		return sb.String()
	case *ast.InterpString:
		return renderInterpString(b)
	case *ast.RawString:
		return escapeHTML(b.Value)
	default:
		return ""
	}
}

func renderInterpString(s *ast.InterpString) string {
	var sb strings.Builder
	for _, part := range s.Parts {
		switch p := part.(type) {
		case *ast.Text:
			sb.WriteString(escapeHTML(p.Value))
		case *ast.CodeSection:
			for _, child := range p.Children {
				sb.WriteString(renderChild(child))
			}
		}
	}
	return sb.String()
}

func renderChild(child ast.Inline) string {
	switch c := child.(type) {
	case *ast.Text:
		return escapeHTML(c.Value)
	case *ast.Escape:
		return escapeHTML(c.Value)
	case *ast.MacroCall:
		return renderNode(c)
	default:
		return ""
	}
}

// argText extracts the plain text of a named argument. The boolean
// distinguishes an absent argument from an empty one.
func argText(node *ast.MacroCall, name string) (string, bool) {
	v := node.Arg(name)
	if v == nil {
		return "", false
	}
	switch value := v.(type) {
	case *ast.Text:
		return value.Value, true
	case *ast.InterpString:
		var sb strings.Builder
		for _, part := range value.Parts {
			if t, ok := part.(*ast.Text); ok {
				sb.WriteString(t.Value)
			}
		}
		return sb.String(), true
	case *ast.RawString:
		return value.Value, true
	default:
		return "", true
	}
}

// plainText extracts the literal text of a body, ignoring nested calls.
func plainText(body ast.BodyContent) string {
	switch b := body.(type) {
	case *ast.Body:
		var sb strings.Builder
		for _, child := range b.Children {
			switch c := child.(type) {
			case *ast.Text:
				sb.WriteString(c.Value)
			case *ast.Escape:
				sb.WriteString(c.Value)
			}
		}
		return sb.String()
	case *ast.InterpString:
		var sb strings.Builder
		for _, part := range b.Parts {
			if t, ok := part.(*ast.Text); ok {
				sb.WriteString(t.Value)
			}
		}
		return sb.String()
	case *ast.RawString:
		return b.Value
	default:
		return ""
	}
}

func renderURL(node *ast.MacroCall) string {
	link, _ := argText(node, "link")
	text, hasText := argText(node, "text")

	var inner string
	switch {
	case hasText:
		inner = escapeHTML(text)
	case node.Body != nil:
		inner = renderBody(node.Body)
	default:
		inner = escapeHTML(link)
	}
	return `<a href="` + escapeAttr(link) + `">` + inner + "</a>"
}

func renderCode(node *ast.MacroCall) string {
	lang, _ := argText(node, "language")
	var cls string
	if lang != "" {
		cls = ` class="language-` + escapeAttr(lang) + `"`
	}

	if raw, ok := node.Body.(*ast.RawString); ok {
		return "<pre><code" + cls + ">" + escapeHTML(raw.Value) + "</code></pre>"
	}
	return "<code" + cls + ">" + renderBody(node.Body) + "</code>"
}

func renderLiteral(node *ast.MacroCall) string {
	if raw, ok := node.Body.(*ast.RawString); ok {
		return raw.Value
	}
	return renderBody(node.Body)
}

// renderContainer renders a list or table: every direct macro child on
// its own line, other children dropped.
func renderContainer(node *ast.MacroCall, tag string) string {
	var sb strings.Builder
	sb.WriteString("<" + tag + ">\n")
	if body, ok := node.Body.(*ast.Body); ok {
		for _, child := range body.Children {
			if call, ok := child.(*ast.MacroCall); ok {
				sb.WriteString(renderNode(call))
				sb.WriteByte('\n')
			}
		}
	}
	sb.WriteString("</" + tag + ">")
	return sb.String()
}

// renderItem renders a list item, keeping inline content ahead of any
// nested lists and dropping stray content after them.
func renderItem(node *ast.MacroCall) string {
	body, ok := node.Body.(*ast.Body)
	if !ok {
		return "<li>" + renderBody(node.Body) + "</li>"
	}

	var inline []ast.Inline
	var blocks []*ast.MacroCall
	seenBlock := false
	for _, child := range body.Children {
		if call, ok := child.(*ast.MacroCall); ok {
			if n := eval.CanonicalName(call.Name); n == "ul" || n == "ol" {
				blocks = append(blocks, call)
				seenBlock = true
				continue
			}
		}
		if !seenBlock {
			inline = append(inline, child)
		}
	}

	var sb strings.Builder
	for _, child := range inline {
		sb.WriteString(renderChild(child))
	}
	inlineHTML := strings.TrimSpace(sb.String())

	if len(blocks) > 0 {
		parts := make([]string, len(blocks))
		for i, blk := range blocks {
			parts[i] = renderNode(blk)
		}
		return "<li>" + inlineHTML + "\n" + strings.Join(parts, "\n") + "\n</li>"
	}
	return "<li>" + inlineHTML + "</li>"
}

func renderRow(node *ast.MacroCall) string {
	var sb strings.Builder
	sb.WriteString("<tr>")
	if body, ok := node.Body.(*ast.Body); ok {
		for _, child := range body.Children {
			if call, ok := child.(*ast.MacroCall); ok {
				sb.WriteString(renderNode(call))
			}
		}
	}
	sb.WriteString("</tr>")
	return sb.String()
}

func renderCell(node *ast.MacroCall, tag string) string {
	span, _ := argText(node, "span")
	inner := renderBody(node.Body)
	if span != "" {
		return "<" + tag + ` colspan="` + escapeAttr(span) + `">` + inner + "</" + tag + ">"
	}
	return "<" + tag + ">" + inner + "</" + tag + ">"
}

func renderHeadItem(node *ast.MacroCall) string {
	switch eval.CanonicalName(node.Name) {
	case "meta":
		name, _ := argText(node, "name")
		property, _ := argText(node, "property")
		content, _ := argText(node, "content")
		if property != "" {
			return `<meta property="` + escapeAttr(property) + `" content="` + escapeAttr(content) + `">`
		}
		if name != "" {
			return `<meta name="` + escapeAttr(name) + `" content="` + escapeAttr(content) + `">`
		}
		return ""
	case "link":
		rel, _ := argText(node, "rel")
		href, _ := argText(node, "href")
		return `<link rel="` + escapeAttr(rel) + `" href="` + escapeAttr(href) + `">`
	case "script":
		if src, _ := argText(node, "src"); src != "" {
			return `<script src="` + escapeAttr(src) + `"></script>`
		}
		if raw, ok := node.Body.(*ast.RawString); ok {
			return "<script>\n" + raw.Value + "\n</script>"
		}
		if node.Body != nil {
			return "<script>\n" + renderBody(node.Body) + "\n</script>"
		}
		return "<script></script>"
	default:
		return ""
	}
}
