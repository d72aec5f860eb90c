// Package convert produces PicoDoc markup from other document formats.
package convert

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// mdParser is a pre-configured goldmark instance with GFM table extension.
var mdParser = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

// FromMarkdown converts Markdown to PicoDoc markup. Headings map to the
// title and heading builtins, emphasis to b/i, fenced code to raw-string
// code bodies, and GFM tables to the pipe form. Raw HTML is dropped;
// blockquotes flatten to their content; images degrade to links.
func FromMarkdown(source []byte) (string, error) {
	if len(source) == 0 {
		return "", nil
	}

	doc := mdParser.Parser().Parse(text.NewReader(source))
	e := &emitter{source: source}

	chunks, err := e.blocks(doc)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", nil
	}
	return strings.Join(chunks, "\n\n") + "\n", nil
}

type emitter struct {
	source []byte
}

func (e *emitter) blocks(parent gast.Node) ([]string, error) {
	var out []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		chunk, err := e.block(n)
		if err != nil {
			return nil, err
		}
		if chunk == "" {
			continue
		}
		out = append(out, chunk)
	}
	return out, nil
}

func (e *emitter) block(n gast.Node) (string, error) {
	switch n := n.(type) {
	case *gast.Heading:
		inline, err := e.inlineText(n, escapeText)
		if err != nil {
			return "", err
		}
		if n.Level == 1 {
			return "#title: " + inline, nil
		}
		return fmt.Sprintf("#h%d: %s", n.Level, inline), nil
	case *gast.ThematicBreak:
		return "#hr", nil
	case *gast.FencedCodeBlock:
		return codeBlock(string(n.Language(e.source)), e.blockLines(n)), nil
	case *gast.CodeBlock:
		return codeBlock("", e.blockLines(n)), nil
	case *gast.List:
		return e.list(n)
	case *east.Table:
		return e.table(n)
	case *gast.Blockquote:
		chunks, err := e.blocks(n)
		if err != nil {
			return "", err
		}
		return strings.Join(chunks, "\n\n"), nil
	case *gast.HTMLBlock:
		return "", nil
	}
	// Paragraphs and anything unrecognized flatten to inline content;
	// bare prose paragraphs at the top level wrap into #p on their own.
	return e.inlineText(n, escapeText)
}

func (e *emitter) list(n *gast.List) (string, error) {
	tag := "ul"
	if n.IsOrdered() {
		tag = "ol"
	}

	var b strings.Builder
	b.WriteString("[#" + tag + " :\n")
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		s, err := e.listItem(item)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("]")
	return b.String(), nil
}

func (e *emitter) listItem(item gast.Node) (string, error) {
	var inline []string
	var nested []string
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		if l, ok := c.(*gast.List); ok {
			s, err := e.list(l)
			if err != nil {
				return "", err
			}
			nested = append(nested, s)
			continue
		}
		s, err := e.inlineText(c, escapeText)
		if err != nil {
			return "", err
		}
		if s != "" {
			inline = append(inline, s)
		}
	}

	body := strings.Join(inline, " ")
	if len(nested) > 0 {
		body += "\n" + strings.Join(nested, "\n") + "\n"
	}
	return "[#* : " + body + "]", nil
}

func (e *emitter) table(n *east.Table) (string, error) {
	var rows []string
	for r := n.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			s, err := e.inlineText(c, escapeCell)
			if err != nil {
				return "", err
			}
			cells = append(cells, s)
		}
		rows = append(rows, "  "+strings.Join(cells, " | "))
	}
	return "#table:\n" + strings.Join(rows, "\n"), nil
}

func (e *emitter) inlineText(n gast.Node, escape func(string) string) (string, error) {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		s, err := e.inline(c, escape)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func (e *emitter) inline(n gast.Node, escape func(string) string) (string, error) {
	switch n := n.(type) {
	case *gast.Text:
		s := escape(string(n.Segment.Value(e.source)))
		if n.SoftLineBreak() || n.HardLineBreak() {
			s += " "
		}
		return s, nil
	case *gast.String:
		return escape(string(n.Value)), nil
	case *gast.CodeSpan:
		body, err := e.inlineText(n, escape)
		if err != nil {
			return "", err
		}
		return "[#code : " + body + "]", nil
	case *gast.Emphasis:
		body, err := e.inlineText(n, escape)
		if err != nil {
			return "", err
		}
		tag := "i"
		if n.Level >= 2 {
			tag = "b"
		}
		return "[#" + tag + " : " + body + "]", nil
	case *gast.Link:
		anchor, err := e.inlineText(n, escape)
		if err != nil {
			return "", err
		}
		dest := quoteString(string(n.Destination))
		if anchor == "" {
			return "[#url link=" + dest + "]", nil
		}
		return "[#url link=" + dest + " : " + anchor + "]", nil
	case *gast.AutoLink:
		u := string(n.URL(e.source))
		if n.AutoLinkType == gast.AutoLinkEmail && !strings.HasPrefix(u, "mailto:") {
			u = "mailto:" + u
		}
		return "[#url link=" + quoteString(u) + "]", nil
	case *gast.Image:
		alt, err := e.inlineText(n, escape)
		if err != nil {
			return "", err
		}
		dest := quoteString(string(n.Destination))
		if alt == "" {
			return "[#url link=" + dest + "]", nil
		}
		return "[#url link=" + dest + " : " + alt + "]", nil
	case *gast.RawHTML:
		return "", nil
	}
	return e.inlineText(n, escape)
}

// blockLines joins the source lines of a code block, without the final
// newline so the closing delimiter sits on its own line.
func (e *emitter) blockLines(n interface{ Lines() *text.Segments }) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(e.source))
	}
	return strings.TrimRight(b.String(), "\n")
}

func codeBlock(lang, content string) string {
	head := "#code"
	if lang != "" {
		if isIdentifier(lang) {
			head += " lang=" + lang
		} else {
			head += " lang=" + quoteString(lang)
		}
	}
	delim := rawDelimiter(content)
	return head + " " + delim + "\n" + content + "\n" + delim
}

// rawDelimiter picks a quote run longer than any inside content.
func rawDelimiter(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '"' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	n := longest + 1
	if n < 3 {
		n = 3
	}
	return strings.Repeat(`"`, n)
}

// escapeText backslash-escapes the characters the lexer treats as markup.
func escapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '#', '[', ']':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeCell additionally hides pipes from the table row splitter behind
// a hex escape.
func escapeCell(s string) string {
	return strings.ReplaceAll(escapeText(s), "|", `\x7C`)
}

// quoteString renders s as an interpolated string literal.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '[':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(".!$%&*+-/@^_~", r):
		default:
			return false
		}
	}
	return true
}
