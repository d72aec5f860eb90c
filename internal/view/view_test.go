package view

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/picodoc-lang/picodoc/eval"
	"github.com/picodoc-lang/picodoc/token"
)

func newTestPrinter() (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewPrinter(true)
	p.SetWriter(&buf)
	return p, &buf
}

func TestPrinter_Diagnostic(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		p, buf := newTestPrinter()

		p.Diagnostic(errors.New("file vanished"))

		assert.Equal(t, "error: file vanished\n", buf.String())
	})

	t.Run("error with source context", func(t *testing.T) {
		p, buf := newTestPrinter()

		source := "#p: #broken here\n"
		p.Diagnostic(&eval.Error{
			Kind:     eval.UndefinedMacro,
			Message:  "undefined macro: broken",
			Span:     token.Span{Start: token.Position{Line: 1, Column: 5}, End: token.Position{Line: 1, Column: 12}},
			Filename: "doc.pdoc",
			Source:   source,
		})

		output := buf.String()
		assert.Contains(t, output, "error: undefined macro: broken")
		assert.Contains(t, output, "doc.pdoc:1:5")
		assert.Contains(t, output, "#p: #broken here")
		assert.Contains(t, output, "^")
	})

	t.Run("error list renders every entry", func(t *testing.T) {
		p, buf := newTestPrinter()

		p.Diagnostic(eval.ErrorList{
			{Kind: eval.UndefinedMacro, Message: "undefined macro: a"},
			{Kind: eval.UndefinedMacro, Message: "undefined macro: b"},
		})

		output := buf.String()
		assert.Contains(t, output, "undefined macro: a")
		assert.Contains(t, output, "undefined macro: b")
	})
}

func TestPrinter_Success(t *testing.T) {
	p, buf := newTestPrinter()

	p.Success("Compiled doc.pdoc")

	output := buf.String()
	assert.Contains(t, output, "✓")
	assert.Contains(t, output, "Compiled doc.pdoc")
}

func TestPrinter_Info(t *testing.T) {
	p, buf := newTestPrinter()

	p.Info("Watching doc.pdoc for changes...")
	p.Infof("Wrote %s", "out.html")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Watching doc.pdoc for changes...", lines[0])
	assert.Equal(t, "Wrote out.html", lines[1])
}
