// Package view provides terminal output for picodoc commands.
package view

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Printer writes status lines and compiler diagnostics, normally to stderr
// so compiled output on stdout stays clean.
type Printer struct {
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a printer. Color codes are suppressed when noColor is
// set or the NO_COLOR convention applies.
func NewPrinter(noColor bool) *Printer {
	if noColor {
		color.NoColor = true
	}
	return &Printer{
		writer:  os.Stderr,
		noColor: noColor,
	}
}

// SetWriter sets the output writer.
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// Diagnostic prints a compiler error. Errors that carry source context
// render with their caret excerpt; the error: heads are colored.
func (p *Printer) Diagnostic(err error) {
	var out string
	if f, ok := err.(interface{ Format() string }); ok {
		out = f.Format()
	} else {
		out = "error: " + err.Error()
	}

	red := color.New(color.FgRed, color.Bold)
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "error:"); ok {
			red.Fprint(p.writer, "error:")
			fmt.Fprintln(p.writer, rest)
			continue
		}
		fmt.Fprintln(p.writer, line)
	}
}

// Success prints a success message.
func (p *Printer) Success(msg string) {
	green := color.New(color.FgGreen)
	green.Fprintln(p.writer, "✓ "+msg)
}

// Info prints a plain status message.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.writer, msg)
}

// Infof prints a formatted status message.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintf(p.writer, format+"\n", args...)
}
