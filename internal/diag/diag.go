// Package diag renders compiler diagnostics with source context: the error
// message, a file:line:column pointer, and the offending line with a caret
// underline.
package diag

import (
	"fmt"
	"strings"

	"github.com/picodoc-lang/picodoc/token"
)

// Format renders a diagnostic for a source span. The underline covers the
// span when it fits on one line, otherwise it runs to the end of the line.
func Format(filename, source string, span token.Span, message string) string {
	underline := 1
	line := sourceLine(source, span.Start.Line)
	if span.End.Line == span.Start.Line {
		underline = max(1, span.End.Column-span.Start.Column)
	} else {
		underline = max(1, len([]rune(line))-span.Start.Column+1)
	}
	return render(filename, line, span.Start, message, underline)
}

// FormatAt renders a diagnostic for a single position, underlining at most
// two characters.
func FormatAt(filename, source string, pos token.Position, message string) string {
	line := sourceLine(source, pos.Line)
	underline := max(1, min(2, len([]rune(line))-pos.Column+1))
	return render(filename, line, pos, message, underline)
}

func render(filename, line string, pos token.Position, message string, underline int) string {
	lineNum := fmt.Sprintf("%d", pos.Line)
	gutter := len(lineNum) + 1
	blankGutter := strings.Repeat(" ", gutter) + "|"

	var b strings.Builder
	fmt.Fprintf(&b, "error: %s\n", message)
	fmt.Fprintf(&b, "%s--> %s:%d:%d\n", strings.Repeat(" ", gutter), filename, pos.Line, pos.Column)
	fmt.Fprintf(&b, "%s\n", blankGutter)
	fmt.Fprintf(&b, "%s | %s\n", lineNum, line)
	fmt.Fprintf(&b, "%s %s%s", blankGutter, strings.Repeat(" ", pos.Column-1), strings.Repeat("^", underline))
	return b.String()
}

// sourceLine returns the 1-based line of source without its line ending.
func sourceLine(source string, line int) string {
	idx := line - 1
	if idx < 0 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if idx >= len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[idx], "\r")
}
