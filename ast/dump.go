package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable tree listing of doc to w. It is the output
// behind the CLI's --debug flag.
func Dump(w io.Writer, doc *Document) {
	dumpDocument(w, doc, 0)
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func dumpDocument(w io.Writer, doc *Document, depth int) {
	fmt.Fprintf(w, "%sDocument\n", indent(depth))
	for _, child := range doc.Children {
		switch n := child.(type) {
		case *MacroCall:
			dumpMacro(w, n, depth+1)
		case *Paragraph:
			dumpParagraph(w, n, depth+1)
		}
	}
}

func dumpMacro(w io.Writer, node *MacroCall, depth int) {
	prefix := "#"
	if node.Bracketed {
		prefix = "[#...]"
	}
	fmt.Fprintf(w, "%sMacroCall %s%s\n", indent(depth), prefix, node.Name)
	for _, arg := range node.Args {
		fmt.Fprintf(w, "%sArg %s=%s\n", indent(depth+1), arg.Name, valueString(arg.Value))
	}
	if node.Body != nil {
		dumpBody(w, node.Body, depth+1)
	}
}

func valueString(value Value) string {
	switch v := value.(type) {
	case *Text:
		return fmt.Sprintf("Text(%q)", v.Value)
	case *RawString:
		return fmt.Sprintf("RawString(%q)", v.Value)
	case *InterpString:
		var b strings.Builder
		b.WriteString("InterpString(")
		for _, part := range v.Parts {
			switch p := part.(type) {
			case *Text:
				fmt.Fprintf(&b, "Text(%q)", p.Value)
			case *CodeSection:
				b.WriteString("Code[...]")
			}
		}
		b.WriteString(")")
		return b.String()
	case *MacroCall:
		return fmt.Sprintf("MacroCall(#%s)", v.Name)
	case *RequiredMarker:
		return "?"
	}
	return ""
}

func dumpBody(w io.Writer, body BodyContent, depth int) {
	switch b := body.(type) {
	case *Body:
		fmt.Fprintf(w, "%sBody\n", indent(depth))
		for _, child := range b.Children {
			dumpChild(w, child, depth+1)
		}
	case *InterpString:
		fmt.Fprintf(w, "%sInterpString\n", indent(depth))
		for _, part := range b.Parts {
			switch p := part.(type) {
			case *Text:
				fmt.Fprintf(w, "%sText(%q)\n", indent(depth+1), p.Value)
			case *CodeSection:
				fmt.Fprintf(w, "%sCodeSection\n", indent(depth+1))
				for _, child := range p.Children {
					dumpChild(w, child, depth+2)
				}
			}
		}
	case *RawString:
		fmt.Fprintf(w, "%sRawString(%q)\n", indent(depth), b.Value)
	}
}

func dumpChild(w io.Writer, child Inline, depth int) {
	switch n := child.(type) {
	case *Text:
		fmt.Fprintf(w, "%sText(%q)\n", indent(depth), n.Value)
	case *Escape:
		fmt.Fprintf(w, "%sEscape(%q)\n", indent(depth), n.Value)
	case *MacroCall:
		dumpMacro(w, n, depth)
	}
}

func dumpParagraph(w io.Writer, para *Paragraph, depth int) {
	fmt.Fprintf(w, "%sParagraph\n", indent(depth))
	for _, child := range para.Children {
		dumpChild(w, child, depth+1)
	}
}
