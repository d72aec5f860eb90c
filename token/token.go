// Package token defines the lexical tokens of the PicoDoc markup language
// and the source positions shared by every stage of the compiler.
package token

import "unicode"

// Type identifies the kind of a lexed token.
type Type int

const (
	// Structural (single-character)
	Hash     Type = iota // #
	LBracket             // [
	RBracket             // ]
	Colon                // :
	Equals               // =
	Question             // ?

	// Content
	Identifier // ident_char+ (letters, digits, ., !$%&*+-/@^_~)
	Text       // runs of non-ident, non-special characters
	Escape     // prose escape, Value is the resolved character

	// Interpreted string sub-tokens
	StringStart  // opening "
	StringEnd    // closing "
	StringText   // literal text segment within a string
	StringEscape // string escape, Value is the resolved character
	CodeOpen     // \[ entering code mode
	CodeClose    // ] leaving code mode (bracket depth hits 0)

	// Raw string (single token, content after whitespace stripping)
	RawString

	// Whitespace
	WS      // horizontal whitespace (spaces and tabs)
	Newline // \n or \r\n

	EOF
)

var typeNames = map[Type]string{
	Hash:         "HASH",
	LBracket:     "LBRACKET",
	RBracket:     "RBRACKET",
	Colon:        "COLON",
	Equals:       "EQUALS",
	Question:     "QUESTION",
	Identifier:   "IDENTIFIER",
	Text:         "TEXT",
	Escape:       "ESCAPE",
	StringStart:  "STRING_START",
	StringEnd:    "STRING_END",
	StringText:   "STRING_TEXT",
	StringEscape: "STRING_ESCAPE",
	CodeOpen:     "CODE_OPEN",
	CodeClose:    "CODE_CLOSE",
	RawString:    "RAW_STRING",
	WS:           "WS",
	Newline:      "NEWLINE",
	EOF:          "EOF",
}

// String returns the token type's name for diagnostics and debug output.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Position is a source location. Line and Column are 1-based; Offset is the
// 0-based byte offset into the source.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Span is a source range from Start to End.
type Span struct {
	Start Position
	End   Position
}

// Token is a single lexed token with its resolved value and original source
// text. Value and Raw differ for escapes and strings, where Value holds the
// decoded content.
type Token struct {
	Type  Type
	Value string
	Raw   string
	Span  Span
}

// Identifier special characters beyond letters, digits, and dots.
const identSpecial = "!$%&*+-/@^_~"

// IsIdentRune reports whether r may appear in a macro or argument name.
func IsIdentRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
		return true
	}
	for _, s := range identSpecial {
		if r == s {
			return true
		}
	}
	return false
}

// IsHexDigit reports whether r is a hexadecimal digit.
func IsHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}
