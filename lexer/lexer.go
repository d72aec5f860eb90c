// Package lexer converts PicoDoc source text into a flat token stream.
//
// The scanner is modal: normal prose, interpreted strings, code-mode
// sections inside strings, and raw strings each have their own rules.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/picodoc-lang/picodoc/internal/diag"
	"github.com/picodoc-lang/picodoc/token"
)

// Error is a lexical error with its source position.
type Error struct {
	Message  string
	Pos      token.Position
	Filename string
	Source   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Pos.Line, e.Pos.Column, e.Message)
}

// Format renders the error with source context and a caret underline.
func (e *Error) Format() string {
	return diag.FormatAt(e.Filename, e.Source, e.Pos, e.Message)
}

type state int

const (
	stateNormal state = iota
	stateInterpString
	stateCodeMode
)

type stackEntry struct {
	state        state
	bracketDepth int
}

// Lexer tokenizes PicoDoc source text.
type Lexer struct {
	source   string
	filename string
	pos      int // byte offset
	line     int
	col      int // rune column, 1-based
	tokens   []token.Token

	state        state
	bracketDepth int
	stack        []stackEntry
}

// New returns a Lexer over source. The filename is used in error messages
// only.
func New(source, filename string) *Lexer {
	return &Lexer{source: source, filename: filename, pos: 0, line: 1, col: 1}
}

// Tokenize scans source and returns its tokens. Convenience wrapper around
// New and Lexer.Tokenize.
func Tokenize(source, filename string) ([]token.Token, error) {
	return New(source, filename).Tokenize()
}

// Tokenize scans the full source and returns the token list, ending with an
// EOF token. The first lexical error aborts the scan.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	for l.pos < len(l.source) {
		var err error
		switch l.state {
		case stateNormal:
			err = l.lexNormal()
		case stateInterpString:
			err = l.lexInterpString()
		case stateCodeMode:
			err = l.lexCodeMode()
		}
		if err != nil {
			return nil, err
		}
	}

	if l.state == stateInterpString {
		return nil, l.errorf(l.currentPos(), "unterminated interpreted string")
	}
	if l.state == stateCodeMode {
		return nil, l.errorf(l.currentPos(), "unterminated code mode in string")
	}

	l.emit(token.EOF, "", "", l.currentPos())
	return l.tokens, nil
}

// ------------------------------------------------------------------
// Position helpers
// ------------------------------------------------------------------

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// peek returns the rune at the current position, or 0 at end of input.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.source) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) emit(tt token.Type, value, raw string, start token.Position) {
	end := l.currentPos()
	l.tokens = append(l.tokens, token.Token{
		Type:  tt,
		Value: value,
		Raw:   raw,
		Span:  token.Span{Start: start, End: end},
	})
}

func (l *Lexer) errorf(pos token.Position, format string, args ...any) *Error {
	return &Error{
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
		Filename: l.filename,
		Source:   l.source,
	}
}

// ------------------------------------------------------------------
// State management
// ------------------------------------------------------------------

func (l *Lexer) pushState(s state, bracketDepth int) {
	l.stack = append(l.stack, stackEntry{l.state, l.bracketDepth})
	l.state = s
	l.bracketDepth = bracketDepth
}

func (l *Lexer) popState() {
	top := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	l.state = top.state
	l.bracketDepth = top.bracketDepth
}

// ------------------------------------------------------------------
// Normal mode
// ------------------------------------------------------------------

func (l *Lexer) lexNormal() error {
	ch := l.peek()

	switch ch {
	case 0:
		return l.errorf(l.currentPos(), "NUL character in source")
	case '#':
		start := l.currentPos()
		l.advance()
		l.emit(token.Hash, "#", "#", start)
		return nil
	case '[':
		start := l.currentPos()
		l.advance()
		l.emit(token.LBracket, "[", "[", start)
		return nil
	case ']':
		start := l.currentPos()
		l.advance()
		l.emit(token.RBracket, "]", "]", start)
		return nil
	case ':':
		start := l.currentPos()
		l.advance()
		l.emit(token.Colon, ":", ":", start)
		return nil
	case '=':
		start := l.currentPos()
		l.advance()
		l.emit(token.Equals, "=", "=", start)
		return nil
	case '?':
		start := l.currentPos()
		l.advance()
		l.emit(token.Question, "?", "?", start)
		return nil
	case '\\':
		return l.lexProseEscape()
	case '"':
		return l.lexStringOpen()
	case '\n':
		start := l.currentPos()
		l.advance()
		l.emit(token.Newline, "\n", "\n", start)
		return nil
	case '\r':
		start := l.currentPos()
		if l.pos+1 < len(l.source) && l.source[l.pos+1] == '\n' {
			l.advance()
			l.advance()
			l.emit(token.Newline, "\n", "\r\n", start)
			return nil
		}
		// Lone CR is kept as literal text.
		l.advance()
		l.emit(token.Text, "\r", "\r", start)
		return nil
	case ' ', '\t':
		l.lexWS()
		return nil
	}

	if token.IsIdentRune(ch) {
		l.lexIdentifier()
		return nil
	}

	l.lexText()
	return nil
}

func (l *Lexer) lexWS() {
	start := l.currentPos()
	var b strings.Builder
	for !l.atEnd() {
		ch := l.peek()
		if ch != ' ' && ch != '\t' {
			break
		}
		b.WriteRune(l.advance())
	}
	text := b.String()
	l.emit(token.WS, text, text, start)
}

func (l *Lexer) lexIdentifier() {
	start := l.currentPos()
	var b strings.Builder
	for !l.atEnd() && token.IsIdentRune(l.peek()) {
		b.WriteRune(l.advance())
	}
	text := b.String()
	l.emit(token.Identifier, text, text, start)
}

func (l *Lexer) lexText() {
	start := l.currentPos()
	var b strings.Builder
	for !l.atEnd() {
		ch := l.peek()
		if strings.ContainsRune("#[]\\:=?\"", ch) || ch == ' ' || ch == '\t' ||
			ch == '\n' || ch == '\r' || ch == 0 || token.IsIdentRune(ch) {
			break
		}
		b.WriteRune(l.advance())
	}
	if b.Len() > 0 {
		text := b.String()
		l.emit(token.Text, text, text, start)
	}
}

// ------------------------------------------------------------------
// Prose escapes
// ------------------------------------------------------------------

func (l *Lexer) lexProseEscape() error {
	start := l.currentPos()
	l.advance() // consume backslash

	if l.atEnd() {
		return l.errorf(start, "unexpected end of input after '\\'")
	}

	ch := l.peek()

	if strings.ContainsRune("\\#[]:=", ch) {
		l.advance()
		l.emit(token.Escape, string(ch), "\\"+string(ch), start)
		return nil
	}

	switch ch {
	case 'x':
		l.advance()
		value, raw, err := l.lexHexEscape(2, start)
		if err != nil {
			return err
		}
		l.emit(token.Escape, value, raw, start)
		return nil
	case 'U':
		l.advance()
		value, raw, err := l.lexHexEscape(8, start)
		if err != nil {
			return err
		}
		l.emit(token.Escape, value, raw, start)
		return nil
	}

	return l.errorf(start, "invalid escape sequence '\\%c'", ch)
}

// lexHexEscape reads count hex digits and returns the resolved character
// and the raw source text of the whole escape. Eight hex digits can exceed
// the rune range, so the codepoint accumulates in an int64.
func (l *Lexer) lexHexEscape(count int, start token.Position) (string, string, error) {
	prefix := l.source[start.Offset:l.pos] // "\x" or "\U"
	var codepoint int64
	var digits strings.Builder
	for i := 0; i < count; i++ {
		if l.atEnd() {
			return "", "", l.errorf(start, "incomplete escape: expected %d hex digits, got %d", count, i)
		}
		ch := l.peek()
		if !token.IsHexDigit(ch) {
			return "", "", l.errorf(start, "invalid hex digit '%c' in escape sequence", ch)
		}
		l.advance()
		digits.WriteRune(ch)
		codepoint = codepoint<<4 | int64(hexValue(ch))
	}
	if codepoint > 0x10FFFF {
		return "", "", l.errorf(start, "Unicode codepoint U+%s is out of range", digits.String())
	}
	return string(rune(codepoint)), prefix + digits.String(), nil
}

func hexValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}

// ------------------------------------------------------------------
// String opening: decides interpreted vs raw vs empty
// ------------------------------------------------------------------

func (l *Lexer) lexStringOpen() error {
	start := l.currentPos()
	quotes := 0
	for !l.atEnd() && l.peek() == '"' {
		l.advance()
		quotes++
	}

	switch quotes {
	case 1:
		l.emit(token.StringStart, `"`, `"`, start)
		l.pushState(stateInterpString, 0)
		return nil
	case 2:
		// Empty string: "" becomes STRING_START + STRING_END
		l.emit(token.StringStart, `"`, `"`, start)
		l.emit(token.StringEnd, `"`, `"`, start)
		return nil
	}

	// 3+ quotes open a raw string
	return l.lexRawString(quotes, start)
}

// ------------------------------------------------------------------
// Interpreted string mode
// ------------------------------------------------------------------

func (l *Lexer) lexInterpString() error {
	ch := l.peek()

	if ch == '"' {
		s := l.currentPos()
		l.advance()
		l.emit(token.StringEnd, `"`, `"`, s)
		l.popState()
		return nil
	}

	if ch == '\\' {
		return l.lexStringEscape()
	}

	textStart := l.currentPos()
	var b strings.Builder
	for !l.atEnd() {
		c := l.peek()
		if c == '"' || c == '\\' {
			break
		}
		b.WriteRune(l.advance())
	}
	if b.Len() > 0 {
		text := b.String()
		l.emit(token.StringText, text, text, textStart)
	}
	return nil
}

// ------------------------------------------------------------------
// String escapes
// ------------------------------------------------------------------

func (l *Lexer) lexStringEscape() error {
	start := l.currentPos()
	l.advance() // consume backslash

	if l.atEnd() {
		return l.errorf(start, "unexpected end of input in string escape")
	}

	ch := l.peek()

	// \[ enters code mode
	if ch == '[' {
		l.advance()
		l.emit(token.CodeOpen, `\[`, `\[`, start)
		l.pushState(stateCodeMode, 1)
		return nil
	}

	switch ch {
	case '\\':
		l.advance()
		l.emit(token.StringEscape, `\`, `\\`, start)
		return nil
	case '"':
		l.advance()
		l.emit(token.StringEscape, `"`, `\"`, start)
		return nil
	case 'n':
		l.advance()
		l.emit(token.StringEscape, "\n", `\n`, start)
		return nil
	case 't':
		l.advance()
		l.emit(token.StringEscape, "\t", `\t`, start)
		return nil
	case 'x':
		l.advance()
		value, raw, err := l.lexHexEscape(2, start)
		if err != nil {
			return err
		}
		l.emit(token.StringEscape, value, raw, start)
		return nil
	case 'U':
		l.advance()
		value, raw, err := l.lexHexEscape(8, start)
		if err != nil {
			return err
		}
		l.emit(token.StringEscape, value, raw, start)
		return nil
	}

	return l.errorf(start, "invalid string escape sequence '\\%c'", ch)
}

// ------------------------------------------------------------------
// Code mode (inside \[...] within an interpreted string)
// ------------------------------------------------------------------

func (l *Lexer) lexCodeMode() error {
	ch := l.peek()

	if ch == '[' {
		start := l.currentPos()
		l.advance()
		l.bracketDepth++
		l.emit(token.LBracket, "[", "[", start)
		return nil
	}

	if ch == ']' {
		start := l.currentPos()
		l.advance()
		l.bracketDepth--
		if l.bracketDepth == 0 {
			l.emit(token.CodeClose, "]", "]", start)
			l.popState()
		} else {
			l.emit(token.RBracket, "]", "]", start)
		}
		return nil
	}

	// Everything else dispatches like normal mode, including nested strings.
	return l.lexNormal()
}

// ------------------------------------------------------------------
// Raw strings
// ------------------------------------------------------------------

// lexRawString scans for a closing run of exactly delimiterCount quotes and
// emits a single RAW_STRING token with whitespace-stripped content.
func (l *Lexer) lexRawString(delimiterCount int, start token.Position) error {
	contentStart := l.pos

	for !l.atEnd() {
		if l.peek() != '"' {
			l.advance()
			continue
		}
		runStart := l.pos
		runCount := 0
		for !l.atEnd() && l.peek() == '"' {
			l.advance()
			runCount++
		}
		if runCount == delimiterCount {
			content := l.source[contentStart:runStart]
			stripped := stripStringWhitespace(content)
			raw := l.source[start.Offset:l.pos]
			l.emit(token.RawString, stripped, raw, start)
			return nil
		}
		// Shorter or longer quote runs become content; keep scanning.
	}

	return l.errorf(start, "unterminated raw string (expected %d closing quotes)", delimiterCount)
}
