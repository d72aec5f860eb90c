// Package parser builds a PicoDoc AST from a token stream.
package parser

import (
	"fmt"
	"strings"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/internal/diag"
	"github.com/picodoc-lang/picodoc/lexer"
	"github.com/picodoc-lang/picodoc/token"
)

// Error is a syntax error covering a source span.
type Error struct {
	Message  string
	Span     token.Span
	Filename string
	Source   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s",
		e.Filename, e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

// Format renders the error with source context and a caret underline.
func (e *Error) Format() string {
	return diag.Format(e.Filename, e.Source, e.Span, e.Message)
}

// tokenSet is a small set of token types keyed by bit position.
type tokenSet uint32

func setOf(types ...token.Type) tokenSet {
	var s tokenSet
	for _, tt := range types {
		s |= 1 << uint(tt)
	}
	return s
}

func (s tokenSet) has(tt token.Type) bool {
	return s&(1<<uint(tt)) != 0
}

var (
	stopNewlineEOF         = setOf(token.Newline, token.EOF)
	stopNewlineRBracketEOF = setOf(token.Newline, token.RBracket, token.EOF)
	stopRBracketEOF        = setOf(token.RBracket, token.EOF)
	stopCodeCloseEOF       = setOf(token.CodeClose, token.EOF)

	// Token types that join into plain text in inline content.
	textTokens = setOf(token.Identifier, token.Text, token.WS,
		token.Colon, token.Equals, token.Question)
)

// Parser is a recursive descent parser over a PicoDoc token stream.
type Parser struct {
	tokens   []token.Token
	source   string
	filename string
	pos      int
	// bracketDepth tracks enclosing bracketed calls; it widens the stop
	// set for unbracketed colon bodies.
	bracketDepth int
}

// New returns a Parser over tokens. The source text is retained for error
// formatting.
func New(tokens []token.Token, source, filename string) *Parser {
	return &Parser{tokens: tokens, source: source, filename: filename}
}

// Parse tokenizes and parses source into a Document.
func Parse(source, filename string) (*ast.Document, error) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		return nil, err
	}
	return New(tokens, source, filename).Parse()
}

// ------------------------------------------------------------------
// Navigation
// ------------------------------------------------------------------

func (p *Parser) peek() token.Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.pos + offset
	if idx < len(p.tokens) {
		return p.tokens[idx]
	}
	return p.tokens[len(p.tokens)-1] // EOF
}

func (p *Parser) at(types ...token.Type) bool {
	tt := p.peek().Type
	for _, want := range types {
		if tt == want {
			return true
		}
	}
	return false
}

func (p *Parser) atEOF() bool {
	return p.peek().Type == token.EOF
}

// advance consumes and returns the current token. It never moves past EOF.
func (p *Parser) advance() token.Token {
	tok := p.tokens[p.pos]
	if tok.Type != token.EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt token.Type, message string) (token.Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return token.Token{}, p.errorAt(message, tok.Span)
	}
	return p.advance(), nil
}

func (p *Parser) skipWS() {
	if p.at(token.WS) {
		p.advance()
	}
}

// prevEnd is the end position of the previously consumed token.
func (p *Parser) prevEnd() token.Position {
	if p.pos > 0 {
		return p.tokens[p.pos-1].Span.End
	}
	return p.tokens[0].Span.Start
}

func (p *Parser) unbrBodyStop() tokenSet {
	if p.bracketDepth > 0 {
		return stopNewlineRBracketEOF
	}
	return stopNewlineEOF
}

func (p *Parser) errorAt(message string, span token.Span) error {
	return &Error{Message: message, Span: span, Filename: p.filename, Source: p.source}
}

// ------------------------------------------------------------------
// Document level
// ------------------------------------------------------------------

// Parse consumes the whole token stream and returns the Document.
func (p *Parser) Parse() (*ast.Document, error) {
	var children []ast.Block
	start := p.peek().Span.Start

	for !p.atEOF() {
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if block != nil {
			children = append(children, block)
		}
	}

	end := p.peek().Span.End
	return &ast.Document{Children: children, Loc: token.Span{Start: start, End: end}}, nil
}

func (p *Parser) parseBlock() (ast.Block, error) {
	for !p.atEOF() && p.isBlankLine() {
		p.skipBlankLine()
	}

	if p.atEOF() {
		return nil, nil
	}

	if p.atBlockStart() {
		return p.parseMacroBlock()
	}

	return p.parseParagraph()
}

func (p *Parser) parseMacroBlock() (*ast.MacroCall, error) {
	var call *ast.MacroCall
	var err error
	if p.at(token.LBracket) {
		call, err = p.parseBracketedCall()
	} else {
		call, err = p.parseUnbracketedCall()
	}
	if err != nil {
		return nil, err
	}

	p.skipWS()

	if !p.at(token.Newline, token.EOF) {
		return nil, p.errorAt("unexpected text after macro call", p.peek().Span)
	}
	if p.at(token.Newline) {
		p.advance()
	}

	return call, nil
}

func (p *Parser) parseParagraph() (*ast.Paragraph, error) {
	var children []ast.Inline
	start := p.peek().Span.Start

	for !p.atEOF() && !p.isBlankLine() && !p.atBlockStart() {
		line, err := p.parseInlineContent(stopNewlineEOF)
		if err != nil {
			return nil, err
		}
		children = append(children, line...)

		if p.at(token.Newline) {
			nl := p.advance()
			// The paragraph continues across single newlines.
			if !p.atEOF() && !p.isBlankLine() && !p.atBlockStart() {
				children = append(children, &ast.Text{Value: "\n", Loc: nl.Span})
			}
		}
	}

	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span().End
	}
	return &ast.Paragraph{Children: children, Loc: token.Span{Start: start, End: end}}, nil
}

// ------------------------------------------------------------------
// Macro calls
// ------------------------------------------------------------------

func (p *Parser) parseUnbracketedCall() (*ast.MacroCall, error) {
	start := p.peek().Span.Start
	p.advance() // consume hash

	nameTok, err := p.expect(token.Identifier, "expected macro name after '#'")
	if err != nil {
		return nil, err
	}

	var args []*ast.NamedArg
	var body ast.BodyContent

	switch {
	case p.at(token.StringStart, token.RawString):
		body, err = p.parseStringBody()
	case p.at(token.Colon):
		body, err = p.parseColonUnbrBody()
	case p.at(token.WS):
		savedPos := p.pos
		p.advance() // consume WS

		switch {
		case p.isNamedArgStart():
			args, err = p.parseNamedArgs()
			if err == nil {
				// The arg loop consumed any trailing WS; a body may follow.
				if p.at(token.Colon) {
					body, err = p.parseColonUnbrBody()
				} else if p.at(token.StringStart, token.RawString) {
					body, err = p.parseStringBody()
				}
			}
		case p.at(token.Colon):
			body, err = p.parseColonUnbrBody()
		case p.at(token.StringStart, token.RawString):
			body, err = p.parseStringBody()
		default:
			// Nothing useful after the whitespace; rewind.
			p.pos = savedPos
		}
	}
	if err != nil {
		return nil, err
	}

	end := p.prevEnd()
	return &ast.MacroCall{
		Name: nameTok.Value,
		Args: args,
		Body: body,
		Loc:  token.Span{Start: start, End: end},
	}, nil
}

func (p *Parser) parseBracketedCall() (*ast.MacroCall, error) {
	start := p.peek().Span.Start
	p.advance() // consume lbracket
	if _, err := p.expect(token.Hash, "expected '#' after '['"); err != nil {
		return nil, err
	}

	nameTok, err := p.expect(token.Identifier, "expected macro name after '#'")
	if err != nil {
		return nil, err
	}

	p.bracketDepth++

	var args []*ast.NamedArg
	var body ast.BodyContent

	switch {
	case p.at(token.StringStart, token.RawString):
		body, err = p.parseStringBody()
	case p.at(token.Colon):
		body, err = p.parseColonBracketBody()
	case p.at(token.WS):
		p.advance() // consume WS

		switch {
		case p.isNamedArgStart():
			args, err = p.parseNamedArgs()
			if err == nil {
				if p.at(token.Colon) {
					body, err = p.parseColonBracketBody()
				} else if p.at(token.StringStart, token.RawString) {
					body, err = p.parseStringBody()
				}
			}
		case p.at(token.Colon):
			body, err = p.parseColonBracketBody()
		case p.at(token.StringStart, token.RawString):
			body, err = p.parseStringBody()
		default:
			if !p.at(token.RBracket) {
				err = p.errorAt("expected argument, ':' body, string body, or ']'", p.peek().Span)
			}
		}
	}

	p.bracketDepth--
	if err != nil {
		return nil, err
	}

	endTok, err := p.expect(token.RBracket, "expected closing ']'")
	if err != nil {
		return nil, err
	}
	return &ast.MacroCall{
		Name:      nameTok.Value,
		Args:      args,
		Body:      body,
		Bracketed: true,
		Loc:       token.Span{Start: start, End: endTok.Span.End},
	}, nil
}

// checkNested rejects definition calls anywhere below the document level.
// Definitions parsed at block level never pass through here.
func (p *Parser) checkNested(call *ast.MacroCall) error {
	if call.Name == "set" {
		return p.errorAt("definition not allowed inside a macro body", call.Loc)
	}
	return nil
}

// ------------------------------------------------------------------
// Arguments
// ------------------------------------------------------------------

func (p *Parser) isNamedArgStart() bool {
	return p.at(token.Identifier) && p.peekAt(1).Type == token.Equals
}

func (p *Parser) parseNamedArgs() ([]*ast.NamedArg, error) {
	arg, err := p.parseNamedArg()
	if err != nil {
		return nil, err
	}
	args := []*ast.NamedArg{arg}
	for p.at(token.WS) {
		p.advance() // consume WS
		if !p.isNamedArgStart() {
			break
		}
		arg, err = p.parseNamedArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func (p *Parser) parseNamedArg() (*ast.NamedArg, error) {
	nameTok, err := p.expect(token.Identifier, "expected argument name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Equals, "expected '=' after argument name"); err != nil {
		return nil, err
	}
	p.skipWS()
	value, err := p.parseArgValue()
	if err != nil {
		return nil, err
	}
	return &ast.NamedArg{
		Name:    nameTok.Value,
		Value:   value,
		NameLoc: nameTok.Span,
		Loc:     token.Span{Start: nameTok.Span.Start, End: value.Span().End},
	}, nil
}

func (p *Parser) parseArgValue() (ast.Value, error) {
	switch {
	case p.at(token.StringStart):
		return p.parseInterpString()
	case p.at(token.RawString):
		return p.parseRawString()
	case p.at(token.LBracket) && p.peekAt(1).Type == token.Hash:
		call, err := p.parseBracketedCall()
		if err != nil {
			return nil, err
		}
		if err := p.checkNested(call); err != nil {
			return nil, err
		}
		return call, nil
	case p.at(token.Hash):
		return p.parseMacroRef()
	case p.at(token.Question):
		tok := p.advance()
		return &ast.RequiredMarker{Loc: tok.Span}, nil
	}
	return p.parseBareword()
}

func (p *Parser) parseBareword() (*ast.Text, error) {
	if !p.at(token.Identifier, token.Text) {
		return nil, p.errorAt("expected argument value", p.peek().Span)
	}
	start := p.peek().Span.Start
	var b strings.Builder
	for p.at(token.Identifier, token.Text) {
		b.WriteString(p.advance().Value)
	}
	return &ast.Text{
		Value: b.String(),
		Loc:   token.Span{Start: start, End: p.prevEnd()},
	}, nil
}

func (p *Parser) parseMacroRef() (*ast.MacroCall, error) {
	start := p.peek().Span.Start
	p.advance() // consume hash
	nameTok, err := p.expect(token.Identifier, "expected macro name after '#'")
	if err != nil {
		return nil, err
	}
	call := &ast.MacroCall{
		Name: nameTok.Value,
		Loc:  token.Span{Start: start, End: nameTok.Span.End},
	}
	if err := p.checkNested(call); err != nil {
		return nil, err
	}
	return call, nil
}

// ------------------------------------------------------------------
// Bodies
// ------------------------------------------------------------------

func (p *Parser) parseColonUnbrBody() (ast.BodyContent, error) {
	p.advance() // consume colon
	p.skipWS()

	if p.at(token.StringStart) {
		return p.parseInterpString()
	}
	if p.at(token.RawString) {
		return p.parseRawString()
	}

	// A newline or EOF right after the colon opens a paragraph body.
	if p.at(token.Newline, token.EOF) {
		if p.at(token.Newline) {
			p.advance()
		}
		return p.parseBodyParagraph()
	}

	start := p.peek().Span.Start
	children, err := p.parseInlineContent(p.unbrBodyStop())
	if err != nil {
		return nil, err
	}
	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span().End
	}
	return &ast.Body{Children: children, Loc: token.Span{Start: start, End: end}}, nil
}

func (p *Parser) parseColonBracketBody() (ast.BodyContent, error) {
	p.advance() // consume colon
	p.skipWS()

	if p.at(token.StringStart) {
		return p.parseInterpString()
	}
	if p.at(token.RawString) {
		return p.parseRawString()
	}

	start := p.peek().Span.Start
	children, err := p.parseInlineContent(stopRBracketEOF)
	if err != nil {
		return nil, err
	}
	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span().End
	}
	return &ast.Body{Children: children, Loc: token.Span{Start: start, End: end}}, nil
}

func (p *Parser) parseStringBody() (ast.BodyContent, error) {
	if p.at(token.StringStart) {
		return p.parseInterpString()
	}
	if p.at(token.RawString) {
		return p.parseRawString()
	}
	return nil, p.errorAt("expected string literal", p.peek().Span)
}

func (p *Parser) parseBodyParagraph() (*ast.Body, error) {
	var children []ast.Inline
	start := p.peek().Span.Start

	for !p.atEOF() && !p.isBlankLine() {
		line, err := p.parseInlineContent(p.unbrBodyStop())
		if err != nil {
			return nil, err
		}
		children = append(children, line...)

		if !p.at(token.Newline) {
			// Stopped by a closing bracket or EOF.
			break
		}
		nl := p.advance()
		if !p.atEOF() && !p.isBlankLine() {
			children = append(children, &ast.Text{Value: "\n", Loc: nl.Span})
		}
	}

	children = coalesceText(children)
	end := start
	if len(children) > 0 {
		end = children[len(children)-1].Span().End
	}
	return &ast.Body{Children: children, Loc: token.Span{Start: start, End: end}}, nil
}

// ------------------------------------------------------------------
// Inline content
// ------------------------------------------------------------------

// textRun accumulates adjacent text-like tokens into one Text node.
type textRun struct {
	b     strings.Builder
	start token.Position
	end   token.Position
	open  bool
}

func (r *textRun) add(value string, span token.Span) {
	if !r.open {
		r.start = span.Start
		r.open = true
	}
	r.b.WriteString(value)
	r.end = span.End
}

func (r *textRun) flush(out []ast.Inline) []ast.Inline {
	if !r.open {
		return out
	}
	node := &ast.Text{Value: r.b.String(), Loc: token.Span{Start: r.start, End: r.end}}
	r.b.Reset()
	r.open = false
	return append(out, node)
}

func (p *Parser) parseInlineContent(stop tokenSet) ([]ast.Inline, error) {
	var result []ast.Inline
	var run textRun

	for !p.atEOF() {
		tok := p.peek()

		if stop.has(tok.Type) {
			break
		}

		switch {
		case tok.Type == token.Hash:
			result = run.flush(result)
			call, err := p.parseUnbracketedCall()
			if err != nil {
				return nil, err
			}
			if err := p.checkNested(call); err != nil {
				return nil, err
			}
			result = append(result, call)

		case tok.Type == token.LBracket && p.peekAt(1).Type == token.Hash:
			result = run.flush(result)
			call, err := p.parseBracketedCall()
			if err != nil {
				return nil, err
			}
			if err := p.checkNested(call); err != nil {
				return nil, err
			}
			result = append(result, call)

		case tok.Type == token.LBracket:
			return nil, p.errorAt("bare '[' in text - use \\[ for a literal bracket", tok.Span)

		case tok.Type == token.RBracket:
			return nil, p.errorAt("bare ']' in text - use \\] for a literal bracket", tok.Span)

		case tok.Type == token.Escape:
			result = run.flush(result)
			t := p.advance()
			result = append(result, &ast.Escape{Value: t.Value, Loc: t.Span})

		case textTokens.has(tok.Type):
			run.add(tok.Value, tok.Span)
			p.advance()

		case tok.Type == token.Newline:
			// Inside bracketed bodies newlines are plain text.
			run.add("\n", tok.Span)
			p.advance()

		case tok.Type == token.StringStart:
			p.reconstructString(&run)

		case tok.Type == token.RawString:
			run.add(tok.Value, tok.Span)
			p.advance()

		default:
			result = run.flush(result)
			return result, nil
		}
	}

	result = run.flush(result)
	return result, nil
}

// reconstructString turns a string literal appearing in body context back
// into plain text, quotes included.
func (p *Parser) reconstructString(run *textRun) {
	tok := p.advance() // STRING_START
	run.add(`"`, tok.Span)

	for !p.at(token.StringEnd, token.EOF) {
		inner := p.peek()
		switch inner.Type {
		case token.StringText, token.StringEscape:
			run.add(inner.Value, inner.Span)
			p.advance()
		case token.CodeOpen:
			run.add(inner.Raw, inner.Span)
			p.advance()
			for !p.at(token.CodeClose, token.StringEnd, token.EOF) {
				ct := p.advance()
				run.add(ct.Raw, ct.Span)
			}
			if p.at(token.CodeClose) {
				ct := p.advance()
				run.add(ct.Raw, ct.Span)
			}
		default:
			return
		}
	}

	if p.at(token.StringEnd) {
		end := p.advance()
		run.add(`"`, end.Span)
	}
}

// ------------------------------------------------------------------
// Strings
// ------------------------------------------------------------------

func (p *Parser) parseInterpString() (*ast.InterpString, error) {
	startTok := p.advance() // consume STRING_START

	var parts []ast.StringPart
	var run textRun
	flush := func() {
		if run.open {
			parts = append(parts, &ast.Text{
				Value: run.b.String(),
				Loc:   token.Span{Start: run.start, End: run.end},
			})
			run.b.Reset()
			run.open = false
		}
	}

	for !p.at(token.StringEnd, token.EOF) {
		tok := p.peek()

		switch tok.Type {
		case token.StringText, token.StringEscape:
			run.add(tok.Value, tok.Span)
			p.advance()
		case token.CodeOpen:
			flush()
			section, err := p.parseCodeSection()
			if err != nil {
				return nil, err
			}
			parts = append(parts, section)
		default:
			return nil, p.errorAt("unexpected token in string", tok.Span)
		}
	}

	flush()

	endTok, err := p.expect(token.StringEnd, "expected closing '\"'")
	if err != nil {
		return nil, err
	}
	return &ast.InterpString{
		Parts: parts,
		Loc:   token.Span{Start: startTok.Span.Start, End: endTok.Span.End},
	}, nil
}

func (p *Parser) parseRawString() (*ast.RawString, error) {
	tok, err := p.expect(token.RawString, "expected raw string")
	if err != nil {
		return nil, err
	}
	return &ast.RawString{Value: tok.Value, Loc: tok.Span}, nil
}

func (p *Parser) parseCodeSection() (*ast.CodeSection, error) {
	start := p.peek().Span.Start
	p.advance() // consume CODE_OPEN

	children, err := p.parseInlineContent(stopCodeCloseEOF)
	if err != nil {
		return nil, err
	}

	endTok, err := p.expect(token.CodeClose, "expected closing ']' for code section")
	if err != nil {
		return nil, err
	}
	return &ast.CodeSection{
		Children: children,
		Loc:      token.Span{Start: start, End: endTok.Span.End},
	}, nil
}

// ------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------

func (p *Parser) isBlankLine() bool {
	if p.at(token.Newline) {
		return true
	}
	if p.at(token.WS) {
		next := p.peekAt(1).Type
		return next == token.Newline || next == token.EOF
	}
	return false
}

func (p *Parser) skipBlankLine() {
	if p.at(token.WS) {
		p.advance()
	}
	if p.at(token.Newline) {
		p.advance()
	}
}

// atBlockStart reports whether the current position opens a block-level
// macro call.
func (p *Parser) atBlockStart() bool {
	if p.at(token.Hash) {
		return true
	}
	return p.at(token.LBracket) && p.peekAt(1).Type == token.Hash
}

// coalesceText merges adjacent Text nodes.
func coalesceText(nodes []ast.Inline) []ast.Inline {
	if len(nodes) == 0 {
		return nodes
	}
	result := nodes[:0:0]
	for _, node := range nodes {
		text, ok := node.(*ast.Text)
		if !ok {
			result = append(result, node)
			continue
		}
		if len(result) > 0 {
			if prev, ok := result[len(result)-1].(*ast.Text); ok {
				result[len(result)-1] = &ast.Text{
					Value: prev.Value + text.Value,
					Loc:   token.Span{Start: prev.Loc.Start, End: text.Loc.End},
				}
				continue
			}
		}
		result = append(result, node)
	}
	return result
}
