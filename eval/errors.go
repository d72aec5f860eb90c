package eval

import (
	"fmt"
	"strings"

	"github.com/picodoc-lang/picodoc/internal/diag"
	"github.com/picodoc-lang/picodoc/token"
)

// Kind classifies evaluation errors.
type Kind int

const (
	// DuplicateDefinition is a second top-level definition under a name
	// already in the registry.
	DuplicateDefinition Kind = iota
	// MissingRequiredArgument is a call omitting a required parameter with
	// no default.
	MissingRequiredArgument
	// UnknownArgument is a supplied argument not declared on the target.
	UnknownArgument
	// UndefinedMacro is a call still unresolved at convergence.
	UndefinedMacro
	// DepthExceeded is an expansion or include chain past its depth budget.
	DepthExceeded
	// FilterExecutionError is a filter process failing or producing
	// unparsable output.
	FilterExecutionError
	// FilterTimeout is a filter process exceeding its time budget.
	FilterTimeout
	// IncludeReadError is an unreadable include target.
	IncludeReadError
	// IncludeParseError is a syntax error inside an included file.
	IncludeParseError
	// IncludeCycle is a file including itself, directly or transitively.
	IncludeCycle
	// BadDefinition is a structurally invalid definition.
	BadDefinition
	// NestedDefinition is a definition arriving below the top level at
	// expansion time.
	NestedDefinition
	// FrozenEnvironment is a write to the environment after evaluation
	// has begun.
	FrozenEnvironment
)

var kindNames = map[Kind]string{
	DuplicateDefinition:     "DuplicateDefinition",
	MissingRequiredArgument: "MissingRequiredArgument",
	UnknownArgument:         "UnknownArgument",
	UndefinedMacro:          "UndefinedMacro",
	DepthExceeded:           "DepthExceeded",
	FilterExecutionError:    "FilterExecutionError",
	FilterTimeout:           "FilterTimeout",
	IncludeReadError:        "IncludeReadError",
	IncludeParseError:       "IncludeParseError",
	IncludeCycle:            "IncludeCycle",
	BadDefinition:           "BadDefinition",
	NestedDefinition:        "NestedDefinition",
	FrozenEnvironment:       "FrozenEnvironment",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is an evaluation error with source position and, for expansion
// failures, the macro call chain active at the point of failure.
type Error struct {
	Kind      Kind
	Message   string
	Span      token.Span
	Filename  string
	Source    string
	CallStack []string
	Inner     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s",
		e.Filename, e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

func (e *Error) Unwrap() error { return e.Inner }

// Format renders the error with source context, a caret underline, and the
// expansion chain when one is recorded. An inner error that can format
// itself (an included file's parse error) is appended below.
func (e *Error) Format() string {
	out := diag.Format(e.Filename, e.Source, e.Span, e.Message)
	if len(e.CallStack) > 0 {
		names := make([]string, len(e.CallStack))
		for i, name := range e.CallStack {
			names[i] = "#" + name
		}
		out += "\n  in expansion chain: " + strings.Join(names, " -> ")
	}
	if e.Inner != nil {
		if f, ok := e.Inner.(interface{ Format() string }); ok {
			out += "\n" + f.Format()
		}
	}
	return out
}

// ErrorList accumulates the unresolved-call errors found at convergence,
// in document order.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Format renders every error in the list.
func (l ErrorList) Format() string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = e.Format()
	}
	return strings.Join(parts, "\n\n")
}
