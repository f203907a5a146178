package lexer

import (
	"fmt"
	"strings"
)

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Number
	String
	Char
	Punct
	Directive
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of file"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	case String:
		return "string literal"
	case Char:
		return "character literal"
	case Punct:
		return "punctuation"
	case Directive:
		return "preprocessor directive"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Pos is a 1-based line/column position in a source buffer.
type Pos struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexical element of a C++ source buffer.
type Token struct {
	Kind Kind
	Text string
	Pos  Pos
	// Doc holds the doc comment (///, //!, /** */, /*! */) directly preceding the token.
	Doc string
	// Newline is set when the token is the first one on its line.
	Newline bool
}

// Is reports whether the token is punctuation or an identifier spelled s.
func (t Token) Is(s string) bool {
	return (t.Kind == Punct || t.Kind == Ident) && t.Text == s
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", t.Text)
}

// DirectiveName returns the name of a preprocessor directive token ("define", "include", ...).
func DirectiveName(text string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	end := 0
	for end < len(s) && isIdentByte(s[end]) {
		end++
	}
	return s[:end]
}

// DirectiveBody returns everything after the directive name.
func DirectiveBody(text string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	name := DirectiveName(text)
	return strings.TrimSpace(strings.TrimPrefix(s, name))
}

// Error is a lexical error such as an unterminated literal or an unbalanced bracket.
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}
