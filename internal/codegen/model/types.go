package model

import (
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
)

// RefKind is the reference qualifier of a type.
type RefKind int

const (
	RefNone RefKind = iota
	RefLValue
	RefRValue
)

// Passing describes how a parameter is handed to the native function.
type Passing string

const (
	ByValue     Passing = "value"
	ByReference Passing = "reference"
	ByPointer   Passing = "pointer"
)

// Pointer is one level of indirection; Const marks a const pointer ("T* const").
type Pointer struct {
	Const bool `json:"const,omitempty" yaml:"const,omitempty"`
}

// Type is a parsed C++ type spelling.
type Type struct {
	Name     string    `json:"name" yaml:"name"`                             // "int", "unsigned long long", "std::vector", "geo::Shape"
	Args     []Type    `json:"args,omitempty" yaml:"args,omitempty"`         // template arguments
	Const    bool      `json:"const,omitempty" yaml:"const,omitempty"`       // const on the base type
	Pointers []Pointer `json:"pointers,omitempty" yaml:"pointers,omitempty"` // indirection levels, innermost first
	Ref      RefKind   `json:"ref,omitempty" yaml:"ref,omitempty"`
	Literal  bool      `json:"literal,omitempty" yaml:"literal,omitempty"` // non-type template argument, Name holds the expression
}

// String returns the normalized spelling used for override lookups and signatures.
func (t Type) String() string {
	if t.Literal {
		return t.Name
	}
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	b.WriteString(t.Name)
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	for _, p := range t.Pointers {
		b.WriteByte('*')
		if p.Const {
			b.WriteString(" const")
		}
	}
	switch t.Ref {
	case RefLValue:
		b.WriteByte('&')
	case RefRValue:
		b.WriteString("&&")
	}
	return b.String()
}

// IsZero reports whether the type was never set.
func (t Type) IsZero() bool { return t.Name == "" }

// IsVoid reports whether the type is plain void.
func (t Type) IsVoid() bool { return t.Name == "void" && len(t.Pointers) == 0 }

// IsPointer reports whether the type has at least one level of indirection.
func (t Type) IsPointer() bool { return len(t.Pointers) > 0 }

// Passing reports the parameter passing convention implied by the type.
func (t Type) Passing() Passing {
	switch {
	case t.Ref != RefNone:
		return ByReference
	case len(t.Pointers) > 0:
		return ByPointer
	default:
		return ByValue
	}
}

// Decay drops the reference qualifier and the top-level const.
func (t Type) Decay() Type {
	d := t.clone()
	d.Ref = RefNone
	if len(d.Pointers) > 0 {
		d.Pointers[len(d.Pointers)-1].Const = false
	} else {
		d.Const = false
	}
	return d
}

// Pointee removes one level of indirection and any reference.
func (t Type) Pointee() Type {
	d := t.clone()
	d.Ref = RefNone
	if len(d.Pointers) > 0 {
		d.Pointers = d.Pointers[:len(d.Pointers)-1]
	}
	return d
}

// Bare returns the base name with template arguments, without qualifiers.
func (t Type) Bare() Type {
	return Type{Name: t.Name, Args: t.Args, Literal: t.Literal}
}

// Leaf returns the last component of the qualified base name.
func (t Type) Leaf() string {
	return LeafName(t.Name)
}

// LeafName returns the part of a qualified name after the last "::".
func LeafName(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

// Names calls fn for the base name of t and of every non-literal template argument.
func (t Type) Names(fn func(Type)) {
	if t.Literal {
		return
	}
	fn(t)
	for _, a := range t.Args {
		a.Names(fn)
	}
}

// Substitute replaces template parameters by the given types, keeping qualifiers of t.
func (t Type) Substitute(repl map[string]Type) Type {
	if t.Literal {
		return t
	}
	if r, ok := repl[t.Name]; ok && len(t.Args) == 0 {
		out := r.clone()
		out.Const = out.Const || t.Const
		out.Pointers = append(out.Pointers, t.Pointers...)
		if t.Ref != RefNone {
			out.Ref = t.Ref
		}
		return out
	}
	out := t.clone()
	for i, a := range out.Args {
		out.Args[i] = a.Substitute(repl)
	}
	return out
}

// Combine applies the qualifiers of use on top of an aliased type (typedef resolution).
func (t Type) Combine(use Type) Type {
	out := t.clone()
	out.Const = out.Const || use.Const
	if use.Const && len(out.Pointers) > 0 {
		out.Pointers[len(out.Pointers)-1].Const = true
		out.Const = t.Const
	}
	out.Pointers = append(out.Pointers, use.Pointers...)
	if use.Ref != RefNone {
		out.Ref = use.Ref
	}
	return out
}

func (t Type) clone() Type {
	out := t
	if t.Args != nil {
		out.Args = make([]Type, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = a.clone()
		}
	}
	if t.Pointers != nil {
		out.Pointers = append([]Pointer(nil), t.Pointers...)
	}
	return out
}

var builtinWords = map[string]bool{
	"signed": true, "unsigned": true, "short": true, "long": true, "int": true,
	"char": true, "double": true, "float": true, "bool": true, "void": true,
	"wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
	"auto": true, "__int128": true,
}

// IsBuiltinWord reports whether s participates in a fundamental type spelling.
func IsBuiltinWord(s string) bool { return builtinWords[s] }

var elaborated = map[string]bool{"struct": true, "class": true, "enum": true, "union": true, "typename": true}

// MustParseType parses s and panics on failure. Intended for tables and tests.
func MustParseType(s string) Type {
	t, err := ParseTypeString(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTypeString parses a complete type spelling such as "const std::vector<int>&".
func ParseTypeString(s string) (Type, error) {
	toks, err := lexer.Tokenize(s)
	if err != nil {
		return Type{}, err
	}
	t, next, err := ParseType(toks, 0)
	if err != nil {
		return Type{}, err
	}
	if toks[next].Kind != lexer.EOF {
		return Type{}, &ParseError{Pos: toks[next].Pos, Construct: "type", Msg: fmt.Sprintf("unexpected %s after type %q", toks[next], t)}
	}
	return t, nil
}

// ParseType parses a type starting at toks[i] and returns the index of the first token after it.
// The declarator name, if any, is left unconsumed.
func ParseType(toks []lexer.Token, i int) (Type, int, error) {
	var t Type
	at := func(k int) lexer.Token {
		if k < len(toks) {
			return toks[k]
		}
		return toks[len(toks)-1]
	}

	for {
		tok := at(i)
		if tok.Is("const") {
			t.Const = true
			i++
			continue
		}
		if tok.Is("volatile") || tok.Is("mutable") || tok.Is("register") {
			i++
			continue
		}
		break
	}

	if elaborated[at(i).Text] && at(i).Kind == lexer.Ident {
		i++
	}

	switch tok := at(i); {
	case tok.Kind == lexer.Ident && builtinWords[tok.Text]:
		var words []string
		for {
			tok = at(i)
			if tok.Kind == lexer.Ident && builtinWords[tok.Text] {
				words = append(words, tok.Text)
				i++
				continue
			}
			if tok.Is("const") {
				t.Const = true
				i++
				continue
			}
			if tok.Is("volatile") {
				i++
				continue
			}
			break
		}
		t.Name = canonicalBuiltin(words)
	case tok.Is("decltype"):
		end, err := skipParens(toks, i+1)
		if err != nil {
			return Type{}, i, err
		}
		t.Name = joinTokens(toks[i:end])
		i = end
	case tok.Kind == lexer.Ident || tok.Is("::"):
		name, args, next, err := parseQualifiedName(toks, i)
		if err != nil {
			return Type{}, i, err
		}
		t.Name, t.Args, i = name, args, next
	default:
		return Type{}, i, &ParseError{Pos: tok.Pos, Construct: "type", Msg: fmt.Sprintf("expected type, found %s", tok)}
	}

	for {
		tok := at(i)
		switch {
		case tok.Is("const"):
			if len(t.Pointers) > 0 {
				t.Pointers[len(t.Pointers)-1].Const = true
			} else {
				t.Const = true
			}
			i++
		case tok.Is("volatile") || tok.Is("__restrict") || tok.Is("__restrict__") || tok.Is("restrict"):
			i++
		case tok.Is("*") && t.Ref == RefNone:
			t.Pointers = append(t.Pointers, Pointer{})
			i++
		case tok.Is("&") && t.Ref == RefNone:
			t.Ref = RefLValue
			i++
		case tok.Is("&&") && t.Ref == RefNone:
			t.Ref = RefRValue
			i++
		default:
			return t, i, nil
		}
	}
}

// parseQualifiedName parses "a::b<c>::d<e, f>". Template arguments of the last component are
// returned separately; arguments of inner components stay in the name text.
func parseQualifiedName(toks []lexer.Token, i int) (string, []Type, int, error) {
	var parts []string
	var args []Type
	if toks[i].Is("::") {
		i++
	}
	for {
		tok := toks[i]
		if tok.Is("template") {
			i++
			tok = toks[i]
		}
		if tok.Kind != lexer.Ident {
			return "", nil, i, &ParseError{Pos: tok.Pos, Construct: "type", Msg: fmt.Sprintf("expected name, found %s", tok)}
		}
		part := tok.Text
		i++
		args = nil
		if toks[i].Is("<") {
			var err error
			args, i, err = parseTemplateArgs(toks, i)
			if err != nil {
				return "", nil, i, err
			}
		}
		if toks[i].Is("::") && toks[i+1].Kind == lexer.Ident {
			if len(args) > 0 {
				part += "<" + joinTypes(args) + ">"
			}
			parts = append(parts, part)
			i++
			continue
		}
		parts = append(parts, part)
		return strings.Join(parts, "::"), args, i, nil
	}
}

func parseTemplateArgs(toks []lexer.Token, i int) ([]Type, int, error) {
	open := toks[i]
	i++
	var args []Type
	if toks[i].Is(">") {
		return []Type{}, i + 1, nil
	}
	for {
		start := i
		t, next, err := ParseType(toks, i)
		if err == nil && (toks[next].Is(",") || toks[next].Is(">")) {
			args = append(args, t)
			i = next
		} else {
			end, lerr := skipTemplateLiteral(toks, start)
			if lerr != nil {
				return nil, i, lerr
			}
			args = append(args, Type{Name: joinTokens(toks[start:end]), Literal: true})
			i = end
		}
		switch tok := toks[i]; {
		case tok.Is(","):
			i++
		case tok.Is(">"):
			return args, i + 1, nil
		default:
			return nil, i, &ParseError{Pos: open.Pos, Construct: "template arguments", Msg: "unterminated template argument list"}
		}
	}
}

// skipTemplateLiteral skips a constant expression inside a template argument list.
func skipTemplateLiteral(toks []lexer.Token, i int) (int, error) {
	depth := 0
	start := i
	for {
		tok := toks[i]
		switch {
		case tok.Kind == lexer.EOF || tok.Is(";") || tok.Is("{") || tok.Is("}"):
			return i, &ParseError{Pos: toks[start].Pos, Construct: "template arguments", Msg: "unterminated template argument"}
		case tok.Is("(") || tok.Is("["):
			depth++
		case tok.Is(")") || tok.Is("]"):
			depth--
		case depth == 0 && (tok.Is(",") || tok.Is(">")):
			if i == start {
				return i, &ParseError{Pos: tok.Pos, Construct: "template arguments", Msg: "empty template argument"}
			}
			return i, nil
		}
		i++
	}
}

func skipParens(toks []lexer.Token, i int) (int, error) {
	if !toks[i].Is("(") {
		return i, &ParseError{Pos: toks[i].Pos, Construct: "type", Msg: "expected '('"}
	}
	depth := 0
	for ; toks[i].Kind != lexer.EOF; i++ {
		switch {
		case toks[i].Is("("):
			depth++
		case toks[i].Is(")"):
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return i, &ParseError{Pos: toks[i].Pos, Construct: "type", Msg: "unbalanced parentheses"}
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// joinTokens rebuilds source text from tokens, inserting a space only between words.
func joinTokens(toks []lexer.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && wordLike(toks[i-1]) && wordLike(t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// JoinTokens is joinTokens for other packages (default argument expressions).
func JoinTokens(toks []lexer.Token) string { return joinTokens(toks) }

func wordLike(t lexer.Token) bool {
	return t.Kind == lexer.Ident || t.Kind == lexer.Number || t.Kind == lexer.String || t.Kind == lexer.Char
}

func canonicalBuiltin(words []string) string {
	var signed, unsigned, short bool
	long := 0
	base := ""
	for _, w := range words {
		switch w {
		case "signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "short":
			short = true
		case "long":
			long++
		case "int":
			if base == "" {
				base = "int"
			}
		default:
			base = w
		}
	}
	var parts []string
	switch base {
	case "char":
		if unsigned {
			parts = append(parts, "unsigned")
		} else if signed {
			parts = append(parts, "signed")
		}
		parts = append(parts, "char")
	case "double":
		if long > 0 {
			parts = append(parts, "long")
		}
		parts = append(parts, "double")
	case "", "int":
		if unsigned {
			parts = append(parts, "unsigned")
		}
		switch {
		case short:
			parts = append(parts, "short")
		case long == 1:
			parts = append(parts, "long")
		case long >= 2:
			parts = append(parts, "long", "long")
		default:
			parts = append(parts, "int")
		}
	default:
		parts = append(parts, base)
	}
	return strings.Join(parts, " ")
}
