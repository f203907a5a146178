package typemap

import (
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

// Kind is the category of a host (Python) type.
type Kind string

const (
	KindVoid   Kind = "None"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindStr    Kind = "str"
	KindList   Kind = "list"
	KindSet    Kind = "set"
	KindDict   Kind = "dict"
	KindTuple  Kind = "tuple"
	KindEnum   Kind = "enum"
	KindClass  Kind = "class"
	KindOpaque Kind = "opaque"
)

// containerArity is the number of element types each container kind takes.
var containerArity = map[Kind]int{KindList: 1, KindSet: 1, KindDict: 2, KindTuple: 2}

// HostType is the result of mapping one C++ type.
type HostType struct {
	Kind Kind
	// Native is the C++ type as written at the use site.
	Native model.Type
	// Elems holds the element types of containers: [T] for list and set, [K, V] for dict,
	// [A, B] for tuple.
	Elems []HostType
	Enum  *model.Enum
	Class *model.Class
	// Pointer marks a class proxy passed through a pointer.
	Pointer bool
	// CString marks strings carried by a char pointer rather than std::string.
	CString bool
	// Manual marks containers Cython does not convert on its own (std::deque).
	Manual bool
}

// IsContainer reports whether h is a list, set, dict or tuple.
func (h HostType) IsContainer() bool {
	_, ok := containerArity[h.Kind]
	return ok
}

// String renders the Python annotation of h: "int", "list[str]", "dict[str, float]", "Point".
func (h HostType) String() string {
	switch {
	case h.Kind == KindClass && h.Class != nil:
		return h.Class.HostName
	case h.Kind == KindEnum && h.Enum != nil:
		return h.Enum.HostName
	case h.IsContainer():
		parts := make([]string, len(h.Elems))
		for i, e := range h.Elems {
			parts[i] = e.String()
		}
		return string(h.Kind) + "[" + strings.Join(parts, ", ") + "]"
	}
	return string(h.Kind)
}

var hostNames = map[string]Kind{
	"int":    KindInt,
	"float":  KindFloat,
	"bool":   KindBool,
	"str":    KindStr,
	"bytes":  KindStr,
	"list":   KindList,
	"set":    KindSet,
	"dict":   KindDict,
	"tuple":  KindTuple,
	"opaque": KindOpaque,
	"None":   KindVoid,
	"void":   KindVoid,
}

// ParseHostType parses a host type string from the override table, e.g. "dict[str, list[int]]".
func ParseHostType(s string) (HostType, error) {
	p := hostParser{s: s}
	h, err := p.parse()
	if err != nil {
		return HostType{}, fmt.Errorf("host type %q: %w", s, err)
	}
	p.space()
	if p.i != len(p.s) {
		return HostType{}, fmt.Errorf("host type %q: unexpected %q", s, p.s[p.i:])
	}
	return h, nil
}

type hostParser struct {
	s string
	i int
}

func (p *hostParser) space() {
	for p.i < len(p.s) && p.s[p.i] == ' ' {
		p.i++
	}
}

func (p *hostParser) parse() (HostType, error) {
	p.space()
	start := p.i
	for p.i < len(p.s) && (isWordByte(p.s[p.i])) {
		p.i++
	}
	word := p.s[start:p.i]
	if word == "" {
		return HostType{}, fmt.Errorf("expected a type name at offset %d", start)
	}
	kind, ok := hostNames[word]
	if !ok {
		return HostType{}, fmt.Errorf("unknown host type %q", word)
	}
	h := HostType{Kind: kind}
	p.space()
	arity, container := containerArity[kind]
	if p.i >= len(p.s) || p.s[p.i] != '[' {
		if container {
			return HostType{}, fmt.Errorf("%s needs %d element type(s)", word, arity)
		}
		return h, nil
	}
	if !container {
		return HostType{}, fmt.Errorf("%s takes no element types", word)
	}
	p.i++
	for {
		elem, err := p.parse()
		if err != nil {
			return HostType{}, err
		}
		h.Elems = append(h.Elems, elem)
		p.space()
		if p.i >= len(p.s) {
			return HostType{}, fmt.Errorf("unterminated element list")
		}
		c := p.s[p.i]
		p.i++
		if c == ']' {
			break
		}
		if c != ',' {
			return HostType{}, fmt.Errorf("unexpected %q in element list", c)
		}
	}
	if len(h.Elems) != arity {
		return HostType{}, fmt.Errorf("%s needs %d element type(s), got %d", word, arity, len(h.Elems))
	}
	return h, nil
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
