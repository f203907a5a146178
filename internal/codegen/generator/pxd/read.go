package pxd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

// Signature kinds.
const (
	SigFunction    = "function"
	SigClass       = "class"
	SigConstructor = "constructor"
	SigMethod      = "method"
	SigField       = "field"
	SigEnum        = "enum"
	SigTypedef     = "typedef"
)

// Signature identifies one declaration of a binding file. Members are named
// "Class.member"; Arity counts parameters of callables and labels of enums.
type Signature struct {
	Kind  string
	Name  string
	Arity int
}

func (s Signature) String() string { return fmt.Sprintf("%s %s/%d", s.Kind, s.Name, s.Arity) }

// Read parses a binding file written by Render back into its declaration signatures, in
// file order. Extern blocks without a header are skipped.
func Read(text string) ([]Signature, error) {
	var out []Signature
	inExtern := false
	class, enum := "", -1
	for n, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")
		body := strings.TrimLeft(line, " ")
		if body == "" || strings.HasPrefix(body, "#") {
			continue
		}
		switch depth := len(line) - len(body); depth {
		case 0:
			switch {
			case strings.HasPrefix(body, `cdef extern from "`):
				inExtern = true
			case strings.HasPrefix(body, "cdef extern from *"):
				inExtern = false
			case strings.HasPrefix(body, "from ") || strings.HasPrefix(body, "cimport "):
			default:
				return nil, fmt.Errorf("line %d: unexpected top-level statement %q", n+1, body)
			}
		case 4:
			if !inExtern {
				continue
			}
			class, enum = "", -1
			switch {
			case strings.HasPrefix(body, "cdef cppclass "):
				class = headName(strings.TrimPrefix(body, "cdef cppclass "))
				out = append(out, Signature{Kind: SigClass, Name: class})
			case strings.HasPrefix(body, "cdef enum "):
				rest := strings.TrimPrefix(strings.TrimPrefix(body, "cdef enum "), "class ")
				out = append(out, Signature{Kind: SigEnum, Name: headName(rest)})
				enum = len(out) - 1
			case strings.HasPrefix(body, "ctypedef "):
				out = append(out, Signature{Kind: SigTypedef, Name: lastName(stripCNames(body))})
			default:
				name, arity, ok := callable(body)
				if !ok {
					return nil, fmt.Errorf("line %d: expected a declaration, found %q", n+1, body)
				}
				out = append(out, Signature{Kind: SigFunction, Name: name, Arity: arity})
			}
		case 8:
			if !inExtern {
				continue
			}
			switch {
			case body == "pass" || body == "@staticmethod":
			case enum >= 0:
				out[enum].Arity++
			case class != "":
				if name, arity, ok := callable(body); ok {
					if name == class {
						out = append(out, Signature{Kind: SigConstructor, Name: class, Arity: arity})
					} else {
						out = append(out, Signature{Kind: SigMethod, Name: class + "." + name, Arity: arity})
					}
					continue
				}
				out = append(out, Signature{Kind: SigField, Name: class + "." + lastName(stripCNames(body))})
			default:
				return nil, fmt.Errorf("line %d: member outside of a class or enum", n+1)
			}
		default:
			if inExtern {
				return nil, fmt.Errorf("line %d: unexpected indentation", n+1)
			}
		}
	}
	return out, nil
}

// headName returns the declared name of a class or enum head such as
// `Stack "geo::Stack"[T](Base):`.
func headName(s string) string {
	if i := strings.IndexAny(s, " [(:"); i >= 0 {
		return s[:i]
	}
	return s
}

// stripCNames removes quoted C names together with the space before them.
func stripCNames(s string) string {
	var b strings.Builder
	in := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			in = !in
		case in:
		case c == ' ' && i+1 < len(s) && s[i+1] == '"':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func lastName(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return strings.Trim(f[len(f)-1], "*&")
}

// callable extracts the name and parameter count of a function or method declaration.
func callable(s string) (string, int, bool) {
	s = stripCNames(s)
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return "", 0, false
	}
	head := s[:open]
	if strings.HasSuffix(head, "]") {
		if i := strings.LastIndexByte(head, '['); i >= 0 {
			head = head[:i]
		}
	}
	name := lastName(head)
	if name == "" {
		return "", 0, false
	}
	return name, countParams(s[open+1 : end]), true
}

func countParams(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	n, depth := 0, 0
	start := 0
	count := func(part string) {
		if p := strings.TrimSpace(part); p != "..." {
			n++
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				count(s[start:i])
				start = i + 1
			}
		}
	}
	count(s[start:])
	return n
}

// Signatures lists the declarations Render writes for mod, in file order.
func Signatures(mod *model.Module, m *typemap.Mapper) []Signature {
	var out []Signature
	for _, op := range m.Opaques() {
		out = append(out,
			Signature{Kind: SigClass, Name: op.Symbol},
			Signature{Kind: SigConstructor, Name: op.Symbol, Arity: 1},
		)
	}
	for _, e := range mod.Entities {
		switch e := e.(type) {
		case *model.Function:
			out = append(out, Signature{Kind: SigFunction, Name: e.Symbol, Arity: len(e.Params)})
		case *model.Class:
			out = append(out, Signature{Kind: SigClass, Name: e.Symbol})
			if e.ImplicitDefault() {
				out = append(out, Signature{Kind: SigConstructor, Name: e.Symbol})
			}
			if ImplicitCopy(e) {
				out = append(out, Signature{Kind: SigConstructor, Name: e.Symbol, Arity: 1})
			}
			for _, f := range e.Constructors() {
				out = append(out, Signature{Kind: SigConstructor, Name: e.Symbol, Arity: len(f.Params)})
			}
			for _, mem := range e.Members {
				switch mem := mem.(type) {
				case *model.Field:
					out = append(out, Signature{Kind: SigField, Name: e.Symbol + "." + mem.Symbol})
				case *model.Function:
					out = append(out, Signature{Kind: SigMethod, Name: e.Symbol + "." + mem.Symbol, Arity: len(mem.Params)})
				}
			}
		case *model.Enum:
			out = append(out, Signature{Kind: SigEnum, Name: e.Symbol, Arity: len(e.Labels)})
		case *model.Typedef:
			out = append(out, Signature{Kind: SigTypedef, Name: e.Symbol})
		}
	}
	return out
}

// Verify checks that text declares exactly what mod requires.
func Verify(mod *model.Module, m *typemap.Mapper, text string) error {
	got, err := Read(text)
	if err != nil {
		return &model.GenerationError{Msg: fmt.Sprintf("binding file does not read back: %v", err)}
	}
	want := Signatures(mod, m)

	counts := map[Signature]int{}
	for _, s := range want {
		counts[s]++
	}
	for _, s := range got {
		counts[s]--
	}
	var diffs []Signature
	for s, c := range counts {
		if c != 0 {
			diffs = append(diffs, s)
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	slices.SortFunc(diffs, func(a, b Signature) int { return strings.Compare(a.String(), b.String()) })
	s := diffs[0]
	if counts[s] > 0 {
		return &model.GenerationError{Entity: s.Name, Msg: fmt.Sprintf("%s is missing from the binding file", s)}
	}
	return &model.GenerationError{Entity: s.Name, Msg: fmt.Sprintf("%s in the binding file is not in the model", s)}
}
