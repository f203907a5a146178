// Package pxd renders the Cython binding-declaration file: the C++ surface restated as
// cdef extern blocks, and reads such files back for round-trip checks.
package pxd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

const pxdTmpl = `# Generated by {{.Banner}} from {{join .Headers ", "}}. Do not edit.
# digest: {{.Digest}}
{{with .Cimports}}
{{range .}}{{.}}
{{end}}{{end}}{{with .Externs}}
cdef extern from *:
{{range .}}{{indent .}}
{{end}}{{end}}{{range .Blocks}}
cdef extern from "{{.Header}}"{{with .Namespace}} namespace "{{.}}"{{end}}:
{{range .Lines}}{{indent .}}
{{end}}{{end}}`

var tmpl = template.Must(template.New("pxd").Funcs(template.FuncMap{
	"join":   strings.Join,
	"indent": indent,
}).Parse(pxdTmpl))

type block struct {
	Header    string
	Namespace string
	Lines     []string
}

type pxdData struct {
	Banner   string
	Headers  []string
	Digest   string
	Cimports []string
	Externs  []string
	Blocks   []*block
}

func indent(s string) string {
	if s == "" {
		return ""
	}
	return "    " + s
}

// ModuleName is the module name of the binding file for the extension module name. It differs
// from name so the wrapper, which takes name, can cimport it.
func ModuleName(name string) string { return "_" + name }

// IncludeName is the name a header is included by from the generated files.
func IncludeName(header string) string { return filepath.Base(header) }

// Render renders the binding-declaration file for mod. m must be bound to mod.
func Render(mod *model.Module, m *typemap.Mapper) (string, error) {
	reqs := typemap.NewRequirements()
	w := &writer{m: m, reqs: reqs}

	data := pxdData{Banner: common.Banner(), Digest: mod.Digest}
	for _, h := range mod.Headers {
		data.Headers = append(data.Headers, IncludeName(h))
	}

	if ops := m.Opaques(); len(ops) > 0 && len(mod.Headers) > 0 {
		b := &block{Header: IncludeName(mod.Headers[0])}
		for _, op := range ops {
			b.Lines = append(b.Lines,
				fmt.Sprintf("cdef cppclass %s %q:", op.Symbol, op.CName),
				fmt.Sprintf("    %s(%s&) except +", op.Symbol, op.Symbol),
			)
		}
		data.Blocks = append(data.Blocks, b)
	}

	var cur *block
	for _, e := range mod.Entities {
		if err := model.Check(e); err != nil {
			return "", err
		}
		d := e.Declaration()
		ns := d.Namespace()
		if _, ok := e.(*model.Typedef); ok {
			ns = ""
		}
		if cur == nil || cur.Header != IncludeName(d.Header) || cur.Namespace != ns {
			cur = &block{Header: IncludeName(d.Header), Namespace: ns}
			data.Blocks = append(data.Blocks, cur)
		}
		cur.Lines = append(cur.Lines, w.entity(e)...)
	}

	data.Cimports = reqs.Cimports()
	data.Externs = reqs.Externs()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute pxd template: %w", err)
	}
	return buf.String(), nil
}

// writer renders declaration lines and records the cimports they need.
type writer struct {
	m    *typemap.Mapper
	reqs *typemap.Requirements
}

func (w *writer) spell(t model.Type, ctx typemap.Ctx) string {
	w.m.Require(w.reqs, t, ctx)
	return w.m.DeclSpelling(t, ctx)
}

func (w *writer) entity(e model.Entity) []string {
	switch e := e.(type) {
	case *model.Function:
		return []string{w.function(e, e.Symbol, e.Name)}
	case *model.Class:
		return w.class(e)
	case *model.Enum:
		return enum(e)
	case *model.Typedef:
		return []string{fmt.Sprintf("ctypedef %s %s %q", w.spell(e.Type, typemap.CtxOf(e)), e.Symbol, e.QualifiedName())}
	}
	return nil
}

// function renders a function or method declaration. The C++ name is given as a cname
// string when it differs from the symbol.
func (w *writer) function(f *model.Function, sym, cname string) string {
	ctx := typemap.CtxOf(f)
	var b strings.Builder
	if f.Return != nil {
		b.WriteString(w.spell(*f.Return, ctx))
		b.WriteByte(' ')
	}
	b.WriteString(sym)
	if cname != sym {
		fmt.Fprintf(&b, " %q", cname)
	}
	if len(f.TemplateParams) > 0 {
		b.WriteString("[" + strings.Join(f.TemplateParams, ", ") + "]")
	}
	b.WriteString("(" + w.params(f, ctx) + ")")
	if f.Const {
		b.WriteString(" const")
	}
	if !f.Noexcept {
		b.WriteString(" except +")
	}
	return b.String()
}

func (w *writer) params(f *model.Function, ctx typemap.Ctx) string {
	parts := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		s := w.spell(p.Type, ctx)
		if p.Name != "" {
			s += " " + common.SafeIdent(p.Name)
		}
		if p.Default != "" {
			s += "=*"
		}
		parts = append(parts, s)
	}
	if f.Variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

func (w *writer) class(c *model.Class) []string {
	head := "cdef cppclass " + c.Symbol
	if c.Symbol != c.Name {
		head += fmt.Sprintf(" %q", c.Name)
	}
	if c.IsTemplate() {
		head += "[" + strings.Join(c.TemplateParams, ", ") + "]"
	}
	if base, ok := w.base(c); ok {
		head += "(" + base + ")"
	}
	lines := []string{head + ":"}
	var body []string

	self := c.Symbol
	if c.IsTemplate() {
		self += "[" + strings.Join(c.TemplateParams, ", ") + "]"
	}
	if c.ImplicitDefault() {
		body = append(body, c.Symbol+"() except +")
	}
	if ImplicitCopy(c) {
		body = append(body, fmt.Sprintf("%s(%s&) except +", c.Symbol, self))
	}
	for _, f := range c.Constructors() {
		body = append(body, w.function(f, c.Symbol, c.Symbol))
	}
	for _, mem := range c.Members {
		switch mem := mem.(type) {
		case *model.Field:
			line := w.spell(mem.Type, typemap.MemberCtx(c, mem)) + " " + mem.Symbol
			if mem.Symbol != mem.Name {
				line += fmt.Sprintf(" %q", mem.Name)
			}
			body = append(body, line)
		case *model.Function:
			if mem.Static {
				body = append(body, "@staticmethod")
			}
			body = append(body, w.function(mem, mem.Symbol, mem.Name))
		}
	}
	if len(body) == 0 {
		body = append(body, "pass")
	}
	for _, l := range body {
		lines = append(lines, indent(l))
	}
	return lines
}

// base spells the first base of c when it is a class of the model.
func (w *writer) base(c *model.Class) (string, bool) {
	if c.Base == nil {
		return "", false
	}
	ctx := typemap.Ctx{Scope: c.Scope, Params: c.TemplateParams}
	if w.m.ClassOf(c.Base.Bare(), ctx) == nil {
		return "", false
	}
	return w.spell(c.Base.Bare(), ctx), true
}

func enum(e *model.Enum) []string {
	head := "cdef enum "
	if e.Scoped {
		head = "cdef enum class "
	}
	head += e.Symbol
	if e.Symbol != e.Name {
		head += fmt.Sprintf(" %q", e.Name)
	}
	lines := []string{head + ":"}
	if len(e.Labels) == 0 {
		return append(lines, indent("pass"))
	}
	for _, l := range e.Labels {
		lines = append(lines, indent(LabelSymbol(l.Name)))
	}
	return lines
}

// LabelSymbol returns the declaration of an enum label: its name, with a cname when the
// name is reserved on the host side.
func LabelSymbol(name string) string {
	if s := common.SafeIdent(name); s != name {
		return fmt.Sprintf("%s %q", s, name)
	}
	return name
}

// ImplicitCopy reports whether the binding declares the compiler-generated copy constructor
// of c. Classes with hidden constructors are assumed non-copyable.
func ImplicitCopy(c *model.Class) bool {
	if c.Abstract {
		return false
	}
	for _, f := range c.Ctors {
		if f.Deleted || isCopyConstructor(c, f) {
			return false
		}
	}
	return true
}

// Copyable reports whether the binding can copy-construct c.
func Copyable(c *model.Class) bool {
	if ImplicitCopy(c) {
		return true
	}
	for _, f := range c.Constructors() {
		if isCopyConstructor(c, f) {
			return true
		}
	}
	return false
}

func isCopyConstructor(c *model.Class, f *model.Function) bool {
	if len(f.Params) != 1 || f.Params[0].Type.Ref != model.RefLValue {
		return false
	}
	t := f.Params[0].Type
	return len(t.Pointers) == 0 && t.Leaf() == c.Name
}
