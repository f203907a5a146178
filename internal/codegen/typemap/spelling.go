package typemap

import (
	"strings"

	"github.com/emirpasic/gods/sets/treeset"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

// WrapperPrefix qualifies names declared in the binding file when used from the wrapper,
// which cimports it under this name.
const WrapperPrefix = "cpp."

type builtin struct {
	kind  Kind
	spell string
	// from is the module to cimport the spelling from; empty for names Cython predeclares.
	from string
	// alias renames the cimported name.
	alias string
	// base is set for names declared through an extern ctypedef.
	base string
}

var builtins = map[string]builtin{
	"void":               {kind: KindVoid, spell: "void"},
	"bool":               {kind: KindBool, spell: "cppbool", from: "libcpp", alias: "cppbool"},
	"char":               {kind: KindInt, spell: "char"},
	"signed char":        {kind: KindInt, spell: "signed char"},
	"unsigned char":      {kind: KindInt, spell: "unsigned char"},
	"short":              {kind: KindInt, spell: "short"},
	"unsigned short":     {kind: KindInt, spell: "unsigned short"},
	"int":                {kind: KindInt, spell: "int"},
	"unsigned int":       {kind: KindInt, spell: "unsigned int"},
	"long":               {kind: KindInt, spell: "long"},
	"unsigned long":      {kind: KindInt, spell: "unsigned long"},
	"long long":          {kind: KindInt, spell: "long long"},
	"unsigned long long": {kind: KindInt, spell: "unsigned long long"},
	"size_t":             {kind: KindInt, spell: "size_t"},
	"wchar_t":            {kind: KindInt, spell: "wchar_t", from: "libc.stddef"},
	"ptrdiff_t":          {kind: KindInt, spell: "ptrdiff_t", from: "libc.stddef"},
	"ssize_t":            {kind: KindInt, spell: "ssize_t", base: "long"},
	"char8_t":            {kind: KindInt, spell: "char8_t", base: "unsigned char"},
	"char16_t":           {kind: KindInt, spell: "char16_t", base: "unsigned short"},
	"char32_t":           {kind: KindInt, spell: "char32_t", base: "unsigned int"},
	"float":              {kind: KindFloat, spell: "float"},
	"double":             {kind: KindFloat, spell: "double"},
	"long double":        {kind: KindFloat, spell: "long double"},
	"std::string":        {kind: KindStr, spell: "cppstring", from: "libcpp.string", alias: "cppstring"},
}

func init() {
	for _, w := range []string{"8", "16", "32", "64"} {
		for _, n := range []string{"int%s_t", "uint%s_t", "int_least%s_t", "uint_least%s_t", "int_fast%s_t", "uint_fast%s_t"} {
			name := strings.Replace(n, "%s", w, 1)
			builtins[name] = builtin{kind: KindInt, spell: name, from: "libc.stdint"}
		}
	}
	for _, name := range []string{"intptr_t", "uintptr_t", "intmax_t", "uintmax_t"} {
		builtins[name] = builtin{kind: KindInt, spell: name, from: "libc.stdint"}
	}
}

// lookupBuiltin resolves a builtin name, accepting the std:: spelling of C library types.
func lookupBuiltin(name string) (builtin, bool) {
	if b, ok := builtins[name]; ok {
		return b, true
	}
	if rest, ok := strings.CutPrefix(name, "std::"); ok && rest != "string" {
		b, ok := builtins[rest]
		return b, ok && b.kind == KindInt
	}
	return builtin{}, false
}

type container struct {
	kind  Kind
	arity int
	from  string
	name  string
	// auto marks containers Cython converts to and from Python objects on its own.
	auto bool
}

var containers = map[string]container{
	"std::vector":        {KindList, 1, "libcpp.vector", "vector", true},
	"std::list":          {KindList, 1, "libcpp.list", "list", true},
	"std::deque":         {KindList, 1, "libcpp.deque", "deque", false},
	"std::set":           {KindSet, 1, "libcpp.set", "set", true},
	"std::unordered_set": {KindSet, 1, "libcpp.unordered_set", "unordered_set", true},
	"std::map":           {KindDict, 2, "libcpp.map", "map", true},
	"std::unordered_map": {KindDict, 2, "libcpp.unordered_map", "unordered_map", true},
	"std::pair":          {KindTuple, 2, "libcpp.utility", "pair", true},
}

func (c container) spell() string { return "cpp" + c.name }

// containerOf returns the container t names, if its arguments fit the Cython declaration.
func containerOf(t model.Type) (container, bool) {
	c, ok := containers[t.Name]
	if !ok || len(t.Args) != c.arity {
		return container{}, false
	}
	for _, a := range t.Args {
		if a.Literal {
			return container{}, false
		}
	}
	return c, true
}

// AutoConverted reports whether Cython converts the container named by t without help.
// Only meaningful for container kinds.
func AutoConverted(t model.Type) bool {
	c, ok := containerOf(t.Decay())
	return ok && c.auto
}

// Requirements collects the declarations spelled types depend on, kept sorted so both
// artifacts list them deterministically.
type Requirements struct {
	cimports *treeset.Set
	externs  *treeset.Set
}

func NewRequirements() *Requirements {
	return &Requirements{cimports: treeset.NewWithStringComparator(), externs: treeset.NewWithStringComparator()}
}

// Cimports returns the cimport statements, sorted.
func (r *Requirements) Cimports() []string { return toStrings(r.cimports.Values()) }

// Externs returns the extern ctypedef declarations, sorted.
func (r *Requirements) Externs() []string { return toStrings(r.externs.Values()) }

func (r *Requirements) add(b builtin) {
	switch {
	case b.from != "" && b.alias != "":
		r.cimports.Add("from " + b.from + " cimport " + strings.TrimPrefix(b.alias, "cpp") + " as " + b.alias)
	case b.from != "":
		r.cimports.Add("from " + b.from + " cimport " + b.spell)
	case b.base != "":
		r.externs.Add("ctypedef " + b.base + " " + b.spell)
	}
}

func (r *Requirements) addContainer(c container) {
	r.cimports.Add("from " + c.from + " cimport " + c.name + " as " + c.spell())
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.(string)
	}
	return out
}

// DeclSpelling spells t for the binding-declaration file.
func (m *Mapper) DeclSpelling(t model.Type, ctx Ctx) string {
	return m.spell(t, ctx, "", nil)
}

// WrapperSpelling spells t for the wrapper file, where binding names live under WrapperPrefix.
func (m *Mapper) WrapperSpelling(t model.Type, ctx Ctx) string {
	return m.spell(t, ctx, WrapperPrefix, nil)
}

// Require adds the declarations t depends on to reqs.
func (m *Mapper) Require(reqs *Requirements, t model.Type, ctx Ctx) {
	m.spell(t, ctx, "", reqs)
}

// spell renders t in Cython syntax. Rvalue references are spelled by value.
func (m *Mapper) spell(t model.Type, ctx Ctx, prefix string, reqs *Requirements) string {
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	b.WriteString(m.spellBase(t, ctx, prefix, reqs))
	for _, p := range t.Pointers {
		b.WriteByte('*')
		if p.Const {
			b.WriteString(" const")
		}
	}
	if t.Ref == model.RefLValue {
		b.WriteByte('&')
	}
	return b.String()
}

func (m *Mapper) spellBase(t model.Type, ctx Ctx, prefix string, reqs *Requirements) string {
	if t.Literal {
		return t.Name
	}
	if len(t.Args) == 0 && ctx.isParam(t.Name) {
		return t.Name
	}
	if len(t.Args) == 0 {
		if bi, ok := lookupBuiltin(t.Name); ok {
			if reqs != nil {
				reqs.add(bi)
			}
			if bi.base != "" {
				return prefix + bi.spell
			}
			return bi.spell
		}
	}
	if c, ok := containerOf(t); ok {
		if reqs != nil {
			reqs.addContainer(c)
		}
		return c.spell() + "[" + m.spellArgs(t.Args, ctx, prefix, reqs) + "]"
	}
	switch e := m.lookup(t.Name, ctx.Scope).(type) {
	case *model.Typedef, *model.Enum:
		if len(t.Args) == 0 {
			return prefix + e.Declaration().Symbol
		}
	case *model.Class:
		if args, ok := classArgs(e, t, ctx); ok {
			if len(args) == 0 {
				return prefix + e.Symbol
			}
			return prefix + e.Symbol + "[" + m.spellArgs(args, ctx, prefix, reqs) + "]"
		}
	}
	if base, ok := m.scalarAlias(t); ok {
		cname := m.opaqueCName(t, ctx)
		sym := AliasSymbol(cname)
		if reqs != nil {
			reqs.externs.Add("ctypedef " + base + " " + sym + " \"" + cname + "\"")
		}
		return prefix + sym
	}
	return prefix + m.opaqueSymbol(m.opaqueCName(t, ctx))
}

// scalarBases declare overridden scalar types to Cython. The exact C type does not matter as
// long as the category matches.
var scalarBases = map[Kind]string{KindInt: "long long", KindFloat: "double", KindBool: "bint"}

// scalarAlias reports the base of the extern ctypedef declaring t, a type unknown to the
// model that the override table maps to a number or bool.
func (m *Mapper) scalarAlias(t model.Type) (string, bool) {
	if t.Literal || len(t.Args) > 0 {
		return "", false
	}
	h, ok := m.override(t.Bare())
	if !ok {
		return "", false
	}
	base, ok := scalarBases[h.Kind]
	return base, ok
}

// AliasSymbol derives the binding-file identifier of an overridden scalar type:
// "io::Handle" becomes "alias_io_Handle".
func AliasSymbol(cname string) string {
	return "alias" + strings.TrimPrefix(OpaqueSymbol(cname), "opaque")
}

func (m *Mapper) spellArgs(args []model.Type, ctx Ctx, prefix string, reqs *Requirements) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = m.spell(a, ctx, prefix, reqs)
	}
	return strings.Join(parts, ", ")
}

// ClassOf returns the model class t names when the binding can spell it, nil otherwise.
func (m *Mapper) ClassOf(t model.Type, ctx Ctx) *model.Class {
	c, ok := m.lookup(t.Name, ctx.Scope).(*model.Class)
	if !ok {
		return nil
	}
	if _, ok := classArgs(c, t, ctx); !ok {
		return nil
	}
	return c
}

// classArgs returns the template arguments a use of class c spells. Inside a class template
// the bare name refers to the current instantiation.
func classArgs(c *model.Class, t model.Type, ctx Ctx) ([]model.Type, bool) {
	if !c.IsTemplate() {
		return nil, len(t.Args) == 0
	}
	if len(t.Args) == 0 {
		args := make([]model.Type, len(c.TemplateParams))
		for i, p := range c.TemplateParams {
			if !ctx.isParam(p) {
				return nil, false
			}
			args[i] = model.Type{Name: p}
		}
		return args, true
	}
	return t.Args, len(t.Args) == len(c.TemplateParams) && !hasLiteral(t.Args)
}

func hasLiteral(args []model.Type) bool {
	for _, a := range args {
		if a.Literal {
			return true
		}
	}
	return false
}

// opaqueCName returns the C++ spelling an opaque declaration binds to, with names of the
// model and forward-declared classes fully qualified.
func (m *Mapper) opaqueCName(t model.Type, ctx Ctx) string {
	return m.qualify(t.Bare(), ctx).String()
}

func (m *Mapper) qualify(t model.Type, ctx Ctx) model.Type {
	if t.Literal || m.mod == nil {
		return t
	}
	out := t
	if e := m.mod.Lookup(t.Name, ctx.Scope); e != nil {
		out.Name = e.Declaration().QualifiedName()
	} else if q, ok := m.mod.Forwarded(t.Name, ctx.Scope); ok {
		out.Name = q
	}
	if len(t.Args) > 0 {
		out.Args = make([]model.Type, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = m.qualify(a, ctx)
		}
	}
	return out
}

// opaqueSymbol returns the registered symbol of cname, or derives one for types first seen
// after the mapper was bound.
func (m *Mapper) opaqueSymbol(cname string) string {
	if m.opaques != nil {
		if sym, ok := m.opaques.Get(cname); ok {
			return sym.(string)
		}
	}
	return OpaqueSymbol(cname)
}

// needsOpaque reports whether spelling t declares an opaque class for its base name.
func (m *Mapper) needsOpaque(t model.Type, ctx Ctx) bool {
	if t.Literal || len(t.Args) == 0 && ctx.isParam(t.Name) {
		return false
	}
	if _, ok := lookupBuiltin(t.Name); ok && len(t.Args) == 0 {
		return false
	}
	if _, ok := containerOf(t); ok {
		return false
	}
	switch e := m.lookup(t.Name, ctx.Scope).(type) {
	case *model.Typedef, *model.Enum:
		return len(t.Args) > 0
	case *model.Class:
		_, ok := classArgs(e, t, ctx)
		return !ok
	}
	_, alias := m.scalarAlias(t)
	return !alias
}

// OpaqueSymbol derives the binding-file identifier of an opaque C++ type:
// "geo::Widget" becomes "opaque_geo_Widget".
func OpaqueSymbol(cname string) string {
	var b strings.Builder
	b.WriteString("opaque")
	pending := true
	for _, r := range cname {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			if pending {
				b.WriteByte('_')
				pending = false
			}
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
