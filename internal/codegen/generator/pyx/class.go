package pyx

import (
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

// proxy is the cdef class standing for a native class, or for one specialization of a class
// template.
type proxy struct {
	class *model.Class
	name  string
	// native spells the native class in the wrapper: "cpp.Point", "cpp.Stack[int]".
	native string
	// base is the proxy of the modeled base class. Only root proxies declare thisptr.
	base *proxy
	// repl substitutes the template parameters of a specialization.
	repl map[string]model.Type
	// types are the specialization's template arguments, in parameter order.
	types []model.Type
}

// self is the typed native pointer of self inside the proxy's methods.
func (p *proxy) self() string {
	if p.base == nil {
		return "self.thisptr"
	}
	return fmt.Sprintf("(<%s*>self.thisptr)", p.native)
}

// ptrOf is the typed native pointer of the proxy object expr, checked to be a p.
func (p *proxy) ptrOf(expr string) string {
	if p.base == nil {
		return fmt.Sprintf("(<%s?>%s).thisptr", p.name, expr)
	}
	return fmt.Sprintf("(<%s*>(<%s?>%s).thisptr)", p.native, p.name, expr)
}

func (p *proxy) wrapFn() string { return "_wrap_" + p.name }

// member prepares a member function for the proxy, substituting template parameters.
func (p *proxy) member(f *model.Function) (*model.Function, typemap.Ctx) {
	if p.repl == nil {
		return f, typemap.CtxOf(f)
	}
	ctx := typemap.CtxOf(f)
	ctx.Params = nil
	return substitute(f, p.repl), ctx
}

func (g *gen) class(c *model.Class) ([]string, error) {
	if c.IsTemplate() {
		return g.templateClass(c), nil
	}
	p := g.proxies[c]
	return []string{g.proxyClass(p), g.wrapper(p)}, nil
}

// templateClass renders one proxy per configured specialization of a class template.
func (g *gen) templateClass(c *model.Class) []string {
	specs := g.opts.Specializations[c.QualifiedName()]
	if len(specs) == 0 {
		g.warn(model.WarnTemplate, &c.Decl, "template %s has no configured specialization and is not wrapped", c.QualifiedName())
		return nil
	}
	ctx := typemap.Ctx{Scope: c.Scope}
	var out []string
	for _, s := range specs {
		repl, types, reason := bind(c.TemplateParams, s)
		if reason != "" {
			g.warn(model.WarnTemplate, &c.Decl, "%s", reason)
			continue
		}
		self := model.Type{Name: c.Name, Args: types}
		repl[c.Name] = self
		repl[c.QualifiedName()] = self
		p := &proxy{
			class:  c,
			name:   s.Name,
			native: fmt.Sprintf("%s%s[%s]", typemap.WrapperPrefix, c.Symbol, g.spellArgs(types, ctx)),
			repl:   repl,
			types:  types,
		}
		out = append(out, g.proxyClass(p))
	}
	return out
}

func (g *gen) proxyClass(p *proxy) string {
	c := p.class
	var b code
	head := "cdef class " + p.name
	if p.base != nil {
		head += "(" + p.base.name + ")"
	}
	b.line("%s:", head)
	b.in()
	b.docstring(g.classDoc(p), c.Doc)
	if p.base == nil {
		b.line("cdef %s* thisptr", p.native)
		b.line("cdef bint owned")
	}

	var defs []*code
	defs = append(defs, g.constructors(p)...)
	if c.HasDtor {
		defs = append(defs, dealloc(p))
	}
	done := map[string]bool{}
	for _, mem := range c.Members {
		switch mem := mem.(type) {
		case *model.Field:
			if prop := g.property(p, mem); prop != nil {
				defs = append(defs, prop)
			}
		case *model.Function:
			if done[mem.Name] {
				continue
			}
			done[mem.Name] = true
			defs = append(defs, g.methods(p, mem.Name)...)
		}
	}
	for _, d := range defs {
		b.line("")
		b.nest(d)
	}
	return b.String()
}

func (g *gen) classDoc(p *proxy) string {
	s := p.class.DottedName()
	if len(p.types) > 0 {
		parts := make([]string, len(p.types))
		for i, t := range p.types {
			parts[i] = t.String()
		}
		s += "[" + strings.Join(parts, ", ") + "]"
	}
	if p.base != nil {
		s += "(" + p.base.class.DottedName() + ")"
	}
	return s
}

func (g *gen) constructors(p *proxy) []*code {
	c := p.class
	refuse := func(msg string) []*code {
		var b code
		b.line("def __init__(self, *args):")
		b.in()
		b.line(`raise TypeError("%s")`, msg)
		return []*code{&b}
	}
	switch {
	case c.Abstract:
		return refuse(fmt.Sprintf("%s is abstract and cannot be instantiated", p.name))
	case c.ImplicitDefault():
		var b code
		b.line("def __init__(self):")
		b.in()
		b.line("self.thisptr = new %s()", p.native)
		b.line("self.owned = True")
		return []*code{&b}
	}
	var group []callable
	for _, f := range c.Constructors() {
		fn, ctx := p.member(f)
		if t, ok := g.undeclared(fn, ctx); ok {
			g.warn(model.WarnTemplate, &f.Decl, "constructor of %s uses %s, which the binding does not declare", p.name, t)
			continue
		}
		group = append(group, callable{fn: fn, ctx: ctx, callee: "new " + p.native, init: true})
	}
	if len(group) == 0 {
		return refuse(fmt.Sprintf("%s has no accessible constructor", p.name))
	}
	return g.overloads("__init__", group, dispatch{owner: p, init: true})
}

// dealloc deletes owned objects. The pointer is cleared so base proxies skip it.
func dealloc(p *proxy) *code {
	var b code
	b.line("def __dealloc__(self):")
	b.in()
	if p.base == nil {
		b.line("if self.owned and self.thisptr != NULL:")
		b.in()
		b.line("del self.thisptr")
	} else {
		b.line("cdef %s* ptr = %s", p.native, p.self())
		b.line("if self.owned and ptr != NULL:")
		b.in()
		b.line("del ptr")
	}
	b.out()
	b.line("self.thisptr = NULL")
	return &b
}

func (g *gen) methods(p *proxy, name string) []*code {
	var group []callable
	var host string
	for _, f := range p.class.Methods() {
		if f.Name != name {
			continue
		}
		host = f.HostName
		fn, ctx := p.member(f)
		if t, ok := g.undeclared(fn, ctx); ok {
			g.warn(model.WarnTemplate, &f.Decl, "%s.%s uses %s, which the binding does not declare", p.name, f.Name, t)
			continue
		}
		cl := callable{fn: fn, ctx: ctx, method: !f.Static, static: f.Static}
		if f.Static {
			cl.callee = p.native + "." + f.Symbol
		} else {
			cl.callee = p.self() + "." + f.Symbol
		}
		group = append(group, cl)
	}
	return g.overloads(host, group, dispatch{owner: p})
}

// property exposes a field. Const fields are read-only.
func (g *gen) property(p *proxy, f *model.Field) *code {
	if f.Static {
		g.warn(model.WarnUnsupported, &f.Decl, "static data member %s is not wrapped", f.QualifiedName())
		return nil
	}
	t := f.Type
	ctx := typemap.MemberCtx(p.class, f)
	if p.repl != nil {
		t = t.Substitute(p.repl)
		ctx.Params = nil
	}
	if !g.m.Declared(t, ctx) {
		g.warn(model.WarnTemplate, &f.Decl, "%s.%s uses %s, which the binding does not declare", p.name, f.Name, t)
		return nil
	}
	access := p.self() + "." + f.Symbol
	get, reason := g.result(t, ctx, access)
	if reason != "" {
		g.warn(model.WarnUnsupported, &f.Decl, "field %s not wrapped: %s", f.QualifiedName(), reason)
		return nil
	}

	var b code
	b.line("@property")
	b.line("def %s(self):", f.HostName)
	b.in()
	b.docstring(fmt.Sprintf("%s: %s", f.DottedName(), t), f.Doc)
	b.block(get.decls)
	b.block(get.body)
	b.out()
	if t.Const && !t.IsPointer() || t.Ref != model.RefNone {
		return &b
	}

	a := g.argument(t, ctx, "value")
	b.line("")
	b.line("@%s.setter", f.HostName)
	b.line("def %s(self, value):", f.HostName)
	b.in()
	if a.decl != "" && a.init != "" {
		b.line("%s = %s", a.decl, a.init)
	} else if a.decl != "" {
		b.line("%s", a.decl)
	}
	b.block(a.conv)
	b.line("%s = %s", access, a.expr)
	return &b
}

// wrapper renders the factory turning a native pointer into a proxy without constructing.
func (g *gen) wrapper(p *proxy) string {
	var b code
	b.line("cdef %s %s(%s* ptr, bint owned):", p.name, p.wrapFn(), p.native)
	b.in()
	b.line("cdef %s obj = %s.__new__(%s)", p.name, p.name, p.name)
	b.line("obj.thisptr = ptr")
	b.line("obj.owned = owned")
	b.line("return obj")
	return b.String()
}

// enum renders an IntEnum bound to the native label values.
func (g *gen) enum(e *model.Enum) string {
	var b code
	b.line("class %s(enum.IntEnum):", e.HostName)
	b.in()
	b.docstring(e.DottedName(), e.Doc)
	if len(e.Labels) == 0 {
		b.line("pass")
	}
	for _, l := range e.Labels {
		ref := typemap.WrapperPrefix + common.SafeIdent(l.Name)
		if e.Scoped {
			ref = typemap.WrapperPrefix + e.Symbol + "." + common.SafeIdent(l.Name)
		}
		b.line("%s = <int>%s", common.SafeIdent(l.Name), ref)
	}
	return b.String()
}

// nest appends the lines of o at the current depth.
func (c *code) nest(o *code) {
	for _, l := range o.lines {
		c.line("%s", l)
	}
}
