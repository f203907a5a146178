package pyx

import (
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/overload"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

// callable is one native function as a proxy calls it. fn has its template parameters
// substituted.
type callable struct {
	fn   *model.Function
	ctx  typemap.Ctx
	name string
	// callee names the native entity: "cpp.add", "self.thisptr.area", "new cpp.Point".
	callee string
	// method marks proxies taking self; static methods are not methods here.
	method bool
	static bool
	// init makes the proxy store the constructed object instead of returning a value.
	init bool
}

// def renders the proxy of cl. A non-empty reason reports why it cannot be wrapped.
func (g *gen) def(cl callable) (*code, string) {
	fn := cl.fn
	n := len(fn.Params)
	names := pyNames(fn.Params)
	args := make([]arg, n)
	for i, p := range fn.Params {
		args[i] = g.argument(p.Type, cl.ctx, names[i])
	}

	// Parameters from the first non-literal default on take None and select the arity.
	sentinel := n
	defaults := make([]string, n)
	for i, p := range fn.Params {
		if p.Default == "" || i >= sentinel {
			continue
		}
		if lit, ok := literal(p.Default, g.m.Resolve(p.Type, cl.ctx)); ok {
			defaults[i] = lit
			continue
		}
		sentinel = i
	}
	for i := sentinel; i < n; i++ {
		defaults[i] = "None"
	}

	call := func(k int) string {
		exprs := make([]string, k)
		for i := range exprs {
			exprs[i] = args[i].expr
		}
		return fmt.Sprintf("%s(%s)", cl.callee, strings.Join(exprs, ", "))
	}
	tail := func(k int) (outcome, string) {
		if cl.init {
			return outcome{body: []string{"self.thisptr = " + call(k), "self.owned = True"}}, ""
		}
		return g.result(*fn.Return, cl.ctx, call(k))
	}
	full, reason := tail(n)
	if reason != "" {
		return nil, reason
	}

	sig := make([]string, 0, n+1)
	if cl.method || cl.init {
		sig = append(sig, "self")
	}
	for i, name := range names {
		if defaults[i] != "" {
			name += "=" + defaults[i]
		}
		sig = append(sig, name)
	}

	var c code
	if cl.static {
		c.line("@staticmethod")
	}
	c.line("def %s(%s):", cl.name, strings.Join(sig, ", "))
	c.in()
	c.docstring(g.pySignature(cl, names, defaults), nativeSignature(fn), fn.Doc)
	for i, a := range args {
		switch {
		case a.decl == "":
		case i < sentinel && a.init != "":
			c.line("%s = %s", a.decl, a.init)
		default:
			c.line("%s", a.decl)
		}
	}
	c.block(full.decls)
	for i := 0; i < sentinel; i++ {
		c.block(args[i].conv)
	}
	if sentinel == n {
		c.block(full.body)
		return &c, ""
	}
	for k := sentinel; k <= n; k++ {
		switch {
		case k == sentinel:
			c.line("if %s is None:", names[k])
		case k < n:
			c.line("elif %s is None:", names[k])
		default:
			c.line("else:")
		}
		c.in()
		for i := sentinel; i < k; i++ {
			c.block(args[i].assign())
		}
		o, _ := tail(k)
		c.block(o.body)
		c.out()
	}
	return &c, ""
}

// pySignature renders the Python call signature for the docstring.
func (g *gen) pySignature(cl callable, names, defaults []string) string {
	parts := make([]string, len(names))
	for i, p := range cl.fn.Params {
		parts[i] = names[i] + ": " + g.m.Resolve(p.Type, cl.ctx).String()
		if defaults[i] != "" {
			parts[i] += " = " + defaults[i]
		}
	}
	name := cl.name
	if cl.init {
		name = cl.fn.Name
	}
	s := name + "(" + strings.Join(parts, ", ") + ")"
	if !cl.init && cl.fn.Return != nil {
		s += " -> " + g.m.Resolve(*cl.fn.Return, cl.ctx).String()
	}
	return s
}

// nativeSignature renders the wrapped C++ function with a dotted name:
// "geo.add(int a, int b) -> int".
func nativeSignature(f *model.Function) string {
	var b strings.Builder
	b.WriteString(f.DottedName())
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type.String())
		if p.Name != "" {
			b.WriteString(" " + p.Name)
		}
		if p.Default != "" {
			b.WriteString(" = " + p.Default)
		}
	}
	if f.Variadic {
		if len(f.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
	if f.Const {
		b.WriteString(" const")
	}
	if f.Return != nil {
		b.WriteString(" -> " + f.Return.String())
	}
	return b.String()
}

// function wraps a free function, or its whole overload group on the first member.
func (g *gen) function(f *model.Function) ([]string, error) {
	if len(f.TemplateParams) > 0 {
		return g.templateFunction(f)
	}
	q := f.QualifiedName()
	if g.done[q] {
		return nil, nil
	}
	g.done[q] = true

	var group []callable
	for _, o := range g.mod.Functions() {
		if o.QualifiedName() == q && len(o.TemplateParams) == 0 {
			group = append(group, callable{fn: o, ctx: typemap.CtxOf(o), callee: "cpp." + o.Symbol})
		}
	}
	defs := g.overloads(f.HostName, group, dispatch{})
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.String()
	}
	return out, nil
}

// dispatch describes where an overload dispatcher lives.
type dispatch struct {
	// owner is the proxy class of methods and constructors.
	owner *proxy
	init  bool
}

// overloads renders the proxies of one overload group in declaration order. A single
// member is exposed under name directly; several members get private proxies "_<symbol>"
// and a dispatcher named name that picks the first compatible one.
func (g *gen) overloads(name string, group []callable, d dispatch) []*code {
	var defs []*code
	var kept []callable
	for i, cl := range group {
		cl.name = name
		if len(group) > 1 {
			cl.name = "_" + cl.fn.Symbol
			if d.init {
				cl.name = fmt.Sprintf("_init_%d", i+1)
			}
		}
		c, reason := g.def(cl)
		if reason != "" {
			g.warn(model.WarnUnsupported, &cl.fn.Decl, "%s not wrapped: %s", cl.fn.QualifiedName(), reason)
			continue
		}
		defs = append(defs, c)
		kept = append(kept, cl)
	}
	if len(group) < 2 || len(kept) == 0 {
		return defs
	}
	return append(defs, g.dispatcher(name, kept, d))
}

func (g *gen) dispatcher(name string, group []callable, d dispatch) *code {
	static := d.owner != nil && !d.init
	for _, cl := range group {
		static = static && cl.static
	}

	var c code
	params := "*args"
	if d.owner != nil && !static {
		params = "self, *args"
	}
	if static {
		c.line("@staticmethod")
	}
	c.line("def %s(%s):", name, params)
	c.in()
	doc := []string{"Dispatches to the first overload accepting the arguments:"}
	for _, cl := range group {
		doc = append(doc, "    "+nativeSignature(cl.fn))
	}
	c.docstring(name+"(*args)", strings.Join(doc, "\n"))
	for _, cl := range group {
		cand := overload.Candidate{Fn: cl.fn}
		for _, p := range cl.fn.Params {
			cand.Params = append(cand.Params, g.m.Resolve(p.Type, cl.ctx))
		}
		c.line("if %s:", g.opts.Policy.Condition(cand, "args"))
		c.in()
		switch {
		case d.init:
			c.line("self.%s(*args)", cl.name)
			c.line("return")
		case cl.static:
			c.line("return %s.%s(*args)", d.owner.name, cl.name)
		case cl.method:
			c.line("return self.%s(*args)", cl.name)
		default:
			c.line("return %s(*args)", cl.name)
		}
		c.out()
	}
	c.line(`raise TypeError("no overload of %s accepts the given arguments")`, name)
	return &c
}

// bind resolves a specialization's types for the template parameters params.
func bind(params []string, s Specialization) (map[string]model.Type, []model.Type, string) {
	repl := map[string]model.Type{}
	var types []model.Type
	for _, p := range params {
		spelling, ok := s.Types[p]
		if !ok {
			return nil, nil, fmt.Sprintf("specialization %s does not bind template parameter %s", s.Name, p)
		}
		t, err := model.ParseTypeString(spelling)
		if err != nil {
			return nil, nil, fmt.Sprintf("specialization %s: %v", s.Name, err)
		}
		repl[p] = t
		types = append(types, t)
	}
	return repl, types, ""
}

func (g *gen) spellArgs(types []model.Type, ctx typemap.Ctx) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = g.spell(t, ctx)
	}
	return strings.Join(parts, ", ")
}

// substitute returns a copy of f with template parameters replaced by repl.
func substitute(f *model.Function, repl map[string]model.Type) *model.Function {
	out := *f
	out.TemplateParams = nil
	out.Params = make([]model.Param, len(f.Params))
	for i, p := range f.Params {
		p.Type = p.Type.Substitute(repl)
		out.Params[i] = p
	}
	if f.Return != nil {
		r := f.Return.Substitute(repl)
		out.Return = &r
	}
	return &out
}

// undeclared returns the first type of f the binding file has no declaration for.
func (g *gen) undeclared(f *model.Function, ctx typemap.Ctx) (model.Type, bool) {
	var types []model.Type
	if f.Return != nil {
		types = append(types, *f.Return)
	}
	for _, p := range f.Params {
		types = append(types, p.Type)
	}
	for _, t := range types {
		if !g.m.Declared(t, ctx) {
			return t, true
		}
	}
	return model.Type{}, false
}

// templateFunction wraps a function template once per configured specialization.
func (g *gen) templateFunction(f *model.Function) ([]string, error) {
	specs := g.opts.Specializations[f.QualifiedName()]
	if len(specs) == 0 {
		g.warn(model.WarnTemplate, &f.Decl, "template %s has no configured specialization and is not wrapped", f.QualifiedName())
		return nil, nil
	}
	ctx := typemap.Ctx{Scope: f.Scope}
	var out []string
	for _, s := range specs {
		repl, types, reason := bind(f.TemplateParams, s)
		if reason != "" {
			g.warn(model.WarnTemplate, &f.Decl, "%s", reason)
			continue
		}
		sf := substitute(f, repl)
		if t, ok := g.undeclared(sf, ctx); ok {
			g.warn(model.WarnTemplate, &f.Decl, "specialization %s uses %s, which the binding does not declare", s.Name, t)
			continue
		}
		cl := callable{
			fn:     sf,
			ctx:    ctx,
			name:   s.Name,
			callee: fmt.Sprintf("cpp.%s[%s]", f.Symbol, g.spellArgs(types, ctx)),
		}
		c, reason := g.def(cl)
		if reason != "" {
			g.warn(model.WarnUnsupported, &f.Decl, "specialization %s not wrapped: %s", s.Name, reason)
			continue
		}
		out = append(out, c.String())
	}
	return out, nil
}
