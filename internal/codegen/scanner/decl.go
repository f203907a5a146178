package scanner

import (
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

type classCtx struct {
	class  *model.Class
	public bool
}

type specifiers struct {
	static  bool
	virtual bool
	extern  bool
	cexpr   bool
}

// definition is an out-of-line function body found in an implementation file.
type definition struct {
	scope  []string
	using  [][]string
	name   []string
	params []model.Param
	konst  bool
	varg   bool
	pos    lexer.Pos
}

func (p *parser) specifiers() specifiers {
	var s specifiers
	for {
		p.skipAttributes()
		t := p.tok()
		switch {
		case t.Is("static"):
			s.static = true
		case t.Is("virtual"):
			s.virtual = true
		case t.Is("explicit"):
			if p.peek(1).Is("(") {
				p.i = p.matching(p.i + 1)
			}
		case t.Is("constexpr") || t.Is("consteval") || t.Is("constinit"):
			s.cexpr = true
		case t.Is("extern") && p.peek(1).Kind != lexer.String:
			s.extern = true
		case t.Is("inline") || t.Is("__inline") || t.Is("__forceinline") || t.Is("mutable") ||
			t.Is("thread_local") || t.Is("register"):
		default:
			return s
		}
		p.i++
	}
}

// qualifiedNameAt reads "a::B<int>::c" at j and returns its components without template
// arguments. "~X" and a trailing "operator" are returned as components.
func (p *parser) qualifiedNameAt(j int) ([]string, int) {
	var parts []string
	if p.toks[j].Is("::") {
		j++
	}
	for {
		t := p.toks[j]
		switch {
		case t.Is("~") && p.toks[j+1].Kind == lexer.Ident:
			parts = append(parts, "~"+p.toks[j+1].Text)
			j += 2
		case t.Is("operator"):
			return append(parts, "operator"), j + 1
		case t.Kind == lexer.Ident:
			parts = append(parts, t.Text)
			j++
		default:
			return parts, j
		}
		if p.toks[j].Is("<") {
			if after := p.skipAngles(j); p.toks[after].Is("::") {
				j = after
			}
		}
		if !p.toks[j].Is("::") {
			return parts, j
		}
		j++
	}
}

func (p *parser) isConstructor(c *classCtx) bool {
	if c == nil {
		return false
	}
	t := p.tok()
	if t.Kind != lexer.Ident || t.Text != c.class.Name {
		return false
	}
	n := p.peek(1)
	if n.Is("<") {
		return p.toks[p.skipAngles(p.i+1)].Is("(")
	}
	return n.Is("(")
}

// member reads an ordinary declaration: function, constructor, destructor, field or variable.
// start is the index of the first token of the whole declaration, including any template header.
func (p *parser) member(start int, c *classCtx, tparams []string) (outcome, error) {
	spec := p.specifiers()
	t := p.tok()

	switch {
	case t.Is("~"):
		return p.destructor(start, c, spec)
	case t.Is("operator"):
		return p.skip(start, model.WarnSkipped, "operator", "conversion operator skipped"), nil
	case p.isConstructor(c):
		name := p.next().Text
		if p.tok().Is("<") {
			p.i = p.skipAngles(p.i)
		}
		if len(tparams) > 0 {
			return p.skip(start, model.WarnTemplate, "constructor "+name, "template constructor of %s skipped", name), nil
		}
		return p.functionOutcome(start, c, spec, nil, name, nil, tparams)
	}

	// out-of-line constructor or destructor: "A::A(int x) : x_(x) {}", "A::~A() {}"
	if parts, j := p.qualifiedNameAt(p.i); len(parts) >= 2 && p.toks[j].Is("(") {
		last, owner := parts[len(parts)-1], parts[len(parts)-2]
		if last == owner || last == "~"+owner {
			if c != nil || !p.impl || last != owner {
				return p.silent(start), nil
			}
			p.i = j
			return p.functionOutcome(start, c, spec, nil, last, parts[:len(parts)-1], tparams)
		}
	}

	typ, next, err := model.ParseType(p.toks, p.i)
	if err != nil {
		return p.skip(start, model.WarnSkipped, "declaration", "unrecognized declaration skipped"), nil
	}
	p.i = next

	if p.tok().Is("(") {
		return p.skip(start, model.WarnUnsupported, "function pointer", "function pointer declaration skipped"), nil
	}
	parts, j := p.qualifiedNameAt(p.i)
	if len(parts) == 0 {
		return p.skip(start, model.WarnSkipped, "declaration", "declaration without a name skipped"), nil
	}
	name := parts[len(parts)-1]
	if name == "operator" {
		return p.skip(start, model.WarnSkipped, "operator", "operator overload skipped"), nil
	}
	qual := parts[:len(parts)-1]
	p.i = j

	if len(qual) > 0 && (c != nil || !p.impl) {
		// definition of something declared elsewhere
		return p.silent(start), nil
	}

	if p.tok().Is("(") {
		ret := typ
		return p.functionOutcome(start, c, spec, &ret, name, qual, tparams)
	}
	if len(tparams) > 0 {
		return p.skip(start, model.WarnTemplate, "variable "+name, "variable template %s skipped", name), nil
	}
	return p.fields(start, c, spec, typ, name)
}

func (p *parser) functionOutcome(start int, c *classCtx, spec specifiers, ret *model.Type, name string, qual, tparams []string) (outcome, error) {
	anchor := p.toks[start]
	construct := "function " + name
	if c != nil {
		construct = "method " + c.class.Name + "::" + name
	}

	params, variadic, unsupported, err := p.params(construct)
	if err != nil {
		return outcome{}, err
	}
	f := &model.Function{
		Decl:           p.decl(name, anchor),
		Return:         ret,
		Params:         params,
		Variadic:       variadic,
		Static:         spec.static,
		Virtual:        spec.virtual,
		TemplateParams: tparams,
	}
	body, err := p.functionTail(f, construct)
	if err != nil {
		return outcome{}, err
	}

	if p.impl {
		if c == nil && body {
			p.defs = append(p.defs, definition{
				scope:  append([]string(nil), p.scope...),
				using:  append([][]string(nil), p.usingNS...),
				name:   append(append([]string(nil), qual...), name),
				params: params,
				konst:  f.Const,
				varg:   variadic,
				pos:    anchor.Pos,
			})
		}
		return outcome{}, nil
	}

	if unsupported != "" {
		return outcome{warning: p.warning(model.WarnUnsupported, anchor, construct, "%s skipped: %s", construct, unsupported)}, nil
	}
	if f.Deleted && ret != nil {
		return outcome{}, nil
	}
	if len(tparams) > 0 {
		if c != nil {
			return outcome{warning: p.warning(model.WarnTemplate, anchor, construct, "member template %s skipped", name)}, nil
		}
		f.AddTag(model.TagTemplate)
	}
	if spec.static && c == nil {
		// internal linkage at namespace scope
		f.Static = false
	}
	return outcome{entities: []model.Entity{f}}, nil
}

// params reads a parenthesized parameter list. A non-empty unsupported reports a parameter the
// model cannot represent; the list is still consumed.
func (p *parser) params(construct string) ([]model.Param, bool, string, error) {
	if err := p.expect("(", construct); err != nil {
		return nil, false, "", err
	}
	if p.accept(")") {
		return nil, false, "", nil
	}
	if p.tok().Is("void") && p.peek(1).Is(")") {
		p.i += 2
		return nil, false, "", nil
	}

	var (
		params      []model.Param
		variadic    bool
		unsupported string
	)
	for {
		p.skipAttributes()
		if p.accept("...") {
			variadic = true
			return params, variadic, unsupported, p.expect(")", "parameter list of "+construct)
		}
		at := p.tok()
		typ, next, err := model.ParseType(p.toks, p.i)
		if err != nil {
			return nil, false, "", p.errorf(at, "parameter list of "+construct, "expected parameter type, found %s", at)
		}
		p.i = next

		if p.tok().Is("(") {
			p.i = p.matching(p.i) + 1
			if p.tok().Is("(") {
				p.i = p.matching(p.i) + 1
			}
			unsupported = "function pointer parameter"
		}
		if p.accept("...") {
			unsupported = "parameter pack"
		}
		name := ""
		if p.tok().Kind == lexer.Ident {
			name = p.next().Text
		}
		for p.tok().Is("[") {
			typ.Pointers = append(typ.Pointers, model.Pointer{})
			p.i = p.matching(p.i) + 1
		}
		p.skipAttributes()

		param := model.Param{Name: name, Type: typ}
		if p.accept("=") {
			from := p.i
			p.i = p.expressionEnd(")")
			if p.i == from {
				return nil, false, "", p.errorf(p.tok(), "parameter list of "+construct, "missing default argument for %q", name)
			}
			param.Default = model.JoinTokens(p.toks[from:p.i])
		}
		params = append(params, param)

		if p.accept(",") {
			continue
		}
		if p.accept(")") {
			return params, variadic, unsupported, nil
		}
		return nil, false, "", p.errorf(p.tok(), "parameter list of "+construct, "expected ',' or ')', found %s", p.tok())
	}
}

// expressionEnd returns the index of the ',' or closer ending the expression at p.i.
// Angle brackets count only directly after a name, so "std::vector<int, int>()" stays whole.
func (p *parser) expressionEnd(closer string) int {
	angle := 0
	for j := p.i; j < len(p.toks); j++ {
		t := p.toks[j]
		switch {
		case t.Kind == lexer.EOF || t.Is(";"):
			return j
		case t.Is("(") || t.Is("[") || t.Is("{"):
			j = p.matching(j)
		case t.Is("<") && j > 0 && p.toks[j-1].Kind == lexer.Ident:
			angle++
		case t.Is(">") && angle > 0:
			angle--
		case angle == 0 && (t.Is(",") || t.Is(closer)):
			return j
		}
	}
	return len(p.toks) - 1
}

// functionTail reads qualifiers, "= 0/default/delete" and the terminating ';' or body.
// It reports whether a body was present.
func (p *parser) functionTail(f *model.Function, construct string) (bool, error) {
	for {
		t := p.tok()
		switch {
		case t.Is("const"):
			f.Const = true
			p.i++
		case t.Is("volatile") || t.Is("&") || t.Is("&&") || t.Is("final"):
			p.i++
		case t.Is("override"):
			f.Virtual = true
			p.i++
		case t.Is("noexcept"):
			p.i++
			f.Noexcept = true
			if p.tok().Is("(") {
				end := p.matching(p.i)
				f.Noexcept = model.JoinTokens(p.toks[p.i+1:end]) != "false"
				p.i = end + 1
			}
		case t.Is("throw") && p.peek(1).Is("("):
			end := p.matching(p.i + 1)
			f.Noexcept = end == p.i+2
			p.i = end + 1
		case t.Is("->"):
			p.i++
			rt, next, err := model.ParseType(p.toks, p.i)
			if err != nil {
				return false, p.errorf(p.tok(), construct, "malformed trailing return type")
			}
			f.Return = &rt
			p.i = next
		case t.Is("requires"):
			p.i++
			for !p.tok().Is(";") && !p.tok().Is("{") && !p.tok().Is("=") && p.tok().Kind != lexer.EOF {
				if p.tok().Is("(") {
					p.i = p.matching(p.i)
				}
				p.i++
			}
		case t.Is("[") && p.peek(1).Is("[") || t.Is("__attribute__"):
			p.skipAttributes()
		case t.Kind == lexer.Ident && isMacroName(t.Text) && !t.Newline:
			p.i++
			if p.tok().Is("(") {
				p.i = p.matching(p.i) + 1
			}
		default:
			return p.functionEnd(f, construct)
		}
	}
}

func (p *parser) functionEnd(f *model.Function, construct string) (bool, error) {
	switch {
	case p.accept("="):
		switch t := p.next(); {
		case t.Kind == lexer.Number && t.Text == "0":
			f.Pure = true
		case t.Is("default"):
			f.Defaulted = true
		case t.Is("delete"):
			f.Deleted = true
		default:
			return false, p.errorf(t, construct, "expected 0, default or delete after '=', found %s", t)
		}
		return false, p.expect(";", construct)
	case p.accept(";"):
		return false, nil
	case p.tok().Is("{") || p.tok().Is(":") || p.tok().Is("try"):
		p.skipBody()
		return true, nil
	}
	return false, p.errorf(p.tok(), construct, "expected ';' or function body, found %s", p.tok())
}

// skipBody moves past a function body, including a constructor initializer list and
// function-try-block handlers.
func (p *parser) skipBody() {
	try := p.accept("try")
	if p.accept(":") {
		for {
			for p.tok().Kind == lexer.Ident || p.tok().Is("::") || p.tok().Is("<") {
				if p.tok().Is("<") {
					p.i = p.skipAngles(p.i)
					continue
				}
				p.i++
			}
			if p.tok().Is("(") || p.tok().Is("{") {
				p.i = p.matching(p.i) + 1
			}
			p.accept("...")
			if !p.accept(",") {
				break
			}
		}
	}
	if p.tok().Is("{") {
		p.i = p.matching(p.i) + 1
	}
	for try && p.accept("catch") {
		if p.tok().Is("(") {
			p.i = p.matching(p.i) + 1
		}
		if p.tok().Is("{") {
			p.i = p.matching(p.i) + 1
		}
	}
	p.accept(";")
}

func (p *parser) destructor(start int, c *classCtx, spec specifiers) (outcome, error) {
	if c == nil {
		return p.silent(start), nil
	}
	p.i++ // ~
	name := p.next().Text
	construct := "destructor ~" + name
	if !p.tok().Is("(") {
		return outcome{}, p.errorf(p.tok(), construct, "expected '(', found %s", p.tok())
	}
	p.i = p.matching(p.i) + 1
	f := &model.Function{}
	if _, err := p.functionTail(f, construct); err != nil {
		return outcome{}, err
	}
	return outcome{dtor: !f.Deleted, virtualDtor: spec.virtual || f.Virtual, pure: f.Pure}, nil
}

// fields reads the declarators of a data declaration. Outside a class the declaration is a
// variable and is skipped.
func (p *parser) fields(start int, c *classCtx, spec specifiers, typ model.Type, name string) (outcome, error) {
	if c == nil {
		return p.skip(start, model.WarnSkipped, "variable "+name, "global variable %s skipped", name), nil
	}
	if spec.static || spec.cexpr {
		return p.skip(start, model.WarnUnsupported, "field "+name, "static data member %s skipped", name), nil
	}

	base := typ.Bare()
	base.Const = typ.Const
	anchor := p.toks[start]
	var out []model.Entity
	for {
		if p.tok().Is("[") {
			return p.skip(start, model.WarnUnsupported, "field "+name, "array field %s skipped", name), nil
		}
		p.skipAttributes()
		if p.accept(":") {
			// bitfield width
			p.i = p.expressionEnd(";")
		}
		if p.accept("=") {
			p.i = p.expressionEnd(";")
		} else if p.tok().Is("{") {
			p.i = p.matching(p.i) + 1
		}
		d := p.decl(name, anchor)
		out = append(out, &model.Field{Decl: d, Type: typ})

		if !p.accept(",") {
			break
		}
		typ = base
		typ.Pointers = nil
	ptrs:
		for {
			switch t := p.tok(); {
			case t.Is("*"):
				typ.Pointers = append(typ.Pointers, model.Pointer{})
			case t.Is("&"):
				typ.Ref = model.RefLValue
			case t.Is("&&"):
				typ.Ref = model.RefRValue
			case t.Is("const") && len(typ.Pointers) > 0:
				typ.Pointers[len(typ.Pointers)-1].Const = true
			default:
				break ptrs
			}
			p.i++
		}
		anchor = p.tok()
		if anchor.Kind != lexer.Ident {
			return outcome{}, p.errorf(anchor, "field declaration", "expected field name, found %s", anchor)
		}
		name = p.next().Text
	}
	if err := p.expect(";", "field "+name); err != nil {
		return outcome{}, err
	}
	return outcome{entities: out}, nil
}

// hiddenMember consumes a private or protected member. It still records constructors, which
// suppress the implicit default constructor, and pure virtual functions, which make the
// class abstract.
func (p *parser) hiddenMember(c *classCtx) {
	start := p.i
	if p.tok().Kind == lexer.Directive {
		p.i++
		return
	}
	if end, ok := p.macroInvocation(); ok {
		p.i = end
		return
	}
	p.skipAttributes()
	p.specifiers()
	ctor := p.isConstructor(c)
	at := p.tok()
	p.skipDeclaration(start)
	if p.i == start {
		p.i++
	}
	decl := p.toks[start:p.i]
	if ctor {
		c.class.Ctors = append(c.class.Ctors, &model.Function{Decl: p.decl(c.class.Name, at), Deleted: true})
	}
	if n := len(decl); n >= 3 && decl[n-1].Is(";") && decl[n-2].Text == "0" && decl[n-3].Is("=") {
		for _, t := range decl {
			if t.Is("virtual") {
				c.class.Abstract = true
				break
			}
		}
	}
}

// joinScope is "a::b" for ["a", "b"].
func joinScope(parts ...[]string) string {
	var all []string
	for _, p := range parts {
		all = append(all, p...)
	}
	return strings.Join(all, "::")
}
