package scanner

import (
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

// classDef reads a class, struct or union definition. fallback names an anonymous struct
// introduced by a typedef. Nested public types are returned ahead of the class.
func (p *parser) classDef(start int, tparams []string, fallback string) (outcome, error) {
	key := p.next()
	if key.Is("union") {
		return p.skip(start, model.WarnSkipped, "union", "union skipped"), nil
	}
	p.skipAttributes()
	name := ""
	if t := p.tok(); t.Kind == lexer.Ident && !t.Is("final") {
		name = p.next().Text
	}
	if p.tok().Is("::") {
		return p.skip(start, model.WarnUnsupported, key.Text+" "+name, "qualified class definition %s skipped", name), nil
	}
	if p.tok().Is("<") {
		return p.skip(start, model.WarnTemplate, key.Text+" "+name, "template specialization %s skipped", name), nil
	}
	if name == "" {
		name = fallback
	}
	if name == "" {
		return p.skip(start, model.WarnUnsupported, "anonymous "+key.Text, "anonymous %s skipped", key.Text), nil
	}
	construct := key.Text + " " + name
	p.accept("final")

	cls := &model.Class{
		Decl:           p.decl(name, p.toks[start]),
		Struct:         key.Is("struct"),
		TemplateParams: tparams,
	}
	if len(tparams) > 0 {
		cls.AddTag(model.TagTemplate)
	}

	if p.accept(":") {
		bases, err := p.bases(cls.Struct, construct)
		if err != nil {
			return outcome{}, err
		}
		if len(bases) > 0 {
			cls.Base = &bases[0]
		}
		if len(bases) > 1 {
			cls.ExtraBases = bases[1:]
			cls.AddTag(model.TagMultipleInheritance)
			p.warnings = append(p.warnings, *p.warning(model.WarnMultipleInheritance, p.toks[start], construct,
				"%s has %d base classes; only %s is modeled", name, len(bases), bases[0]))
		}
	}
	if err := p.expect("{", construct); err != nil {
		return outcome{}, err
	}
	nested, err := p.classBody(cls)
	if err != nil {
		return outcome{}, err
	}
	p.i++ // }

	if !p.accept(";") {
		if t := p.tok(); t.Kind != lexer.Ident && !t.Is("*") && !t.Is("&") {
			return outcome{}, p.errorf(t, construct, "expected ';' after %s, found %s", construct, t)
		}
		// "} instance;" declares a variable as well
		p.skipDeclaration(p.i)
	}
	return outcome{entities: append(nested, cls)}, nil
}

// bases reads a base-clause. Only public bases are returned.
func (p *parser) bases(isStruct bool, construct string) ([]model.Type, error) {
	var out []model.Type
	for {
		p.skipAttributes()
		public := isStruct
		for {
			t := p.tok()
			if t.Is("virtual") {
				p.i++
				continue
			}
			if t.Is("public") || t.Is("protected") || t.Is("private") {
				public = t.Is("public")
				p.i++
				continue
			}
			break
		}
		at := p.tok()
		typ, next, err := model.ParseType(p.toks, p.i)
		if err != nil {
			return nil, p.errorf(at, construct, "expected base class, found %s", at)
		}
		p.i = next
		p.accept("...")
		if public {
			out = append(out, typ)
		}
		if !p.accept(",") {
			return out, nil
		}
	}
}

func (p *parser) classBody(cls *model.Class) ([]model.Entity, error) {
	ctx := &classCtx{class: cls, public: cls.Struct}
	saved := p.scope
	p.scope = append(append([]string(nil), p.scope...), cls.Name)
	defer func() { p.scope = saved }()

	var nested []model.Entity
	for {
		t := p.tok()
		if t.Is("}") {
			break
		}
		if t.Kind == lexer.EOF {
			return nil, p.errorf(t, "class "+cls.Name, "unexpected end of file in class body")
		}
		if p.accessLabel(ctx) {
			continue
		}
		if !ctx.public {
			p.hiddenMember(ctx)
			continue
		}

		start := p.i
		out, err := p.declaration(ctx)
		if err != nil {
			return nil, err
		}
		if p.i == start {
			p.skipDeclaration(start)
			if p.i == start {
				p.i++
			}
		}
		if out.warning != nil {
			p.warnings = append(p.warnings, *out.warning)
		}
		if out.dtor {
			cls.HasDtor = true
			cls.VirtualDtor = cls.VirtualDtor || out.virtualDtor
		}
		if out.pure {
			cls.Abstract = true
		}
		for _, e := range p.dedupe(out.entities) {
			switch e := e.(type) {
			case *model.Function:
				if e.IsConstructor() {
					cls.Ctors = append(cls.Ctors, e)
					continue
				}
				if e.Pure {
					cls.Abstract = true
				}
				cls.Members = append(cls.Members, e)
			case *model.Field:
				cls.Members = append(cls.Members, e)
			default:
				nested = append(nested, e)
			}
		}
	}
	p.dropStaticOverloads(cls)
	return nested, nil
}

// accessLabel consumes "public:", "private:", "protected:" and Qt-style "public slots:",
// "signals:" labels.
func (p *parser) accessLabel(ctx *classCtx) bool {
	t := p.tok()
	if t.Is("public") || t.Is("private") || t.Is("protected") {
		n := 1
		if p.peek(1).Kind == lexer.Ident && p.peek(2).Is(":") {
			n = 2
		}
		if !p.peek(n).Is(":") {
			return false
		}
		ctx.public = t.Is("public")
		p.i += n + 1
		return true
	}
	if t.Kind == lexer.Ident && p.peek(1).Is(":") && (t.Is("signals") || t.Is("Q_SIGNALS") || t.Is("slots") || t.Is("Q_SLOTS")) {
		ctx.public = false
		p.i += 2
		return true
	}
	return false
}

// dropStaticOverloads removes static methods sharing a name with instance methods; a proxy
// attribute cannot be both.
func (p *parser) dropStaticOverloads(cls *model.Class) {
	instance := map[string]bool{}
	for _, f := range cls.Methods() {
		if !f.Static {
			instance[f.Name] = true
		}
	}
	kept := cls.Members[:0]
	for _, m := range cls.Members {
		if f, ok := m.(*model.Function); ok && f.Static && instance[f.Name] {
			p.warnings = append(p.warnings, *p.warning(model.WarnUnsupported, lexer.Token{Pos: f.Pos}, f.QualifiedName(),
				"static overload of instance method %s dropped", f.QualifiedName()))
			continue
		}
		kept = append(kept, m)
	}
	cls.Members = kept
}

func (p *parser) enum(start int) (outcome, error) {
	return p.enumDef(start, "")
}

// enumDef reads "enum [class] [Name] [: type] { ... }". fallback names an anonymous enum
// introduced by a typedef.
func (p *parser) enumDef(start int, fallback string) (outcome, error) {
	p.i++ // enum
	scoped := p.accept("class") || p.accept("struct")
	p.skipAttributes()
	name := ""
	if p.tok().Kind == lexer.Ident {
		name = p.next().Text
	}
	var underlying *model.Type
	if p.accept(":") {
		at := p.tok()
		typ, next, err := model.ParseType(p.toks, p.i)
		if err != nil {
			return outcome{}, p.errorf(at, "enum "+name, "expected underlying type, found %s", at)
		}
		underlying = &typ
		p.i = next
	}
	if p.accept(";") {
		return outcome{}, nil
	}
	construct := "enum " + name
	if err := p.expect("{", construct); err != nil {
		return outcome{}, err
	}
	labels, err := p.enumerators(construct)
	if err != nil {
		return outcome{}, err
	}
	p.i++ // }
	if !p.accept(";") {
		if t := p.tok(); t.Kind != lexer.Ident {
			return outcome{}, p.errorf(t, construct, "expected ';' after %s, found %s", construct, t)
		}
		p.skipDeclaration(p.i)
	}

	if name == "" {
		name = fallback
	}
	if name == "" {
		return outcome{warning: p.warning(model.WarnUnsupported, p.toks[start], "anonymous enum", "anonymous enum skipped")}, nil
	}
	return outcome{entities: []model.Entity{&model.Enum{
		Decl:       p.decl(name, p.toks[start]),
		Scoped:     scoped,
		Underlying: underlying,
		Labels:     labels,
	}}}, nil
}

func (p *parser) enumerators(construct string) ([]model.EnumLabel, error) {
	var labels []model.EnumLabel
	for {
		for p.tok().Kind == lexer.Directive {
			p.i++
		}
		if p.tok().Is("}") {
			return labels, nil
		}
		t := p.next()
		if t.Kind != lexer.Ident {
			return nil, p.errorf(t, construct, "expected enumerator, found %s", t)
		}
		p.skipAttributes()
		label := model.EnumLabel{Name: t.Text}
		if p.accept("=") {
			from := p.i
			p.i = p.expressionEnd("}")
			if p.i == from {
				return nil, p.errorf(p.tok(), construct, "missing value for enumerator %s", t.Text)
			}
			label.Value = model.JoinTokens(p.toks[from:p.i])
		}
		labels = append(labels, label)
		for p.tok().Kind == lexer.Directive {
			p.i++
		}
		if p.accept(",") {
			continue
		}
		if !p.tok().Is("}") {
			return nil, p.errorf(p.tok(), construct, "expected ',' or '}', found %s", p.tok())
		}
	}
}

func (p *parser) typedef(start int) (outcome, error) {
	p.i++ // typedef
	p.skipAttributes()
	t := p.tok()

	if (t.Is("struct") || t.Is("class") || t.Is("union") || t.Is("enum")) && p.isTypeDefinition() {
		alias, tag := p.typedefNames()
		if alias == "" {
			return p.skip(start, model.WarnUnsupported, "typedef", "typedef of an unnamed %s skipped", t.Text), nil
		}
		var (
			out outcome
			err error
		)
		if t.Is("enum") {
			out, err = p.enumDef(p.i, alias)
		} else {
			out, err = p.classDef(p.i, nil, alias)
		}
		if err != nil || out.warning != nil {
			return out, err
		}
		if tag != "" && tag != alias {
			out.entities = append(out.entities, &model.Typedef{
				Decl: p.decl(alias, p.toks[start]),
				Type: model.Type{Name: tag},
			})
		}
		return out, nil
	}

	at := p.tok()
	typ, next, err := model.ParseType(p.toks, p.i)
	if err != nil {
		return p.skip(start, model.WarnUnsupported, "typedef", "typedef skipped: unrecognized type at %s", at), nil
	}
	p.i = next
	if p.tok().Is("(") {
		return p.skip(start, model.WarnUnsupported, "typedef", "function pointer typedef skipped"), nil
	}

	var out []model.Entity
	base := typ
	for {
		cur := base
		for {
			if p.accept("*") {
				cur.Pointers = append(cur.Pointers, model.Pointer{})
			} else if p.accept("&") {
				cur.Ref = model.RefLValue
			} else if p.tok().Is("const") && len(cur.Pointers) > 0 {
				cur.Pointers[len(cur.Pointers)-1].Const = true
				p.i++
			} else {
				break
			}
		}
		n := p.tok()
		if n.Kind != lexer.Ident {
			return outcome{}, p.errorf(n, "typedef", "expected typedef name, found %s", n)
		}
		p.i++
		if p.tok().Is("[") {
			return p.skip(start, model.WarnUnsupported, "typedef "+n.Text, "array typedef %s skipped", n.Text), nil
		}
		out = append(out, &model.Typedef{Decl: p.decl(n.Text, p.toks[start]), Type: cur})
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(";", "typedef"); err != nil {
		return outcome{}, err
	}
	return outcome{entities: out}, nil
}

// typedefNames finds the alias and tag of "typedef struct Tag { ... } Alias;" without
// consuming anything.
func (p *parser) typedefNames() (alias, tag string) {
	j := p.i + 1
	if p.toks[p.i].Is("enum") && (p.toks[j].Is("class") || p.toks[j].Is("struct")) {
		j++
	}
	j = p.skipAttributesAt(j)
	if t := p.toks[j]; t.Kind == lexer.Ident && !t.Is("final") {
		tag = t.Text
	}
	for !p.toks[j].Is("{") && p.toks[j].Kind != lexer.EOF {
		j++
	}
	j = p.skipAttributesAt(p.matching(j) + 1)
	if t := p.toks[j]; t.Kind == lexer.Ident {
		alias = t.Text
	}
	return alias, tag
}

func (p *parser) using(start int, c *classCtx) (outcome, error) {
	p.i++ // using
	if p.accept("namespace") {
		parts, j := p.qualifiedNameAt(p.i)
		if p.impl && len(parts) > 0 {
			p.usingNS = append(p.usingNS, append(append([]string(nil), p.scope...), parts...))
			p.i = j
			return p.silent(p.i), nil
		}
		return p.skip(start, model.WarnSkipped, "using namespace", "using-directive for %s skipped", strings.Join(parts, "::")), nil
	}
	if t := p.tok(); t.Kind == lexer.Ident && (p.peek(1).Is("=") || p.peek(1).Is("[")) {
		p.i++
		p.skipAttributes()
		if err := p.expect("=", "alias "+t.Text); err != nil {
			return outcome{}, err
		}
		at := p.tok()
		typ, next, err := model.ParseType(p.toks, p.i)
		if err != nil {
			return p.skip(start, model.WarnUnsupported, "alias "+t.Text, "alias %s skipped: unrecognized type at %s", t.Text, at), nil
		}
		p.i = next
		if !p.tok().Is(";") {
			return p.skip(start, model.WarnUnsupported, "alias "+t.Text, "alias %s skipped: unsupported type", t.Text), nil
		}
		p.i++
		return outcome{entities: []model.Entity{&model.Typedef{Decl: p.decl(t.Text, p.toks[start]), Type: typ}}}, nil
	}
	return p.skip(start, model.WarnSkipped, "using", "using-declaration skipped"), nil
}

// template reads a template header and the declaration it introduces.
func (p *parser) template(start int, c *classCtx) (outcome, error) {
	p.i++ // template
	if !p.tok().Is("<") {
		return p.skip(start, model.WarnTemplate, "template", "explicit template instantiation skipped"), nil
	}
	if p.peek(1).Is(">") {
		return p.skip(start, model.WarnTemplate, "template", "explicit template specialization skipped"), nil
	}
	params := p.templateParams()
	p.skipAttributes()

	t := p.tok()
	switch {
	case t.Is("template"):
		return p.skip(start, model.WarnTemplate, "template", "nested template declaration skipped"), nil
	case t.Is("requires"):
		return p.skip(start, model.WarnTemplate, "template", "constrained template skipped"), nil
	case t.Is("using"):
		return p.skip(start, model.WarnTemplate, "alias template", "alias template %s skipped", p.peek(1).Text), nil
	case t.Is("class") || t.Is("struct") || t.Is("union"):
		if p.isTypeDefinition() {
			return p.classDef(p.i, params, "")
		}
		return p.silent(start), nil
	case t.Is("friend"):
		return p.skip(start, model.WarnSkipped, "friend", "friend declaration skipped"), nil
	}
	return p.member(start, c, params)
}

// templateParams reads "<typename T, int N = 3, class... Ts>" and returns the parameter names.
func (p *parser) templateParams() []string {
	end := p.skipAngles(p.i)
	var names []string
	depth := 0
	last := ""
	stop := false
	for j := p.i + 1; j < end-1; j++ {
		t := p.toks[j]
		switch {
		case t.Is("(") || t.Is("[") || t.Is("{"):
			j = p.matching(j)
		case t.Is("<"):
			depth++
		case t.Is(">"):
			depth--
		case depth == 0 && t.Is(","):
			names = append(names, last)
			last, stop = "", false
		case depth == 0 && t.Is("="):
			stop = true
		case depth == 0 && !stop && t.Kind == lexer.Ident && !t.Is("typename") && !t.Is("class"):
			last = t.Text
		}
	}
	names = append(names, last)
	p.i = end
	for i, n := range names {
		if n == "" {
			names[i] = fmt.Sprintf("_T%d", i)
		}
	}
	return names
}
