// Package scanner is a forgiving recursive-descent reader for C++ headers.
//
// It models the public declarations of a header: namespaces, classes, functions, enums and
// aliases. Constructs it does not model are skipped with a warning so a single odd
// declaration never blocks the rest of the file.
package scanner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

// outcome is the explicit result of reading one declaration: zero or more entities and an
// optional warning describing what was skipped.
type outcome struct {
	entities []model.Entity
	warning  *model.Warning
	// entities already went through dedupe inside a linkage block
	deduped bool

	// class members only
	dtor        bool
	virtualDtor bool
	pure        bool
}

type parser struct {
	path     string
	toks     []lexer.Token
	i        int
	scope    []string
	warnings []model.Warning
	seen     map[string]bool
	forwards []string

	// implementation mode: function bodies are the interesting part
	impl    bool
	defs    []definition
	usingNS [][]string
}

// ScanHeader reads one header and returns its entities and warnings.
func ScanHeader(path, text string) (*model.Unit, error) {
	p, err := newParser(path, text)
	if err != nil {
		return nil, err
	}
	entities, err := p.declarations(false)
	if err != nil {
		return nil, err
	}
	return &model.Unit{Path: path, Text: text, Entities: entities, Warnings: p.warnings, Forwards: p.forwards}, nil
}

func newParser(path, text string) (*parser, error) {
	toks, err := lexer.Tokenize(text)
	if err != nil {
		var lerr *lexer.Error
		if errors.As(err, &lerr) {
			return nil, &model.ParseError{Path: path, Pos: lerr.Pos, Construct: "source", Msg: lerr.Msg}
		}
		return nil, err
	}
	return &parser{path: path, toks: toks, seen: map[string]bool{}}, nil
}

func (p *parser) tok() lexer.Token { return p.toks[p.i] }

func (p *parser) peek(n int) lexer.Token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() lexer.Token {
	t := p.toks[p.i]
	if t.Kind != lexer.EOF {
		p.i++
	}
	return t
}

func (p *parser) accept(s string) bool {
	if p.tok().Is(s) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(s, construct string) error {
	if p.accept(s) {
		return nil
	}
	return p.errorf(p.tok(), construct, "expected %q, found %s", s, p.tok())
}

func (p *parser) errorf(at lexer.Token, construct, format string, args ...any) *model.ParseError {
	return &model.ParseError{Path: p.path, Pos: at.Pos, Construct: construct, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) warning(kind model.WarningKind, at lexer.Token, construct, format string, args ...any) *model.Warning {
	return &model.Warning{Kind: kind, Path: p.path, Pos: at.Pos, Construct: construct, Message: fmt.Sprintf(format, args...)}
}

// skip moves past the declaration starting at start and reports it as skipped.
func (p *parser) skip(start int, kind model.WarningKind, construct, format string, args ...any) outcome {
	at := p.toks[start]
	p.skipDeclaration(start)
	return outcome{warning: p.warning(kind, at, construct, format, args...)}
}

// silent moves past the declaration starting at start without a warning.
func (p *parser) silent(start int) outcome {
	p.skipDeclaration(start)
	return outcome{}
}

func (p *parser) decl(name string, at lexer.Token) model.Decl {
	return model.Decl{
		Name:   name,
		Scope:  append([]string(nil), p.scope...),
		Header: p.path,
		Pos:    at.Pos,
		Doc:    at.Doc,
	}
}

// declarations reads declarations until EOF, or until the closing '}' of a block when
// inBlock is set. The closing brace is left for the caller.
func (p *parser) declarations(inBlock bool) ([]model.Entity, error) {
	var entities []model.Entity
	for {
		t := p.tok()
		if t.Kind == lexer.EOF {
			if inBlock {
				return nil, p.errorf(t, "block", "unexpected end of file")
			}
			return entities, nil
		}
		if t.Is("}") {
			if inBlock {
				return entities, nil
			}
			return nil, p.errorf(t, "source", "unexpected '}'")
		}
		start := p.i
		out, err := p.declaration(nil)
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
		if out.deduped {
			entities = append(entities, out.entities...)
		} else {
			entities = append(entities, p.dedupe(out.entities)...)
		}
	}
}

// dedupe drops redeclarations identical to an earlier declaration of the same unit.
// Functions that differ only in return type are kept so Build rejects them.
func (p *parser) dedupe(entities []model.Entity) []model.Entity {
	out := entities[:0:0]
	for _, e := range entities {
		var key string
		switch e := e.(type) {
		case *model.Function:
			ret := ""
			if e.Return != nil {
				ret = e.Return.String()
			}
			key = "f " + ret + " " + e.QualifiedName() + e.Signature()
		case *model.Typedef:
			key = "t " + e.QualifiedName() + " " + e.Type.String()
		}
		if key != "" {
			if p.seen[key] {
				d := e.Declaration()
				p.warnings = append(p.warnings, model.Warning{
					Kind: model.WarnDuplicate, Path: p.path, Pos: d.Pos, Construct: d.QualifiedName(),
					Message: fmt.Sprintf("duplicate declaration of %s dropped", d.QualifiedName()),
				})
				continue
			}
			p.seen[key] = true
		}
		out = append(out, e)
	}
	return out
}

// declaration reads one declaration at namespace scope, or inside class c when c is not nil.
func (p *parser) declaration(c *classCtx) (outcome, error) {
	start := p.i
	t := p.tok()

	switch {
	case t.Is(";"):
		p.i++
		return outcome{}, nil
	case t.Kind == lexer.Directive:
		return p.directive(), nil
	}

	if end, ok := p.macroInvocation(); ok {
		p.i = end
		return outcome{warning: p.warning(model.WarnSkipped, t, t.Text, "unknown macro %s skipped", t.Text)}, nil
	}

	p.skipAttributes()
	t = p.tok()

	switch {
	case t.Is("namespace") || t.Is("inline") && p.peek(1).Is("namespace"):
		return p.namespace(start)
	case t.Is("extern") && p.peek(1).Kind == lexer.String:
		return p.linkage(start, c)
	case t.Is("extern") && p.peek(1).Is("template"):
		return p.skip(start, model.WarnTemplate, "template", "explicit template instantiation skipped"), nil
	case t.Is("template"):
		return p.template(start, c)
	case t.Is("typedef"):
		return p.typedef(start)
	case t.Is("using"):
		return p.using(start, c)
	case t.Is("static_assert"):
		return p.skip(start, model.WarnSkipped, "static_assert", "static_assert skipped"), nil
	case t.Is("friend"):
		return p.skip(start, model.WarnSkipped, "friend", "friend declaration skipped"), nil
	case t.Is("class") || t.Is("struct") || t.Is("union"):
		if p.isTypeDefinition() {
			return p.classDef(start, nil, "")
		}
		if p.isForwardDeclaration() {
			p.forward()
			return p.silent(start), nil
		}
	case t.Is("enum"):
		if p.isTypeDefinition() {
			return p.enum(start)
		}
		if p.isForwardDeclaration() {
			return p.silent(start), nil
		}
	}
	return p.member(start, c, nil)
}

func (p *parser) directive() outcome {
	t := p.next()
	if lexer.DirectiveName(t.Text) != "define" {
		return outcome{}
	}
	body := lexer.DirectiveBody(t.Text)
	name := body
	if i := strings.IndexAny(body, " \t("); i >= 0 {
		name = body[:i]
	}
	if strings.TrimSpace(strings.TrimPrefix(body, name)) == "" {
		// include guards and feature flags
		return outcome{}
	}
	return outcome{warning: p.warning(model.WarnSkipped, t, name, "macro definition %s skipped", name)}
}

// namespace reads "namespace a::b { ... }", an inline or anonymous namespace or an alias.
func (p *parser) namespace(start int) (outcome, error) {
	inline := p.accept("inline")
	p.i++ // namespace
	p.skipAttributes()
	head := p.tok()

	if head.Is("{") {
		return p.skip(start, model.WarnSkipped, "anonymous namespace", "anonymous namespace skipped"), nil
	}
	var names []string
	for {
		if p.accept("inline") {
			inline = true
		}
		t := p.next()
		if t.Kind != lexer.Ident {
			return outcome{}, p.errorf(t, "namespace", "expected namespace name, found %s", t)
		}
		names = append(names, t.Text)
		if !p.accept("::") {
			break
		}
	}
	p.skipAttributes()
	if p.tok().Is("=") {
		return p.silent(start), nil
	}
	if err := p.expect("{", "namespace "+strings.Join(names, "::")); err != nil {
		return outcome{}, err
	}

	saved := p.scope
	if !inline || len(names) > 1 {
		p.scope = append(append([]string(nil), p.scope...), names...)
	}
	children, err := p.declarations(true)
	p.scope = saved
	if err != nil {
		return outcome{}, err
	}
	p.i++ // }

	// nest one Namespace per component so every level carries its own scope
	var ns *model.Namespace
	for k := len(names) - 1; k >= 0; k-- {
		d := p.decl(names[k], p.toks[start])
		d.Scope = append(append([]string(nil), saved...), names[:k]...)
		n := &model.Namespace{Decl: d}
		if ns == nil {
			n.Entities = children
		} else {
			n.Entities = []model.Entity{ns}
		}
		ns = n
	}
	return outcome{entities: []model.Entity{ns}}, nil
}

// linkage reads extern "C" / extern "C++" blocks and single declarations.
func (p *parser) linkage(start int, c *classCtx) (outcome, error) {
	p.i += 2
	if !p.accept("{") {
		return p.declaration(c)
	}
	children, err := p.declarations(true)
	if err != nil {
		return outcome{}, err
	}
	p.i++ // }
	return outcome{entities: children, deduped: true}, nil
}

// isTypeDefinition reports whether a class-key or enum at p.i starts a definition:
// "struct X {", "class X : Base", "enum class E : int {", "struct {".
func (p *parser) isTypeDefinition() bool {
	j := p.i + 1
	if p.toks[p.i].Is("enum") && (p.toks[j].Is("class") || p.toks[j].Is("struct")) {
		j++
	}
	j = p.skipAttributesAt(j)
	if p.toks[j].Kind == lexer.Ident && !p.toks[j].Is("final") {
		for p.toks[j].Kind == lexer.Ident && p.toks[j+1].Is("::") {
			j += 2
		}
		j++
		if p.toks[j].Is("<") {
			j = p.skipAngles(j)
		}
	}
	if p.toks[j].Is("final") {
		j++
	}
	return p.toks[j].Is("{") || p.toks[j].Is(":")
}

// forward records the class named by the forward declaration at p.i.
func (p *parser) forward() {
	parts, _ := p.qualifiedNameAt(p.skipAttributesAt(p.i + 1))
	if len(parts) > 0 {
		p.forwards = append(p.forwards, joinScope(p.scope, parts))
	}
}

func (p *parser) isForwardDeclaration() bool {
	j := p.i + 1
	if p.toks[j].Is("class") || p.toks[j].Is("struct") {
		j++
	}
	j = p.skipAttributesAt(j)
	for p.toks[j].Kind == lexer.Ident && p.toks[j+1].Is("::") {
		j += 2
	}
	return p.toks[j].Kind == lexer.Ident && p.toks[j+1].Is(";")
}

// skipDeclaration moves past the declaration starting at start: through its terminating ';'
// or past the block body that ends it. An enclosing '}' is never consumed.
func (p *parser) skipDeclaration(start int) {
	p.i = start
	function := false
	assigned := false
	blockOnly := p.tok().Is("namespace") || p.tok().Is("inline") && p.peek(1).Is("namespace") ||
		p.tok().Is("extern") && p.peek(1).Kind == lexer.String && p.peek(2).Is("{")
	for {
		t := p.tok()
		switch {
		case t.Kind == lexer.EOF, t.Is("}"):
			return
		case t.Is(";"):
			p.i++
			return
		case t.Is("template") && p.peek(1).Is("<"):
			p.i = p.skipAngles(p.i + 1)
			continue
		case t.Is("="):
			assigned = true
		case t.Is("(") || t.Is("["):
			if t.Is("(") && !assigned {
				function = true
			}
			p.i = p.matching(p.i) + 1
			continue
		case t.Is("{"):
			p.i = p.matching(p.i) + 1
			if p.accept(";") || blockOnly {
				return
			}
			if function && !p.tok().Is("{") && !p.tok().Is(",") {
				return
			}
			continue
		}
		p.i++
	}
}

// matching returns the index of the bracket closing the one at i.
func (p *parser) matching(i int) int {
	depth := 0
	for j := i; j < len(p.toks); j++ {
		t := p.toks[j]
		if t.Kind != lexer.Punct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(p.toks) - 1
}

// skipAngles returns the index after the '>' closing the '<' at i. Brackets inside are
// skipped whole.
func (p *parser) skipAngles(i int) int {
	depth := 0
	for j := i; j < len(p.toks); j++ {
		t := p.toks[j]
		switch {
		case t.Kind == lexer.EOF || t.Is(";") || t.Is("{") || t.Is("}"):
			return j
		case t.Is("(") || t.Is("["):
			j = p.matching(j)
		case t.Is("<"):
			depth++
		case t.Is(">"):
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(p.toks) - 1
}

// isMacroName matches the conventional spelling of macros: MYLIB_API, Q_OBJECT, DECLARE.
func isMacroName(s string) bool {
	if len(s) < 2 {
		return false
	}
	upper := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c == '_' || (c >= '0' && c <= '9'):
		default:
			return false
		}
	}
	return upper
}

// macroInvocation reports whether a bare macro use starts at p.i: "NAME" or "NAME(...)"
// with nothing but an optional ';' after it on the line. It returns the index after it.
func (p *parser) macroInvocation() (int, bool) {
	t := p.tok()
	if t.Kind != lexer.Ident || !isMacroName(t.Text) {
		return 0, false
	}
	j := p.i + 1
	if p.toks[j].Is("(") && !p.toks[j].Newline {
		j = p.matching(j) + 1
	}
	n := p.toks[j]
	switch {
	case n.Is(";") && !n.Newline:
		return j + 1, true
	case n.Newline || n.Kind == lexer.EOF || n.Is("}"):
		return j, true
	}
	return 0, false
}

var declKeywords = map[string]bool{
	"const": true, "volatile": true, "static": true, "inline": true, "virtual": true,
	"explicit": true, "constexpr": true, "consteval": true, "extern": true, "mutable": true,
	"thread_local": true, "typename": true, "class": true, "struct": true, "enum": true,
	"union": true, "template": true, "typedef": true, "using": true, "friend": true,
	"namespace": true, "unsigned": true, "signed": true, "operator": true,
}

// attributeMacroAt reports whether toks[j] is an export or attribute macro in front of a
// declaration ("MYLIB_API int f();", "DEPRECATED(\"x\") void g();") and returns the index
// after it.
func (p *parser) attributeMacroAt(j int) (int, bool) {
	t := p.toks[j]
	if t.Kind != lexer.Ident || !isMacroName(t.Text) {
		return j, false
	}
	n := p.toks[j+1]
	if n.Newline {
		return j, false
	}
	if n.Is("(") {
		end := p.matching(j+1) + 1
		after := p.toks[end]
		if after.Kind == lexer.Ident && !after.Newline {
			return end, true
		}
		return j, false
	}
	if n.Kind != lexer.Ident {
		return j, false
	}
	if declKeywords[n.Text] || model.IsBuiltinWord(n.Text) {
		return j + 1, true
	}
	switch n2 := p.toks[j+2]; {
	case n2.Kind == lexer.Ident, n2.Is("::"), n2.Is("<"), n2.Is("*"), n2.Is("&"), n2.Is("&&"), n2.Is("{"), n2.Is(":"):
		return j + 1, true
	}
	return j, false
}

func (p *parser) skipAttributesAt(j int) int {
	for {
		t := p.toks[j]
		switch {
		case t.Is("[") && p.toks[j+1].Is("["):
			j = p.matching(j) + 1
		case t.Is("__attribute__") || t.Is("__declspec") || t.Is("alignas"):
			if p.toks[j+1].Is("(") {
				j = p.matching(j+1) + 1
			} else {
				j++
			}
		default:
			end, ok := p.attributeMacroAt(j)
			if !ok {
				return j
			}
			j = end
		}
	}
}

// skipAttributes drops [[attributes]], __attribute__((...)), __declspec(...) and export macros.
func (p *parser) skipAttributes() {
	p.i = p.skipAttributesAt(p.i)
}
