package scanner

import (
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

// Confirm reads an implementation file and checks its out-of-line function definitions
// against the declarations of mod. A definition whose name is declared but whose parameter
// types match none of the declarations yields a signature-mismatch warning. The module is
// not modified.
func Confirm(mod *model.Module, path, text string) ([]model.Warning, error) {
	p, err := newParser(path, text)
	if err != nil {
		return nil, err
	}
	p.impl = true
	if _, err := p.declarations(false); err != nil {
		return nil, err
	}

	declared := map[string][]*model.Function{}
	for _, f := range mod.Functions() {
		declared[f.QualifiedName()] = append(declared[f.QualifiedName()], f)
	}
	for _, c := range mod.Classes() {
		for _, f := range c.Methods() {
			declared[f.QualifiedName()] = append(declared[f.QualifiedName()], f)
		}
		for _, f := range c.Constructors() {
			declared[f.QualifiedName()] = append(declared[f.QualifiedName()], f)
		}
	}

	var warnings []model.Warning
	for _, d := range p.defs {
		name, fns := resolveDefinition(d, declared)
		if len(fns) == 0 {
			continue
		}
		want := signatureKey(d.params, d.konst, d.varg)
		matched := false
		var candidates []string
		for _, f := range fns {
			if signatureKey(f.Params, f.Const, f.Variadic) == want {
				matched = true
				break
			}
			candidates = append(candidates, f.Signature())
		}
		if matched {
			continue
		}
		def := &model.Function{Params: d.params, Const: d.konst, Variadic: d.varg}
		warnings = append(warnings, model.Warning{
			Kind:      model.WarnSignatureMismatch,
			Path:      path,
			Pos:       d.pos,
			Construct: name,
			Message: fmt.Sprintf("definition %s%s matches no declaration (declared: %s)",
				name, def.Signature(), strings.Join(candidates, ", ")),
		})
	}
	return warnings, nil
}

// resolveDefinition finds the declarations a definition refers to, trying the enclosing
// namespaces innermost first and then active using-directives.
func resolveDefinition(d definition, declared map[string][]*model.Function) (string, []*model.Function) {
	for i := len(d.scope); i >= 0; i-- {
		q := joinScope(d.scope[:i], d.name)
		if fns := declared[q]; len(fns) > 0 {
			return q, fns
		}
	}
	for _, ns := range d.using {
		q := joinScope(ns, d.name)
		if fns := declared[q]; len(fns) > 0 {
			return q, fns
		}
	}
	return "", nil
}

// signatureKey normalizes parameter types the way C++ matches a definition to its
// declaration: top-level const on by-value parameters is ignored and names are compared
// unqualified.
func signatureKey(params []model.Param, konst, variadic bool) string {
	parts := make([]string, 0, len(params)+1)
	for _, p := range params {
		t := p.Type
		if t.Ref == model.RefNone {
			t = t.Decay()
		}
		parts = append(parts, unqualified(t).String())
	}
	if variadic {
		parts = append(parts, "...")
	}
	key := strings.Join(parts, ",")
	if konst {
		key += " const"
	}
	return key
}

func unqualified(t model.Type) model.Type {
	if t.Literal {
		return t
	}
	out := t
	out.Name = model.LeafName(t.Name)
	if len(t.Args) > 0 {
		out.Args = make([]model.Type, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = unqualified(a)
		}
	}
	return out
}
