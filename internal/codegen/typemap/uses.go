package typemap

import (
	"fmt"
	"strconv"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

// Use is one place a type is spelled in the generated files.
type Use struct {
	Type   model.Type
	Ctx    Ctx
	Entity model.Entity
	// Role describes the use: "return value", "parameter x", "field y", "alias".
	Role string
}

// Uses calls fn for every type use in mod, in source order.
func Uses(mod *model.Module, fn func(Use)) {
	for _, e := range mod.Entities {
		switch e := e.(type) {
		case *model.Function:
			functionUses(e, fn)
		case *model.Class:
			for _, f := range e.Constructors() {
				functionUses(f, fn)
			}
			for _, mem := range e.Members {
				switch mem := mem.(type) {
				case *model.Function:
					functionUses(mem, fn)
				case *model.Field:
					fn(Use{Type: mem.Type, Ctx: MemberCtx(e, mem), Entity: mem, Role: "field " + mem.Name})
				}
			}
		case *model.Typedef:
			fn(Use{Type: e.Type, Ctx: CtxOf(e), Entity: e, Role: "alias"})
		}
	}
}

func functionUses(f *model.Function, fn func(Use)) {
	ctx := CtxOf(f)
	if f.Return != nil {
		fn(Use{Type: *f.Return, Ctx: ctx, Entity: f, Role: "return value"})
	}
	for i, p := range f.Params {
		name := p.Name
		if name == "" {
			name = strconv.Itoa(i + 1)
		}
		fn(Use{Type: p.Type, Ctx: ctx, Entity: f, Role: "parameter " + name})
	}
}

// Unresolved returns one warning per distinct type of a function or field that has no host
// mapping, in first-use order. Types depending on template parameters are not reported.
func Unresolved(mod *model.Module, m *Mapper) []model.Warning {
	var out []model.Warning
	seen := map[string]bool{}
	Uses(mod, func(u Use) {
		if _, ok := u.Entity.(*model.Typedef); ok || dependsOn(u.Type, u.Ctx) {
			return
		}
		h := m.Resolve(u.Type, u.Ctx)
		if h.Kind != KindOpaque {
			return
		}
		key := u.Type.Decay().String()
		if seen[key] {
			return
		}
		seen[key] = true
		d := u.Entity.Declaration()
		out = append(out, model.Warning{
			Kind:      model.WarnUnresolvedType,
			Path:      d.Header,
			Pos:       d.Pos,
			Construct: d.QualifiedName(),
			Message:   fmt.Sprintf("type %s of %s has no host mapping, passed as an opaque handle", u.Type, u.Role),
		})
	})
	return out
}

// dependsOn reports whether t mentions a template parameter of ctx.
func dependsOn(t model.Type, ctx Ctx) bool {
	found := false
	t.Names(func(n model.Type) {
		if len(n.Args) == 0 && ctx.isParam(n.Name) {
			found = true
		}
	})
	return found
}
