// Package typemap maps C++ types onto Python host types and spells them in the Cython
// dialect shared by the binding and wrapper files.
package typemap

import (
	"fmt"
	"slices"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

// maxTypedefDepth bounds typedef chains; longer chains are treated as opaque.
const maxTypedefDepth = 16

// Ctx is the lexical context of a type use.
type Ctx struct {
	// Scope is the scope names are looked up from, innermost last.
	Scope []string
	// Params are the template parameter names visible at the use.
	Params []string
}

func (c Ctx) isParam(name string) bool { return slices.Contains(c.Params, name) }

// CtxOf returns the lookup context of types used by e. Class members include the
// template parameters of their class.
func CtxOf(e model.Entity) Ctx {
	d := e.Declaration()
	ctx := Ctx{Scope: d.Scope}
	switch e := e.(type) {
	case *model.Function:
		ctx.Params = append(ctx.Params, e.TemplateParams...)
		if e.Owner != nil {
			ctx.Params = append(ctx.Params, e.Owner.TemplateParams...)
		}
	case *model.Class:
		ctx.Scope = append(append([]string(nil), d.Scope...), d.Name)
		ctx.Params = e.TemplateParams
	}
	return ctx
}

// MemberCtx returns the lookup context of a member of c.
func MemberCtx(c *model.Class, member model.Entity) Ctx {
	ctx := CtxOf(member)
	if _, ok := member.(*model.Field); ok {
		ctx.Params = c.TemplateParams
	}
	return ctx
}

// Opaque is a C++ type the binding file declares as an opaque class.
type Opaque struct {
	Symbol string
	CName  string
}

// Mapper resolves C++ types to host types. It is immutable once bound with WithModel and
// safe for concurrent use.
type Mapper struct {
	overrides map[string]HostType
	mod       *model.Module
	opaques   *linkedhashmap.Map
}

// New creates a mapper with the given override table, keyed by C++ type spelling.
func New(overrides map[string]string) (*Mapper, error) {
	m := &Mapper{overrides: make(map[string]HostType, len(overrides))}
	for key, host := range overrides {
		t, err := model.ParseTypeString(key)
		if err != nil {
			return nil, fmt.Errorf("type override %q: %w", key, err)
		}
		h, err := ParseHostType(host)
		if err != nil {
			return nil, fmt.Errorf("type override %q: %w", key, err)
		}
		m.overrides[t.String()] = h
	}
	return m, nil
}

// WithModel returns a copy of m bound to mod's typedefs, enums and classes. Opaque types used
// by mod are registered in first-use order.
func (m *Mapper) WithModel(mod *model.Module) *Mapper {
	bound := &Mapper{overrides: m.overrides, mod: mod, opaques: linkedhashmap.New()}
	used := map[string]bool{}
	Uses(mod, func(u Use) {
		bound.opaqueNames(u.Type, u.Ctx, func(cname string) {
			if _, ok := bound.opaques.Get(cname); ok {
				return
			}
			sym := OpaqueSymbol(cname)
			for used[sym] || mod.Lookup(sym, nil) != nil {
				sym += "_"
			}
			used[sym] = true
			bound.opaques.Put(cname, sym)
		})
	})
	return bound
}

// opaqueNames calls fn with the C++ name of every opaque type spelled by t. Arguments of an
// opaque template are part of its name and are not visited.
func (m *Mapper) opaqueNames(t model.Type, ctx Ctx, fn func(cname string)) {
	if t.Literal {
		return
	}
	if m.needsOpaque(t, ctx) {
		fn(m.opaqueCName(t, ctx))
		return
	}
	for _, a := range t.Args {
		m.opaqueNames(a, ctx, fn)
	}
}

// Declared reports whether every opaque type t spells was registered by WithModel, so the
// binding file declares it.
func (m *Mapper) Declared(t model.Type, ctx Ctx) bool {
	ok := true
	m.opaqueNames(t, ctx, func(cname string) {
		if m.opaques == nil {
			ok = false
			return
		}
		if _, found := m.opaques.Get(cname); !found {
			ok = false
		}
	})
	return ok
}

// Opaques returns the opaque declarations registered by WithModel in first-use order.
func (m *Mapper) Opaques() []Opaque {
	if m.opaques == nil {
		return nil
	}
	out := make([]Opaque, 0, m.opaques.Size())
	it := m.opaques.Iterator()
	for it.Next() {
		out = append(out, Opaque{CName: it.Key().(string), Symbol: it.Value().(string)})
	}
	return out
}

func (m *Mapper) lookup(name string, scope []string) model.Entity {
	if m.mod == nil {
		return nil
	}
	return m.mod.Lookup(name, scope)
}

// Map resolves t as seen from the global scope. It never fails; types without a mapping are
// KindOpaque.
func (m *Mapper) Map(t model.Type) HostType {
	return m.Resolve(t, Ctx{})
}

// Resolve resolves t as seen from ctx.
func (m *Mapper) Resolve(t model.Type, ctx Ctx) HostType {
	h := m.resolve(t, ctx, 0)
	h.Native = t
	return h
}

func (m *Mapper) resolve(t model.Type, ctx Ctx, depth int) HostType {
	opaque := HostType{Kind: KindOpaque, Native: t}
	if depth > maxTypedefDepth {
		return opaque
	}
	if h, ok := m.override(t); ok {
		h.Native = t
		return h
	}
	if t.Literal || len(t.Args) == 0 && ctx.isParam(t.Name) {
		return opaque
	}
	ptrs := len(t.Pointers)

	if bi, ok := lookupBuiltin(t.Name); ok && len(t.Args) == 0 {
		switch {
		case ptrs == 0 && !(bi.kind == KindVoid && t.Ref != model.RefNone):
			return HostType{Kind: bi.kind, Native: t}
		case ptrs == 1 && t.Name == "char" && t.Ref == model.RefNone:
			return HostType{Kind: KindStr, Native: t, CString: true}
		}
		return opaque
	}

	if c, ok := containerOf(t); ok {
		if ptrs > 0 {
			return opaque
		}
		h := HostType{Kind: c.kind, Native: t, Manual: !c.auto}
		for _, a := range t.Args {
			elem := m.resolve(a, ctx, depth)
			elem.Native = a
			if !elementConvertible(elem) {
				return opaque
			}
			h.Elems = append(h.Elems, elem)
		}
		return h
	}

	switch e := m.lookup(t.Name, ctx.Scope).(type) {
	case *model.Typedef:
		if len(t.Args) > 0 {
			return opaque
		}
		h := m.resolve(e.Type.Combine(t), Ctx{Scope: e.Scope}, depth+1)
		h.Native = t
		return h
	case *model.Enum:
		if ptrs == 0 && len(t.Args) == 0 {
			return HostType{Kind: KindEnum, Native: t, Enum: e}
		}
	case *model.Class:
		if e.IsTemplate() || len(t.Args) > 0 || ptrs > 1 {
			return opaque
		}
		return HostType{Kind: KindClass, Native: t, Class: e, Pointer: ptrs == 1}
	}
	return opaque
}

// override looks t up in the override table by its exact spelling, then without top-level
// const and reference.
func (m *Mapper) override(t model.Type) (HostType, bool) {
	if len(m.overrides) == 0 {
		return HostType{}, false
	}
	if h, ok := m.overrides[t.String()]; ok {
		return h, true
	}
	h, ok := m.overrides[t.Decay().String()]
	return h, ok
}

// elementConvertible reports whether a container element converts element-wise. Classes,
// enums and opaque handles have no automatic conversion.
func elementConvertible(h HostType) bool {
	switch h.Kind {
	case KindBool, KindInt, KindFloat:
		return true
	case KindStr:
		return !h.CString
	case KindList, KindSet, KindDict, KindTuple:
		if h.Manual {
			return false
		}
		for _, e := range h.Elems {
			if !elementConvertible(e) {
				return false
			}
		}
		return true
	}
	return false
}
