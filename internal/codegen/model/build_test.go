package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

func fn(name string, scope []string, ret string, params ...string) *model.Function {
	f := &model.Function{Decl: model.Decl{Name: name, Scope: scope, Header: "h.hpp", Pos: lexer.Pos{Line: 1, Column: 1}}}
	if ret != "" {
		r := model.MustParseType(ret)
		f.Return = &r
	}
	for _, p := range params {
		f.Params = append(f.Params, model.Param{Type: model.MustParseType(p)})
	}
	return f
}

func ns(name string, scope []string, children ...model.Entity) *model.Namespace {
	return &model.Namespace{Decl: model.Decl{Name: name, Scope: scope}, Entities: children}
}

func TestBuildOverloads(t *testing.T) {
	f1 := fn("f", []string{"geo"}, "int", "int")
	f2 := fn("f", []string{"geo"}, "double", "double")
	g := fn("g", []string{"geo"}, "void")
	unit := &model.Unit{Path: "h.hpp", Entities: []model.Entity{ns("geo", nil, f1, g, f2)}}

	mod, err := model.Build("geo", unit)
	require.NoError(t, err)

	require.Len(t, mod.Entities, 3, "namespaces are flattened")
	assert.Equal(t, model.Overload{Index: 1, Size: 2}, f1.Overload)
	assert.Equal(t, model.Overload{Index: 2, Size: 2}, f2.Overload)
	assert.Equal(t, model.Overload{Index: 1, Size: 1}, g.Overload)

	assert.Equal(t, "f_1", f1.Symbol)
	assert.Equal(t, "f_2", f2.Symbol)
	assert.Equal(t, "f", f1.HostName)
	assert.Equal(t, "f", f2.HostName)
	assert.Equal(t, "g", g.Symbol)
	assert.Equal(t, "geo::f", f1.QualifiedName())
	assert.Equal(t, "geo.f", f1.DottedName())
}

func TestBuildNameConflictsAcrossScopes(t *testing.T) {
	a := fn("area", []string{"a"}, "int")
	b := fn("area", []string{"b"}, "int")
	unit := &model.Unit{Entities: []model.Entity{ns("a", nil, a), ns("b", nil, b)}}

	_, err := model.Build("m", unit)
	require.NoError(t, err)
	assert.Equal(t, "a_area", a.HostName)
	assert.Equal(t, "b_area", b.HostName)
	assert.Equal(t, "a_area", a.Symbol)
	assert.Equal(t, "b_area", b.Symbol)
}

func TestBuildReopenedNamespaces(t *testing.T) {
	f := fn("f", []string{"geo"}, "int", "int")
	g := fn("f", []string{"geo"}, "int", "double")
	first := &model.Unit{Path: "a.hpp", Entities: []model.Entity{ns("geo", nil, f)}}
	second := &model.Unit{Path: "b.hpp", Entities: []model.Entity{ns("geo", nil, g)}}

	mod, err := model.Build("geo", first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.hpp", "b.hpp"}, mod.Headers)
	assert.Equal(t, 2, f.Overload.Size)
	assert.Equal(t, "f", g.HostName)
}

func TestBuildRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name     string
		entities []model.Entity
	}{
		{
			name: "same signature",
			entities: []model.Entity{
				fn("f", nil, "int", "int"),
				fn("f", nil, "void", "int"),
			},
		},
		{
			name: "class and function",
			entities: []model.Entity{
				&model.Class{Decl: model.Decl{Name: "X"}},
				fn("X", nil, "int"),
			},
		},
		{
			name: "two enums",
			entities: []model.Entity{
				&model.Enum{Decl: model.Decl{Name: "E"}},
				&model.Enum{Decl: model.Decl{Name: "E"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.Build("m", &model.Unit{Entities: tt.entities})
			var perr *model.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Error(), "already declared")
		})
	}
}

func TestBuildClassMembers(t *testing.T) {
	shape := &model.Class{Decl: model.Decl{Name: "Shape", Scope: []string{"geo"}}}
	area := fn("area", []string{"geo", "Shape"}, "double")
	area.Pure = true
	shape.Members = []model.Entity{area}
	shape.Abstract = true

	circle := &model.Class{Decl: model.Decl{Name: "Circle", Scope: []string{"geo"}}}
	base := model.MustParseType("Shape")
	circle.Base = &base
	ctor1 := fn("Circle", []string{"geo", "Circle"}, "", "double")
	ctor2 := fn("Circle", []string{"geo", "Circle"}, "")
	print1 := fn("print", []string{"geo", "Circle"}, "void")
	print2 := fn("print", []string{"geo", "Circle"}, "void", "int")
	owned := &model.Field{Decl: model.Decl{Name: "owned"}, Type: model.MustParseType("bool")}
	circle.Ctors = []*model.Function{ctor1, ctor2}
	circle.Members = []model.Entity{print1, print2, owned}

	mod, err := model.Build("geo", &model.Unit{Entities: []model.Entity{ns("geo", nil, shape, circle)}})
	require.NoError(t, err)

	assert.Same(t, shape, circle.BaseClass)
	assert.Same(t, circle, ctor1.Owner)
	assert.Same(t, shape, area.Owner)
	assert.Equal(t, "__init__", ctor1.HostName)
	assert.Equal(t, "Circle", ctor2.Symbol)
	assert.Equal(t, model.Overload{Index: 2, Size: 2}, ctor2.Overload)

	assert.Equal(t, "print_", print1.HostName)
	assert.Equal(t, "print_1", print1.Symbol)
	assert.Equal(t, "print_2", print2.Symbol)
	assert.Equal(t, "owned_", owned.HostName)

	assert.Same(t, circle, mod.Lookup("Circle", []string{"geo"}))
	assert.Same(t, circle, mod.Lookup("geo::Circle", nil))
	assert.Nil(t, mod.Lookup("Circle", nil))
	assert.Len(t, mod.Classes(), 2)
}

func TestBuildDuplicateMethodSignature(t *testing.T) {
	c := &model.Class{Decl: model.Decl{Name: "A"}}
	c.Members = []model.Entity{fn("f", []string{"A"}, "int"), fn("f", []string{"A"}, "int")}
	_, err := model.Build("m", &model.Unit{Entities: []model.Entity{c}})
	var perr *model.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestBuildDigest(t *testing.T) {
	a, err := model.Build("m", &model.Unit{Path: "a.hpp", Text: "int f();"})
	require.NoError(t, err)
	b, err := model.Build("m", &model.Unit{Path: "a.hpp", Text: "int f();"})
	require.NoError(t, err)
	c, err := model.Build("m", &model.Unit{Path: "a.hpp", Text: "int g();"})
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
	assert.Len(t, a.Digest, 16)
}

func TestBuildCarriesWarnings(t *testing.T) {
	w := model.Warning{Kind: model.WarnSkipped, Path: "a.hpp", Pos: lexer.Pos{Line: 3, Column: 1}, Message: "unknown macro FOO skipped"}
	mod, err := model.Build("m", &model.Unit{Path: "a.hpp", Warnings: []model.Warning{w}})
	require.NoError(t, err)
	require.Len(t, mod.Warnings, 1)
	assert.Equal(t, "a.hpp:3:1: skipped: unknown macro FOO skipped", mod.Warnings[0].String())
}

func TestFunctionSignature(t *testing.T) {
	f := fn("f", nil, "int", "int", "const std::string&")
	f.Const = true
	assert.Equal(t, "(int, const std::string&) const", f.Signature())

	f.Params[0].Name = "n"
	f.Params[1].Default = "\"x\""
	assert.Equal(t, 1, f.Required())
	assert.Equal(t, `int f(int n, const std::string& = "x") const`, f.Prototype())
}
