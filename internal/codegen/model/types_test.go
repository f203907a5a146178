package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
)

func TestParseTypeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"int", "int"},
		{"const std::map<std::string, int>&", "const std::map<std::string, int>&"},
		{"char * const", "char* const"},
		{"const char* const*", "const char* const*"},
		{"unsigned long long int", "unsigned long long"},
		{"long unsigned", "unsigned long"},
		{"signed", "int"},
		{"short int", "short"},
		{"unsigned char", "unsigned char"},
		{"long double", "long double"},
		{"int const", "const int"},
		{"std::vector<std::vector<int>>", "std::vector<std::vector<int>>"},
		{"std::array<int, 3>", "std::array<int, 3>"},
		{"struct Point*", "Point*"},
		{"::geo::Shape&&", "geo::Shape&&"},
		{"typename Outer<int>::Inner", "Outer<int>::Inner"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := model.ParseTypeString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseTypeStringErrors(t *testing.T) {
	for _, in := range []string{"int x", "", "std::vector<int", "*"} {
		t.Run(in, func(t *testing.T) {
			_, err := model.ParseTypeString(in)
			assert.Error(t, err)
		})
	}
}

func TestTypeLiteralArgs(t *testing.T) {
	typ := model.MustParseType("std::array<double, 4>")
	require.Len(t, typ.Args, 2)
	assert.False(t, typ.Args[0].Literal)
	assert.True(t, typ.Args[1].Literal)
	assert.Equal(t, "4", typ.Args[1].Name)
}

func TestPassing(t *testing.T) {
	assert.Equal(t, model.ByValue, model.MustParseType("int").Passing())
	assert.Equal(t, model.ByReference, model.MustParseType("const Foo&").Passing())
	assert.Equal(t, model.ByReference, model.MustParseType("Foo&&").Passing())
	assert.Equal(t, model.ByPointer, model.MustParseType("Foo*").Passing())
}

func TestDecay(t *testing.T) {
	tests := map[string]string{
		"const std::string&": "std::string",
		"char* const":        "char*",
		"const char*":        "const char*",
		"const int":          "int",
		"Foo&&":              "Foo",
	}
	for in, want := range tests {
		assert.Equal(t, want, model.MustParseType(in).Decay().String(), in)
	}
}

func TestSubstitute(t *testing.T) {
	repl := map[string]model.Type{"T": model.MustParseType("double")}

	assert.Equal(t, "const double&", model.MustParseType("const T&").Substitute(repl).String())
	assert.Equal(t, "std::vector<double>", model.MustParseType("std::vector<T>").Substitute(repl).String())
	assert.Equal(t, "double*", model.MustParseType("T*").Substitute(repl).String())
	assert.Equal(t, "int", model.MustParseType("int").Substitute(repl).String())

	orig := model.MustParseType("std::vector<T>")
	_ = orig.Substitute(repl)
	assert.Equal(t, "std::vector<T>", orig.String(), "substitution must not alias the original")
}

func TestCombine(t *testing.T) {
	alias := model.MustParseType("std::string")
	assert.Equal(t, "const std::string&", alias.Combine(model.MustParseType("const X&")).String())

	ptr := model.MustParseType("char*")
	assert.Equal(t, "char* const", ptr.Combine(model.MustParseType("const X")).String())
}

func TestNames(t *testing.T) {
	var names []string
	model.MustParseType("std::map<std::string, std::vector<Widget>>").Names(func(t model.Type) {
		names = append(names, t.Name)
	})
	assert.Equal(t, []string{"std::map", "std::string", "std::vector", "Widget"}, names)
}

func TestLeafName(t *testing.T) {
	assert.Equal(t, "Shape", model.LeafName("geo::Shape"))
	assert.Equal(t, "Shape", model.LeafName("Shape"))
}
