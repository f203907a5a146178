package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleNameFor(t *testing.T) {
	tests := map[string]string{
		"include/MyLib.hpp":  "my_lib",
		"geo.h":              "geo",
		"XMLParser.hxx":      "xml_parser",
		"3d-math.hpp":        "Num3d_math",
		"dir/with.dots.hpp":  "with_dots",
		"snake_case_ok.hpp":  "snake_case_ok",
		"someWord/other.hpp": "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, ModuleNameFor(in), in)
	}
}

func TestIdentifiers(t *testing.T) {
	assert.True(t, IsIdentifier("_geo2"))
	assert.False(t, IsIdentifier("2geo"))
	assert.False(t, IsIdentifier("my-mod"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("géo"))

	assert.True(t, IsReserved("class"))
	assert.True(t, IsReserved("cppclass"))
	assert.False(t, IsReserved("area"))
	assert.Equal(t, "lambda_", SafeIdent("lambda"))
	assert.Equal(t, "area", SafeIdent("area"))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, SortedKeys(map[string]bool{}))
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("ab"), []byte("c"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, Digest([]byte("ab"), []byte("c")))
	assert.NotEqual(t, a, Digest([]byte("a"), []byte("bc")))
	assert.NotEqual(t, a, Digest([]byte("abc")))
}

func TestBanner(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = ""
	assert.Equal(t, "cxxwrap 0.0.1-dev", Banner())

	Version = "v1.2.3-dirty"
	v, err := GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3-dirty", v)
	assert.Equal(t, "cxxwrap 1.2.3-dirty", Banner())

	Version = "nightly"
	_, err = GetVersion()
	assert.Error(t, err)
	assert.True(t, strings.HasSuffix(Banner(), "nightly"))
}
