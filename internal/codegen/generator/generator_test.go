package generator

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/config"
)

func newGen(cfg config.Config) *Generator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func generate(t *testing.T, header string) *Result {
	t.Helper()
	res, err := newGen(config.Default()).Generate(Input{
		ModuleName: "geo",
		Headers:    []Source{{Path: "geo.hpp", Text: header}},
	})
	require.NoError(t, err)
	return res
}

func TestGenerateAdd(t *testing.T) {
	res := generate(t, "int add(int a, int b);\n")

	assert.Equal(t, "_geo.pxd", res.Declarations.Name)
	assert.Equal(t, "geo.pyx", res.Wrapper.Name)
	assert.Equal(t, "setup.py", res.Build.Name)
	assert.Empty(t, res.Warnings)

	require.Len(t, res.Module.Functions(), 1)
	assert.Equal(t, "int add(int a, int b)", res.Module.Functions()[0].Prototype())

	assert.Contains(t, res.Declarations.Content, "cdef extern from \"geo.hpp\":\n    int add(int a, int b) except +\n")
	assert.Contains(t, res.Wrapper.Content, "cimport _geo as cpp\n")
	assert.Contains(t, res.Wrapper.Content, "def add(a, b):")
	assert.Contains(t, res.Wrapper.Content, "    cdef int cpp_a = a\n    cdef int cpp_b = b\n    return cpp.add(cpp_a, cpp_b)\n")
	assert.Equal(t, 1, strings.Count(res.Wrapper.Content, "cpp.add("))
	assert.Contains(t, res.Build.Content, `"geo.pyx",`)
	assert.Contains(t, res.Build.Content, `depends=["_geo.pxd"],`)
	assert.Contains(t, res.Build.Content, "include_dirs=[\n        \".\",\n    ],")
}

func TestGenerateSkipsUnknownMacro(t *testing.T) {
	res := generate(t, `
int add(int a, int b);
REGISTER_PLUGIN(add)
int sub(int a, int b);
`)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.WarnSkipped, res.Warnings[0].Kind)
	require.Len(t, res.Module.Functions(), 2)
	assert.Contains(t, res.Wrapper.Content, "def add(a, b):")
	assert.Contains(t, res.Wrapper.Content, "def sub(a, b):")
	assert.NotContains(t, res.Wrapper.Content, "REGISTER_PLUGIN")
}

func TestGenerateClassWithoutDestructor(t *testing.T) {
	res := generate(t, `
class Counter {
public:
    Counter(int start);
    int next();
private:
    int value_;
};
`)
	w := res.Wrapper.Content
	assert.Contains(t, w, "cdef class Counter:")
	assert.Equal(t, 1, strings.Count(w, "def __init__(self"))
	assert.Contains(t, w, "    def __init__(self, start):")
	assert.Contains(t, w, "    def next(self):")
	assert.NotContains(t, w, "__dealloc__")
	assert.NotContains(t, w, " del ")
}

func TestGenerateOverloadOrder(t *testing.T) {
	res := generate(t, "void f(int x);\nvoid f(double x);\n")
	w := res.Wrapper.Content
	first := strings.Index(w, "return _f_1(*args)")
	second := strings.Index(w, "return _f_2(*args)")
	require.True(t, first > 0 && second > 0)
	assert.Less(t, first, second)
}

func TestGenerateDeterministic(t *testing.T) {
	header := `
namespace geo {
enum class Color { Red, Green };
struct Point { double x; double y; };
class Widget;
Point mid(const Point& a, const Point& b);
Widget* make(Color c = Color::Red);
}
`
	a := generate(t, header)
	b := generate(t, header)
	assert.Equal(t, a.Artifacts(), b.Artifacts())
	assert.Equal(t, a.Warnings, b.Warnings)
}

func TestGenerateReportsUnresolvedTypes(t *testing.T) {
	res := generate(t, "class Widget;\nWidget* make();\nvoid use(Widget* w);\n")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.WarnUnresolvedType, res.Warnings[0].Kind)
	assert.Contains(t, res.Wrapper.Content, "return <uintptr_t>cpp.make()")
}

func TestGenerateConfirmsSources(t *testing.T) {
	res, err := newGen(config.Default()).Generate(Input{
		ModuleName:  "geo",
		Headers:     []Source{{Path: "include/geo.hpp", Text: "int add(int a, int b);\n"}},
		Sources:     []Source{{Path: "src/geo.cpp", Text: "int add(double a, int b) { return 0; }\n"}},
		IncludeDirs: []string{"third_party", "include"},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.WarnSignatureMismatch, res.Warnings[0].Kind)
	assert.Contains(t, res.Build.Content, "        \"src/geo.cpp\",\n")
	assert.Contains(t, res.Build.Content, "include_dirs=[\n        \"include\",\n        \"third_party\",\n    ],")
}

func TestGenerateRelativeToOutputDir(t *testing.T) {
	res, err := newGen(config.Default()).Generate(Input{
		ModuleName: "geo",
		Headers:    []Source{{Path: "include/geo.hpp", Text: "int add(int a, int b);\n"}},
		Sources:    []Source{{Path: "src/geo.cpp", Text: ""}},
		OutputDir:  "build",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Build.Content, `"../src/geo.cpp",`)
	assert.Contains(t, res.Build.Content, `"../include",`)
}

func TestGenerateConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.BuildSystem = "cmake"
	cfg.OverloadPolicy = "strict"
	cfg.ExtraLinkLibraries = []string{"m"}
	cfg.TypeOverrides = map[string]string{"Handle": "int"}

	res, err := newGen(cfg).Generate(Input{
		ModuleName: "geo",
		Headers:    []Source{{Path: "geo.hpp", Text: "void f(Handle h);\nvoid f(double x);\n"}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "CMakeLists.txt", res.Build.Name)
	assert.Contains(t, res.Build.Content, "target_link_libraries(geo PRIVATE\n    m\n)")
	assert.Contains(t, res.Wrapper.Content, "(isinstance(args[0], int) and not isinstance(args[0], bool))")
}

func TestGenerateErrors(t *testing.T) {
	gen := newGen(config.Default())
	header := []Source{{Path: "geo.hpp", Text: "int add(int a, int b);\n"}}

	for _, name := range []string{"", "1geo", "my-mod", "class"} {
		_, err := gen.Generate(Input{ModuleName: name, Headers: header})
		assert.ErrorIs(t, err, ErrModuleName, name)
	}

	_, err := gen.Generate(Input{ModuleName: "geo"})
	assert.ErrorIs(t, err, ErrNoHeaders)

	_, err = gen.Generate(Input{ModuleName: "geo", Headers: []Source{{Path: "bad.hpp", Text: "namespace geo {\nint f(;\n"}}})
	var perr *model.ParseError
	require.True(t, errors.As(err, &perr), "%v", err)
	assert.Equal(t, "bad.hpp", perr.Path)

	bad := config.Default()
	bad.OverloadPolicy = "loose"
	_, err = newGen(bad).Generate(Input{ModuleName: "geo", Headers: header})
	assert.ErrorContains(t, err, "overload_policy")
}

func TestReadSourceDropsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.hpp")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfint f();\n"), 0o644))
	src, err := ReadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "int f();\n", src.Text)
	assert.Equal(t, path, src.Path)

	_, err = ReadSource(filepath.Join(t.TempDir(), "missing.hpp"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResultWriteAndDiff(t *testing.T) {
	res := generate(t, "int add(int a, int b);\n")
	dir := filepath.Join(t.TempDir(), "out")

	changed, err := res.Diff(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"_geo.pxd", "geo.pyx", "setup.py"}, changed)

	written, err := res.Write(dir)
	require.NoError(t, err)
	require.Len(t, written, 3)
	data, err := os.ReadFile(filepath.Join(dir, "geo.pyx"))
	require.NoError(t, err)
	assert.Equal(t, res.Wrapper.Content, string(data))

	changed, err = res.Diff(dir)
	require.NoError(t, err)
	assert.Empty(t, changed)
}
