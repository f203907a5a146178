package pyx_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/cxxwrap/internal/codegen/generator/pyx"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/overload"
	"github.com/Alia5/cxxwrap/internal/codegen/scanner"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

func render(t *testing.T, text string, opts pyx.Options) (string, []model.Warning) {
	t.Helper()
	unit, err := scanner.ScanHeader("test.hpp", text)
	require.NoError(t, err)
	mod, err := model.Build("test", unit)
	require.NoError(t, err)
	m, err := typemap.New(nil)
	require.NoError(t, err)
	out, warnings, err := pyx.Render(mod, m.WithModel(mod), opts)
	require.NoError(t, err)
	return out, warnings
}

// body drops the directive and header comment lines.
func body(s string) string {
	return strings.SplitN(s, "\n", 5)[4]
}

// lines joins the expected lines of a snippet.
func lines(ls ...string) string { return strings.Join(ls, "\n") }

func TestRenderAdd(t *testing.T) {
	out, warnings := render(t, "int add(int a, int b);\n", pyx.Options{})
	assert.Empty(t, warnings)
	assert.True(t, strings.HasPrefix(out, "# distutils: language = c++\n# cython: language_level=3\n"), out)

	want := `
cimport _test as cpp
from cython.operator cimport dereference as deref
from libc.stdint cimport uintptr_t


def add(a, b):
    """add(a: int, b: int) -> int

    add(int a, int b) -> int
    """
    cdef int cpp_a = a
    cdef int cpp_b = b
    return cpp.add(cpp_a, cpp_b)
`
	if diff := cmp.Diff(want, body(out)); diff != "" {
		t.Errorf("pyx mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDeclModule(t *testing.T) {
	out, _ := render(t, "void f();\n", pyx.Options{DeclModule: "_decl"})
	assert.Contains(t, out, "\ncimport _decl as cpp\n")
}

const overloads = `
void f(int x);
void f(double x);
`

func TestRenderOverloadDispatch(t *testing.T) {
	out, _ := render(t, overloads, pyx.Options{})
	assert.Contains(t, out, "\ndef _f_1(x):\n")
	assert.Contains(t, out, "\ndef _f_2(x):\n")
	assert.Contains(t, out, lines(
		"def f(*args):",
		`    """f(*args)`,
		"",
		"    Dispatches to the first overload accepting the arguments:",
		"        f(int x) -> void",
		"        f(double x) -> void",
		`    """`,
		"    if len(args) == 1 and isinstance(args[0], int):",
		"        return _f_1(*args)",
		"    if len(args) == 1 and (isinstance(args[0], (int, float)) and not isinstance(args[0], bool)):",
		"        return _f_2(*args)",
		`    raise TypeError("no overload of f accepts the given arguments")`,
	))
	assert.Less(t, strings.Index(out, "def _f_1"), strings.Index(out, "def _f_2"), "declaration order")

	strict, _ := render(t, overloads, pyx.Options{Policy: overload.Strict})
	assert.Contains(t, strict, "if len(args) == 1 and (isinstance(args[0], int) and not isinstance(args[0], bool)):")
	assert.Contains(t, strict, "if len(args) == 1 and isinstance(args[0], float):")
}

func TestRenderDefaults(t *testing.T) {
	out, _ := render(t, `
enum class Color { Red, Green };
int scale(int v, int by = 2, Color c = Color::Red, double f = 1.5f);
void greet(const std::string& who = "world", bool loud = false);
`, pyx.Options{})
	assert.Contains(t, out, lines(
		"def scale(v, by=2, c=None, f=None):",
		`    """scale(v: int, by: int = 2, c: Color = None, f: float = None) -> int`,
		"",
		"    scale(int v, int by = 2, Color c = Color::Red, double f = 1.5f) -> int",
		`    """`,
		"    cdef int cpp_v = v",
		"    cdef int cpp_by = by",
		"    cdef cpp.Color cpp_c",
		"    cdef double cpp_f",
		"    if c is None:",
		"        return cpp.scale(cpp_v, cpp_by)",
		"    elif f is None:",
		"        cpp_c = <cpp.Color><int>c",
		"        return cpp.scale(cpp_v, cpp_by, cpp_c)",
		"    else:",
		"        cpp_c = <cpp.Color><int>c",
		"        cpp_f = f",
		"        return cpp.scale(cpp_v, cpp_by, cpp_c, cpp_f)",
	))
	assert.Contains(t, out, `def greet(who="world", loud=False):`)
	assert.Contains(t, out, lines(
		`    cdef cppstring cpp_who = who.encode("utf-8")`,
		"    cdef cppbool cpp_loud = loud",
		"    cpp.greet(cpp_who, cpp_loud)",
	))
	assert.Contains(t, out, "from libcpp.string cimport string as cppstring\n")
	assert.Contains(t, out, "from libcpp cimport bool as cppbool\n")
}

func TestRenderStringsAndContainers(t *testing.T) {
	out, _ := render(t, `
#include <string>
#include <vector>
#include <deque>
#include <map>
std::string upper(const std::string& s);
const char* name(const char* key);
std::vector<std::string> split(const std::string& s);
double norm(const std::vector<double>& v);
std::map<std::string, int> counts(const std::vector<std::string>& words);
std::deque<int> window(std::deque<int> values);
`, pyx.Options{})
	assert.Contains(t, out, `    return cpp.upper(cpp_s).decode("utf-8")`)
	assert.Contains(t, out, lines(
		"    cdef const char* cpp_key",
		"    cdef const char* result",
		`    key_bytes = key.encode("utf-8")`,
		"    cpp_key = key_bytes",
		"    result = cpp.name(cpp_key)",
		"    if result == NULL:",
		"        return None",
		`    return result.decode("utf-8")`,
	))
	assert.Contains(t, out, lines(
		"    cdef object py_result",
		"    py_result = cpp.split(cpp_s)",
		`    return [v0.decode("utf-8") for v0 in py_result]`,
	))
	assert.Contains(t, out, lines(
		"    cdef cppvector[double] cpp_v = v",
		"    return cpp.norm(cpp_v)",
	))
	assert.Contains(t, out, `    cdef cppvector[cppstring] cpp_words = [v0.encode("utf-8") for v0 in words]`)
	assert.Contains(t, out, `    return {k0.decode("utf-8"): v0 for k0, v0 in py_result.items()}`)
	assert.Contains(t, out, lines(
		"    cdef cppdeque[int] cpp_values",
		"    cdef cppdeque[int] result",
		"    for values_item in values:",
		"        cpp_values.push_back(values_item)",
		"    result = cpp.window(cpp_values)",
		"    py_result = []",
		"    for result_item in result:",
		"        py_result.append(result_item)",
		"    return py_result",
	))
	assert.Contains(t, out, "from libcpp.deque cimport deque as cppdeque\n")
	// the map result is converted through a Python object, never spelled natively
	assert.NotContains(t, out, "cppmap")
}

const shapes = `
namespace geo {
class Widget;

/// Something with an area.
class Shape {
public:
    virtual ~Shape();
    virtual double area() const = 0;
};

class Circle : public Shape {
public:
    Circle(double r);
    Circle(const Circle& other);
    double area() const override;
    static Circle unit();
    Circle* parent();
    double radius;
    const int id;
};

struct Point { double x; double y; };

enum class Color { Red, Green };
enum Mode { None, Fast };

Point origin();
Widget* make_widget();
void use(const Widget& w, Color c);
}
`

func TestRenderDerivedDealloc(t *testing.T) {
	out, warnings := render(t, `
class Base {
public:
    Base();
    ~Base();
};
class Derived : public Base {
public:
    Derived();
    ~Derived();
};
`, pyx.Options{})
	assert.Empty(t, warnings)
	assert.Contains(t, out, lines(
		"    def __dealloc__(self):",
		"        cdef cpp.Derived* ptr = (<cpp.Derived*>self.thisptr)",
		"        if self.owned and ptr != NULL:",
		"            del ptr",
		"        self.thisptr = NULL",
	))
}

func TestRenderClasses(t *testing.T) {
	out, warnings := render(t, shapes, pyx.Options{})
	assert.Empty(t, warnings)

	assert.Contains(t, out, lines(
		"cdef class Shape:",
		`    """geo.Shape`,
		"",
		"    Something with an area.",
		`    """`,
		"    cdef cpp.Shape* thisptr",
		"    cdef bint owned",
		"",
		"    def __init__(self, *args):",
		`        raise TypeError("Shape is abstract and cannot be instantiated")`,
		"",
		"    def __dealloc__(self):",
		"        if self.owned and self.thisptr != NULL:",
		"            del self.thisptr",
		"        self.thisptr = NULL",
	))
	assert.Contains(t, out, "        return self.thisptr.area()\n")

	assert.Contains(t, out, "cdef class Circle(Shape):\n")
	assert.NotContains(t, out, "    cdef cpp.Circle* thisptr")
	assert.Contains(t, out, lines(
		"    def _init_1(self, r):",
		`        """Circle(r: float)`,
		"",
		"        geo.Circle.Circle(double r)",
		`        """`,
		"        cdef double cpp_r = r",
		"        self.thisptr = new cpp.Circle(cpp_r)",
		"        self.owned = True",
	))
	assert.Contains(t, out, "        self.thisptr = new cpp.Circle(deref((<cpp.Circle*>(<Circle?>other).thisptr)))\n")
	assert.Contains(t, out, lines(
		"    def __init__(self, *args):",
		`        """__init__(*args)`,
	))
	assert.Contains(t, out, lines(
		"        if len(args) == 1 and isinstance(args[0], Circle):",
		"            self._init_2(*args)",
		"            return",
	))
	assert.Contains(t, out, "        return (<cpp.Circle*>self.thisptr).area()\n")
	assert.Contains(t, out, lines(
		"    @staticmethod",
		"    def unit():",
	))
	assert.Contains(t, out, "        return _wrap_Circle(new cpp.Circle(cpp.Circle.unit()), True)\n")
	assert.Contains(t, out, lines(
		"        result = (<cpp.Circle*>self.thisptr).parent()",
		"        if result == NULL:",
		"            return None",
		"        return _wrap_Circle(<cpp.Circle*>result, False)",
	))
	assert.Contains(t, out, lines(
		"    @property",
		"    def radius(self):",
		`        """geo.Circle.radius: double"""`,
		"        return (<cpp.Circle*>self.thisptr).radius",
		"",
		"    @radius.setter",
		"    def radius(self, value):",
		"        cdef double cpp_value = value",
		"        (<cpp.Circle*>self.thisptr).radius = cpp_value",
	))
	assert.Contains(t, out, "    def id(self):\n")
	assert.NotContains(t, out, "@id.setter")
	assert.Contains(t, out, lines(
		"cdef Circle _wrap_Circle(cpp.Circle* ptr, bint owned):",
		"    cdef Circle obj = Circle.__new__(Circle)",
		"    obj.thisptr = ptr",
		"    obj.owned = owned",
		"    return obj",
	))
	assert.Equal(t, 1, strings.Count(out, "def __dealloc__"), "only Shape declares a destructor")

	assert.Contains(t, out, lines(
		"cdef class Point:",
		`    """geo.Point"""`,
		"    cdef cpp.Point* thisptr",
		"    cdef bint owned",
		"",
		"    def __init__(self):",
		"        self.thisptr = new cpp.Point()",
		"        self.owned = True",
	))
	pointClass := out[strings.Index(out, "cdef class Point:"):strings.Index(out, "cdef Point _wrap_Point")]
	assert.NotContains(t, pointClass, "__dealloc__", "no destructor declared")
	assert.Contains(t, out, "    return _wrap_Point(new cpp.Point(cpp.origin()), True)\n")

	assert.Contains(t, out, "\nimport enum\n")
	assert.Contains(t, out, lines(
		"class Color(enum.IntEnum):",
		`    """geo.Color"""`,
		"    Red = <int>cpp.Color.Red",
		"    Green = <int>cpp.Color.Green",
	))
	assert.Contains(t, out, lines(
		"class Mode(enum.IntEnum):",
		`    """geo.Mode"""`,
		"    None_ = <int>cpp.None_",
		"    Fast = <int>cpp.Fast",
	))

	assert.Contains(t, out, "    return <uintptr_t>cpp.make_widget()\n")
	assert.Contains(t, out, "    cpp.use(deref(<cpp.opaque_geo_Widget*><uintptr_t>w), cpp_c)\n")
}

func TestRenderNonCopyableReturnIsSkipped(t *testing.T) {
	out, warnings := render(t, `
class Handle {
public:
    Handle(int fd);
    Handle(const Handle&) = delete;
};
Handle open_handle(int fd);
Handle* find_handle(int fd);
`, pyx.Options{})
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnUnsupported, warnings[0].Kind)
	assert.Equal(t, "open_handle", warnings[0].Construct)
	assert.NotContains(t, out, "def open_handle")
	assert.Contains(t, out, "def find_handle(fd):")
}

const templates = `
#include <vector>
namespace geo {
template <typename T> T biggest(const std::vector<T>& items);

template <typename T>
class Stack {
public:
    void push(const T& v);
    T top() const;
    Stack copy() const;
};
}
`

func TestRenderTemplatesWithoutSpecialization(t *testing.T) {
	out, warnings := render(t, templates, pyx.Options{})
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, model.WarnTemplate, w.Kind)
		assert.Contains(t, w.Message, "no configured specialization")
	}
	assert.NotContains(t, out, "def biggest")
	assert.NotContains(t, out, "cdef class")
}

func TestRenderTemplateSpecializations(t *testing.T) {
	out, warnings := render(t, templates, pyx.Options{Specializations: map[string][]pyx.Specialization{
		"geo::biggest": {
			{Name: "biggest_double", Types: map[string]string{"T": "double"}},
			{Name: "biggest_bad", Types: map[string]string{"U": "int"}},
		},
		"geo::Stack": {{Name: "IntStack", Types: map[string]string{"T": "int"}}},
	}})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "does not bind template parameter T")

	assert.Contains(t, out, lines(
		"def biggest_double(items):",
		`    """biggest_double(items: list[float]) -> float`,
		"",
		"    geo.biggest(const std::vector<double>& items) -> double",
		`    """`,
		"    cdef cppvector[double] cpp_items = items",
		"    return cpp.biggest[double](cpp_items)",
	))
	assert.Contains(t, out, lines(
		"cdef class IntStack:",
		`    """geo.Stack[int]"""`,
		"    cdef cpp.Stack[int]* thisptr",
		"    cdef bint owned",
		"",
		"    def __init__(self):",
		"        self.thisptr = new cpp.Stack[int]()",
		"        self.owned = True",
	))
	assert.Contains(t, out, lines(
		"        cdef int cpp_v = v",
		"        self.thisptr.push(cpp_v)",
	))
	assert.Contains(t, out, "        return self.thisptr.top()\n")
	assert.Contains(t, out, "        return <uintptr_t>new cpp.Stack[int](self.thisptr.copy())\n")
}

func TestRenderDeterministic(t *testing.T) {
	a, _ := render(t, shapes, pyx.Options{})
	b, _ := render(t, shapes, pyx.Options{})
	assert.Equal(t, a, b)
}

func TestRenderEveryEntityOnce(t *testing.T) {
	out, _ := render(t, shapes, pyx.Options{})
	for _, name := range []string{"cdef class Shape", "cdef class Circle", "cdef class Point",
		"class Color(", "class Mode(", "def origin(", "def make_widget(", "def use("} {
		assert.Equal(t, 1, strings.Count(out, name), name)
	}
}
