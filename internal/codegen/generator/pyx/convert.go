package pyx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/generator/pxd"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

// arg converts one Python argument to the value passed to the native call.
type arg struct {
	// local is the cdef variable holding the native value; empty when expr converts inline.
	local string
	decl  string
	// init is a single-expression initializer of local. When empty, conv assigns local.
	init string
	conv []string
	expr string
}

// assign returns the statements giving local its value.
func (a arg) assign() []string {
	if a.init != "" {
		return []string{a.local + " = " + a.init}
	}
	return a.conv
}

func cdef(typ, name string) string { return "cdef " + typ + " " + name }

// argument converts the Python value named py to the native type t.
func (g *gen) argument(t model.Type, ctx typemap.Ctx, py string) arg {
	h := g.m.Resolve(t, ctx)
	d := t.Decay()
	local := "cpp_" + py
	switch h.Kind {
	case typemap.KindBool, typemap.KindInt, typemap.KindFloat:
		return arg{local: local, decl: cdef(g.spell(d, ctx), local), init: py, expr: local}
	case typemap.KindStr:
		a := arg{local: local, decl: cdef(g.spell(d, ctx), local), expr: local}
		if h.CString {
			held := py + "_bytes"
			a.conv = []string{held + " = " + encode(py), local + " = " + held}
			return a
		}
		a.init = encode(py)
		return a
	case typemap.KindList, typemap.KindSet, typemap.KindDict, typemap.KindTuple:
		a := arg{local: local, decl: cdef(g.spell(d, ctx), local), expr: local}
		if h.Manual {
			item := py + "_item"
			a.conv = []string{
				fmt.Sprintf("for %s in %s:", item, py),
				fmt.Sprintf("    %s.push_back(%s)", local, toNative(h.Elems[0], item, 0)),
			}
			return a
		}
		a.init = toNative(h, py, 0)
		return a
	case typemap.KindEnum:
		typ := g.spell(d, ctx)
		return arg{local: local, decl: cdef(typ, local), init: fmt.Sprintf("<%s><int>%s", typ, py), expr: local}
	case typemap.KindClass:
		if p := g.proxies[h.Class]; p != nil {
			if h.Pointer {
				return arg{expr: p.ptrOf(py)}
			}
			return arg{expr: "deref(" + p.ptrOf(py) + ")"}
		}
	}
	if d.IsPointer() {
		return arg{expr: fmt.Sprintf("<%s><uintptr_t>%s", g.spell(d, ctx), py)}
	}
	return arg{expr: fmt.Sprintf("deref(<%s*><uintptr_t>%s)", g.spell(d, ctx), py)}
}

// outcome is the tail of a proxy body: the native call and the conversion of its result.
type outcome struct {
	decls []string
	body  []string
}

// result converts the value of call, of native type t, back to Python. A non-empty reason
// reports a value the wrapper cannot return.
func (g *gen) result(t model.Type, ctx typemap.Ctx, call string) (outcome, string) {
	if t.IsVoid() {
		return outcome{body: []string{call}}, ""
	}
	ret := func(format string, args ...any) (outcome, string) {
		return outcome{body: []string{"return " + fmt.Sprintf(format, args...)}}, ""
	}
	h := g.m.Resolve(t, ctx)
	d := t.Decay()
	switch h.Kind {
	case typemap.KindBool, typemap.KindInt, typemap.KindFloat:
		return ret("%s", call)
	case typemap.KindStr:
		if h.CString {
			return outcome{
				decls: []string{cdef(g.spell(d, ctx), "result")},
				body: []string{
					"result = " + call,
					"if result == NULL:",
					"    return None",
					"return " + decode("result"),
				},
			}, ""
		}
		return ret("%s", decode(call))
	case typemap.KindList, typemap.KindSet, typemap.KindDict, typemap.KindTuple:
		if h.Manual {
			return g.manualResult(h, d, ctx, call), ""
		}
		if needsCoding(h) {
			return outcome{
				decls: []string{"cdef object py_result"},
				body:  []string{"py_result = " + call, "return " + fromNative(h, "py_result", 0)},
			}, ""
		}
		return ret("%s", call)
	case typemap.KindEnum:
		return ret("%s(<int>%s)", h.Enum.HostName, call)
	case typemap.KindClass:
		p := g.proxies[h.Class]
		if p == nil {
			break
		}
		if h.Pointer {
			return outcome{
				decls: []string{cdef(g.spell(d, ctx), "result")},
				body: []string{
					"result = " + call,
					"if result == NULL:",
					"    return None",
					fmt.Sprintf("return %s(<%s*>result, False)", p.wrapFn(), p.native),
				},
			}, ""
		}
		if !pxd.Copyable(h.Class) {
			return outcome{}, fmt.Sprintf("%s is returned by value but cannot be copied", h.Class.QualifiedName())
		}
		return ret("%s(new %s(%s), True)", p.wrapFn(), p.native, call)
	}
	if d.IsPointer() {
		return ret("<uintptr_t>%s", call)
	}
	if c := g.m.ClassOf(d.Bare(), ctx); c != nil && !pxd.Copyable(c) {
		return outcome{}, fmt.Sprintf("%s is returned by value but cannot be copied", c.QualifiedName())
	}
	return ret("<uintptr_t>new %s(%s)", g.spell(d.Bare(), ctx), call)
}

// manualResult copies a container Cython cannot convert into a Python list element by element.
func (g *gen) manualResult(h typemap.HostType, d model.Type, ctx typemap.Ctx, call string) outcome {
	o := outcome{
		decls: []string{cdef(g.spell(d, ctx), "result")},
		body:  []string{"result = " + call, "py_result = []", "for result_item in result:"},
	}
	if elem := h.Elems[0]; needsCoding(elem) {
		o.decls = append(o.decls, "cdef object py_item")
		o.body = append(o.body, "    py_item = result_item", "    py_result.append("+fromNative(elem, "py_item", 0)+")")
	} else {
		o.body = append(o.body, "    py_result.append(result_item)")
	}
	o.body = append(o.body, "return py_result")
	return o
}

func encode(expr string) string { return expr + `.encode("utf-8")` }
func decode(expr string) string { return expr + `.decode("utf-8")` }

// needsCoding reports whether h carries strings that must be encoded or decoded.
func needsCoding(h typemap.HostType) bool {
	if h.Kind == typemap.KindStr {
		return true
	}
	for _, e := range h.Elems {
		if needsCoding(e) {
			return true
		}
	}
	return false
}

// toNative renders a Python expression turning expr into an object Cython converts to the
// native type of h, encoding strings at any depth.
func toNative(h typemap.HostType, expr string, depth int) string {
	return recode(h, expr, depth, encode)
}

// fromNative renders the inverse of toNative over an auto-converted result.
func fromNative(h typemap.HostType, expr string, depth int) string {
	return recode(h, expr, depth, decode)
}

func recode(h typemap.HostType, expr string, depth int, str func(string) string) string {
	if !needsCoding(h) {
		return expr
	}
	k, v := fmt.Sprintf("k%d", depth), fmt.Sprintf("v%d", depth)
	switch h.Kind {
	case typemap.KindStr:
		return str(expr)
	case typemap.KindList:
		return fmt.Sprintf("[%s for %s in %s]", recode(h.Elems[0], v, depth+1, str), v, expr)
	case typemap.KindSet:
		return fmt.Sprintf("{%s for %s in %s}", recode(h.Elems[0], v, depth+1, str), v, expr)
	case typemap.KindDict:
		return fmt.Sprintf("{%s: %s for %s, %s in %s.items()}",
			recode(h.Elems[0], k, depth+1, str), recode(h.Elems[1], v, depth+1, str), k, v, expr)
	case typemap.KindTuple:
		return fmt.Sprintf("(%s, %s)",
			recode(h.Elems[0], expr+"[0]", depth+1, str), recode(h.Elems[1], expr+"[1]", depth+1, str))
	}
	return expr
}

var (
	intLiteral   = regexp.MustCompile(`^[-+]?(0[xX][0-9a-fA-F']+|0[bB][01']+|[0-9][0-9']*)[uUlL]*$`)
	floatLiteral = regexp.MustCompile(`^[-+]?([0-9]+\.[0-9]*|\.[0-9]+|[0-9]+)([eE][-+]?[0-9]+)?[fFlL]?$`)
	strLiteral   = regexp.MustCompile(`^"([^"\\]|\\.)*"$`)
)

// literal translates a C++ default argument into a Python default when it is a literal of
// the parameter's host type.
func literal(expr string, h typemap.HostType) (string, bool) {
	expr = strings.TrimSpace(expr)
	switch h.Kind {
	case typemap.KindBool:
		switch expr {
		case "true":
			return "True", true
		case "false":
			return "False", true
		}
	case typemap.KindInt:
		if intLiteral.MatchString(expr) {
			return pyInt(expr), true
		}
	case typemap.KindFloat:
		if intLiteral.MatchString(expr) {
			return pyInt(expr), true
		}
		if floatLiteral.MatchString(expr) {
			return strings.TrimRight(expr, "fFlL"), true
		}
	case typemap.KindStr:
		if strLiteral.MatchString(expr) {
			return expr, true
		}
	}
	return "", false
}

// pyInt rewrites a C++ integer literal in Python syntax.
func pyInt(expr string) string {
	s := strings.ReplaceAll(strings.TrimRight(expr, "uUlL"), "'", "")
	sign := ""
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		s = "0o" + s[1:]
	}
	return sign + s
}

// proxy locals a parameter name must not shadow
var locals = map[string]bool{
	"result": true, "py_result": true, "py_item": true, "result_item": true, "args": true,
	"deref": true, "uintptr_t": true, "enum": true, "obj": true, "ptr": true, "value": true,
}

// pyNames returns the Python parameter names of params. Unnamed parameters become argN.
func pyNames(params []model.Param) []string {
	used := map[string]bool{}
	out := make([]string, len(params))
	for i, p := range params {
		n := p.Name
		if n == "" {
			n = fmt.Sprintf("arg%d", i)
		}
		n = common.SafeIdent(n)
		if locals[n] {
			n += "_"
		}
		for used[n] {
			n += "_"
		}
		used[n] = true
		out[i] = n
	}
	return out
}
