// Package pyx renders the Cython wrapper file: def proxies for functions, cdef class proxies
// for classes and IntEnum classes for enums, calling into the binding file cimported as cpp.
package pyx

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/generator/pxd"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/overload"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

const pyxTmpl = `# distutils: language = c++
# cython: language_level=3
# Generated by {{.Banner}} from {{join .Headers ", "}}. Do not edit.
# digest: {{.Digest}}

cimport {{.DeclModule}} as cpp
from cython.operator cimport dereference as deref
from libc.stdint cimport uintptr_t
{{range .Cimports}}{{.}}
{{end}}{{if .Enums}}
import enum
{{end}}{{range .Items}}

{{.}}
{{end}}`

var tmpl = template.Must(template.New("pyx").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(pyxTmpl))

type pyxData struct {
	Banner     string
	Headers    []string
	Digest     string
	DeclModule string
	Cimports   []string
	Enums      bool
	Items      []string
}

// Specialization instantiates a template under a host name. Types binds each template
// parameter to a C++ type spelling.
type Specialization struct {
	Name  string            `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
	Types map[string]string `json:"types" yaml:"types" toml:"types" mapstructure:"types"`
}

// Options control wrapper rendering.
type Options struct {
	// DeclModule is the module name the binding file is cimported by. Defaults to
	// pxd.ModuleName of the module.
	DeclModule string
	// Policy selects the argument checks of overload dispatchers.
	Policy overload.Policy
	// Specializations maps qualified template names to their instantiations.
	Specializations map[string][]Specialization
}

// Render renders the wrapper file for mod. m must be bound to mod. Entities the wrapper
// cannot expose are skipped and reported as warnings.
func Render(mod *model.Module, m *typemap.Mapper, opts Options) (string, []model.Warning, error) {
	if opts.Policy == "" {
		opts.Policy = overload.FirstCompatible
	}
	g := &gen{
		mod:     mod,
		m:       m,
		opts:    opts,
		reqs:    typemap.NewRequirements(),
		proxies: map[*model.Class]*proxy{},
		done:    map[string]bool{},
	}

	data := pyxData{
		Banner:     common.Banner(),
		Digest:     mod.Digest,
		DeclModule: opts.DeclModule,
	}
	if data.DeclModule == "" {
		data.DeclModule = pxd.ModuleName(mod.Name)
	}
	for _, h := range mod.Headers {
		data.Headers = append(data.Headers, pxd.IncludeName(h))
	}

	for _, c := range mod.Classes() {
		if !c.IsTemplate() {
			g.proxies[c] = &proxy{class: c, name: c.HostName, native: typemap.WrapperPrefix + c.Symbol}
		}
	}
	for c, p := range g.proxies {
		if c.BaseClass != nil {
			p.base = g.proxies[c.BaseClass]
		}
	}

	for _, e := range mod.Entities {
		if err := model.Check(e); err != nil {
			return "", nil, err
		}
		items, err := g.entity(e)
		if err != nil {
			return "", nil, err
		}
		data.Items = append(data.Items, items...)
		if _, ok := e.(*model.Enum); ok {
			data.Enums = true
		}
	}
	data.Cimports = g.reqs.Cimports()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", nil, fmt.Errorf("execute pyx template: %w", err)
	}
	return buf.String(), g.warnings, nil
}

// gen holds the state of one Render call.
type gen struct {
	mod      *model.Module
	m        *typemap.Mapper
	opts     Options
	reqs     *typemap.Requirements
	proxies  map[*model.Class]*proxy
	done     map[string]bool
	warnings []model.Warning
}

func (g *gen) warn(kind model.WarningKind, d *model.Decl, format string, args ...any) {
	g.warnings = append(g.warnings, model.Warning{
		Kind:      kind,
		Path:      d.Header,
		Pos:       d.Pos,
		Construct: d.QualifiedName(),
		Message:   fmt.Sprintf(format, args...),
	})
}

// spell spells t for the wrapper and records the cimports it needs.
func (g *gen) spell(t model.Type, ctx typemap.Ctx) string {
	g.m.Require(g.reqs, t, ctx)
	return g.m.WrapperSpelling(t, ctx)
}

func (g *gen) entity(e model.Entity) ([]string, error) {
	switch e := e.(type) {
	case *model.Function:
		return g.function(e)
	case *model.Class:
		return g.class(e)
	case *model.Enum:
		return []string{g.enum(e)}, nil
	}
	return nil, nil
}

// code accumulates indented Python source lines.
type code struct {
	lines []string
	depth int
}

func (c *code) line(format string, args ...any) {
	s := format
	if len(args) > 0 {
		s = fmt.Sprintf(format, args...)
	}
	if s == "" {
		c.lines = append(c.lines, "")
		return
	}
	c.lines = append(c.lines, strings.Repeat("    ", c.depth)+s)
}

func (c *code) block(lines []string) {
	for _, l := range lines {
		c.line("%s", l)
	}
}

func (c *code) in()  { c.depth++ }
func (c *code) out() { c.depth-- }

func (c *code) String() string { return strings.Join(c.lines, "\n") }

// docstring writes a triple-quoted docstring made of the given paragraphs.
func (c *code) docstring(paras ...string) {
	var parts []string
	for _, p := range paras {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return
	}
	text := strings.NewReplacer(`\`, `\\`, `"""`, `\"\"\"`).Replace(strings.Join(parts, "\n\n"))
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		c.line(`"""%s"""`, lines[0])
		return
	}
	c.line(`"""%s`, lines[0])
	for _, l := range lines[1:] {
		c.line("%s", strings.TrimRight(l, " \t"))
	}
	c.line(`"""`)
}
