package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
)

// proxy attributes a wrapped member must not shadow
var memberReserved = map[string]bool{"thisptr": true, "owned": true}

// Build assembles scanned units, in argument order, into one validated Module.
// Namespaces are flattened into the scope of their entities, overload groups are numbered
// and every entity receives its Symbol and HostName.
func Build(name string, units ...*Unit) (*Module, error) {
	m := &Module{Name: name, index: map[string]Entity{}, Forwards: map[string]bool{}}
	texts := make([][]byte, 0, len(units))
	for _, u := range units {
		m.Headers = append(m.Headers, u.Path)
		texts = append(texts, []byte(u.Text))
		m.Warnings = append(m.Warnings, u.Warnings...)
		for _, f := range u.Forwards {
			m.Forwards[f] = true
		}
	}
	m.Digest = common.Digest(texts...)

	signatures := map[string]map[string]*Function{}
	for _, u := range units {
		for _, e := range Flatten(u.Entities) {
			d := e.Declaration()
			q := d.QualifiedName()
			f, isFn := e.(*Function)
			if prev, ok := m.index[q]; ok {
				if _, prevFn := prev.(*Function); !isFn || !prevFn {
					return nil, redeclared(d, prev.Declaration(), "")
				}
			} else {
				m.index[q] = e
			}
			if isFn {
				if err := addSignature(signatures, q, f); err != nil {
					return nil, err
				}
			}
			if c, ok := e.(*Class); ok {
				if err := checkClass(c); err != nil {
					return nil, err
				}
			}
			m.Entities = append(m.Entities, e)
		}
	}

	numberOverloads(m.Functions(), func(f *Function) string { return f.QualifiedName() })
	for _, c := range m.Classes() {
		for _, f := range c.Methods() {
			f.Owner = c
		}
		for _, f := range c.Ctors {
			f.Owner = c
		}
		numberOverloads(c.Methods(), func(f *Function) string { return f.Name })
		numberOverloads(c.Constructors(), func(*Function) string { return "" })
		if c.Base != nil {
			if base, ok := m.Lookup(c.Base.Name, c.Scope).(*Class); ok && base != c && len(c.Base.Args) == 0 {
				c.BaseClass = base
			}
		}
	}

	assignTopLevelNames(m)
	for _, c := range m.Classes() {
		assignMemberNames(c)
	}
	return m, nil
}

func addSignature(sigs map[string]map[string]*Function, q string, f *Function) error {
	if sigs[q] == nil {
		sigs[q] = map[string]*Function{}
	}
	sig := f.Signature()
	if prev, ok := sigs[q][sig]; ok {
		return redeclared(&f.Decl, &prev.Decl, sig)
	}
	sigs[q][sig] = f
	return nil
}

func redeclared(d, prev *Decl, sig string) error {
	return &ParseError{
		Path:      d.Header,
		Pos:       d.Pos,
		Construct: d.QualifiedName() + sig,
		Msg:       fmt.Sprintf("%s%s already declared at %s:%s", d.QualifiedName(), sig, prev.Header, prev.Pos),
	}
}

func checkClass(c *Class) error {
	if c.Name == "" {
		return &ParseError{Path: c.Header, Pos: c.Pos, Construct: "class", Msg: "class without a name"}
	}
	names := map[string]Entity{}
	sigs := map[string]map[string]*Function{}
	for _, mem := range c.Members {
		d := mem.Declaration()
		f, isFn := mem.(*Function)
		if prev, ok := names[d.Name]; ok {
			if _, prevFn := prev.(*Function); !isFn || !prevFn {
				return redeclared(d, prev.Declaration(), "")
			}
		} else {
			names[d.Name] = mem
		}
		if isFn {
			if err := addSignature(sigs, d.Name, f); err != nil {
				return err
			}
		}
	}
	ctorSigs := map[string]map[string]*Function{}
	for _, f := range c.Constructors() {
		if err := addSignature(ctorSigs, "", f); err != nil {
			return err
		}
	}
	return nil
}

func numberOverloads(fns []*Function, key func(*Function) string) {
	groups := map[string][]*Function{}
	for _, f := range fns {
		if f.Deleted {
			continue
		}
		k := key(f)
		groups[k] = append(groups[k], f)
	}
	for _, g := range groups {
		for i, f := range g {
			f.Overload = Overload{Index: i + 1, Size: len(g)}
		}
	}
}

// assignTopLevelNames gives each top-level entity a module-unique Symbol and HostName.
// The plain name is used unless it is declared in more than one scope, in which case the
// scope is folded in: "a::f" and "b::f" become "a_f" and "b_f".
func assignTopLevelNames(m *Module) {
	type group struct {
		decl    *Decl
		members []Entity
	}
	var order []*group
	byQName := map[string]*group{}
	for _, e := range m.Entities {
		d := e.Declaration()
		q := d.QualifiedName()
		if g, ok := byQName[q]; ok {
			g.members = append(g.members, e)
			continue
		}
		g := &group{decl: d, members: []Entity{e}}
		byQName[q] = g
		order = append(order, g)
	}

	count := map[string]int{}
	for _, g := range order {
		count[g.decl.Name]++
	}

	hostUsed := map[string]bool{}
	symUsed := map[string]bool{}
	for _, g := range order {
		base := g.decl.Name
		if count[base] > 1 {
			base = strings.Join(append(append([]string(nil), g.decl.Scope...), g.decl.Name), "_")
		}
		host := unique(common.SafeIdent(base), hostUsed)
		for _, e := range g.members {
			d := e.Declaration()
			d.HostName = host
			sym := base
			if f, ok := e.(*Function); ok && f.Overload.Size > 1 {
				sym += "_" + strconv.Itoa(f.Overload.Index)
			}
			d.Symbol = unique(common.SafeIdent(sym), symUsed)
		}
	}
}

func assignMemberNames(c *Class) {
	used := map[string]bool{}
	hosts := map[string]string{}
	for _, mem := range c.Members {
		d := mem.Declaration()
		host, ok := hosts[d.Name]
		if !ok {
			host = common.SafeIdent(d.Name)
			if memberReserved[host] {
				host += "_"
			}
			host = unique(host, used)
			hosts[d.Name] = host
		}
		d.HostName = host
		d.Symbol = common.SafeIdent(d.Name)
		if f, ok := mem.(*Function); ok && f.Overload.Size > 1 {
			d.Symbol = common.SafeIdent(d.Name + "_" + strconv.Itoa(f.Overload.Index))
		}
	}
	for _, f := range c.Ctors {
		f.HostName = "__init__"
		f.Symbol = c.Symbol
	}
}

func unique(name string, used map[string]bool) string {
	for used[name] {
		name += "_"
	}
	used[name] = true
	return name
}
