// Package model holds the declaration model shared by the scanner and the generators.
//
// A Module is assembled once by Build and is read-only afterwards.
package model

import (
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
)

// Kind identifies the concrete entity type.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindEnum      Kind = "enum"
	KindTypedef   Kind = "typedef"
	KindNamespace Kind = "namespace"
	KindField     Kind = "field"
)

// Tags attached to declarations.
const (
	TagTemplate            = "template"
	TagMultipleInheritance = "multiple-inheritance"
	TagOperator            = "operator"
)

// Entity is one declaration in the model.
type Entity interface {
	Kind() Kind
	Declaration() *Decl
}

// Decl carries the attributes common to all entities.
type Decl struct {
	Name   string    `json:"name" yaml:"name"`
	Scope  []string  `json:"scope,omitempty" yaml:"scope,omitempty"`
	Header string    `json:"header" yaml:"header"`
	Pos    lexer.Pos `json:"pos" yaml:"pos"`
	Doc    string    `json:"doc,omitempty" yaml:"doc,omitempty"`
	Tags   []string  `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Assigned by Build.
	Symbol   string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	HostName string `json:"hostName,omitempty" yaml:"hostName,omitempty"`
}

func (d *Decl) Declaration() *Decl { return d }

// QualifiedName returns the C++ name including enclosing scopes: "a::b::f".
func (d *Decl) QualifiedName() string {
	return strings.Join(append(append([]string(nil), d.Scope...), d.Name), "::")
}

// DottedName returns the qualified name with "." separators: "a.b.f".
func (d *Decl) DottedName() string {
	return strings.Join(append(append([]string(nil), d.Scope...), d.Name), ".")
}

// Namespace returns the enclosing scope path used for extern blocks: "a::b".
func (d *Decl) Namespace() string {
	return strings.Join(d.Scope, "::")
}

func (d *Decl) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (d *Decl) AddTag(tag string) {
	if !d.HasTag(tag) {
		d.Tags = append(d.Tags, tag)
	}
}

// Param is a function parameter. Default holds the default argument expression, if any.
type Param struct {
	Name    string `json:"name" yaml:"name"`
	Type    Type   `json:"type" yaml:"type"`
	Default string `json:"default,omitempty" yaml:"default,omitempty"`
}

// Overload locates a function within its overload group. Index is 1-based; Size 1 means
// the function is not overloaded.
type Overload struct {
	Index int `json:"index" yaml:"index"`
	Size  int `json:"size" yaml:"size"`
}

// Function is a free function, method or constructor (Return == nil).
type Function struct {
	Decl
	Return         *Type    `json:"return,omitempty" yaml:"return,omitempty"`
	Params         []Param  `json:"params" yaml:"params"`
	Const          bool     `json:"const,omitempty" yaml:"const,omitempty"`
	Noexcept       bool     `json:"noexcept,omitempty" yaml:"noexcept,omitempty"`
	Static         bool     `json:"static,omitempty" yaml:"static,omitempty"`
	Virtual        bool     `json:"virtual,omitempty" yaml:"virtual,omitempty"`
	Pure           bool     `json:"pure,omitempty" yaml:"pure,omitempty"`
	Deleted        bool     `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Defaulted      bool     `json:"defaulted,omitempty" yaml:"defaulted,omitempty"`
	Variadic       bool     `json:"variadic,omitempty" yaml:"variadic,omitempty"`
	TemplateParams []string `json:"templateParams,omitempty" yaml:"templateParams,omitempty"`
	Overload       Overload `json:"overload" yaml:"overload"`

	// Owner is the class of a method or constructor, set by Build.
	Owner *Class `json:"-" yaml:"-"`
}

func (*Function) Kind() Kind { return KindFunction }

// IsConstructor reports whether f is a constructor.
func (f *Function) IsConstructor() bool { return f.Return == nil }

// IsMethod reports whether f belongs to a class.
func (f *Function) IsMethod() bool { return f.Owner != nil }

// Required returns the number of parameters without a default argument.
func (f *Function) Required() int {
	n := 0
	for _, p := range f.Params {
		if p.Default == "" {
			n++
		}
	}
	return n
}

// Signature returns the parameter-type signature used to tell overloads apart,
// e.g. "(int, const std::string&) const".
func (f *Function) Signature() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type.String())
	}
	if f.Variadic {
		if len(f.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
	if f.Const {
		b.WriteString(" const")
	}
	return b.String()
}

// Prototype renders a readable C++ prototype: "int geo::add(int a, int b)".
func (f *Function) Prototype() string {
	var b strings.Builder
	if f.Return != nil {
		b.WriteString(f.Return.String())
		b.WriteByte(' ')
	}
	b.WriteString(f.QualifiedName())
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type.String())
		if p.Name != "" {
			b.WriteByte(' ')
			b.WriteString(p.Name)
		}
		if p.Default != "" {
			b.WriteString(" = ")
			b.WriteString(p.Default)
		}
	}
	if f.Variadic {
		if len(f.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
	if f.Const {
		b.WriteString(" const")
	}
	return b.String()
}

// Field is a data member.
type Field struct {
	Decl
	Type   Type `json:"type" yaml:"type"`
	Static bool `json:"static,omitempty" yaml:"static,omitempty"`
}

func (*Field) Kind() Kind { return KindField }

// Class is a class or struct. Only the public surface is modeled.
type Class struct {
	Decl
	Struct         bool        `json:"struct,omitempty" yaml:"struct,omitempty"`
	Base           *Type       `json:"base,omitempty" yaml:"base,omitempty"`
	ExtraBases     []Type      `json:"extraBases,omitempty" yaml:"extraBases,omitempty"`
	Members        []Entity    `json:"-" yaml:"-"`
	Ctors          []*Function `json:"-" yaml:"-"`
	HasDtor        bool        `json:"hasDtor,omitempty" yaml:"hasDtor,omitempty"`
	VirtualDtor    bool        `json:"virtualDtor,omitempty" yaml:"virtualDtor,omitempty"`
	Abstract       bool        `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	TemplateParams []string    `json:"templateParams,omitempty" yaml:"templateParams,omitempty"`

	// BaseClass is the modeled class named by Base, resolved by Build. Nil when the base is
	// not part of the model.
	BaseClass *Class `json:"-" yaml:"-"`
}

func (*Class) Kind() Kind { return KindClass }

// Methods returns the member functions in declaration order.
func (c *Class) Methods() []*Function {
	var out []*Function
	for _, m := range c.Members {
		if f, ok := m.(*Function); ok {
			out = append(out, f)
		}
	}
	return out
}

// Fields returns the data members in declaration order.
func (c *Class) Fields() []*Field {
	var out []*Field
	for _, m := range c.Members {
		if f, ok := m.(*Field); ok {
			out = append(out, f)
		}
	}
	return out
}

// Constructors returns the constructors that are not deleted.
func (c *Class) Constructors() []*Function {
	var out []*Function
	for _, f := range c.Ctors {
		if !f.Deleted {
			out = append(out, f)
		}
	}
	return out
}

// ImplicitDefault reports whether the class gets a compiler-generated default constructor.
func (c *Class) ImplicitDefault() bool {
	return len(c.Ctors) == 0 && !c.Abstract
}

// Instantiable reports whether the wrapper may construct the class.
func (c *Class) Instantiable() bool {
	return !c.Abstract && (c.ImplicitDefault() || len(c.Constructors()) > 0)
}

// IsTemplate reports whether the class is a template.
func (c *Class) IsTemplate() bool { return len(c.TemplateParams) > 0 }

// EnumLabel is one enumerator. Value holds the initializer expression, if any.
type EnumLabel struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Enum is a plain or scoped enumeration.
type Enum struct {
	Decl
	Scoped     bool        `json:"scoped,omitempty" yaml:"scoped,omitempty"`
	Underlying *Type       `json:"underlying,omitempty" yaml:"underlying,omitempty"`
	Labels     []EnumLabel `json:"labels" yaml:"labels"`
}

func (*Enum) Kind() Kind { return KindEnum }

// Typedef is a typedef or alias declaration.
type Typedef struct {
	Decl
	Type Type `json:"type" yaml:"type"`
}

func (*Typedef) Kind() Kind { return KindTypedef }

// Namespace groups entities. Namespaces are flattened by Build.
type Namespace struct {
	Decl
	Entities []Entity `json:"-" yaml:"-"`
}

func (*Namespace) Kind() Kind { return KindNamespace }

// Unit is the result of scanning one header.
type Unit struct {
	Path     string
	Text     string
	Entities []Entity
	Warnings []Warning
	// Forwards lists the qualified names of forward-declared classes.
	Forwards []string
}

// Module is the complete, validated declaration model of one invocation.
type Module struct {
	Name     string
	Headers  []string
	Digest   string
	Entities []Entity
	Warnings []Warning
	Forwards map[string]bool

	index map[string]Entity
}

// Functions returns the top-level functions in source order.
func (m *Module) Functions() []*Function {
	var out []*Function
	for _, e := range m.Entities {
		if f, ok := e.(*Function); ok {
			out = append(out, f)
		}
	}
	return out
}

// Classes returns the classes in source order.
func (m *Module) Classes() []*Class {
	var out []*Class
	for _, e := range m.Entities {
		if c, ok := e.(*Class); ok {
			out = append(out, c)
		}
	}
	return out
}

// Lookup resolves a possibly qualified C++ name as seen from within scope, trying the
// innermost scope first. Function names resolve to the first overload.
func (m *Module) Lookup(name string, scope []string) Entity {
	name = strings.TrimPrefix(name, "::")
	for i := len(scope); i >= 0; i-- {
		q := name
		if i > 0 {
			q = strings.Join(scope[:i], "::") + "::" + name
		}
		if e, ok := m.index[q]; ok {
			return e
		}
	}
	return nil
}

// Forwarded resolves name against the forward declarations visible from scope and returns
// the qualified name it refers to.
func (m *Module) Forwarded(name string, scope []string) (string, bool) {
	name = strings.TrimPrefix(name, "::")
	for i := len(scope); i >= 0; i-- {
		q := name
		if i > 0 {
			q = strings.Join(scope[:i], "::") + "::" + name
		}
		if m.Forwards[q] {
			return q, true
		}
	}
	return "", false
}

// Walk calls fn for every entity in source order, descending into namespaces.
func Walk(entities []Entity, fn func(Entity)) {
	for _, e := range entities {
		fn(e)
		if ns, ok := e.(*Namespace); ok {
			Walk(ns.Entities, fn)
		}
	}
}

// Flatten returns the non-namespace entities in depth-first source order.
func Flatten(entities []Entity) []Entity {
	var out []Entity
	Walk(entities, func(e Entity) {
		if e.Kind() != KindNamespace {
			out = append(out, e)
		}
	})
	return out
}
