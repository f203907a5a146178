package model

import (
	"fmt"

	"github.com/Alia5/cxxwrap/internal/codegen/lexer"
)

// ParseError reports malformed input. It is fatal for the unit being scanned.
type ParseError struct {
	Path      string
	Pos       lexer.Pos
	Construct string
	Msg       string
}

func (e *ParseError) Error() string {
	loc := e.Pos.String()
	if e.Path != "" {
		loc = e.Path + ":" + loc
	}
	if e.Construct != "" {
		return fmt.Sprintf("%s: %s (in %s)", loc, e.Msg, e.Construct)
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

// GenerationError reports a model that violates an invariant the generators rely on.
type GenerationError struct {
	Entity string
	Msg    string
}

func (e *GenerationError) Error() string {
	if e.Entity == "" {
		return "generation: " + e.Msg
	}
	return fmt.Sprintf("generation: %s: %s", e.Entity, e.Msg)
}

// WarningKind classifies non-fatal diagnostics.
type WarningKind string

const (
	WarnSkipped             WarningKind = "skipped"
	WarnUnresolvedType      WarningKind = "unresolved-type"
	WarnMultipleInheritance WarningKind = "multiple-inheritance"
	WarnTemplate            WarningKind = "template"
	WarnSignatureMismatch   WarningKind = "signature-mismatch"
	WarnDuplicate           WarningKind = "duplicate"
	WarnUnsupported         WarningKind = "unsupported"
)

// Warning is a non-fatal diagnostic attached to the result.
type Warning struct {
	Kind      WarningKind `json:"kind" yaml:"kind"`
	Path      string      `json:"path,omitempty" yaml:"path,omitempty"`
	Pos       lexer.Pos   `json:"pos" yaml:"pos"`
	Construct string      `json:"construct,omitempty" yaml:"construct,omitempty"`
	Message   string      `json:"message" yaml:"message"`
}

func (w Warning) String() string {
	loc := w.Pos.String()
	if w.Path != "" {
		loc = w.Path + ":" + loc
	}
	return fmt.Sprintf("%s: %s: %s", loc, w.Kind, w.Message)
}

// Check verifies that e carries everything the generators need. Constructors are only valid
// inside a class.
func Check(e Entity) error {
	d := e.Declaration()
	if d.Name == "" {
		return &GenerationError{Entity: string(e.Kind()), Msg: "declaration without a name"}
	}
	switch e := e.(type) {
	case *Function:
		if e.Return == nil {
			return &GenerationError{Entity: d.QualifiedName(), Msg: "function without a return type"}
		}
		return checkParams(e)
	case *Class:
		for _, f := range e.Constructors() {
			if err := checkParams(f); err != nil {
				return err
			}
		}
		for _, m := range e.Members {
			switch m := m.(type) {
			case *Function:
				if err := Check(m); err != nil {
					return err
				}
			case *Field:
				if m.Type.IsZero() {
					return &GenerationError{Entity: m.QualifiedName(), Msg: "field without a type"}
				}
			}
		}
	case *Typedef:
		if e.Type.IsZero() {
			return &GenerationError{Entity: d.QualifiedName(), Msg: "alias without a type"}
		}
	}
	return nil
}

func checkParams(f *Function) error {
	for i, p := range f.Params {
		if p.Type.IsZero() {
			return &GenerationError{Entity: f.QualifiedName(), Msg: fmt.Sprintf("parameter %d without a type", i+1)}
		}
	}
	return nil
}
