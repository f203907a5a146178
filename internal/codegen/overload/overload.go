// Package overload decides which member of an overload group a Python call reaches.
//
// Candidates are tried in declaration order and the first one whose arity and structural
// argument checks pass wins. The same checks are rendered into the wrapper's dispatchers, so
// Select describes the generated code's behavior exactly.
package overload

import (
	"fmt"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

// Policy selects how permissive argument checks are.
type Policy string

const (
	// FirstCompatible accepts Python's implicit widenings: bool for int, int for float and
	// plain ints for enums.
	FirstCompatible Policy = "first-compatible"
	// Strict requires the exact Python type.
	Strict Policy = "strict"
)

// ParsePolicy parses a configured policy name. The empty string selects FirstCompatible.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", FirstCompatible:
		return FirstCompatible, nil
	case Strict:
		return Strict, nil
	}
	return "", fmt.Errorf("unknown overload policy %q (want %s or %s)", s, FirstCompatible, Strict)
}

// Candidate is one overload as the dispatcher sees it.
type Candidate struct {
	Fn     *model.Function
	Params []typemap.HostType
}

// Accepts reports whether a call with n positional arguments fits the candidate's arity.
// It is the Go counterpart of the length test Condition emits.
func (c Candidate) Accepts(n int) bool {
	return n >= c.Fn.Required() && n <= len(c.Params)
}

// Arg describes the runtime type of a Python argument.
type Arg struct {
	Kind typemap.Kind
	// Class is the proxy class of a KindClass argument.
	Class *model.Class
	// Enum is the enum of a KindEnum argument.
	Enum *model.Enum
}

// Matches reports whether arg passes the check for param, mirroring the expression Check
// emits. Python bools and IntEnum members are ints, so they pass every check an int passes.
func (p Policy) Matches(param typemap.HostType, arg Arg) bool {
	isInt := arg.Kind == typemap.KindInt || arg.Kind == typemap.KindBool || arg.Kind == typemap.KindEnum
	switch param.Kind {
	case typemap.KindBool:
		return arg.Kind == typemap.KindBool
	case typemap.KindInt:
		if p == Strict {
			return arg.Kind == typemap.KindInt || arg.Kind == typemap.KindEnum
		}
		return isInt
	case typemap.KindFloat:
		if p == Strict {
			return arg.Kind == typemap.KindFloat
		}
		return arg.Kind == typemap.KindFloat || isInt && arg.Kind != typemap.KindBool
	case typemap.KindStr:
		return arg.Kind == typemap.KindStr
	case typemap.KindList:
		return arg.Kind == typemap.KindList || arg.Kind == typemap.KindTuple
	case typemap.KindSet, typemap.KindDict, typemap.KindTuple:
		return arg.Kind == param.Kind
	case typemap.KindEnum:
		if p == Strict {
			return arg.Kind == typemap.KindEnum && arg.Enum == param.Enum
		}
		return isInt
	case typemap.KindClass:
		if arg.Kind != typemap.KindClass {
			return false
		}
		for c := arg.Class; c != nil; c = c.BaseClass {
			if c == param.Class {
				return true
			}
		}
		return false
	case typemap.KindOpaque:
		return isInt
	}
	return false
}

// Select returns the index of the first candidate that accepts args. It evaluates in Go
// what the generated dispatcher evaluates at call time, so dispatch outcomes can be
// asserted without running Cython. The generators only use Condition.
func (p Policy) Select(cands []Candidate, args []Arg) (int, bool) {
	for i, c := range cands {
		if !c.Accepts(len(args)) {
			continue
		}
		ok := true
		for j, a := range args {
			if !p.Matches(c.Params[j], a) {
				ok = false
				break
			}
		}
		if ok {
			return i, true
		}
	}
	return -1, false
}

// Check renders the Python expression testing that expr passes the check for param.
// Enum and class checks refer to the host names of their wrappers.
func (p Policy) Check(param typemap.HostType, expr string) string {
	switch param.Kind {
	case typemap.KindBool:
		return fmt.Sprintf("isinstance(%s, bool)", expr)
	case typemap.KindInt:
		if p == Strict {
			return fmt.Sprintf("(isinstance(%s, int) and not isinstance(%s, bool))", expr, expr)
		}
		return fmt.Sprintf("isinstance(%s, int)", expr)
	case typemap.KindFloat:
		if p == Strict {
			return fmt.Sprintf("isinstance(%s, float)", expr)
		}
		return fmt.Sprintf("(isinstance(%s, (int, float)) and not isinstance(%s, bool))", expr, expr)
	case typemap.KindStr:
		return fmt.Sprintf("isinstance(%s, str)", expr)
	case typemap.KindList:
		return fmt.Sprintf("isinstance(%s, (list, tuple))", expr)
	case typemap.KindSet:
		return fmt.Sprintf("isinstance(%s, (set, frozenset))", expr)
	case typemap.KindDict:
		return fmt.Sprintf("isinstance(%s, dict)", expr)
	case typemap.KindTuple:
		return fmt.Sprintf("(isinstance(%s, tuple) and len(%s) == 2)", expr, expr)
	case typemap.KindEnum:
		if p == Strict {
			return fmt.Sprintf("isinstance(%s, %s)", expr, param.Enum.HostName)
		}
		return fmt.Sprintf("isinstance(%s, (%s, int))", expr, param.Enum.HostName)
	case typemap.KindClass:
		return fmt.Sprintf("isinstance(%s, %s)", expr, param.Class.HostName)
	case typemap.KindOpaque:
		return fmt.Sprintf("isinstance(%s, int)", expr)
	}
	return "True"
}

// Condition renders the full test for calling c with the tuple named args.
func (p Policy) Condition(c Candidate, args string) string {
	var conds []string
	req, n := c.Fn.Required(), len(c.Params)
	if req == n {
		conds = append(conds, fmt.Sprintf("len(%s) == %d", args, n))
	} else {
		conds = append(conds, fmt.Sprintf("%d <= len(%s) <= %d", req, args, n))
	}
	for i, h := range c.Params {
		check := p.Check(h, fmt.Sprintf("%s[%d]", args, i))
		if i >= req {
			check = fmt.Sprintf("(len(%s) <= %d or %s)", args, i, check)
		}
		conds = append(conds, check)
	}
	return strings.Join(conds, " and ")
}
