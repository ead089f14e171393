package annotation

import (
	"github.com/speakeasy-api/annotator/flowgraph"
)

// Operand is an operation argument: its current value and, when it comes
// from a variable, the variable it was read from.
type Operand struct {
	Var   flowgraph.VarID
	Value *Value
}

// Const builds an operand for a value that does not come from a variable.
func Const(v *Value) Operand { return Operand{Value: v} }

// Var builds an operand read from a variable.
func Var(id flowgraph.VarID, v *Value) Operand { return Operand{Var: id, Value: v} }

// Facts are refinements of variables that hold only along one outcome of a
// boolean result.
type Facts struct {
	OnTrue  map[flowgraph.VarID]*Value
	OnFalse map[flowgraph.VarID]*Value
}

// Empty reports whether no refinement is recorded.
func (f Facts) Empty() bool {
	return len(f.OnTrue) == 0 && len(f.OnFalse) == 0
}

// Branch returns the refinements for the given outcome.
func (f Facts) Branch(outcome bool) map[flowgraph.VarID]*Value {
	if outcome {
		return f.OnTrue
	}
	return f.OnFalse
}

func (f *Facts) add(outcome bool, v flowgraph.VarID, val *Value) {
	if v.IsZero() || val == nil {
		return
	}
	m := &f.OnFalse
	if outcome {
		m = &f.OnTrue
	}
	if *m == nil {
		*m = make(map[flowgraph.VarID]*Value)
	}
	(*m)[v] = val
}

// Result is the outcome of evaluating one operation.
type Result struct {
	Value  *Value
	Facts  Facts
	Raises []string // exceptions the operation may raise
}

func result(v *Value, raises ...string) Result {
	return Result{Value: v, Raises: raises}
}

func (r Result) withRaises(raises ...string) Result {
	for _, e := range raises {
		if !r.MayRaise(e) {
			r.Raises = append(r.Raises, e)
		}
	}
	return r
}

// MayRaise reports whether the operation may raise exc.
func (r Result) MayRaise(exc string) bool {
	for _, e := range r.Raises {
		if e == exc {
			return true
		}
	}
	return false
}

// Exceptions raised by operations.
const (
	ExcZeroDivision  = "ZeroDivisionError"
	ExcValue         = "ValueError"
	ExcIndex         = "IndexError"
	ExcKey           = "KeyError"
	ExcStopIteration = "StopIteration"
	ExcOverflow      = "OverflowError"
)

// narrowInstance intersects v with instances of cd, returning nil when
// nothing is left.
func narrowInstance(v *Value, cd *ClassDef) *Value {
	switch v.Kind {
	case KindTop:
		return InstanceOf(cd, false)
	case KindInstance:
		if v.Class.IsSubclassOf(cd) {
			return v.NonNone()
		}
		if cd.IsSubclassOf(v.Class) {
			return InstanceOf(cd, false)
		}
	}
	return nil
}

// typeValue is the value a variable of builtin type t refines to.
func typeValue(t HostType) *Value {
	switch t {
	case TypeBool:
		return Bool()
	case TypeInt:
		return Int()
	case TypeFloat:
		return Float()
	case TypeStr:
		return Str()
	case TypeUnicode:
		return UnicodeStr()
	case TypeNone:
		return None()
	case TypeTypeType:
		return TypeValue()
	}
	return nil
}

// kindType maps a value kind to the builtin type of its instances.
func kindType(k Kind) (HostType, bool) {
	switch k {
	case KindNone:
		return TypeNone, true
	case KindBool:
		return TypeBool, true
	case KindInt:
		return TypeInt, true
	case KindFloat:
		return TypeFloat, true
	case KindStr, KindChar:
		return TypeStr, true
	case KindUnicodeStr, KindUnicodeChar:
		return TypeUnicode, true
	case KindTuple:
		return TypeTuple, true
	case KindList:
		return TypeList, true
	case KindDict:
		return TypeDict, true
	case KindType:
		return TypeTypeType, true
	}
	return "", false
}
