package annotation

import (
	"fmt"
	"math"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// unaryFunc evaluates one single-dispatch operation. args carries the
// remaining operands: the attribute name of getattr, the class of
// isinstance, and so on.
type unaryFunc func(bk *Bookkeeper, a Operand, args []Operand) (Result, error)

type unaryKey struct {
	op   flowgraph.Opcode
	kind Kind
}

var unaryTable = make(map[unaryKey]unaryFunc)

func registerUnary(f unaryFunc, op flowgraph.Opcode, kinds ...Kind) {
	for _, k := range kinds {
		unaryTable[unaryKey{op, k}] = f
	}
}

func lookupUnary(op flowgraph.Opcode, kind Kind) (unaryFunc, bool) {
	for k, ok := kind, true; ok; k, ok = k.parent() {
		if f, found := unaryTable[unaryKey{op, k}]; found {
			return f, true
		}
	}
	return nil, false
}

// Unary evaluates an operation dispatched on its first operand at the
// current position.
func (bk *Bookkeeper) Unary(op flowgraph.Opcode, a Operand, args ...Operand) (Result, error) {
	bk.Position()
	switch op.Class() {
	case flowgraph.ClassUnary:
	case flowgraph.ClassCall:
		return bk.callOp(op, a, CallShape{Positional: len(args)}, args)
	default:
		return Result{}, fmt.Errorf("%s: %s is not a unary operation", bk.pos, op)
	}
	if a.Value.IsBottom() {
		return result(Bottom()), nil
	}
	for _, o := range args {
		if o.Value.IsBottom() {
			return result(Bottom()), nil
		}
	}
	switch op {
	case flowgraph.OpGetAttr, flowgraph.OpSetAttr, flowgraph.OpDelAttr:
		if len(args) == 0 {
			return Result{}, fmt.Errorf("%s: %s needs an attribute name", bk.pos, op)
		}
		if _, ok := args[0].Value.ConstString(); !ok {
			return Result{}, bk.domainError("%s with non-constant attribute name %s", op, args[0].Value)
		}
	}
	bk.count(op.String())

	f, ok := lookupUnary(op, a.Value.Kind)
	if !ok && op.Base() != flowgraph.OpInvalid {
		f, ok = lookupUnary(op.Base(), a.Value.Kind)
	}
	if !ok {
		return Result{}, bk.unsupported(op, a.Value.Kind)
	}
	r, err := f(bk, a, args)
	if err != nil {
		return Result{}, err
	}
	if r.Value == nil {
		r.Value = Bottom()
	}
	if op.IsOverflowChecked() {
		r = r.withRaises(ExcOverflow)
	}
	return r, nil
}

func init() {
	registerUnary(truth, flowgraph.OpIsTrue, KindTop)

	registerUnary(lenOf, flowgraph.OpLen, KindStr, KindUnicodeStr, KindTuple, KindList, KindDict)
	registerUnary(iterOf, flowgraph.OpIter, KindStr, KindUnicodeStr, KindTuple, KindList, KindDict, KindIterator)
	registerUnary(nextOf, flowgraph.OpNext, KindIterator)

	registerUnary(instanceGetAttr, flowgraph.OpGetAttr, KindInstance)
	registerUnary(callableGetAttr, flowgraph.OpGetAttr, KindCallable)
	registerUnary(methodGetAttr, flowgraph.OpGetAttr, KindList, KindDict, KindStr, KindUnicodeStr)
	registerUnary(instanceSetAttr, flowgraph.OpSetAttr, KindInstance)
	registerUnary(frozenSetAttr, flowgraph.OpSetAttr, KindCallable)
	registerUnary(delAttr, flowgraph.OpDelAttr, KindTop)

	registerUnary(toStr, flowgraph.OpStr, KindTop)
	registerUnary(toStr, flowgraph.OpRepr, KindTop)
	registerUnary(toStr, flowgraph.OpHex, KindInt)
	registerUnary(toStr, flowgraph.OpOct, KindInt)
	registerUnary(typeOf, flowgraph.OpType, KindTop)
	registerUnary(isInstance, flowgraph.OpIsInstance, KindTop)
	registerUnary(isSubtype, flowgraph.OpIsSubtype, KindType)
	registerUnary(hashOf, flowgraph.OpHash, KindTop)
	registerUnary(unhashable, flowgraph.OpHash, KindList, KindDict)
	registerUnary(idOf, flowgraph.OpID, KindTop)

	registerUnary(toInt, flowgraph.OpInt, KindInt, KindFloat, KindStr, KindUnicodeStr)
	registerUnary(toFloatOp, flowgraph.OpFloat, KindInt, KindFloat, KindStr, KindUnicodeStr)
	registerUnary(ordOf, flowgraph.OpOrd, KindChar, KindUnicodeChar)
	registerUnary(chrOf(Char), flowgraph.OpChr, KindInt)
	registerUnary(chrOf(UnicodeChar), flowgraph.OpUnichr, KindInt)

	registerUnary(intNeg, flowgraph.OpNeg, KindInt)
	registerUnary(intPos, flowgraph.OpPos, KindInt)
	registerUnary(intAbs, flowgraph.OpAbs, KindInt)
	registerUnary(intInvert, flowgraph.OpInvert, KindInt)
	registerUnary(floatUnary, flowgraph.OpNeg, KindFloat)
	registerUnary(floatUnary, flowgraph.OpPos, KindFloat)
	registerUnary(floatUnary, flowgraph.OpAbs, KindFloat)
}

// ----------------------------------------------------------------------------
// Truth, length, iteration
// ----------------------------------------------------------------------------

func constTruth(v *Value) (bool, bool) {
	switch v.Kind {
	case KindNone:
		return false, true
	case KindTuple:
		return len(v.Items) > 0, true
	case KindInstance, KindCallable, KindBuiltin, KindIterator, KindSlice, KindType:
		if !v.Nullable {
			return true, true
		}
	}
	if !foldable(v) {
		return false, false
	}
	switch c := v.Const.(type) {
	case bool:
		return c, true
	case int64:
		return c != 0, true
	case uint64:
		return c != 0, true
	case float64:
		return c != 0, true
	case string:
		return c != "", true
	case Unicode:
		return c != "", true
	}
	return false, false
}

// truth evaluates bool(x). A nullable operand is known not to be None when
// the result is true.
func truth(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	if c, ok := constTruth(a.Value); ok {
		return result(ConstBool(c)), nil
	}
	r := result(Bool())
	if a.Value.Nullable && a.Value.Kind != KindTop {
		r.Facts.add(true, a.Var, a.Value.NonNone())
	}
	return r, nil
}

func lenOf(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v := a.Value
	if v.Kind == KindTuple {
		return result(ConstInt(int64(len(v.Items)))), nil
	}
	if v.Kind == KindUnicodeStr || v.Kind == KindUnicodeChar {
		if s, ok := v.ConstString(); ok {
			return result(ConstInt(int64(len([]rune(s))))), nil
		}
	} else if s, ok := v.ConstString(); ok {
		return result(ConstInt(int64(len(s)))), nil
	}
	return result(NonnegInt()), nil
}

func iterOf(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	switch a.Value.Kind {
	case KindIterator:
		return result(a.Value), nil
	case KindDict:
		return result(IteratorOf(a.Value, "keys")), nil
	}
	return result(IteratorOf(a.Value.NonNone(), "")), nil
}

func nextOf(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v, err := bk.iterItem(a.Value)
	if err != nil {
		return Result{}, err
	}
	return result(v, ExcStopIteration), nil
}

// iterItem returns the value produced by iterating over an iterator.
func (bk *Bookkeeper) iterItem(it *Value) (*Value, error) {
	c := it.Container
	switch c.Kind {
	case KindList:
		return c.List.ReadItem(), nil
	case KindDict:
		switch it.Variant {
		case "values":
			return c.Dict.ReadValue(), nil
		case "items":
			return bk.NewTuple(c.Dict.ReadKey(), c.Dict.ReadValue())
		}
		return c.Dict.ReadKey(), nil
	case KindStr, KindChar:
		return Char(), nil
	case KindUnicodeStr, KindUnicodeChar:
		return UnicodeChar(), nil
	case KindTuple:
		return bk.Union(c.Items...)
	}
	return nil, bk.unsupported(flowgraph.OpNext, c.Kind)
}

// ----------------------------------------------------------------------------
// Attributes
// ----------------------------------------------------------------------------

func attrName(args []Operand) string {
	name, _ := args[0].Value.ConstString()
	return name
}

func instanceGetAttr(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	v, err := bk.instanceGetAttr(a.Value.Class, attrName(args))
	if err != nil {
		return Result{}, err
	}
	return result(v), nil
}

func callableGetAttr(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	if len(a.Value.Descs) == 0 {
		return result(Bottom()), nil
	}
	v, err := bk.descGetAttr(a.Value.Descs, attrName(args))
	if err != nil {
		return Result{}, err
	}
	return result(v), nil
}

// methodGetAttr binds a builtin method of a list, dict or string.
func methodGetAttr(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	name := methodPrefix(a.Value.Kind) + "." + attrName(args)
	if _, ok := builtinRegistry[name]; !ok {
		return Result{}, bk.domainError("%s has no attribute %q", a.Value.Kind, attrName(args))
	}
	return result(BuiltinOf(name, a.Value.NonNone())), nil
}

func methodPrefix(k Kind) string {
	switch k {
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindUnicodeStr, KindUnicodeChar:
		return "unicode"
	}
	return "str"
}

func instanceSetAttr(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	if len(args) != 2 {
		return Result{}, fmt.Errorf("%s: setattr needs a value operand", bk.pos)
	}
	if err := bk.instanceSetAttr(a.Value.Class, attrName(args), args[1].Value); err != nil {
		return Result{}, err
	}
	return result(None()), nil
}

func frozenSetAttr(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	return Result{}, bk.domainError("cannot set attribute %q on prebuilt %s", attrName(args), a.Value)
}

func delAttr(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	return Result{}, bk.domainError("cannot delete attribute %q of %s", attrName(args), a.Value)
}

// ----------------------------------------------------------------------------
// Conversions and introspection
// ----------------------------------------------------------------------------

func toStr(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	return result(Str()), nil
}

// typeOf evaluates type(x), remembering x as the provenance of the result.
func typeOf(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v := a.Value
	var t *Value
	if ht, ok := kindType(v.Kind); ok && !v.Nullable {
		t = ConstType(ht)
	} else {
		t = TypeValue()
	}
	if !a.Var.IsZero() {
		t.TypeOf = []flowgraph.VarID{a.Var}
	}
	return result(t), nil
}

// typeTarget is one class or builtin type an isinstance check tests for.
type typeTarget struct {
	builtin HostType
	class   *ClassDef
}

func (bk *Bookkeeper) typeTargets(t *Value) ([]typeTarget, error) {
	if t.Kind == KindTuple {
		var out []typeTarget
		for _, it := range t.Items {
			ts, err := bk.typeTargets(it)
			if err != nil {
				return nil, err
			}
			out = append(out, ts...)
		}
		return out, nil
	}
	if t.Kind == KindType && t.HasConst {
		return []typeTarget{{builtin: t.Const.(HostType)}}, nil
	}
	if t.Kind == KindCallable && len(t.Descs) > 0 {
		out := make([]typeTarget, 0, len(t.Descs))
		for _, d := range t.Descs {
			cd, ok := d.(*ClassDesc)
			if !ok {
				return nil, bk.domainError("isinstance() second argument must be a class, got %s", t)
			}
			out = append(out, typeTarget{class: cd.Class})
		}
		return out, nil
	}
	return nil, bk.domainError("isinstance() second argument must be a constant class or type, got %s", t)
}

// matchType classifies the non-None values of x against one target: every
// value matches, some values match (narrowed to the matching part), or
// none does.
func matchType(x *Value, t typeTarget) (all bool, narrowed *Value) {
	if t.class != nil {
		switch x.Kind {
		case KindTop:
			return false, InstanceOf(t.class, false)
		case KindInstance:
			if x.Class.IsSubclassOf(t.class) {
				return true, nil
			}
			if t.class.IsSubclassOf(x.Class) {
				return false, InstanceOf(t.class, false)
			}
		}
		return false, nil
	}
	if t.builtin == TypeObject {
		return true, nil
	}
	if x.Kind == KindTop {
		return false, typeValue(t.builtin)
	}
	xt, ok := kindType(x.Kind)
	if !ok {
		return false, nil
	}
	if xt.isSubtype(t.builtin) {
		return true, nil
	}
	if t.builtin.isSubtype(xt) {
		return false, typeValue(t.builtin)
	}
	return false, nil
}

// isInstance evaluates isinstance(x, T). When x can never be a T the result
// is the constant False; when it always is, the constant True; otherwise x
// is narrowed to the matching part on the true outcome.
func isInstance(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	if len(args) != 1 {
		return Result{}, fmt.Errorf("%s: isinstance needs a class operand", bk.pos)
	}
	targets, err := bk.typeTargets(args[0].Value)
	if err != nil {
		return Result{}, err
	}
	x := a.Value

	if x.Kind == KindNone {
		for _, t := range targets {
			if t.builtin == TypeNone || t.builtin == TypeObject {
				return result(ConstBool(true)), nil
			}
		}
		return result(ConstBool(false)), nil
	}

	all, partial, precise := false, false, true
	narrowed := Bottom()
	for _, t := range targets {
		ok, n := matchType(x, t)
		if ok {
			all = true
			break
		}
		if n == nil {
			continue
		}
		partial = true
		if !precise {
			continue
		}
		u, err := bk.union(narrowed, n)
		if err != nil {
			precise = false
			continue
		}
		narrowed = u
	}

	switch {
	case all && !x.Nullable:
		return result(ConstBool(true)), nil
	case all:
		r := result(Bool())
		r.Facts.add(true, a.Var, x.NonNone())
		return r, nil
	case partial:
		r := result(Bool())
		if precise {
			r.Facts.add(true, a.Var, narrowed)
		}
		return r, nil
	}
	return result(ConstBool(false)), nil
}

// isSubtype evaluates issubtype(t, C), narrowing the variables t was taken
// from on the true outcome.
func isSubtype(bk *Bookkeeper, a Operand, args []Operand) (Result, error) {
	if len(args) != 1 {
		return Result{}, fmt.Errorf("%s: issubtype needs a class operand", bk.pos)
	}
	targets, err := bk.typeTargets(args[0].Value)
	if err != nil {
		return Result{}, err
	}
	t := a.Value
	if t.HasConst {
		ht := t.Const.(HostType)
		for _, tt := range targets {
			if tt.class == nil && ht.isSubtype(tt.builtin) {
				return result(ConstBool(true)), nil
			}
		}
		allBuiltin := true
		for _, tt := range targets {
			allBuiltin = allBuiltin && tt.class == nil
		}
		if allBuiltin {
			return result(ConstBool(false)), nil
		}
	}
	r := result(Bool())
	if len(targets) == 1 && targets[0].class != nil {
		bk.narrowTypeOf(&r.Facts, t.TypeOf, targets[0].class)
	}
	return r, nil
}

// narrowTypeOf records that every variable in vars holds an instance of cd
// on the true outcome.
func (bk *Bookkeeper) narrowTypeOf(f *Facts, vars []flowgraph.VarID, cd *ClassDef) {
	for _, v := range vars {
		if n := narrowInstance(bk.Binding(v), cd); n != nil {
			f.add(true, v, n)
		}
	}
}

func hashOf(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	return result(Int()), nil
}

func unhashable(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	return Result{}, bk.domainError("unhashable %s", a.Value.Kind)
}

func idOf(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	return result(Int()), nil
}

func toInt(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v := a.Value
	switch {
	case v.IsInt():
		return result(IntOf(v.Nonneg, v.Unsigned, v.Size)), nil
	case v.Kind == KindFloat:
		return result(Int(), ExcOverflow), nil
	}
	return result(Int(), ExcValue), nil
}

func toFloatOp(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	if a.Value.IsInt() || a.Value.Kind == KindFloat {
		return result(Float()), nil
	}
	return result(Float(), ExcValue), nil
}

func ordOf(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	if s, ok := a.Value.ConstString(); ok {
		for _, r := range s {
			return result(ConstInt(int64(r))), nil
		}
	}
	return result(NonnegInt()), nil
}

func chrOf(char func() *Value) unaryFunc {
	return func(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
		return result(char(), ExcValue), nil
	}
}

func intNeg(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v := a.Value
	if c, ok := v.Const.(int64); ok && v.HasConst && c != math.MinInt64 {
		return result(ConstInt(-c)), nil
	}
	return result(IntOf(v.Unsigned, v.Unsigned, v.Size)), nil
}

func intPos(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v := a.Value
	return result(IntOf(v.Nonneg, v.Unsigned, v.Size)), nil
}

func intAbs(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v := a.Value
	return result(IntOf(true, v.Unsigned, v.Size)), nil
}

func intInvert(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	v := a.Value
	return result(IntOf(v.Unsigned, v.Unsigned, v.Size)), nil
}

func floatUnary(bk *Bookkeeper, a Operand, _ []Operand) (Result, error) {
	return result(Float()), nil
}

// ----------------------------------------------------------------------------
// Calls
// ----------------------------------------------------------------------------

// typeBuiltins maps builtin type objects to the builtin that constructs
// their instances.
var typeBuiltins = map[HostType]string{
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeStr:     "str",
	TypeUnicode: "unicode",
	TypeList:    "list",
	TypeDict:    "dict",
}

func (bk *Bookkeeper) callOp(op flowgraph.Opcode, fn Operand, shape CallShape, args []Operand) (Result, error) {
	bk.Position()
	if len(args) != shape.Arity() {
		return Result{}, fmt.Errorf("%s: call shape %s does not match %d arguments", bk.pos, shape, len(args))
	}
	if fn.Value.IsBottom() {
		return result(Bottom()), nil
	}
	values := make([]*Value, len(args))
	for i, a := range args {
		if a.Value.IsBottom() {
			return result(Bottom()), nil
		}
		values[i] = a.Value
	}
	bk.count(op.String())

	f := fn.Value
	switch f.Kind {
	case KindCallable:
		v, err := bk.callDescs(f, shape, values)
		if err != nil {
			return Result{}, err
		}
		return result(v), nil
	case KindBuiltin:
		return bk.callBuiltin(f.Builtin, f.Self, shape, args)
	case KindType:
		if f.HasConst {
			if name, ok := typeBuiltins[f.Const.(HostType)]; ok {
				return bk.callBuiltin(name, nil, shape, args)
			}
		}
	}
	return Result{}, bk.unsupported(op, f.Kind)
}
