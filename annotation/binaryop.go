package annotation

import (
	"fmt"
	"math"
	"strings"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// binaryFunc evaluates one binary operation. extra carries the third
// operand of pow and the stored value of setitem.
type binaryFunc func(bk *Bookkeeper, a, b Operand, extra []Operand) (Result, error)

type binaryKey struct {
	op          flowgraph.Opcode
	left, right Kind
}

var binaryTable = make(map[binaryKey]binaryFunc)

func registerBinary(f binaryFunc, left, right Kind, ops ...flowgraph.Opcode) {
	for _, op := range ops {
		binaryTable[binaryKey{op, left, right}] = f
	}
}

// lookupBinary finds the most specific handler, walking the left kind's
// ancestors in the outer loop and the right kind's in the inner loop.
func lookupBinary(op flowgraph.Opcode, left, right Kind) (binaryFunc, bool) {
	for l, lok := left, true; lok; l, lok = l.parent() {
		for r, rok := right, true; rok; r, rok = r.parent() {
			if f, ok := binaryTable[binaryKey{op, l, r}]; ok {
				return f, true
			}
		}
	}
	return nil, false
}

// Binary evaluates a binary operation at the current position.
func (bk *Bookkeeper) Binary(op flowgraph.Opcode, a, b Operand, extra ...Operand) (Result, error) {
	bk.Position()
	if op.Class() != flowgraph.ClassBinary {
		return Result{}, fmt.Errorf("%s: %s is not a binary operation", bk.pos, op)
	}
	if a.Value.IsBottom() || b.Value.IsBottom() {
		return result(Bottom()), nil
	}
	for _, e := range extra {
		if e.Value.IsBottom() {
			return result(Bottom()), nil
		}
	}
	bk.count(op.String())

	f, ok := lookupBinary(op, a.Value.Kind, b.Value.Kind)
	if !ok && op.Base() != flowgraph.OpInvalid {
		f, ok = lookupBinary(op.Base(), a.Value.Kind, b.Value.Kind)
	}
	if !ok {
		return Result{}, bk.unsupported(op, a.Value.Kind, b.Value.Kind)
	}
	r, err := f(bk, a, b, extra)
	if err != nil {
		return Result{}, err
	}
	if r.Value == nil {
		r.Value = Bottom()
	}
	if op.IsOverflowChecked() {
		r = r.withRaises(ExcOverflow)
	}
	if op == flowgraph.OpGetItemIdx {
		r = r.withRaises(ExcIndex)
	}
	return r, nil
}

var (
	arithmeticOps = []flowgraph.Opcode{flowgraph.OpAdd, flowgraph.OpSub, flowgraph.OpMul, flowgraph.OpPow}
	divisionOps   = []flowgraph.Opcode{flowgraph.OpDiv, flowgraph.OpTrueDiv, flowgraph.OpFloorDiv, flowgraph.OpMod}
	comparisonOps = []flowgraph.Opcode{flowgraph.OpLt, flowgraph.OpLe, flowgraph.OpEq, flowgraph.OpNe, flowgraph.OpGt, flowgraph.OpGe}
)

func init() {
	// generic
	for _, op := range comparisonOps {
		registerBinary(genericCompare(op), KindTop, KindTop, op)
	}
	registerBinary(genericCmp, KindTop, KindTop, flowgraph.OpCmp)
	registerBinary(isSame, KindTop, KindTop, flowgraph.OpIs)

	// integers
	registerBinary(intWiden, KindInt, KindInt, flowgraph.OpAdd, flowgraph.OpMul, flowgraph.OpOr, flowgraph.OpXor)
	registerBinary(intSub, KindInt, KindInt, flowgraph.OpSub)
	registerBinary(intAnd, KindInt, KindInt, flowgraph.OpAnd)
	registerBinary(intDiv, KindInt, KindInt, flowgraph.OpDiv, flowgraph.OpFloorDiv, flowgraph.OpMod)
	registerBinary(intTrueDiv, KindInt, KindInt, flowgraph.OpTrueDiv)
	registerBinary(intLshift, KindInt, KindInt, flowgraph.OpLshift)
	registerBinary(intRshift, KindInt, KindInt, flowgraph.OpRshift)
	registerBinary(intPow, KindInt, KindInt, flowgraph.OpPow)
	registerBinary(intDivMod, KindInt, KindInt, flowgraph.OpDivMod)
	registerBinary(intCoerce, KindInt, KindInt, flowgraph.OpCoerce)
	for _, op := range comparisonOps {
		registerBinary(intCompare(op), KindInt, KindInt, op)
	}
	registerBinary(boolLogic, KindBool, KindBool, flowgraph.OpAnd, flowgraph.OpOr, flowgraph.OpXor)

	// floats
	for _, pair := range [][2]Kind{{KindFloat, KindFloat}, {KindInt, KindFloat}, {KindFloat, KindInt}} {
		registerBinary(floatArith, pair[0], pair[1], arithmeticOps...)
		registerBinary(floatDiv, pair[0], pair[1], divisionOps...)
		registerBinary(floatDivMod, pair[0], pair[1], flowgraph.OpDivMod)
		registerBinary(floatCoerce, pair[0], pair[1], flowgraph.OpCoerce)
	}

	// strings
	registerStringOps(KindStr, Str, Char)
	registerStringOps(KindUnicodeStr, UnicodeStr, UnicodeChar)

	// tuples
	registerBinary(tupleAdd, KindTuple, KindTuple, flowgraph.OpAdd)
	registerBinary(tupleMul, KindTuple, KindInt, flowgraph.OpMul)
	registerBinary(tupleGetItem, KindTuple, KindInt, flowgraph.OpGetItem)
	registerBinary(tupleGetSlice, KindTuple, KindSlice, flowgraph.OpGetItem)
	registerBinary(anyContains, KindTuple, KindTop, flowgraph.OpContains)

	// lists
	registerBinary(listAdd, KindList, KindList, flowgraph.OpAdd)
	registerBinary(listInplaceAdd, KindList, KindList, flowgraph.OpInplaceAdd)
	registerBinary(listMul, KindList, KindInt, flowgraph.OpMul)
	registerBinary(listInplaceMul, KindList, KindInt, flowgraph.OpInplaceMul)
	registerBinary(listGetItem, KindList, KindInt, flowgraph.OpGetItem)
	registerBinary(listGetSlice, KindList, KindSlice, flowgraph.OpGetItem)
	registerBinary(listSetItem, KindList, KindInt, flowgraph.OpSetItem)
	registerBinary(listSetSlice, KindList, KindSlice, flowgraph.OpSetItem)
	registerBinary(listDelItem, KindList, KindInt, flowgraph.OpDelItem)
	registerBinary(listDelSlice, KindList, KindSlice, flowgraph.OpDelItem)
	registerBinary(listContains, KindList, KindTop, flowgraph.OpContains)
	registerBinary(listEq, KindList, KindList, flowgraph.OpEq, flowgraph.OpNe)

	// dicts
	registerBinary(dictGetItem, KindDict, KindTop, flowgraph.OpGetItem)
	registerBinary(dictSetItem, KindDict, KindTop, flowgraph.OpSetItem)
	registerBinary(dictDelItem, KindDict, KindTop, flowgraph.OpDelItem)
	registerBinary(dictContains, KindDict, KindTop, flowgraph.OpContains)
	registerBinary(dictEq, KindDict, KindDict, flowgraph.OpEq, flowgraph.OpNe)
}

// ----------------------------------------------------------------------------
// Comparisons
// ----------------------------------------------------------------------------

// foldable reports whether v carries a scalar constant that comparisons can
// evaluate.
func foldable(v *Value) bool {
	if !v.HasConst {
		return false
	}
	switch v.Kind {
	case KindNone, KindBool, KindInt, KindFloat, KindStr, KindChar,
		KindUnicodeStr, KindUnicodeChar, KindType:
		return true
	}
	return false
}

func genericCompare(op flowgraph.Opcode) binaryFunc {
	return func(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
		if foldable(a.Value) && foldable(b.Value) {
			if v, ok := foldCompare(op, a.Value.Const, b.Value.Const); ok {
				return result(v), nil
			}
		}
		return result(Bool()), nil
	}
}

func genericCmp(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if foldable(a.Value) && foldable(b.Value) {
		if v, ok := foldCompare(flowgraph.OpCmp, a.Value.Const, b.Value.Const); ok {
			return result(v), nil
		}
	}
	return result(Int()), nil
}

// intCompare folds constant comparisons and otherwise records which operand
// must be non-negative on each outcome.
func intCompare(op flowgraph.Opcode) binaryFunc {
	return func(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
		if a.Value.HasConst && b.Value.HasConst {
			if v, ok := foldCompare(op, a.Value.Const, b.Value.Const); ok {
				return result(v), nil
			}
		}
		r := result(Bool())
		narrowCompare(&r.Facts, op, a, b)
		return r, nil
	}
}

func needsNonneg(o Operand) bool {
	return !o.Var.IsZero() && o.Value.Kind == KindInt && !o.Value.HasConst && !o.Value.Nonneg
}

func nonnegVariant(v *Value) *Value {
	return IntOf(true, v.Unsigned, v.Size)
}

// narrowCompare records, for a op b, the outcome on which one operand is
// bounded below by a non-negative other operand.
func narrowCompare(f *Facts, op flowgraph.Opcode, a, b Operand) {
	if a.Value.Unsigned || b.Value.Unsigned {
		return
	}
	if b.Value.Nonneg && needsNonneg(a) {
		switch op {
		case flowgraph.OpGt, flowgraph.OpGe, flowgraph.OpEq:
			f.add(true, a.Var, nonnegVariant(a.Value))
		case flowgraph.OpLt, flowgraph.OpLe, flowgraph.OpNe:
			f.add(false, a.Var, nonnegVariant(a.Value))
		}
	}
	if a.Value.Nonneg && needsNonneg(b) {
		switch op {
		case flowgraph.OpLt, flowgraph.OpLe, flowgraph.OpEq:
			f.add(true, b.Var, nonnegVariant(b.Value))
		case flowgraph.OpGt, flowgraph.OpGe, flowgraph.OpNe:
			f.add(false, b.Var, nonnegVariant(b.Value))
		}
	}
}

// isSame evaluates the identity test. Each operand is narrowed toward the
// other's constant on the true outcome, and away from None on the false
// outcome when the other side is None.
func isSame(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	va, vb := a.Value, b.Value
	r := result(Bool())
	switch {
	case va.Kind == KindNone && vb.Kind == KindNone:
		r.Value = ConstBool(true)
	case va.Kind == KindNone && !vb.CanBeNone(), vb.Kind == KindNone && !va.CanBeNone():
		r.Value = ConstBool(false)
	case va.Kind == KindBool && vb.Kind == KindBool && va.HasConst && vb.HasConst:
		r.Value = ConstBool(va.Const == vb.Const)
	case va.Kind == KindCallable && vb.Kind == KindCallable && va.IsConstant() && vb.IsConstant():
		r.Value = ConstBool(va.Descs[0].ID() == vb.Descs[0].ID())
	}
	bindIs(&r.Facts, a, b)
	bindIs(&r.Facts, b, a)
	bk.narrowIsTypeOf(&r.Facts, va, vb)
	bk.narrowIsTypeOf(&r.Facts, vb, va)
	return r, nil
}

// narrowIsTypeOf handles type(x) is C: the variables t was taken from hold
// instances of C on the true outcome.
func (bk *Bookkeeper) narrowIsTypeOf(f *Facts, t, c *Value) {
	if t.Kind != KindType || len(t.TypeOf) == 0 || c.Kind != KindCallable || !c.IsConstant() {
		return
	}
	if cd, ok := c.Descs[0].(*ClassDesc); ok {
		bk.narrowTypeOf(f, t.TypeOf, cd.Class)
	}
}

// bindIs narrows tgt to the constant src on the true outcome. When src is
// not among the values tgt may hold the true outcome is unreachable for tgt.
func bindIs(f *Facts, src, tgt Operand) {
	if src.Value.IsConstant() {
		if fitsIn(src.Value, tgt.Value) {
			f.add(true, tgt.Var, src.Value)
		} else {
			f.add(true, tgt.Var, Bottom())
		}
	}
	if src.Value.Kind == KindNone && tgt.Value.CanBeNone() {
		f.add(false, tgt.Var, tgt.Value.NonNone())
	}
}

// fitsIn reports whether the kind of v lies within t, so that every value
// v stands for may also be a value of t. Constants are ignored.
func fitsIn(v, t *Value) bool {
	if t.Kind == KindTop {
		return true
	}
	if v.Kind == KindNone {
		return t.CanBeNone()
	}
	k := v.Kind
	for k != t.Kind {
		p, ok := k.parent()
		if !ok || p == KindTop {
			return false
		}
		k = p
	}
	if v.Kind == KindInstance && v.Class != nil && t.Class != nil {
		return v.Class.IsSubclassOf(t.Class)
	}
	return true
}

// foldCompare evaluates op on two scalar constants.
func foldCompare(op flowgraph.Opcode, x, y any) (*Value, bool) {
	c, ordered, comparable := compareConsts(x, y)
	if !comparable {
		switch op {
		case flowgraph.OpEq:
			return ConstBool(false), true
		case flowgraph.OpNe:
			return ConstBool(true), true
		}
		return nil, false
	}
	if !ordered {
		if op == flowgraph.OpCmp {
			return nil, false
		}
		return ConstBool(op == flowgraph.OpNe), true
	}
	switch op {
	case flowgraph.OpLt:
		return ConstBool(c < 0), true
	case flowgraph.OpLe:
		return ConstBool(c <= 0), true
	case flowgraph.OpEq:
		return ConstBool(c == 0), true
	case flowgraph.OpNe:
		return ConstBool(c != 0), true
	case flowgraph.OpGt:
		return ConstBool(c > 0), true
	case flowgraph.OpGe:
		return ConstBool(c >= 0), true
	case flowgraph.OpCmp:
		return ConstInt(int64(c)), true
	}
	return nil, false
}

// compareConsts orders two constants. ordered is false for NaN operands;
// comparable is false for constants of unrelated types, which are never
// equal.
func compareConsts(x, y any) (c int, ordered, comparable bool) {
	if isNumber(x) && isNumber(y) {
		return compareNumbers(x, y)
	}
	switch a := x.(type) {
	case nil:
		return 0, true, y == nil
	case string:
		if b, ok := y.(string); ok {
			return strings.Compare(a, b), true, true
		}
	case Unicode:
		if b, ok := y.(Unicode); ok {
			return strings.Compare(string(a), string(b)), true, true
		}
	}
	if constEqual(x, y) {
		return 0, true, true
	}
	return 0, false, false
}

func isNumber(x any) bool {
	switch x.(type) {
	case bool, int64, uint64, float64:
		return true
	}
	return false
}

func compareNumbers(x, y any) (int, bool, bool) {
	_, xf := x.(float64)
	_, yf := y.(float64)
	if xf || yf {
		a, b := toFloat(x), toFloat(y)
		if math.IsNaN(a) || math.IsNaN(b) {
			return 0, false, true
		}
		switch {
		case a < b:
			return -1, true, true
		case a > b:
			return 1, true, true
		}
		return 0, true, true
	}
	am, an := intParts(x)
	bm, bn := intParts(y)
	switch {
	case an && !bn:
		return -1, true, true
	case !an && bn:
		return 1, true, true
	}
	c := 0
	switch {
	case am < bm:
		c = -1
	case am > bm:
		c = 1
	}
	if an {
		c = -c
	}
	return c, true, true
}

func toFloat(x any) float64 {
	switch v := x.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case float64:
		return v
	}
	return math.NaN()
}

// intParts splits an integer constant into magnitude and sign.
func intParts(x any) (mag uint64, neg bool) {
	switch v := x.(type) {
	case bool:
		if v {
			return 1, false
		}
		return 0, false
	case int64:
		if v < 0 {
			return uint64(-(v + 1)) + 1, true
		}
		return uint64(v), false
	case uint64:
		return v, false
	}
	return 0, false
}

// ----------------------------------------------------------------------------
// Integers
// ----------------------------------------------------------------------------

func intWiden(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(intUnion(a.Value, b.Value)), nil
}

func intSub(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	unsigned := a.Value.Unsigned || b.Value.Unsigned
	return result(IntOf(unsigned, unsigned, max(a.Value.Size, b.Value.Size))), nil
}

func intAnd(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	unsigned := a.Value.Unsigned || b.Value.Unsigned
	nonneg := unsigned || a.Value.Nonneg || b.Value.Nonneg
	return result(IntOf(nonneg, unsigned, max(a.Value.Size, b.Value.Size))), nil
}

func intDiv(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(intUnion(a.Value, b.Value), ExcZeroDivision), nil
}

func intTrueDiv(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(Float(), ExcZeroDivision), nil
}

// intLshift keeps non-negativity only for unsigned words: a signed shift
// may reach the sign bit.
func intLshift(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(IntOf(false, a.Value.Unsigned, a.Value.Size), ExcValue), nil
}

func intRshift(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(IntOf(a.Value.Nonneg, a.Value.Unsigned, a.Value.Size), ExcValue), nil
}

func intPow(bk *Bookkeeper, a, b Operand, extra []Operand) (Result, error) {
	unsigned := a.Value.Unsigned || b.Value.Unsigned
	if len(extra) > 0 {
		third := extra[0].Value
		switch {
		case third.IsInt():
			unsigned = unsigned || third.Unsigned
		case third.Kind != KindNone:
			return Result{}, bk.unsupported(flowgraph.OpPow, a.Value.Kind, b.Value.Kind, third.Kind)
		}
	}
	return result(IntOf(unsigned || a.Value.Nonneg, unsigned, max(a.Value.Size, b.Value.Size)), ExcZeroDivision), nil
}

func intDivMod(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	w := intUnion(a.Value, b.Value)
	return result(TupleOf(w, w), ExcZeroDivision), nil
}

func intCoerce(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	w := intUnion(a.Value, b.Value)
	return result(TupleOf(w, w)), nil
}

func boolLogic(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(Bool()), nil
}

// ----------------------------------------------------------------------------
// Floats
// ----------------------------------------------------------------------------

func floatArith(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(Float()), nil
}

func floatDiv(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(Float(), ExcZeroDivision), nil
}

func floatDivMod(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(TupleOf(Float(), Float()), ExcZeroDivision), nil
}

func floatCoerce(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(TupleOf(Float(), Float())), nil
}

// ----------------------------------------------------------------------------
// Strings
// ----------------------------------------------------------------------------

func registerStringOps(k Kind, str, char func() *Value) {
	strResult := func(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
		return result(str()), nil
	}
	registerBinary(strResult, k, k, flowgraph.OpAdd)
	registerBinary(strResult, k, KindInt, flowgraph.OpMul)
	registerBinary(strResult, KindInt, k, flowgraph.OpMul)
	registerBinary(strResult, k, KindTop, flowgraph.OpMod)
	registerBinary(strResult, k, KindSlice, flowgraph.OpGetItem)
	registerBinary(func(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
		return result(char(), ExcIndex), nil
	}, k, KindInt, flowgraph.OpGetItem)
	registerBinary(strContains, k, k, flowgraph.OpContains)
}

func strContains(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if sa, ok := a.Value.ConstString(); ok {
		if sb, ok := b.Value.ConstString(); ok {
			return result(ConstBool(strings.Contains(sa, sb))), nil
		}
	}
	return result(Bool()), nil
}

// ----------------------------------------------------------------------------
// Tuples
// ----------------------------------------------------------------------------

func tupleAdd(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	items := append(append([]*Value(nil), a.Value.Items...), b.Value.Items...)
	v, err := bk.NewTuple(items...)
	return result(v), err
}

func tupleMul(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	n, ok := b.Value.ConstInt64()
	if !ok {
		if err := bk.imprecise("tuple multiplied by a non-constant"); err != nil {
			return Result{}, err
		}
		return result(Top()), nil
	}
	var items []*Value
	for i := int64(0); i < n; i++ {
		items = append(items, a.Value.Items...)
	}
	v, err := bk.NewTuple(items...)
	return result(v), err
}

func tupleGetItem(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	items := a.Value.Items
	idx, ok := b.Value.ConstInt64()
	if !ok {
		if err := bk.imprecise("tuple indexed with a non-constant index"); err != nil {
			return Result{}, err
		}
		v, err := bk.Union(items...)
		return result(v, ExcIndex), err
	}
	if idx < 0 {
		idx += int64(len(items))
	}
	if idx < 0 || idx >= int64(len(items)) {
		return result(Bottom(), ExcIndex), nil
	}
	return result(items[idx]), nil
}

func tupleGetSlice(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	items := a.Value.Items
	lo, hi, ok := constSliceBounds(b.Value, len(items))
	if !ok {
		if err := bk.imprecise("tuple sliced with non-constant bounds"); err != nil {
			return Result{}, err
		}
		return result(Top()), nil
	}
	v, err := bk.NewTuple(items[lo:hi]...)
	return result(v), err
}

// constSliceBounds resolves a step-less slice with constant or None bounds
// against a sequence of length n.
func constSliceBounds(s *Value, n int) (lo, hi int, ok bool) {
	if s.Step.Kind != KindNone {
		return 0, 0, false
	}
	bound := func(v *Value, def int) (int, bool) {
		if v.Kind == KindNone {
			return def, true
		}
		i, ok := v.ConstInt64()
		if !ok {
			return 0, false
		}
		if i < 0 {
			i += int64(n)
		}
		return int(min(max(i, 0), int64(n))), true
	}
	if lo, ok = bound(s.Start, 0); !ok {
		return 0, 0, false
	}
	if hi, ok = bound(s.Stop, n); !ok {
		return 0, 0, false
	}
	return lo, max(lo, hi), true
}

func anyContains(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(Bool()), nil
}

// ----------------------------------------------------------------------------
// Lists
// ----------------------------------------------------------------------------

func listAdd(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	d, err := a.Value.List.Offspring(b.Value.List)
	if err != nil {
		return Result{}, err
	}
	return result(ListOf(d)), nil
}

func listInplaceAdd(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.List.Resize(); err != nil {
		return Result{}, err
	}
	if err := a.Value.List.Merge(b.Value.List); err != nil {
		return Result{}, err
	}
	return result(a.Value), nil
}

func listMul(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	d, err := a.Value.List.Offspring()
	if err != nil {
		return Result{}, err
	}
	return result(ListOf(d)), nil
}

func listInplaceMul(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.List.Resize(); err != nil {
		return Result{}, err
	}
	return result(a.Value), nil
}

func listGetItem(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	return result(a.Value.List.ReadItem(), ExcIndex), nil
}

func listGetSlice(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	d, err := a.Value.List.Offspring()
	if err != nil {
		return Result{}, err
	}
	return result(ListOf(d)), nil
}

func storedValue(bk *Bookkeeper, op flowgraph.Opcode, extra []Operand) (*Value, error) {
	if len(extra) != 1 {
		return nil, fmt.Errorf("%s: %s needs a value operand", bk.pos, op)
	}
	return extra[0].Value, nil
}

func listSetItem(bk *Bookkeeper, a, b Operand, extra []Operand) (Result, error) {
	v, err := storedValue(bk, flowgraph.OpSetItem, extra)
	if err != nil {
		return Result{}, err
	}
	d := a.Value.List
	if err := d.Mutate(); err != nil {
		return Result{}, err
	}
	if err := d.Generalize(v); err != nil {
		return Result{}, err
	}
	return result(None(), ExcIndex), nil
}

func listSetSlice(bk *Bookkeeper, a, b Operand, extra []Operand) (Result, error) {
	v, err := storedValue(bk, flowgraph.OpSetItem, extra)
	if err != nil {
		return Result{}, err
	}
	if v.Kind != KindList {
		return Result{}, bk.domainError("slice assignment from %s, expected a list", v)
	}
	d := a.Value.List
	if err := d.Resize(); err != nil {
		return Result{}, err
	}
	if err := d.Merge(v.List); err != nil {
		return Result{}, err
	}
	return result(None()), nil
}

func listDelItem(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.List.Resize(); err != nil {
		return Result{}, err
	}
	return result(None(), ExcIndex), nil
}

func listDelSlice(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.List.Resize(); err != nil {
		return Result{}, err
	}
	return result(None()), nil
}

func listContains(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.List.Generalize(b.Value); err != nil {
		return Result{}, err
	}
	return result(Bool()), nil
}

func listEq(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.List.Merge(b.Value.List); err != nil {
		return Result{}, err
	}
	return result(Bool()), nil
}

// ----------------------------------------------------------------------------
// Dicts
// ----------------------------------------------------------------------------

func dictGetItem(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	d := a.Value.Dict
	if err := d.GeneralizeKey(b.Value); err != nil {
		return Result{}, err
	}
	return result(d.ReadValue(), ExcKey), nil
}

func dictSetItem(bk *Bookkeeper, a, b Operand, extra []Operand) (Result, error) {
	v, err := storedValue(bk, flowgraph.OpSetItem, extra)
	if err != nil {
		return Result{}, err
	}
	d := a.Value.Dict
	if err := d.GeneralizeKey(b.Value); err != nil {
		return Result{}, err
	}
	if err := d.GeneralizeValue(v); err != nil {
		return Result{}, err
	}
	return result(None()), nil
}

func dictDelItem(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.Dict.GeneralizeKey(b.Value); err != nil {
		return Result{}, err
	}
	return result(None(), ExcKey), nil
}

func dictContains(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.Dict.GeneralizeKey(b.Value); err != nil {
		return Result{}, err
	}
	return result(Bool()), nil
}

func dictEq(bk *Bookkeeper, a, b Operand, _ []Operand) (Result, error) {
	if err := a.Value.Dict.Merge(b.Value.Dict); err != nil {
		return Result{}, err
	}
	return result(Bool()), nil
}
