package annotation

import (
	"errors"
	"testing"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// TestIsInstance_NarrowsToSubclass tests isinstance on a base-class instance
func TestIsInstance_NarrowsToSubclass(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	z := newZoo()
	x := varID("x")

	inOp(bk, at("f", 0, 0), func() {
		r, err := bk.Unary(flowgraph.OpIsInstance, Var(x, z.instance(bk, z.animal)), Const(z.class(bk, z.dog)))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, Bool(), r.Value)
		if got, ok := r.Facts.OnTrue[x]; !ok {
			t.Error("Expected x to be narrowed on the true outcome")
		} else {
			expectValue(t, z.instance(bk, z.dog), got)
		}
	})
}

// TestIsInstance_Folds tests isinstance results known in advance
func TestIsInstance_Folds(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	z := newZoo()

	tests := []struct {
		name string
		x    *Value
		typ  *Value
		want *Value
	}{
		{"rock is never a dog", z.instance(bk, z.rock), z.class(bk, z.dog), ConstBool(false)},
		{"dog is an animal", z.instance(bk, z.dog), z.class(bk, z.animal), ConstBool(true)},
		{"None is not an animal", None(), z.class(bk, z.animal), ConstBool(false)},
		{"bool is an int", Bool(), ConstType(TypeInt), ConstBool(true)},
		{"str is not an int", Str(), ConstType(TypeInt), ConstBool(false)},
		{"tuple of types", Float(), TupleOf(ConstType(TypeInt), ConstType(TypeFloat)), ConstBool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inOp(bk, at("f", 0, 0), func() {
				r, err := bk.Unary(flowgraph.OpIsInstance, Const(tt.x), Const(tt.typ))
				if err != nil {
					t.Fatal(err)
				}
				expectValue(t, tt.want, r.Value)
			})
		})
	}
}

// TestIsInstance_UnrelatedClass tests that an instance of an unrelated
// class folds to false without narrowing the variable
func TestIsInstance_UnrelatedClass(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	z := newZoo()
	x := varID("x")

	inOp(bk, at("f", 0, 0), func() {
		r, err := bk.Unary(flowgraph.OpIsInstance, Var(x, z.instance(bk, z.rock)), Const(z.class(bk, z.dog)))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, ConstBool(false), r.Value)
		if !r.Facts.Empty() {
			t.Errorf("Expected no narrowing facts, got %+v", r.Facts)
		}
	})
}

// TestIsInstance_NullableInstance tests that a nullable match is not folded
func TestIsInstance_NullableInstance(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	z := newZoo()
	x := varID("x")

	inOp(bk, at("f", 0, 0), func() {
		r, err := bk.Unary(flowgraph.OpIsInstance, Var(x, InstanceOf(bk.ClassDefOf(z.dog), true)), Const(z.class(bk, z.animal)))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, Bool(), r.Value)
		expectValue(t, z.instance(bk, z.dog), r.Facts.OnTrue[x])
	})
}

// TestIsInstance_RejectsNonClass tests a non-constant second argument
func TestIsInstance_RejectsNonClass(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		_, err := bk.Unary(flowgraph.OpIsInstance, Const(Int()), Const(Int()))
		if !errors.Is(err, ErrDomainViolation) {
			t.Errorf("Expected ErrDomainViolation, got %v", err)
		}
	})
}

// TestTruth tests bool() folding and narrowing
func TestTruth(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	x := varID("x")

	inOp(bk, at("f", 0, 0), func() {
		r, err := bk.Unary(flowgraph.OpIsTrue, Const(ConstInt(0)))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, ConstBool(false), r.Value)

		r, err = bk.Unary(flowgraph.OpIsTrue, Const(TupleOf(Int())))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, ConstBool(true), r.Value)

		r, err = bk.Unary(flowgraph.OpIsTrue, Var(x, &Value{Kind: KindStr, Nullable: true}))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, Bool(), r.Value)
		expectValue(t, Str(), r.Facts.OnTrue[x])
	})
}

// TestLen tests len() of constants and containers
func TestLen(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		r, err := bk.Unary(flowgraph.OpLen, Const(TupleOf(Int(), Str())))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, ConstInt(2), r.Value)

		r, err = bk.Unary(flowgraph.OpLen, Const(ConstUnicode("héllo")))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, ConstInt(5), r.Value)

		l, _ := bk.NewList(Float())
		r, err = bk.Unary(flowgraph.OpLen, Const(l))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, NonnegInt(), r.Value)

		if _, err := bk.Unary(flowgraph.OpLen, Const(Int())); !errors.Is(err, ErrUnsupportedOperation) {
			t.Errorf("Expected len(int) to be unsupported, got %v", err)
		}
	})
}

// TestIteration tests iter() and next() over containers
func TestIteration(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		d, err := bk.NewDict([]*Value{Str()}, []*Value{Float()})
		if err != nil {
			t.Fatal(err)
		}
		it, err := bk.Unary(flowgraph.OpIter, Const(d))
		if err != nil {
			t.Fatal(err)
		}
		r, err := bk.Unary(flowgraph.OpNext, Const(it.Value))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, Str(), r.Value)
		if !r.MayRaise(ExcStopIteration) {
			t.Error("Expected next() to raise StopIteration")
		}

		it, err = bk.Unary(flowgraph.OpIter, Const(ConstStr("abc")))
		if err != nil {
			t.Fatal(err)
		}
		r, err = bk.Unary(flowgraph.OpNext, Const(it.Value))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, Char(), r.Value)
	})
}

// TestType tests type() of known and unknown kinds
func TestType(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	x := varID("x")
	inOp(bk, at("f", 0, 0), func() {
		r, err := bk.Unary(flowgraph.OpType, Var(x, Int()))
		if err != nil {
			t.Fatal(err)
		}
		if r.Value.Kind != KindType || r.Value.Const != TypeInt {
			t.Errorf("Expected constant type int, got %s", r.Value)
		}
		if len(r.Value.TypeOf) != 1 || r.Value.TypeOf[0] != x {
			t.Errorf("Expected type to remember x, got %v", r.Value.TypeOf)
		}

		r, err = bk.Unary(flowgraph.OpType, Const(&Value{Kind: KindStr, Nullable: true}))
		if err != nil {
			t.Fatal(err)
		}
		if r.Value.HasConst {
			t.Errorf("Expected unknown type for a nullable string, got %s", r.Value)
		}
	})
}

// TestTypeIsClassNarrows tests type(x) is C
func TestTypeIsClassNarrows(t *testing.T) {
	bk, drv, _ := newTestBookkeeper(t)
	z := newZoo()
	x := varID("x")
	drv.bindings[x] = z.instance(bk, z.animal)

	inOp(bk, at("f", 0, 0), func() {
		typ, err := bk.Unary(flowgraph.OpType, Var(x, z.instance(bk, z.animal)))
		if err != nil {
			t.Fatal(err)
		}
		r, err := bk.Binary(flowgraph.OpIs, Const(typ.Value), Const(z.class(bk, z.cat)))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, z.instance(bk, z.cat), r.Facts.OnTrue[x])
	})
}

// TestHash_Unhashable tests that lists cannot be hashed
func TestHash_Unhashable(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		l, _ := bk.NewList(Int())
		if _, err := bk.Unary(flowgraph.OpHash, Const(l)); !errors.Is(err, ErrDomainViolation) {
			t.Errorf("Expected ErrDomainViolation, got %v", err)
		}
		r, err := bk.Unary(flowgraph.OpHash, Const(Str()))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, Int(), r.Value)
	})
}

// TestGetAttr_RequiresConstantName tests a computed attribute name
func TestGetAttr_RequiresConstantName(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	z := newZoo()
	inOp(bk, at("f", 0, 0), func() {
		_, err := bk.Unary(flowgraph.OpGetAttr, Const(z.instance(bk, z.dog)), Const(Str()))
		if !errors.Is(err, ErrDomainViolation) {
			t.Errorf("Expected ErrDomainViolation, got %v", err)
		}
	})
}

// TestIntUnary tests sign tracking of unary integer operations
func TestIntUnary(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		r, err := bk.Unary(flowgraph.OpNeg, Const(ConstInt(4)))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, ConstInt(-4), r.Value)

		r, err = bk.Unary(flowgraph.OpAbsOvf, Const(Int()))
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, NonnegInt(), r.Value)
		if !r.MayRaise(ExcOverflow) {
			t.Error("Expected abs_ovf to raise OverflowError")
		}
	})
}
