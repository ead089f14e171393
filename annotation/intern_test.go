package annotation

import (
	"errors"
	"testing"
)

// TestImmutableValue_InternsScalars tests that equal constants share a Value
func TestImmutableValue_InternsScalars(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	a, err := bk.ImmutableValue("abc")
	if err != nil {
		t.Fatal(err)
	}
	b, err := bk.ImmutableValue("abc")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("Expected interned constants to be the same Value")
	}
	expectValue(t, ConstStr("abc"), a)

	i, _ := bk.ImmutableValue(int64(1))
	u, _ := bk.ImmutableValue(uint64(1 << 63))
	f, _ := bk.ImmutableValue(1.0)
	if i == f {
		t.Error("Expected int 1 and float 1.0 to intern separately")
	}
	expectValue(t, ConstUint(1<<63), u)
	if got := bk.Stats()["intern.hit"]; got != 1 {
		t.Errorf("Expected 1 intern hit, got %d", got)
	}
}

// TestImmutableValue_InterningDisabled tests the uncached path
func TestImmutableValue_InterningDisabled(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t, func(o *Options) { o.EnableInterning = false })
	a, _ := bk.ImmutableValue(int64(7))
	b, _ := bk.ImmutableValue(7)
	if a == b {
		t.Error("Expected distinct Values with interning disabled")
	}
	expectValue(t, a, b)
}

// TestImmutableValue_Tuples tests constant tuples, nested ones included
func TestImmutableValue_Tuples(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	v, err := bk.ImmutableValue([]any{1, "x", []any{nil, true}})
	if err != nil {
		t.Fatal(err)
	}
	want := TupleOf(ConstInt(1), ConstStr("x"), TupleOf(None(), ConstBool(true)))
	expectValue(t, want, v)
	if !v.IsConstant() {
		t.Errorf("Expected a constant tuple, got %s", v)
	}
	again, _ := bk.ImmutableValue(HostTuple{int64(1), "x", HostTuple{nil, true}})
	if again != v {
		t.Error("Expected equal tuples to intern to the same Value")
	}
}

// TestImmutableValue_PrebuiltList tests that one host list maps to one
// definition
func TestImmutableValue_PrebuiltList(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	hl := &HostList{Items: []any{1, 2}}
	a, err := bk.ImmutableValue(hl)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := bk.ImmutableValue(hl)
	if a != b {
		t.Error("Expected the same Value for the same host list")
	}
	expectValue(t, NonnegInt(), a.List.Item())

	other, _ := bk.ImmutableValue(&HostList{Items: []any{1, 2}})
	if other.List.Same(a.List) {
		t.Error("Expected distinct host lists to get distinct definitions")
	}
}

// TestImmutableValue_PrebuiltInstance tests that instance attributes flow
// into the class attribute family
func TestImmutableValue_PrebuiltInstance(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	z := newZoo()
	v, err := bk.ImmutableValue(&HostInstance{Class: z.dog, Attrs: map[string]any{"name": "rex"}})
	if err != nil {
		t.Fatal(err)
	}
	expectValue(t, z.instance(bk, z.dog), v.withoutConst())
	expectValue(t, ConstStr("rex"), bk.InstanceAttrs(bk.ClassDefOf(z.dog)).Attr("name"))
}

// TestImmutableValue_HostObjects tests functions, classes and frozen objects
func TestImmutableValue_HostObjects(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	fn := &HostFunc{Name: "f"}
	v, err := bk.ImmutableValue(fn)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != KindCallable || !v.IsConstant() || v.Descs[0] != Desc(bk.FunctionDescOf(fn)) {
		t.Errorf("Expected the callable of f, got %s", v)
	}

	tv, _ := bk.ImmutableValue(TypeInt)
	expectValue(t, ConstType(TypeInt), tv)

	bv, _ := bk.ImmutableValue(BuiltinName("len"))
	expectValue(t, BuiltinOf("len", nil), bv)
}

// TestImmutableValue_Unsupported tests constants with no abstract value
func TestImmutableValue_Unsupported(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	_, err := bk.ImmutableValue(struct{}{})
	if !errors.Is(err, ErrDomainViolation) {
		t.Errorf("Expected ErrDomainViolation, got %v", err)
	}
}
