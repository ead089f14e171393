package annotation

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/speakeasy-api/annotator/flowgraph"
)

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("Expected %s to panic", name)
		}
	}()
	f()
}

// TestBookkeeper_EnterLeave tests the position lifecycle
func TestBookkeeper_EnterLeave(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)

	expectPanic(t, "Position outside an operation", func() { bk.Position() })
	expectPanic(t, "Leave without Enter", func() { bk.Leave() })

	bk.Enter(at("f", 0, 0))
	if !bk.InOperation() {
		t.Error("Expected InOperation after Enter")
	}
	if got := bk.Position(); got != at("f", 0, 0) {
		t.Errorf("Expected position f:0:0, got %s", got)
	}
	expectPanic(t, "nested Enter", func() { bk.Enter(at("f", 0, 1)) })
	bk.Leave()
	if bk.InOperation() {
		t.Error("Expected no operation after Leave")
	}
}

// TestBookkeeper_ReflowOutsideOperation tests that changes made by the
// driver between operations reflow immediately
func TestBookkeeper_ReflowOutsideOperation(t *testing.T) {
	bk, drv, _ := newTestBookkeeper(t)
	var l *Value
	inOp(bk, at("f", 0, 0), func() { l, _ = bk.NewList(NonnegInt()) })
	inOp(bk, at("f", 1, 0), func() { l.List.ReadItem() })

	if err := l.List.Generalize(Int()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]flowgraph.Position{at("f", 1, 0)}, drv.reflows); diff != "" {
		t.Errorf("Reflows mismatch (-want +got):\n%s", diff)
	}
}

// TestBookkeeper_Warnings tests that warnings carry the position and reach
// the driver
func TestBookkeeper_Warnings(t *testing.T) {
	bk, drv, _ := newTestBookkeeper(t, func(o *Options) { o.MaxTupleArity = 2 })
	inOp(bk, at("f", 0, 1), func() {
		v, err := bk.NewTuple(Int(), Int(), Int())
		if err != nil {
			t.Fatal(err)
		}
		expectValue(t, Top(), v)
	})
	warnings := bk.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(warnings))
	}
	if !strings.HasPrefix(warnings[0], "f:0:1: ") {
		t.Errorf("Expected warning to start with the position, got %q", warnings[0])
	}
	if diff := cmp.Diff(warnings, drv.warnings); diff != "" {
		t.Errorf("Driver warnings mismatch (-want +got):\n%s", diff)
	}
	if bk.Stats()["imprecise"] != 1 {
		t.Errorf("Expected 1 imprecise count, got %d", bk.Stats()["imprecise"])
	}
}

// TestBookkeeper_WarningsDisabled tests that disabled warnings are dropped
func TestBookkeeper_WarningsDisabled(t *testing.T) {
	bk, drv, _ := newTestBookkeeper(t, func(o *Options) {
		o.MaxTupleArity = 2
		o.EnableWarnings = false
	})
	inOp(bk, at("f", 0, 0), func() {
		if _, err := bk.NewTuple(Int(), Int(), Int()); err != nil {
			t.Fatal(err)
		}
	})
	if len(bk.Warnings()) != 0 || len(drv.warnings) != 0 {
		t.Errorf("Expected no warnings, got %v and %v", bk.Warnings(), drv.warnings)
	}
}

// TestBookkeeper_StrictMode tests that soft imprecision becomes an error
func TestBookkeeper_StrictMode(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t, strict, func(o *Options) { o.MaxTupleArity = 2 })
	inOp(bk, at("f", 0, 0), func() {
		_, err := bk.NewTuple(Int(), Int(), Int())
		if err == nil {
			t.Fatal("Expected error in strict mode")
		}
		if !errors.Is(err, ErrSoftImprecision) {
			t.Errorf("Expected ErrSoftImprecision, got %v", err)
		}
		var ie *ImprecisionError
		if !errors.As(err, &ie) || ie.Pos != at("f", 0, 0) {
			t.Errorf("Expected *ImprecisionError at f:0:0, got %v", err)
		}
		if !strings.Contains(err.Error(), "tuple of length 3") {
			t.Errorf("Expected error to mention the tuple length, got %q", err.Error())
		}
	})
}

// TestBookkeeper_NewTupleOfBottom tests that an unreachable item makes the
// tuple unreachable
func TestBookkeeper_NewTupleOfBottom(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		v, err := bk.NewTuple(Int(), Bottom())
		if err != nil {
			t.Fatal(err)
		}
		if !v.IsBottom() {
			t.Errorf("Expected Bottom, got %s", v)
		}
	})
}

// TestBookkeeper_Binding tests the driver binding fallback
func TestBookkeeper_Binding(t *testing.T) {
	bk, drv, _ := newTestBookkeeper(t)
	drv.bindings[varID("x")] = Float()
	expectValue(t, Float(), bk.Binding(varID("x")))
	if !bk.Binding(varID("y")).IsBottom() {
		t.Error("Expected unbound variable to be Bottom")
	}
}

// TestBookkeeper_Stats tests the diagnostic counters
func TestBookkeeper_Stats(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		bk.NewList(Int())
		bk.Count("custom", "detail")
	})
	stats := bk.Stats()
	if stats["listdef"] != 1 {
		t.Errorf("Expected 1 listdef, got %d", stats["listdef"])
	}
	if stats["custom"] != 1 {
		t.Errorf("Expected 1 custom count, got %d", stats["custom"])
	}
	names := bk.StatNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Expected sorted stat names, got %v", names)
			break
		}
	}
}

// TestValueString tests the compact value notation
func TestValueString(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	z := newZoo()
	tests := []struct {
		v    *Value
		want string
	}{
		{Int(), "Int"},
		{ConstInt(3), "Int(nonneg,=3)"},
		{IntOf(false, true, 2), "Int(unsigned,size=2)"},
		{ConstStr("ab"), `Str(="ab")`},
		{TupleOf(Int(), None()), "Tuple(Int, None)"},
		{InstanceOf(bk.ClassDefOf(z.dog), true), "Instance(Dog)?"},
		{Bottom(), "Bottom"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

// TestValueString_SelfReferentialList tests that recursive lists render
func TestValueString_SelfReferentialList(t *testing.T) {
	bk, _, _ := newTestBookkeeper(t)
	inOp(bk, at("f", 0, 0), func() {
		l, _ := bk.NewList()
		if err := l.List.Generalize(l); err != nil {
			t.Fatal(err)
		}
		if s := l.String(); !strings.Contains(s, "...") {
			t.Errorf("Expected elided rendering, got %q", s)
		}
		if s := bk.summary(l); !strings.Contains(s, "List[") {
			t.Errorf("Expected list summary, got %q", s)
		}
	})
}
