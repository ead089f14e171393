package fixpoint

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/speakeasy-api/annotator/annotation"
	"github.com/speakeasy-api/annotator/flowgraph"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = annotation.NopLogger()
	return opts
}

func newAnnotator(t *testing.T, src string, configure ...func(*Options)) *Annotator {
	t.Helper()
	g, err := flowgraph.Decode([]byte(src))
	if err != nil {
		t.Fatalf("Failed to decode graph: %v", err)
	}
	opts := testOptions()
	for _, c := range configure {
		c(&opts)
	}
	a, err := New(g, opts)
	if err != nil {
		t.Fatalf("Failed to create annotator: %v", err)
	}
	return a
}

func run(t *testing.T, src, entry string, args ...*annotation.Value) *Result {
	t.Helper()
	a := newAnnotator(t, src)
	res, err := a.Run(context.Background(), entry, args...)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func expectValue(t *testing.T, want, got *annotation.Value) {
	t.Helper()
	if !want.Equal(got) {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

const incGraph = `
functions:
  - name: inc
    params: [x]
    blocks:
      - id: 0
        ops:
          - {op: add, args: [{var: x}, {const: 1}], result: y}
        exits:
          - {target: -1, args: [{var: y}]}
`

// TestAnnotator_SimpleReturn tests a straight-line function
func TestAnnotator_SimpleReturn(t *testing.T) {
	res := run(t, incGraph, "inc", annotation.NonnegInt())

	expectValue(t, annotation.NonnegInt(), res.Returns["inc"])
	expectValue(t, annotation.NonnegInt(), res.Bindings[flowgraph.VarID{Func: "inc", Name: "y"}])
	if res.Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", res.Iterations)
	}
}

// TestAnnotator_Loop tests that a loop counter widens to a fixpoint
func TestAnnotator_Loop(t *testing.T) {
	src := `
functions:
  - name: count
    params: [n]
    blocks:
      - id: 0
        exits:
          - {target: 1, args: [{const: 0}, {var: n}]}
      - id: 1
        inputs: [i, m]
        ops:
          - {op: lt, args: [{var: i}, {var: m}], result: c}
        switch: c
        exits:
          - {target: 2, case: "true", args: [{var: i}, {var: m}]}
          - {target: -1, case: "false", args: [{var: i}]}
      - id: 2
        inputs: [k, m2]
        ops:
          - {op: add, args: [{var: k}, {const: 1}], result: j}
        exits:
          - {target: 1, args: [{var: j}, {var: m2}]}
`
	res := run(t, src, "count", annotation.Int())

	expectValue(t, annotation.NonnegInt(), res.Returns["count"])
	expectValue(t, annotation.NonnegInt(), res.Bindings[flowgraph.VarID{Func: "count", Name: "i"}])
}

// TestAnnotator_ListReflow tests that widening a list item revisits the
// operation that read it
func TestAnnotator_ListReflow(t *testing.T) {
	src := `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        ops:
          - {op: newlist, args: [{const: 1}], result: l}
          - {op: getitem, args: [{var: l}, {const: 0}], result: x}
          - {op: getattr, args: [{var: l}, {const: append}], result: m}
          - {op: neg, args: [{var: x}], result: y}
          - {op: simple_call, args: [{var: m}, {var: y}], result: r}
        exits:
          - {target: -1, args: [{var: x}]}
`
	res := run(t, src, "f")

	expectValue(t, annotation.Int(), res.Returns["f"])
	l := res.Bindings[flowgraph.VarID{Func: "f", Name: "l"}]
	if l == nil || l.Kind != annotation.KindList {
		t.Fatalf("Expected a list binding, got %v", l)
	}
	expectValue(t, annotation.Int(), l.List.Item())
	if res.Stats["reflow"] == 0 {
		t.Error("Expected at least one reflow")
	}
}

// TestAnnotator_CallReturnReflowsCaller tests that a caller blocked on an
// unknown return value is revisited once the callee returns
func TestAnnotator_CallReturnReflowsCaller(t *testing.T) {
	src := `
functions:
  - name: main
    params: []
    blocks:
      - id: 0
        ops:
          - {op: simple_call, args: [{global: inc}, {const: 1}], result: a}
        exits:
          - {target: -1, args: [{var: a}]}
` + strings.TrimPrefix(incGraph, "\nfunctions:\n")

	res := run(t, src, "main")

	expectValue(t, annotation.NonnegInt(), res.Returns["main"])
	expectValue(t, annotation.ConstInt(1), res.Bindings[flowgraph.VarID{Func: "inc", Name: "x"}])
}

// TestAnnotator_KeywordCall tests keyword arguments and defaults
func TestAnnotator_KeywordCall(t *testing.T) {
	src := `
functions:
  - name: main
    params: []
    blocks:
      - id: 0
        ops:
          - {op: call_args, args: [{global: pick}, {const: 1}, {const: "s"}], keywords: [b], result: a}
        exits:
          - {target: -1, args: [{var: a}]}
  - name: pick
    params: [a, b, c]
    defaults: [2.5]
    blocks:
      - id: 0
        exits:
          - {target: -1, args: [{var: c}]}
`
	res := run(t, src, "main")

	expectValue(t, annotation.ConstStr("s"), res.Bindings[flowgraph.VarID{Func: "pick", Name: "b"}])
	expectValue(t, annotation.ConstFloat(2.5), res.Returns["main"])
}

// TestAnnotator_SwitchNarrowing tests that a truth test removes None on the
// true branch
func TestAnnotator_SwitchNarrowing(t *testing.T) {
	src := `
functions:
  - name: f
    params: [x]
    blocks:
      - id: 0
        ops:
          - {op: bool, args: [{var: x}], result: c}
        switch: c
        exits:
          - {target: 1, case: "true", args: [{var: x}]}
          - {target: -1, case: "false", args: [{const: ""}]}
      - id: 1
        inputs: [y]
        exits:
          - {target: -1, args: [{var: y}]}
`
	nullableStr := annotation.Str()
	nullableStr.Nullable = true
	res := run(t, src, "f", nullableStr)

	expectValue(t, annotation.Str(), res.Bindings[flowgraph.VarID{Func: "f", Name: "y"}])
	expectValue(t, annotation.Str(), res.Returns["f"])
}

// TestAnnotator_ConstantSwitch tests that a constant switch follows one link
func TestAnnotator_ConstantSwitch(t *testing.T) {
	src := `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        ops:
          - {op: bool, args: [{const: 1}], result: c}
        switch: c
        exits:
          - {target: -1, case: "true", args: [{const: 1}]}
          - {target: -1, case: "false", args: [{const: "unreachable"}]}
`
	res := run(t, src, "f")

	expectValue(t, annotation.ConstInt(1), res.Returns["f"])
}

// TestAnnotator_ExceptionLinks tests that only exceptions the last
// operation may raise are followed
func TestAnnotator_ExceptionLinks(t *testing.T) {
	src := `
functions:
  - name: f
    params: [l, i]
    blocks:
      - id: 0
        ops:
          - {op: getitem_idx, args: [{var: l}, {var: i}], result: x}
        exits:
          - {target: -1, args: [{var: x}]}
          - {target: -1, case: IndexError, args: [{const: -1}]}
          - {target: -1, case: ZeroDivisionError, args: [{const: "unreachable"}]}
`
	a := newAnnotator(t, src)
	l, err := a.Bookkeeper().ImmutableValue(&annotation.HostList{Items: []any{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	res, err := a.Run(context.Background(), "f", l, annotation.Int())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expectValue(t, annotation.Int(), res.Returns["f"])
}

// TestAnnotator_Classes tests instantiation, __init__ and attribute reads
func TestAnnotator_Classes(t *testing.T) {
	src := `
classes:
  - name: Point
    methods:
      __init__: Point.__init__
functions:
  - name: main
    params: []
    blocks:
      - id: 0
        ops:
          - {op: simple_call, args: [{global: Point}, {const: 3}], result: p}
          - {op: getattr, args: [{var: p}, {const: x}], result: v}
        exits:
          - {target: -1, args: [{var: v}]}
  - name: Point.__init__
    params: [self, x]
    blocks:
      - id: 0
        ops:
          - {op: setattr, args: [{var: self}, {const: x}, {var: x}], result: r}
        exits:
          - {target: -1, args: [{null: true}]}
`
	a := newAnnotator(t, src)
	res, err := a.Run(context.Background(), "main")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expectValue(t, annotation.ConstInt(3), res.Returns["main"])
	expectValue(t, annotation.None(), res.Returns["Point.__init__"])

	p := res.Bindings[flowgraph.VarID{Func: "main", Name: "p"}]
	if p == nil || p.Kind != annotation.KindInstance || p.Class.Name != "Point" {
		t.Fatalf("Expected Instance(Point), got %v", p)
	}
	if diff := cmp.Diff([]string{"x"}, a.Bookkeeper().InstanceAttrs(p.Class).Names()); diff != "" {
		t.Errorf("Attribute names mismatch (-want +got):\n%s", diff)
	}
}

// TestAnnotator_Builtins tests builtin globals and builtin type globals
func TestAnnotator_Builtins(t *testing.T) {
	src := `
functions:
  - name: f
    params: [s]
    blocks:
      - id: 0
        ops:
          - {op: simple_call, args: [{global: len}, {var: s}], result: n}
          - {op: simple_call, args: [{global: str}, {var: n}], result: t}
          - {op: isinstance, args: [{var: t}, {global: str}], result: ok}
        exits:
          - {target: -1, args: [{var: ok}]}
`
	res := run(t, src, "f", annotation.Str())

	expectValue(t, annotation.NonnegInt(), res.Bindings[flowgraph.VarID{Func: "f", Name: "n"}])
	expectValue(t, annotation.Str(), res.Bindings[flowgraph.VarID{Func: "f", Name: "t"}])
	expectValue(t, annotation.ConstBool(true), res.Returns["f"])
}

// TestAnnotator_Errors tests the failure modes of a run
func TestAnnotator_Errors(t *testing.T) {
	t.Run("UnknownEntry", func(t *testing.T) {
		a := newAnnotator(t, incGraph)
		_, err := a.Run(context.Background(), "missing")
		if err == nil || !strings.Contains(err.Error(), "unknown entry function") {
			t.Errorf("Expected unknown entry error, got %v", err)
		}
	})

	t.Run("MissingArgument", func(t *testing.T) {
		a := newAnnotator(t, incGraph)
		_, err := a.Run(context.Background(), "inc")
		if !errors.Is(err, annotation.ErrDomainViolation) {
			t.Errorf("Expected ErrDomainViolation, got %v", err)
		}
	})

	t.Run("UnknownGlobal", func(t *testing.T) {
		src := `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        ops:
          - {op: simple_call, args: [{global: nowhere}], result: a}
        exits:
          - {target: -1, args: [{var: a}]}
`
		a := newAnnotator(t, src)
		_, err := a.Run(context.Background(), "f")
		if err == nil || !strings.Contains(err.Error(), `unknown global "nowhere"`) {
			t.Errorf("Expected unknown global error, got %v", err)
		}
	})

	t.Run("Incompatible", func(t *testing.T) {
		src := `
functions:
  - name: f
    params: [x]
    blocks:
      - id: 0
        exits:
          - {target: -1, args: [{var: x}]}
          - {target: -1, args: [{const: "s"}]}
`
		a := newAnnotator(t, src)
		_, err := a.Run(context.Background(), "f", annotation.Int())
		if !errors.Is(err, annotation.ErrHardIncompatibility) {
			t.Errorf("Expected ErrHardIncompatibility, got %v", err)
		}
	})

	t.Run("MaxIterations", func(t *testing.T) {
		src := `
functions:
  - name: loop
    params: []
    blocks:
      - id: 0
        exits:
          - {target: 1, args: [{const: 0}]}
      - id: 1
        inputs: [i]
        ops:
          - {op: add, args: [{var: i}, {const: 1}], result: j}
        exits:
          - {target: 1, args: [{var: j}]}
`
		a := newAnnotator(t, src, func(o *Options) { o.MaxIterations = 2 })
		_, err := a.Run(context.Background(), "loop")
		if err == nil || !strings.Contains(err.Error(), "exceeded maximum iterations (2)") {
			t.Errorf("Expected iteration limit error, got %v", err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		a := newAnnotator(t, incGraph)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := a.Run(ctx, "inc", annotation.Int())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

// TestAnnotator_Warnings tests that soft imprecision reaches the result
func TestAnnotator_Warnings(t *testing.T) {
	src := `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        ops:
          - {op: newtuple, args: [{const: 1}, {const: 2}, {const: 3}], result: t}
        exits:
          - {target: -1, args: [{var: t}]}
`
	a := newAnnotator(t, src, func(o *Options) { o.MaxTupleArity = 2 })
	res, err := a.Run(context.Background(), "f")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"f:0:0: tuple of length 3 exceeds 2"}, res.Warnings); diff != "" {
		t.Errorf("Warnings mismatch (-want +got):\n%s", diff)
	}
	expectValue(t, annotation.Top(), res.Returns["f"])

	strictRun := newAnnotator(t, src, func(o *Options) {
		o.MaxTupleArity = 2
		o.StrictMode = true
	})
	if _, err := strictRun.Run(context.Background(), "f"); !errors.Is(err, annotation.ErrSoftImprecision) {
		t.Errorf("Expected ErrSoftImprecision in strict mode, got %v", err)
	}
}

// TestBlockWorklist tests FIFO order and deduplication
func TestBlockWorklist(t *testing.T) {
	w := newBlockWorklist()
	a := flowgraph.BlockKey{Func: "f", Block: 0}
	b := flowgraph.BlockKey{Func: "f", Block: 1}

	if !w.push(a) || !w.push(b) {
		t.Fatal("Expected first pushes to succeed")
	}
	if w.push(a) {
		t.Error("Expected duplicate push to be ignored")
	}
	if w.len() != 2 {
		t.Errorf("Expected 2 pending blocks, got %d", w.len())
	}
	got, _ := w.pop()
	if got != a {
		t.Errorf("Expected %s first, got %s", a, got)
	}
	if !w.push(a) {
		t.Error("Expected a popped block to be pushable again")
	}
	got, _ = w.pop()
	if got != b {
		t.Errorf("Expected %s second, got %s", b, got)
	}
	w.pop()
	if _, ok := w.pop(); ok || !w.isEmpty() {
		t.Error("Expected an empty worklist")
	}
}
