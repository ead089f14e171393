package flowgraph

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const loopGraph = `
classes:
  - name: Base
  - name: Derived
    base: Base
    methods:
      run: count
frozen:
  - name: config
    attrs: {debug: true}
functions:
  - name: count
    params: [n]
    defaults: [10]
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
          - {target: 1, case: "true", args: [{var: i}, {var: m}]}
          - {target: -1, case: "false", args: [{null: true}]}
`

func TestDecode_Graph(t *testing.T) {
	g, err := Decode([]byte(loopGraph))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	fn, ok := g.Function("count")
	if !ok {
		t.Fatal("Expected function count")
	}
	if diff := cmp.Diff([]string{"n"}, fn.Blocks[0].Inputs); diff != "" {
		t.Errorf("Entry inputs mismatch (-want +got):\n%s", diff)
	}
	b, ok := fn.Block(1)
	if !ok {
		t.Fatal("Expected block 1")
	}
	if b.Ops[0].Op != OpLt {
		t.Errorf("Expected opcode lt, got %s", b.Ops[0].Op)
	}
	if b.Switch != "c" {
		t.Errorf("Expected switch c, got %q", b.Switch)
	}

	ret := b.Exits[1]
	if ret.Target != ReturnBlock || !ret.Args[0].IsConst() || ret.Args[0].Value() != nil {
		t.Errorf("Expected a None return, got %+v", ret)
	}
	if got := fn.Blocks[0].Exits[0].Args[0].Value(); got != int64(0) {
		t.Errorf("Expected int64(0), got %T(%v)", got, got)
	}
	if got := NormalizeConst(fn.Defaults[0]); got != int64(10) {
		t.Errorf("Expected default int64(10), got %T(%v)", got, got)
	}

	if diff := cmp.Diff([]string{"Base", "Derived", "config", "count"}, g.Globals()); diff != "" {
		t.Errorf("Globals mismatch (-want +got):\n%s", diff)
	}
	if _, ok := g.Function("missing"); ok {
		t.Error("Expected no function called missing")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "syntax",
			src:  "functions: [",
			want: "failed to decode flow graph",
		},
		{
			name: "duplicate function",
			src: `
functions:
  - {name: f, params: [], blocks: [{id: 0}]}
  - {name: f, params: [], blocks: [{id: 0}]}
`,
			want: `duplicate function "f"`,
		},
		{
			name: "no blocks",
			src: `
functions:
  - {name: f, params: []}
`,
			want: "function f: no blocks",
		},
		{
			name: "unknown operation",
			src: `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        ops: [{op: frobnicate, result: x}]
`,
			want: `unknown operation "frobnicate"`,
		},
		{
			name: "unknown block",
			src: `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        exits: [{target: 7}]
`,
			want: "link to unknown block 7",
		},
		{
			name: "return arity",
			src: `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        exits: [{target: -1}]
`,
			want: "return link needs exactly one argument",
		},
		{
			name: "link arity",
			src: `
functions:
  - name: f
    params: []
    blocks:
      - id: 0
        exits: [{target: 1, args: [{const: 1}]}]
      - id: 1
        inputs: [a, b]
        exits: [{target: -1, args: [{var: a}]}]
`,
			want: "passes 1 args for 2 inputs",
		},
		{
			name: "entry inputs",
			src: `
functions:
  - name: f
    params: [x]
    blocks:
      - id: 0
        inputs: [a, b]
        exits: [{target: -1, args: [{var: a}]}]
`,
			want: "entry block takes 2 inputs for 1 params",
		},
		{
			name: "unknown base",
			src: `
classes:
  - {name: A, base: Missing}
functions:
  - {name: f, params: [], blocks: [{id: 0}]}
`,
			want: `class A: unknown base "Missing"`,
		},
		{
			name: "unknown method function",
			src: `
classes:
  - name: A
    methods: {run: nowhere}
functions:
  - {name: f, params: [], blocks: [{id: 0}]}
`,
			want: `refers to unknown function "nowhere"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.src))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRead(t *testing.T) {
	g, err := Read(strings.NewReader(loopGraph))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(g.Functions) != 1 {
		t.Errorf("Expected 1 function, got %d", len(g.Functions))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestNormalizeConst(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{int(3), int64(3)},
		{int32(-3), int64(-3)},
		{uint8(7), int64(7)},
		{uint64(1 << 62), int64(1 << 62)},
		{uint64(1 << 63), uint64(1 << 63)},
		{float32(0.5), float64(0.5)},
		{"s", "s"},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := NormalizeConst(tt.in); got != tt.want {
			t.Errorf("NormalizeConst(%T(%v)): expected %T(%v), got %T(%v)", tt.in, tt.in, tt.want, tt.want, got, got)
		}
	}
}

func TestArg_Kinds(t *testing.T) {
	if (Arg{Var: "x"}).IsConst() {
		t.Error("Expected a variable argument")
	}
	if (Arg{Global: "len"}).IsConst() {
		t.Error("Expected a global argument")
	}
	if !(Arg{Const: "x"}).IsConst() {
		t.Error("Expected a constant argument")
	}
	if v := (Arg{Null: true, Const: 1}).Value(); v != nil {
		t.Errorf("Expected nil for a null argument, got %v", v)
	}
}

func TestPosition_String(t *testing.T) {
	p := Position{Func: "f", Block: 2, Index: 3}
	if p.String() != "f:2:3" {
		t.Errorf("Expected f:2:3, got %s", p)
	}
	if p.BlockKey().String() != "f:2" {
		t.Errorf("Expected f:2, got %s", p.BlockKey())
	}

	v := VarID{Func: "f", Name: "x"}
	if v.String() != "f.x" {
		t.Errorf("Expected f.x, got %s", v)
	}
	if !(VarID{}).IsZero() || (VarID{}).String() != "<const>" {
		t.Error("Expected the zero VarID to render as <const>")
	}
}

func TestParseOpcode(t *testing.T) {
	for _, class := range []OpClass{ClassUnary, ClassBinary, ClassAlloc, ClassCall, ClassCopy} {
		for _, op := range Opcodes(class) {
			got, ok := ParseOpcode(op.String())
			if !ok || got != op {
				t.Errorf("ParseOpcode(%q): expected %d, got %d", op, op, got)
			}
			if op.Class() != class {
				t.Errorf("Expected %s in class %d, got %d", op, class, op.Class())
			}
		}
	}
	if _, ok := ParseOpcode("nope"); ok {
		t.Error("Expected unknown opcode")
	}
	if OpInvalid.String() != "invalid" {
		t.Errorf("Expected invalid, got %s", OpInvalid)
	}
}

func TestOpcode_Base(t *testing.T) {
	tests := []struct {
		op, base Opcode
		ovf      bool
	}{
		{OpInplaceAdd, OpAdd, false},
		{OpAddOvf, OpAdd, true},
		{OpNegOvf, OpNeg, true},
		{OpGetItemIdx, OpGetItem, false},
		{OpAdd, OpInvalid, false},
	}
	for _, tt := range tests {
		if got := tt.op.Base(); got != tt.base {
			t.Errorf("%s.Base(): expected %s, got %s", tt.op, tt.base, got)
		}
		if got := tt.op.IsOverflowChecked(); got != tt.ovf {
			t.Errorf("%s.IsOverflowChecked(): expected %v, got %v", tt.op, tt.ovf, got)
		}
	}
	if !OpLe.IsComparison() || OpCmp.IsComparison() {
		t.Error("Expected le to be a comparison and cmp not")
	}
}
