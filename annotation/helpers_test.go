package annotation

import (
	"testing"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// fakeDriver records what the bookkeeper asks of the fixpoint driver.
type fakeDriver struct {
	bindings map[flowgraph.VarID]*Value
	reflows  []flowgraph.Position
	warnings []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{bindings: make(map[flowgraph.VarID]*Value)}
}

func (d *fakeDriver) Binding(v flowgraph.VarID) (*Value, bool) {
	val, ok := d.bindings[v]
	return val, ok
}

func (d *fakeDriver) ReflowFrom(p flowgraph.Position) { d.reflows = append(d.reflows, p) }

func (d *fakeDriver) Warning(msg string) { d.warnings = append(d.warnings, msg) }

// fakeSpecializer answers calls with a fixed result per function name.
type fakeSpecializer struct {
	results map[string]*Value
	calls   []string
	args    map[string][]*Value
}

func newFakeSpecializer() *fakeSpecializer {
	return &fakeSpecializer{results: make(map[string]*Value), args: make(map[string][]*Value)}
}

func (s *fakeSpecializer) SpecializeCall(bk *Bookkeeper, d *FunctionDesc, shape CallShape, args []*Value) (*Value, error) {
	s.calls = append(s.calls, d.Name())
	s.args[d.Name()] = args
	if r, ok := s.results[d.Name()]; ok {
		return r, nil
	}
	return None(), nil
}

func newTestBookkeeper(t *testing.T, configure ...func(*Options)) (*Bookkeeper, *fakeDriver, *fakeSpecializer) {
	t.Helper()
	opts := DefaultOptions()
	opts.Logger = NopLogger()
	for _, c := range configure {
		c(&opts)
	}
	drv := newFakeDriver()
	spec := newFakeSpecializer()
	return New(drv, spec, opts), drv, spec
}

func strict(o *Options) { o.StrictMode = true }

func at(fn string, block, index int) flowgraph.Position {
	return flowgraph.Position{Func: fn, Block: block, Index: index}
}

func varID(name string) flowgraph.VarID {
	return flowgraph.VarID{Func: "f", Name: name}
}

// inOp evaluates body as the operation at p.
func inOp(bk *Bookkeeper, p flowgraph.Position, body func()) {
	bk.Enter(p)
	defer bk.Leave()
	body()
}

// zoo is a small class hierarchy: Animal <- Dog, Animal <- Cat, and an
// unrelated Rock.
type zoo struct {
	animal, dog, cat, rock *HostClass
}

func newZoo() zoo {
	animal := &HostClass{
		Name:    "Animal",
		Methods: map[string]*HostFunc{"speak": {Name: "Animal.speak", Params: []string{"self"}}},
	}
	dog := &HostClass{
		Name:    "Dog",
		Base:    animal,
		Attrs:   map[string]any{"legs": int64(4)},
		Methods: map[string]*HostFunc{"speak": {Name: "Dog.speak", Params: []string{"self"}}},
	}
	cat := &HostClass{Name: "Cat", Base: animal}
	rock := &HostClass{Name: "Rock"}
	return zoo{animal: animal, dog: dog, cat: cat, rock: rock}
}

func (z zoo) instance(bk *Bookkeeper, cls *HostClass) *Value {
	return InstanceOf(bk.ClassDefOf(cls), false)
}

func (z zoo) class(bk *Bookkeeper, cls *HostClass) *Value {
	return CallableOf([]Desc{bk.ClassDescOf(cls)}, false)
}

func expectValue(t *testing.T, want, got *Value) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
