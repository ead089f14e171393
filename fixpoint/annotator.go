package fixpoint

import (
	"context"
	"fmt"

	"github.com/speakeasy-api/annotator/annotation"
	"github.com/speakeasy-api/annotator/flowgraph"
)

// Result is the outcome of a Run: the value of every variable and the
// return value of every function that was reached.
type Result struct {
	Bindings   map[flowgraph.VarID]*annotation.Value
	Returns    map[string]*annotation.Value
	Warnings   []string
	Stats      map[string]int
	Iterations int
}

// Annotator drives a Bookkeeper over a flow graph until no block changes
// any binding. It is the bookkeeper's Driver and Specializer.
type Annotator struct {
	graph  *flowgraph.Graph
	opts   Options
	bk     *annotation.Bookkeeper
	logger annotation.Logger

	funcs     map[string]*flowgraph.Function
	hostFuncs map[string]*annotation.HostFunc
	hosts     map[string]any

	bindings map[flowgraph.VarID]*annotation.Value
	facts    map[flowgraph.VarID]annotation.Facts
	returns  map[string]*annotation.Value
	callers  map[string][]flowgraph.Position
	isCaller map[string]map[flowgraph.Position]bool
	visited  map[flowgraph.BlockKey]bool

	worklist   *blockWorklist
	warnings   []string
	iterations int
}

// New prepares an Annotator for g. The graph is validated and every
// function, class and frozen object becomes a global the program can name.
func New(g *flowgraph.Graph, opts Options) (*Annotator, error) {
	if g == nil {
		return nil, fmt.Errorf("flow graph cannot be nil")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow graph: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = annotation.NewLogger(annotation.ParseLogLevel(opts.LogLevel), opts.LogTimeFormat, nil)
		opts.Logger = logger
	}

	a := &Annotator{
		graph:     g,
		opts:      opts,
		logger:    logger,
		funcs:     make(map[string]*flowgraph.Function, len(g.Functions)),
		hostFuncs: make(map[string]*annotation.HostFunc, len(g.Functions)),
		hosts:     make(map[string]any),
		bindings:  make(map[flowgraph.VarID]*annotation.Value),
		facts:     make(map[flowgraph.VarID]annotation.Facts),
		returns:   make(map[string]*annotation.Value),
		callers:   make(map[string][]flowgraph.Position),
		isCaller:  make(map[string]map[flowgraph.Position]bool),
		visited:   make(map[flowgraph.BlockKey]bool),
		worklist:  newBlockWorklist(),
	}
	a.buildHosts()
	a.bk = annotation.New(a, a, opts.Options)
	return a, nil
}

func (a *Annotator) buildHosts() {
	for _, fn := range a.graph.Functions {
		hf := &annotation.HostFunc{Name: fn.Name, Params: fn.Params, Defaults: fn.Defaults}
		a.funcs[fn.Name] = fn
		a.hostFuncs[fn.Name] = hf
		a.hosts[fn.Name] = hf
	}
	classes := make(map[string]*annotation.HostClass, len(a.graph.Classes))
	for _, c := range a.graph.Classes {
		hc := &annotation.HostClass{Name: c.Name, Attrs: c.Attrs, Methods: make(map[string]*annotation.HostFunc, len(c.Methods))}
		for method, fn := range c.Methods {
			hc.Methods[method] = a.hostFuncs[fn]
		}
		classes[c.Name] = hc
		a.hosts[c.Name] = hc
	}
	for _, c := range a.graph.Classes {
		if c.Base != "" {
			classes[c.Name].Base = classes[c.Base]
		}
	}
	for _, f := range a.graph.Frozen {
		a.hosts[f.Name] = &annotation.HostFrozen{Name: f.Name, Attrs: f.Attrs}
	}
}

// Bookkeeper returns the bookkeeper holding the analysis state.
func (a *Annotator) Bookkeeper() *annotation.Bookkeeper { return a.bk }

// Run flows args into the entry function and evaluates blocks until the
// worklist is empty. Missing trailing arguments take the function's
// defaults. Run may be called again to add entry points; state carries over.
func (a *Annotator) Run(ctx context.Context, entry string, args ...*annotation.Value) (*Result, error) {
	fn, ok := a.funcs[entry]
	if !ok {
		return nil, fmt.Errorf("unknown entry function %q", entry)
	}
	d := a.bk.FunctionDescOf(a.hostFuncs[entry])
	bound, err := a.bk.BindArgs(d, annotation.CallShape{Positional: len(args)}, args)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry, err)
	}

	a.logger.With(map[string]any{
		"entry":     entry,
		"functions": len(a.graph.Functions),
	}).Infof("Starting annotation")

	if err := a.flowInto(fn, bound); err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry, err)
	}

	for !a.worklist.isEmpty() {
		a.iterations++
		if a.opts.MaxIterations > 0 && a.iterations > a.opts.MaxIterations {
			return nil, fmt.Errorf("exceeded maximum iterations (%d) - possible infinite loop", a.opts.MaxIterations)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		key, _ := a.worklist.pop()
		a.logger.With(map[string]any{
			"block":   key,
			"pending": a.worklist.len(),
		}).Debugf("Evaluating block")
		if err := a.processBlock(key); err != nil {
			return nil, err
		}
	}

	a.logger.With(map[string]any{
		"entry":      entry,
		"iterations": a.iterations,
		"warnings":   len(a.warnings),
	}).Infof("Annotation complete")

	return a.result(), nil
}

func (a *Annotator) result() *Result {
	r := &Result{
		Bindings:   make(map[flowgraph.VarID]*annotation.Value, len(a.bindings)),
		Returns:    make(map[string]*annotation.Value, len(a.returns)),
		Warnings:   append([]string(nil), a.warnings...),
		Stats:      a.bk.Stats(),
		Iterations: a.iterations,
	}
	for k, v := range a.bindings {
		r.Bindings[k] = v
	}
	for k, v := range a.returns {
		r.Returns[k] = v
	}
	return r
}

// ----------------------------------------------------------------------------
// Driver
// ----------------------------------------------------------------------------

// Binding returns the current value of v.
func (a *Annotator) Binding(v flowgraph.VarID) (*annotation.Value, bool) {
	val, ok := a.bindings[v]
	return val, ok
}

// ReflowFrom queues the block containing pos.
func (a *Annotator) ReflowFrom(pos flowgraph.Position) {
	if a.worklist.push(pos.BlockKey()) {
		a.logger.Debugf("reflow %s", pos.BlockKey())
	}
}

// Warning records a soft imprecision reported by the bookkeeper.
func (a *Annotator) Warning(msg string) {
	a.warnings = append(a.warnings, msg)
}

// SpecializeCall flows the arguments of a call into the callee's entry
// block and returns the callee's return value so far. The calling position
// is reflowed whenever that return value widens.
func (a *Annotator) SpecializeCall(bk *annotation.Bookkeeper, d *annotation.FunctionDesc, shape annotation.CallShape, args []*annotation.Value) (*annotation.Value, error) {
	fn, ok := a.funcs[d.Func.Name]
	if !ok {
		return nil, &annotation.DomainError{Pos: bk.Position(), Msg: fmt.Sprintf("no flow graph for %s", d.Name())}
	}
	bound, err := bk.BindArgs(d, shape, args)
	if err != nil {
		return nil, err
	}
	a.addCaller(fn.Name, bk.Position())
	if err := a.flowInto(fn, bound); err != nil {
		return nil, err
	}
	if r, ok := a.returns[fn.Name]; ok {
		return r, nil
	}
	return annotation.Bottom(), nil
}

func (a *Annotator) addCaller(fn string, pos flowgraph.Position) {
	seen := a.isCaller[fn]
	if seen == nil {
		seen = make(map[flowgraph.Position]bool)
		a.isCaller[fn] = seen
	}
	if seen[pos] {
		return
	}
	seen[pos] = true
	a.callers[fn] = append(a.callers[fn], pos)
}

// ----------------------------------------------------------------------------
// Bindings
// ----------------------------------------------------------------------------

func (a *Annotator) value(id flowgraph.VarID) *annotation.Value {
	if v, ok := a.bindings[id]; ok {
		return v
	}
	return annotation.Bottom()
}

// bind widens the binding of id with v and reports whether it changed.
func (a *Annotator) bind(id flowgraph.VarID, v *annotation.Value) (bool, error) {
	old := a.value(id)
	nv, err := a.bk.Union(old, v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", id, err)
	}
	if nv.Equal(old) {
		return false, nil
	}
	a.bindings[id] = nv
	return true, nil
}

// flowInto widens the entry block inputs of fn and queues the block when
// they changed or the block was never evaluated.
func (a *Annotator) flowInto(fn *flowgraph.Function, args []*annotation.Value) error {
	entry := fn.Blocks[0]
	return a.flowToBlock(fn, entry, args)
}

func (a *Annotator) flowToBlock(fn *flowgraph.Function, b *flowgraph.Block, args []*annotation.Value) error {
	if len(args) != len(b.Inputs) {
		return fmt.Errorf("%s:%d: %d values for %d inputs", fn.Name, b.ID, len(args), len(b.Inputs))
	}
	changed := false
	for i, name := range b.Inputs {
		c, err := a.bind(fn.Var(name), args[i])
		if err != nil {
			return err
		}
		changed = changed || c
	}
	key := flowgraph.BlockKey{Func: fn.Name, Block: b.ID}
	if changed || !a.visited[key] {
		a.worklist.push(key)
	}
	return nil
}

func (a *Annotator) setReturn(fn string, v *annotation.Value) error {
	old, ok := a.returns[fn]
	if !ok {
		old = annotation.Bottom()
	}
	nv, err := a.bk.Union(old, v)
	if err != nil {
		return fmt.Errorf("return of %s: %w", fn, err)
	}
	if ok && nv.Equal(old) {
		return nil
	}
	a.returns[fn] = nv
	a.logger.Debugf("return of %s widened to %s", fn, nv)
	for _, pos := range a.callers[fn] {
		a.ReflowFrom(pos)
	}
	return nil
}
