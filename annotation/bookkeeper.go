package annotation

import (
	"fmt"
	"sort"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// Driver is the fixpoint scheduler that walks the flow graph. The
// bookkeeper asks it for variable bindings and tells it which positions to
// evaluate again.
type Driver interface {
	Binding(v flowgraph.VarID) (*Value, bool)
	ReflowFrom(pos flowgraph.Position)
	Warning(msg string)
}

// Specializer flows call arguments into a function and returns the
// function's current result. It may call back into the bookkeeper.
type Specializer interface {
	SpecializeCall(bk *Bookkeeper, d *FunctionDesc, shape CallShape, args []*Value) (*Value, error)
}

// allocKey identifies one allocation of an operation: an operation may
// allocate several containers, numbered in evaluation order.
type allocKey struct {
	pos  flowgraph.Position
	slot int
}

// Bookkeeper owns the analysis state of one run: interned constants,
// descriptions, container definitions per allocation site, the cell arena
// and the families. Every operation is evaluated between Enter and Leave.
type Bookkeeper struct {
	opts   Options
	driver Driver
	spec   Specializer

	baseLogger Logger
	logger     Logger

	cells    unionFind[*cell]
	callFams unionFind[*CallFamily]
	attrFams unionFind[*AttrFamily]

	listDefs map[allocKey]*ListDef
	dictDefs map[allocKey]*DictDef
	defSeq   int

	interned  map[string]*Value
	identity  map[any]*Value
	descs     map[any]Desc
	allDescs  []Desc
	descSeq   int
	classDefs map[*HostClass]*ClassDef

	methodDescs map[methodKey]*MethodDesc

	pos     flowgraph.Position
	inOp    bool
	slot    int
	pending positionSet

	warnings []string
	stats    map[string]int
}

// New creates a Bookkeeper reporting to driver. spec may be nil when the
// analysed program makes no calls.
func New(driver Driver, spec Specializer, opts Options) *Bookkeeper {
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(ParseLogLevel(opts.LogLevel), opts.LogTimeFormat, nil)
	}
	if opts.LogMaxItems <= 0 {
		opts.LogMaxItems = 5
	}
	return &Bookkeeper{
		opts:        opts,
		driver:      driver,
		spec:        spec,
		baseLogger:  logger,
		logger:      logger,
		listDefs:    make(map[allocKey]*ListDef),
		dictDefs:    make(map[allocKey]*DictDef),
		interned:    make(map[string]*Value),
		identity:    make(map[any]*Value),
		descs:       make(map[any]Desc),
		classDefs:   make(map[*HostClass]*ClassDef),
		methodDescs: make(map[methodKey]*MethodDesc),
		stats:       make(map[string]int),
	}
}

// Options returns the configuration of the bookkeeper.
func (bk *Bookkeeper) Options() Options { return bk.opts }

// Logger returns the logger of the current operation.
func (bk *Bookkeeper) Logger() Logger { return bk.logger }

// Enter sets the current position before one operation is evaluated.
// Entering twice without Leave is a programming error.
func (bk *Bookkeeper) Enter(pos flowgraph.Position) {
	if bk.inOp {
		panic(fmt.Sprintf("annotation: Enter(%s) while evaluating %s", pos, bk.pos))
	}
	bk.pos = pos
	bk.inOp = true
	bk.slot = 0
	bk.logger = bk.baseLogger.With(map[string]any{"pos": pos})
}

// Leave clears the current position and hands the reflow requests
// collected during the operation to the driver, each position once.
func (bk *Bookkeeper) Leave() {
	if !bk.inOp {
		panic("annotation: Leave without Enter")
	}
	bk.inOp = false
	bk.logger = bk.baseLogger
	bk.flush()
}

// Position returns the position of the operation being evaluated.
func (bk *Bookkeeper) Position() flowgraph.Position {
	if !bk.inOp {
		panic("annotation: operation evaluated outside Enter/Leave")
	}
	return bk.pos
}

// InOperation reports whether an operation is being evaluated.
func (bk *Bookkeeper) InOperation() bool { return bk.inOp }

func (bk *Bookkeeper) reflow(positions ...flowgraph.Position) {
	for _, p := range positions {
		bk.pending.add(p)
	}
	if !bk.inOp {
		bk.flush()
	}
}

func (bk *Bookkeeper) flush() {
	if bk.pending.len() == 0 {
		return
	}
	batch := bk.pending.items()
	bk.pending.reset()
	for _, p := range batch {
		bk.logger.Debugf("reflow %s", p)
		bk.count("reflow")
		bk.driver.ReflowFrom(p)
	}
}

// Binding returns the driver's current value of v, or Bottom.
func (bk *Bookkeeper) Binding(v flowgraph.VarID) *Value {
	if val, ok := bk.driver.Binding(v); ok && val != nil {
		return val
	}
	return Bottom()
}

func (bk *Bookkeeper) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if bk.inOp {
		msg = bk.pos.String() + ": " + msg
	}
	bk.logger.Warnf("%s", msg)
	if !bk.opts.EnableWarnings {
		return
	}
	bk.warnings = append(bk.warnings, msg)
	bk.driver.Warning(msg)
}

// imprecise records a soft imprecision. In strict mode it is an error.
func (bk *Bookkeeper) imprecise(format string, args ...any) error {
	if bk.opts.StrictMode {
		return &ImprecisionError{Pos: bk.pos, Msg: fmt.Sprintf(format, args...)}
	}
	bk.count("imprecise")
	bk.warn(format, args...)
	return nil
}

func (bk *Bookkeeper) domainError(format string, args ...any) error {
	return &DomainError{Pos: bk.pos, Msg: fmt.Sprintf(format, args...)}
}

func (bk *Bookkeeper) unsupported(op flowgraph.Opcode, kinds ...Kind) error {
	return &UnsupportedOperationError{Op: op, Kinds: kinds, Pos: bk.pos}
}

// Warnings returns the soft imprecision warnings collected so far.
func (bk *Bookkeeper) Warnings() []string {
	return append([]string(nil), bk.warnings...)
}

// Count records a diagnostic event. Counts never influence the analysis.
func (bk *Bookkeeper) Count(category string, args ...any) {
	bk.count(category)
	if len(args) > 0 {
		bk.logger.Debugf("count %s %v", category, args)
	}
}

func (bk *Bookkeeper) count(category string) {
	bk.stats[category]++
}

// Stats returns the diagnostic counters.
func (bk *Bookkeeper) Stats() map[string]int {
	out := make(map[string]int, len(bk.stats))
	for k, v := range bk.stats {
		out[k] = v
	}
	return out
}

// StatNames returns the counter names, sorted.
func (bk *Bookkeeper) StatNames() []string {
	names := make([]string, 0, len(bk.stats))
	for k := range bk.stats {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (bk *Bookkeeper) summary(v *Value) string {
	return valueSummary(v, bk.opts.LogMaxItems, 3)
}

func (bk *Bookkeeper) nextDefID() int {
	bk.defSeq++
	return bk.defSeq
}

func (bk *Bookkeeper) nextAlloc() allocKey {
	k := allocKey{pos: bk.Position(), slot: bk.slot}
	bk.slot++
	return k
}

// listDefAt returns the ListDef of the next allocation slot of the current
// operation, creating it on the first visit.
func (bk *Bookkeeper) listDefAt() *ListDef {
	k := bk.nextAlloc()
	if d, ok := bk.listDefs[k]; ok {
		return d
	}
	d := bk.newListDef(Bottom())
	bk.listDefs[k] = d
	return d
}

func (bk *Bookkeeper) dictDefAt() *DictDef {
	k := bk.nextAlloc()
	if d, ok := bk.dictDefs[k]; ok {
		return d
	}
	d := bk.newDictDef(Bottom(), Bottom())
	bk.dictDefs[k] = d
	return d
}

// NewList returns the list allocated at the current position, widened with
// items. Repeated visits of the position reuse the same ListDef.
func (bk *Bookkeeper) NewList(items ...*Value) (*Value, error) {
	d := bk.listDefAt()
	for _, it := range items {
		if err := d.Generalize(it); err != nil {
			return nil, err
		}
	}
	return ListOf(d), nil
}

// NewDict returns the dict allocated at the current position, widened with
// the given keys and values.
func (bk *Bookkeeper) NewDict(keys, values []*Value) (*Value, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("newdict: %d keys for %d values", len(keys), len(values))
	}
	d := bk.dictDefAt()
	for i := range keys {
		if err := d.GeneralizeKey(keys[i]); err != nil {
			return nil, err
		}
		if err := d.GeneralizeValue(values[i]); err != nil {
			return nil, err
		}
	}
	return DictOf(d), nil
}

// NewTuple builds a tuple; tuples longer than MaxTupleArity degrade to Top.
func (bk *Bookkeeper) NewTuple(items ...*Value) (*Value, error) {
	if bk.opts.MaxTupleArity > 0 && len(items) > bk.opts.MaxTupleArity {
		if err := bk.imprecise("tuple of length %d exceeds %d", len(items), bk.opts.MaxTupleArity); err != nil {
			return nil, err
		}
		return Top(), nil
	}
	for _, it := range items {
		if it.IsBottom() {
			return Bottom(), nil
		}
	}
	return TupleOf(items...), nil
}

// NewSlice builds a slice object. Missing bounds are None.
func (bk *Bookkeeper) NewSlice(start, stop, step *Value) *Value {
	if start == nil {
		start = None()
	}
	if stop == nil {
		stop = None()
	}
	if step == nil {
		step = None()
	}
	return SliceOf(start, stop, step)
}

// GetAttr reads a constant attribute of obj.
func (bk *Bookkeeper) GetAttr(obj Operand, name string) (Result, error) {
	return bk.Unary(flowgraph.OpGetAttr, obj, Const(ConstStr(name)))
}

// SetAttr stores v under a constant attribute of obj.
func (bk *Bookkeeper) SetAttr(obj Operand, name string, v Operand) (Result, error) {
	return bk.Unary(flowgraph.OpSetAttr, obj, Const(ConstStr(name)), v)
}

// GetItem evaluates obj[key].
func (bk *Bookkeeper) GetItem(obj, key Operand) (Result, error) {
	return bk.Binary(flowgraph.OpGetItem, obj, key)
}

// SetItem evaluates obj[key] = v.
func (bk *Bookkeeper) SetItem(obj, key, v Operand) (Result, error) {
	return bk.Binary(flowgraph.OpSetItem, obj, key, v)
}

// DelItem evaluates del obj[key].
func (bk *Bookkeeper) DelItem(obj, key Operand) (Result, error) {
	return bk.Binary(flowgraph.OpDelItem, obj, key)
}

// Call calls fn with arguments laid out according to shape.
func (bk *Bookkeeper) Call(fn Operand, shape CallShape, args []Operand) (Result, error) {
	op := flowgraph.OpSimpleCall
	if len(shape.Keywords) > 0 || shape.Star {
		op = flowgraph.OpCallArgs
	}
	return bk.callOp(op, fn, shape, args)
}

// Descs returns every description created so far, in creation order.
func (bk *Bookkeeper) Descs() []Desc { return append([]Desc(nil), bk.allDescs...) }

// ClassDefs returns every class definition created so far, sorted by name.
func (bk *Bookkeeper) ClassDefs() []*ClassDef {
	out := make([]*ClassDef, 0, len(bk.classDefs))
	for _, cd := range bk.classDefs {
		out = append(out, cd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
