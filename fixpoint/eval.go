package fixpoint

import (
	"fmt"

	"github.com/speakeasy-api/annotator/annotation"
	"github.com/speakeasy-api/annotator/flowgraph"
)

// Link cases of a switched block.
const (
	caseTrue  = "true"
	caseFalse = "false"

	// excAny matches every exception an operation may raise.
	excAny = "Exception"
)

// builtinTypes are the globals that name builtin types rather than
// builtin functions.
var builtinTypes = map[string]annotation.HostType{
	string(annotation.TypeObject):   annotation.TypeObject,
	string(annotation.TypeNone):     annotation.TypeNone,
	string(annotation.TypeBool):     annotation.TypeBool,
	string(annotation.TypeInt):      annotation.TypeInt,
	string(annotation.TypeFloat):    annotation.TypeFloat,
	string(annotation.TypeStr):      annotation.TypeStr,
	string(annotation.TypeUnicode):  annotation.TypeUnicode,
	string(annotation.TypeTuple):    annotation.TypeTuple,
	string(annotation.TypeList):     annotation.TypeList,
	string(annotation.TypeDict):     annotation.TypeDict,
	string(annotation.TypeTypeType): annotation.TypeTypeType,
}

// processBlock evaluates every operation of a block, then follows its
// exits. An operation whose result is Bottom blocks the rest of the block
// until a reflow brings it back.
func (a *Annotator) processBlock(key flowgraph.BlockKey) error {
	fn, ok := a.funcs[key.Func]
	if !ok {
		return fmt.Errorf("unknown function %q", key.Func)
	}
	block, ok := fn.Block(key.Block)
	if !ok {
		return fmt.Errorf("%s: unknown block", key)
	}
	a.visited[key] = true

	var last annotation.Result
	for i, op := range block.Ops {
		pos := flowgraph.Position{Func: fn.Name, Block: block.ID, Index: i}
		res, err := a.evalOp(pos, fn, op)
		if err != nil {
			return err
		}
		if res.Value.IsBottom() {
			a.logger.Debugf("%s: %s blocked", pos, op.Name)
			return nil
		}
		id := fn.Var(op.Result)
		if _, err := a.bind(id, res.Value); err != nil {
			return fmt.Errorf("%s: %w", pos, err)
		}
		if res.Facts.Empty() {
			delete(a.facts, id)
		} else {
			a.facts[id] = res.Facts
		}
		last = res
	}
	return a.followExits(fn, block, last)
}

func (a *Annotator) evalOp(pos flowgraph.Position, fn *flowgraph.Function, op *flowgraph.Operation) (annotation.Result, error) {
	a.bk.Enter(pos)
	defer a.bk.Leave()

	operands := make([]annotation.Operand, len(op.Args))
	for i, arg := range op.Args {
		o, err := a.operand(fn, arg)
		if err != nil {
			return annotation.Result{}, fmt.Errorf("%s: %w", pos, err)
		}
		operands[i] = o
	}

	switch op.Op.Class() {
	case flowgraph.ClassBinary:
		if len(operands) < 2 {
			return annotation.Result{}, fmt.Errorf("%s: %s needs two operands, got %d", pos, op.Op, len(operands))
		}
		return a.bk.Binary(op.Op, operands[0], operands[1], operands[2:]...)
	case flowgraph.ClassUnary:
		if len(operands) < 1 {
			return annotation.Result{}, fmt.Errorf("%s: %s needs an operand", pos, op.Op)
		}
		return a.bk.Unary(op.Op, operands[0], operands[1:]...)
	case flowgraph.ClassAlloc:
		return a.alloc(pos, op.Op, operands)
	case flowgraph.ClassCall:
		if len(operands) < 1 {
			return annotation.Result{}, fmt.Errorf("%s: call without a callee", pos)
		}
		shape := annotation.CallShape{Keywords: op.Keywords, Star: op.Star}
		shape.Positional = len(operands) - 1 - len(op.Keywords)
		if op.Star {
			shape.Positional--
		}
		if shape.Positional < 0 {
			return annotation.Result{}, fmt.Errorf("%s: call shape %s does not fit %d arguments", pos, shape, len(operands)-1)
		}
		return a.bk.Call(operands[0], shape, operands[1:])
	case flowgraph.ClassCopy:
		if len(operands) != 1 {
			return annotation.Result{}, fmt.Errorf("%s: %s needs one operand", pos, op.Op)
		}
		return annotation.Result{Value: operands[0].Value}, nil
	}
	return annotation.Result{}, fmt.Errorf("%s: unknown operation %q", pos, op.Name)
}

func (a *Annotator) alloc(pos flowgraph.Position, op flowgraph.Opcode, operands []annotation.Operand) (annotation.Result, error) {
	values := make([]*annotation.Value, len(operands))
	for i, o := range operands {
		if o.Value.IsBottom() {
			return annotation.Result{Value: annotation.Bottom()}, nil
		}
		values[i] = o.Value
	}

	var v *annotation.Value
	var err error
	switch op {
	case flowgraph.OpNewList:
		v, err = a.bk.NewList(values...)
	case flowgraph.OpNewDict:
		if len(values)%2 != 0 {
			return annotation.Result{}, fmt.Errorf("%s: newdict needs key/value pairs, got %d operands", pos, len(values))
		}
		keys := make([]*annotation.Value, 0, len(values)/2)
		vals := make([]*annotation.Value, 0, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			keys = append(keys, values[i])
			vals = append(vals, values[i+1])
		}
		v, err = a.bk.NewDict(keys, vals)
	case flowgraph.OpNewTuple:
		v, err = a.bk.NewTuple(values...)
	case flowgraph.OpNewSlice:
		if len(values) > 3 {
			return annotation.Result{}, fmt.Errorf("%s: newslice takes at most 3 operands, got %d", pos, len(values))
		}
		bounds := make([]*annotation.Value, 3)
		copy(bounds, values)
		v = a.bk.NewSlice(bounds[0], bounds[1], bounds[2])
	default:
		return annotation.Result{}, fmt.Errorf("%s: %s is not an allocation", pos, op)
	}
	if err != nil {
		return annotation.Result{}, err
	}
	return annotation.Result{Value: v}, nil
}

// operand resolves an operation or link argument to its current value.
func (a *Annotator) operand(fn *flowgraph.Function, arg flowgraph.Arg) (annotation.Operand, error) {
	switch {
	case arg.Var != "":
		id := fn.Var(arg.Var)
		return annotation.Var(id, a.value(id)), nil
	case arg.Global != "":
		v, err := a.global(arg.Global)
		if err != nil {
			return annotation.Operand{}, err
		}
		return annotation.Const(v), nil
	}
	v, err := a.bk.ImmutableValue(arg.Value())
	if err != nil {
		return annotation.Operand{}, err
	}
	return annotation.Const(v), nil
}

func (a *Annotator) global(name string) (*annotation.Value, error) {
	if host, ok := a.hosts[name]; ok {
		return a.bk.ImmutableValue(host)
	}
	if t, ok := builtinTypes[name]; ok {
		return a.bk.ImmutableValue(t)
	}
	if annotation.IsBuiltin(name) {
		return a.bk.ImmutableValue(annotation.BuiltinName(name))
	}
	return nil, fmt.Errorf("unknown global %q", name)
}

// ----------------------------------------------------------------------------
// Exits
// ----------------------------------------------------------------------------

// followExits follows the links a block can take. On a switched block a
// constant switch value selects one branch, and the narrowing facts of the
// switch variable refine the link arguments of each branch. Exception links
// are taken when the last operation may raise the named exception.
func (a *Annotator) followExits(fn *flowgraph.Function, block *flowgraph.Block, last annotation.Result) error {
	var sw *annotation.Value
	var facts annotation.Facts
	if block.Switch != "" {
		id := fn.Var(block.Switch)
		sw = a.value(id)
		facts = a.facts[id]
	}

	for _, l := range block.Exits {
		var narrow map[flowgraph.VarID]*annotation.Value
		switch l.Case {
		case "":
		case caseTrue, caseFalse:
			outcome := l.Case == caseTrue
			if sw == nil {
				return fmt.Errorf("%s:%d: %q link without a switch", fn.Name, block.ID, l.Case)
			}
			if b, ok := switchConst(sw); ok && b != outcome {
				continue
			}
			narrow = facts.Branch(outcome)
		default:
			if !last.MayRaise(l.Case) && !(l.Case == excAny && len(last.Raises) > 0) {
				continue
			}
		}
		if err := a.followLink(fn, l, narrow); err != nil {
			return err
		}
	}
	return nil
}

func switchConst(v *annotation.Value) (bool, bool) {
	if v.Kind != annotation.KindBool || !v.HasConst {
		return false, false
	}
	b, ok := v.Const.(bool)
	return b, ok
}

func (a *Annotator) followLink(fn *flowgraph.Function, l *flowgraph.Link, narrow map[flowgraph.VarID]*annotation.Value) error {
	values := make([]*annotation.Value, len(l.Args))
	for i, arg := range l.Args {
		if arg.Var != "" {
			if nv, ok := narrow[fn.Var(arg.Var)]; ok {
				values[i] = nv
				continue
			}
		}
		o, err := a.operand(fn, arg)
		if err != nil {
			return fmt.Errorf("%s: link to %d: %w", fn.Name, l.Target, err)
		}
		values[i] = o.Value
	}
	for _, v := range values {
		if v.IsBottom() {
			return nil
		}
	}

	if l.Target == flowgraph.ReturnBlock {
		return a.setReturn(fn.Name, values[0])
	}
	target, ok := fn.Block(l.Target)
	if !ok {
		return fmt.Errorf("%s: link to unknown block %d", fn.Name, l.Target)
	}
	return a.flowToBlock(fn, target, values)
}
