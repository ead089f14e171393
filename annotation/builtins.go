package annotation

import (
	"fmt"
	"strings"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// builtinFunc evaluates a builtin function, or a builtin method bound to
// self.
type builtinFunc func(bk *Bookkeeper, self *Value, args []Operand) (Result, error)

// builtinRegistry maps builtin names to their implementations. Methods are
// named type.method. It is filled in init because the entries call back
// into the dispatch tables.
var builtinRegistry map[string]builtinFunc

func init() {
	builtinRegistry = map[string]builtinFunc{
		// Introspection
		"len":        unaryBuiltin(flowgraph.OpLen, 1),
		"isinstance": unaryBuiltin(flowgraph.OpIsInstance, 2),
		"type":       unaryBuiltin(flowgraph.OpType, 1),
		"hash":       unaryBuiltin(flowgraph.OpHash, 1),
		"id":         unaryBuiltin(flowgraph.OpID, 1),
		"repr":       unaryBuiltin(flowgraph.OpRepr, 1),

		// Conversions
		"int":     conversionBuiltin(flowgraph.OpInt, ConstInt(0)),
		"float":   conversionBuiltin(flowgraph.OpFloat, ConstFloat(0)),
		"str":     conversionBuiltin(flowgraph.OpStr, &Value{Kind: KindStr, Const: "", HasConst: true}),
		"bool":    conversionBuiltin(flowgraph.OpIsTrue, ConstBool(false)),
		"unicode": builtinUnicode,
		"chr":     unaryBuiltin(flowgraph.OpChr, 1),
		"unichr":  unaryBuiltin(flowgraph.OpUnichr, 1),
		"ord":     unaryBuiltin(flowgraph.OpOrd, 1),
		"abs":     unaryBuiltin(flowgraph.OpAbs, 1),

		// Sequences
		"range":  builtinRange,
		"min":    builtinMinMax(false),
		"max":    builtinMinMax(true),
		"list":   builtinList,
		"dict":   builtinDict,
		"tuple":  builtinTuple,
		"r_dict": builtinRDict,

		// List methods
		"list.append":  listAppend,
		"list.extend":  listExtend,
		"list.insert":  listInsert,
		"list.pop":     listPop,
		"list.remove":  listRemove,
		"list.index":   listIndex("index"),
		"list.count":   listIndex("count"),
		"list.reverse": listMutate("reverse"),
		"list.sort":    listMutate("sort"),

		// Dict methods
		"dict.get":        dictGet,
		"dict.setdefault": dictSetDefault,
		"dict.keys":       dictListing("keys"),
		"dict.values":     dictListing("values"),
		"dict.items":      dictListing("items"),
		"dict.iterkeys":   dictIter("keys"),
		"dict.itervalues": dictIter("values"),
		"dict.iteritems":  dictIter("items"),
		"dict.copy":       dictCopy,
		"dict.update":     dictUpdate,
		"dict.pop":        dictPop,
		"dict.clear":      dictClear,
	}
	registerStringMethods("str", Str, ConstStr)
	registerStringMethods("unicode", UnicodeStr, func(s string) *Value { return ConstUnicode(Unicode(s)) })
}

// callBuiltin calls a builtin by name. Builtins take positional arguments
// only.
func (bk *Bookkeeper) callBuiltin(name string, self *Value, shape CallShape, args []Operand) (Result, error) {
	f, ok := builtinRegistry[name]
	if !ok || f == nil {
		return Result{}, fmt.Errorf("%s: builtin %s not implemented", bk.pos, name)
	}
	if len(shape.Keywords) > 0 || shape.Star {
		return Result{}, bk.domainError("builtin %s called with keyword or star arguments", name)
	}
	bk.count("builtin." + name)
	r, err := f(bk, self, args)
	if err != nil {
		return Result{}, err
	}
	if r.Value == nil {
		r.Value = Bottom()
	}
	return r, nil
}

func (bk *Bookkeeper) wantArgs(name string, args []Operand, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return bk.domainError("%s() takes %d arguments, %d given", name, lo, len(args))
		}
		return bk.domainError("%s() takes %d to %d arguments, %d given", name, lo, hi, len(args))
	}
	return nil
}

// unaryBuiltin forwards a builtin function to the unary operation table,
// so narrowing facts of isinstance and friends are kept.
func unaryBuiltin(op flowgraph.Opcode, arity int) builtinFunc {
	return func(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs(op.String(), args, arity, arity); err != nil {
			return Result{}, err
		}
		return bk.Unary(op, args[0], args[1:]...)
	}
}

// conversionBuiltin is a unary builtin whose call without argument returns
// the zero value of its type.
func conversionBuiltin(op flowgraph.Opcode, zero *Value) builtinFunc {
	return func(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs(op.String(), args, 0, 1); err != nil {
			return Result{}, err
		}
		if len(args) == 0 {
			return result(zero), nil
		}
		return bk.Unary(op, args[0])
	}
}

func builtinUnicode(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("unicode", args, 0, 1); err != nil {
		return Result{}, err
	}
	if len(args) == 1 && args[0].Value.IsUnicode() {
		return result(args[0].Value), nil
	}
	return result(UnicodeStr(), ExcValue), nil
}

// builtinRange builds a list of integers. The step must not be the constant
// zero; a constant step is remembered on the list.
func builtinRange(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("range", args, 1, 3); err != nil {
		return Result{}, err
	}
	start, stop, step := ConstInt(0), args[0].Value, ConstInt(1)
	if len(args) >= 2 {
		start, stop = args[0].Value, args[1].Value
	}
	if len(args) == 3 {
		step = args[2].Value
	}
	for _, v := range []*Value{start, stop, step} {
		if !v.IsInt() {
			return Result{}, bk.domainError("range() arguments must be integers, got %s", v)
		}
	}
	stepC, stepKnown := step.ConstInt64()
	if stepKnown && stepC == 0 {
		return Result{}, bk.domainError("range() step must not be zero")
	}
	d := bk.listDefAt()
	if err := d.Generalize(IntOf(stepKnown && stepC > 0 && start.Nonneg, false, 0)); err != nil {
		return Result{}, err
	}
	c := bk.cells.get(d.item)
	switch {
	case !stepKnown || c.mutated:
		c.rangeStep = 0
	case !c.rangeInit:
		c.rangeStep = stepC
	case c.rangeStep != stepC:
		c.rangeStep = 0
	}
	c.rangeInit = true
	return result(ListOf(d)), nil
}

// iterElement returns the value produced by iterating over v.
func (bk *Bookkeeper) iterElement(v *Value) (*Value, error) {
	if v.Kind == KindIterator {
		return bk.iterItem(v)
	}
	r, err := bk.Unary(flowgraph.OpIter, Const(v))
	if err != nil {
		return nil, err
	}
	return bk.iterItem(r.Value)
}

func builtinMinMax(isMax bool) builtinFunc {
	name := "min"
	if isMax {
		name = "max"
	}
	return func(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
		if len(args) == 0 {
			return Result{}, bk.domainError("%s() expects at least one argument", name)
		}
		if len(args) == 1 {
			v, err := bk.iterElement(args[0].Value)
			if err != nil {
				return Result{}, err
			}
			return result(v, ExcValue), nil
		}
		vals := make([]*Value, len(args))
		anyNonneg := false
		for i, a := range args {
			vals[i] = a.Value
			anyNonneg = anyNonneg || a.Value.Nonneg
		}
		v, err := bk.Union(vals...)
		if err != nil {
			return Result{}, err
		}
		if isMax && v.Kind == KindInt && anyNonneg && !v.Nonneg {
			v = IntOf(true, v.Unsigned, v.Size)
		}
		return result(v), nil
	}
}

func builtinList(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("list", args, 0, 1); err != nil {
		return Result{}, err
	}
	d := bk.listDefAt()
	if len(args) == 1 {
		elem, err := bk.iterElement(args[0].Value)
		if err != nil {
			return Result{}, err
		}
		if err := d.Generalize(elem); err != nil {
			return Result{}, err
		}
	}
	return result(ListOf(d)), nil
}

func builtinDict(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("dict", args, 0, 1); err != nil {
		return Result{}, err
	}
	d := bk.dictDefAt()
	if len(args) == 1 {
		src := args[0].Value
		if src.Kind != KindDict {
			return Result{}, bk.domainError("dict() argument must be a dict, got %s", src)
		}
		if err := d.GeneralizeKey(src.Dict.ReadKey()); err != nil {
			return Result{}, err
		}
		if err := d.GeneralizeValue(src.Dict.ReadValue()); err != nil {
			return Result{}, err
		}
	}
	return result(DictOf(d)), nil
}

func builtinTuple(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("tuple", args, 0, 1); err != nil {
		return Result{}, err
	}
	if len(args) == 0 {
		return result(TupleOf()), nil
	}
	if args[0].Value.Kind == KindTuple {
		return result(args[0].Value), nil
	}
	if err := bk.imprecise("tuple() of %s has unknown length", args[0].Value); err != nil {
		return Result{}, err
	}
	return result(Top()), nil
}

// builtinRDict creates a dict whose keys are compared with custom equality
// and hash functions.
func builtinRDict(bk *Bookkeeper, _ *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("r_dict", args, 2, 2); err != nil {
		return Result{}, err
	}
	eq, hash := args[0].Value, args[1].Value
	if eq.Kind != KindCallable || hash.Kind != KindCallable {
		return Result{}, bk.domainError("r_dict() expects two functions, got %s and %s", eq, hash)
	}
	d := bk.dictDefAt()
	if err := d.SetKeyFunctions(eq, hash); err != nil {
		return Result{}, err
	}
	return result(DictOf(d)), nil
}

// ----------------------------------------------------------------------------
// List methods
// ----------------------------------------------------------------------------

func listAppend(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("append", args, 1, 1); err != nil {
		return Result{}, err
	}
	if err := self.List.Resize(); err != nil {
		return Result{}, err
	}
	return result(None()), self.List.Generalize(args[0].Value)
}

func listExtend(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("extend", args, 1, 1); err != nil {
		return Result{}, err
	}
	if err := self.List.Resize(); err != nil {
		return Result{}, err
	}
	src := args[0].Value
	if src.Kind == KindList {
		return result(None()), self.List.Merge(src.List)
	}
	elem, err := bk.iterElement(src)
	if err != nil {
		return Result{}, err
	}
	return result(None()), self.List.Generalize(elem)
}

func listInsert(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("insert", args, 2, 2); err != nil {
		return Result{}, err
	}
	if !args[0].Value.IsInt() {
		return Result{}, bk.domainError("insert() index must be an integer, got %s", args[0].Value)
	}
	if err := self.List.Resize(); err != nil {
		return Result{}, err
	}
	return result(None()), self.List.Generalize(args[1].Value)
}

func listPop(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("pop", args, 0, 1); err != nil {
		return Result{}, err
	}
	if err := self.List.Resize(); err != nil {
		return Result{}, err
	}
	return result(self.List.ReadItem(), ExcIndex), nil
}

func listRemove(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("remove", args, 1, 1); err != nil {
		return Result{}, err
	}
	if err := self.List.Resize(); err != nil {
		return Result{}, err
	}
	if err := self.List.Generalize(args[0].Value); err != nil {
		return Result{}, err
	}
	return result(None(), ExcValue), nil
}

// listIndex serves index and count: the searched value must be comparable
// with the items, so the item widens to it.
func listIndex(name string) builtinFunc {
	return func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs(name, args, 1, 1); err != nil {
			return Result{}, err
		}
		if err := self.List.Generalize(args[0].Value); err != nil {
			return Result{}, err
		}
		return result(NonnegInt(), ExcValue), nil
	}
}

// listMutate serves reverse and sort, which reorder the items in place.
func listMutate(name string) builtinFunc {
	return func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs(name, args, 0, 0); err != nil {
			return Result{}, err
		}
		return result(None()), self.List.Mutate()
	}
}

// ----------------------------------------------------------------------------
// Dict methods
// ----------------------------------------------------------------------------

func optionalDefault(args []Operand, i int) *Value {
	if len(args) > i {
		return args[i].Value
	}
	return None()
}

func dictGet(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("get", args, 1, 2); err != nil {
		return Result{}, err
	}
	if err := self.Dict.GeneralizeKey(args[0].Value); err != nil {
		return Result{}, err
	}
	v, err := bk.Union(self.Dict.ReadValue(), optionalDefault(args, 1))
	return result(v), err
}

func dictSetDefault(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("setdefault", args, 1, 2); err != nil {
		return Result{}, err
	}
	if err := self.Dict.GeneralizeKey(args[0].Value); err != nil {
		return Result{}, err
	}
	if err := self.Dict.GeneralizeValue(optionalDefault(args, 1)); err != nil {
		return Result{}, err
	}
	return result(self.Dict.ReadValue()), nil
}

func dictItem(bk *Bookkeeper, d *DictDef, variant string) (*Value, error) {
	switch variant {
	case "values":
		return d.ReadValue(), nil
	case "items":
		return bk.NewTuple(d.ReadKey(), d.ReadValue())
	}
	return d.ReadKey(), nil
}

// dictListing returns a fresh list of the keys, values or items.
func dictListing(variant string) builtinFunc {
	return func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs(variant, args, 0, 0); err != nil {
			return Result{}, err
		}
		elem, err := dictItem(bk, self.Dict, variant)
		if err != nil {
			return Result{}, err
		}
		v, err := bk.NewList(elem)
		return result(v), err
	}
}

func dictIter(variant string) builtinFunc {
	return func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs("iter"+variant, args, 0, 0); err != nil {
			return Result{}, err
		}
		return result(IteratorOf(self, variant)), nil
	}
}

func dictCopy(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("copy", args, 0, 0); err != nil {
		return Result{}, err
	}
	v, err := bk.NewDict([]*Value{self.Dict.ReadKey()}, []*Value{self.Dict.ReadValue()})
	if err != nil {
		return Result{}, err
	}
	if eq, hash := self.Dict.KeyFunctions(); eq != nil {
		if err := v.Dict.SetKeyFunctions(eq, hash); err != nil {
			return Result{}, err
		}
	}
	return result(v), nil
}

func dictUpdate(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("update", args, 1, 1); err != nil {
		return Result{}, err
	}
	src := args[0].Value
	if src.Kind != KindDict {
		return Result{}, bk.domainError("update() argument must be a dict, got %s", src)
	}
	return result(None()), self.Dict.Merge(src.Dict)
}

func dictPop(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("pop", args, 1, 2); err != nil {
		return Result{}, err
	}
	if err := self.Dict.GeneralizeKey(args[0].Value); err != nil {
		return Result{}, err
	}
	v := self.Dict.ReadValue()
	if len(args) == 1 {
		return result(v, ExcKey), nil
	}
	v, err := bk.Union(v, args[1].Value)
	return result(v), err
}

func dictClear(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
	if err := bk.wantArgs("clear", args, 0, 0); err != nil {
		return Result{}, err
	}
	return result(None()), nil
}

// ----------------------------------------------------------------------------
// String methods
// ----------------------------------------------------------------------------

// registerStringMethods installs the string methods for str or unicode.
// str builds the unconstrained result and konst a folded constant.
func registerStringMethods(prefix string, str func() *Value, konst func(string) *Value) {
	fold := func(name string, fn func(string) string) builtinFunc {
		return func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
			if err := bk.wantArgs(name, args, 0, 0); err != nil {
				return Result{}, err
			}
			if s, ok := self.ConstString(); ok {
				return result(konst(fn(s))), nil
			}
			return result(str()), nil
		}
	}
	builtinRegistry[prefix+".lower"] = fold("lower", strings.ToLower)
	builtinRegistry[prefix+".upper"] = fold("upper", strings.ToUpper)
	builtinRegistry[prefix+".strip"] = fold("strip", strings.TrimSpace)

	builtinRegistry[prefix+".join"] = func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs("join", args, 1, 1); err != nil {
			return Result{}, err
		}
		elem, err := bk.iterElement(args[0].Value)
		if err != nil {
			return Result{}, err
		}
		if !elem.IsBottom() && elem.IsString() != self.IsString() {
			return Result{}, bk.domainError("join() of %s items with %s", elem, self)
		}
		return result(str()), nil
	}
	builtinRegistry[prefix+".split"] = func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs("split", args, 0, 2); err != nil {
			return Result{}, err
		}
		v, err := bk.NewList(str())
		return result(v), err
	}
	builtinRegistry[prefix+".replace"] = func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs("replace", args, 2, 2); err != nil {
			return Result{}, err
		}
		return result(str()), nil
	}
	builtinRegistry[prefix+".find"] = func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
		if err := bk.wantArgs("find", args, 1, 3); err != nil {
			return Result{}, err
		}
		return result(Int()), nil
	}
	affix := func(name string, test func(s, x string) bool) builtinFunc {
		return func(bk *Bookkeeper, self *Value, args []Operand) (Result, error) {
			if err := bk.wantArgs(name, args, 1, 1); err != nil {
				return Result{}, err
			}
			s, ok1 := self.ConstString()
			x, ok2 := args[0].Value.ConstString()
			if ok1 && ok2 {
				return result(ConstBool(test(s, x))), nil
			}
			return result(Bool()), nil
		}
	}
	builtinRegistry[prefix+".startswith"] = affix("startswith", strings.HasPrefix)
	builtinRegistry[prefix+".endswith"] = affix("endswith", strings.HasSuffix)
}

// IsBuiltin reports whether name is a builtin function a flow graph may
// reference as a global.
func IsBuiltin(name string) bool {
	if strings.Contains(name, ".") {
		return false
	}
	_, ok := builtinRegistry[name]
	return ok
}
