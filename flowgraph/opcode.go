package flowgraph

// Opcode is the name of one flow-graph operation.
type Opcode int

// OpClass tells the driver which dispatch table evaluates an opcode.
type OpClass int

const (
	ClassUnary OpClass = iota
	ClassBinary
	ClassAlloc
	ClassCall
	ClassCopy
)

const (
	OpInvalid Opcode = iota

	// binary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpTrueDiv
	OpFloorDiv
	OpMod
	OpDivMod
	OpPow
	OpLshift
	OpRshift
	OpAnd
	OpOr
	OpXor
	OpLt
	OpLe
	OpEq
	OpNe
	OpGt
	OpGe
	OpCmp
	OpIs
	OpGetItem
	OpGetItemIdx
	OpSetItem
	OpDelItem
	OpContains
	OpCoerce
	OpInplaceAdd
	OpInplaceSub
	OpInplaceMul
	OpInplaceDiv
	OpInplaceTrueDiv
	OpInplaceFloorDiv
	OpInplaceMod
	OpInplacePow
	OpInplaceLshift
	OpInplaceRshift
	OpInplaceAnd
	OpInplaceOr
	OpInplaceXor
	OpAddOvf
	OpSubOvf
	OpMulOvf
	OpFloorDivOvf
	OpModOvf
	OpLshiftOvf

	// unary
	OpIsTrue
	OpLen
	OpIter
	OpNext
	OpGetAttr
	OpSetAttr
	OpDelAttr
	OpStr
	OpRepr
	OpHex
	OpOct
	OpType
	OpIsInstance
	OpIsSubtype
	OpHash
	OpID
	OpInt
	OpFloat
	OpOrd
	OpChr
	OpUnichr
	OpNeg
	OpPos
	OpAbs
	OpInvert
	OpNegOvf
	OpAbsOvf

	// allocation
	OpNewList
	OpNewDict
	OpNewTuple
	OpNewSlice

	// calls
	OpSimpleCall
	OpCallArgs

	OpSameAs
)

type opInfo struct {
	name  string
	class OpClass
	base  Opcode // plain form of an in-place or overflow-checked opcode
}

var opTable = map[Opcode]opInfo{
	OpAdd:             {"add", ClassBinary, OpInvalid},
	OpSub:             {"sub", ClassBinary, OpInvalid},
	OpMul:             {"mul", ClassBinary, OpInvalid},
	OpDiv:             {"div", ClassBinary, OpInvalid},
	OpTrueDiv:         {"truediv", ClassBinary, OpInvalid},
	OpFloorDiv:        {"floordiv", ClassBinary, OpInvalid},
	OpMod:             {"mod", ClassBinary, OpInvalid},
	OpDivMod:          {"divmod", ClassBinary, OpInvalid},
	OpPow:             {"pow", ClassBinary, OpInvalid},
	OpLshift:          {"lshift", ClassBinary, OpInvalid},
	OpRshift:          {"rshift", ClassBinary, OpInvalid},
	OpAnd:             {"and_", ClassBinary, OpInvalid},
	OpOr:              {"or_", ClassBinary, OpInvalid},
	OpXor:             {"xor", ClassBinary, OpInvalid},
	OpLt:              {"lt", ClassBinary, OpInvalid},
	OpLe:              {"le", ClassBinary, OpInvalid},
	OpEq:              {"eq", ClassBinary, OpInvalid},
	OpNe:              {"ne", ClassBinary, OpInvalid},
	OpGt:              {"gt", ClassBinary, OpInvalid},
	OpGe:              {"ge", ClassBinary, OpInvalid},
	OpCmp:             {"cmp", ClassBinary, OpInvalid},
	OpIs:              {"is_", ClassBinary, OpInvalid},
	OpGetItem:         {"getitem", ClassBinary, OpInvalid},
	OpGetItemIdx:      {"getitem_idx", ClassBinary, OpGetItem},
	OpSetItem:         {"setitem", ClassBinary, OpInvalid},
	OpDelItem:         {"delitem", ClassBinary, OpInvalid},
	OpContains:        {"contains", ClassBinary, OpInvalid},
	OpCoerce:          {"coerce", ClassBinary, OpInvalid},
	OpInplaceAdd:      {"inplace_add", ClassBinary, OpAdd},
	OpInplaceSub:      {"inplace_sub", ClassBinary, OpSub},
	OpInplaceMul:      {"inplace_mul", ClassBinary, OpMul},
	OpInplaceDiv:      {"inplace_div", ClassBinary, OpDiv},
	OpInplaceTrueDiv:  {"inplace_truediv", ClassBinary, OpTrueDiv},
	OpInplaceFloorDiv: {"inplace_floordiv", ClassBinary, OpFloorDiv},
	OpInplaceMod:      {"inplace_mod", ClassBinary, OpMod},
	OpInplacePow:      {"inplace_pow", ClassBinary, OpPow},
	OpInplaceLshift:   {"inplace_lshift", ClassBinary, OpLshift},
	OpInplaceRshift:   {"inplace_rshift", ClassBinary, OpRshift},
	OpInplaceAnd:      {"inplace_and", ClassBinary, OpAnd},
	OpInplaceOr:       {"inplace_or", ClassBinary, OpOr},
	OpInplaceXor:      {"inplace_xor", ClassBinary, OpXor},
	OpAddOvf:          {"add_ovf", ClassBinary, OpAdd},
	OpSubOvf:          {"sub_ovf", ClassBinary, OpSub},
	OpMulOvf:          {"mul_ovf", ClassBinary, OpMul},
	OpFloorDivOvf:     {"floordiv_ovf", ClassBinary, OpFloorDiv},
	OpModOvf:          {"mod_ovf", ClassBinary, OpMod},
	OpLshiftOvf:       {"lshift_ovf", ClassBinary, OpLshift},

	OpIsTrue:     {"bool", ClassUnary, OpInvalid},
	OpLen:        {"len", ClassUnary, OpInvalid},
	OpIter:       {"iter", ClassUnary, OpInvalid},
	OpNext:       {"next", ClassUnary, OpInvalid},
	OpGetAttr:    {"getattr", ClassUnary, OpInvalid},
	OpSetAttr:    {"setattr", ClassUnary, OpInvalid},
	OpDelAttr:    {"delattr", ClassUnary, OpInvalid},
	OpStr:        {"str", ClassUnary, OpInvalid},
	OpRepr:       {"repr", ClassUnary, OpInvalid},
	OpHex:        {"hex", ClassUnary, OpInvalid},
	OpOct:        {"oct", ClassUnary, OpInvalid},
	OpType:       {"type", ClassUnary, OpInvalid},
	OpIsInstance: {"isinstance", ClassUnary, OpInvalid},
	OpIsSubtype:  {"issubtype", ClassUnary, OpInvalid},
	OpHash:       {"hash", ClassUnary, OpInvalid},
	OpID:         {"id", ClassUnary, OpInvalid},
	OpInt:        {"int", ClassUnary, OpInvalid},
	OpFloat:      {"float", ClassUnary, OpInvalid},
	OpOrd:        {"ord", ClassUnary, OpInvalid},
	OpChr:        {"chr", ClassUnary, OpInvalid},
	OpUnichr:     {"unichr", ClassUnary, OpInvalid},
	OpNeg:        {"neg", ClassUnary, OpInvalid},
	OpPos:        {"pos", ClassUnary, OpInvalid},
	OpAbs:        {"abs", ClassUnary, OpInvalid},
	OpInvert:     {"invert", ClassUnary, OpInvalid},
	OpNegOvf:     {"neg_ovf", ClassUnary, OpNeg},
	OpAbsOvf:     {"abs_ovf", ClassUnary, OpAbs},

	OpNewList:  {"newlist", ClassAlloc, OpInvalid},
	OpNewDict:  {"newdict", ClassAlloc, OpInvalid},
	OpNewTuple: {"newtuple", ClassAlloc, OpInvalid},
	OpNewSlice: {"newslice", ClassAlloc, OpInvalid},

	OpSimpleCall: {"simple_call", ClassCall, OpInvalid},
	OpCallArgs:   {"call_args", ClassCall, OpInvalid},

	OpSameAs: {"same_as", ClassCopy, OpInvalid},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opTable))
	for op, info := range opTable {
		m[info.name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return "invalid"
}

// Class returns the dispatch class of op.
func (op Opcode) Class() OpClass {
	return opTable[op].class
}

// Base returns the plain opcode an in-place or overflow-checked opcode
// falls back to, or OpInvalid.
func (op Opcode) Base() Opcode {
	return opTable[op].base
}

// IsOverflowChecked reports whether op is one of the *_ovf variants.
func (op Opcode) IsOverflowChecked() bool {
	switch op {
	case OpAddOvf, OpSubOvf, OpMulOvf, OpFloorDivOvf, OpModOvf, OpLshiftOvf, OpNegOvf, OpAbsOvf:
		return true
	}
	return false
}

// IsComparison reports whether op is one of lt, le, eq, ne, gt, ge.
func (op Opcode) IsComparison() bool {
	switch op {
	case OpLt, OpLe, OpEq, OpNe, OpGt, OpGe:
		return true
	}
	return false
}

// ParseOpcode looks an opcode up by its flow-graph name.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

// Opcodes returns every opcode of the given class.
func Opcodes(class OpClass) []Opcode {
	var out []Opcode
	for op := OpAdd; op <= OpSameAs; op++ {
		if info, ok := opTable[op]; ok && info.class == class {
			out = append(out, op)
		}
	}
	return out
}
