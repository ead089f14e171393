package annotation

import (
	"github.com/speakeasy-api/annotator/flowgraph"
)

// Kind classifies abstract values.
type Kind uint8

const (
	KindBottom Kind = iota
	KindTop
	KindNone
	KindBool
	KindInt
	KindFloat
	KindStr
	KindChar
	KindUnicodeStr
	KindUnicodeChar
	KindTuple
	KindList
	KindDict
	KindSlice
	KindInstance
	KindIterator
	KindCallable
	KindBuiltin
	KindType
	KindOpaque
	KindPointer
)

var kindNames = [...]string{
	KindBottom:      "Bottom",
	KindTop:         "Top",
	KindNone:        "None",
	KindBool:        "Bool",
	KindInt:         "Int",
	KindFloat:       "Float",
	KindStr:         "Str",
	KindChar:        "Char",
	KindUnicodeStr:  "UnicodeStr",
	KindUnicodeChar: "UnicodeChar",
	KindTuple:       "Tuple",
	KindList:        "List",
	KindDict:        "Dict",
	KindSlice:       "Slice",
	KindInstance:    "Instance",
	KindIterator:    "Iterator",
	KindCallable:    "Callable",
	KindBuiltin:     "Builtin",
	KindType:        "Type",
	KindOpaque:      "Opaque",
	KindPointer:     "Pointer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// parent is the kind a dispatch lookup falls back to when no handler is
// registered for k itself. Top has no parent.
func (k Kind) parent() (Kind, bool) {
	switch k {
	case KindTop:
		return KindTop, false
	case KindBool:
		return KindInt, true
	case KindChar:
		return KindStr, true
	case KindUnicodeChar:
		return KindUnicodeStr, true
	}
	return KindTop, true
}

// nullable reports whether values of kind k may also be None.
func (k Kind) nullable() bool {
	switch k {
	case KindStr, KindUnicodeStr, KindList, KindDict, KindInstance, KindCallable, KindOpaque, KindTop:
		return true
	}
	return false
}

// Value is an abstract value: the set of runtime values a program point may
// hold. Values are immutable once built; the only shared mutable state they
// reference are the container definitions, which are mutated through the
// Bookkeeper.
type Value struct {
	Kind Kind

	// Const is the single possible runtime value when HasConst is set.
	Const    any
	HasConst bool
	Nullable bool

	// Int and Bool
	Nonneg   bool
	Unsigned bool
	Size     int

	// Tuple
	Items []*Value

	// List / Dict
	List *ListDef
	Dict *DictDef

	// Slice
	Start, Stop, Step *Value

	// Instance
	Class *ClassDef

	// Iterator
	Container *Value
	Variant   string

	// Callable, sorted by Desc.ID
	Descs []Desc

	// Builtin function or bound builtin method
	Builtin string
	Self    *Value

	// Opaque runtime type or Pointer pointee type
	TypeName string

	// Type: the variables this type was obtained from via type(x)
	TypeOf []flowgraph.VarID
}

// Bottom is the impossible value.
func Bottom() *Value { return &Value{Kind: KindBottom} }

// Top is the generic value.
func Top() *Value { return &Value{Kind: KindTop, Nullable: true} }

// None is the null singleton.
func None() *Value { return &Value{Kind: KindNone, Const: nil, HasConst: true, Nullable: true} }

// Bool is the unconstrained boolean.
func Bool() *Value { return &Value{Kind: KindBool, Nonneg: true} }

// ConstBool is a boolean constant.
func ConstBool(b bool) *Value {
	return &Value{Kind: KindBool, Nonneg: true, Const: b, HasConst: true}
}

// Int is the signed machine integer.
func Int() *Value { return &Value{Kind: KindInt} }

// IntOf builds an integer with explicit sign and width.
func IntOf(nonneg, unsigned bool, size int) *Value {
	return &Value{Kind: KindInt, Nonneg: nonneg || unsigned, Unsigned: unsigned, Size: size}
}

// NonnegInt is a signed integer known to be >= 0.
func NonnegInt() *Value { return IntOf(true, false, 0) }

// ConstInt is a signed integer constant.
func ConstInt(n int64) *Value {
	return &Value{Kind: KindInt, Nonneg: n >= 0, Const: n, HasConst: true}
}

// ConstUint is an unsigned integer constant.
func ConstUint(n uint64) *Value {
	return &Value{Kind: KindInt, Nonneg: true, Unsigned: true, Const: n, HasConst: true}
}

// Float is the unconstrained float.
func Float() *Value { return &Value{Kind: KindFloat} }

// ConstFloat is a float constant.
func ConstFloat(f float64) *Value { return &Value{Kind: KindFloat, Const: f, HasConst: true} }

// Str is the unconstrained byte string.
func Str() *Value { return &Value{Kind: KindStr} }

// ConstStr is a string constant; one-byte strings become characters.
func ConstStr(s string) *Value {
	if len(s) == 1 {
		return &Value{Kind: KindChar, Const: s, HasConst: true}
	}
	return &Value{Kind: KindStr, Const: s, HasConst: true}
}

// Char is a one-byte string.
func Char() *Value { return &Value{Kind: KindChar} }

// UnicodeStr is the unconstrained unicode string.
func UnicodeStr() *Value { return &Value{Kind: KindUnicodeStr} }

// UnicodeChar is a single code point.
func UnicodeChar() *Value { return &Value{Kind: KindUnicodeChar} }

// ConstUnicode is a unicode constant; single code points become UnicodeChar.
func ConstUnicode(s Unicode) *Value {
	if len([]rune(string(s))) == 1 {
		return &Value{Kind: KindUnicodeChar, Const: s, HasConst: true}
	}
	return &Value{Kind: KindUnicodeStr, Const: s, HasConst: true}
}

// TupleOf is a fixed-arity tuple.
func TupleOf(items ...*Value) *Value {
	return &Value{Kind: KindTuple, Items: items}
}

// ListOf wraps a list definition.
func ListOf(def *ListDef) *Value { return &Value{Kind: KindList, List: def} }

// DictOf wraps a dict definition.
func DictOf(def *DictDef) *Value { return &Value{Kind: KindDict, Dict: def} }

// SliceOf is a slice object.
func SliceOf(start, stop, step *Value) *Value {
	return &Value{Kind: KindSlice, Start: start, Stop: stop, Step: step}
}

// InstanceOf is an instance of cd or of one of its subclasses.
func InstanceOf(cd *ClassDef, nullable bool) *Value {
	return &Value{Kind: KindInstance, Class: cd, Nullable: nullable}
}

// IteratorOf iterates over container; variant distinguishes dict iterators
// ("keys", "values", "items").
func IteratorOf(container *Value, variant string) *Value {
	return &Value{Kind: KindIterator, Container: container, Variant: variant}
}

// CallableOf is a set of prebuilt callables or frozen objects.
func CallableOf(descs []Desc, nullable bool) *Value {
	return &Value{Kind: KindCallable, Descs: sortDescs(descs), Nullable: nullable}
}

// BuiltinOf is a builtin function, or a builtin method bound to self.
func BuiltinOf(name string, self *Value) *Value {
	return &Value{Kind: KindBuiltin, Builtin: name, Self: self}
}

// TypeValue is an unknown type object.
func TypeValue() *Value { return &Value{Kind: KindType} }

// ConstType is a builtin type object such as int or str.
func ConstType(t HostType) *Value {
	return &Value{Kind: KindType, Const: t, HasConst: true}
}

// OpaqueOf is an object of an external runtime type.
func OpaqueOf(typeName string) *Value { return &Value{Kind: KindOpaque, TypeName: typeName} }

// PointerTo is a low-level pointer to typeName.
func PointerTo(typeName string) *Value { return &Value{Kind: KindPointer, TypeName: typeName} }

// IsBottom reports whether v is the impossible value.
func (v *Value) IsBottom() bool { return v == nil || v.Kind == KindBottom }

// IsConstant reports whether v has exactly one possible runtime value.
func (v *Value) IsConstant() bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case KindTuple:
		for _, it := range v.Items {
			if !it.IsConstant() {
				return false
			}
		}
		return true
	case KindCallable:
		return len(v.Descs) == 1 && !v.Nullable
	}
	return v.HasConst
}

// CanBeNone reports whether None is among the values v stands for.
func (v *Value) CanBeNone() bool {
	if v == nil {
		return false
	}
	return v.Kind == KindNone || v.Nullable
}

// NonNone returns v without the None possibility.
func (v *Value) NonNone() *Value {
	if v == nil || v.Kind == KindNone {
		return Bottom()
	}
	if !v.Nullable || v.Kind == KindTop {
		return v
	}
	c := v.clone()
	c.Nullable = false
	return c
}

// IsInt reports whether v is an integer (booleans included).
func (v *Value) IsInt() bool {
	return v != nil && (v.Kind == KindInt || v.Kind == KindBool)
}

// IsString reports whether v is a byte string or character.
func (v *Value) IsString() bool {
	return v != nil && (v.Kind == KindStr || v.Kind == KindChar)
}

// IsUnicode reports whether v is a unicode string or code point.
func (v *Value) IsUnicode() bool {
	return v != nil && (v.Kind == KindUnicodeStr || v.Kind == KindUnicodeChar)
}

// ConstInt64 returns the integer constant of v.
func (v *Value) ConstInt64() (int64, bool) {
	if v == nil || !v.HasConst {
		return 0, false
	}
	switch c := v.Const.(type) {
	case int64:
		return c, true
	case uint64:
		return int64(c), true
	case bool:
		if c {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ConstString returns the string constant of v.
func (v *Value) ConstString() (string, bool) {
	if v == nil || !v.HasConst {
		return "", false
	}
	switch c := v.Const.(type) {
	case string:
		return c, true
	case Unicode:
		return string(c), true
	}
	return "", false
}

func (v *Value) clone() *Value {
	c := *v
	return &c
}

func (v *Value) withoutConst() *Value {
	if !v.HasConst {
		return v
	}
	c := v.clone()
	c.Const = nil
	c.HasConst = false
	return c
}

// Equal reports whether v and o denote the same abstract value. Containers
// compare by identity of their definitions, not by content.
func (v *Value) Equal(o *Value) bool {
	if v == o {
		return true
	}
	if v == nil || o == nil {
		return v.IsBottom() && o.IsBottom()
	}
	if v.Kind != o.Kind || v.Nullable != o.Nullable || v.HasConst != o.HasConst {
		return false
	}
	if v.HasConst && !constEqual(v.Const, o.Const) {
		return false
	}
	switch v.Kind {
	case KindInt, KindBool:
		return v.Nonneg == o.Nonneg && v.Unsigned == o.Unsigned && v.Size == o.Size
	case KindTuple:
		return valuesEqual(v.Items, o.Items)
	case KindList:
		return v.List.Same(o.List)
	case KindDict:
		return v.Dict.Same(o.Dict)
	case KindSlice:
		return v.Start.Equal(o.Start) && v.Stop.Equal(o.Stop) && v.Step.Equal(o.Step)
	case KindInstance:
		return v.Class == o.Class
	case KindIterator:
		return v.Variant == o.Variant && v.Container.Equal(o.Container)
	case KindCallable:
		return sameDescs(v.Descs, o.Descs)
	case KindBuiltin:
		if v.Builtin != o.Builtin {
			return false
		}
		if v.Self == nil || o.Self == nil {
			return v.Self == nil && o.Self == nil
		}
		return v.Self.Equal(o.Self)
	case KindType:
		return sameVars(v.TypeOf, o.TypeOf)
	case KindOpaque, KindPointer:
		return v.TypeName == o.TypeName
	}
	return true
}

func valuesEqual(a, b []*Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func sameVars(a, b []flowgraph.VarID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// constEqual compares constant payloads. Only comparable payload types are
// ever stored as constants.
func constEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool, int64, uint64, float64, string, Unicode, HostType, BuiltinName:
		return a == b
	case *HostList:
		y, ok := b.(*HostList)
		return ok && x == y
	case *HostDict:
		y, ok := b.(*HostDict)
		return ok && x == y
	case *HostInstance:
		y, ok := b.(*HostInstance)
		return ok && x == y
	case HostOpaque:
		y, ok := b.(HostOpaque)
		return ok && x == y
	case *HostPointer:
		y, ok := b.(*HostPointer)
		return ok && x == y
	}
	return false
}
