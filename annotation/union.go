package annotation

import (
	"github.com/speakeasy-api/annotator/flowgraph"
)

// Union returns the least upper bound of vals. Unioning containers merges
// their definitions.
func (bk *Bookkeeper) Union(vals ...*Value) (*Value, error) {
	result := Bottom()
	for _, v := range vals {
		var err error
		if result, err = bk.union(result, v); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (bk *Bookkeeper) union(a, b *Value) (*Value, error) {
	switch {
	case a.IsBottom():
		if b == nil {
			return Bottom(), nil
		}
		return b, nil
	case b.IsBottom():
		return a, nil
	case a.Equal(b):
		return a, nil
	case a.Kind == KindTop:
		return a, nil
	case b.Kind == KindTop:
		return b, nil
	}

	if a.Kind == KindNone || b.Kind == KindNone {
		other := a
		if a.Kind == KindNone {
			other = b
		}
		if !other.Kind.nullable() {
			return nil, &UnionError{Left: a, Right: b, Reason: other.Kind.String() + " cannot be None"}
		}
		if other.Nullable {
			return other, nil
		}
		c := other.clone()
		c.Nullable = true
		return c, nil
	}

	r, err := bk.unionKinds(a, b)
	if err != nil {
		return nil, err
	}
	if r.Kind == KindTop {
		return Top(), nil
	}
	r.Nullable = a.Nullable || b.Nullable
	if a.HasConst && b.HasConst && constEqual(a.Const, b.Const) && r.Kind == a.Kind {
		r.Const, r.HasConst = a.Const, true
	} else {
		r.Const, r.HasConst = nil, false
	}
	return r, nil
}

// unionKinds joins two non-bottom, non-None values. The result is always a
// fresh Value the caller may adjust.
func (bk *Bookkeeper) unionKinds(a, b *Value) (*Value, error) {
	ka, kb := a.Kind, b.Kind
	switch {
	case a.IsInt() && b.IsInt():
		if ka == KindBool && kb == KindBool {
			return Bool(), nil
		}
		return intUnion(a, b), nil
	case (a.IsInt() || ka == KindFloat) && (b.IsInt() || kb == KindFloat):
		return Float(), nil
	case a.IsString() && b.IsString():
		if ka == KindChar && kb == KindChar {
			return Char(), nil
		}
		return Str(), nil
	case (ka == KindChar && kb == KindUnicodeChar) || (ka == KindUnicodeChar && kb == KindChar):
		return UnicodeChar(), nil
	case a.IsUnicode() && b.IsUnicode():
		if ka == KindUnicodeChar && kb == KindUnicodeChar {
			return UnicodeChar(), nil
		}
		return UnicodeStr(), nil
	case ka != kb:
		return nil, &UnionError{Left: a, Right: b}
	}

	switch ka {
	case KindTuple:
		if len(a.Items) != len(b.Items) {
			if err := bk.imprecise("union of tuples of length %d and %d", len(a.Items), len(b.Items)); err != nil {
				return nil, err
			}
			return Top(), nil
		}
		items := make([]*Value, len(a.Items))
		for i := range a.Items {
			v, err := bk.union(a.Items[i], b.Items[i])
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return TupleOf(items...), nil

	case KindList:
		if err := a.List.Merge(b.List); err != nil {
			return nil, err
		}
		return ListOf(a.List), nil

	case KindDict:
		if err := a.Dict.Merge(b.Dict); err != nil {
			return nil, err
		}
		return DictOf(a.Dict), nil

	case KindSlice:
		start, err := bk.union(a.Start, b.Start)
		if err != nil {
			return nil, err
		}
		stop, err := bk.union(a.Stop, b.Stop)
		if err != nil {
			return nil, err
		}
		step, err := bk.union(a.Step, b.Step)
		if err != nil {
			return nil, err
		}
		return SliceOf(start, stop, step), nil

	case KindInstance:
		base := CommonBase(a.Class, b.Class)
		if base == nil {
			return nil, &UnionError{Left: a, Right: b, Reason: "no common base class"}
		}
		return InstanceOf(base, false), nil

	case KindIterator:
		if a.Variant != b.Variant {
			return nil, &UnionError{Left: a, Right: b, Reason: "different iterator variants"}
		}
		c, err := bk.union(a.Container, b.Container)
		if err != nil {
			return nil, err
		}
		return IteratorOf(c, a.Variant), nil

	case KindCallable:
		return CallableOf(unionDescs(a.Descs, b.Descs), false), nil

	case KindBuiltin:
		if a.Builtin != b.Builtin {
			return nil, &UnionError{Left: a, Right: b, Reason: "different builtins"}
		}
		if a.Self == nil || b.Self == nil {
			if a.Self != nil || b.Self != nil {
				return nil, &UnionError{Left: a, Right: b, Reason: "bound and unbound builtin"}
			}
			return BuiltinOf(a.Builtin, nil), nil
		}
		self, err := bk.union(a.Self, b.Self)
		if err != nil {
			return nil, err
		}
		return BuiltinOf(a.Builtin, self), nil

	case KindType:
		t := TypeValue()
		if len(a.TypeOf) > 0 && len(b.TypeOf) > 0 {
			t.TypeOf = unionVars(a.TypeOf, b.TypeOf)
		}
		return t, nil

	case KindOpaque, KindPointer:
		if a.TypeName != b.TypeName {
			return nil, &UnionError{Left: a, Right: b, Reason: "different runtime types"}
		}
		return &Value{Kind: ka, TypeName: a.TypeName}, nil
	}
	return nil, &UnionError{Left: a, Right: b}
}

// intUnion widens two integers: unsignedness is contagious, non-negativity
// requires both sides (or unsignedness), and the width is the larger one.
func intUnion(a, b *Value) *Value {
	unsigned := a.Unsigned || b.Unsigned
	return IntOf(unsigned || (a.Nonneg && b.Nonneg), unsigned, max(a.Size, b.Size))
}

func unionVars(a, b []flowgraph.VarID) []flowgraph.VarID {
	out := append([]flowgraph.VarID(nil), a...)
	for _, v := range b {
		found := false
		for _, o := range out {
			if o == v {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}
