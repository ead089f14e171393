package annotation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// ImmutableValue returns the abstract value of a host constant. Equal
// scalars and tuples map to one canonical Value; prebuilt lists, dicts and
// instances are cached by identity so every reference shares one
// definition.
func (bk *Bookkeeper) ImmutableValue(x any) (*Value, error) {
	x = flowgraph.NormalizeConst(x)
	if items, ok := x.([]any); ok {
		x = HostTuple(items)
	}

	switch c := x.(type) {
	case *HostList:
		if v, ok := bk.identity[c]; ok {
			return v, nil
		}
		d := bk.newListDef(Bottom())
		v := ListOf(d)
		v.Const, v.HasConst = c, true
		bk.identity[c] = v
		for _, it := range c.Items {
			iv, err := bk.ImmutableValue(it)
			if err != nil {
				return nil, err
			}
			if err := d.Generalize(iv); err != nil {
				return nil, err
			}
		}
		return v, nil

	case *HostDict:
		if v, ok := bk.identity[c]; ok {
			return v, nil
		}
		if len(c.Keys) != len(c.Values) {
			return nil, bk.domainError("prebuilt dict has %d keys for %d values", len(c.Keys), len(c.Values))
		}
		d := bk.newDictDef(Bottom(), Bottom())
		v := DictOf(d)
		v.Const, v.HasConst = c, true
		bk.identity[c] = v
		for i := range c.Keys {
			kv, err := bk.ImmutableValue(c.Keys[i])
			if err != nil {
				return nil, err
			}
			vv, err := bk.ImmutableValue(c.Values[i])
			if err != nil {
				return nil, err
			}
			if err := d.GeneralizeKey(kv); err != nil {
				return nil, err
			}
			if err := d.GeneralizeValue(vv); err != nil {
				return nil, err
			}
		}
		return v, nil

	case *HostInstance:
		if v, ok := bk.identity[c]; ok {
			return v, nil
		}
		cd := bk.ClassDefOf(c.Class)
		v := InstanceOf(cd, false)
		v.Const, v.HasConst = c, true
		bk.identity[c] = v
		names := make([]string, 0, len(c.Attrs))
		for n := range c.Attrs {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			av, err := bk.ImmutableValue(c.Attrs[n])
			if err != nil {
				return nil, err
			}
			if err := bk.writeAttr(cd.attrFam, n, av); err != nil {
				return nil, err
			}
		}
		return v, nil

	case *HostFunc:
		return CallableOf([]Desc{bk.FunctionDescOf(c)}, false), nil
	case *HostClass:
		return CallableOf([]Desc{bk.ClassDescOf(c)}, false), nil
	case *HostFrozen:
		return CallableOf([]Desc{bk.FrozenDescOf(c)}, false), nil
	case HostOpaque:
		v := OpaqueOf(c.TypeName)
		v.Const, v.HasConst = c, true
		return v, nil
	case *HostPointer:
		v := PointerTo(c.TypeName)
		v.Const, v.HasConst = c, true
		return v, nil
	}

	node, ok := canonicalNode(x)
	if !ok || !bk.opts.EnableInterning {
		return bk.scalarValue(x)
	}
	key, err := canonicalKey(node)
	if err != nil {
		return nil, err
	}
	if v, ok := bk.interned[key]; ok {
		bk.count("intern.hit")
		return v, nil
	}
	v, err := bk.scalarValue(x)
	if err != nil {
		return nil, err
	}
	bk.interned[key] = v
	return v, nil
}

func (bk *Bookkeeper) scalarValue(x any) (*Value, error) {
	switch c := x.(type) {
	case nil:
		return None(), nil
	case bool:
		return ConstBool(c), nil
	case int64:
		return ConstInt(c), nil
	case uint64:
		return ConstUint(c), nil
	case float64:
		return ConstFloat(c), nil
	case string:
		return ConstStr(c), nil
	case Unicode:
		return ConstUnicode(c), nil
	case HostType:
		return ConstType(c), nil
	case BuiltinName:
		return BuiltinOf(string(c), nil), nil
	case HostTuple:
		items := make([]*Value, len(c))
		for i, it := range c {
			v, err := bk.ImmutableValue(it)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return TupleOf(items...), nil
	}
	return nil, bk.domainError("cannot represent constant of type %T", x)
}

// canonicalNode renders a scalar or tuple constant as a tagged YAML node.
// It reports false for constants that have identity.
func canonicalNode(x any) (*yaml.Node, bool) {
	scalar := func(tag, value string) (*yaml.Node, bool) {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}, true
	}
	switch c := x.(type) {
	case nil:
		return scalar("!!null", "null")
	case bool:
		return scalar("!!bool", strconv.FormatBool(c))
	case int64:
		return scalar("!!int", strconv.FormatInt(c, 10))
	case uint64:
		return scalar("!uint", strconv.FormatUint(c, 10))
	case float64:
		return scalar("!!float", strconv.FormatFloat(c, 'g', -1, 64))
	case string:
		return scalar("!!str", c)
	case Unicode:
		return scalar("!unicode", string(c))
	case HostType:
		return scalar("!type", string(c))
	case BuiltinName:
		return scalar("!builtin", string(c))
	case HostTuple:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!tuple"}
		for _, it := range c {
			it = flowgraph.NormalizeConst(it)
			if items, ok := it.([]any); ok {
				it = HostTuple(items)
			}
			n, ok := canonicalNode(it)
			if !ok {
				return nil, false
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, true
	}
	return nil, false
}

// canonicalKey hashes the YAML rendering of a canonical node.
func canonicalKey(n *yaml.Node) (string, error) {
	data, err := yaml.Marshal(n)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
