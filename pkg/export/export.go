// Package export renders annotation results as JSON Schemas so downstream
// tooling can inspect the inferred value of every variable.
package export

import (
	"sort"
	"strconv"

	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/sequencedmap"
	"gopkg.in/yaml.v3"

	"github.com/speakeasy-api/annotator/annotation"
	"github.com/speakeasy-api/annotator/flowgraph"
)

// Exporter converts abstract values to schemas. Instance schemas list the
// attributes recorded by the bookkeeper; recursive lists, dicts and
// instances are cut off with an unconstrained schema.
type Exporter struct {
	bk *annotation.Bookkeeper

	lists     map[int]bool
	dicts     map[int]bool
	instances map[*annotation.ClassDef]bool
}

// New creates an Exporter. bk may be nil, in which case instances export
// without properties.
func New(bk *annotation.Bookkeeper) *Exporter {
	return &Exporter{
		bk:        bk,
		lists:     make(map[int]bool),
		dicts:     make(map[int]bool),
		instances: make(map[*annotation.ClassDef]bool),
	}
}

// Schemas exports every binding, keyed by "func.var" in sorted order.
// Unreachable (Bottom) variables are skipped.
func (e *Exporter) Schemas(bindings map[flowgraph.VarID]*annotation.Value) *sequencedmap.Map[string, *oas3.Schema] {
	ids := make([]flowgraph.VarID, 0, len(bindings))
	for id := range bindings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Func != ids[j].Func {
			return ids[i].Func < ids[j].Func
		}
		return ids[i].Name < ids[j].Name
	})

	out := sequencedmap.New[string, *oas3.Schema]()
	for _, id := range ids {
		if s := e.Schema(bindings[id]); s != nil {
			out.Set(id.String(), s)
		}
	}
	return out
}

// Returns exports the return value of every function, keyed by name.
func (e *Exporter) Returns(returns map[string]*annotation.Value) *sequencedmap.Map[string, *oas3.Schema] {
	names := make([]string, 0, len(returns))
	for n := range returns {
		names = append(names, n)
	}
	sort.Strings(names)

	out := sequencedmap.New[string, *oas3.Schema]()
	for _, n := range names {
		if s := e.Schema(returns[n]); s != nil {
			out.Set(n, s)
		}
	}
	return out
}

// Schema converts one value. Bottom converts to nil.
func (e *Exporter) Schema(v *annotation.Value) *oas3.Schema {
	if v.IsBottom() {
		return nil
	}
	s := e.schema(v)
	if v.Nullable && v.Kind != annotation.KindTop && v.Kind != annotation.KindNone {
		nullable := true
		s.Nullable = &nullable
	}
	return s
}

func (e *Exporter) schema(v *annotation.Value) *oas3.Schema {
	switch v.Kind {
	case annotation.KindNone:
		return typed(oas3.SchemaTypeNull)

	case annotation.KindBool:
		s := typed(oas3.SchemaTypeBoolean)
		if b, ok := v.Const.(bool); ok && v.HasConst {
			s.Enum = []*yaml.Node{scalar("!!bool", strconv.FormatBool(b))}
		}
		return s

	case annotation.KindInt:
		s := typed(oas3.SchemaTypeInteger)
		if u, ok := v.Const.(uint64); ok && v.HasConst {
			s.Enum = []*yaml.Node{scalar("!!int", strconv.FormatUint(u, 10))}
		} else if n, ok := v.ConstInt64(); ok {
			s.Enum = []*yaml.Node{scalar("!!int", strconv.FormatInt(n, 10))}
		}
		if v.Nonneg {
			zero := 0.0
			s.Minimum = &zero
		}
		if v.Unsigned {
			s.Format = strPtr("uint64")
		}
		return s

	case annotation.KindFloat:
		s := typed(oas3.SchemaTypeNumber)
		if f, ok := v.Const.(float64); ok && v.HasConst {
			s.Enum = []*yaml.Node{scalar("!!float", strconv.FormatFloat(f, 'g', -1, 64))}
		}
		return s

	case annotation.KindStr, annotation.KindChar, annotation.KindUnicodeStr, annotation.KindUnicodeChar:
		s := typed(oas3.SchemaTypeString)
		if str, ok := v.ConstString(); ok {
			s.Enum = []*yaml.Node{scalar("!!str", str)}
		}
		if v.Kind == annotation.KindChar || v.Kind == annotation.KindUnicodeChar {
			one := int64(1)
			s.MinLength, s.MaxLength = &one, &one
		}
		return s

	case annotation.KindTuple:
		s := typed(oas3.SchemaTypeArray)
		n := int64(len(v.Items))
		s.MinItems, s.MaxItems = &n, &n
		s.PrefixItems = make([]*oas3.JSONSchema[oas3.Referenceable], len(v.Items))
		for i, it := range v.Items {
			s.PrefixItems[i] = wrap(e.Schema(it))
		}
		return s

	case annotation.KindList:
		id := v.List.ID()
		if e.lists[id] {
			return typed(oas3.SchemaTypeArray)
		}
		e.lists[id] = true
		defer delete(e.lists, id)
		s := typed(oas3.SchemaTypeArray)
		item := e.Schema(v.List.Item())
		if item == nil {
			zero := int64(0)
			s.MaxItems = &zero
		}
		s.Items = wrap(item)
		return s

	case annotation.KindDict:
		id := v.Dict.ID()
		if e.dicts[id] {
			return typed(oas3.SchemaTypeObject)
		}
		e.dicts[id] = true
		defer delete(e.dicts, id)
		s := typed(oas3.SchemaTypeObject)
		s.AdditionalProperties = wrap(e.Schema(v.Dict.Value()))
		return s

	case annotation.KindSlice:
		return object(map[string]*oas3.Schema{
			"start": e.Schema(v.Start),
			"stop":  e.Schema(v.Stop),
			"step":  e.Schema(v.Step),
		})

	case annotation.KindInstance:
		return e.instance(v.Class)

	case annotation.KindIterator:
		return typed(oas3.SchemaTypeArray)
	}
	return &oas3.Schema{}
}

func (e *Exporter) instance(cd *annotation.ClassDef) *oas3.Schema {
	if e.bk == nil || e.instances[cd] {
		return typed(oas3.SchemaTypeObject)
	}
	e.instances[cd] = true
	defer delete(e.instances, cd)

	attrs := e.bk.InstanceAttrs(cd)
	props := make(map[string]*oas3.Schema)
	for _, name := range attrs.Names() {
		if s := e.Schema(attrs.Attr(name)); s != nil {
			props[name] = s
		}
	}
	return object(props)
}

func typed(t oas3.SchemaType) *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(t)}
}

// object builds an object schema with the given properties in sorted
// order; every property is required.
func object(props map[string]*oas3.Schema) *oas3.Schema {
	keys := make([]string, 0, len(props))
	for k, v := range props {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	propMap := sequencedmap.New[string, *oas3.JSONSchema[oas3.Referenceable]]()
	for _, k := range keys {
		propMap.Set(k, wrap(props[k]))
	}
	s := typed(oas3.SchemaTypeObject)
	s.Properties = propMap
	if len(keys) > 0 {
		s.Required = keys
	}
	return s
}

func wrap(s *oas3.Schema) *oas3.JSONSchema[oas3.Referenceable] {
	return oas3.NewJSONSchemaFromSchema[oas3.Referenceable](s)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func strPtr(s string) *string { return &s }
