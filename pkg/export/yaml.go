package export

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/sequencedmap"
	"gopkg.in/yaml.v3"
)

// OpenAPIVersion is the version written in exported documents.
const OpenAPIVersion = "3.1.0"

// Document describes the OpenAPI document WriteYAML produces.
type Document struct {
	Title   string
	Version string
	Schemas *sequencedmap.Map[string, *oas3.Schema]
}

// WriteYAML writes d as an OpenAPI document whose components hold the
// schemas.
func WriteYAML(w io.Writer, d Document) error {
	title := d.Title
	if title == "" {
		title = "annotations"
	}
	version := d.Version
	if version == "" {
		version = "0.0.0"
	}

	schemas := mapping()
	if d.Schemas != nil {
		for name, s := range d.Schemas.All() {
			schemas.Content = append(schemas.Content, str(name), SchemaNode(s))
		}
	}
	info := mapping()
	info.Content = append(info.Content, str("title"), str(title), str("version"), str(version))
	components := mapping()
	components.Content = append(components.Content, str("schemas"), schemas)

	root := mapping()
	root.Content = append(root.Content,
		str("openapi"), str(OpenAPIVersion),
		str("info"), info,
		str("paths"), mapping(),
		str("components"), components,
	)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return fmt.Errorf("failed to encode schemas: %w", err)
	}
	return enc.Close()
}

// SchemaNode renders the fields of s that the exporter sets as a YAML
// mapping, in a fixed key order.
func SchemaNode(s *oas3.Schema) *yaml.Node {
	m := mapping()
	if s == nil {
		m.Content = append(m.Content, str("not"), mapping())
		return m
	}
	add := func(key string, v *yaml.Node) {
		m.Content = append(m.Content, str(key), v)
	}

	if types := s.GetType(); len(types) == 1 {
		add("type", str(string(types[0])))
	} else if len(types) > 1 {
		seq := sequence()
		for _, t := range types {
			seq.Content = append(seq.Content, str(string(t)))
		}
		add("type", seq)
	}
	if s.Nullable != nil && *s.Nullable {
		add("nullable", boolean(true))
	}
	if s.Format != nil {
		add("format", str(*s.Format))
	}
	if len(s.Enum) > 0 {
		seq := sequence()
		seq.Content = append(seq.Content, s.Enum...)
		add("enum", seq)
	}
	if s.Minimum != nil {
		add("minimum", number(*s.Minimum))
	}
	if s.MinLength != nil {
		add("minLength", integer(*s.MinLength))
	}
	if s.MaxLength != nil {
		add("maxLength", integer(*s.MaxLength))
	}
	if s.MinItems != nil {
		add("minItems", integer(*s.MinItems))
	}
	if s.MaxItems != nil {
		add("maxItems", integer(*s.MaxItems))
	}
	if len(s.PrefixItems) > 0 {
		seq := sequence()
		for _, item := range s.PrefixItems {
			seq.Content = append(seq.Content, SchemaNode(item.Left))
		}
		add("prefixItems", seq)
	}
	if s.Items != nil {
		add("items", SchemaNode(s.Items.Left))
	}
	if s.Properties != nil && s.Properties.Len() > 0 {
		props := mapping()
		for name, p := range s.Properties.All() {
			props.Content = append(props.Content, str(name), SchemaNode(p.Left))
		}
		add("properties", props)
	}
	if len(s.Required) > 0 {
		seq := sequence()
		for _, r := range s.Required {
			seq.Content = append(seq.Content, str(r))
		}
		add("required", seq)
	}
	if s.AdditionalProperties != nil {
		if s.AdditionalProperties.Right != nil {
			add("additionalProperties", boolean(*s.AdditionalProperties.Right))
		} else {
			add("additionalProperties", SchemaNode(s.AdditionalProperties.Left))
		}
	}
	return m
}

func mapping() *yaml.Node  { return &yaml.Node{Kind: yaml.MappingNode} }
func sequence() *yaml.Node { return &yaml.Node{Kind: yaml.SequenceNode} }

func str(s string) *yaml.Node { return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s} }

func boolean(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func integer(n int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(n, 10)}
}

func number(f float64) *yaml.Node {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return integer(int64(f))
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'g', -1, 64)}
}
