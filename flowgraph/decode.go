package flowgraph

import (
	"fmt"
	"io"
	"os"

	"github.com/itchyny/go-yaml"
)

// Decode parses a YAML flow graph and validates it.
func Decode(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode flow graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow graph: %w", err)
	}
	return &g, nil
}

// Read decodes a flow graph from r.
func Read(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow graph: %w", err)
	}
	return Decode(data)
}

// Load decodes the flow graph stored in the file at path.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
