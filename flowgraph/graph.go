package flowgraph

import (
	"fmt"
	"sort"
)

// ReturnBlock is the link target that leaves the function. The first link
// argument is the returned value.
const ReturnBlock = -1

// Graph is a whole program: its functions plus the classes and prebuilt
// objects that operations may reference as globals.
type Graph struct {
	Functions []*Function `yaml:"functions"`
	Classes   []*Class    `yaml:"classes,omitempty"`
	Frozen    []*Frozen   `yaml:"frozen,omitempty"`
}

// Function is the flow graph of one function. Blocks[0] is the entry block
// and its inputs are the parameters.
type Function struct {
	Name     string   `yaml:"name"`
	Params   []string `yaml:"params"`
	Defaults []any    `yaml:"defaults,omitempty"`
	Blocks   []*Block `yaml:"blocks"`
}

// Block is a straight-line sequence of operations followed by exits.
// When Switch names a variable the exits are chosen by its truth value
// (Case "true"/"false"); exception exits carry the exception name as Case.
type Block struct {
	ID     int          `yaml:"id"`
	Inputs []string     `yaml:"inputs,omitempty"`
	Ops    []*Operation `yaml:"ops,omitempty"`
	Switch string       `yaml:"switch,omitempty"`
	Exits  []*Link      `yaml:"exits,omitempty"`
}

// Operation is one SSA-style operation.
type Operation struct {
	Name     string   `yaml:"op"`
	Args     []Arg    `yaml:"args,omitempty"`
	Result   string   `yaml:"result"`
	Keywords []string `yaml:"keywords,omitempty"`
	Star     bool     `yaml:"star,omitempty"`

	Op Opcode `yaml:"-"`
}

// Arg is an operation or link argument: a variable, a constant or a
// reference to a global (function, class, frozen object, builtin).
type Arg struct {
	Var    string `yaml:"var,omitempty"`
	Const  any    `yaml:"const,omitempty"`
	Global string `yaml:"global,omitempty"`
	// Null marks an explicit None constant, which Const cannot express.
	Null bool `yaml:"null,omitempty"`
}

// Link is an exit of a block.
type Link struct {
	Target int    `yaml:"target"`
	Args   []Arg  `yaml:"args,omitempty"`
	Case   string `yaml:"case,omitempty"`
}

// Class describes a class available to the program.
type Class struct {
	Name    string            `yaml:"name"`
	Base    string            `yaml:"base,omitempty"`
	Attrs   map[string]any    `yaml:"attrs,omitempty"`
	Methods map[string]string `yaml:"methods,omitempty"`
}

// Frozen describes a prebuilt constant object with read-only attributes.
type Frozen struct {
	Name  string         `yaml:"name"`
	Attrs map[string]any `yaml:"attrs,omitempty"`
}

// Function returns the function called name.
func (g *Graph) Function(name string) (*Function, bool) {
	for _, fn := range g.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// Block returns the block with the given id.
func (f *Function) Block(id int) (*Block, bool) {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// Var returns the VarID of a variable of f.
func (f *Function) Var(name string) VarID {
	return VarID{Func: f.Name, Name: name}
}

// IsConst reports whether the argument is a constant.
func (a Arg) IsConst() bool {
	return a.Var == "" && a.Global == ""
}

// Value returns the constant of a constant argument, normalised so that
// integers are int64, unsigned integers are uint64 and floats are float64.
func (a Arg) Value() any {
	if a.Null {
		return nil
	}
	return NormalizeConst(a.Const)
}

// NormalizeConst converts decoded scalar constants to the canonical Go types.
func NormalizeConst(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		// YAML decoders hand out uint64 for plain positive literals.
		if x <= 1<<63-1 {
			return int64(x)
		}
		return x
	case float32:
		return float64(x)
	}
	return v
}

// Validate resolves opcode names and checks block references.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.Functions))
	for _, fn := range g.Functions {
		if fn.Name == "" {
			return fmt.Errorf("function without a name")
		}
		if seen[fn.Name] {
			return fmt.Errorf("duplicate function %q", fn.Name)
		}
		seen[fn.Name] = true
		if err := fn.validate(); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
	}
	classes := make(map[string]*Class, len(g.Classes))
	for _, c := range g.Classes {
		if _, dup := classes[c.Name]; dup {
			return fmt.Errorf("duplicate class %q", c.Name)
		}
		classes[c.Name] = c
	}
	for _, c := range g.Classes {
		if c.Base != "" {
			if _, ok := classes[c.Base]; !ok {
				return fmt.Errorf("class %s: unknown base %q", c.Name, c.Base)
			}
		}
		for method, fn := range c.Methods {
			if !seen[fn] {
				return fmt.Errorf("class %s: method %s refers to unknown function %q", c.Name, method, fn)
			}
		}
	}
	return nil
}

func (f *Function) validate() error {
	if len(f.Blocks) == 0 {
		return fmt.Errorf("no blocks")
	}
	ids := make(map[int]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		if _, dup := ids[b.ID]; dup {
			return fmt.Errorf("duplicate block %d", b.ID)
		}
		ids[b.ID] = b
	}
	entry := f.Blocks[0]
	if len(entry.Inputs) == 0 && len(f.Params) > 0 {
		entry.Inputs = append([]string(nil), f.Params...)
	}
	if len(entry.Inputs) != len(f.Params) {
		return fmt.Errorf("entry block takes %d inputs for %d params", len(entry.Inputs), len(f.Params))
	}
	for _, b := range f.Blocks {
		for i, op := range b.Ops {
			code, ok := ParseOpcode(op.Name)
			if !ok {
				return fmt.Errorf("block %d op %d: unknown operation %q", b.ID, i, op.Name)
			}
			op.Op = code
		}
		for _, l := range b.Exits {
			if l.Target == ReturnBlock {
				if len(l.Args) != 1 {
					return fmt.Errorf("block %d: return link needs exactly one argument", b.ID)
				}
				continue
			}
			target, ok := ids[l.Target]
			if !ok {
				return fmt.Errorf("block %d: link to unknown block %d", b.ID, l.Target)
			}
			if len(l.Args) != len(target.Inputs) {
				return fmt.Errorf("block %d: link to block %d passes %d args for %d inputs",
					b.ID, l.Target, len(l.Args), len(target.Inputs))
			}
		}
	}
	return nil
}

// Globals lists every global name the graph defines, sorted.
func (g *Graph) Globals() []string {
	var names []string
	for _, fn := range g.Functions {
		names = append(names, fn.Name)
	}
	for _, c := range g.Classes {
		names = append(names, c.Name)
	}
	for _, f := range g.Frozen {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
