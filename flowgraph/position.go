package flowgraph

import "fmt"

// Position identifies one operation inside a flow graph: the function, the
// block within it, and the index of the operation inside the block.
// It is a plain comparable struct so it can key maps directly.
type Position struct {
	Func  string
	Block int
	Index int
}

// String renders the position as func:block:index.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Func, p.Block, p.Index)
}

// BlockKey identifies a block without the operation index.
type BlockKey struct {
	Func  string
	Block int
}

// BlockKey returns the key of the block containing p.
func (p Position) BlockKey() BlockKey {
	return BlockKey{Func: p.Func, Block: p.Block}
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s:%d", k.Func, k.Block)
}

// VarID names a variable of a function. The zero VarID stands for "no
// variable", which is what constant operands carry.
type VarID struct {
	Func string
	Name string
}

// IsZero reports whether v refers to no variable.
func (v VarID) IsZero() bool {
	return v.Name == ""
}

func (v VarID) String() string {
	if v.IsZero() {
		return "<const>"
	}
	return v.Func + "." + v.Name
}
