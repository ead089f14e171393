package annotation

import (
	"github.com/speakeasy-api/annotator/flowgraph"
)

// DictDef is the identity of a dict allocation site, with separate key and
// value cells.
type DictDef struct {
	bk    *Bookkeeper
	id    int
	key   int
	value int
}

func (bk *Bookkeeper) newDictDef(key, value *Value) *DictDef {
	d := &DictDef{bk: bk, id: bk.nextDefID()}
	d.key = bk.cells.add(newCell(d.id, key))
	d.value = bk.cells.add(newCell(d.id, value))
	bk.count("dictdef")
	return d
}

// ID is the allocation serial number of the definition.
func (d *DictDef) ID() int { return d.id }

// Same reports whether d and o share their cells.
func (d *DictDef) Same(o *DictDef) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.bk == o.bk && d.bk.cells.find(d.key) == o.bk.cells.find(o.key)
}

// Key returns the current key value without recording a reader.
func (d *DictDef) Key() *Value { return d.bk.cells.get(d.key).value }

// Value returns the current value without recording a reader.
func (d *DictDef) Value() *Value { return d.bk.cells.get(d.value).value }

// ReadKey returns the key value and records the current position.
func (d *DictDef) ReadKey() *Value { return d.bk.readCell(d.key) }

// ReadValue returns the value and records the current position.
func (d *DictDef) ReadValue() *Value { return d.bk.readCell(d.value) }

// GeneralizeKey widens the key with v.
func (d *DictDef) GeneralizeKey(v *Value) error {
	return d.bk.generalizeCell(d.key, v)
}

// GeneralizeValue widens the value with v.
func (d *DictDef) GeneralizeValue(v *Value) error {
	return d.bk.generalizeCell(d.value, v)
}

// SetKeyFunctions records custom equality and hash callables for the keys.
// Setting different functions on the same dict is a hard incompatibility.
func (d *DictDef) SetKeyFunctions(eq, hash *Value) error {
	c := d.bk.cells.get(d.key)
	if c.eqFn != nil && !(c.eqFn.Equal(eq) && c.hashFn.Equal(hash)) {
		return &UnionError{Left: c.eqFn, Right: eq, Reason: "dicts use different key functions"}
	}
	c.eqFn, c.hashFn = eq, hash
	return nil
}

// KeyFunctions returns the custom key callables, or nils.
func (d *DictDef) KeyFunctions() (eq, hash *Value) {
	c := d.bk.cells.get(d.key)
	return c.eqFn, c.hashFn
}

// Merge makes d and o share their key and value cells.
func (d *DictDef) Merge(o *DictDef) error {
	if err := d.bk.mergeCells(d.key, o.key); err != nil {
		return err
	}
	return d.bk.mergeCells(d.value, o.value)
}

// Readers returns the positions that have read keys or values so far.
func (d *DictDef) Readers() []flowgraph.Position {
	var s positionSet
	s.addAll(&d.bk.cells.get(d.key).readers)
	s.addAll(&d.bk.cells.get(d.value).readers)
	return s.items()
}
