package annotation

import (
	"github.com/speakeasy-api/annotator/flowgraph"
)

// ListDef is the identity of a list allocation site. Every value built from
// the same site shares the ListDef, and merged ListDefs share one item cell.
type ListDef struct {
	bk   *Bookkeeper
	id   int
	item int
}

func (bk *Bookkeeper) newListDef(item *Value) *ListDef {
	d := &ListDef{bk: bk, id: bk.nextDefID()}
	d.item = bk.cells.add(newCell(d.id, item))
	bk.count("listdef")
	return d
}

// ID is the allocation serial number of the definition.
func (d *ListDef) ID() int { return d.id }

// Same reports whether d and o share their item cell.
func (d *ListDef) Same(o *ListDef) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.bk == o.bk && d.bk.cells.find(d.item) == o.bk.cells.find(o.item)
}

// Item returns the current item value without recording a reader.
func (d *ListDef) Item() *Value {
	return d.bk.cells.get(d.item).value
}

// ReadItem returns the item value and records the current position as a
// reader.
func (d *ListDef) ReadItem() *Value {
	return d.bk.readCell(d.item)
}

// Generalize widens the item value with v.
func (d *ListDef) Generalize(v *Value) error {
	return d.bk.generalizeCell(d.item, v)
}

// Mutate marks the list as modified in place.
func (d *ListDef) Mutate() error {
	c := d.bk.cells.get(d.item)
	if c.frozen {
		return &ListChangeError{Old: c.value, New: c.value}
	}
	c.mutated = true
	c.rangeStep = 0
	return nil
}

// Resize marks the list as changing length. Resizing implies mutation.
func (d *ListDef) Resize() error {
	if err := d.Mutate(); err != nil {
		return err
	}
	d.bk.cells.get(d.item).resized = true
	return nil
}

// Freeze forbids any further change to the list.
func (d *ListDef) Freeze() {
	d.bk.cells.get(d.item).frozen = true
}

// Merge makes d and o share one item cell.
func (d *ListDef) Merge(o *ListDef) error {
	return d.bk.mergeCells(d.item, o.item)
}

// Offspring returns a new list allocated at the current position whose item
// is the union of d's and the others' items. The parents are left untouched.
func (d *ListDef) Offspring(others ...*ListDef) (*ListDef, error) {
	nd := d.bk.listDefAt()
	for _, src := range append([]*ListDef{d}, others...) {
		if err := nd.Generalize(src.ReadItem()); err != nil {
			return nil, err
		}
	}
	return nd, nil
}

// Mutated reports whether the list was modified in place.
func (d *ListDef) Mutated() bool { return d.bk.cells.get(d.item).mutated }

// Resized reports whether the list changed length.
func (d *ListDef) Resized() bool { return d.bk.cells.get(d.item).resized }

// Frozen reports whether the list was frozen.
func (d *ListDef) Frozen() bool { return d.bk.cells.get(d.item).frozen }

// RangeStep returns the constant step of a list built by range and never
// mutated since.
func (d *ListDef) RangeStep() (int64, bool) {
	c := d.bk.cells.get(d.item)
	return c.rangeStep, c.rangeStep != 0
}

// Readers returns the positions that have read the item so far.
func (d *ListDef) Readers() []flowgraph.Position {
	return d.bk.cells.get(d.item).readers.items()
}
