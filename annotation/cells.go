package annotation

import (
	"github.com/speakeasy-api/annotator/flowgraph"
)

// unionFind is an arena of payloads addressed by integer handles. Only the
// root of each set holds a live payload.
type unionFind[P any] struct {
	parent  []int
	payload []P
}

func (u *unionFind[P]) add(p P) int {
	h := len(u.parent)
	u.parent = append(u.parent, h)
	u.payload = append(u.payload, p)
	return h
}

func (u *unionFind[P]) find(h int) int {
	root := h
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[h] != root {
		next := u.parent[h]
		u.parent[h] = root
		h = next
	}
	return root
}

func (u *unionFind[P]) get(h int) P {
	return u.payload[u.find(h)]
}

// union links the sets of a and b; the payload of a's root survives and is
// replaced by merge(a, b). It reports false when a and b were already joined.
func (u *unionFind[P]) union(a, b int, merge func(pa, pb P) P) bool {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return false
	}
	merged := merge(u.payload[ra], u.payload[rb])
	var zero P
	u.parent[rb] = ra
	u.payload[rb] = zero
	u.payload[ra] = merged
	return true
}

func (u *unionFind[P]) len() int { return len(u.parent) }

// positionSet is an insertion-ordered set of positions.
type positionSet struct {
	order []flowgraph.Position
	has   map[flowgraph.Position]struct{}
}

func (s *positionSet) add(p flowgraph.Position) bool {
	if s.has == nil {
		s.has = make(map[flowgraph.Position]struct{})
	}
	if _, ok := s.has[p]; ok {
		return false
	}
	s.has[p] = struct{}{}
	s.order = append(s.order, p)
	return true
}

func (s *positionSet) addAll(o *positionSet) {
	for _, p := range o.order {
		s.add(p)
	}
}

func (s *positionSet) contains(p flowgraph.Position) bool {
	_, ok := s.has[p]
	return ok
}

func (s *positionSet) items() []flowgraph.Position {
	return append([]flowgraph.Position(nil), s.order...)
}

func (s *positionSet) len() int { return len(s.order) }

func (s *positionSet) reset() {
	s.order = s.order[:0]
	s.has = nil
}

// cell is the shared payload behind one or more merged container
// definitions: the element value plus everyone who read it.
type cell struct {
	value   *Value
	owners  []int
	readers positionSet

	// list flags
	mutated   bool
	resized   bool
	frozen    bool
	rangeStep int64 // 0 when the list is not a range or the step is unknown
	rangeInit bool

	// dict key functions
	eqFn, hashFn *Value
}

func newCell(owner int, value *Value) *cell {
	return &cell{value: value, owners: []int{owner}}
}

// readCell returns the current value and records the current position as a
// reader of the cell.
func (bk *Bookkeeper) readCell(h int) *Value {
	c := bk.cells.get(h)
	c.readers.add(bk.Position())
	return c.value
}

// generalizeCell widens the cell of h with v, reflowing every reader when
// the value changes.
func (bk *Bookkeeper) generalizeCell(h int, v *Value) error {
	c := bk.cells.get(h)
	nv, err := bk.union(c.value, v)
	if err != nil {
		return err
	}
	if nv.Equal(c.value) {
		return nil
	}
	if c.frozen {
		return &ListChangeError{Old: c.value, New: nv}
	}
	bk.logger.Debugf("cell %d widened %s -> %s", h, bk.summary(c.value), bk.summary(nv))
	c.value = nv
	bk.reflow(c.readers.order...)
	return nil
}

// mergeCells joins the cells of a and b. Readers of either side whose value
// changed are reflowed. Merging a cell with itself is a no-op.
func (bk *Bookkeeper) mergeCells(a, b int) error {
	ca, cb := bk.cells.get(a), bk.cells.get(b)
	if ca == cb {
		return nil
	}
	if !sameKeyFunctions(ca, cb) {
		return &UnionError{Left: ca.eqFn, Right: cb.eqFn, Reason: "dicts use different key functions"}
	}
	nv, err := bk.union(ca.value, cb.value)
	if err != nil {
		return err
	}
	changedA, changedB := !nv.Equal(ca.value), !nv.Equal(cb.value)
	if (ca.frozen && (changedA || cb.mutated || cb.resized)) || (cb.frozen && (changedB || ca.mutated || ca.resized)) {
		return &ListChangeError{Old: ca.value, New: nv}
	}
	readersA, readersB := ca.readers.items(), cb.readers.items()

	bk.cells.union(a, b, func(pa, pb *cell) *cell {
		pa.value = nv
		pa.owners = append(pa.owners, pb.owners...)
		pa.readers.addAll(&pb.readers)
		pa.mutated = pa.mutated || pb.mutated
		pa.resized = pa.resized || pb.resized
		pa.frozen = pa.frozen || pb.frozen
		if pa.rangeStep != pb.rangeStep {
			pa.rangeStep = 0
		}
		pa.rangeInit = pa.rangeInit || pb.rangeInit
		if pa.eqFn == nil {
			pa.eqFn, pa.hashFn = pb.eqFn, pb.hashFn
		}
		return pa
	})
	bk.count("merge")
	bk.logger.Debugf("merged cells %d and %d into %s", a, b, bk.summary(nv))
	if changedA {
		bk.reflow(readersA...)
	}
	if changedB {
		bk.reflow(readersB...)
	}
	return nil
}

func sameKeyFunctions(a, b *cell) bool {
	if a.eqFn == nil || b.eqFn == nil {
		return a.eqFn == nil && b.eqFn == nil
	}
	return a.eqFn.Equal(b.eqFn) && a.hashFn.Equal(b.hashFn)
}
