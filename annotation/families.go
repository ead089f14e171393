package annotation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// CallShape is the argument pattern of one call site: positional arguments
// first, then keyword arguments, then an optional star-args tuple.
type CallShape struct {
	Positional int
	Keywords   []string
	Star       bool
}

// Arity is the number of argument values a call with this shape passes.
func (s CallShape) Arity() int {
	n := s.Positional + len(s.Keywords)
	if s.Star {
		n++
	}
	return n
}

func (s CallShape) withSelf() CallShape {
	s.Positional++
	return s
}

func (s CallShape) String() string {
	parts := []string{fmt.Sprintf("%d", s.Positional)}
	if len(s.Keywords) > 0 {
		parts = append(parts, "kw="+strings.Join(s.Keywords, ","))
	}
	if s.Star {
		parts = append(parts, "*")
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (s CallShape) equal(o CallShape) bool {
	if s.Positional != o.Positional || s.Star != o.Star || len(s.Keywords) != len(o.Keywords) {
		return false
	}
	for i := range s.Keywords {
		if s.Keywords[i] != o.Keywords[i] {
			return false
		}
	}
	return true
}

// CallFamily groups every callable that may be invoked from a common call
// site, with the shapes it was called with and the combined result.
type CallFamily struct {
	descs   []Desc
	shapes  []CallShape
	callers positionSet
	result  *Value
}

// Descs returns the members of the family, sorted by id.
func (f *CallFamily) Descs() []Desc { return append([]Desc(nil), f.descs...) }

// Shapes returns every call shape observed for the family.
func (f *CallFamily) Shapes() []CallShape { return append([]CallShape(nil), f.shapes...) }

// Result returns the union of all results of the family's calls.
func (f *CallFamily) Result() *Value {
	if f.result == nil {
		return Bottom()
	}
	return f.result
}

// Callers returns the positions that called into the family.
func (f *CallFamily) Callers() []flowgraph.Position { return f.callers.items() }

func (f *CallFamily) addShape(s CallShape) {
	for _, o := range f.shapes {
		if o.equal(s) {
			return
		}
	}
	f.shapes = append(f.shapes, s)
}

// CallFamilyOf returns the current family of d.
func (bk *Bookkeeper) CallFamilyOf(d Desc) *CallFamily {
	return bk.callFams.get(d.callFamily())
}

func (bk *Bookkeeper) mergeCallFamilies(a, b int) error {
	fa, fb := bk.callFams.get(a), bk.callFams.get(b)
	if fa == fb {
		return nil
	}
	result, err := bk.union(fa.Result(), fb.Result())
	if err != nil {
		return err
	}
	changedA, changedB := !result.Equal(fa.Result()), !result.Equal(fb.Result())
	callersA, callersB := fa.callers.items(), fb.callers.items()
	bk.callFams.union(a, b, func(pa, pb *CallFamily) *CallFamily {
		pa.descs = unionDescs(pa.descs, pb.descs)
		for _, s := range pb.shapes {
			pa.addShape(s)
		}
		pa.callers.addAll(&pb.callers)
		pa.result = result
		return pa
	})
	bk.count("callfamily.merge")
	if changedA {
		bk.reflow(callersA...)
	}
	if changedB {
		bk.reflow(callersB...)
	}
	return nil
}

// callDescs calls a Callable value. The descriptions of fn join one call
// family and every member of that family is specialized with the arguments
// of this call. When the family gains members, the sites that called it
// before are reflowed so each of their shapes reaches the new members.
func (bk *Bookkeeper) callDescs(fn *Value, shape CallShape, args []*Value) (*Value, error) {
	if len(fn.Descs) == 0 {
		return Bottom(), nil
	}

	type famState struct {
		members int
		callers []flowgraph.Position
	}
	var before []famState
	seen := make(map[int]bool)
	members := fn.Descs
	for _, d := range fn.Descs {
		root := bk.callFams.find(d.callFamily())
		if seen[root] {
			continue
		}
		seen[root] = true
		fam := bk.callFams.get(root)
		before = append(before, famState{members: len(fam.descs), callers: fam.callers.items()})
		members = unionDescs(members, fam.descs)
	}

	var classes, funcs int
	for _, d := range members {
		switch d.(type) {
		case *ClassDesc:
			classes++
		case *FunctionDesc, *MethodDesc:
			funcs++
		default:
			return nil, bk.domainError("%s object is not callable", d.Name())
		}
	}
	if classes > 0 && funcs > 0 {
		return nil, bk.domainError("call mixes classes and functions: %s", fn)
	}

	h := fn.Descs[0].callFamily()
	for _, d := range fn.Descs[1:] {
		if err := bk.mergeCallFamilies(h, d.callFamily()); err != nil {
			return nil, err
		}
	}
	fam := bk.callFams.get(h)
	fam.descs = unionDescs(fam.descs, fn.Descs)
	fam.addShape(shape)
	pos := bk.Position()
	fam.callers.add(pos)
	for _, b := range before {
		if len(fam.descs) == b.members {
			continue
		}
		for _, p := range b.callers {
			if p != pos {
				bk.reflow(p)
			}
		}
	}

	result := Bottom()
	for _, d := range fam.Descs() {
		var r *Value
		var err error
		switch d := d.(type) {
		case *FunctionDesc:
			r, err = bk.specialize(d, shape, args)
		case *MethodDesc:
			self := InstanceOf(d.SelfClass, false)
			r, err = bk.specialize(d.Func, shape.withSelf(), append([]*Value{self}, args...))
		case *ClassDesc:
			r, err = bk.instantiate(d, shape, args)
		}
		if err != nil {
			return nil, err
		}
		if result, err = bk.union(result, r); err != nil {
			return nil, err
		}
	}

	// the family may have been merged while specializing
	fam = bk.callFams.get(h)
	nr, err := bk.union(fam.Result(), result)
	if err != nil {
		return nil, err
	}
	if !nr.Equal(fam.Result()) {
		fam.result = nr
		bk.logger.Debugf("call family of %s widened to %s", fn.Descs[0].Name(), bk.summary(nr))
		for _, p := range fam.callers.order {
			if p != pos {
				bk.reflow(p)
			}
		}
	}
	return fam.Result(), nil
}

func (bk *Bookkeeper) specialize(d *FunctionDesc, shape CallShape, args []*Value) (*Value, error) {
	if bk.spec == nil {
		return nil, fmt.Errorf("%s: no specializer to call %s", bk.pos, d.Name())
	}
	bk.count("specialize")
	r, err := bk.spec.SpecializeCall(bk, d, shape, args)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return Bottom(), nil
	}
	return r, nil
}

func (bk *Bookkeeper) instantiate(d *ClassDesc, shape CallShape, args []*Value) (*Value, error) {
	inst := InstanceOf(d.Class, false)
	init, owner := d.Class.lookupMethod("__init__")
	if init == nil {
		if shape.Arity() > 0 {
			return nil, bk.domainError("%s() takes no arguments", d.Name())
		}
		return inst, nil
	}
	m := bk.methodDescOf(init, owner, d.Class, "__init__")
	if _, err := bk.specialize(m.Func, shape.withSelf(), append([]*Value{inst}, args...)); err != nil {
		return nil, err
	}
	return inst, nil
}

// BindArgs maps the argument values of a call with the given shape onto
// the parameters of d, filling defaults.
func (bk *Bookkeeper) BindArgs(d *FunctionDesc, shape CallShape, args []*Value) ([]*Value, error) {
	if len(args) != shape.Arity() {
		return nil, fmt.Errorf("call shape %s does not match %d arguments", shape, len(args))
	}
	params := d.Func.Params
	bound := make([]*Value, len(params))
	positional := append([]*Value(nil), args[:shape.Positional]...)
	if shape.Star {
		star := args[len(args)-1]
		if star.Kind != KindTuple {
			return nil, bk.domainError("%s: star argument must be a tuple, got %s", d.Name(), star)
		}
		positional = append(positional, star.Items...)
	}
	if len(positional) > len(params) {
		return nil, bk.domainError("%s() takes %d arguments, %d given", d.Name(), len(params), len(positional))
	}
	copy(bound, positional)
	for i, kw := range shape.Keywords {
		idx := -1
		for j, p := range params {
			if p == kw {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, bk.domainError("%s() got an unexpected keyword argument %q", d.Name(), kw)
		}
		if bound[idx] != nil {
			return nil, bk.domainError("%s() got multiple values for argument %q", d.Name(), kw)
		}
		bound[idx] = args[shape.Positional+i]
	}
	firstDefault := len(params) - len(d.Func.Defaults)
	for i := range bound {
		if bound[i] != nil {
			continue
		}
		if i < firstDefault {
			return nil, bk.domainError("%s() missing argument %q", d.Name(), params[i])
		}
		v, err := bk.ImmutableValue(d.Func.Defaults[i-firstDefault])
		if err != nil {
			return nil, err
		}
		bound[i] = v
	}
	return bound, nil
}

// AttrFamily holds the values stored under each attribute name by the
// members of the family, with the positions that read them.
type AttrFamily struct {
	descs []Desc
	attrs map[string]*attrSlot
}

type attrSlot struct {
	value   *Value
	readers positionSet
}

func newAttrFamily() *AttrFamily {
	return &AttrFamily{attrs: make(map[string]*attrSlot)}
}

// Names returns the attribute names seen by the family, sorted.
func (f *AttrFamily) Names() []string {
	names := make([]string, 0, len(f.attrs))
	for n := range f.attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Attr returns the current value of an attribute without recording a reader.
func (f *AttrFamily) Attr(name string) *Value {
	if s, ok := f.attrs[name]; ok {
		return s.value
	}
	return Bottom()
}

// Descs returns the descriptions joined into the family.
func (f *AttrFamily) Descs() []Desc { return append([]Desc(nil), f.descs...) }

func (f *AttrFamily) slot(name string) *attrSlot {
	s, ok := f.attrs[name]
	if !ok {
		s = &attrSlot{value: Bottom()}
		f.attrs[name] = s
	}
	return s
}

// AttrFamilyOf returns the current attribute family of d.
func (bk *Bookkeeper) AttrFamilyOf(d Desc) *AttrFamily {
	return bk.attrFams.get(d.attrFamily())
}

// InstanceAttrs returns the attribute family shared by cd's hierarchy.
func (bk *Bookkeeper) InstanceAttrs(cd *ClassDef) *AttrFamily {
	return bk.attrFams.get(cd.attrFam)
}

func (bk *Bookkeeper) readAttr(h int, name string) *Value {
	s := bk.attrFams.get(h).slot(name)
	s.readers.add(bk.Position())
	return s.value
}

func (bk *Bookkeeper) writeAttr(h int, name string, v *Value) error {
	s := bk.attrFams.get(h).slot(name)
	nv, err := bk.union(s.value, v)
	if err != nil {
		return err
	}
	if nv.Equal(s.value) {
		return nil
	}
	bk.logger.Debugf("attribute %s widened %s -> %s", name, bk.summary(s.value), bk.summary(nv))
	s.value = nv
	bk.reflow(s.readers.order...)
	return nil
}

func (bk *Bookkeeper) mergeAttrFamilies(a, b int) error {
	fa, fb := bk.attrFams.get(a), bk.attrFams.get(b)
	if fa == fb {
		return nil
	}
	type change struct {
		name  string
		value *Value
	}
	var changes []change
	var toReflow []flowgraph.Position
	for name, sb := range fb.attrs {
		sa, ok := fa.attrs[name]
		if !ok {
			continue
		}
		nv, err := bk.union(sa.value, sb.value)
		if err != nil {
			return err
		}
		if !nv.Equal(sa.value) {
			toReflow = append(toReflow, sa.readers.order...)
		}
		if !nv.Equal(sb.value) {
			toReflow = append(toReflow, sb.readers.order...)
		}
		changes = append(changes, change{name, nv})
	}
	bk.attrFams.union(a, b, func(pa, pb *AttrFamily) *AttrFamily {
		pa.descs = unionDescs(pa.descs, pb.descs)
		for name, sb := range pb.attrs {
			if sa, ok := pa.attrs[name]; ok {
				sa.readers.addAll(&sb.readers)
			} else {
				pa.attrs[name] = sb
			}
		}
		for _, c := range changes {
			pa.attrs[c.name].value = c.value
		}
		return pa
	})
	bk.count("attrfamily.merge")
	bk.reflow(toReflow...)
	return nil
}

// instanceGetAttr reads an attribute of an instance of cd. Methods become
// bound method descriptions for every class of cd's subtree overriding it.
func (bk *Bookkeeper) instanceGetAttr(cd *ClassDef, name string) (*Value, error) {
	if fn, owner := cd.lookupMethod(name); fn != nil || cd.hasMethod(name) {
		var descs []Desc
		if fn != nil {
			descs = append(descs, bk.methodDescOf(fn, owner, cd, name))
		}
		for _, sub := range cd.Subclasses {
			sub.walk(func(c *ClassDef) {
				if f, ok := c.Host.Methods[name]; ok {
					descs = append(descs, bk.methodDescOf(f, c, c, name))
				}
			})
		}
		if len(descs) == 0 {
			return nil, bk.domainError("%s has no attribute %q", cd.Name, name)
		}
		return CallableOf(descs, false), nil
	}

	result := bk.readAttr(cd.attrFam, name)
	var consts []any
	if v, ok := cd.lookupAttr(name); ok {
		consts = append(consts, v)
	}
	for _, sub := range cd.Subclasses {
		sub.walk(func(c *ClassDef) {
			if v, ok := c.Host.Attrs[name]; ok {
				consts = append(consts, v)
			}
		})
	}
	for _, c := range consts {
		v, err := bk.ImmutableValue(c)
		if err != nil {
			return nil, err
		}
		if result, err = bk.union(result, v); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (bk *Bookkeeper) instanceSetAttr(cd *ClassDef, name string, v *Value) error {
	if cd.hasMethod(name) {
		return bk.domainError("cannot assign to method %s.%s", cd.Name, name)
	}
	return bk.writeAttr(cd.attrFam, name, v)
}

// descGetAttr reads an attribute of a set of prebuilt objects. The
// attribute families of all descriptions are joined.
func (bk *Bookkeeper) descGetAttr(descs []Desc, name string) (*Value, error) {
	h := descs[0].attrFamily()
	for _, d := range descs[1:] {
		if err := bk.mergeAttrFamilies(h, d.attrFamily()); err != nil {
			return nil, err
		}
	}
	fam := bk.attrFams.get(h)
	fam.descs = unionDescs(fam.descs, descs)

	found, missing := 0, []string{}
	for _, d := range descs {
		v, ok, err := bk.descAttr(d, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, d.Name())
			continue
		}
		found++
		if err := bk.writeAttr(h, name, v); err != nil {
			return nil, err
		}
	}
	if found == 0 {
		return nil, bk.domainError("no attribute %q on %s", name, truncateList(descNames(descs), bk.opts.LogMaxItems))
	}
	if len(missing) > 0 {
		if err := bk.imprecise("attribute %q missing on %s", name, strings.Join(missing, ",")); err != nil {
			return nil, err
		}
	}
	return bk.readAttr(h, name), nil
}

func (bk *Bookkeeper) descAttr(d Desc, name string) (*Value, bool, error) {
	var raw any
	switch d := d.(type) {
	case *FrozenDesc:
		v, ok := d.Frozen.Attrs[name]
		if !ok {
			return nil, false, nil
		}
		raw = v
	case *ClassDesc:
		if fn, _ := d.Class.lookupMethod(name); fn != nil {
			return CallableOf([]Desc{bk.FunctionDescOf(fn)}, false), true, nil
		}
		v, ok := d.Class.lookupAttr(name)
		if !ok {
			return nil, false, nil
		}
		raw = v
	default:
		return nil, false, nil
	}
	v, err := bk.ImmutableValue(raw)
	return v, err == nil, err
}

func descNames(descs []Desc) []string {
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name()
	}
	return names
}
