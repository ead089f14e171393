package annotation

import (
	"fmt"
	"sort"
)

// Desc describes one prebuilt callable or frozen object. Descriptions are
// created once per host object by the Bookkeeper.
type Desc interface {
	ID() int
	Name() string

	callFamily() int
	attrFamily() int
}

type descBase struct {
	id      int
	callFam int
	attrFam int
}

func (d *descBase) ID() int         { return d.id }
func (d *descBase) callFamily() int { return d.callFam }
func (d *descBase) attrFamily() int { return d.attrFam }

// FunctionDesc describes a program function.
type FunctionDesc struct {
	descBase
	Func *HostFunc
}

func (d *FunctionDesc) Name() string { return d.Func.Name }

// ClassDesc describes a program class used as a callable or attribute
// holder.
type ClassDesc struct {
	descBase
	Class *ClassDef
}

func (d *ClassDesc) Name() string { return d.Class.Name }

// FrozenDesc describes a prebuilt frozen object.
type FrozenDesc struct {
	descBase
	Frozen *HostFrozen
}

func (d *FrozenDesc) Name() string { return d.Frozen.Name }

// MethodDesc is a function bound to instances of SelfClass. Origin is the
// class that defines the function.
type MethodDesc struct {
	descBase
	Func      *FunctionDesc
	Origin    *ClassDef
	SelfClass *ClassDef
	Method    string
}

func (d *MethodDesc) Name() string {
	return fmt.Sprintf("%s.%s", d.SelfClass.Name, d.Method)
}

func sortDescs(descs []Desc) []Desc {
	out := make([]Desc, 0, len(descs))
	seen := make(map[int]bool, len(descs))
	for _, d := range descs {
		if !seen[d.ID()] {
			seen[d.ID()] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func sameDescs(a, b []Desc) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID() != b[i].ID() {
			return false
		}
	}
	return true
}

func unionDescs(a, b []Desc) []Desc {
	return sortDescs(append(append([]Desc(nil), a...), b...))
}

func (bk *Bookkeeper) nextDescID() int {
	bk.descSeq++
	return bk.descSeq
}

func (bk *Bookkeeper) newDescBase() descBase {
	id := bk.nextDescID()
	return descBase{
		id:      id,
		callFam: bk.callFams.add(&CallFamily{}),
		attrFam: bk.attrFams.add(newAttrFamily()),
	}
}

// FunctionDescOf returns the description of fn, creating it on first use.
func (bk *Bookkeeper) FunctionDescOf(fn *HostFunc) *FunctionDesc {
	if d, ok := bk.descs[fn]; ok {
		return d.(*FunctionDesc)
	}
	d := &FunctionDesc{descBase: bk.newDescBase(), Func: fn}
	bk.registerDesc(fn, d)
	return d
}

// ClassDescOf returns the description of cls.
func (bk *Bookkeeper) ClassDescOf(cls *HostClass) *ClassDesc {
	if d, ok := bk.descs[cls]; ok {
		return d.(*ClassDesc)
	}
	cd := bk.ClassDefOf(cls)
	d := &ClassDesc{descBase: bk.newDescBase(), Class: cd}
	cd.desc = d
	bk.registerDesc(cls, d)
	return d
}

// FrozenDescOf returns the description of f.
func (bk *Bookkeeper) FrozenDescOf(f *HostFrozen) *FrozenDesc {
	if d, ok := bk.descs[f]; ok {
		return d.(*FrozenDesc)
	}
	d := &FrozenDesc{descBase: bk.newDescBase(), Frozen: f}
	bk.registerDesc(f, d)
	return d
}

type methodKey struct {
	fn        *HostFunc
	selfClass *ClassDef
	name      string
}

// methodDescOf returns the description of fn bound to selfClass.
func (bk *Bookkeeper) methodDescOf(fn *HostFunc, origin, selfClass *ClassDef, name string) *MethodDesc {
	key := methodKey{fn: fn, selfClass: selfClass, name: name}
	if d, ok := bk.methodDescs[key]; ok {
		return d
	}
	d := &MethodDesc{
		descBase:  bk.newDescBase(),
		Func:      bk.FunctionDescOf(fn),
		Origin:    origin,
		SelfClass: selfClass,
		Method:    name,
	}
	bk.methodDescs[key] = d
	bk.allDescs = append(bk.allDescs, d)
	return d
}

func (bk *Bookkeeper) registerDesc(host any, d Desc) {
	bk.descs[host] = d
	bk.allDescs = append(bk.allDescs, d)
	bk.count("desc")
}
