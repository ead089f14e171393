package annotation

// ClassDef is the analysis-side view of a program class. Every ClassDef of
// one hierarchy shares a single attribute family.
type ClassDef struct {
	Name       string
	Base       *ClassDef
	Subclasses []*ClassDef
	Host       *HostClass

	attrFam int
	desc    *ClassDesc
}

// ClassDefOf returns the ClassDef of cls, creating it and its bases on
// first use.
func (bk *Bookkeeper) ClassDefOf(cls *HostClass) *ClassDef {
	if cd, ok := bk.classDefs[cls]; ok {
		return cd
	}
	cd := &ClassDef{Name: cls.Name, Host: cls}
	if cls.Base != nil {
		cd.Base = bk.ClassDefOf(cls.Base)
		cd.Base.Subclasses = append(cd.Base.Subclasses, cd)
		cd.attrFam = cd.Base.attrFam
	} else {
		cd.attrFam = bk.attrFams.add(newAttrFamily())
	}
	bk.classDefs[cls] = cd
	bk.count("classdef")
	return cd
}

// IsSubclassOf reports whether cd is o or derives from it.
func (cd *ClassDef) IsSubclassOf(o *ClassDef) bool {
	for c := cd; c != nil; c = c.Base {
		if c == o {
			return true
		}
	}
	return false
}

// Root returns the top of cd's hierarchy.
func (cd *ClassDef) Root() *ClassDef {
	c := cd
	for c.Base != nil {
		c = c.Base
	}
	return c
}

// CommonBase returns the nearest common ancestor of a and b, or nil.
func CommonBase(a, b *ClassDef) *ClassDef {
	ancestors := make(map[*ClassDef]bool)
	for c := a; c != nil; c = c.Base {
		ancestors[c] = true
	}
	for c := b; c != nil; c = c.Base {
		if ancestors[c] {
			return c
		}
	}
	return nil
}

// lookupMethod finds the nearest definition of a method in cd or its bases.
func (cd *ClassDef) lookupMethod(name string) (*HostFunc, *ClassDef) {
	for c := cd; c != nil; c = c.Base {
		if fn, ok := c.Host.Methods[name]; ok {
			return fn, c
		}
	}
	return nil, nil
}

// lookupAttr finds the nearest constant class attribute in cd or its bases.
func (cd *ClassDef) lookupAttr(name string) (any, bool) {
	for c := cd; c != nil; c = c.Base {
		if v, ok := c.Host.Attrs[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// walk visits cd and every class below it, parents first.
func (cd *ClassDef) walk(visit func(*ClassDef)) {
	visit(cd)
	for _, sub := range cd.Subclasses {
		sub.walk(visit)
	}
}

// hasMethod reports whether any class of the hierarchy defines name as a
// method.
func (cd *ClassDef) hasMethod(name string) bool {
	found := false
	cd.Root().walk(func(c *ClassDef) {
		if _, ok := c.Host.Methods[name]; ok {
			found = true
		}
	})
	return found
}

func (cd *ClassDef) String() string { return cd.Name }
