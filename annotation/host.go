package annotation

// Host objects are the prebuilt constants a program may reference: its
// functions, classes and frozen objects, plus literal data.

// Unicode is a unicode string constant, distinct from a byte string.
type Unicode string

// HostType is a builtin type object such as "int" or "str".
type HostType string

const (
	TypeObject   HostType = "object"
	TypeNone     HostType = "NoneType"
	TypeBool     HostType = "bool"
	TypeInt      HostType = "int"
	TypeFloat    HostType = "float"
	TypeStr      HostType = "str"
	TypeUnicode  HostType = "unicode"
	TypeTuple    HostType = "tuple"
	TypeList     HostType = "list"
	TypeDict     HostType = "dict"
	TypeTypeType HostType = "type"
)

// base returns the builtin supertype of t.
func (t HostType) base() (HostType, bool) {
	switch t {
	case TypeObject:
		return "", false
	case TypeBool:
		return TypeInt, true
	}
	return TypeObject, true
}

// isSubtype reports whether t is sup or derives from it.
func (t HostType) isSubtype(sup HostType) bool {
	for {
		if t == sup {
			return true
		}
		b, ok := t.base()
		if !ok {
			return false
		}
		t = b
	}
}

// BuiltinName names an entry of the builtin function catalogue.
type BuiltinName string

// HostFunc is a function of the analysed program.
type HostFunc struct {
	Name     string
	Params   []string
	Defaults []any // values for the trailing parameters
}

// HostClass is a class of the analysed program. Methods map method names
// to functions; Attrs hold constant class attributes.
type HostClass struct {
	Name    string
	Base    *HostClass
	Attrs   map[string]any
	Methods map[string]*HostFunc
}

// HostFrozen is a prebuilt object whose attributes never change.
type HostFrozen struct {
	Name  string
	Attrs map[string]any
}

// HostInstance is a prebuilt instance of a program class.
type HostInstance struct {
	Class *HostClass
	Attrs map[string]any
}

// HostTuple is a tuple constant.
type HostTuple []any

// HostList is a prebuilt list.
type HostList struct {
	Items []any
}

// HostDict is a prebuilt dict with parallel keys and values.
type HostDict struct {
	Keys   []any
	Values []any
}

// HostOpaque is an object of an external runtime type.
type HostOpaque struct {
	TypeName string
	ID       int
}

// HostPointer is a low-level pointer constant.
type HostPointer struct {
	TypeName string
}
