package annotation

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders v in a compact, stable notation such as Int(nonneg),
// List[Str] or Instance(Dog)?; a trailing "?" marks a nullable value.
func (v *Value) String() string {
	return v.format(6)
}

func (v *Value) format(depth int) string {
	if v.IsBottom() {
		return "Bottom"
	}
	if depth <= 0 {
		return "..."
	}
	var b strings.Builder
	switch v.Kind {
	case KindNone:
		return "None"
	case KindInt:
		b.WriteString("Int")
		var flags []string
		if v.Unsigned {
			flags = append(flags, "unsigned")
		} else if v.Nonneg {
			flags = append(flags, "nonneg")
		}
		if v.Size != 0 {
			flags = append(flags, "size="+strconv.Itoa(v.Size))
		}
		if v.HasConst {
			flags = append(flags, "="+formatConst(v.Const))
		}
		if len(flags) > 0 {
			b.WriteString("(" + strings.Join(flags, ",") + ")")
		}
	case KindTuple:
		items := make([]string, len(v.Items))
		for i, it := range v.Items {
			items[i] = it.format(depth - 1)
		}
		b.WriteString("Tuple(" + strings.Join(items, ", ") + ")")
	case KindList:
		fmt.Fprintf(&b, "List#%d[%s]", v.List.ID(), v.List.Item().format(depth-1))
	case KindDict:
		fmt.Fprintf(&b, "Dict#%d[%s: %s]", v.Dict.ID(), v.Dict.Key().format(depth-1), v.Dict.Value().format(depth-1))
	case KindSlice:
		fmt.Fprintf(&b, "Slice(%s, %s, %s)", v.Start.format(depth-1), v.Stop.format(depth-1), v.Step.format(depth-1))
	case KindInstance:
		b.WriteString("Instance(" + v.Class.Name + ")")
	case KindIterator:
		b.WriteString("Iterator")
		if v.Variant != "" {
			b.WriteString("." + v.Variant)
		}
		b.WriteString("(" + v.Container.format(depth-1) + ")")
	case KindCallable:
		b.WriteString("Callable{" + strings.Join(descNames(v.Descs), ",") + "}")
	case KindBuiltin:
		b.WriteString("Builtin(" + v.Builtin + ")")
	case KindOpaque:
		b.WriteString("Opaque(" + v.TypeName + ")")
	case KindPointer:
		b.WriteString("Ptr(" + v.TypeName + ")")
	default:
		b.WriteString(v.Kind.String())
		if v.HasConst {
			b.WriteString("(=" + formatConst(v.Const) + ")")
		}
	}
	if v.Nullable && v.Kind != KindTop {
		b.WriteByte('?')
	}
	return b.String()
}

func formatConst(c any) string {
	switch x := c.(type) {
	case nil:
		return "None"
	case string:
		return strconv.Quote(x)
	case Unicode:
		return "u" + strconv.Quote(string(x))
	case bool:
		if x {
			return "True"
		}
		return "False"
	case HostType:
		return string(x)
	case *HostList:
		return fmt.Sprintf("list@%p", x)
	case *HostDict:
		return fmt.Sprintf("dict@%p", x)
	case *HostInstance:
		return fmt.Sprintf("%s@%p", x.Class.Name, x)
	}
	return fmt.Sprint(c)
}
