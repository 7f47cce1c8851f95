package schema

import (
	"reflect"
	"strings"

	"fields-valid/pkg/validator/core"
)

// Resolved 字段类型解析结果
type Resolved struct {
	// Inner 去掉可选包装后的终端类型名，无法解析时为空
	Inner string
	// Optional 是否为可选字段（*T 或 Optional[T]）
	Optional bool
	Kind     core.Kind
	// Type 去掉指针后的反射类型，描述文件入口为 nil
	Type reflect.Type
}

const optionalWrapper = "Optional"

// Resolve 解析字段类型：优先使用反射类型，否则解析类型描述符
func Resolve(f *Field) Resolved {
	if f.RType != nil {
		return ResolveType(f.RType)
	}
	return ResolveDescriptor(f.Type)
}

// ResolveType 反射类型解析，指针视为可选包装
func ResolveType(t reflect.Type) Resolved {
	r := Resolved{}
	if t.Kind() == reflect.Ptr {
		r.Optional = true
		t = t.Elem()
	}
	r.Type = t
	r.Inner = terminalName(t.String())

	switch {
	case core.IsDecimalType(t):
		r.Kind = core.KindDecimal
	case t.Kind() == reflect.String:
		r.Kind = core.KindText
	case isNumericKind(t.Kind()):
		r.Kind = core.KindNumeric
	default:
		r.Kind = core.KindOther
	}
	return r
}

// ResolveDescriptor 解析类型描述符
//
//	"*string"                -> (string, optional, text)
//	"Optional[decimal.Decimal]" -> (Decimal, optional, decimal)
//	"pkg.List[int]"          -> (List, other)
//	""                       -> ("", numeric)
func ResolveDescriptor(desc string) Resolved {
	desc = strings.TrimSpace(desc)
	r := Resolved{}
	if inner, ok := unwrapOptional(desc); ok {
		r.Optional = true
		desc = inner
	}
	r.Inner = terminalName(desc)
	r.Kind = kindOf(r.Inner)
	return r
}

func unwrapOptional(desc string) (string, bool) {
	if inner, ok := strings.CutPrefix(desc, "*"); ok {
		return strings.TrimSpace(inner), true
	}
	name, args, ok := splitGeneric(desc)
	if !ok || terminalName(name) != optionalWrapper || len(args) != 1 {
		return "", false
	}
	return args[0], true
}

// splitGeneric "Name[A, B]" -> ("Name", ["A", "B"])，只切分顶层逗号
func splitGeneric(desc string) (string, []string, bool) {
	open := strings.IndexByte(desc, '[')
	if open <= 0 || !strings.HasSuffix(desc, "]") {
		return "", nil, false
	}
	body := desc[open+1 : len(desc)-1]
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, false
	}
	args = append(args, strings.TrimSpace(body[start:]))
	return desc[:open], args, true
}

// terminalName 取最后一段路径名，忽略泛型参数；格式不合法时返回空串
func terminalName(desc string) string {
	desc = strings.TrimSpace(strings.TrimLeft(desc, "*"))
	if i := strings.IndexByte(desc, '['); i >= 0 {
		desc = desc[:i]
	}
	if i := strings.LastIndexAny(desc, "./"); i >= 0 {
		desc = desc[i+1:]
	}
	for i := 0; i < len(desc); i++ {
		c := desc[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')) {
			return ""
		}
	}
	return desc
}

func kindOf(name string) core.Kind {
	switch name {
	case "string", "String", "str", "text":
		return core.KindText
	case "Decimal", "BigDecimal", "decimal":
		return core.KindDecimal
	case "", "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"float32", "float64", "byte", "rune", "number", "integer":
		return core.KindNumeric
	default:
		return core.KindOther
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
