package core

// Kind 字段解析后的值类别，决定规则可用性和数值转换策略
type Kind uint8

const (
	// KindOther 其他类型，只支持 eq 引用兄弟字段
	KindOther Kind = iota
	// KindText 字符串
	KindText
	// KindNumeric 整数/浮点数，无法解析的类型也按数值处理
	KindNumeric
	// KindDecimal 十进制大数，range 比较前需要转换为 float64
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindDecimal:
		return "decimal"
	default:
		return "other"
	}
}
