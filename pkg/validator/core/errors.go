package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRule 未知的规则关键字
	ErrUnknownRule = errors.New("unknown rule")

	// ErrInvalidLiteral 规则参数的字面量类型或取值不合法
	ErrInvalidLiteral = errors.New("invalid literal")

	// ErrStructural 注解结构错误（括号、参数个数、多余的 token 等）
	ErrStructural = errors.New("malformed annotation")

	// ErrNotStruct 记录类型不是结构体
	ErrNotStruct = errors.New("record must be a struct")

	// ErrTypeMismatch 规则不适用于字段类型
	ErrTypeMismatch = errors.New("rule does not apply to field type")

	// ErrUnknownField eq 引用的兄弟字段不存在
	ErrUnknownField = errors.New("unknown sibling field")

	// ErrPatternConflict 同名正则已用不同的表达式注册
	ErrPatternConflict = errors.New("regex name already registered with a different pattern")

	// ErrInvalidPattern 正则表达式无法编译
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// ErrNumericCoercion 字段值无法转换为 float64
	ErrNumericCoercion = errors.New("numeric coercion failed")

	// ErrNilRecord 待验证对象为 nil
	ErrNilRecord = errors.New("validation target cannot be nil")
)

// SchemaError 编译期错误，携带足够的上下文（记录、字段、规则、位置）定位注解问题
type SchemaError struct {
	Record string
	Field  string
	// Rule 出错的规则关键字，可能为空
	Rule string
	// Pos 注解源码中的字节偏移，-1 表示未知
	Pos int
	Err error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema")
	if e.Record != "" {
		b.WriteString(" ")
		b.WriteString(e.Record)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	}
	if e.Rule != "" {
		fmt.Fprintf(&b, " rule %q", e.Rule)
	}
	if e.Pos >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Pos)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NewSchemaError 创建不带记录/字段上下文的编译错误，由上层补全
func NewSchemaError(rule string, pos int, err error) *SchemaError {
	return &SchemaError{Rule: rule, Pos: pos, Err: err}
}

// Locate 补全记录和字段信息（已存在的不覆盖）
func (e *SchemaError) Locate(record, field string) *SchemaError {
	if e.Record == "" {
		e.Record = record
	}
	if e.Field == "" {
		e.Field = field
	}
	return e
}

// ViolationError 验证失败：第一个不合法的规则组
// Error() 直接返回作者定义的消息
type ViolationError struct {
	Record   string `json:"record"`
	Field    string `json:"field"`
	JSONName string `json:"json_name"`
	Message  string `json:"message"`
}

func (e *ViolationError) Error() string {
	return e.Message
}

// NewViolation 创建验证失败错误，生成代码同样使用该函数
func NewViolation(record, field, jsonName, message string) error {
	return &ViolationError{
		Record:   record,
		Field:    field,
		JSONName: jsonName,
		Message:  message,
	}
}

// CoercionError 调用期的数值转换失败，不是普通的验证失败
type CoercionError struct {
	Record string
	Field  string
	Value  any
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s.%s: cannot coerce %v (%T): %v", e.Record, e.Field, e.Value, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// AsViolation 提取验证失败错误
func AsViolation(err error) (*ViolationError, bool) {
	var ve *ViolationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
