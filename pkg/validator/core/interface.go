package core

// Record 被验证的记录实例，按字段名取值
// present 为 false 表示字段缺失（nil 指针、map 中不存在的键或 nil 值）
type Record interface {
	Lookup(field string) (value any, present bool)
}

// FieldsValidator 由代码生成器为记录类型生成的验证方法
// 返回 nil 表示验证通过，否则返回第一个不合法字段的 *ViolationError
type FieldsValidator interface {
	FieldsValidate() error
}

// DefaultMessage 规则组未指定消息时使用的默认消息
const DefaultMessage = "参数错误！"
