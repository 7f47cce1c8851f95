package validator

import (
	"errors"
	"fmt"

	"fields-valid/pkg/validator/core"
)

// FieldError 对外返回的字段错误，用于 API 响应
type FieldError struct {
	// FieldName 结构体字段名
	FieldName string `json:"field_name,omitempty"`
	// JsonName JSON 字段名
	JsonName string `json:"json_name"`
	// Message 规则组定义的错误消息
	Message string `json:"message"`
}

// String 返回友好的错误信息
func (fe *FieldError) String() string {
	return fmt.Sprintf("field '%s': %s", fe.JsonName, fe.Message)
}

// Message 提取验证失败的消息，err 不是验证失败时返回 false
func Message(err error) (string, bool) {
	if ve, ok := core.AsViolation(err); ok {
		return ve.Message, true
	}
	return "", false
}

// ToFieldError 将验证失败转换为 FieldError，err 不是验证失败时返回 nil
func ToFieldError(err error) *FieldError {
	ve, ok := core.AsViolation(err)
	if !ok {
		return nil
	}
	jsonName := ve.JSONName
	if jsonName == "" {
		jsonName = ve.Field
	}
	return &FieldError{
		FieldName: ve.Field,
		JsonName:  jsonName,
		Message:   ve.Message,
	}
}

// IsViolation 是否为验证失败（数据问题），而不是注解或调用问题
func IsViolation(err error) bool {
	_, ok := core.AsViolation(err)
	return ok
}

// IsSchemaError 是否为注解编译错误
func IsSchemaError(err error) bool {
	var se *core.SchemaError
	return errors.As(err, &se)
}
