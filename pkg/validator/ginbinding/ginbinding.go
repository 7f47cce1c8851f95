// Package ginbinding 将字段验证接入 gin 的请求绑定
//
//	ginbinding.Install()
//
//	r.POST("/users", func(c *gin.Context) {
//	    var req CreateUserRequest
//	    if err := c.ShouldBindJSON(&req); err != nil {
//	        ginbinding.AbortWithError(c, err)
//	        return
//	    }
//	})
package ginbinding

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"fields-valid/pkg/validator"
)

// StructValidator 实现 binding.StructValidator
// next 不为空时先执行（通常是 gin 默认的 binding tag 验证），再执行 valid tag 验证
type StructValidator struct {
	validator *validator.Validator
	next      binding.StructValidator
}

var _ binding.StructValidator = (*StructValidator)(nil)

// New 创建绑定验证器，v 为 nil 时使用 validator.Default()
func New(v *validator.Validator, next binding.StructValidator) *StructValidator {
	if v == nil {
		v = validator.Default()
	}
	return &StructValidator{validator: v, next: next}
}

// Install 替换 gin 的全局绑定验证器，保留原有验证器作为前置检查
func Install() {
	binding.Validator = New(validator.Default(), binding.Validator)
}

// ValidateStruct 验证结构体、结构体指针以及它们的切片/数组，其他类型直接通过
func (s *StructValidator) ValidateStruct(obj any) error {
	if s.next != nil {
		if err := s.next.ValidateStruct(obj); err != nil {
			return err
		}
	}
	return s.validate(obj)
}

func (s *StructValidator) validate(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	switch value.Kind() {
	case reflect.Ptr:
		if value.IsNil() {
			return nil
		}
		if value.Elem().Kind() == reflect.Struct {
			return s.validator.Validate(obj)
		}
		return s.validate(value.Elem().Interface())
	case reflect.Struct:
		return s.validator.Validate(obj)
	case reflect.Slice, reflect.Array:
		for i := 0; i < value.Len(); i++ {
			elem := value.Index(i)
			if elem.Kind() == reflect.Struct && elem.CanAddr() {
				elem = elem.Addr()
			}
			if err := s.validate(elem.Interface()); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// Engine 返回底层验证器
func (s *StructValidator) Engine() any {
	return s.validator
}

// AbortWithError 将绑定错误写为 400 响应
// 验证失败时返回 {"message": 规则组消息, "field": JSON 字段名}，其他错误返回 {"message": err.Error()}
func AbortWithError(c *gin.Context, err error) {
	if fe := validator.ToFieldError(err); fe != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message": fe.Message,
			"field":   fe.JsonName,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
}
