package compiler

import (
	"fmt"
	"reflect"

	"fields-valid/pkg/types"
	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/matcher"
	"fields-valid/pkg/validator/schema"
)

// fieldRef 字段的取值位置：map 记录按键，结构体按字段索引
type fieldRef struct {
	key   string
	index []int
}

func newFieldRef(f *schema.Field) *fieldRef {
	return &fieldRef{key: f.Key(), index: f.Index}
}

// source 被验证的记录
type source interface {
	value(ref *fieldRef) (any, bool)
}

// fieldCheck 一个规则组的检查：字段值不合法时返回 message
type fieldCheck struct {
	field    string
	ref      *fieldRef
	jsonName string
	optional bool
	invalid  predicate
	message  string
	source   string
}

// Validator 编译后的验证器，创建后只读，可并发使用
type Validator struct {
	name    string
	goType  reflect.Type
	checks  []fieldCheck
	regexes []matcher.Registration
}

// Name 记录名
func (v *Validator) Name() string {
	return v.name
}

// Regexes 验证器使用的正则注册项（含共享的邮箱正则），按首次出现顺序
func (v *Validator) Regexes() []matcher.Registration {
	return append([]matcher.Registration(nil), v.regexes...)
}

// Checks 规则组数量
func (v *Validator) Checks() int {
	return len(v.checks)
}

// Evaluate 按字段声明顺序检查，返回第一个不合法规则组的 *core.ViolationError
//
// 可选字段缺失时跳过；值无法转换时返回 *core.CoercionError。
// 字段按 JSON 名从 rec 中取值。
func (v *Validator) Evaluate(rec core.Record) error {
	return v.evaluate(keyedRecord{rec})
}

func (v *Validator) evaluate(src source) error {
	for i := range v.checks {
		c := &v.checks[i]
		value, present := src.value(c.ref)
		if c.optional && !present {
			continue
		}
		invalid, err := c.invalid(value, src)
		if err != nil {
			return &core.CoercionError{Record: v.name, Field: c.field, Value: value, Err: err}
		}
		if invalid {
			return core.NewViolation(v.name, c.field, c.jsonName, c.message)
		}
	}
	return nil
}

// ValidateStruct 验证结构体或结构体指针，类型必须与编译时的类型一致
func (v *Validator) ValidateStruct(obj any) error {
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() {
		return core.ErrNilRecord
	}
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return core.ErrNilRecord
		}
		rv = rv.Elem()
	}
	if v.goType == nil || rv.Type() != v.goType {
		return fmt.Errorf("%w: validator for %s cannot validate %T", core.ErrNotStruct, v.name, obj)
	}
	return v.evaluate(structRecord{rv: rv})
}

// ValidateMap 验证 JSON 对象形式的记录，键为字段的 JSON 名
func (v *Validator) ValidateMap(m map[string]any) error {
	return v.Evaluate(types.Extras(m))
}

// keyedRecord 按 JSON 名取值
type keyedRecord struct {
	core.Record
}

func (r keyedRecord) value(ref *fieldRef) (any, bool) {
	return r.Lookup(ref.key)
}

// structRecord 通过字段索引读取结构体字段，nil 指针视为缺失
// 嵌入结构体中被遮蔽的同名字段按各自的索引读取
type structRecord struct {
	rv reflect.Value
}

func (r structRecord) value(ref *fieldRef) (any, bool) {
	if ref.index == nil {
		return nil, false
	}
	fv := r.rv.FieldByIndex(ref.index)
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil, false
		}
		fv = fv.Elem()
	}
	return fv.Interface(), true
}
