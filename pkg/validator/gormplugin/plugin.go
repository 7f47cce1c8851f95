// Package gormplugin 在 gorm 写入前执行字段验证
//
//	db.Use(gormplugin.New(nil))
//
// Create / Save 在 gorm:create、gorm:update 之前验证模型，验证失败时中止语句并返回验证错误。
// Update(column, value)、Updates(map) 与 Updates(struct) 只写入部分字段，不验证。
package gormplugin

import (
	"reflect"

	"gorm.io/gorm"

	"fields-valid/pkg/validator"
)

const (
	// Name 插件名
	Name = "fieldsvalid"
	// SkipKey db.Set(SkipKey, true) 跳过当前语句的验证
	SkipKey = "fieldsvalid:skip"

	createCallback = "fieldsvalid:validate_create"
	updateCallback = "fieldsvalid:validate_update"
)

// Plugin gorm 验证插件
type Plugin struct {
	validator *validator.Validator
}

var _ gorm.Plugin = (*Plugin)(nil)

// New 创建插件，v 为 nil 时使用 validator.Default()
func New(v *validator.Validator) *Plugin {
	if v == nil {
		v = validator.Default()
	}
	return &Plugin{validator: v}
}

// Name 实现 gorm.Plugin
func (p *Plugin) Name() string {
	return Name
}

// Initialize 实现 gorm.Plugin，注册创建和更新前的回调
func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register(createCallback, p.validate); err != nil {
		return err
	}
	return db.Callback().Update().Before("gorm:update").Register(updateCallback, p.validateUpdate)
}

func (p *Plugin) skipped(db *gorm.DB) bool {
	if db.Error != nil || db.Statement == nil {
		return true
	}
	if skip, ok := db.Get(SkipKey); ok {
		if b, _ := skip.(bool); b {
			return true
		}
	}
	return false
}

// validateUpdate 只验证整条记录的更新（Save），Dest 与 Model 不同时为部分更新
func (p *Plugin) validateUpdate(db *gorm.DB) {
	if p.skipped(db) || !sameTarget(db.Statement.Dest, db.Statement.Model) {
		return
	}
	p.validate(db)
}

func (p *Plugin) validate(db *gorm.DB) {
	if p.skipped(db) {
		return
	}

	// 按列更新或 map 更新时 Dest 不是模型本身
	dest := reflect.ValueOf(db.Statement.Dest)
	for dest.Kind() == reflect.Ptr && !dest.IsNil() {
		dest = dest.Elem()
	}
	switch dest.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array:
	default:
		return
	}

	if err := p.validateValue(dest); err != nil {
		_ = db.AddError(err)
	}
}

func (p *Plugin) validateValue(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return p.validateValue(rv.Elem())
	case reflect.Struct:
		if rv.CanAddr() {
			return p.validator.Validate(rv.Addr().Interface())
		}
		return p.validator.Validate(rv.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := p.validateValue(rv.Index(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// sameTarget dest 与 model 是否为同一个对象
func sameTarget(dest, model any) bool {
	dv, mv := reflect.ValueOf(dest), reflect.ValueOf(model)
	if !dv.IsValid() || !mv.IsValid() || dv.Type() != mv.Type() {
		return false
	}
	switch dv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map:
		return dv.Pointer() == mv.Pointer()
	}
	// 非指针的值无法比较地址，gorm 在 Model 为空时以 Dest 填充
	return true
}
