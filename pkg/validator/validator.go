// Package validator 字段验证入口
//
// 记录类型的验证规则写在字段的 valid tag 中：
//
//	type User struct {
//	    Username string  `json:"username" valid:"len(3, 20), '用户名长度为3-19个字符'; regex('^[a-z0-9_]+$'), '用户名格式不正确'"`
//	    Email    string  `json:"email" valid:"email, '邮箱格式不正确'"`
//	    Nickname *string `json:"nickname" valid:"len(2, 8)"`
//	    Password string  `json:"password" valid:"len(8, 64)"`
//	    Confirm  string  `json:"confirm" valid:"eq('#Password'), '两次密码不一致'"`
//	}
//
//	if err := validator.Validate(&user); err != nil {
//	    msg, _ := validator.Message(err)
//	}
//
// 每个 ';' 分隔的规则组对应一条错误消息，组内规则任一不满足即不合法；
// 按字段声明顺序检查，返回第一个不合法规则组的消息。
//
// 设计原则：
//   - 单例模式：Default() 全局唯一，减少资源消耗
//   - 工厂模式：New() 创建独立实例（测试、隔离的正则注册表）
//   - 类型缓存：每个类型只编译一次，编译错误同样缓存
//   - 生成代码优先：实现 core.FieldsValidator 的类型直接调用其 FieldsValidate
package validator

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"fields-valid/pkg/validator/compiler"
	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/matcher"
	"fields-valid/pkg/validator/schema"
)

// Validator 验证器，按类型缓存编译结果，可并发使用
type Validator struct {
	registry *matcher.Registry
	logger   *zap.Logger
	tagKey   string
	// typeCache key: reflect.Type, value: *typeEntry
	// 使用 sync.Map 而非 map+mutex，读多写少
	typeCache sync.Map
}

// typeEntry 单个类型的编译结果，once 保证并发首次使用时只编译一次
type typeEntry struct {
	once      sync.Once
	validator *compiler.Validator
	err       error
	done      atomic.Bool
}

// Option 验证器选项
type Option func(*Validator)

// WithRegistry 使用指定的正则注册表，默认为 matcher.Default()
func WithRegistry(r *matcher.Registry) Option {
	return func(v *Validator) {
		if r != nil {
			v.registry = r
		}
	}
}

// WithLogger 设置日志器，默认不输出
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithTagKey 使用自定义的 struct tag 名，默认为 "valid"
func WithTagKey(key string) Option {
	return func(v *Validator) {
		if key != "" {
			v.tagKey = key
		}
	}
}

var (
	// defaultValidator 默认验证器实例，全局单例
	defaultValidator *Validator
	// once 确保默认验证器只初始化一次
	once sync.Once
)

// Default 获取默认验证器实例（单例模式），线程安全
func Default() *Validator {
	once.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator
}

// New 创建新的验证器实例
func New(opts ...Option) *Validator {
	v := &Validator{
		logger: zap.NewNop(),
		tagKey: schema.DefaultTagKey,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.registry == nil {
		v.registry = matcher.Default()
	}
	return v
}

// Validate 使用默认验证器验证对象
func Validate(obj any) error {
	return Default().Validate(obj)
}

// ClearTypeCache 清除默认验证器的类型缓存
func ClearTypeCache() {
	Default().ClearTypeCache()
}

// Register 在启动时编译类型 T 的验证器，使注解错误在启动阶段暴露
func Register[T any]() error {
	return Default().RegisterType(reflect.TypeOf((*T)(nil)).Elem())
}

// MustRegister 同 Register，失败时 panic，适合包级变量初始化
func MustRegister[T any]() {
	if err := Register[T](); err != nil {
		panic(err)
	}
}

// Validate 验证结构体或结构体指针
//
// 返回：
//   - nil：验证通过
//   - *core.ViolationError：第一个不合法的规则组
//   - *core.SchemaError：类型的注解无法编译
//   - *core.CoercionError：字段值无法转换
//   - core.ErrNilRecord / core.ErrNotStruct：对象本身不合法
func (v *Validator) Validate(obj any) error {
	if obj == nil {
		return core.ErrNilRecord
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return core.ErrNilRecord
	}

	// 生成代码优先
	if fv, ok := obj.(core.FieldsValidator); ok {
		return fv.FieldsValidate()
	}

	compiled, err := v.CompiledFor(rv.Type())
	if err != nil {
		return err
	}
	return compiled.ValidateStruct(obj)
}

// RegisterType 预编译指定类型
func (v *Validator) RegisterType(typ reflect.Type) error {
	_, err := v.CompiledFor(typ)
	return err
}

// CompiledFor 获取类型的编译结果，指针类型按元素类型处理
func (v *Validator) CompiledFor(typ reflect.Type) (*compiler.Validator, error) {
	if typ == nil {
		return nil, core.ErrNilRecord
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", core.ErrNotStruct, typ)
	}

	// 热路径：已缓存
	cached, ok := v.typeCache.Load(typ)
	if !ok {
		cached, _ = v.typeCache.LoadOrStore(typ, &typeEntry{})
	}
	entry := cached.(*typeEntry)
	entry.once.Do(func() {
		entry.validator, entry.err = v.compile(typ)
		entry.done.Store(true)
	})
	return entry.validator, entry.err
}

func (v *Validator) compile(typ reflect.Type) (*compiler.Validator, error) {
	s, err := schema.FromType(typ, v.tagKey)
	if err != nil {
		v.logger.Error("read record schema failed", zap.Stringer("type", typ), zap.Error(err))
		return nil, err
	}
	compiled, err := compiler.Compile(s,
		compiler.WithRegistry(v.registry),
		compiler.WithLogger(v.logger))
	if err != nil {
		return nil, err
	}
	v.logger.Debug("record type registered",
		zap.Stringer("type", typ),
		zap.Int("checks", compiled.Checks()))
	return compiled, nil
}

// ClearTypeCache 清除类型缓存，已注册的正则不受影响
// 仅用于测试或需要重新加载类型信息的场景
func (v *Validator) ClearTypeCache() {
	v.typeCache.Range(func(key, _ any) bool {
		v.typeCache.Delete(key)
		return true
	})
}

// TypeCacheStats 类型缓存统计：编译成功和编译失败的类型数量，不含编译中的类型
func (v *Validator) TypeCacheStats() (compiled, failed int) {
	v.typeCache.Range(func(_, value any) bool {
		entry := value.(*typeEntry)
		if !entry.done.Load() {
			return true
		}
		if entry.err != nil {
			failed++
		} else {
			compiled++
		}
		return true
	})
	return compiled, failed
}

// Registry 验证器使用的正则注册表
func (v *Validator) Registry() *matcher.Registry {
	return v.registry
}
