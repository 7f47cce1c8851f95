// Package matcher 正则注册表：每个 (记录, 字段) 对应一个命名的正则句柄，
// 首次使用时编译且只编译一次，之后无锁并发读取，进程生命周期内不失效。
//
// 注册名 RECORD_FIELD_REGEX 只用于展示；句柄按 (作用域, 注册名) 存储，
// 作用域区分同名的不同记录类型，空作用域为全局（共享的邮箱正则）。
package matcher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"fields-valid/pkg/validator/core"
)

const (
	// EmailName 内置邮箱正则的注册名，所有记录共享
	EmailName = "EMAIL_REGEX"
	// EmailPattern 内置邮箱正则
	EmailPattern = `^[\da-zA-Z_-]+@([\da-zA-Z_-]+\.[\da-zA-Z_-]+)+$`

	nameSuffix = "_REGEX"
)

// Name 生成 (记录, 字段) 的注册名：USER_PASSWORD_REGEX
func Name(record, field string) string {
	return strings.ToUpper(record) + "_" + strings.ToUpper(field) + nameSuffix
}

// Registration 注册名与正则表达式
type Registration struct {
	// Scope 作用域，为空表示全局
	Scope   string
	Name    string
	Pattern string
}

func (r Registration) key() string {
	return scopedKey(r.Scope, r.Name)
}

func scopedKey(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "|" + name
}

// PatternError 正则编译失败，MatchString 以该类型 panic
type PatternError struct {
	Registration
	Err error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("regex %s %q: %v", e.Name, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() []error {
	return []error{core.ErrInvalidPattern, e.Err}
}

// Handle 懒编译的正则句柄
type Handle struct {
	Registration

	once   sync.Once
	re     *regexp.Regexp
	err    error
	builds atomic.Int32
	logger *zap.Logger
}

// Regexp 返回编译好的正则；首次调用时编译，并发调用者等待同一次编译完成
func (h *Handle) Regexp() (*regexp.Regexp, error) {
	h.once.Do(h.build)
	return h.re, h.err
}

func (h *Handle) build() {
	h.builds.Add(1)
	re, err := regexp.Compile(h.Pattern)
	if err != nil {
		h.err = &PatternError{Registration: h.Registration, Err: err}
		h.logger.Error("regex compile failed", zap.String("name", h.Name), zap.String("pattern", h.Pattern), zap.Error(err))
		return
	}
	h.re = re
	h.logger.Debug("regex compiled", zap.String("name", h.Name))
}

// MatchString 匹配字符串；正则无法编译属于静态的编写错误，直接 panic
func (h *Handle) MatchString(s string) bool {
	re, err := h.Regexp()
	if err != nil {
		panic(err)
	}
	return re.MatchString(s)
}

// Compilations 正则被编译的次数（0 或 1）
func (h *Handle) Compilations() int {
	return int(h.builds.Load())
}

// Registry 正则注册表
type Registry struct {
	handles sync.Map // key: scope|name, value: *Handle
	logger  *zap.Logger
}

// Option 注册表选项
type Option func(*Registry)

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry 创建独立的注册表
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// Default 进程级注册表
func Default() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register 在全局作用域注册命名正则，见 RegisterScoped
func (r *Registry) Register(name, pattern string) (*Handle, error) {
	return r.RegisterScoped("", name, pattern)
}

// RegisterScoped 注册命名正则，不编译；同作用域同名同表达式返回已有句柄，表达式不同返回 ErrPatternConflict
func (r *Registry) RegisterScoped(scope, name, pattern string) (*Handle, error) {
	reg := Registration{Scope: scope, Name: name, Pattern: pattern}
	h := &Handle{Registration: reg, logger: r.logger}
	actual, loaded := r.handles.LoadOrStore(reg.key(), h)
	existing := actual.(*Handle)
	if loaded && existing.Pattern != pattern {
		return nil, fmt.Errorf("%w: %s is %q, not %q", core.ErrPatternConflict, reg.key(), existing.Pattern, pattern)
	}
	return existing, nil
}

// MustRegister 同 Register，冲突时 panic，供生成代码的包级变量使用
func (r *Registry) MustRegister(name, pattern string) *Handle {
	h, err := r.Register(name, pattern)
	if err != nil {
		panic(err)
	}
	return h
}

// Email 共享的内置邮箱正则句柄
func (r *Registry) Email() *Handle {
	return r.MustRegister(EmailName, EmailPattern)
}

// Lookup 按名称查找全局作用域的句柄
func (r *Registry) Lookup(name string) (*Handle, bool) {
	return r.LookupScoped("", name)
}

// LookupScoped 按作用域和名称查找句柄
func (r *Registry) LookupScoped(scope, name string) (*Handle, bool) {
	v, ok := r.handles.Load(scopedKey(scope, name))
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}

// Registrations 所有注册项，按名称、作用域排序
func (r *Registry) Registrations() []Registration {
	var regs []Registration
	r.handles.Range(func(_, v any) bool {
		regs = append(regs, v.(*Handle).Registration)
		return true
	})
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Name != regs[j].Name {
			return regs[i].Name < regs[j].Name
		}
		return regs[i].Scope < regs[j].Scope
	})
	return regs
}

// MustRegister 在默认注册表中注册
func MustRegister(name, pattern string) *Handle {
	return Default().MustRegister(name, pattern)
}

// Email 默认注册表中的邮箱正则句柄
func Email() *Handle {
	return Default().Email()
}
