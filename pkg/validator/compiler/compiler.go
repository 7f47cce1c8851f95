// Package compiler 将 Schema 中的注解编译为验证器
//
// 编译流程：注解 -> rule.Meta（解析）-> schema.Resolved（字段类型）
// -> 谓词（按规则类型和字段类型选择实现）-> 按声明顺序组装的 Validator。
// 正则规则在编译期注册到 matcher.Registry，首次匹配时才真正编译。
package compiler

import (
	"errors"

	"go.uber.org/zap"

	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/matcher"
	"fields-valid/pkg/validator/rule"
	"fields-valid/pkg/validator/schema"
)

type options struct {
	registry *matcher.Registry
	logger   *zap.Logger
}

// Option 编译选项
type Option func(*options)

// WithRegistry 使用指定的正则注册表，默认为 matcher.Default()
func WithRegistry(r *matcher.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Compile 编译 Schema；任何注解错误都返回 *core.SchemaError，不会产生验证器
func Compile(s *schema.Schema, opts ...Option) (*Validator, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = matcher.Default()
	}

	v := &Validator{
		name:   s.Name,
		goType: s.GoType,
	}
	seen := make(map[matcher.Registration]bool)

	for i := range s.Fields {
		f := &s.Fields[i]
		if len(f.Annotations) == 0 {
			continue
		}

		st := &fieldState{
			schema:   s,
			field:    f,
			resolved: schema.Resolve(f),
			registry: o.registry,
		}
		for _, src := range f.Annotations {
			check, err := st.compileGroup(src)
			if err != nil {
				o.logger.Error("schema compile failed",
					zap.String("record", s.Name), zap.String("field", f.Name), zap.Error(err))
				return nil, err
			}
			v.checks = append(v.checks, check)
		}
		for _, reg := range st.regs {
			if !seen[reg] {
				seen[reg] = true
				v.regexes = append(v.regexes, reg)
			}
		}
	}

	o.logger.Debug("validator compiled",
		zap.String("record", s.Name),
		zap.Int("checks", len(v.checks)),
		zap.Int("regexes", len(v.regexes)))
	return v, nil
}

// compileGroup 一个注解 -> 一个字段检查
func (st *fieldState) compileGroup(src string) (fieldCheck, error) {
	meta, err := rule.ParseAnnotation(src)
	if err != nil {
		return fieldCheck{}, st.locate(err)
	}

	preds := make([]predicate, 0, len(meta.Rules))
	for _, r := range meta.Rules {
		p, err := st.compileRule(r)
		if err != nil {
			return fieldCheck{}, st.locate(err)
		}
		preds = append(preds, p)
	}

	return fieldCheck{
		field:    st.field.Name,
		ref:      newFieldRef(st.field),
		jsonName: st.field.JSONName,
		optional: st.resolved.Optional,
		invalid:  anyInvalid(preds),
		message:  meta.Message,
		source:   meta.Source,
	}, nil
}

func (st *fieldState) locate(err error) error {
	var se *core.SchemaError
	if errors.As(err, &se) {
		return se.Locate(st.schema.Name, st.field.Name)
	}
	return &core.SchemaError{Record: st.schema.Name, Field: st.field.Name, Pos: -1, Err: err}
}
