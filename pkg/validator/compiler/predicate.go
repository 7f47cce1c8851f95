package compiler

import (
	"fmt"
	"strconv"

	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/matcher"
	"fields-valid/pkg/validator/rule"
	"fields-valid/pkg/validator/schema"
)

// predicate 单条规则：返回 true 表示字段值不合法
// err 非 nil 表示值无法转换，属于调用失败而不是验证失败
type predicate func(value any, src source) (invalid bool, err error)

// anyInvalid 规则组内 OR 组合，遇到第一个不合法规则即停止
func anyInvalid(preds []predicate) predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(value any, src source) (bool, error) {
		for _, p := range preds {
			invalid, err := p(value, src)
			if err != nil || invalid {
				return invalid, err
			}
		}
		return false, nil
	}
}

// fieldState 编译单个字段时的上下文
type fieldState struct {
	schema   *schema.Schema
	field    *schema.Field
	resolved schema.Resolved
	registry *matcher.Registry
	// regexes 本字段已分配的正则数，用于生成 _2、_3 后缀
	regexes int
	regs    []matcher.Registration
}

func (st *fieldState) mismatch(r rule.Rule, want string) error {
	return &core.SchemaError{
		Rule: r.Keyword(),
		Pos:  -1,
		Err: fmt.Errorf("%w: %s requires %s, field type %s is %s",
			core.ErrTypeMismatch, r.Keyword(), want, st.field.Type, st.resolved.Kind),
	}
}

func (st *fieldState) requireText(r rule.Rule) error {
	if st.resolved.Kind != core.KindText {
		return st.mismatch(r, "a text field")
	}
	return nil
}

// compileRule 规则 -> 谓词，同时完成编译期的类型检查
func (st *fieldState) compileRule(r rule.Rule) (predicate, error) {
	switch r := r.(type) {
	case rule.Len:
		if err := st.requireText(r); err != nil {
			return nil, err
		}
		return textPredicate(func(s string) bool {
			return !core.CharCountIn(s, r.Min, r.Max)
		}), nil

	case rule.Regex:
		if err := st.requireText(r); err != nil {
			return nil, err
		}
		h, err := st.register(r.Pattern)
		if err != nil {
			return nil, err
		}
		return textPredicate(func(s string) bool {
			return !h.MatchString(s)
		}), nil

	case rule.Email:
		if err := st.requireText(r); err != nil {
			return nil, err
		}
		h := st.registry.Email()
		st.regs = append(st.regs, h.Registration)
		return textPredicate(func(s string) bool {
			return !h.MatchString(s)
		}), nil

	case rule.Range:
		switch st.resolved.Kind {
		case core.KindDecimal:
			return func(value any, _ source) (bool, error) {
				d, err := core.AsDecimal(value)
				if err != nil {
					return false, err
				}
				ok, err := core.DecimalInRange(d, r.Min, r.Max)
				return !ok, err
			}, nil
		case core.KindNumeric:
			return func(value any, _ source) (bool, error) {
				f, err := core.AsFloat(value)
				if err != nil {
					return false, err
				}
				return !core.InRange(f, r.Min, r.Max), nil
			}, nil
		default:
			return nil, st.mismatch(r, "a numeric or decimal field")
		}

	case rule.Eq:
		if r.IsField {
			return st.compileFieldEq(r)
		}
		if err := st.requireText(r); err != nil {
			return nil, err
		}
		target := r.Target
		return textPredicate(func(s string) bool {
			return s != target
		}), nil
	}
	return nil, &core.SchemaError{Pos: -1, Err: fmt.Errorf("%w: %T", core.ErrUnknownRule, r)}
}

func (st *fieldState) compileFieldEq(r rule.Eq) (predicate, error) {
	sibling, ok := st.schema.Lookup(r.Target)
	if !ok {
		return nil, &core.SchemaError{
			Rule: r.Keyword(),
			Pos:  -1,
			Err:  fmt.Errorf("%w: %s", core.ErrUnknownField, r.Target),
		}
	}
	other := schema.Resolve(sibling)
	self := st.resolved
	compatible := other.Kind == self.Kind && other.Inner == self.Inner
	if self.Type != nil && other.Type != nil {
		compatible = self.Type == other.Type
	}
	if !compatible {
		return nil, st.mismatch(r, "a sibling of the same type ("+sibling.Name+" is "+sibling.Type+")")
	}

	ref := newFieldRef(sibling)
	return func(value any, src source) (bool, error) {
		siblingValue, _ := src.value(ref)
		return !core.Equal(value, siblingValue), nil
	}, nil
}

// register 为正则规则分配注册名：第一个为 RECORD_FIELD_REGEX，之后追加 _2、_3
func (st *fieldState) register(pattern string) (*matcher.Handle, error) {
	st.regexes++
	name := matcher.Name(st.schema.Name, st.field.Name)
	if st.regexes > 1 {
		name += "_" + strconv.Itoa(st.regexes)
	}
	h, err := st.registry.RegisterScoped(st.schema.Scope, name, pattern)
	if err != nil {
		return nil, &core.SchemaError{Rule: rule.KeywordRegex, Pos: -1, Err: err}
	}
	st.regs = append(st.regs, h.Registration)
	return h, nil
}

func textPredicate(invalid func(s string) bool) predicate {
	return func(value any, _ source) (bool, error) {
		s, err := core.AsText(value)
		if err != nil {
			return false, err
		}
		return invalid(s), nil
	}
}
