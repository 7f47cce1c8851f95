// Package rule 解析字段验证注解：valid(len(3, 20), regex('^[a-z]+$'), email, "消息")
//
// 一个注解即一个规则组：组内规则按 OR 组合（任一规则失败即字段不合法），
// 共享同一条失败消息。结构体 tag 中可以用 ';' 分隔多个规则组。
package rule

import (
	"fmt"
	"strconv"
)

// 规则关键字
const (
	KeywordLen   = "len"
	KeywordRange = "range"
	KeywordRegex = "regex"
	KeywordEq    = "eq"
	KeywordEmail = "email"
)

// FieldRefPrefix eq 参数以该字符开头时，其余部分为兄弟字段名
const FieldRefPrefix = '#'

// Rule 单条验证规则，具体类型为 Len、Range、Regex、Eq、Email 之一
type Rule interface {
	Keyword() string
	String() string
}

// Len 字符数区间 [Min, Max)
type Len struct {
	Min int
	Max int
}

// Range 数值区间 [Min, Max)
type Range struct {
	Min float64
	Max float64
}

// Regex 正则匹配
type Regex struct {
	Pattern string
}

// Eq 与字面量或兄弟字段相等
type Eq struct {
	// Target 字面量，或 IsField 为 true 时的兄弟字段名（已去掉 '#'）
	Target  string
	IsField bool
}

// Email 内置邮箱格式
type Email struct{}

func (Len) Keyword() string   { return KeywordLen }
func (Range) Keyword() string { return KeywordRange }
func (Regex) Keyword() string { return KeywordRegex }
func (Eq) Keyword() string    { return KeywordEq }
func (Email) Keyword() string { return KeywordEmail }

func (r Len) String() string { return fmt.Sprintf("len(%d, %d)", r.Min, r.Max) }

func (r Range) String() string {
	return fmt.Sprintf("range(%s, %s)",
		strconv.FormatFloat(r.Min, 'g', -1, 64), strconv.FormatFloat(r.Max, 'g', -1, 64))
}

func (r Regex) String() string { return fmt.Sprintf("regex(%q)", r.Pattern) }

func (r Eq) String() string {
	if r.IsField {
		return fmt.Sprintf("eq(%q)", string(FieldRefPrefix)+r.Target)
	}
	return fmt.Sprintf("eq(%q)", r.Target)
}

func (Email) String() string { return KeywordEmail }

// Meta 一个规则组
type Meta struct {
	Rules   []Rule
	Message string
	// Source 注解源码，用于日志和错误定位
	Source string
}
