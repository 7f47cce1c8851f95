// Package schema 描述被验证记录的结构：有序字段、字段类型和原始注解
//
// Schema 可以来自两个入口：
//   - FromType：反射读取结构体字段及其 valid tag
//   - Parse/LoadFile：读取 YAML 格式的 schema 描述文件（供 CLI 和代码生成器使用）
package schema

import (
	"reflect"
)

// Field 记录中的一个字段
type Field struct {
	// Name 字段名：结构体字段名，或描述文件中的 name
	Name string
	// JSONName 序列化名，用于错误报告和 map 记录取值
	JSONName string
	// Type 类型描述符，如 "string"、"*int64"、"decimal.Decimal"、"Optional[string]"
	Type string
	// Annotations 原始注解，每个元素是一个完整的 valid(...) 规则组
	Annotations []string
	// Index 结构体字段索引路径，仅反射入口设置
	Index []int
	// RType 字段的反射类型，仅反射入口设置
	RType reflect.Type
}

// Key 按 JSON 名取值时使用的键
func (f *Field) Key() string {
	if f.JSONName != "" {
		return f.JSONName
	}
	return f.Name
}

// Schema 一个记录类型的有序字段列表，创建后不可修改
type Schema struct {
	Name   string
	Fields []Field
	// GoType 反射入口的结构体类型，描述文件入口为 nil
	GoType reflect.Type
	// Scope 记录在正则注册表中的作用域，同名的不同记录互不冲突
	Scope string
}

// Lookup 按字段名查找，找不到时再按 JSON 名查找
// 嵌入结构体中的同名字段被外层字段遮蔽，优先返回嵌入层级最浅的字段
func (s *Schema) Lookup(name string) (*Field, bool) {
	var found *Field
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == name && (found == nil || len(f.Index) < len(found.Index)) {
			found = f
		}
	}
	if found != nil {
		return found, true
	}
	for i := range s.Fields {
		if s.Fields[i].JSONName == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Annotated 是否有任一字段带注解
func (s *Schema) Annotated() bool {
	for i := range s.Fields {
		if len(s.Fields[i].Annotations) > 0 {
			return true
		}
	}
	return false
}
