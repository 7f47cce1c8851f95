package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/rule"
)

// DefaultTagKey 结构体字段上的注解 tag 名
const DefaultTagKey = "valid"

// FromType 通过反射读取结构体字段，生成 Schema
//   - 只处理导出字段，按声明顺序
//   - 匿名嵌入的结构体字段被展开
//   - JSON 名取 json tag 的第一段，"-" 或空时使用字段名
func FromType(typ reflect.Type, tagKey string) (*Schema, error) {
	if typ == nil {
		return nil, &core.SchemaError{Pos: -1, Err: core.ErrNilRecord}
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, &core.SchemaError{Record: typ.String(), Pos: -1, Err: fmt.Errorf("%w, got %s", core.ErrNotStruct, typ.Kind())}
	}
	if tagKey == "" {
		tagKey = DefaultTagKey
	}

	s := &Schema{Name: typ.Name(), GoType: typ, Scope: TypeScope(typ)}
	if err := collectFields(s, typ, nil, tagKey); err != nil {
		return nil, err
	}
	return s, nil
}

var typeScopes = struct {
	sync.Mutex
	byType map[reflect.Type]string
	taken  map[string]int
}{
	byType: make(map[reflect.Type]string),
	taken:  make(map[string]int),
}

// TypeScope 结构体类型的注册表作用域：包路径 + 类型描述
//
// 函数内定义的同名类型描述相同，按首次出现顺序追加 #2、#3；
// 同一类型始终得到同一作用域，重新编译时复用已注册的正则句柄。
func TypeScope(typ reflect.Type) string {
	typeScopes.Lock()
	defer typeScopes.Unlock()

	if scope, ok := typeScopes.byType[typ]; ok {
		return scope
	}
	base := typ.PkgPath() + "." + typ.String()
	n := typeScopes.taken[base] + 1
	typeScopes.taken[base] = n
	scope := base
	if n > 1 {
		scope += "#" + strconv.Itoa(n)
	}
	typeScopes.byType[typ] = scope
	return scope
}

func collectFields(s *Schema, typ reflect.Type, parent []int, tagKey string) error {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		index := append(append([]int(nil), parent...), i)

		if sf.Anonymous {
			et := sf.Type
			if et.Kind() == reflect.Struct {
				if err := collectFields(s, et, index, tagKey); err != nil {
					return err
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		f := Field{
			Name:     sf.Name,
			JSONName: jsonName(sf),
			Type:     sf.Type.String(),
			Index:    index,
			RType:    sf.Type,
		}
		if tag, ok := sf.Tag.Lookup(tagKey); ok {
			groups, err := rule.SplitTag(tag)
			if err != nil {
				return locate(err, s.Name, sf.Name)
			}
			f.Annotations = groups
		}
		s.Fields = append(s.Fields, f)
	}
	return nil
}

func jsonName(sf reflect.StructField) string {
	name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return sf.Name
	}
	return name
}

func locate(err error, record, field string) error {
	if se, ok := err.(*core.SchemaError); ok {
		return se.Locate(record, field)
	}
	return &core.SchemaError{Record: record, Field: field, Pos: -1, Err: err}
}
