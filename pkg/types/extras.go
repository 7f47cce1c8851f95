package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"sort"
)

// Extras 动态键值记录，基于 map[string]any
//
// 设计说明：
// - 作为 JSON 对象形式的被验证记录（CLI 逐行读取的 NDJSON、gin 之外的原始请求体）
// - 实现 core.Record：键不存在或值为 nil 视为字段缺失
// - 使用 Decode 解析时数字保留为 json.Number，十进制字段不会丢失精度
// - 支持数据库 JSON 存储（driver.Valuer / sql.Scanner）
//
// 线程安全：
// - map 类型非线程安全，多协程并发读写需要外部加锁
type Extras map[string]any

// NewExtras 创建一个新的扩展字段实例
func NewExtras(capacity int) Extras {
	return make(Extras, capacity)
}

// Decode 解析 JSON 对象，数字保留为 json.Number
func Decode(data []byte) (Extras, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode JSON object: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to decode JSON object: trailing data")
	}
	if m == nil {
		return NewExtras(0), nil
	}
	return Extras(m), nil
}

// Lookup 实现 core.Record
func (e Extras) Lookup(key string) (any, bool) {
	value, exists := e[key]
	if !exists || value == nil {
		return nil, false
	}
	return value, true
}

// Set 设置键值，空键被忽略
func (e Extras) Set(key string, value any) {
	if len(key) == 0 {
		return
	}
	e[key] = value
}

// Get 获取原始值
func (e Extras) Get(key string) (any, bool) {
	value, exists := e[key]
	return value, exists
}

// GetString 获取字符串
func (e Extras) GetString(key string) (string, bool) {
	value, exists := e[key]
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// GetFloat64 获取数值，支持 json.Number 和常见数值类型
func (e Extras) GetFloat64(key string) (float64, bool) {
	value, exists := e[key]
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Has 是否存在该键
func (e Extras) Has(key string) bool {
	_, exists := e[key]
	return exists
}

// Keys 返回排序后的键
func (e Extras) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone 浅拷贝
func (e Extras) Clone() Extras {
	if len(e) == 0 {
		return NewExtras(0)
	}
	return maps.Clone(e)
}

// Value 实现 driver.Valuer 接口
func (e Extras) Value() (driver.Value, error) {
	data, err := json.Marshal(map[string]any(e))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Extras to JSON: %w", err)
	}
	return data, nil
}

// Scan 实现 sql.Scanner 接口
func (e *Extras) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan Extras: unsupported database type %T, expected []byte or string", value)
	}
	if len(data) == 0 {
		*e = nil
		return nil
	}

	result, err := Decode(data)
	if err != nil {
		return err
	}
	*e = result
	return nil
}
