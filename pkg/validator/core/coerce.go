package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// IsDecimalType 是否为十进制类型
func IsDecimalType(t reflect.Type) bool {
	return t == decimalType
}

// CharCountIn 字符数（rune）是否在 [min, max) 内
func CharCountIn(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n < max
}

// InRange f 是否在 [min, max) 内，NaN 永远不在区间内
func InRange(f, min, max float64) bool {
	return f >= min && f < max
}

// DecimalFloat64 十进制转 float64，超出 float64 表示范围时返回 ErrNumericCoercion
func DecimalFloat64(d decimal.Decimal) (float64, error) {
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %s overflows float64", ErrNumericCoercion, d.String())
	}
	return f, nil
}

// DecimalInRange 十进制值是否在 [min, max) 内，无法转换为 float64 时返回 ErrNumericCoercion
func DecimalInRange(d decimal.Decimal, min, max float64) (bool, error) {
	f, err := DecimalFloat64(d)
	if err != nil {
		return false, err
	}
	return InRange(f, min, max), nil
}

// AsText 取字符串值，支持自定义字符串类型；nil 视为空串
func AsText(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", fmt.Errorf("%w: expected text, got %T", ErrTypeMismatch, v)
}

// AsFloat 通用数值转换：整数、浮点数和 json.Number；nil 视为 0
func AsFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNumericCoercion, err)
		}
		return f, nil
	case decimal.Decimal:
		return DecimalFloat64(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("%w: expected number, got %T", ErrNumericCoercion, v)
}

// AsDecimal 取十进制值：decimal.Decimal、json.Number、数字字符串或普通数值
func AsDecimal(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return d, nil
	case *decimal.Decimal:
		if d == nil {
			return decimal.Zero, nil
		}
		return *d, nil
	case json.Number:
		return parseDecimal(string(d))
	case string:
		return parseDecimal(d)
	}
	f, err := AsFloat(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(f), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNumericCoercion, err)
	}
	return d, nil
}

// Equal 比较两个字段值：十进制按数值比较，数值类型统一为 float64，其余使用 reflect.DeepEqual
func Equal(a, b any) bool {
	if da, ok := a.(decimal.Decimal); ok {
		db, err := AsDecimal(b)
		return err == nil && da.Equal(db)
	}
	if db, ok := b.(decimal.Decimal); ok {
		da, err := AsDecimal(a)
		return err == nil && da.Equal(db)
	}
	if isNumber(a) && isNumber(b) {
		fa, errA := AsFloat(a)
		fb, errB := AsFloat(b)
		return errA == nil && errB == nil && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v any) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
