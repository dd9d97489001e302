package core

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValueKind identifies the variant held by a TypedValue.
type ValueKind byte

const (
	KindNumber       ValueKind = 0x01
	KindBoolean      ValueKind = 0x02
	KindString       ValueKind = 0x03
	KindBooleanArray ValueKind = 0x04
	KindNumberArray  ValueKind = 0x05
	KindStringArray  ValueKind = 0x06
	KindByteArray    ValueKind = 0x07
	KindComplex      ValueKind = 0x08
)

// String returns the string representation of the ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindBoolean:
		return "Boolean"
	case KindString:
		return "String"
	case KindBooleanArray:
		return "BooleanArray"
	case KindNumberArray:
		return "NumberArray"
	case KindStringArray:
		return "StringArray"
	case KindByteArray:
		return "ByteArray"
	case KindComplex:
		return "Complex"
	default:
		return fmt.Sprintf("ValueKind(%d)", byte(k))
	}
}

// TypedValue is a recorded value. The set of variants is closed: only the
// types declared in this file implement it.
type TypedValue interface {
	Kind() ValueKind
	typedValue()
}

type (
	Number       float64
	Boolean      bool
	String       string
	BooleanArray []bool
	NumberArray  []float64
	StringArray  []string
	ByteArray    []byte
	// Complex holds structured data. Its shape is defined by the adapter
	// registered for its type tag.
	Complex map[string]TypedValue
)

func (Number) Kind() ValueKind       { return KindNumber }
func (Boolean) Kind() ValueKind      { return KindBoolean }
func (String) Kind() ValueKind       { return KindString }
func (BooleanArray) Kind() ValueKind { return KindBooleanArray }
func (NumberArray) Kind() ValueKind  { return KindNumberArray }
func (StringArray) Kind() ValueKind  { return KindStringArray }
func (ByteArray) Kind() ValueKind    { return KindByteArray }
func (Complex) Kind() ValueKind      { return KindComplex }

func (Number) typedValue()       {}
func (Boolean) typedValue()      {}
func (String) typedValue()       {}
func (BooleanArray) typedValue() {}
func (NumberArray) typedValue()  {}
func (StringArray) typedValue()  {}
func (ByteArray) typedValue()    {}
func (Complex) typedValue()      {}

// ValuesEqual reports whether two values hold the same variant and contents.
// Nil and empty arrays compare equal, and NaN equals NaN so that decoded
// values can be compared with their originals.
func ValuesEqual(a, b TypedValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Number:
		return floatEqual(float64(av), float64(b.(Number)))
	case Boolean:
		return av == b.(Boolean)
	case String:
		return av == b.(String)
	case BooleanArray:
		bv := b.(BooleanArray)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case NumberArray:
		bv := b.(NumberArray)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !floatEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case StringArray:
		bv := b.(StringArray)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case ByteArray:
		return bytes.Equal(av, b.(ByteArray))
	case Complex:
		bv := b.(Complex)
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !ValuesEqual(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

// FormatValue renders a value as human readable text. Complex keys are sorted
// so the output is stable.
func FormatValue(v TypedValue) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case Number:
		return fmt.Sprintf("%g", float64(tv))
	case Boolean:
		return fmt.Sprintf("%t", bool(tv))
	case String:
		return string(tv)
	case BooleanArray:
		parts := make([]string, len(tv))
		for i, b := range tv {
			parts[i] = fmt.Sprintf("%t", b)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case NumberArray:
		parts := make([]string, len(tv))
		for i, n := range tv {
			parts[i] = fmt.Sprintf("%g", n)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case StringArray:
		return "[" + strings.Join(tv, ", ") + "]"
	case ByteArray:
		return fmt.Sprintf("%x", []byte(tv))
	case Complex:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + FormatValue(tv[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ValueFromInterface converts a decoded JSON-like value into a TypedValue.
// Homogeneous arrays map to the typed array variants; objects map to Complex.
func ValueFromInterface(v interface{}) (TypedValue, error) {
	switch val := v.(type) {
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case bool:
		return Boolean(val), nil
	case string:
		return String(val), nil
	case []byte:
		return ByteArray(val), nil
	case []interface{}:
		return arrayFromInterface(val)
	case map[string]interface{}:
		out := make(Complex, len(val))
		for k, item := range val {
			tv, err := ValueFromInterface(item)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = tv
		}
		return out, nil
	default:
		return nil, &UnsupportedTypeError{Message: fmt.Sprintf("cannot convert %T to a typed value", v)}
	}
}

func arrayFromInterface(items []interface{}) (TypedValue, error) {
	if len(items) == 0 {
		return NumberArray{}, nil
	}
	switch items[0].(type) {
	case float64:
		out := make(NumberArray, len(items))
		for i, item := range items {
			f, ok := item.(float64)
			if !ok {
				return nil, &UnsupportedTypeError{Message: "mixed array element types"}
			}
			out[i] = f
		}
		return out, nil
	case bool:
		out := make(BooleanArray, len(items))
		for i, item := range items {
			b, ok := item.(bool)
			if !ok {
				return nil, &UnsupportedTypeError{Message: "mixed array element types"}
			}
			out[i] = b
		}
		return out, nil
	case string:
		out := make(StringArray, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, &UnsupportedTypeError{Message: "mixed array element types"}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, &UnsupportedTypeError{Message: fmt.Sprintf("unsupported array element type %T", items[0])}
	}
}
