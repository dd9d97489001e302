package adapters

import (
	"fmt"

	"github.com/INLOpen/sbr/codec"
	"github.com/INLOpen/sbr/core"
)

// Tags of the builtin adapters.
const (
	TagNumber       = "Number"
	TagBoolean      = "Boolean"
	TagString       = "String"
	TagBooleanArray = "BooleanArray"
	TagNumberArray  = "NumberArray"
	TagStringArray  = "StringArray"
	TagRaw          = "Raw"
)

// Builtins returns fresh instances of the builtin adapters.
func Builtins() []TypeAdapter {
	return []TypeAdapter{
		NumberAdapter{},
		BooleanAdapter{},
		StringAdapter{},
		BooleanArrayAdapter{},
		NumberArrayAdapter{},
		StringArrayAdapter{},
		RawAdapter{},
		NewComplexAdapter(TagComplex),
	}
}

// DefaultTag returns the builtin tag that serializes values of v's variant,
// or "" for nil.
func DefaultTag(v core.TypedValue) string {
	switch v.(type) {
	case core.Number:
		return TagNumber
	case core.Boolean:
		return TagBoolean
	case core.String:
		return TagString
	case core.BooleanArray:
		return TagBooleanArray
	case core.NumberArray:
		return TagNumberArray
	case core.StringArray:
		return TagStringArray
	case core.ByteArray:
		return TagRaw
	case core.Complex:
		return TagComplex
	default:
		return ""
	}
}

func mismatch(tag string, value core.TypedValue) error {
	kind := "nil"
	if value != nil {
		kind = value.Kind().String()
	}
	return &core.UnsupportedTypeError{Tag: tag, Message: fmt.Sprintf("cannot serialize %s value", kind)}
}

// noClose is embedded by adapters without external resources.
type noClose struct{}

func (noClose) Close() error { return nil }

// NumberAdapter encodes Number as an 8-byte float.
type NumberAdapter struct{ noClose }

func (NumberAdapter) Tag() string { return TagNumber }

func (a NumberAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	v, ok := value.(core.Number)
	if !ok {
		return nil, mismatch(a.Tag(), value)
	}
	return codec.PutFloat64(float64(v)), nil
}

func (NumberAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	v, err := codec.ReadFloat64(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	return core.Number(v), codec.SizeOfFloat64, nil
}

func (a NumberAdapter) SerializedSize(value core.TypedValue) (int, error) {
	if _, ok := value.(core.Number); !ok {
		return 0, mismatch(a.Tag(), value)
	}
	return codec.SizeOfFloat64, nil
}

// BooleanAdapter encodes Boolean as one byte.
type BooleanAdapter struct{ noClose }

func (BooleanAdapter) Tag() string { return TagBoolean }

func (a BooleanAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	v, ok := value.(core.Boolean)
	if !ok {
		return nil, mismatch(a.Tag(), value)
	}
	return codec.PutBool(bool(v)), nil
}

func (BooleanAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	v, err := codec.ReadBool(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	return core.Boolean(v), codec.SizeOfBool, nil
}

func (a BooleanAdapter) SerializedSize(value core.TypedValue) (int, error) {
	if _, ok := value.(core.Boolean); !ok {
		return 0, mismatch(a.Tag(), value)
	}
	return codec.SizeOfBool, nil
}

// StringAdapter encodes String with a byte length prefix.
type StringAdapter struct{ noClose }

func (StringAdapter) Tag() string { return TagString }

func (a StringAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	v, ok := value.(core.String)
	if !ok {
		return nil, mismatch(a.Tag(), value)
	}
	return codec.PutString(string(v)), nil
}

func (StringAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	s, n, err := codec.ReadString(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	return core.String(s), n, nil
}

func (a StringAdapter) SerializedSize(value core.TypedValue) (int, error) {
	v, ok := value.(core.String)
	if !ok {
		return 0, mismatch(a.Tag(), value)
	}
	return codec.SizeOfString(string(v)), nil
}

// BooleanArrayAdapter encodes BooleanArray.
type BooleanArrayAdapter struct{ noClose }

func (BooleanArrayAdapter) Tag() string { return TagBooleanArray }

func (a BooleanArrayAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	v, ok := value.(core.BooleanArray)
	if !ok {
		return nil, mismatch(a.Tag(), value)
	}
	return codec.AppendBoolArray(make([]byte, 0, codec.SizeOfBoolArray(v)), v), nil
}

func (BooleanArrayAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	v, n, err := codec.ReadBoolArray(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	return core.BooleanArray(v), n, nil
}

func (a BooleanArrayAdapter) SerializedSize(value core.TypedValue) (int, error) {
	v, ok := value.(core.BooleanArray)
	if !ok {
		return 0, mismatch(a.Tag(), value)
	}
	return codec.SizeOfBoolArray(v), nil
}

// NumberArrayAdapter encodes NumberArray.
type NumberArrayAdapter struct{ noClose }

func (NumberArrayAdapter) Tag() string { return TagNumberArray }

func (a NumberArrayAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	v, ok := value.(core.NumberArray)
	if !ok {
		return nil, mismatch(a.Tag(), value)
	}
	return codec.AppendFloat64Array(make([]byte, 0, codec.SizeOfFloat64Array(v)), v), nil
}

func (NumberArrayAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	v, n, err := codec.ReadFloat64Array(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	return core.NumberArray(v), n, nil
}

func (a NumberArrayAdapter) SerializedSize(value core.TypedValue) (int, error) {
	v, ok := value.(core.NumberArray)
	if !ok {
		return 0, mismatch(a.Tag(), value)
	}
	return codec.SizeOfFloat64Array(v), nil
}

// StringArrayAdapter encodes StringArray.
type StringArrayAdapter struct{ noClose }

func (StringArrayAdapter) Tag() string { return TagStringArray }

func (a StringArrayAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	v, ok := value.(core.StringArray)
	if !ok {
		return nil, mismatch(a.Tag(), value)
	}
	return codec.AppendStringArray(make([]byte, 0, codec.SizeOfStringArray(v)), v), nil
}

func (StringArrayAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	v, n, err := codec.ReadStringArray(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	return core.StringArray(v), n, nil
}

func (a StringArrayAdapter) SerializedSize(value core.TypedValue) (int, error) {
	v, ok := value.(core.StringArray)
	if !ok {
		return 0, mismatch(a.Tag(), value)
	}
	return codec.SizeOfStringArray(v), nil
}

// RawAdapter encodes ByteArray.
type RawAdapter struct{ noClose }

func (RawAdapter) Tag() string { return TagRaw }

func (a RawAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	v, ok := value.(core.ByteArray)
	if !ok {
		return nil, mismatch(a.Tag(), value)
	}
	return codec.AppendBytes(make([]byte, 0, codec.SizeOfBytes(v)), v), nil
}

func (RawAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	v, n, err := codec.ReadBytes(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	return core.ByteArray(v), n, nil
}

func (a RawAdapter) SerializedSize(value core.TypedValue) (int, error) {
	v, ok := value.(core.ByteArray)
	if !ok {
		return 0, mismatch(a.Tag(), value)
	}
	return codec.SizeOfBytes(v), nil
}
