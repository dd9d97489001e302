package adapters

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/INLOpen/sbr/codec"
	"github.com/INLOpen/sbr/core"
	"github.com/vmihailenco/msgpack/v5"
)

// TagComplex is the default tag for structured values.
const TagComplex = "Complex"

// wireValue is the msgpack form of a TypedValue. The kind is stored
// explicitly so arrays keep their element type across a round trip.
type wireValue struct {
	Kind    core.ValueKind       `msgpack:"k"`
	Number  float64              `msgpack:"n,omitempty"`
	Bool    bool                 `msgpack:"b,omitempty"`
	Str     string               `msgpack:"s,omitempty"`
	Bools   []bool               `msgpack:"ba,omitempty"`
	Numbers []float64            `msgpack:"na,omitempty"`
	Strings []string             `msgpack:"sa,omitempty"`
	Raw     []byte               `msgpack:"r,omitempty"`
	Fields  map[string]wireValue `msgpack:"f,omitempty"`
}

func toWire(v core.TypedValue) (wireValue, error) {
	switch tv := v.(type) {
	case core.Number:
		return wireValue{Kind: core.KindNumber, Number: float64(tv)}, nil
	case core.Boolean:
		return wireValue{Kind: core.KindBoolean, Bool: bool(tv)}, nil
	case core.String:
		return wireValue{Kind: core.KindString, Str: string(tv)}, nil
	case core.BooleanArray:
		return wireValue{Kind: core.KindBooleanArray, Bools: tv}, nil
	case core.NumberArray:
		return wireValue{Kind: core.KindNumberArray, Numbers: tv}, nil
	case core.StringArray:
		return wireValue{Kind: core.KindStringArray, Strings: tv}, nil
	case core.ByteArray:
		return wireValue{Kind: core.KindByteArray, Raw: tv}, nil
	case core.Complex:
		fields := make(map[string]wireValue, len(tv))
		for k, item := range tv {
			w, err := toWire(item)
			if err != nil {
				return wireValue{}, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = w
		}
		return wireValue{Kind: core.KindComplex, Fields: fields}, nil
	default:
		return wireValue{}, fmt.Errorf("cannot encode %T", v)
	}
}

func fromWire(w wireValue) (core.TypedValue, error) {
	switch w.Kind {
	case core.KindNumber:
		return core.Number(w.Number), nil
	case core.KindBoolean:
		return core.Boolean(w.Bool), nil
	case core.KindString:
		return core.String(w.Str), nil
	case core.KindBooleanArray:
		if w.Bools == nil {
			return core.BooleanArray{}, nil
		}
		return core.BooleanArray(w.Bools), nil
	case core.KindNumberArray:
		if w.Numbers == nil {
			return core.NumberArray{}, nil
		}
		return core.NumberArray(w.Numbers), nil
	case core.KindStringArray:
		if w.Strings == nil {
			return core.StringArray{}, nil
		}
		return core.StringArray(w.Strings), nil
	case core.KindByteArray:
		if w.Raw == nil {
			return core.ByteArray{}, nil
		}
		return core.ByteArray(w.Raw), nil
	case core.KindComplex:
		out := make(core.Complex, len(w.Fields))
		for k, item := range w.Fields {
			v, err := fromWire(item)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", w.Kind)
	}
}

// ComplexAdapter encodes Complex values as a length-prefixed msgpack document.
type ComplexAdapter struct {
	tag     string
	mu      sync.Mutex
	closed  bool
	buffers sync.Pool
}

var _ TypeAdapter = (*ComplexAdapter)(nil)

// NewComplexAdapter creates a msgpack-backed adapter for structured values of tag.
func NewComplexAdapter(tag string) *ComplexAdapter {
	return &ComplexAdapter{
		tag: tag,
		buffers: sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
	}
}

func (a *ComplexAdapter) Tag() string { return a.tag }

func (a *ComplexAdapter) encode(value core.TypedValue) ([]byte, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("adapter for %q is closed", a.tag)
	}

	c, ok := value.(core.Complex)
	if !ok {
		return nil, mismatch(a.tag, value)
	}
	w, err := toWire(c)
	if err != nil {
		return nil, &core.UnsupportedTypeError{Tag: a.tag, Message: err.Error()}
	}

	buf := a.buffers.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		a.buffers.Put(buf)
	}()
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&w); err != nil {
		return nil, fmt.Errorf("msgpack encode for %q: %w", a.tag, err)
	}
	return codec.AppendBytes(make([]byte, 0, codec.SizeOfInt32+buf.Len()), buf.Bytes()), nil
}

func (a *ComplexAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	return a.encode(value)
}

func (a *ComplexAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	doc, n, err := codec.ReadBytes(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	var w wireValue
	if err := msgpack.Unmarshal(doc, &w); err != nil {
		return nil, 0, fmt.Errorf("msgpack decode for %q: %w", a.tag, err)
	}
	if w.Kind != core.KindComplex {
		return nil, 0, fmt.Errorf("msgpack document for %q holds %s, want Complex", a.tag, w.Kind)
	}
	v, err := fromWire(w)
	if err != nil {
		return nil, 0, err
	}
	return v, n, nil
}

// SerializedSize encodes the value; msgpack sizes depend on content.
func (a *ComplexAdapter) SerializedSize(value core.TypedValue) (int, error) {
	b, err := a.encode(value)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close rejects further serialization. Decoding stays available so that
// recordings can still be inspected.
func (a *ComplexAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
