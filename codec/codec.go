// Package codec encodes and decodes the fixed-width and length-prefixed
// primitives used by recording files. All functions are stateless and work on
// byte slices at an explicit position. Multi-byte values are big-endian.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/INLOpen/sbr/core"
)

// Widths of the fixed-size primitives, in bytes.
const (
	SizeOfByte    = 1
	SizeOfBool    = 1
	SizeOfInt32   = 4
	SizeOfInt64   = 8
	SizeOfFloat64 = 8
)

func need(buf []byte, pos, n int) error {
	if pos < 0 || pos > len(buf) || len(buf)-pos < n {
		available := len(buf) - pos
		if available < 0 {
			available = 0
		}
		return &core.TruncatedBufferError{Pos: pos, Needed: n, Available: available}
	}
	return nil
}

// AppendInt32 appends v as 4 big-endian bytes.
func AppendInt32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

// AppendUint32 appends v as 4 big-endian bytes.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// AppendInt64 appends v as 8 big-endian bytes.
func AppendInt64(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v))
}

// AppendFloat64 appends the IEEE 754 bits of v as 8 big-endian bytes.
func AppendFloat64(dst []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(v))
}

// AppendBool appends v as a single byte, 1 for true.
func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// PutInt32 encodes v into a new 4-byte slice.
func PutInt32(v int32) []byte { return AppendInt32(make([]byte, 0, SizeOfInt32), v) }

// PutInt64 encodes v into a new 8-byte slice.
func PutInt64(v int64) []byte { return AppendInt64(make([]byte, 0, SizeOfInt64), v) }

// PutFloat64 encodes v into a new 8-byte slice.
func PutFloat64(v float64) []byte { return AppendFloat64(make([]byte, 0, SizeOfFloat64), v) }

// PutBool encodes v into a new 1-byte slice.
func PutBool(v bool) []byte { return AppendBool(make([]byte, 0, SizeOfBool), v) }

// ReadByte reads one byte at pos.
func ReadByte(buf []byte, pos int) (byte, error) {
	if err := need(buf, pos, SizeOfByte); err != nil {
		return 0, err
	}
	return buf[pos], nil
}

// ReadInt32 reads a big-endian int32 at pos.
func ReadInt32(buf []byte, pos int) (int32, error) {
	if err := need(buf, pos, SizeOfInt32); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[pos:])), nil
}

// ReadUint32 reads a big-endian uint32 at pos.
func ReadUint32(buf []byte, pos int) (uint32, error) {
	if err := need(buf, pos, SizeOfInt32); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[pos:]), nil
}

// ReadInt64 reads a big-endian int64 at pos.
func ReadInt64(buf []byte, pos int) (int64, error) {
	if err := need(buf, pos, SizeOfInt64); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[pos:])), nil
}

// ReadFloat64 reads a big-endian IEEE 754 float64 at pos.
func ReadFloat64(buf []byte, pos int) (float64, error) {
	if err := need(buf, pos, SizeOfFloat64); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[pos:])), nil
}

// ReadBool reads a single byte at pos; any non-zero value is true.
func ReadBool(buf []byte, pos int) (bool, error) {
	if err := need(buf, pos, SizeOfBool); err != nil {
		return false, err
	}
	return buf[pos] != 0, nil
}

// readCount reads an element count or length prefix and rejects negative values.
func readCount(buf []byte, pos int) (int, error) {
	n, err := ReadInt32(buf, pos)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative length %d at position %d", n, pos)
	}
	return int(n), nil
}

// AppendString appends the UTF-8 byte length of s followed by its bytes.
func AppendString(dst []byte, s string) []byte {
	dst = AppendInt32(dst, int32(len(s)))
	return append(dst, s...)
}

// PutString encodes s into a new slice.
func PutString(s string) []byte { return AppendString(make([]byte, 0, SizeOfString(s)), s) }

// SizeOfString is the encoded size of s: the prefix plus its UTF-8 byte length.
func SizeOfString(s string) int { return SizeOfInt32 + len(s) }

// ReadString reads a length-prefixed UTF-8 string at pos and returns it with
// the number of bytes consumed.
func ReadString(buf []byte, pos int) (string, int, error) {
	n, err := readCount(buf, pos)
	if err != nil {
		return "", 0, err
	}
	start := pos + SizeOfInt32
	if err := need(buf, start, n); err != nil {
		return "", 0, err
	}
	raw := buf[start : start+n]
	if !utf8.Valid(raw) {
		return "", 0, fmt.Errorf("invalid UTF-8 string at position %d", pos)
	}
	return string(raw), SizeOfInt32 + n, nil
}

// AppendBoolArray appends an element count then one byte per element.
func AppendBoolArray(dst []byte, v []bool) []byte {
	dst = AppendInt32(dst, int32(len(v)))
	for _, b := range v {
		dst = AppendBool(dst, b)
	}
	return dst
}

// SizeOfBoolArray is the encoded size of v.
func SizeOfBoolArray(v []bool) int { return SizeOfInt32 + len(v)*SizeOfBool }

// ReadBoolArray reads a bool array at pos and returns it with the bytes consumed.
func ReadBoolArray(buf []byte, pos int) ([]bool, int, error) {
	n, err := readCount(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	start := pos + SizeOfInt32
	if err := need(buf, start, n*SizeOfBool); err != nil {
		return nil, 0, err
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = buf[start+i] != 0
	}
	return out, SizeOfInt32 + n*SizeOfBool, nil
}

// AppendFloat64Array appends an element count then 8 bytes per element.
func AppendFloat64Array(dst []byte, v []float64) []byte {
	dst = AppendInt32(dst, int32(len(v)))
	for _, f := range v {
		dst = AppendFloat64(dst, f)
	}
	return dst
}

// SizeOfFloat64Array is the encoded size of v.
func SizeOfFloat64Array(v []float64) int { return SizeOfInt32 + len(v)*SizeOfFloat64 }

// ReadFloat64Array reads a float64 array at pos and returns it with the bytes consumed.
func ReadFloat64Array(buf []byte, pos int) ([]float64, int, error) {
	n, err := readCount(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	start := pos + SizeOfInt32
	if n > (len(buf)-start)/SizeOfFloat64 {
		return nil, 0, &core.TruncatedBufferError{Pos: start, Needed: n * SizeOfFloat64, Available: len(buf) - start}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[start+i*SizeOfFloat64:]))
	}
	return out, SizeOfInt32 + n*SizeOfFloat64, nil
}

// AppendStringArray appends an element count then each string length-prefixed.
func AppendStringArray(dst []byte, v []string) []byte {
	dst = AppendInt32(dst, int32(len(v)))
	for _, s := range v {
		dst = AppendString(dst, s)
	}
	return dst
}

// SizeOfStringArray is the encoded size of v.
func SizeOfStringArray(v []string) int {
	size := SizeOfInt32
	for _, s := range v {
		size += SizeOfString(s)
	}
	return size
}

// ReadStringArray reads a string array at pos and returns it with the bytes consumed.
func ReadStringArray(buf []byte, pos int) ([]string, int, error) {
	n, err := readCount(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	cursor := pos + SizeOfInt32
	// Every element needs at least its prefix.
	if n > (len(buf)-cursor)/SizeOfInt32 {
		return nil, 0, &core.TruncatedBufferError{Pos: cursor, Needed: n * SizeOfInt32, Available: len(buf) - cursor}
	}
	out := make([]string, n)
	for i := range out {
		s, consumed, err := ReadString(buf, cursor)
		if err != nil {
			return nil, 0, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = s
		cursor += consumed
	}
	return out, cursor - pos, nil
}

// AppendBytes appends a byte count then the raw bytes.
func AppendBytes(dst []byte, v []byte) []byte {
	dst = AppendInt32(dst, int32(len(v)))
	return append(dst, v...)
}

// SizeOfBytes is the encoded size of v.
func SizeOfBytes(v []byte) int { return SizeOfInt32 + len(v) }

// ReadBytes reads a length-prefixed byte array at pos. The result is a copy.
func ReadBytes(buf []byte, pos int) ([]byte, int, error) {
	n, err := readCount(buf, pos)
	if err != nil {
		return nil, 0, err
	}
	start := pos + SizeOfInt32
	if err := need(buf, start, n); err != nil {
		return nil, 0, err
	}
	out := make([]byte, n)
	copy(out, buf[start:start+n])
	return out, SizeOfInt32 + n, nil
}
