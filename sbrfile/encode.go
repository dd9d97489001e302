package sbrfile

import (
	"fmt"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/codec"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/recording"
)

// appendHeader appends the file magic.
func appendHeader(dst []byte) []byte {
	return codec.AppendUint32(dst, core.RecordingMagicNumber)
}

// appendPool appends a pool segment holding strs.
func appendPool(dst []byte, strs []string) []byte {
	dst = append(dst, byte(core.EntryKindPool))
	dst = codec.AppendInt32(dst, int32(len(strs)))
	for _, s := range strs {
		dst = codec.AppendString(dst, s)
	}
	return dst
}

// appendEntry appends one data or marker record, interning its strings in pool.
func appendEntry(dst []byte, e core.Entry, pool *recording.ConstantPool, registry *adapters.Registry) ([]byte, error) {
	switch {
	case e.Data != nil:
		d := e.Data
		adapter, err := registry.LookupForWrite(d.TypeTag)
		if err != nil {
			return dst, err
		}
		payload, err := adapter.Serialize(d.Value)
		if err != nil {
			return dst, fmt.Errorf("failed to serialize %s sample of %s at %d: %w", d.TypeTag, d.SourceID, d.Timestamp, err)
		}
		dst = append(dst, byte(core.EntryKindData))
		dst = codec.AppendInt64(dst, d.Timestamp)
		dst = codec.AppendInt32(dst, pool.Intern(d.SourceID))
		dst = codec.AppendInt32(dst, pool.Intern(d.TypeTag))
		return append(dst, payload...), nil
	case e.Marker != nil:
		m := e.Marker
		dst = append(dst, byte(core.EntryKindMarker))
		dst = codec.AppendInt64(dst, m.Timestamp)
		dst = codec.AppendInt32(dst, pool.Intern(m.Name))
		dst = codec.AppendInt32(dst, pool.Intern(m.Description))
		return append(dst, byte(m.Importance)), nil
	default:
		return dst, fmt.Errorf("empty entry")
	}
}

// encodeSegment encodes entries preceded by a pool segment with every string
// interned after the first poolWritten. The pool segment is omitted when there
// are no new strings. It returns the new pool size covered by the output.
func encodeSegment(dst []byte, entries []core.Entry, pool *recording.ConstantPool, poolWritten int, registry *adapters.Registry) ([]byte, int, error) {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)

	body := buf.Bytes()
	for _, e := range entries {
		var err error
		body, err = appendEntry(body, e, pool, registry)
		if err != nil {
			return dst, poolWritten, err
		}
	}

	fresh := pool.Since(poolWritten)
	if len(fresh) > 0 {
		dst = appendPool(dst, fresh)
	}
	dst = append(dst, body...)
	return dst, poolWritten + len(fresh), nil
}

// Encode serializes a whole recording: header, one pool segment, then every entry.
func Encode(rec *recording.Recording, registry *adapters.Registry) ([]byte, error) {
	out, _, _, err := encodeFull(rec, registry)
	return out, err
}

// encodeFull returns the file contents with the number of entries and pool
// strings they cover.
func encodeFull(rec *recording.Recording, registry *adapters.Registry) ([]byte, int, int, error) {
	entries := rec.Entries()
	out := appendHeader(make([]byte, 0, 64+len(entries)*32))
	out, poolLen, err := encodeSegment(out, entries, rec.Pool(), 0, registry)
	if err != nil {
		return nil, 0, 0, err
	}
	if poolLen == 0 {
		out = appendPool(out, nil)
	}
	return out, len(entries), poolLen, nil
}
