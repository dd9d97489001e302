package sbrfile

import (
	"errors"
	"fmt"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/codec"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/recording"
)

var (
	errBadMagic = errors.New("not a recording file")
)

// decoder walks the record stream. strings holds the file's pool in file
// order; references index into it.
type decoder struct {
	buf      []byte
	pos      int
	strings  []string
	registry *adapters.Registry
	rec      *recording.Recording
}

// Decode parses a recording file held in memory. Archives are decompressed
// first. Any failure is reported as a *core.CorruptRecordingError.
func Decode(data []byte, registry *adapters.Registry) (*recording.Recording, error) {
	if IsArchive(data) {
		raw, err := Unarchive(data)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	magic, err := codec.ReadUint32(data, 0)
	if err != nil {
		return nil, &core.CorruptRecordingError{Offset: 0, Cause: err}
	}
	if magic != core.RecordingMagicNumber {
		return nil, &core.CorruptRecordingError{Offset: 0, Cause: fmt.Errorf("%w: magic 0x%08X", errBadMagic, magic)}
	}

	d := &decoder{
		buf:      data,
		pos:      codec.SizeOfInt32,
		registry: registry,
		rec:      recording.New(),
	}
	for d.pos < len(d.buf) {
		start := d.pos
		if err := d.record(); err != nil {
			return nil, &core.CorruptRecordingError{Offset: int64(start), Cause: err}
		}
	}
	return d.rec, nil
}

func (d *decoder) record() error {
	kind, err := codec.ReadByte(d.buf, d.pos)
	if err != nil {
		return err
	}
	d.pos++
	switch core.EntryKind(kind) {
	case core.EntryKindPool:
		return d.pool()
	case core.EntryKindData:
		return d.data()
	case core.EntryKindMarker:
		return d.marker()
	default:
		return fmt.Errorf("unknown record kind 0x%02X", kind)
	}
}

func (d *decoder) pool() error {
	count, err := codec.ReadInt32(d.buf, d.pos)
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("negative pool size %d", count)
	}
	d.pos += codec.SizeOfInt32
	for i := int32(0); i < count; i++ {
		s, n, err := codec.ReadString(d.buf, d.pos)
		if err != nil {
			return fmt.Errorf("pool string %d: %w", i, err)
		}
		d.pos += n
		d.strings = append(d.strings, s)
		d.rec.Pool().Intern(s)
	}
	return nil
}

func (d *decoder) readInt64() (int64, error) {
	v, err := codec.ReadInt64(d.buf, d.pos)
	if err != nil {
		return 0, err
	}
	d.pos += codec.SizeOfInt64
	return v, nil
}

// ref reads a pool reference and resolves it against the strings read so far.
func (d *decoder) ref() (string, error) {
	id, err := codec.ReadInt32(d.buf, d.pos)
	if err != nil {
		return "", err
	}
	if id < 0 || int(id) >= len(d.strings) {
		return "", fmt.Errorf("pool reference %d out of range [0, %d)", id, len(d.strings))
	}
	d.pos += codec.SizeOfInt32
	return d.strings[id], nil
}

func (d *decoder) data() error {
	ts, err := d.readInt64()
	if err != nil {
		return err
	}
	source, err := d.ref()
	if err != nil {
		return err
	}
	tag, err := d.ref()
	if err != nil {
		return err
	}
	adapter, err := d.registry.LookupForRead(tag)
	if err != nil {
		return err
	}
	value, n, err := adapter.Deserialize(d.buf, d.pos)
	if err != nil {
		return fmt.Errorf("%s payload: %w", tag, err)
	}
	d.pos += n
	return d.rec.Append(core.TimestampedData{SourceID: source, TypeTag: tag, Value: value, Timestamp: ts})
}

func (d *decoder) marker() error {
	ts, err := d.readInt64()
	if err != nil {
		return err
	}
	name, err := d.ref()
	if err != nil {
		return err
	}
	desc, err := d.ref()
	if err != nil {
		return err
	}
	b, err := codec.ReadByte(d.buf, d.pos)
	if err != nil {
		return err
	}
	importance := core.Importance(b)
	if !importance.Valid() {
		return fmt.Errorf("invalid marker importance %d", b)
	}
	d.pos++
	return d.rec.AddMarker(core.Marker{Name: name, Description: desc, Importance: importance, Timestamp: ts})
}
