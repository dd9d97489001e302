package sbrfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/INLOpen/sbr/codec"
	"github.com/INLOpen/sbr/compressors"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/sys"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// archiveHeaderSize covers the magic, the compression byte and the original size.
const archiveHeaderSize = codec.SizeOfInt32 + codec.SizeOfByte + codec.SizeOfInt64

// IsArchive reports whether data starts with the archive magic.
func IsArchive(data []byte) bool {
	magic, err := codec.ReadUint32(data, 0)
	return err == nil && magic == core.ArchiveMagicNumber
}

// CompressRecording wraps raw recording bytes in an archive.
func CompressRecording(raw []byte, ct core.CompressionType) ([]byte, error) {
	compressor, err := compressors.ForType(ct)
	if err != nil {
		return nil, err
	}
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	if err := compressor.CompressTo(buf, raw); err != nil {
		return nil, fmt.Errorf("%s compression failed: %w", ct, err)
	}

	out := make([]byte, 0, archiveHeaderSize+buf.Len())
	out = codec.AppendUint32(out, core.ArchiveMagicNumber)
	out = append(out, byte(ct))
	out = binary.BigEndian.AppendUint64(out, uint64(len(raw)))
	return append(out, buf.Bytes()...), nil
}

// Unarchive returns the recording bytes held in an archive.
func Unarchive(data []byte) ([]byte, error) {
	if len(data) < archiveHeaderSize {
		return nil, &core.CorruptRecordingError{Offset: 0, Cause: &core.TruncatedBufferError{Pos: 0, Needed: archiveHeaderSize, Available: len(data)}}
	}
	ct := core.CompressionType(data[codec.SizeOfInt32])
	size := binary.BigEndian.Uint64(data[codec.SizeOfInt32+codec.SizeOfByte:])
	compressor, err := compressors.ForType(ct)
	if err != nil {
		return nil, &core.CorruptRecordingError{Offset: codec.SizeOfInt32, Cause: err}
	}
	if size > uint64(1)<<40 {
		return nil, &core.CorruptRecordingError{Offset: codec.SizeOfInt32 + codec.SizeOfByte, Cause: fmt.Errorf("implausible archive size %d", size)}
	}

	rc, err := compressor.Decompress(data[archiveHeaderSize:], int(size))
	if err != nil {
		return nil, &core.CorruptRecordingError{Offset: archiveHeaderSize, Cause: err}
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, &core.CorruptRecordingError{Offset: archiveHeaderSize, Cause: err}
	}
	if uint64(len(raw)) != size {
		return nil, &core.CorruptRecordingError{Offset: archiveHeaderSize, Cause: fmt.Errorf("archive holds %d bytes, header declares %d", len(raw), size)}
	}
	return raw, nil
}

// Archive compresses the recording at src into dst. The source must be a
// plain recording file.
func Archive(ctx context.Context, src, dst string, ct core.CompressionType, opts ...Option) (err error) {
	o := buildOptions(opts)
	_, span := o.Tracer.Start(ctx, "sbrfile.Archive", trace.WithAttributes(
		attribute.String("sbr.src", src),
		attribute.String("sbr.dst", dst),
		attribute.String("sbr.compression", ct.String()),
	))
	defer func() { endSpan(span, err) }()

	raw, err := sys.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if IsArchive(raw) {
		return fmt.Errorf("%s is already an archive", src)
	}
	if magic, merr := codec.ReadUint32(raw, 0); merr != nil || magic != core.RecordingMagicNumber {
		return &core.CorruptRecordingError{Offset: 0, Cause: errBadMagic}
	}

	out, err := CompressRecording(raw, ct)
	if err != nil {
		return err
	}
	if err := sys.EnsureDir(dst); err != nil {
		return err
	}
	err = sys.WriteFileAtomic(dst, func(w io.Writer) error {
		_, werr := w.Write(out)
		return werr
	})
	if err != nil {
		return fmt.Errorf("failed to write archive %s: %w", dst, err)
	}
	o.Logger.Info("Archived recording", "src", src, "dst", dst, "compression", ct.String(), "raw_bytes", len(raw), "archive_bytes", len(out))
	return nil
}
