package sbrfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/recording"
	"github.com/INLOpen/sbr/sys"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Save writes the whole recording to path. The file is written to a temporary
// name, synced and renamed so that readers never see a partial file.
func Save(ctx context.Context, path string, rec *recording.Recording, registry *adapters.Registry, opts ...Option) (err error) {
	o := buildOptions(opts)
	_, span := o.Tracer.Start(ctx, "sbrfile.Save", trace.WithAttributes(attribute.String("sbr.path", path)))
	defer func() { endSpan(span, err) }()

	_, _, err = save(path, rec, registry)
	return err
}

func save(path string, rec *recording.Recording, registry *adapters.Registry) (entries, poolLen int, err error) {
	data, entries, poolLen, err := encodeFull(rec, registry)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to encode recording: %w", err)
	}
	if err := sys.EnsureDir(path); err != nil {
		return 0, 0, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	err = sys.WriteFileAtomic(path, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to write recording %s: %w", path, err)
	}
	return entries, poolLen, nil
}

// Load reads and parses the recording at path.
func Load(ctx context.Context, path string, registry *adapters.Registry, opts ...Option) (rec *recording.Recording, err error) {
	o := buildOptions(opts)
	_, span := o.Tracer.Start(ctx, "sbrfile.Load", trace.WithAttributes(attribute.String("sbr.path", path)))
	defer func() { endSpan(span, err) }()

	data, err := sys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording %s: %w", path, err)
	}
	rec, err = Decode(data, registry)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("sbr.entries", rec.Len()), attribute.Int("sbr.bytes", len(data)))
	o.Logger.Debug("Loaded recording", "path", path, "entries", rec.Len(), "bytes", len(data))
	return rec, nil
}

// UpdateResult describes what a Writer.Update call wrote.
type UpdateResult struct {
	// Full is set when the file was rewritten from scratch.
	Full    bool
	Entries int
	Strings int
	Bytes   int
}

// Writer keeps a session file in step with a growing recording. Each Update
// appends only the entries and pool strings written since the previous one.
type Writer struct {
	mu          sync.Mutex
	path        string
	registry    *adapters.Registry
	opts        Options
	written     int
	poolWritten int
	size        int64
}

// NewWriter creates a writer for path. Nothing is written until Update.
func NewWriter(path string, registry *adapters.Registry, opts ...Option) *Writer {
	return &Writer{path: path, registry: registry, opts: buildOptions(opts)}
}

// Path returns the file the writer maintains.
func (w *Writer) Path() string {
	return w.path
}

// Written returns the number of entries on disk.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Update brings the file up to date with rec. The first call performs a full
// save. Later calls append a pool segment with new strings, omitted when
// there are none, followed by the new entries. A failed append is truncated
// away so that the next call can retry it.
func (w *Writer) Update(ctx context.Context, rec *recording.Recording) (res UpdateResult, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, span := w.opts.Tracer.Start(ctx, "sbrfile.Writer.Update", trace.WithAttributes(attribute.String("sbr.path", w.path)))
	defer func() {
		span.SetAttributes(attribute.Int("sbr.entries", res.Entries), attribute.Int("sbr.bytes", res.Bytes), attribute.Bool("sbr.full", res.Full))
		endSpan(span, err)
	}()

	if w.size == 0 {
		return w.fullLocked(rec)
	}

	entries := rec.EntriesSince(w.written)
	if len(entries) == 0 && rec.Pool().Len() == w.poolWritten {
		return UpdateResult{}, nil
	}
	data, poolLen, err := encodeSegment(nil, entries, rec.Pool(), w.poolWritten, w.registry)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to encode update: %w", err)
	}
	if err := w.appendLocked(data); err != nil {
		return UpdateResult{}, err
	}
	res = UpdateResult{Entries: len(entries), Strings: poolLen - w.poolWritten, Bytes: len(data)}
	w.written += len(entries)
	w.poolWritten = poolLen
	w.size += int64(len(data))
	return res, nil
}

func (w *Writer) fullLocked(rec *recording.Recording) (UpdateResult, error) {
	entries, poolLen, err := save(w.path, rec, w.registry)
	if err != nil {
		return UpdateResult{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to stat %s: %w", w.path, err)
	}
	w.written = entries
	w.poolWritten = poolLen
	w.size = info.Size()
	w.opts.Logger.Debug("Wrote recording", "path", w.path, "entries", entries, "bytes", w.size)
	return UpdateResult{Full: true, Entries: entries, Strings: poolLen, Bytes: int(w.size)}, nil
}

func (w *Writer) appendLocked(data []byte) error {
	f, err := sys.OpenFile(w.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", w.path, err)
	}
	fail := func(cause error) error {
		if terr := f.Truncate(w.size); terr != nil {
			w.opts.Logger.Error("Failed to roll back partial append", "path", w.path, "error", terr)
		}
		f.Close()
		return cause
	}
	if _, err := f.Seek(w.size, io.SeekStart); err != nil {
		return fail(fmt.Errorf("failed to seek %s: %w", w.path, err))
	}
	if _, err := f.Write(data); err != nil {
		return fail(fmt.Errorf("failed to append to %s: %w", w.path, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync %s: %w", w.path, err))
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}
	return nil
}

// PoolWritten returns the number of pool strings on disk.
func (w *Writer) PoolWritten() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.poolWritten
}
