package recording

import (
	"fmt"
	"sync"

	"github.com/INLOpen/sbr/core"
)

// Recording is an ordered log of samples and markers. Entries are kept in
// timestamp order; ties keep insertion order. Appends are safe for concurrent
// use with readers.
type Recording struct {
	mu        sync.RWMutex
	entries   []core.Entry
	frames    []core.TimestampedData
	markers   []core.Marker
	sourceIDs []string
	sources   map[string]struct{}
	pool      *ConstantPool
	index     *FrameIndex
	first     int64
	last      int64
}

// New creates an empty recording.
func New() *Recording {
	return &Recording{
		sources: make(map[string]struct{}),
		pool:    NewConstantPool(),
		index:   NewFrameIndex(),
	}
}

// FromEntries builds a recording from entries that are already in order.
func FromEntries(entries []core.Entry) (*Recording, error) {
	r := New()
	for i, e := range entries {
		if err := r.AppendEntry(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return r, nil
}

func (r *Recording) checkOrderLocked(ts int64) error {
	if len(r.entries) > 0 && ts < r.last {
		return fmt.Errorf("%w: %d < %d", core.ErrOutOfOrder, ts, r.last)
	}
	return nil
}

func (r *Recording) trackTimeLocked(ts int64) {
	if len(r.entries) == 0 {
		r.first = ts
	}
	r.last = ts
}

// Append adds a sample. The timestamp must not precede the last entry.
func (r *Recording) Append(d core.TimestampedData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOrderLocked(d.Timestamp); err != nil {
		return err
	}
	r.trackTimeLocked(d.Timestamp)
	r.entries = append(r.entries, core.DataEntry(d))
	r.index.Add(d.Timestamp, len(r.frames))
	r.frames = append(r.frames, d)
	if _, ok := r.sources[d.SourceID]; !ok {
		r.sources[d.SourceID] = struct{}{}
		r.sourceIDs = append(r.sourceIDs, d.SourceID)
	}
	return nil
}

// AddMarker adds a marker. The timestamp must not precede the last entry.
// Several markers may share a timestamp; consumers decide how to treat that.
func (r *Recording) AddMarker(m core.Marker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOrderLocked(m.Timestamp); err != nil {
		return err
	}
	r.trackTimeLocked(m.Timestamp)
	r.entries = append(r.entries, core.MarkerEntry(m))
	r.markers = append(r.markers, m)
	return nil
}

// AppendEntry adds either variant of an entry.
func (r *Recording) AppendEntry(e core.Entry) error {
	switch {
	case e.Data != nil:
		return r.Append(*e.Data)
	case e.Marker != nil:
		return r.AddMarker(*e.Marker)
	default:
		return fmt.Errorf("empty entry")
	}
}

// Len returns the number of entries, samples and markers combined.
func (r *Recording) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of all entries in order.
func (r *Recording) Entries() []core.Entry {
	return r.EntriesSince(0)
}

// EntriesSince returns a copy of the entries after the first n.
func (r *Recording) EntriesSince(n int) []core.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(r.entries) {
		return nil
	}
	out := make([]core.Entry, len(r.entries)-n)
	copy(out, r.entries[n:])
	return out
}

// Data returns a copy of the samples, excluding markers. This is the frame sequence.
func (r *Recording) Data() []core.TimestampedData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.TimestampedData, len(r.frames))
	copy(out, r.frames)
	return out
}

// NumFrames returns the number of samples.
func (r *Recording) NumFrames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.frames)
}

// Frame returns the sample at position i.
func (r *Recording) Frame(i int) (core.TimestampedData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.frames) {
		return core.TimestampedData{}, false
	}
	return r.frames[i], true
}

// FrameAt returns the first frame at or after the timestamp.
func (r *Recording) FrameAt(timestamp int64) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.SeekFrame(timestamp)
}

// Markers returns a copy of the markers in order.
func (r *Recording) Markers() []core.Marker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Marker, len(r.markers))
	copy(out, r.markers)
	return out
}

// SourceIDs returns the distinct source ids in the order they first appeared.
func (r *Recording) SourceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.sourceIDs))
	copy(out, r.sourceIDs)
	return out
}

// HasSource reports whether any sample came from sourceID.
func (r *Recording) HasSource(sourceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[sourceID]
	return ok
}

// First returns the timestamp of the first entry, or 0 when empty.
func (r *Recording) First() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.first
}

// Last returns the timestamp of the last entry, or 0 when empty.
func (r *Recording) Last() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Length returns the time spanned by the recording in milliseconds.
func (r *Recording) Length() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last - r.first
}

// Pool returns the constant pool used by writers of this recording.
func (r *Recording) Pool() *ConstantPool {
	return r.pool
}

// Snapshot returns an independent copy of the recording, including a copy of
// its constant pool with the same ids.
func (r *Recording) Snapshot() *Recording {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := New()
	for _, s := range r.pool.Since(0) {
		cp.pool.Intern(s)
	}
	cp.entries = append([]core.Entry(nil), r.entries...)
	cp.frames = append([]core.TimestampedData(nil), r.frames...)
	cp.markers = append([]core.Marker(nil), r.markers...)
	cp.sourceIDs = append([]string(nil), r.sourceIDs...)
	for id := range r.sources {
		cp.sources[id] = struct{}{}
	}
	for i, f := range cp.frames {
		cp.index.Add(f.Timestamp, i)
	}
	cp.first, cp.last = r.first, r.last
	return cp
}
