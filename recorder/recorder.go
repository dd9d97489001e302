// Package recorder captures live source values into a recording and keeps the
// session file on disk up to date while the session runs.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
	"github.com/INLOpen/sbr/internal/metrics"
	"github.com/INLOpen/sbr/recording"
	"github.com/INLOpen/sbr/sbrfile"
	"github.com/INLOpen/sbr/sources"
	"github.com/INLOpen/sbr/sys"
	"github.com/INLOpen/sbr/utils/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrLowDiskSpace is reported for flushes skipped by the free space guard.
var ErrLowDiskSpace = errors.New("free disk space below configured minimum")

// session is the state of one Start/Stop cycle.
type session struct {
	id     string
	path   string
	start  time.Time
	rec    *recording.Recording
	writer *sbrfile.Writer
	unlock func() error
	stop   chan struct{}
	done   chan struct{}
}

// Recorder records values into an in-memory recording and flushes it to a
// session file every FlushInterval. It is safe for concurrent producers.
type Recorder struct {
	registry *adapters.Registry
	layer    sources.Layer
	hooks    hooks.HookManager
	logger   *slog.Logger
	clock    clock.Clock
	tracer   trace.Tracer
	metrics  *Metrics
	opts     Options

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	// mu guards the fields below and every append to the live recording.
	mu      sync.Mutex
	current *session
	last    *session
	format  string

	unsubscribe func()
}

var _ sources.Listener = (*Recorder)(nil)

// New creates a stopped recorder. When opts.Sources is set the recorder
// subscribes to it immediately; call Close to detach.
func New(opts Options) *Recorder {
	opts.applyDefaults()
	r := &Recorder{
		registry: opts.Registry,
		layer:    opts.Sources,
		hooks:    opts.Hooks,
		logger:   opts.Logger.With("component", "Recorder"),
		clock:    opts.Clock,
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
		opts:     opts,
		format:   opts.FileNameFormat,
	}
	if r.layer != nil {
		r.unsubscribe = r.layer.Subscribe(r)
	}
	return r
}

// OnValueChanged is the capture hook called by the source layer.
func (r *Recorder) OnValueChanged(sourceID, typeTag string, value core.TypedValue) {
	if err := r.Record(sourceID, typeTag, value); err != nil {
		r.logger.Warn("Dropped sample", "source_id", sourceID, "type", typeTag, "error", err)
	}
}

// Running reports whether a session is active.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Recording returns the recording of the active session, or of the last one
// when stopped. It is nil before the first Start.
func (r *Recorder) Recording() *recording.Recording {
	s := r.sessionOrLast()
	if s == nil {
		return nil
	}
	return s.rec
}

// File returns the path of the active or last session file.
func (r *Recorder) File() string {
	s := r.sessionOrLast()
	if s == nil {
		return ""
	}
	return s.path
}

// SessionID returns the id of the active or last session.
func (r *Recorder) SessionID() string {
	s := r.sessionOrLast()
	if s == nil {
		return ""
	}
	return s.id
}

func (r *Recorder) sessionOrLast() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return r.current
	}
	return r.last
}

// SetFileNameFormat sets the file name format of the next session.
func (r *Recorder) SetFileNameFormat(format string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if format == "" {
		format = core.DefaultFileNameFormat
	}
	r.format = format
}

// FileNameFormat returns the format the next session will use.
func (r *Recorder) FileNameFormat() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

// Start begins a new session. It is a no-op when a session is already running.
func (r *Recorder) Start() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.Running() {
		return nil
	}

	now := r.clock.Now()
	r.mu.Lock()
	format := r.format
	r.mu.Unlock()

	path, err := r.sessionPath(format, now)
	if err != nil {
		return err
	}
	if err := sys.EnsureDir(path); err != nil {
		return fmt.Errorf("failed to create recording directory for %s: %w", path, err)
	}

	s := &session{
		id:    uuid.NewString(),
		path:  path,
		start: now,
		rec:   recording.New(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if r.opts.LockFile {
		unlock, err := sys.AcquireOSFileLock(sys.LockPath(path), r.opts.LockTimeout)
		if err != nil {
			return fmt.Errorf("failed to lock recording file %s: %w", path, err)
		}
		s.unlock = unlock
	}
	s.writer = sbrfile.NewWriter(path, r.registry, sbrfile.WithLogger(r.opts.Logger), sbrfile.WithTracer(r.tracer))

	created := r.recordInitialConditions(s)

	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
	r.metrics.SessionsTotal.Add(1)

	ctx := context.Background()
	for _, d := range created {
		r.triggerPost(ctx, hooks.NewOnSourceCreateEvent(hooks.SourceCreatePayload{SourceID: d.SourceID, TypeTag: d.TypeTag}))
	}

	// The file exists from the start, even for an empty session.
	if err := r.flush(ctx, s); err != nil {
		r.logger.Error("Initial flush failed; will retry", "path", path, "error", err)
	}

	// The ticker is created before the loop runs so that no interval is missed.
	go r.flushLoop(s, r.clock.NewTicker(r.opts.FlushInterval))

	r.logger.Info("Recording started", "session_id", s.id, "path", path, "initial_sources", len(created))
	r.triggerPost(ctx, hooks.NewPostRecorderStartEvent(hooks.RecorderSessionPayload{SessionID: s.id, Path: path, Entries: s.rec.Len()}))
	return nil
}

// recordInitialConditions appends the current value of every live source at t=0.
func (r *Recorder) recordInitialConditions(s *session) []core.TimestampedData {
	if r.layer == nil {
		return nil
	}
	var created []core.TimestampedData
	for _, d := range r.layer.Current() {
		if err := r.validate(d.TypeTag, d.Value); err != nil {
			r.logger.Warn("Skipping initial value", "source_id", d.SourceID, "type", d.TypeTag, "error", err)
			continue
		}
		d.Timestamp = 0
		if err := s.rec.Append(d); err != nil {
			r.logger.Warn("Skipping initial value", "source_id", d.SourceID, "error", err)
			continue
		}
		r.metrics.RecordsTotal.Add(1)
		r.metrics.SourcesTotal.Add(1)
		created = append(created, d)
	}
	return created
}

// sessionPath returns Dir/<date>/<name>, adding a numeric suffix when a file
// of that name already exists.
func (r *Recorder) sessionPath(format string, now time.Time) (string, error) {
	dir := filepath.Join(r.opts.Dir, now.Format("2006-01-02"))
	name := core.FormatRecordingFileName(format, now)
	if strings.ContainsAny(name, `/\`) {
		return "", &core.ValidationError{Field: "file_name_format", Value: format, Message: "file name must not contain path separators"}
	}
	path := filepath.Join(dir, name)
	base := strings.TrimSuffix(name, core.RecordingFileSuffix)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, core.RecordingFileSuffix))
	}
}

func (r *Recorder) flushLoop(s *session, ticker clock.Ticker) {
	defer close(s.done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := r.flush(context.Background(), s); err != nil {
				r.logger.Error("Periodic flush failed; will retry", "path", s.path, "error", err)
			}
		case <-s.stop:
			return
		}
	}
}

// Flush appends everything recorded since the last flush to the session file.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()
	if s == nil {
		return core.ErrNotRunning
	}
	return r.flush(ctx, s)
}

func (r *Recorder) flush(ctx context.Context, s *session) (err error) {
	ctx, span := r.tracer.Start(ctx, "Recorder.Flush")
	span.SetAttributes(attribute.String("sbr.session_id", s.id), attribute.String("sbr.path", s.path))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	startTime := r.clock.Now()
	payload := hooks.PostFlushPayload{SessionID: s.id, Path: s.path}
	defer func() {
		payload.Duration = r.clock.Since(startTime)
		payload.Error = err
		r.triggerPost(ctx, hooks.NewPostFlushEvent(payload))
	}()

	if err := r.checkDiskSpace(s.path); err != nil {
		r.metrics.FlushSkippedTotal.Add(1)
		return err
	}

	res, err := s.writer.Update(ctx, s.rec)
	if err != nil {
		r.metrics.FlushErrorsTotal.Add(1)
		return fmt.Errorf("failed to flush %s: %w", s.path, err)
	}
	r.metrics.FlushTotal.Add(1)
	r.metrics.FlushBytesTotal.Add(int64(res.Bytes))
	r.metrics.FlushEntriesTotal.Add(int64(res.Entries))
	metrics.ObserveLatency(r.metrics.FlushLatencyHist, r.clock.Since(startTime).Seconds())

	payload.Full = res.Full
	payload.Entries = res.Entries
	payload.Strings = res.Strings
	payload.Bytes = res.Bytes
	span.SetAttributes(attribute.Int("sbr.entries", res.Entries), attribute.Int("sbr.bytes", res.Bytes))
	if res.Bytes > 0 {
		r.logger.Debug("Flushed recording", "path", s.path, "full", res.Full, "entries", res.Entries, "bytes", res.Bytes)
	}
	return nil
}

func (r *Recorder) checkDiskSpace(path string) error {
	if r.opts.MinFreeDiskBytes == 0 {
		return nil
	}
	free, err := sys.FreeDiskBytes(filepath.Dir(path))
	if err != nil {
		// Unknown free space does not block recording.
		r.logger.Warn("Could not determine free disk space", "path", path, "error", err)
		return nil
	}
	if free < r.opts.MinFreeDiskBytes {
		r.logger.Warn("Skipping flush, disk space low", "path", path, "free_bytes", free, "min_free_bytes", r.opts.MinFreeDiskBytes)
		return fmt.Errorf("%w: %d < %d bytes", ErrLowDiskSpace, free, r.opts.MinFreeDiskBytes)
	}
	return nil
}

// Stop ends the session with a final flush and releases the file lock. It is
// a no-op when no session is running. The final flush error, if any, is returned.
func (r *Recorder) Stop() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	s := r.current
	r.current = nil
	if s != nil {
		r.last = s
	}
	r.mu.Unlock()
	if s == nil {
		return nil
	}

	close(s.stop)
	<-s.done

	ctx := context.Background()
	flushErr := r.flush(ctx, s)
	if flushErr != nil {
		r.logger.Error("Final flush failed", "path", s.path, "error", flushErr)
	}
	if s.unlock != nil {
		if err := s.unlock(); err != nil {
			r.logger.Warn("Failed to release recording file lock", "path", s.path, "error", err)
		}
	}

	r.logger.Info("Recording stopped", "session_id", s.id, "path", s.path, "entries", s.rec.Len())
	r.triggerPost(ctx, hooks.NewPostRecorderStopEvent(hooks.RecorderSessionPayload{SessionID: s.id, Path: s.path, Entries: s.rec.Len()}))
	return flushErr
}

// Reset stops the current session and starts a new one with a new file.
func (r *Recorder) Reset() error {
	if err := r.Stop(); err != nil {
		r.logger.Warn("Stop during reset reported an error", "error", err)
	}
	return r.Start()
}

// Close stops the recorder and detaches it from the source layer.
func (r *Recorder) Close() error {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	return r.Stop()
}

func (r *Recorder) validate(typeTag string, value core.TypedValue) error {
	adapter, err := r.registry.LookupForWrite(typeTag)
	if err != nil {
		return err
	}
	if _, err := adapter.SerializedSize(value); err != nil {
		return err
	}
	return nil
}

// Record appends a sample stamped with the time since the session started.
// It does nothing when no session is running. Values whose type tag has no
// adapter, or whose variant the adapter cannot serialize, are rejected with
// an UnsupportedTypeError and nothing is appended.
func (r *Recorder) Record(sourceID, typeTag string, value core.TypedValue) error {
	if !r.Running() {
		return nil
	}

	ctx := context.Background()
	if err := r.hooks.Trigger(ctx, hooks.NewPreRecordEvent(hooks.PreRecordPayload{
		SourceID: &sourceID,
		TypeTag:  &typeTag,
		Value:    &value,
	})); err != nil {
		r.metrics.RecordErrorsTotal.Add(1)
		return fmt.Errorf("sample from %s rejected by hook: %w", sourceID, err)
	}

	if err := r.validate(typeTag, value); err != nil {
		r.metrics.RecordErrorsTotal.Add(1)
		return err
	}

	r.mu.Lock()
	s := r.current
	if s == nil {
		r.mu.Unlock()
		return nil
	}
	d := core.TimestampedData{
		SourceID:  sourceID,
		TypeTag:   typeTag,
		Value:     value,
		Timestamp: r.timestampLocked(s),
	}
	isNew := !s.rec.HasSource(sourceID)
	err := s.rec.Append(d)
	r.mu.Unlock()
	if err != nil {
		r.metrics.RecordErrorsTotal.Add(1)
		return err
	}

	r.metrics.RecordsTotal.Add(1)
	if isNew {
		r.metrics.SourcesTotal.Add(1)
		r.triggerPost(ctx, hooks.NewOnSourceCreateEvent(hooks.SourceCreatePayload{SourceID: sourceID, TypeTag: typeTag}))
	}
	r.triggerPost(ctx, hooks.NewPostRecordEvent(hooks.PostRecordPayload{Data: d}))
	return nil
}

// AddMarker adds a marker at the current session time. It does nothing when
// no session is running.
func (r *Recorder) AddMarker(name, description string, importance core.Importance) error {
	if !importance.Valid() {
		return &core.ValidationError{Field: "importance", Value: importance.String(), Message: "unknown importance level"}
	}

	r.mu.Lock()
	s := r.current
	if s == nil {
		r.mu.Unlock()
		return nil
	}
	m := core.Marker{
		Name:        name,
		Description: description,
		Importance:  importance,
		Timestamp:   r.timestampLocked(s),
	}
	err := s.rec.AddMarker(m)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.metrics.MarkersTotal.Add(1)
	r.logger.Debug("Marker added", "marker", name, "importance", importance.String(), "timestamp", m.Timestamp)
	r.triggerPost(context.Background(), hooks.NewPostMarkerEvent(hooks.MarkerPayload{Marker: m}))
	return nil
}

// timestampLocked returns the session time in milliseconds, never earlier
// than the last entry.
func (r *Recorder) timestampLocked(s *session) int64 {
	ts := r.clock.Since(s.start).Milliseconds()
	if last := s.rec.Last(); s.rec.Len() > 0 && ts < last {
		ts = last
	}
	return ts
}

func (r *Recorder) triggerPost(ctx context.Context, event hooks.HookEvent) {
	// Post-hook errors are logged by the manager.
	_ = r.hooks.Trigger(ctx, event)
}
