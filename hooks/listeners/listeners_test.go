package listeners

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"log/slog"
	"testing"
	"time"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func preRecord(sourceID, tag string, value core.TypedValue) hooks.HookEvent {
	return hooks.NewPreRecordEvent(hooks.PreRecordPayload{SourceID: &sourceID, TypeTag: &tag, Value: &value})
}

type markerCall struct {
	name, desc string
	importance core.Importance
}

type fakeSink struct {
	calls []markerCall
	err   error
}

func (s *fakeSink) AddMarker(name, desc string, imp core.Importance) error {
	s.calls = append(s.calls, markerCall{name, desc, imp})
	return s.err
}

func TestMarkerGeneratorListener_OnEvent(t *testing.T) {
	logger, logBuf := newBufferLogger()
	sink := &fakeSink{}
	listener := NewMarkerGeneratorListener(logger, sink, "")
	ctx := context.Background()

	t.Run("AddsMarker", func(t *testing.T) {
		sink.calls = nil
		ev := preRecord(core.MarkerEventsPrefix+"autonomous/Info", "StringArray", core.StringArray{"auto started", "high"})
		require.NoError(t, listener.OnEvent(ctx, ev))
		require.Len(t, sink.calls, 1)
		assert.Equal(t, markerCall{"autonomous", "auto started", core.ImportanceHigh}, sink.calls[0])
	})

	t.Run("IgnoresOtherSources", func(t *testing.T) {
		sink.calls = nil
		require.NoError(t, listener.OnEvent(ctx, preRecord("/drive/speed", "Number", core.Number(1))))
		require.NoError(t, listener.OnEvent(ctx, preRecord(core.MarkerEventsPrefix+"autonomous/Other", "StringArray", core.StringArray{"a", "low"})))
		require.NoError(t, listener.OnEvent(ctx, preRecord(core.MarkerEventsPrefix+"Info", "StringArray", core.StringArray{"a", "low"})))
		assert.Empty(t, sink.calls)
	})

	t.Run("MalformedInfo", func(t *testing.T) {
		sink.calls = nil
		logBuf.Reset()
		require.NoError(t, listener.OnEvent(ctx, preRecord(core.MarkerEventsPrefix+"x/Info", "StringArray", core.StringArray{"only one"})))
		require.NoError(t, listener.OnEvent(ctx, preRecord(core.MarkerEventsPrefix+"x/Info", "String", core.String("oops"))))
		assert.Empty(t, sink.calls)
		assert.Contains(t, logBuf.String(), "Malformed marker info")
	})

	t.Run("InvalidImportance", func(t *testing.T) {
		sink.calls = nil
		logBuf.Reset()
		require.NoError(t, listener.OnEvent(ctx, preRecord(core.MarkerEventsPrefix+"x/Info", "StringArray", core.StringArray{"d", "urgent"})))
		assert.Empty(t, sink.calls)
		assert.Contains(t, logBuf.String(), "Invalid marker importance")
	})

	t.Run("SinkErrorDoesNotCancel", func(t *testing.T) {
		sink.calls = nil
		sink.err = errors.New("not running")
		defer func() { sink.err = nil }()
		logBuf.Reset()
		err := listener.OnEvent(ctx, preRecord(core.MarkerEventsPrefix+"x/Info", "StringArray", core.StringArray{"d", "normal"}))
		require.NoError(t, err)
		assert.Len(t, sink.calls, 1)
		assert.Contains(t, logBuf.String(), "Failed to add marker")
	})

	t.Run("IncorrectPayload", func(t *testing.T) {
		logBuf.Reset()
		require.NoError(t, listener.OnEvent(ctx, hooks.NewEvent(hooks.EventPreRecord, "bad")))
		assert.Contains(t, logBuf.String(), "incorrect payload type")
	})
}

func TestMarkerGeneratorListener_CustomPrefix(t *testing.T) {
	sink := &fakeSink{}
	listener := NewMarkerGeneratorListener(nil, sink, "/events")
	require.NoError(t, listener.OnEvent(context.Background(), preRecord("/events/shot/Info", "StringArray", core.StringArray{"fired", "Critical"})))
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "shot", sink.calls[0].name)
	assert.Equal(t, core.ImportanceCritical, sink.calls[0].importance)
}

type fakeRecorder struct {
	ops    []string
	format string
}

func (r *fakeRecorder) Start() error {
	r.ops = append(r.ops, "start")
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.ops = append(r.ops, "stop")
	return nil
}

func (r *fakeRecorder) SetFileNameFormat(format string) {
	r.ops = append(r.ops, "format")
	r.format = format
}

func TestRecorderController(t *testing.T) {
	t.Run("StartAndStop", func(t *testing.T) {
		rec := &fakeRecorder{}
		c := NewRecorderController(rec, RecorderControllerOptions{})

		c.OnValueChanged(core.RecordControlSource, "Boolean", core.Boolean(true))
		assert.Equal(t, []string{"stop", "format", "start"}, rec.ops)
		assert.Equal(t, core.DefaultFileNameFormat, rec.format)

		c.OnValueChanged(core.RecordControlSource, "Boolean", core.Boolean(true))
		assert.Len(t, rec.ops, 3, "an unchanged value does not restart the recorder")

		c.OnValueChanged(core.RecordControlSource, "Boolean", core.Boolean(false))
		assert.Equal(t, []string{"stop", "format", "start", "stop"}, rec.ops)
	})

	t.Run("FormatAppliesAtNextStart", func(t *testing.T) {
		rec := &fakeRecorder{}
		c := NewRecorderController(rec, RecorderControllerOptions{})

		c.OnValueChanged(core.FileNameFormatSource, "String", core.String("match-${date}"))
		assert.Empty(t, rec.ops)
		assert.Equal(t, "match-${date}", c.FileNameFormat())

		c.OnValueChanged(core.RecordControlSource, "Boolean", core.Boolean(true))
		assert.Equal(t, "match-${date}", rec.format)

		c.OnValueChanged(core.FileNameFormatSource, "String", core.String(""))
		assert.Equal(t, core.DefaultFileNameFormat, c.FileNameFormat())
	})

	t.Run("IgnoresWrongKinds", func(t *testing.T) {
		logger, logBuf := newBufferLogger()
		rec := &fakeRecorder{}
		c := NewRecorderController(rec, RecorderControllerOptions{Logger: logger})

		c.OnValueChanged(core.RecordControlSource, "Number", core.Number(1))
		c.OnValueChanged(core.FileNameFormatSource, "Number", core.Number(1))
		c.OnValueChanged("/other", "Boolean", core.Boolean(true))
		assert.Empty(t, rec.ops)
		assert.Contains(t, logBuf.String(), "non-boolean")
		assert.Equal(t, core.DefaultFileNameFormat, c.FileNameFormat())
	})

	t.Run("SuspendedDuringPlayback", func(t *testing.T) {
		rec := &fakeRecorder{}
		playing := true
		c := NewRecorderController(rec, RecorderControllerOptions{Suspended: func() bool { return playing }})

		c.OnValueChanged(core.RecordControlSource, "Boolean", core.Boolean(true))
		assert.Empty(t, rec.ops)

		playing = false
		c.OnValueChanged(core.RecordControlSource, "Boolean", core.Boolean(true))
		assert.Equal(t, []string{"stop", "format", "start"}, rec.ops)
	})

	t.Run("CustomSources", func(t *testing.T) {
		rec := &fakeRecorder{}
		c := NewRecorderController(rec, RecorderControllerOptions{ControlSource: "/rec", FormatSource: "/fmt"})
		c.OnValueChanged("/fmt", "String", core.String("x"))
		c.OnValueChanged("/rec", "Boolean", core.Boolean(true))
		assert.Equal(t, "x", rec.format)
	})
}

func TestOutlierDetectionListener_OnEvent(t *testing.T) {
	logger, logBuf := newBufferLogger()
	listener := NewOutlierDetectionListener(logger, []OutlierRule{
		{SourceID: "/drive/temp", Thresholds: Thresholds{Min: 0, Max: 90}},
		{SourceID: "/drive/currents", Thresholds: Thresholds{Min: -40, Max: 40}},
	})
	ctx := context.Background()
	post := func(id string, v core.TypedValue) hooks.HookEvent {
		return hooks.NewPostRecordEvent(hooks.PostRecordPayload{Data: core.TimestampedData{SourceID: id, Value: v, Timestamp: 42}})
	}

	t.Run("DetectsNumberOutlier", func(t *testing.T) {
		logBuf.Reset()
		require.NoError(t, listener.OnEvent(ctx, post("/drive/temp", core.Number(95.5))))
		out := logBuf.String()
		assert.Contains(t, out, "Outlier detected")
		assert.Contains(t, out, `"source_id":"/drive/temp"`)
		assert.Contains(t, out, `"value":95.5`)
		assert.Contains(t, out, `"max_threshold":90`)
	})

	t.Run("DetectsArrayElement", func(t *testing.T) {
		logBuf.Reset()
		require.NoError(t, listener.OnEvent(ctx, post("/drive/currents", core.NumberArray{1, -50, 3})))
		out := logBuf.String()
		assert.Contains(t, out, `"index":1`)
		assert.Contains(t, out, `"value":-50`)
	})

	t.Run("NoOutlier", func(t *testing.T) {
		logBuf.Reset()
		require.NoError(t, listener.OnEvent(ctx, post("/drive/temp", core.Number(90))))
		require.NoError(t, listener.OnEvent(ctx, post("/drive/other", core.Number(1000))))
		require.NoError(t, listener.OnEvent(ctx, post("/drive/temp", core.String("hot"))))
		assert.Empty(t, logBuf.String())
	})

	t.Run("IgnoresOtherEvents", func(t *testing.T) {
		logBuf.Reset()
		require.NoError(t, listener.OnEvent(ctx, hooks.NewOnSourceCreateEvent(hooks.SourceCreatePayload{SourceID: "/drive/temp"})))
		assert.Empty(t, logBuf.String())
	})
}

func TestCardinalityAlerterListener_OnEvent(t *testing.T) {
	ctx := context.Background()
	create := func(id string) hooks.HookEvent {
		return hooks.NewOnSourceCreateEvent(hooks.SourceCreatePayload{SourceID: id, TypeTag: "Number"})
	}

	t.Run("WarnsOnEverySource", func(t *testing.T) {
		logger, logBuf := newBufferLogger()
		listener := NewCardinalityAlerterListener(logger, 0)
		require.NoError(t, listener.OnEvent(ctx, create("/a")))
		out := logBuf.String()
		assert.Contains(t, out, "New source recorded")
		assert.Contains(t, out, `"source_id":"/a"`)
		assert.Contains(t, out, `"source_count":1`)
		assert.Equal(t, int64(1), listener.Sources())
	})

	t.Run("WarnsBeyondLimit", func(t *testing.T) {
		logger, logBuf := newBufferLogger()
		listener := NewCardinalityAlerterListener(logger, 2)
		require.NoError(t, listener.OnEvent(ctx, create("/a")))
		require.NoError(t, listener.OnEvent(ctx, create("/b")))
		assert.Empty(t, logBuf.String())
		require.NoError(t, listener.OnEvent(ctx, create("/c")))
		assert.Contains(t, logBuf.String(), `"source_id":"/c"`)
	})

	t.Run("IncorrectPayload", func(t *testing.T) {
		logger, logBuf := newBufferLogger()
		listener := NewCardinalityAlerterListener(logger, 0)
		require.NoError(t, listener.OnEvent(ctx, hooks.NewEvent(hooks.EventOnSourceCreate, 7)))
		assert.Contains(t, logBuf.String(), "incorrect payload type")
		assert.Zero(t, listener.Sources())
	})
}

func TestFlushStatsListener_OnEvent(t *testing.T) {
	// expvars are global; reset them for a clean run.
	initFlushMetrics()
	flushBytesTotal.Set(0)
	flushEntriesTotal.Set(0)
	flushStringsTotal.Set(0)
	flushEventsTotal.Set(0)
	flushErrorsTotal.Set(0)
	flushDurationTotal.Set(0)

	listener := NewFlushStatsListener(nil)
	require.NotNil(t, listener)
	ctx := context.Background()

	require.NoError(t, listener.OnEvent(ctx, hooks.NewPostFlushEvent(hooks.PostFlushPayload{
		Full: true, Entries: 10, Strings: 4, Bytes: 400, Duration: 2 * time.Millisecond,
	})))
	require.NoError(t, listener.OnEvent(ctx, hooks.NewPostFlushEvent(hooks.PostFlushPayload{
		Entries: 10, Bytes: 200, Duration: time.Millisecond,
	})))
	require.NoError(t, listener.OnEvent(ctx, hooks.NewPostFlushEvent(hooks.PostFlushPayload{
		Error: errors.New("disk full"),
	})))
	require.NoError(t, listener.OnEvent(ctx, hooks.NewPostLoadEvent(hooks.PostLoadPayload{})))

	assert.Equal(t, int64(600), flushBytesTotal.Value())
	assert.Equal(t, int64(20), flushEntriesTotal.Value())
	assert.Equal(t, int64(4), flushStringsTotal.Value())
	assert.Equal(t, int64(3), flushEventsTotal.Value())
	assert.Equal(t, int64(1), flushErrorsTotal.Value())
	assert.Equal(t, int64(3000), flushDurationTotal.Value())

	v := expvar.Get("sbr_flush_bytes_per_entry")
	require.NotNil(t, v)
	assert.Equal(t, "30", v.String())

	// A second listener shares the same counters.
	NewFlushStatsListener(nil)
	assert.Equal(t, int64(600), flushBytesTotal.Value())
}
