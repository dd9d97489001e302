package playback

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
	"github.com/INLOpen/sbr/internal/testutil"
	"github.com/INLOpen/sbr/recorder"
	"github.com/INLOpen/sbr/recording"
	"github.com/INLOpen/sbr/sbrfile"
	"github.com/INLOpen/sbr/sources"
	"github.com/INLOpen/sbr/utils/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	clock *clock.MockClock
	layer *sources.MemoryLayer
	slot  *Slot
	opts  Options
}

func newHarness() *harness {
	h := &harness{
		clock: clock.NewMockClock(time.Unix(0, 0)),
		layer: sources.NewMemoryLayer(nil),
		slot:  NewSlot(),
	}
	h.opts = Options{Sources: h.layer, Clock: h.clock, Slot: h.slot}
	return h
}

func (h *harness) value(t *testing.T, source string) core.TypedValue {
	t.Helper()
	d, ok := h.layer.Value(source)
	require.True(t, ok, "source %s has no value", source)
	return d.Value
}

func (h *harness) start(t *testing.T, rec *recording.Recording) *Playback {
	t.Helper()
	p, err := New(rec, h.opts)
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	return p
}

// threeFrames is foo sampled at 0, 100 and 250 ms.
func threeFrames(t *testing.T) *recording.Recording {
	return testutil.NewRecording(t,
		testutil.Number("foo", 0, 0),
		testutil.Number("foo", 100, 1),
		testutil.Number("foo", 250, 2),
	)
}

// mixed interleaves three sources.
func mixed(t *testing.T) *recording.Recording {
	return testutil.NewRecording(t,
		testutil.Number("a", 0, 1),
		testutil.Number("b", 10, 1),
		testutil.Number("a", 20, 2),
		testutil.Marker("half", "", core.ImportanceNormal, 25),
		testutil.Number("c", 30, 1),
		testutil.Number("a", 40, 3),
		testutil.Number("b", 50, 2),
	)
}

func TestPlayback_LoadAppliesFirstFrame(t *testing.T) {
	h := newHarness()
	p := h.start(t, threeFrames(t))

	assert.Equal(t, Paused, p.State())
	assert.Equal(t, 0, p.Frame())
	assert.Equal(t, 2, p.MaxFrame())
	assert.Equal(t, 3, p.NumFrames())
	assert.Equal(t, core.Number(0), h.value(t, "foo"))
	assert.False(t, h.layer.Connected(), "live sources are disconnected while a playback is loaded")
	assert.Same(t, p, h.slot.Current())
	assert.True(t, h.slot.Active())

	cur, ok := p.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, int64(0), cur.Timestamp)
}

func TestPlayback_Timing(t *testing.T) {
	h := newHarness()
	p := h.start(t, threeFrames(t))

	require.NoError(t, p.Play())
	assert.Equal(t, Playing, p.State())

	h.clock.Advance(99 * time.Millisecond)
	assert.Equal(t, 0, p.Frame())
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, p.Frame())
	assert.Equal(t, core.Number(1), h.value(t, "foo"))

	h.clock.Advance(149 * time.Millisecond)
	assert.Equal(t, 1, p.Frame())
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, 2, p.Frame())

	// At the end without looping the playback stays playing with nothing scheduled.
	h.clock.Advance(time.Second)
	assert.Equal(t, 2, p.Frame())
	assert.Equal(t, Playing, p.State())
	assert.Zero(t, h.clock.Pending())

	// Play at the end resubmits without error.
	p.Pause()
	require.NoError(t, p.Play())
	assert.Zero(t, h.clock.Pending())
}

func TestPlayback_Speed(t *testing.T) {
	h := newHarness()
	h.opts.Speed = 2
	p := h.start(t, threeFrames(t))

	require.NoError(t, p.Play())
	h.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, p.Frame())
	h.clock.Advance(75 * time.Millisecond)
	assert.Equal(t, 2, p.Frame())
}

func TestPlayback_Looping(t *testing.T) {
	h := newHarness()
	h.opts.Looping = true
	h.opts.Metrics = NewMetrics(false, "")
	p := h.start(t, threeFrames(t))
	assert.True(t, p.Looping())

	require.NoError(t, p.Play())
	h.clock.Advance(250 * time.Millisecond)
	assert.Equal(t, 0, p.Frame(), "the last frame wraps to the first without delay")
	assert.Equal(t, core.Number(0), h.value(t, "foo"))
	assert.Equal(t, int64(1), h.opts.Metrics.LoopsTotal.Value())

	h.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, p.Frame())
}

func TestPlayback_EnableLoopingAtEnd(t *testing.T) {
	h := newHarness()
	p := h.start(t, threeFrames(t))

	require.NoError(t, p.Play())
	h.clock.Advance(250 * time.Millisecond)
	require.Equal(t, 2, p.Frame())

	p.SetLooping(true)
	h.clock.Advance(0)
	assert.Equal(t, 0, p.Frame())
}

func TestPlayback_SingleFrameLoopDoesNotSpin(t *testing.T) {
	h := newHarness()
	h.opts.Looping = true
	p := h.start(t, testutil.NewRecording(t, testutil.Number("x", 5, 1)))

	require.NoError(t, p.Play())
	h.clock.Advance(time.Second)
	assert.Equal(t, 0, p.Frame())
	assert.Zero(t, h.clock.Pending())
}

func TestPlayback_Pause(t *testing.T) {
	h := newHarness()
	p := h.start(t, threeFrames(t))

	require.NoError(t, p.Play())
	h.clock.Advance(50 * time.Millisecond)
	p.Pause()
	assert.Equal(t, Paused, p.State())
	assert.Zero(t, h.clock.Pending())

	h.clock.Advance(time.Second)
	assert.Equal(t, 0, p.Frame())

	require.NoError(t, p.Unpause())
	h.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, p.Frame(), "resuming waits the full gap again")
}

func TestPlayback_SetFrameBurst(t *testing.T) {
	h := newHarness()
	h.opts.Metrics = NewMetrics(false, "")
	p := h.start(t, mixed(t))
	require.Equal(t, 5, p.MaxFrame(), "markers are not frames")

	// Forward: each source gets its latest value at or before the target.
	require.NoError(t, p.SetFrame(4))
	assert.Equal(t, 4, p.Frame())
	assert.Equal(t, core.Number(3), h.value(t, "a"))
	assert.Equal(t, core.Number(1), h.value(t, "b"))
	assert.Equal(t, core.Number(1), h.value(t, "c"))
	assert.Equal(t, int64(3), h.opts.Metrics.BurstWritesTotal.Value())

	// Backward: each source gets the value nearest the target within the span.
	require.NoError(t, p.SetFrame(1))
	assert.Equal(t, core.Number(2), h.value(t, "a"))
	assert.Equal(t, core.Number(1), h.value(t, "b"))
	assert.Equal(t, int64(2), h.opts.Metrics.SeeksTotal.Value())

	// Setting the current frame writes nothing.
	before := h.opts.Metrics.FramesAppliedTotal.Value()
	require.NoError(t, p.SetFrame(1))
	assert.Equal(t, before, h.opts.Metrics.FramesAppliedTotal.Value())
}

func TestPlayback_SetFrameOutOfRange(t *testing.T) {
	h := newHarness()
	p := h.start(t, threeFrames(t))

	for _, n := range []int{-1, 3} {
		err := p.SetFrame(n)
		require.Error(t, err)
		assert.True(t, core.IsFrameIndexOutOfRangeError(err))
		var oor *core.FrameIndexOutOfRangeError
		require.ErrorAs(t, err, &oor)
		assert.Equal(t, 2, oor.Max)
	}
	assert.Equal(t, 0, p.Frame())
}

func TestPlayback_SetFrameWhilePlayingAdvancesImmediately(t *testing.T) {
	h := newHarness()
	p := h.start(t, mixed(t))

	require.NoError(t, p.Play())
	require.NoError(t, p.SetFrame(3))
	assert.Equal(t, Playing, p.State())
	h.clock.Advance(0)
	assert.Equal(t, 4, p.Frame())
	assert.Equal(t, core.Number(3), h.value(t, "a"))

	h.clock.Advance(9 * time.Millisecond)
	assert.Equal(t, 4, p.Frame())
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, 5, p.Frame())
}

func TestPlayback_StepFrames(t *testing.T) {
	h := newHarness()
	p := h.start(t, mixed(t))
	require.NoError(t, p.Play())

	require.NoError(t, p.NextFrame())
	assert.Equal(t, Paused, p.State())
	assert.Equal(t, 1, p.Frame())
	assert.Equal(t, core.Number(1), h.value(t, "b"))

	require.NoError(t, p.PreviousFrame())
	assert.Equal(t, 0, p.Frame())
	require.NoError(t, p.PreviousFrame())
	assert.Equal(t, 0, p.Frame(), "previous at the first frame stays put")

	require.NoError(t, p.SetFrame(5))
	require.NoError(t, p.NextFrame())
	assert.Equal(t, 5, p.Frame(), "next at the last frame stays put")
	assert.Zero(t, h.clock.Pending())
}

func TestPlayback_SeekTime(t *testing.T) {
	h := newHarness()
	p := h.start(t, mixed(t))

	require.NoError(t, p.SeekTime(25))
	assert.Equal(t, 3, p.Frame())
	require.NoError(t, p.SeekTime(10))
	assert.Equal(t, 1, p.Frame())
	require.NoError(t, p.SeekTime(10_000))
	assert.Equal(t, 5, p.Frame())
}

func TestPlayback_EmptyRecording(t *testing.T) {
	h := newHarness()
	p := h.start(t, recording.New())

	assert.Equal(t, -1, p.MaxFrame())
	require.NoError(t, p.Play())
	assert.Zero(t, h.clock.Pending())
	_, ok := p.CurrentFrame()
	assert.False(t, ok)
	assert.True(t, core.IsFrameIndexOutOfRangeError(p.SetFrame(0)))
	assert.True(t, core.IsFrameIndexOutOfRangeError(p.SeekTime(0)))
}

func TestPlayback_Stop(t *testing.T) {
	hm := hooks.NewHookManager(nil)
	stops := &collector{}
	hm.Register(hooks.EventPostPlaybackStop, stops)

	h := newHarness()
	h.opts.Hooks = hm
	p := h.start(t, threeFrames(t))
	require.NoError(t, p.Play())
	h.clock.Advance(100 * time.Millisecond)

	p.Stop()
	assert.Equal(t, Stopped, p.State())
	assert.True(t, h.layer.Connected())
	assert.Nil(t, h.slot.Current())
	assert.Zero(t, h.clock.Pending())
	require.Len(t, stops.all(), 1)
	assert.Equal(t, 1, stops.all()[0].Payload().(hooks.PlaybackStopPayload).Frame)

	assert.ErrorIs(t, p.Play(), core.ErrNotLoaded)
	assert.ErrorIs(t, p.SetFrame(0), core.ErrNotLoaded)
	assert.ErrorIs(t, p.NextFrame(), core.ErrNotLoaded)

	p.Stop()
	assert.Len(t, stops.all(), 1, "stopping twice is a no-op")
}

func TestPlayback_SlotHoldsOnePlayback(t *testing.T) {
	h := newHarness()
	first := h.start(t, threeFrames(t))
	require.NoError(t, first.Play())

	second := h.start(t, mixed(t))
	assert.Equal(t, Stopped, first.State())
	assert.Same(t, second, h.slot.Current())
	assert.False(t, h.layer.Connected())
	assert.Zero(t, h.clock.Pending())
}

type fakeRecorder struct {
	running bool
	starts  int
	stops   int
}

func (r *fakeRecorder) Running() bool { return r.running }
func (r *fakeRecorder) Start() error {
	r.starts++
	r.running = true
	return nil
}
func (r *fakeRecorder) Stop() error {
	r.stops++
	r.running = false
	return nil
}

func TestPlayback_PausesRecorder(t *testing.T) {
	h := newHarness()
	rec := &fakeRecorder{running: true}
	h.opts.Recorder = rec

	p := h.start(t, threeFrames(t))
	assert.False(t, rec.running)
	assert.Equal(t, 1, rec.stops)

	p.Stop()
	assert.True(t, rec.running)
	assert.Equal(t, 1, rec.starts)

	idle := &fakeRecorder{}
	h.opts.Recorder = idle
	p = h.start(t, threeFrames(t))
	p.Stop()
	assert.Zero(t, idle.starts, "a recorder that was not running stays stopped")
}

func TestPlayback_HandOffKeepsRecorderPaused(t *testing.T) {
	h := newHarness()
	rec := &fakeRecorder{running: true}
	h.opts.Recorder = rec

	first := h.start(t, threeFrames(t))
	second := h.start(t, mixed(t))
	assert.Equal(t, Stopped, first.State())
	assert.False(t, rec.running)
	assert.Equal(t, 1, rec.stops)
	assert.Zero(t, rec.starts, "the replaced playback does not restart the recorder")

	second.Stop()
	assert.True(t, rec.running)
	assert.Equal(t, 1, rec.starts)
	assert.True(t, h.layer.Connected())
}

func TestPlayback_HandOffReconnectsOtherLayer(t *testing.T) {
	h := newHarness()
	first := h.start(t, threeFrames(t))

	other := sources.NewMemoryLayer(nil)
	opts := h.opts
	opts.Sources = other
	second, err := New(mixed(t), opts)
	require.NoError(t, err)
	t.Cleanup(second.Stop)

	assert.Equal(t, Stopped, first.State())
	assert.True(t, h.layer.Connected())
	assert.False(t, other.Connected())
}

func TestPlayback_HandOffDoesNotStartSession(t *testing.T) {
	h := newHarness()
	dir := t.TempDir()
	live := recorder.New(recorder.Options{
		Sources: h.layer,
		Clock:   h.clock,
		Dir:     dir,
	})
	t.Cleanup(func() { _ = live.Close() })
	h.opts.Recorder = live

	sessions := func() int {
		files, err := filepath.Glob(filepath.Join(dir, "*", "*.sbr"))
		require.NoError(t, err)
		return len(files)
	}

	require.NoError(t, live.Start())
	require.Equal(t, 1, sessions())

	h.start(t, threeFrames(t))
	assert.False(t, live.Running())

	h.clock.Advance(time.Second)
	second := h.start(t, mixed(t))
	assert.False(t, live.Running())
	assert.Equal(t, 1, sessions(), "no session is written while playbacks swap")

	h.clock.Advance(time.Second)
	second.Stop()
	assert.True(t, live.Running())
	assert.Equal(t, 2, sessions())
}

type collector struct {
	mu     sync.Mutex
	events []hooks.HookEvent
	fail   error
}

func (c *collector) OnEvent(_ context.Context, ev hooks.HookEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.fail
}
func (c *collector) Priority() int { return 1 }
func (c *collector) IsAsync() bool { return false }

func (c *collector) all() []hooks.HookEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]hooks.HookEvent(nil), c.events...)
}

func TestPlayback_FrameAppliedEvents(t *testing.T) {
	hm := hooks.NewHookManager(nil)
	applied := &collector{}
	hm.Register(hooks.EventPostFrameApplied, applied)

	h := newHarness()
	h.opts.Hooks = hm
	p := h.start(t, mixed(t))
	require.NoError(t, p.NextFrame())
	require.NoError(t, p.SetFrame(4))

	var got []hooks.FrameAppliedPayload
	for _, ev := range applied.all() {
		got = append(got, ev.Payload().(hooks.FrameAppliedPayload))
	}
	// Frame 0 on load, 1 by stepping, then the burst walks back from 4 to 1.
	require.Len(t, got, 5)
	assert.Equal(t, 0, got[0].Frame)
	assert.False(t, got[0].Burst)
	assert.Equal(t, 1, got[1].Frame)
	assert.False(t, got[1].Burst)
	assert.Equal(t, []int{4, 3, 1}, []int{got[2].Frame, got[3].Frame, got[4].Frame})
	for _, pl := range got[2:] {
		assert.True(t, pl.Burst)
	}
}

type failingLayer struct {
	*sources.MemoryLayer
	failOn string
}

func (l *failingLayer) Write(sourceID, typeTag string, value core.TypedValue) error {
	if sourceID == l.failOn {
		return errors.New("widget rejected value")
	}
	return l.MemoryLayer.Write(sourceID, typeTag, value)
}

func TestPlayback_WriteErrorHaltsPlayback(t *testing.T) {
	h := newHarness()
	h.opts.Sources = &failingLayer{MemoryLayer: h.layer, failOn: "b"}
	p := h.start(t, mixed(t))

	require.NoError(t, p.Play())
	h.clock.Advance(10 * time.Millisecond)
	assert.Equal(t, Paused, p.State())
	assert.Equal(t, 0, p.Frame())
	require.Error(t, p.Err())
	assert.Contains(t, p.Err().Error(), "widget rejected value")

	err := p.NextFrame()
	require.Error(t, err, "manual moves return frame errors directly")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	registry := adapters.NewDefaultRegistry(nil)
	path := filepath.Join(t.TempDir(), "match.sbr")
	require.NoError(t, sbrfile.Save(ctx, path, threeFrames(t), registry))

	t.Run("Success", func(t *testing.T) {
		hm := hooks.NewHookManager(nil)
		loads := &collector{}
		hm.Register(hooks.EventPostLoad, loads)

		h := newHarness()
		h.opts.Registry = registry
		h.opts.Hooks = hm
		p, err := Load(ctx, path, h.opts)
		require.NoError(t, err)
		defer p.Stop()

		assert.Equal(t, 3, p.NumFrames())
		assert.Equal(t, core.Number(0), h.value(t, "foo"))
		require.Len(t, loads.all(), 1)
		payload := loads.all()[0].Payload().(hooks.PostLoadPayload)
		assert.Equal(t, 3, payload.Frames)
		assert.NoError(t, payload.Error)
	})

	t.Run("MissingFile", func(t *testing.T) {
		h := newHarness()
		_, err := Load(ctx, filepath.Join(t.TempDir(), "missing.sbr"), h.opts)
		require.Error(t, err)
		assert.Nil(t, h.slot.Current())
		assert.True(t, h.layer.Connected())
	})

	t.Run("PreLoadHookCancels", func(t *testing.T) {
		hm := hooks.NewHookManager(nil)
		hm.Register(hooks.EventPreLoad, &collector{fail: errors.New("denied")})
		h := newHarness()
		h.opts.Hooks = hm
		_, err := Load(ctx, path, h.opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denied")
		assert.Nil(t, h.slot.Current())
	})
}
