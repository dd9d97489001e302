// Package playback replays a recording through the source layer at the pace
// it was recorded.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
	"github.com/INLOpen/sbr/recording"
	"github.com/INLOpen/sbr/sbrfile"
	"github.com/INLOpen/sbr/sources"
	"github.com/INLOpen/sbr/utils/clock"
	"github.com/RoaringBitmap/roaring"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// State is the transport state of a playback.
type State int32

const (
	Stopped State = iota
	Paused
	Playing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Playback replays the frames of a recording. Frames are the samples of the
// recording; markers are not replayed. A consecutive advance from frame N to
// N+1 waits for the recorded gap between them. Jumps apply a burst that gives
// every source touched in the skipped span its value nearest the target.
type Playback struct {
	rec         *recording.Recording
	frames      []core.TimestampedData
	sourceIndex map[string]uint32
	layer       sources.Layer
	slot        *Slot
	recorder    Recorder
	hooks       hooks.HookManager
	logger      *slog.Logger
	clock       clock.Clock
	metrics     *Metrics
	speed       float64

	mu              sync.Mutex
	state           State
	frame           int
	looping         bool
	pending         clock.Timer
	gen             uint64
	restart         []Recorder
	err             error
	events          []hooks.HookEvent
}

// Load parses the recording at path and loads it into the slot, paused at frame 0.
func Load(ctx context.Context, path string, opts Options) (p *Playback, err error) {
	opts.applyDefaults()
	ctx, span := opts.Tracer.Start(ctx, "Playback.Load")
	span.SetAttributes(attribute.String("sbr.path", path))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := opts.Hooks.Trigger(ctx, hooks.NewPreLoadEvent(hooks.PreLoadPayload{Path: path})); err != nil {
		return nil, fmt.Errorf("load of %s cancelled by hook: %w", path, err)
	}

	rec, err := sbrfile.Load(ctx, path, opts.Registry, sbrfile.WithLogger(opts.Logger), sbrfile.WithTracer(opts.Tracer))
	if err != nil {
		_ = opts.Hooks.Trigger(ctx, hooks.NewPostLoadEvent(hooks.PostLoadPayload{Path: path, Error: err}))
		return nil, err
	}
	span.SetAttributes(attribute.Int("sbr.entries", rec.Len()), attribute.Int("sbr.frames", rec.NumFrames()))
	_ = opts.Hooks.Trigger(ctx, hooks.NewPostLoadEvent(hooks.PostLoadPayload{Path: path, Entries: rec.Len(), Frames: rec.NumFrames()}))

	p, err = newPlayback(rec, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Recording loaded", "path", path, "frames", len(p.frames), "sources", len(p.sourceIndex))
	return p, nil
}

// New loads rec into the slot, paused at frame 0. The recording must not be
// modified afterwards.
func New(rec *recording.Recording, opts Options) (*Playback, error) {
	opts.applyDefaults()
	return newPlayback(rec, opts)
}

func newPlayback(rec *recording.Recording, opts Options) (*Playback, error) {
	p := &Playback{
		rec:         rec,
		frames:      rec.Data(),
		sourceIndex: make(map[string]uint32),
		layer:       opts.Sources,
		slot:        opts.Slot,
		recorder:    opts.Recorder,
		hooks:       opts.Hooks,
		logger:      opts.Logger.With("component", "Playback"),
		clock:       opts.Clock,
		metrics:     opts.Metrics,
		speed:       opts.Speed,
		state:       Paused,
		looping:     opts.Looping,
	}
	for i, id := range rec.SourceIDs() {
		p.sourceIndex[id] = uint32(i)
	}

	if prev := p.slot.install(p); prev != nil {
		p.restart = prev.handOff(p.layer)
	}
	if p.recorder != nil && p.recorder.Running() {
		if err := p.recorder.Stop(); err != nil {
			p.logger.Warn("Failed to stop recorder for playback", "error", err)
		}
		p.restart = append(p.restart, p.recorder)
	}
	p.layer.Disconnect()
	p.metrics.LoadsTotal.Add(1)

	p.mu.Lock()
	var err error
	if len(p.frames) > 0 {
		err = p.applyLocked(0, false)
	}
	p.unlockAndNotify()
	if err != nil {
		p.Stop()
		return nil, err
	}
	return p, nil
}

// unlockAndNotify releases the lock and then triggers the queued events, so
// that listeners may call back into the playback.
func (p *Playback) unlockAndNotify() {
	events := p.events
	p.events = nil
	p.mu.Unlock()
	for _, ev := range events {
		_ = p.hooks.Trigger(context.Background(), ev)
	}
}

// Recording returns the recording being played.
func (p *Playback) Recording() *recording.Recording { return p.rec }

// NumFrames returns the number of frames.
func (p *Playback) NumFrames() int { return len(p.frames) }

// MaxFrame returns the index of the last frame, or -1 for an empty recording.
func (p *Playback) MaxFrame() int { return len(p.frames) - 1 }

// Frame returns the current frame index.
func (p *Playback) Frame() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// CurrentFrame returns the sample at the current frame.
func (p *Playback) CurrentFrame() (core.TimestampedData, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return core.TimestampedData{}, false
	}
	return p.frames[p.frame], true
}

// State returns the transport state.
func (p *Playback) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Looping reports whether playback wraps to the first frame at the end.
func (p *Playback) Looping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looping
}

// Err returns the error that halted automatic advancing, if any.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Play starts or resumes automatic advancing. At the last frame without
// looping it stays playing and schedules nothing.
func (p *Playback) Play() error {
	p.mu.Lock()
	defer p.unlockAndNotify()
	if p.state == Stopped {
		return core.ErrNotLoaded
	}
	if p.state == Playing {
		return nil
	}
	p.state = Playing
	p.err = nil
	p.scheduleNextLocked(false)
	return nil
}

// Unpause is an alias of Play.
func (p *Playback) Unpause() error {
	return p.Play()
}

// Pause stops automatic advancing and cancels the pending advance.
func (p *Playback) Pause() {
	p.mu.Lock()
	defer p.unlockAndNotify()
	if p.state != Playing {
		return
	}
	p.state = Paused
	p.cancelLocked()
}

// SetLooping enables or disables wrapping. Enabling it while playing at the
// last frame resumes immediately.
func (p *Playback) SetLooping(looping bool) {
	p.mu.Lock()
	defer p.unlockAndNotify()
	p.looping = looping
	if looping && p.state == Playing && p.pending == nil && len(p.frames) > 0 && p.frame == p.MaxFrame() {
		p.scheduleNextLocked(true)
	}
}

// NextFrame pauses and moves one frame forward, if possible.
func (p *Playback) NextFrame() error {
	p.mu.Lock()
	defer p.unlockAndNotify()
	if p.state == Stopped {
		return core.ErrNotLoaded
	}
	p.state = Paused
	p.cancelLocked()
	if p.frame >= p.MaxFrame() {
		return nil
	}
	return p.moveLocked(p.frame + 1)
}

// PreviousFrame pauses and moves one frame back, if possible.
func (p *Playback) PreviousFrame() error {
	p.mu.Lock()
	defer p.unlockAndNotify()
	if p.state == Stopped {
		return core.ErrNotLoaded
	}
	p.state = Paused
	p.cancelLocked()
	if p.frame <= 0 {
		return nil
	}
	return p.moveLocked(p.frame - 1)
}

// SetFrame jumps to frame n. While playing, the following advance happens
// without delay.
func (p *Playback) SetFrame(n int) error {
	p.mu.Lock()
	defer p.unlockAndNotify()
	return p.setFrameLocked(n)
}

func (p *Playback) setFrameLocked(n int) error {
	if p.state == Stopped {
		return core.ErrNotLoaded
	}
	if n < 0 || n > p.MaxFrame() {
		return &core.FrameIndexOutOfRangeError{Index: n, Max: p.MaxFrame()}
	}
	p.metrics.SeeksTotal.Add(1)
	p.cancelLocked()
	if n != p.frame {
		if err := p.moveLocked(n); err != nil {
			return err
		}
	}
	if p.state == Playing {
		p.scheduleNextLocked(true)
	}
	return nil
}

// SeekTime jumps to the first frame at or after ms, or to the last frame when
// ms is past the end.
func (p *Playback) SeekTime(ms int64) error {
	p.mu.Lock()
	defer p.unlockAndNotify()
	if len(p.frames) == 0 {
		if p.state == Stopped {
			return core.ErrNotLoaded
		}
		return &core.FrameIndexOutOfRangeError{Index: 0, Max: -1}
	}
	n, ok := p.rec.FrameAt(ms)
	if !ok {
		n = p.MaxFrame()
	}
	return p.setFrameLocked(n)
}

// Stop cancels the pending advance, reconnects live sources and clears the
// slot. Stopping a stopped playback does nothing.
func (p *Playback) Stop() {
	frame, restart, events, ok := p.halt()
	if !ok {
		return
	}
	p.slot.release(p)
	p.layer.Connect()
	for _, r := range restart {
		if err := r.Start(); err != nil {
			p.logger.Error("Failed to restart recorder after playback", "error", err)
		}
	}
	p.logger.Info("Playback stopped", "frame", frame)
	for _, ev := range events {
		_ = p.hooks.Trigger(context.Background(), ev)
	}
}

// handOff stops p in favour of a playback writing to next. The layer stays
// disconnected unless next is a different layer, and the recorders p paused
// are returned for the new playback to restart.
func (p *Playback) handOff(next sources.Layer) []Recorder {
	frame, restart, events, ok := p.halt()
	if !ok {
		return nil
	}
	if p.layer != next {
		p.layer.Connect()
	}
	p.logger.Info("Playback replaced", "frame", frame)
	for _, ev := range events {
		_ = p.hooks.Trigger(context.Background(), ev)
	}
	return restart
}

// halt moves p to Stopped and returns what the caller must release.
func (p *Playback) halt() (frame int, restart []Recorder, events []hooks.HookEvent, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Stopped {
		return 0, nil, nil, false
	}
	p.state = Stopped
	p.cancelLocked()
	restart = p.restart
	p.restart = nil
	events = append(p.events, hooks.NewPostPlaybackStopEvent(hooks.PlaybackStopPayload{Frame: p.frame}))
	p.events = nil
	return p.frame, restart, events, true
}

// moveLocked applies frame n: a single write for the next frame, a burst otherwise.
func (p *Playback) moveLocked(n int) error {
	var err error
	if n == p.frame+1 {
		err = p.applyLocked(n, false)
	} else {
		err = p.burstLocked(p.frame, n)
	}
	if err != nil {
		return err
	}
	p.frame = n
	return nil
}

func (p *Playback) applyLocked(n int, burst bool) error {
	d := p.frames[n]
	if err := p.layer.Write(d.SourceID, d.TypeTag, d.Value); err != nil {
		p.metrics.ErrorsTotal.Add(1)
		return fmt.Errorf("failed to apply frame %d (%s): %w", n, d.SourceID, err)
	}
	p.metrics.FramesAppliedTotal.Add(1)
	if burst {
		p.metrics.BurstWritesTotal.Add(1)
	}
	p.events = append(p.events, hooks.NewPostFrameAppliedEvent(hooks.FrameAppliedPayload{Frame: n, Data: d, Burst: burst}))
	return nil
}

// burstLocked walks from the target back toward the current frame and writes
// the first value seen for each source.
func (p *Playback) burstLocked(from, to int) error {
	step := -1
	if to < from {
		step = 1
	}
	applied := roaring.New()
	total := uint64(len(p.sourceIndex))
	for i := to; ; i += step {
		idx := p.sourceIndex[p.frames[i].SourceID]
		if applied.CheckedAdd(idx) {
			if err := p.applyLocked(i, true); err != nil {
				return err
			}
		}
		if i == from || applied.GetCardinality() == total {
			return nil
		}
	}
}

func (p *Playback) cancelLocked() {
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
	p.gen++
}

// scheduleNextLocked arms the single pending advance. Manual seeks advance
// without delay; otherwise the delay is the recorded gap to the next frame.
func (p *Playback) scheduleNextLocked(immediate bool) {
	p.cancelLocked()
	if p.state != Playing || len(p.frames) < 2 {
		return
	}
	var delay time.Duration
	if p.frame == p.MaxFrame() {
		if !p.looping {
			return
		}
		// Wrapping to the first frame is immediate.
	} else if !immediate {
		gap := p.frames[p.frame+1].Timestamp - p.frames[p.frame].Timestamp
		delay = time.Duration(float64(gap) * float64(time.Millisecond) / p.speed)
	}
	gen := p.gen
	p.pending = p.clock.AfterFunc(delay, func() { p.advance(gen) })
}

func (p *Playback) advance(gen uint64) {
	p.mu.Lock()
	defer p.unlockAndNotify()
	if gen != p.gen || p.state != Playing {
		return
	}
	p.pending = nil

	next := p.frame + 1
	if p.frame == p.MaxFrame() {
		if !p.looping {
			return
		}
		next = 0
		p.metrics.LoopsTotal.Add(1)
	}
	if err := p.moveLocked(next); err != nil {
		p.logger.Error("Playback halted", "frame", next, "error", err)
		p.err = err
		p.state = Paused
		return
	}
	p.scheduleNextLocked(false)
}
