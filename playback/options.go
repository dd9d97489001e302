package playback

import (
	"expvar"
	"io"
	"log/slog"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/hooks"
	"github.com/INLOpen/sbr/internal/metrics"
	"github.com/INLOpen/sbr/sources"
	"github.com/INLOpen/sbr/utils/clock"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Recorder is the part of a recorder that playback pauses while it owns the
// source layer.
type Recorder interface {
	Running() bool
	Start() error
	Stop() error
}

// Options configures a Playback.
type Options struct {
	// Registry resolves type tags when loading files. Defaults to adapters.NewDefaultRegistry.
	Registry *adapters.Registry
	// Sources receives the recorded values. Defaults to a private in-memory layer.
	Sources sources.Layer
	// Slot holds the single active playback. Defaults to a private slot.
	Slot *Slot
	// Recorder, when set, is stopped while the playback is loaded and
	// restarted when it stops if it was running before.
	Recorder Recorder
	Hooks    hooks.HookManager
	Logger   *slog.Logger
	Clock    clock.Clock
	Tracer   trace.Tracer
	Metrics  *Metrics

	Looping bool
	// Speed scales the delay between frames; 2 plays twice as fast. Defaults to 1.
	Speed float64
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Registry == nil {
		o.Registry = adapters.NewDefaultRegistry(o.Logger)
	}
	if o.Sources == nil {
		o.Sources = sources.NewMemoryLayer(o.Logger)
	}
	if o.Slot == nil {
		o.Slot = NewSlot()
	}
	if o.Hooks == nil {
		o.Hooks = hooks.NopManager{}
	}
	if o.Clock == nil {
		o.Clock = clock.NewSystemClock()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("playback")
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(false, "")
	}
	if o.Speed <= 0 {
		o.Speed = 1
	}
}

// Metrics holds the expvar variables of playbacks.
type Metrics struct {
	PublishedGlobally bool

	LoadsTotal         *expvar.Int
	FramesAppliedTotal *expvar.Int
	BurstWritesTotal   *expvar.Int
	SeeksTotal         *expvar.Int
	LoopsTotal         *expvar.Int
	ErrorsTotal        *expvar.Int
}

// NewMetrics creates playback metrics, published under prefix when
// publishGlobally is set.
func NewMetrics(publishGlobally bool, prefix string) *Metrics {
	f := metrics.Factory{Global: publishGlobally}
	return &Metrics{
		PublishedGlobally:  publishGlobally,
		LoadsTotal:         f.Int(prefix + "loads_total"),
		FramesAppliedTotal: f.Int(prefix + "frames_applied_total"),
		BurstWritesTotal:   f.Int(prefix + "burst_writes_total"),
		SeeksTotal:         f.Int(prefix + "seeks_total"),
		LoopsTotal:         f.Int(prefix + "loops_total"),
		ErrorsTotal:        f.Int(prefix + "errors_total"),
	}
}
