package recorder

import (
	"io"
	"log/slog"
	"time"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
	"github.com/INLOpen/sbr/sources"
	"github.com/INLOpen/sbr/utils/clock"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultFlushInterval is how often a running recorder appends to its file.
	DefaultFlushInterval = 2 * time.Second
	// DefaultDir is where recordings go when no directory is configured.
	DefaultDir = "recordings"
	// DefaultLockTimeout bounds how long Start waits for the session file lock.
	DefaultLockTimeout = time.Second
)

// Options configures a Recorder. Every collaborator is optional except where noted.
type Options struct {
	// Registry resolves type tags. Defaults to adapters.NewDefaultRegistry.
	Registry *adapters.Registry
	// Sources is the live source layer. When set, the recorder subscribes to
	// it as capture hook and records its current values when a session starts.
	Sources sources.Layer
	Hooks   hooks.HookManager
	Logger  *slog.Logger
	Clock   clock.Clock
	Tracer  trace.Tracer
	Metrics *Metrics

	// Dir is the root directory; sessions are written to Dir/<yyyy-mm-dd>/.
	Dir            string
	FileNameFormat string
	FlushInterval  time.Duration
	// MinFreeDiskBytes skips flushes while the recording volume has less
	// free space. Zero disables the check.
	MinFreeDiskBytes uint64
	// LockFile holds an OS lock next to the session file while recording.
	LockFile    bool
	LockTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Registry == nil {
		o.Registry = adapters.NewDefaultRegistry(o.Logger)
	}
	if o.Hooks == nil {
		o.Hooks = hooks.NopManager{}
	}
	if o.Clock == nil {
		o.Clock = clock.NewSystemClock()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("recorder")
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(false, "")
	}
	if o.Dir == "" {
		o.Dir = DefaultDir
	}
	if o.FileNameFormat == "" {
		o.FileNameFormat = core.DefaultFileNameFormat
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
}
