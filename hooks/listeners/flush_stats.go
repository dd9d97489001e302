package listeners

import (
	"context"
	"expvar"
	"io"
	"log/slog"
	"sync"

	"github.com/INLOpen/sbr/hooks"
)

var (
	// Use sync.Once to ensure these expvars are only ever created once,
	// making NewFlushStatsListener idempotent.
	flushMetricsOnce   sync.Once
	flushBytesTotal    *expvar.Int
	flushEntriesTotal  *expvar.Int
	flushStringsTotal  *expvar.Int
	flushEventsTotal   *expvar.Int
	flushErrorsTotal   *expvar.Int
	flushDurationTotal *expvar.Int
)

func initFlushMetrics() {
	flushMetricsOnce.Do(func() {
		flushBytesTotal = expvar.NewInt("sbr_flush_bytes_total")
		flushEntriesTotal = expvar.NewInt("sbr_flush_entries_total")
		flushStringsTotal = expvar.NewInt("sbr_flush_strings_total")
		flushEventsTotal = expvar.NewInt("sbr_flush_events_total")
		flushErrorsTotal = expvar.NewInt("sbr_flush_errors_total")
		flushDurationTotal = expvar.NewInt("sbr_flush_duration_us_total")
		// Average encoded size of an entry, computed on every scrape.
		expvar.Publish("sbr_flush_bytes_per_entry", expvar.Func(func() interface{} {
			entries := flushEntriesTotal.Value()
			if entries == 0 {
				return 0.0
			}
			return float64(flushBytesTotal.Value()) / float64(entries)
		}))
	})
}

// FlushStatsListener accumulates totals about recorder flushes.
type FlushStatsListener struct {
	logger *slog.Logger

	bytes    *expvar.Int
	entries  *expvar.Int
	strings  *expvar.Int
	events   *expvar.Int
	errors   *expvar.Int
	duration *expvar.Int
}

// NewFlushStatsListener creates a new listener.
func NewFlushStatsListener(logger *slog.Logger) *FlushStatsListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	initFlushMetrics()
	return &FlushStatsListener{
		logger:   logger.With("component", "FlushStatsListener"),
		bytes:    flushBytesTotal,
		entries:  flushEntriesTotal,
		strings:  flushStringsTotal,
		events:   flushEventsTotal,
		errors:   flushErrorsTotal,
		duration: flushDurationTotal,
	}
}

// OnEvent is called when a PostFlush event is triggered.
func (l *FlushStatsListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	payload, ok := event.Payload().(hooks.PostFlushPayload)
	if !ok {
		// This listener only cares about PostFlush events.
		return nil
	}

	l.events.Add(1)
	l.duration.Add(payload.Duration.Microseconds())
	if payload.Error != nil {
		l.errors.Add(1)
		l.logger.Debug("Flush failed", "session_id", payload.SessionID, "path", payload.Path, "error", payload.Error)
		return nil
	}

	l.bytes.Add(int64(payload.Bytes))
	l.entries.Add(int64(payload.Entries))
	l.strings.Add(int64(payload.Strings))

	l.logger.Debug("Flush processed",
		"session_id", payload.SessionID,
		"full", payload.Full,
		"entries", payload.Entries,
		"bytes", payload.Bytes,
	)
	return nil
}

// Priority defines the execution order. Lower numbers run first.
func (l *FlushStatsListener) Priority() int {
	return 100
}

// IsAsync indicates this listener can run in the background.
func (l *FlushStatsListener) IsAsync() bool {
	return true
}
