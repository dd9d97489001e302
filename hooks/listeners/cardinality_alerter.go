package listeners

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/INLOpen/sbr/hooks"
)

// CardinalityAlerterListener logs a warning when a session starts recording a new source.
// A recording with an unexpectedly large number of sources is usually a sign of a
// publisher generating ids dynamically.
type CardinalityAlerterListener struct {
	logger  *slog.Logger
	limit   int64
	sources atomic.Int64
}

// NewCardinalityAlerterListener creates a new listener for monitoring source creation.
// When limit is positive, only sources beyond the limit are reported.
func NewCardinalityAlerterListener(logger *slog.Logger, limit int) *CardinalityAlerterListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CardinalityAlerterListener{
		logger: logger.With("component", "CardinalityAlerterListener"),
		limit:  int64(limit),
	}
}

// OnEvent handles the OnSourceCreate event.
func (l *CardinalityAlerterListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	if event.Type() != hooks.EventOnSourceCreate {
		return nil // Ignore other events
	}

	payload, ok := event.Payload().(hooks.SourceCreatePayload)
	if !ok {
		l.logger.Error("Received OnSourceCreate event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
		return nil
	}

	count := l.sources.Add(1)
	if l.limit > 0 && count <= l.limit {
		return nil
	}

	l.logger.Warn("New source recorded (cardinality increase)",
		"source_id", payload.SourceID,
		"type", payload.TypeTag,
		"source_count", count,
	)

	return nil
}

// Sources returns the number of sources seen so far.
func (l *CardinalityAlerterListener) Sources() int64 { return l.sources.Load() }

// Priority defines the execution order.
func (l *CardinalityAlerterListener) Priority() int { return 100 }

// IsAsync indicates this listener can run in the background.
func (l *CardinalityAlerterListener) IsAsync() bool { return true }
