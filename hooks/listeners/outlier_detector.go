package listeners

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
)

// Thresholds defines the min/max acceptable values for a numeric source.
type Thresholds struct {
	Min float64
	Max float64
}

// OutlierRule defines the thresholds for one source.
type OutlierRule struct {
	SourceID   string
	Thresholds Thresholds
}

// OutlierDetectionListener checks recorded samples for values that fall outside configured thresholds.
type OutlierDetectionListener struct {
	logger *slog.Logger
	rules  map[string]Thresholds // map[sourceID]Thresholds
}

// NewOutlierDetectionListener creates a new listener for detecting outliers.
// Later rules for the same source replace earlier ones.
func NewOutlierDetectionListener(logger *slog.Logger, rules []OutlierRule) *OutlierDetectionListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ruleMap := make(map[string]Thresholds, len(rules))
	for _, rule := range rules {
		ruleMap[rule.SourceID] = rule.Thresholds
	}

	return &OutlierDetectionListener{
		logger: logger.With("component", "OutlierDetectionListener"),
		rules:  ruleMap,
	}
}

// OnEvent handles PostRecord events. Number values are checked directly and
// NumberArray values element by element; other variants are ignored.
func (l *OutlierDetectionListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	if event.Type() != hooks.EventPostRecord {
		return nil
	}

	payload, ok := event.Payload().(hooks.PostRecordPayload)
	if !ok {
		l.logger.Error("Received PostRecord event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
		return nil
	}

	data := payload.Data
	thresholds, ok := l.rules[data.SourceID]
	if !ok {
		return nil
	}

	switch v := data.Value.(type) {
	case core.Number:
		l.check(data, thresholds, -1, float64(v))
	case core.NumberArray:
		for i, f := range v {
			l.check(data, thresholds, i, f)
		}
	}

	// Detection only; the sample is already recorded.
	return nil
}

func (l *OutlierDetectionListener) check(data core.TimestampedData, thresholds Thresholds, index int, value float64) {
	if value >= thresholds.Min && value <= thresholds.Max {
		return
	}
	attrs := []any{
		"source_id", data.SourceID,
		"timestamp", data.Timestamp,
		"value", value,
		"min_threshold", thresholds.Min,
		"max_threshold", thresholds.Max,
	}
	if index >= 0 {
		attrs = append(attrs, "index", index)
	}
	l.logger.Warn("Outlier detected", attrs...)
}

// Priority defines the execution order.
func (l *OutlierDetectionListener) Priority() int { return 100 }

// IsAsync indicates this listener can run in the background.
func (l *OutlierDetectionListener) IsAsync() bool { return false }
