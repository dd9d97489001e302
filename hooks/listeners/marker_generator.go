package listeners

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/hooks"
)

// MarkerSink receives markers derived from recorded samples.
type MarkerSink interface {
	AddMarker(name, description string, importance core.Importance) error
}

// MarkerGeneratorListener turns marker definitions published by the live
// system into recording markers. A definition is a StringArray sample of
// [description, importance] under <prefix><name>/Info.
type MarkerGeneratorListener struct {
	logger *slog.Logger
	sink   MarkerSink
	prefix string
}

// NewMarkerGeneratorListener creates a listener that adds markers to sink.
// An empty prefix selects core.MarkerEventsPrefix.
func NewMarkerGeneratorListener(logger *slog.Logger, sink MarkerSink, prefix string) *MarkerGeneratorListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if prefix == "" {
		prefix = core.MarkerEventsPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &MarkerGeneratorListener{
		logger: logger.With("component", "MarkerGeneratorListener"),
		sink:   sink,
		prefix: prefix,
	}
}

// OnEvent handles PreRecord events. The sample itself is never rejected.
func (l *MarkerGeneratorListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	if event.Type() != hooks.EventPreRecord {
		return nil
	}

	payload, ok := event.Payload().(hooks.PreRecordPayload)
	if !ok {
		l.logger.Error("Received PreRecord event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
		return nil
	}
	if payload.SourceID == nil || payload.Value == nil {
		return nil
	}

	name, ok := l.markerName(*payload.SourceID)
	if !ok {
		return nil
	}

	info, ok := (*payload.Value).(core.StringArray)
	if !ok || len(info) != 2 {
		l.logger.Warn("Malformed marker info", "source_id", *payload.SourceID, "value", core.FormatValue(*payload.Value))
		return nil
	}

	importance, err := core.ParseImportance(info[1])
	if err != nil {
		l.logger.Warn("Invalid marker importance", "marker", name, "importance", info[1])
		return nil
	}

	if err := l.sink.AddMarker(name, info[0], importance); err != nil {
		l.logger.Error("Failed to add marker", "marker", name, "error", err)
	}
	return nil
}

// markerName extracts <name> from <prefix>.../<name>/Info.
func (l *MarkerGeneratorListener) markerName(sourceID string) (string, bool) {
	if !strings.HasPrefix(sourceID, l.prefix) || path.Base(sourceID) != "Info" {
		return "", false
	}
	dir := path.Dir(sourceID)
	if len(dir) < len(l.prefix) {
		return "", false
	}
	name := path.Base(dir)
	if name == "" || name == "." || name == "/" {
		return "", false
	}
	return name, true
}

// Priority runs marker generation before other PreRecord listeners.
func (l *MarkerGeneratorListener) Priority() int { return 10 }

// IsAsync reports false; PreRecord listeners always run synchronously.
func (l *MarkerGeneratorListener) IsAsync() bool { return false }
