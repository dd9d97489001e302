package hooks

import (
	"time"

	"github.com/INLOpen/sbr/core"
)

// EventType defines the type of a hook event. Types starting with "Pre" are
// pre-hooks: they run synchronously and a listener error cancels the operation.
type EventType string

const (
	// Capture events
	EventPreRecord      EventType = "PreRecord"
	EventPostRecord     EventType = "PostRecord"
	EventOnSourceCreate EventType = "OnSourceCreate"
	EventPostMarker     EventType = "PostMarker"

	// Recorder lifecycle events
	EventPostRecorderStart EventType = "PostRecorderStart"
	EventPostRecorderStop  EventType = "PostRecorderStop"
	EventPostFlush         EventType = "PostFlush"

	// Playback events
	EventPreLoad          EventType = "PreLoad"
	EventPostLoad         EventType = "PostLoad"
	EventPostFrameApplied EventType = "PostFrameApplied"
	EventPostPlaybackStop EventType = "PostPlaybackStop"
)

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	Type() EventType
	Payload() interface{}
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

// NewEvent creates an event with an arbitrary payload.
func NewEvent(eventType EventType, payload interface{}) HookEvent {
	return &BaseEvent{eventType: eventType, payload: payload}
}

// PreRecordPayload carries a sample before it is timestamped and appended.
// Fields are pointers so listeners can rewrite the sample.
type PreRecordPayload struct {
	SourceID *string
	TypeTag  *string
	Value    *core.TypedValue
}

func NewPreRecordEvent(payload PreRecordPayload) HookEvent {
	return &BaseEvent{eventType: EventPreRecord, payload: payload}
}

// PostRecordPayload carries a sample after it was appended.
type PostRecordPayload struct {
	Data core.TimestampedData
}

func NewPostRecordEvent(payload PostRecordPayload) HookEvent {
	return &BaseEvent{eventType: EventPostRecord, payload: payload}
}

// SourceCreatePayload is sent the first time a source appears in a session.
type SourceCreatePayload struct {
	SourceID string
	TypeTag  string
}

func NewOnSourceCreateEvent(payload SourceCreatePayload) HookEvent {
	return &BaseEvent{eventType: EventOnSourceCreate, payload: payload}
}

// MarkerPayload carries a marker after it was added.
type MarkerPayload struct {
	Marker core.Marker
}

func NewPostMarkerEvent(payload MarkerPayload) HookEvent {
	return &BaseEvent{eventType: EventPostMarker, payload: payload}
}

// RecorderSessionPayload identifies a recorder session.
type RecorderSessionPayload struct {
	SessionID string
	Path      string
	Entries   int
}

func NewPostRecorderStartEvent(payload RecorderSessionPayload) HookEvent {
	return &BaseEvent{eventType: EventPostRecorderStart, payload: payload}
}

func NewPostRecorderStopEvent(payload RecorderSessionPayload) HookEvent {
	return &BaseEvent{eventType: EventPostRecorderStop, payload: payload}
}

// PostFlushPayload describes one flush of the live recording to disk.
type PostFlushPayload struct {
	SessionID string
	Path      string
	Full      bool
	Entries   int
	Strings   int
	Bytes     int
	Duration  time.Duration
	Error     error
}

func NewPostFlushEvent(payload PostFlushPayload) HookEvent {
	return &BaseEvent{eventType: EventPostFlush, payload: payload}
}

// PreLoadPayload is sent before a playback parses a file.
type PreLoadPayload struct {
	Path string
}

func NewPreLoadEvent(payload PreLoadPayload) HookEvent {
	return &BaseEvent{eventType: EventPreLoad, payload: payload}
}

// PostLoadPayload is sent after a playback parsed a file.
type PostLoadPayload struct {
	Path    string
	Entries int
	Frames  int
	Error   error
}

func NewPostLoadEvent(payload PostLoadPayload) HookEvent {
	return &BaseEvent{eventType: EventPostLoad, payload: payload}
}

// FrameAppliedPayload is sent for every frame written to the source layer.
// Burst is set for frames applied as part of a seek.
type FrameAppliedPayload struct {
	Frame int
	Data  core.TimestampedData
	Burst bool
}

func NewPostFrameAppliedEvent(payload FrameAppliedPayload) HookEvent {
	return &BaseEvent{eventType: EventPostFrameApplied, payload: payload}
}

// PlaybackStopPayload is sent when a playback releases the source layer.
type PlaybackStopPayload struct {
	Frame int
}

func NewPostPlaybackStopEvent(payload PlaybackStopPayload) HookEvent {
	return &BaseEvent{eventType: EventPostPlaybackStop, payload: payload}
}
