// Package sources is the boundary between the recording subsystem and the live
// data sources. The live system publishes value changes into a Layer, the
// recorder listens to them, and playback writes recorded values back.
package sources

import (
	"io"
	"log/slog"
	"sync"

	"github.com/INLOpen/sbr/core"
)

// Listener is the capture hook invoked on every live value change.
type Listener interface {
	OnValueChanged(sourceID, typeTag string, value core.TypedValue)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(sourceID, typeTag string, value core.TypedValue)

func (f ListenerFunc) OnValueChanged(sourceID, typeTag string, value core.TypedValue) {
	f(sourceID, typeTag, value)
}

// Layer is the source abstraction shared by the live system and playback.
// While disconnected the live system's updates are dropped and only Write,
// used by playback, changes source values.
type Layer interface {
	// Write sets the current value of a source. Playback calls it once per
	// applied frame.
	Write(sourceID, typeTag string, value core.TypedValue) error
	// Current returns the latest value of every source, in creation order.
	// Timestamps are zero.
	Current() []core.TimestampedData
	Connect()
	Disconnect()
	Connected() bool
	// Subscribe registers a capture hook and returns a function removing it.
	Subscribe(l Listener) (unsubscribe func())
}

// MemoryLayer is an in-process Layer.
type MemoryLayer struct {
	mu        sync.RWMutex
	order     []string
	values    map[string]core.TimestampedData
	connected bool
	listeners map[int]Listener
	nextID    int
	logger    *slog.Logger
}

var _ Layer = (*MemoryLayer)(nil)

// NewMemoryLayer creates a connected, empty layer.
func NewMemoryLayer(logger *slog.Logger) *MemoryLayer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MemoryLayer{
		values:    make(map[string]core.TimestampedData),
		connected: true,
		listeners: make(map[int]Listener),
		logger:    logger.With("component", "SourceLayer"),
	}
}

func (l *MemoryLayer) setLocked(sourceID, typeTag string, value core.TypedValue) {
	if _, ok := l.values[sourceID]; !ok {
		l.order = append(l.order, sourceID)
	}
	l.values[sourceID] = core.TimestampedData{SourceID: sourceID, TypeTag: typeTag, Value: value}
}

// Publish is the live system's entry point. It updates the source and calls
// every capture hook. It reports false when the layer is disconnected and the
// update was dropped.
func (l *MemoryLayer) Publish(sourceID, typeTag string, value core.TypedValue) bool {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return false
	}
	l.setLocked(sourceID, typeTag, value)
	listeners := make([]Listener, 0, len(l.listeners))
	for id := 0; id < l.nextID; id++ {
		if ln, ok := l.listeners[id]; ok {
			listeners = append(listeners, ln)
		}
	}
	l.mu.Unlock()

	for _, ln := range listeners {
		ln.OnValueChanged(sourceID, typeTag, value)
	}
	return true
}

func (l *MemoryLayer) Write(sourceID, typeTag string, value core.TypedValue) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setLocked(sourceID, typeTag, value)
	return nil
}

// Value returns the current value of one source.
func (l *MemoryLayer) Value(sourceID string) (core.TimestampedData, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.values[sourceID]
	return v, ok
}

func (l *MemoryLayer) Current() []core.TimestampedData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.TimestampedData, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.values[id])
	}
	return out
}

func (l *MemoryLayer) Connect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		l.logger.Debug("Live sources connected")
	}
	l.connected = true
}

func (l *MemoryLayer) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		l.logger.Debug("Live sources disconnected")
	}
	l.connected = false
}

func (l *MemoryLayer) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

func (l *MemoryLayer) Subscribe(ln Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = ln
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}
