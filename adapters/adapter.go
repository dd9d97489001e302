package adapters

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/INLOpen/sbr/core"
)

// TypeAdapter serializes values of one type tag.
type TypeAdapter interface {
	// Tag returns the type tag this adapter handles.
	Tag() string
	// Serialize encodes a value. Values of the wrong variant are rejected with
	// a *core.UnsupportedTypeError.
	Serialize(value core.TypedValue) ([]byte, error)
	// Deserialize decodes a value at pos and returns it with the number of bytes consumed.
	Deserialize(buf []byte, pos int) (core.TypedValue, int, error)
	// SerializedSize returns len(Serialize(value)) without encoding.
	SerializedSize(value core.TypedValue) (int, error)
	// Close releases resources held by the adapter. It is called when the
	// adapter is unregistered.
	Close() error
}

// Registry maps type tags to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]TypeAdapter
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		adapters: make(map[string]TypeAdapter),
		logger:   logger.With("component", "AdapterRegistry"),
	}
}

// NewDefaultRegistry creates a registry populated with the builtin adapters.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	for _, a := range Builtins() {
		r.Register(a)
	}
	return r
}

// Register adds an adapter. A later registration for the same tag replaces
// the earlier one; the replaced adapter is not closed.
func (r *Registry) Register(adapter TypeAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[adapter.Tag()]; exists {
		r.logger.Debug("Replacing type adapter", "tag", adapter.Tag())
	}
	r.adapters[adapter.Tag()] = adapter
}

// Unregister removes the adapter for tag and invokes its cleanup hook.
// Unregistering an unknown tag is a no-op.
func (r *Registry) Unregister(tag string) error {
	r.mu.Lock()
	adapter, ok := r.adapters[tag]
	delete(r.adapters, tag)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter for %q: %w", tag, err)
	}
	return nil
}

// Lookup returns the adapter for tag.
func (r *Registry) Lookup(tag string) (TypeAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[tag]
	return a, ok
}

// LookupForWrite returns the adapter for tag or a *core.UnsupportedTypeError.
func (r *Registry) LookupForWrite(tag string) (TypeAdapter, error) {
	if a, ok := r.Lookup(tag); ok {
		return a, nil
	}
	return nil, &core.UnsupportedTypeError{Tag: tag, Message: "no adapter registered"}
}

// LookupForRead returns the adapter for tag or a *core.UnknownTypeTagError.
func (r *Registry) LookupForRead(tag string) (TypeAdapter, error) {
	if a, ok := r.Lookup(tag); ok {
		return a, nil
	}
	return nil, &core.UnknownTypeTagError{Tag: tag}
}

// Encode serializes value with the adapter registered for tag.
func (r *Registry) Encode(tag string, value core.TypedValue) ([]byte, error) {
	a, err := r.LookupForWrite(tag)
	if err != nil {
		return nil, err
	}
	return a.Serialize(value)
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.adapters))
	for tag := range r.adapters {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Close unregisters every adapter, returning the first cleanup error.
func (r *Registry) Close() error {
	var firstErr error
	for _, tag := range r.Tags() {
		if err := r.Unregister(tag); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
