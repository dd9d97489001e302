// Package convert exports recordings to other file formats.
package convert

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/INLOpen/sbr/recording"
)

// DefaultTimeWindow groups samples that arrive up to 7ms apart into one row.
// Values published together by a source can arrive spread over a few
// milliseconds; 7ms still separates updates sent 100 times per second.
const DefaultTimeWindow int64 = 7

// Settings controls a conversion.
type Settings struct {
	// ConvertMetadata includes the recording metadata sources in the output.
	ConvertMetadata bool
	// TimeWindow is the row width in milliseconds. Zero selects DefaultTimeWindow.
	TimeWindow int64
}

func (s Settings) window() int64 {
	if s.TimeWindow <= 0 {
		return DefaultTimeWindow
	}
	return s.TimeWindow
}

// Converter writes a recording in another format.
type Converter interface {
	// Format returns the display name of the format, e.g. "CSV".
	Format() string
	// Extension returns the file suffix of the format, including the dot.
	Extension() string
	Export(rec *recording.Recording, w io.Writer, settings Settings) error
}

// Registry holds converters by lower-cased format name.
type Registry struct {
	mu         sync.RWMutex
	converters map[string]Converter
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		converters: make(map[string]Converter),
		logger:     logger.With("component", "ConverterRegistry"),
	}
}

// NewDefaultRegistry creates a registry with the CSV converter.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewCSVConverter(logger))
	return r
}

// Register adds a converter, replacing any converter of the same format.
func (r *Registry) Register(c Converter) {
	key := strings.ToLower(c.Format())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.converters[key]; exists {
		r.logger.Debug("Replacing converter", "format", c.Format())
	}
	r.converters[key] = c
}

// Lookup finds a converter by format name, ignoring case.
func (r *Registry) Lookup(format string) (Converter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.converters[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("no converter for format %q", format)
	}
	return c, nil
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.converters))
	for _, c := range r.converters {
		out = append(out, c.Format())
	}
	sort.Strings(out)
	return out
}
