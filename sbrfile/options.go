// Package sbrfile reads and writes recording files. A file is a magic number
// followed by a stream of records; each record starts with a kind byte. Pool
// records intern strings referenced by the data and marker records after them,
// which lets a live session be appended to without rewriting the file.
package sbrfile

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options configures readers and writers.
type Options struct {
	Tracer trace.Tracer
	Logger *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithTracer wraps file operations in spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) { o.Tracer = tracer }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func buildOptions(opts []Option) Options {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("sbrfile")
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o.Logger = o.Logger.With("component", "sbrfile")
	return o
}
