package listeners

import (
	"io"
	"log/slog"
	"sync"

	"github.com/INLOpen/sbr/core"
)

// RecorderControl is the part of the recorder driven by the live system.
type RecorderControl interface {
	Start() error
	Stop() error
	SetFileNameFormat(format string)
}

// RecorderControllerOptions configures a RecorderController.
type RecorderControllerOptions struct {
	Logger *slog.Logger
	// ControlSource is the boolean source that toggles recording.
	// Defaults to core.RecordControlSource.
	ControlSource string
	// FormatSource is the string source carrying the file name format.
	// Defaults to core.FileNameFormatSource.
	FormatSource string
	// Suspended reports whether control changes must be ignored, typically
	// because a playback owns the source layer.
	Suspended func() bool
}

// RecorderController starts and stops a recorder from values published on the
// source layer. It is subscribed directly to the layer so that it sees control
// values while the recorder is stopped.
type RecorderController struct {
	logger        *slog.Logger
	recorder      RecorderControl
	controlSource string
	formatSource  string
	suspended     func() bool

	mu     sync.Mutex
	format string
	last   *bool
}

// NewRecorderController creates a controller for recorder.
func NewRecorderController(recorder RecorderControl, opts RecorderControllerOptions) *RecorderController {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &RecorderController{
		logger:        logger.With("component", "RecorderController"),
		recorder:      recorder,
		controlSource: opts.ControlSource,
		formatSource:  opts.FormatSource,
		suspended:     opts.Suspended,
		format:        core.DefaultFileNameFormat,
	}
	if c.controlSource == "" {
		c.controlSource = core.RecordControlSource
	}
	if c.formatSource == "" {
		c.formatSource = core.FileNameFormatSource
	}
	return c
}

// OnValueChanged implements sources.Listener.
func (c *RecorderController) OnValueChanged(sourceID, typeTag string, value core.TypedValue) {
	switch sourceID {
	case c.formatSource:
		c.onFormat(value)
	case c.controlSource:
		c.onControl(value)
	}
}

// FileNameFormat returns the format that the next start will use.
func (c *RecorderController) FileNameFormat() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

func (c *RecorderController) onFormat(value core.TypedValue) {
	s, ok := value.(core.String)
	if !ok {
		c.logger.Warn("Ignoring non-string file name format", "kind", kindOf(value))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == "" {
		c.format = core.DefaultFileNameFormat
		return
	}
	// Takes effect at the next start.
	c.format = string(s)
}

func (c *RecorderController) onControl(value core.TypedValue) {
	b, ok := value.(core.Boolean)
	if !ok {
		c.logger.Warn("Ignoring non-boolean record control value", "kind", kindOf(value))
		return
	}
	if c.suspended != nil && c.suspended() {
		c.logger.Debug("Ignoring record control value during playback", "value", bool(b))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	on := bool(b)
	if c.last != nil && *c.last == on {
		return
	}
	c.last = &on

	if err := c.recorder.Stop(); err != nil {
		c.logger.Error("Failed to stop recorder", "error", err)
	}
	if !on {
		c.logger.Info("Recording stopped by control source")
		return
	}
	c.recorder.SetFileNameFormat(c.format)
	if err := c.recorder.Start(); err != nil {
		c.logger.Error("Failed to start recorder", "error", err)
		return
	}
	c.logger.Info("Recording started by control source", "file_name_format", c.format)
}

func kindOf(v core.TypedValue) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
