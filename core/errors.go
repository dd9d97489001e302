package core

import (
	"errors"
	"fmt"
)

// ValidationError is a custom error type for validation failures.
type ValidationError struct {
	Message string
	Field   string // e.g., "importance", "source_id"
	Value   string // The invalid value
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s '%s': %s", e.Field, e.Value, e.Message)
}

// TruncatedBufferError is returned when a decode needs more bytes than remain.
type TruncatedBufferError struct {
	Pos       int
	Needed    int
	Available int
}

func (e *TruncatedBufferError) Error() string {
	return fmt.Sprintf("truncated buffer: need %d bytes at position %d, only %d available", e.Needed, e.Pos, e.Available)
}

// UnsupportedTypeError is returned when no adapter can serialize a value.
type UnsupportedTypeError struct {
	Tag     string
	Message string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("unsupported type value: %s", e.Message)
	}
	return fmt.Sprintf("unsupported type %q: %s", e.Tag, e.Message)
}

// UnknownTypeTagError is returned when a recording references a type tag
// that has no registered adapter, typically because a plugin is missing.
type UnknownTypeTagError struct {
	Tag string
}

func (e *UnknownTypeTagError) Error() string {
	return fmt.Sprintf("unknown type tag %q: no adapter registered", e.Tag)
}

// CorruptRecordingError wraps any failure to parse a recording, with the byte
// offset where parsing stopped.
type CorruptRecordingError struct {
	Offset int64
	Cause  error
}

func (e *CorruptRecordingError) Error() string {
	return fmt.Sprintf("corrupt recording at offset %d: %v", e.Offset, e.Cause)
}

func (e *CorruptRecordingError) Unwrap() error { return e.Cause }

// FrameIndexOutOfRangeError is returned by playback for frames outside [0, Max].
type FrameIndexOutOfRangeError struct {
	Index int
	Max   int
}

func (e *FrameIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("frame index %d out of range [0, %d]", e.Index, e.Max)
}

var (
	// ErrOutOfOrder is returned when an entry is older than the last appended one.
	ErrOutOfOrder = errors.New("entry timestamp precedes the last appended entry")
	// ErrNotRunning is returned by recorder operations that need an active session.
	ErrNotRunning = errors.New("recorder is not running")
	// ErrNotLoaded is returned by playback operations on a stopped playback.
	ErrNotLoaded = errors.New("playback is not loaded")
)

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

func IsTruncatedBufferError(err error) bool {
	var truncated *TruncatedBufferError
	return errors.As(err, &truncated)
}

func IsUnsupportedError(err error) bool {
	var unsupportedError *UnsupportedTypeError
	return errors.As(err, &unsupportedError)
}

func IsUnknownTypeTagError(err error) bool {
	var unknown *UnknownTypeTagError
	return errors.As(err, &unknown)
}

// IsCorruptRecordingError checks if an error is, or wraps, a CorruptRecordingError.
func IsCorruptRecordingError(err error) bool {
	var corrupt *CorruptRecordingError
	return errors.As(err, &corrupt)
}

func IsFrameIndexOutOfRangeError(err error) bool {
	var outOfRange *FrameIndexOutOfRangeError
	return errors.As(err, &outOfRange)
}
