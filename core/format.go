package core

import (
	"fmt"
	"strings"
	"time"
)

// This file centralizes constants related to file formats, magic numbers,
// and naming conventions used across the recording subsystem.

// --- Magic Numbers ---
const (
	// RecordingMagicNumber identifies a recording file. It doubles as the format version.
	RecordingMagicNumber uint32 = 0xFEEDBAC5
	// ArchiveMagicNumber identifies a compressed recording archive.
	ArchiveMagicNumber uint32 = 0x53425241 // "SBRA"
)

// --- File Names & Suffixes ---
const (
	// RecordingFileSuffix is the extension of recording files.
	RecordingFileSuffix = ".sbr"
	// ArchiveFileSuffix is the extension of compressed recording archives.
	ArchiveFileSuffix = ".sbrz"
	// DefaultFileNameFormat is the default recording file name, without suffix.
	DefaultFileNameFormat = "recording-${time}"
)

// --- Reserved source namespaces ---
const (
	// RecordingMetadataPrefix is the namespace of sources that control or annotate the recorder.
	RecordingMetadataPrefix = "/Shuffleboard/.recording/"
	// MarkerEventsPrefix holds marker definitions published by the live system.
	MarkerEventsPrefix = RecordingMetadataPrefix + "events/"
	// RecordControlSource toggles the recorder on and off.
	RecordControlSource = RecordingMetadataPrefix + "RecordData"
	// FileNameFormatSource carries the desired recording file name format.
	FileNameFormatSource = RecordingMetadataPrefix + "FileNameFormat"
)

// IsMetadataSource reports whether a source id carries recorder metadata rather than telemetry.
func IsMetadataSource(sourceID string) bool {
	return strings.HasPrefix(sourceID, RecordingMetadataPrefix) || strings.Contains(sourceID, "/.metadata")
}

// FormatRecordingFileName expands ${time} and ${date} in a file name format and
// appends the recording suffix.
func FormatRecordingFileName(format string, t time.Time) string {
	if format == "" {
		format = DefaultFileNameFormat
	}
	name := strings.ReplaceAll(format, "${time}", t.Format("2006-01-02_15.04.05"))
	name = strings.ReplaceAll(name, "${date}", t.Format("2006-01-02"))
	if !strings.HasSuffix(name, RecordingFileSuffix) {
		name += RecordingFileSuffix
	}
	return name
}

// FormatTempFilename builds the name of a scratch file next to its final destination.
func FormatTempFilename(name, suffix string) string {
	return fmt.Sprintf("%s.%s", name, suffix)
}
