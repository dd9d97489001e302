package core

import (
	"fmt"
	"strings"
)

// Importance ranks how significant a marker is.
type Importance byte

const (
	ImportanceTrivial  Importance = 0
	ImportanceLow      Importance = 1
	ImportanceNormal   Importance = 2
	ImportanceHigh     Importance = 3
	ImportanceCritical Importance = 4
)

// String returns the upper-case name of the importance level.
func (i Importance) String() string {
	switch i {
	case ImportanceTrivial:
		return "TRIVIAL"
	case ImportanceLow:
		return "LOW"
	case ImportanceNormal:
		return "NORMAL"
	case ImportanceHigh:
		return "HIGH"
	case ImportanceCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Importance(%d)", byte(i))
	}
}

// Valid reports whether i is one of the declared levels.
func (i Importance) Valid() bool {
	return i <= ImportanceCritical
}

// ParseImportance parses an importance name, ignoring case and surrounding space.
func ParseImportance(s string) (Importance, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRIVIAL":
		return ImportanceTrivial, nil
	case "LOW":
		return ImportanceLow, nil
	case "NORMAL":
		return ImportanceNormal, nil
	case "HIGH":
		return ImportanceHigh, nil
	case "CRITICAL":
		return ImportanceCritical, nil
	default:
		return 0, &ValidationError{Field: "importance", Value: s, Message: "unknown importance level"}
	}
}

// TimestampedData is a single recorded sample. Timestamp is in milliseconds
// relative to the start of the recording session.
type TimestampedData struct {
	SourceID  string
	TypeTag   string
	Value     TypedValue
	Timestamp int64
}

func (d TimestampedData) String() string {
	return fmt.Sprintf("TimestampedData(source=%s, type=%s, value=%s, timestamp=%d)", d.SourceID, d.TypeTag, FormatValue(d.Value), d.Timestamp)
}

// Marker annotates a point in a recording independently of any source.
type Marker struct {
	Name        string
	Description string
	Importance  Importance
	Timestamp   int64
}

func (m Marker) String() string {
	return fmt.Sprintf("Marker(name=%s, importance=%s, timestamp=%d)", m.Name, m.Importance, m.Timestamp)
}

// EntryKind is the record kind byte of the on-disk stream.
type EntryKind byte

const (
	EntryKindPool   EntryKind = 0x50 // 'P'
	EntryKindData   EntryKind = 0x44 // 'D'
	EntryKindMarker EntryKind = 0x4D // 'M'
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindPool:
		return "POOL"
	case EntryKindData:
		return "DATA"
	case EntryKindMarker:
		return "MARKER"
	default:
		return fmt.Sprintf("EntryKind(0x%02x)", byte(k))
	}
}

// Entry is either a data sample or a marker. Exactly one of Data or Marker is set.
type Entry struct {
	Data   *TimestampedData
	Marker *Marker
}

// DataEntry wraps a sample as an Entry.
func DataEntry(d TimestampedData) Entry { return Entry{Data: &d} }

// MarkerEntry wraps a marker as an Entry.
func MarkerEntry(m Marker) Entry { return Entry{Marker: &m} }

// Kind returns the record kind of the entry.
func (e Entry) Kind() EntryKind {
	if e.Marker != nil {
		return EntryKindMarker
	}
	return EntryKindData
}

// Timestamp returns the timestamp of whichever variant is set.
func (e Entry) Timestamp() int64 {
	if e.Marker != nil {
		return e.Marker.Timestamp
	}
	if e.Data != nil {
		return e.Data.Timestamp
	}
	return 0
}
