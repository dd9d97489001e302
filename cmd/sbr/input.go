package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/core"
)

// inputLine is one line of `sbr record` input. A line carries either a sample
// or a marker.
type inputLine struct {
	Source string
	Type   string
	Value  core.TypedValue

	Marker      string
	Description string
	Importance  core.Importance
}

func (l inputLine) isMarker() bool { return l.Marker != "" }

type rawInputLine struct {
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Value       json.RawMessage `json:"value"`
	Marker      string          `json:"marker"`
	Description string          `json:"description"`
	Importance  string          `json:"importance"`
}

// parseInputLine decodes {"source","type","value"} or
// {"marker","description","importance"}. A missing type is inferred from the
// value; Raw values are base64 strings.
func parseInputLine(data []byte) (inputLine, error) {
	var raw rawInputLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return inputLine{}, fmt.Errorf("invalid input line: %w", err)
	}

	switch {
	case raw.Marker != "" && raw.Source != "":
		return inputLine{}, &core.ValidationError{Field: "marker", Value: raw.Marker, Message: "a line holds either a sample or a marker"}
	case raw.Marker != "":
		importance := core.ImportanceNormal
		if raw.Importance != "" {
			var err error
			if importance, err = core.ParseImportance(raw.Importance); err != nil {
				return inputLine{}, err
			}
		}
		return inputLine{Marker: raw.Marker, Description: raw.Description, Importance: importance}, nil
	case raw.Source == "":
		return inputLine{}, &core.ValidationError{Field: "source", Message: "missing source or marker"}
	case len(raw.Value) == 0:
		return inputLine{}, &core.ValidationError{Field: "value", Value: raw.Source, Message: "missing value"}
	}

	value, err := decodeInputValue(raw.Type, raw.Value)
	if err != nil {
		return inputLine{}, fmt.Errorf("source %s: %w", raw.Source, err)
	}
	tag := raw.Type
	if tag == "" {
		tag = adapters.DefaultTag(value)
	}
	return inputLine{Source: raw.Source, Type: tag, Value: value}, nil
}

func decodeInputValue(tag string, data json.RawMessage) (core.TypedValue, error) {
	if tag == adapters.TagRaw {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("raw values must be base64 strings: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 raw value: %w", err)
		}
		return core.ByteArray(b), nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}
	return core.ValueFromInterface(v)
}

// sampleSink receives decoded input.
type sampleSink interface {
	Publish(sourceID, typeTag string, value core.TypedValue) bool
	AddMarker(name, description string, importance core.Importance) error
}

type readStats struct {
	Samples int
	Markers int
	Dropped int
	Invalid int
}

// readInputs feeds every line of r to sink. Malformed lines are logged and
// skipped.
func readInputs(r io.Reader, sink sampleSink, logger *slog.Logger) (readStats, error) {
	var stats readStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		line, err := parseInputLine(data)
		if err != nil {
			stats.Invalid++
			logger.Warn("Skipping input line", "line", lineNo, "error", err)
			continue
		}
		if line.isMarker() {
			if err := sink.AddMarker(line.Marker, line.Description, line.Importance); err != nil {
				stats.Dropped++
				logger.Warn("Failed to add marker", "line", lineNo, "marker", line.Marker, "error", err)
				continue
			}
			stats.Markers++
			continue
		}
		if !sink.Publish(line.Source, line.Type, line.Value) {
			stats.Dropped++
			continue
		}
		stats.Samples++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read input: %w", err)
	}
	return stats, nil
}
