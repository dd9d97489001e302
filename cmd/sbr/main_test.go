package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/INLOpen/sbr/adapters"
	"github.com/INLOpen/sbr/config"
	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/sbrfile"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLogger(t *testing.T) {
	t.Run("Levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "", "INFO"} {
			logger, closer, err := createLogger(config.LoggingConfig{Level: level, Output: "none"})
			require.NoError(t, err, level)
			assert.NotNil(t, logger)
			assert.Nil(t, closer)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		_, _, err := createLogger(config.LoggingConfig{Level: "verbose"})
		assert.ErrorContains(t, err, "invalid log level")
		_, _, err = createLogger(config.LoggingConfig{Output: "syslog"})
		assert.ErrorContains(t, err, "invalid log output")
		_, _, err = createLogger(config.LoggingConfig{Output: "file"})
		assert.ErrorContains(t, err, "no file path")
		_, _, err = createLogger(config.LoggingConfig{Output: "none", Format: "xml"})
		assert.ErrorContains(t, err, "invalid log format")
	})

	t.Run("JSONFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sbr.log")
		logger, closer, err := createLogger(config.LoggingConfig{Level: "warn", Output: "file", File: path, Format: "json"})
		require.NoError(t, err)
		require.NotNil(t, closer)
		logger.Info("hidden")
		logger.Warn("shown", "k", "v")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "hidden")
		assert.Contains(t, string(data), `"msg":"shown"`)
	})
}

func TestParseInputLine(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    inputLine
		wantErr string
	}{
		{"InferredNumber", `{"source":"/a","value":1.5}`, inputLine{Source: "/a", Type: adapters.TagNumber, Value: core.Number(1.5)}, ""},
		{"ExplicitType", `{"source":"/a","type":"Number","value":2}`, inputLine{Source: "/a", Type: "Number", Value: core.Number(2)}, ""},
		{"StringArray", `{"source":"/a","value":["x","y"]}`, inputLine{Source: "/a", Type: adapters.TagStringArray, Value: core.StringArray{"x", "y"}}, ""},
		{"Raw", `{"source":"/a","type":"Raw","value":"AQI="}`, inputLine{Source: "/a", Type: adapters.TagRaw, Value: core.ByteArray{1, 2}}, ""},
		{"Marker", `{"marker":"Auto","description":"go","importance":"high"}`, inputLine{Marker: "Auto", Description: "go", Importance: core.ImportanceHigh}, ""},
		{"MarkerDefaultImportance", `{"marker":"Auto"}`, inputLine{Marker: "Auto", Importance: core.ImportanceNormal}, ""},
		{"NotJSON", `value=1`, inputLine{}, "invalid input line"},
		{"MissingSource", `{"value":1}`, inputLine{}, "missing source"},
		{"MissingValue", `{"source":"/a"}`, inputLine{}, "missing value"},
		{"BothKinds", `{"source":"/a","marker":"m","value":1}`, inputLine{}, "either a sample or a marker"},
		{"BadImportance", `{"marker":"m","importance":"urgent"}`, inputLine{}, "unknown importance"},
		{"BadRaw", `{"source":"/a","type":"Raw","value":"%%"}`, inputLine{}, "base64"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseInputLine([]byte(tc.input))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want.Source, got.Source)
			assert.Equal(t, tc.want.Type, got.Type)
			assert.Equal(t, tc.want.Marker, got.Marker)
			assert.Equal(t, tc.want.Description, got.Description)
			assert.Equal(t, tc.want.Importance, got.Importance)
			if tc.want.Value != nil {
				assert.True(t, core.ValuesEqual(tc.want.Value, got.Value), "value %s", core.FormatValue(got.Value))
			}
		})
	}
}

type fakeSink struct {
	samples   []string
	markers   []string
	rejectAll bool
}

func (s *fakeSink) Publish(sourceID, typeTag string, value core.TypedValue) bool {
	if s.rejectAll {
		return false
	}
	s.samples = append(s.samples, sourceID+"="+core.FormatValue(value))
	return true
}

func (s *fakeSink) AddMarker(name, description string, importance core.Importance) error {
	if s.rejectAll {
		return errors.New("not recording")
	}
	s.markers = append(s.markers, name+"/"+importance.String())
	return nil
}

func TestReadInputs(t *testing.T) {
	input := `{"source":"/a","value":1}

{"marker":"m","importance":"LOW"}
garbage
{"source":"/b","value":true}
`
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink := &fakeSink{}
	stats, err := readInputs(strings.NewReader(input), sink, logger)
	require.NoError(t, err)
	assert.Equal(t, readStats{Samples: 2, Markers: 1, Invalid: 1}, stats)
	assert.Equal(t, []string{"/a=1", "/b=true"}, sink.samples)
	assert.Equal(t, []string{"m/LOW"}, sink.markers)

	stats, err = readInputs(strings.NewReader(input), &fakeSink{rejectAll: true}, logger)
	require.NoError(t, err)
	assert.Equal(t, readStats{Dropped: 3, Invalid: 1}, stats)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "a/match.csv", outputPath("a/match.sbr", "", ".csv"))
	assert.Equal(t, "a/match.csv", outputPath("a/match.sbrz", "", ".csv"))
	assert.Equal(t, filepath.Join("out", "match.sbrz"), outputPath("a/match.sbr", "out", ".sbrz"))
	assert.Equal(t, "notes.txt.csv", outputPath("notes.txt", "", ".csv"))
}

func TestCLI_EndToEnd(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sbr.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
logging:
  output: none
recorder:
  dir: "`+filepath.ToSlash(filepath.Join(dir, "rec"))+`"
  flush_interval: 50ms
  lock_file: false
`), 0644))

	run := func(stdin string, args ...string) (string, error) {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetIn(strings.NewReader(stdin))
		root.SetArgs(append([]string{"--config", cfgPath}, args...))
		err := root.ExecuteContext(context.Background())
		return out.String(), err
	}

	input := strings.Join([]string{
		`{"source":"/SmartDashboard/speed","value":1.5}`,
		`{"source":"/SmartDashboard/name","value":"robot"}`,
		`{"marker":"Auto start","importance":"HIGH"}`,
		`not json`,
		`{"source":"/SmartDashboard/speed","type":"Number","value":2}`,
		`{"source":"` + core.MarkerEventsPrefix + `Climb/Info","type":"StringArray","value":["Climbing","CRITICAL"]}`,
	}, "\n")

	out, err := run(input, "record", "--name", "match-${date}")
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 2, out)
	path := fields[0]
	assert.Equal(t, "6 entries", fields[1])
	assert.True(t, strings.HasPrefix(path, filepath.Join(dir, "rec")))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "match-"))

	rec, err := sbrfile.Load(context.Background(), path, adapters.NewDefaultRegistry(nil))
	require.NoError(t, err)
	require.Len(t, rec.Markers(), 2)
	assert.Equal(t, "Auto start", rec.Markers()[0].Name)
	assert.Equal(t, "Climb", rec.Markers()[1].Name)
	assert.Equal(t, core.ImportanceCritical, rec.Markers()[1].Importance)
	assert.Equal(t, 4, rec.NumFrames())

	t.Run("Info", func(t *testing.T) {
		out, err := run("", "info", "--sources", path)
		require.NoError(t, err)
		assert.Contains(t, out, "ENTRIES")
		assert.Contains(t, out, path)
		assert.Contains(t, out, "/SmartDashboard/speed")

		_, err = run("", "info", filepath.Join(dir, "missing.sbr"))
		assert.ErrorContains(t, err, "1 of 1 recordings could not be read")
	})

	t.Run("Export", func(t *testing.T) {
		outDir := filepath.Join(dir, "csv")
		out, err := run("", "export", "--out", outDir, path)
		require.NoError(t, err)
		csvPath := strings.TrimSpace(out)
		assert.Equal(t, outputPath(path, outDir, ".csv"), csvPath)

		data, err := os.ReadFile(csvPath)
		require.NoError(t, err)
		header := strings.SplitN(string(data), "\n", 2)[0]
		assert.Equal(t, "Timestamp,Event,Event Description,Event Severity,/SmartDashboard/name,/SmartDashboard/speed", header)

		_, err = run("", "export", "--format", "parquet", path)
		assert.ErrorContains(t, err, "parquet")
	})

	t.Run("Archive", func(t *testing.T) {
		out, err := run("", "archive", "--compression", "lz4", path)
		require.NoError(t, err)
		archivePath := strings.TrimSpace(out)
		assert.Equal(t, outputPath(path, "", core.ArchiveFileSuffix), archivePath)

		archived, err := sbrfile.Load(context.Background(), archivePath, adapters.NewDefaultRegistry(nil))
		require.NoError(t, err)
		assert.Equal(t, rec.Len(), archived.Len())

		_, err = run("", "archive", "--compression", "brotli", path)
		assert.Error(t, err)
	})

	t.Run("Play", func(t *testing.T) {
		out, err := run("", "play", "--loop=false", "--speed", "1000", path)
		require.NoError(t, err)
		assert.Contains(t, out, "/SmartDashboard/speed = 1.5")
		assert.Contains(t, out, "/SmartDashboard/speed = 2")
	})
}
