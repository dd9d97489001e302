package convert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/internal/testutil"
	"github.com/INLOpen/sbr/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptyHeader = "Timestamp,Event,Event Description,Event Severity"

func exportLines(t *testing.T, c *CSVConverter, rec *recording.Recording, settings Settings) []string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Export(rec, &buf, settings))
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestCSV_DataAndMarkerInSameWindow(t *testing.T) {
	rec := testutil.NewRecording(t,
		testutil.Sample("foo", "String", 0, core.String("bar")),
		testutil.Marker("Name", "Description", core.ImportanceCritical, 4),
	)

	lines := exportLines(t, NewCSVConverter(nil), rec, Settings{})
	require.Len(t, lines, 2)
	assert.Equal(t, emptyHeader+",foo", lines[0])
	assert.Equal(t, "0,Name,Description,CRITICAL,bar", lines[1])
}

func TestCSV_MultipleMarkersInSameWindow(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	rec := testutil.NewRecording(t,
		testutil.Marker("First", "", core.ImportanceLow, 0),
		testutil.Marker("Second", "", core.ImportanceCritical, 0),
		testutil.Marker("Third", "", core.ImportanceNormal, 255),
	)

	lines := exportLines(t, NewCSVConverter(logger), rec, Settings{})
	assert.Equal(t, []string{emptyHeader, "0,First,,LOW", "255,Third,,NORMAL"}, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.SplitN(logs.Bytes(), []byte("\n"), 2)[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Second", entry["dropped"])
}

func TestCSV_LatestValuePerWindow(t *testing.T) {
	rec := testutil.NewRecording(t,
		testutil.Number("motor10", 0, 1),
		testutil.Number("motor2", 2, 5),
		testutil.Number("motor10", 7, 2), // still in the window starting at 0
		testutil.Number("motor2", 8, 6),  // starts a new window
		testutil.Sample("flags", "BooleanArray", 20, core.BooleanArray{true, false}),
	)

	lines := exportLines(t, NewCSVConverter(nil), rec, Settings{})
	assert.Equal(t, []string{
		emptyHeader + ",flags,motor2,motor10",
		"0,,,,,5,2",
		"8,,,,,6,",
		`20,,,,"[true, false]",,`,
	}, lines)
}

func TestCSV_MetadataSources(t *testing.T) {
	rec := testutil.NewRecording(t,
		testutil.Sample(core.RecordControlSource, "Boolean", 0, core.Boolean(true)),
		testutil.Number("speed", 0, 3),
		testutil.Sample("/LiveWindow/.metadata/Type", "String", 100, core.String("Motor")),
	)
	c := NewCSVConverter(nil)

	lines := exportLines(t, c, rec, Settings{})
	assert.Equal(t, []string{emptyHeader + ",speed", "0,,,,3"}, lines, "metadata-only windows produce no rows")

	lines = exportLines(t, c, rec, Settings{ConvertMetadata: true})
	assert.Equal(t, emptyHeader+",/LiveWindow/.metadata/Type,"+core.RecordControlSource+",speed", lines[0])
	assert.Equal(t, []string{"0,,,,,true,3", "100,,,,Motor,,"}, lines[1:])
}

func TestCSV_CustomWindow(t *testing.T) {
	rec := testutil.NewRecording(t,
		testutil.Number("a", 0, 1),
		testutil.Number("a", 15, 2),
		testutil.Number("a", 40, 3),
	)
	lines := exportLines(t, NewCSVConverter(nil), rec, Settings{TimeWindow: 20})
	assert.Equal(t, []string{emptyHeader + ",a", "0,,,,2", "40,,,,3"}, lines)
}

func TestCSV_EmptyRecording(t *testing.T) {
	lines := exportLines(t, NewCSVConverter(nil), recording.New(), Settings{})
	assert.Equal(t, []string{emptyHeader}, lines)
}

func TestNaturalLess(t *testing.T) {
	ids := []string{"motor10", "motor2", "Motor1", "arm", "motor02", "motor", "a1b10", "a1b9"}
	sorted := append([]string(nil), ids...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && naturalLess(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	assert.Equal(t, []string{"Motor1", "a1b9", "a1b10", "arm", "motor", "motor2", "motor02", "motor10"}, sorted)

	assert.False(t, naturalLess("x", "x"))
	assert.True(t, naturalLess("", "x"))
	assert.False(t, naturalLess("x", ""))
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil)
	assert.Equal(t, []string{"CSV"}, r.Formats())

	c, err := r.Lookup("csv")
	require.NoError(t, err)
	assert.Equal(t, ".csv", c.Extension())

	_, err = r.Lookup("parquet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parquet")
}
