package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/recording"
)

// CSVHeader holds the leading columns of every CSV export. Source columns follow.
var CSVHeader = []string{"Timestamp", "Event", "Event Description", "Event Severity"}

// CSVConverter writes one row per time window: the window start, the first
// marker in the window and the latest value of each source sampled in it.
type CSVConverter struct {
	logger *slog.Logger
}

// NewCSVConverter creates a CSV converter.
func NewCSVConverter(logger *slog.Logger) *CSVConverter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CSVConverter{logger: logger.With("component", "CSVConverter")}
}

func (c *CSVConverter) Format() string    { return "CSV" }
func (c *CSVConverter) Extension() string { return ".csv" }

// Header returns the CSV header of rec: the fixed columns, then the source ids
// in natural order.
func (c *CSVConverter) Header(rec *recording.Recording, settings Settings) []string {
	var ids []string
	for _, id := range rec.SourceIDs() {
		if !settings.ConvertMetadata && core.IsMetadataSource(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool { return naturalLess(ids[i], ids[j]) })
	return append(append([]string(nil), CSVHeader...), ids...)
}

func (c *CSVConverter) Export(rec *recording.Recording, w io.Writer, settings Settings) error {
	header := c.Header(rec, settings)
	column := make(map[string]int, len(header))
	for i, id := range header[len(CSVHeader):] {
		column[id] = len(CSVHeader) + i
	}

	keep := func(e core.Entry) bool {
		return e.Data == nil || settings.ConvertMetadata || !core.IsMetadataSource(e.Data.SourceID)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, win := range rec.WindowsFunc(settings.window(), keep) {
		if len(win.Entries) == 0 {
			continue
		}
		row := make([]string, len(header))
		row[0] = strconv.FormatInt(win.Start, 10)
		for i, m := range win.Markers() {
			if i == 0 {
				row[1] = m.Name
				row[2] = m.Description
				row[3] = m.Importance.String()
				continue
			}
			c.logger.Warn("Multiple markers in one window, keeping the first",
				"window_start", win.Start, "kept", row[1], "dropped", m.Name, "marker_timestamp", m.Timestamp)
		}
		for _, d := range win.Data() {
			idx, ok := column[d.SourceID]
			if !ok {
				continue
			}
			row[idx] = core.FormatValue(d.Value)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row at %d: %w", win.Start, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
