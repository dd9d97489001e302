package recorder

import (
	"expvar"

	"github.com/INLOpen/sbr/internal/metrics"
)

// Metrics holds the expvar variables of a Recorder.
type Metrics struct {
	PublishedGlobally bool

	RecordsTotal      *expvar.Int
	RecordErrorsTotal *expvar.Int
	MarkersTotal      *expvar.Int
	SessionsTotal     *expvar.Int
	SourcesTotal      *expvar.Int

	FlushTotal        *expvar.Int
	FlushErrorsTotal  *expvar.Int
	FlushSkippedTotal *expvar.Int
	FlushBytesTotal   *expvar.Int
	FlushEntriesTotal *expvar.Int

	FlushLatencyHist *expvar.Map
}

// NewMetrics creates the recorder metrics. When publishGlobally is set the
// variables are published under prefix, e.g. "sbr_recorder_".
func NewMetrics(publishGlobally bool, prefix string) *Metrics {
	f := metrics.Factory{Global: publishGlobally}
	return &Metrics{
		PublishedGlobally: publishGlobally,
		RecordsTotal:      f.Int(prefix + "records_total"),
		RecordErrorsTotal: f.Int(prefix + "record_errors_total"),
		MarkersTotal:      f.Int(prefix + "markers_total"),
		SessionsTotal:     f.Int(prefix + "sessions_total"),
		SourcesTotal:      f.Int(prefix + "sources_total"),
		FlushTotal:        f.Int(prefix + "flush_total"),
		FlushErrorsTotal:  f.Int(prefix + "flush_errors_total"),
		FlushSkippedTotal: f.Int(prefix + "flush_skipped_total"),
		FlushBytesTotal:   f.Int(prefix + "flush_bytes_total"),
		FlushEntriesTotal: f.Int(prefix + "flush_entries_total"),
		FlushLatencyHist:  f.Histogram(prefix + "flush_latency_seconds"),
	}
}
