package recording

import (
	"fmt"

	"github.com/caio/go-tdigest/v4"
)

// SourceStats summarizes the sampling cadence of one source.
type SourceStats struct {
	SourceID string
	Samples  int
	// Interval quantiles in milliseconds between consecutive samples.
	P50 float64
	P90 float64
	P99 float64
}

// Stats summarizes a recording.
type Stats struct {
	Entries int
	Frames  int
	Markers int
	Sources []SourceStats
	// Duration is Last-First in milliseconds.
	Duration int64
	// Interval quantiles across all sources.
	P50 float64
	P99 float64
}

type sourceAcc struct {
	td      *tdigest.TDigest
	last    int64
	samples int
}

// ComputeStats walks the samples once and estimates interval quantiles.
func (r *Recording) ComputeStats() (Stats, error) {
	frames := r.Data()
	stats := Stats{
		Entries:  r.Len(),
		Frames:   len(frames),
		Markers:  len(r.Markers()),
		Duration: r.Length(),
	}

	overall, err := tdigest.New()
	if err != nil {
		return Stats{}, fmt.Errorf("tdigest.New failed: %w", err)
	}
	accs := make(map[string]*sourceAcc)
	for _, f := range frames {
		acc, ok := accs[f.SourceID]
		if !ok {
			td, err := tdigest.New()
			if err != nil {
				return Stats{}, fmt.Errorf("tdigest.New failed: %w", err)
			}
			acc = &sourceAcc{td: td, last: f.Timestamp}
			accs[f.SourceID] = acc
		} else {
			interval := float64(f.Timestamp - acc.last)
			if err := acc.td.AddWeighted(interval, 1); err != nil {
				return Stats{}, fmt.Errorf("failed to add interval for %s: %w", f.SourceID, err)
			}
			if err := overall.AddWeighted(interval, 1); err != nil {
				return Stats{}, fmt.Errorf("failed to add interval: %w", err)
			}
			acc.last = f.Timestamp
		}
		acc.samples++
	}

	for _, id := range r.SourceIDs() {
		acc := accs[id]
		s := SourceStats{SourceID: id, Samples: acc.samples}
		if acc.td.Count() > 0 {
			s.P50 = acc.td.Quantile(0.5)
			s.P90 = acc.td.Quantile(0.9)
			s.P99 = acc.td.Quantile(0.99)
		}
		stats.Sources = append(stats.Sources, s)
	}
	if overall.Count() > 0 {
		stats.P50 = overall.Quantile(0.5)
		stats.P99 = overall.Quantile(0.99)
	}
	return stats, nil
}
