package recording

import (
	"sort"

	"github.com/INLOpen/sbr/core"
)

// DefaultWindow is the grouping width used by exporters, in milliseconds.
const DefaultWindow int64 = 7

// Window is a group of entries that start within width milliseconds of Start.
type Window struct {
	Start   int64
	Entries []core.Entry
}

// Markers returns the markers in the window, in order.
func (w Window) Markers() []core.Marker {
	var out []core.Marker
	for _, e := range w.Entries {
		if e.Marker != nil {
			out = append(out, *e.Marker)
		}
	}
	return out
}

// Data returns the samples in the window, in order.
func (w Window) Data() []core.TimestampedData {
	var out []core.TimestampedData
	for _, e := range w.Entries {
		if e.Data != nil {
			out = append(out, *e.Data)
		}
	}
	return out
}

// Windows groups all entries into consecutive windows of the given width.
func (r *Recording) Windows(width int64) []Window {
	return r.WindowsFunc(width, nil)
}

// WindowsFunc groups the entries accepted by keep into consecutive windows. A
// window starts at the first entry not covered by the previous window and
// covers entries with timestamps up to and including Start+width. Markers are
// moved to the front of their window; other entries keep their order. A nil
// keep accepts everything and a negative width is treated as zero.
func (r *Recording) WindowsFunc(width int64, keep func(core.Entry) bool) []Window {
	if width < 0 {
		width = 0
	}
	var windows []Window
	for _, e := range r.Entries() {
		if keep != nil && !keep(e) {
			continue
		}
		n := len(windows)
		if n > 0 && e.Timestamp() <= windows[n-1].Start+width {
			windows[n-1].Entries = append(windows[n-1].Entries, e)
			continue
		}
		windows = append(windows, Window{Start: e.Timestamp(), Entries: []core.Entry{e}})
	}
	for i := range windows {
		sort.SliceStable(windows[i].Entries, func(a, b int) bool {
			return windows[i].Entries[a].Marker != nil && windows[i].Entries[b].Marker == nil
		})
	}
	return windows
}
