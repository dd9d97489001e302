// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/INLOpen/sbr/core"
	"github.com/INLOpen/sbr/recording"
	"github.com/stretchr/testify/require"
)

// Number builds a Number sample.
func Number(source string, ts int64, v float64) core.Entry {
	return core.DataEntry(core.TimestampedData{SourceID: source, TypeTag: "Number", Value: core.Number(v), Timestamp: ts})
}

// Sample builds a sample with an explicit tag.
func Sample(source, tag string, ts int64, v core.TypedValue) core.Entry {
	return core.DataEntry(core.TimestampedData{SourceID: source, TypeTag: tag, Value: v, Timestamp: ts})
}

// Marker builds a marker entry.
func Marker(name, description string, importance core.Importance, ts int64) core.Entry {
	return core.MarkerEntry(core.Marker{Name: name, Description: description, Importance: importance, Timestamp: ts})
}

// NewRecording builds a recording from entries in order.
func NewRecording(t testing.TB, entries ...core.Entry) *recording.Recording {
	t.Helper()
	rec, err := recording.FromEntries(entries)
	require.NoError(t, err)
	return rec
}

// RequireSameEntries compares entries by kind, timestamp, strings and value.
func RequireSameEntries(t testing.TB, want, got []core.Entry) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		require.Equal(t, w.Kind(), g.Kind(), "entry %d kind", i)
		require.Equal(t, w.Timestamp(), g.Timestamp(), "entry %d timestamp", i)
		if w.Marker != nil {
			require.Equal(t, *w.Marker, *g.Marker, "entry %d marker", i)
			continue
		}
		require.Equal(t, w.Data.SourceID, g.Data.SourceID, "entry %d source", i)
		require.Equal(t, w.Data.TypeTag, g.Data.TypeTag, "entry %d tag", i)
		require.True(t, core.ValuesEqual(w.Data.Value, g.Data.Value), "entry %d value: want %s, got %s", i,
			core.FormatValue(w.Data.Value), core.FormatValue(g.Data.Value))
	}
}
