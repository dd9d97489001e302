package adapters

import (
	"testing"
	"unicode/utf8"

	"github.com/INLOpen/sbr/core"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func roundTrips(r *Registry, tag string, v core.TypedValue) bool {
	a, ok := r.Lookup(tag)
	if !ok {
		return false
	}
	encoded, err := a.Serialize(v)
	if err != nil {
		return false
	}
	decoded, n, err := a.Deserialize(encoded, 0)
	return err == nil && n == len(encoded) && core.ValuesEqual(v, decoded)
}

func TestAdapterRoundTripProperties(t *testing.T) {
	r := NewDefaultRegistry(nil)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("Number", prop.ForAll(
		func(f float64) bool { return roundTrips(r, TagNumber, core.Number(f)) },
		gen.Float64(),
	))
	properties.Property("String", prop.ForAll(
		func(s string) bool {
			if !utf8.ValidString(s) {
				return true
			}
			return roundTrips(r, TagString, core.String(s))
		},
		gen.AnyString(),
	))
	properties.Property("BooleanArray", prop.ForAll(
		func(v []bool) bool { return roundTrips(r, TagBooleanArray, core.BooleanArray(v)) },
		gen.SliceOf(gen.Bool()),
	))
	properties.Property("NumberArray", prop.ForAll(
		func(v []float64) bool { return roundTrips(r, TagNumberArray, core.NumberArray(v)) },
		gen.SliceOf(gen.Float64()),
	))
	properties.Property("StringArray", prop.ForAll(
		func(v []string) bool { return roundTrips(r, TagStringArray, core.StringArray(v)) },
		gen.SliceOf(gen.AlphaString()),
	))
	properties.Property("Raw", prop.ForAll(
		func(v []uint8) bool { return roundTrips(r, TagRaw, core.ByteArray(v)) },
		gen.SliceOf(gen.UInt8()),
	))
	properties.Property("Complex", prop.ForAll(
		func(keys []string, nums []float64, label string) bool {
			c := core.Complex{"label": core.String(label), "values": core.NumberArray(nums)}
			for i, k := range keys {
				c["k_"+k] = core.Number(float64(i))
			}
			return roundTrips(r, TagComplex, c)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
