// Package metrics holds the expvar helpers shared by the recorder and playback.
package metrics

import (
	"expvar"
	"fmt"
)

// LatencyBuckets defines the buckets for latency histograms (in seconds).
var LatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}

// Factory creates expvar variables, either published under their name or private.
type Factory struct {
	Global bool
}

// Int returns a counter. A published counter that already exists is reset and reused.
func (f Factory) Int(name string) *expvar.Int {
	if !f.Global {
		return new(expvar.Int)
	}
	return PublishInt(name)
}

// Float returns a gauge.
func (f Factory) Float(name string) *expvar.Float {
	if !f.Global {
		return new(expvar.Float)
	}
	return PublishFloat(name)
}

// Histogram returns a cumulative latency histogram with count, sum and one
// counter per bucket.
func (f Factory) Histogram(name string) *expvar.Map {
	var m *expvar.Map
	if f.Global {
		m = PublishMap(name)
	} else {
		m = new(expvar.Map)
		m.Init()
	}
	m.Set("count", new(expvar.Int))
	m.Set("sum", new(expvar.Float))
	for _, b := range LatencyBuckets {
		m.Set(bucketName(b), new(expvar.Int))
	}
	m.Set("le_inf", new(expvar.Int))
	return m
}

// Func publishes f under name if nothing is published there yet.
func (f Factory) Func(name string, fn func() interface{}) {
	if f.Global {
		PublishFunc(name, fn)
	}
}

func bucketName(b float64) string {
	return fmt.Sprintf("le_%.3f", b)
}

// ObserveLatency records the duration in the provided histogram map.
func ObserveLatency(histMap *expvar.Map, durationSeconds float64) {
	if histMap == nil {
		return
	}
	if countInt, ok := histMap.Get("count").(*expvar.Int); ok {
		countInt.Add(1)
	}
	if sumFloat, ok := histMap.Get("sum").(*expvar.Float); ok {
		sumFloat.Add(durationSeconds)
	}
	// For a cumulative histogram, a value that fits in a smaller bucket
	// must also be counted in all larger buckets.
	for _, b := range LatencyBuckets {
		if durationSeconds <= b {
			if bucketInt, ok := histMap.Get(bucketName(b)).(*expvar.Int); ok {
				bucketInt.Add(1)
			}
		}
	}
	if infInt, ok := histMap.Get("le_inf").(*expvar.Int); ok {
		infInt.Add(1)
	}
}

// PublishInt safely publishes an expvar.Int.
// If the name already exists and is an *expvar.Int, it resets it and returns it.
// If the name exists but is not an *expvar.Int, it panics.
func PublishInt(name string) *expvar.Int {
	v := expvar.Get(name)
	if v == nil {
		return expvar.NewInt(name)
	}
	if iv, ok := v.(*expvar.Int); ok {
		iv.Set(0)
		return iv
	}
	panic(fmt.Sprintf("expvar: trying to publish Int %s but variable already exists with different type %T", name, v))
}

// PublishFloat safely publishes an expvar.Float.
func PublishFloat(name string) *expvar.Float {
	v := expvar.Get(name)
	if v == nil {
		return expvar.NewFloat(name)
	}
	if fv, ok := v.(*expvar.Float); ok {
		fv.Set(0.0)
		return fv
	}
	panic(fmt.Sprintf("expvar: trying to publish Float %s but variable already exists with different type %T", name, v))
}

// PublishFunc safely publishes an expvar.Func.
func PublishFunc(name string, f func() interface{}) {
	// expvar.Publish panics on reuse.
	if expvar.Get(name) != nil {
		return
	}
	expvar.Publish(name, expvar.Func(f))
}

// PublishMap safely publishes an expvar.Map. An existing map is returned as is.
func PublishMap(name string) *expvar.Map {
	v := expvar.Get(name)
	if v == nil {
		return expvar.NewMap(name)
	}
	if mv, ok := v.(*expvar.Map); ok {
		return mv
	}
	panic(fmt.Sprintf("expvar: trying to publish Map %s but variable already exists with different type %T", name, v))
}
