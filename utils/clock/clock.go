// Package clock abstracts time so that recorders and playback can run against
// the wall clock or a manually advanced clock in tests.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending callback created by AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Clock provides the current time and delayed callbacks.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on Chan until stopped.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// SystemClock is the wall clock.
type SystemClock struct {
	real clockwork.Clock
}

// NewSystemClock returns the wall clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{real: clockwork.NewRealClock()}
}

func (c *SystemClock) Now() time.Time {
	return c.real.Now()
}

func (c *SystemClock) Since(t time.Time) time.Duration {
	return c.real.Since(t)
}

func (c *SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.real.AfterFunc(d, f)
}

func (c *SystemClock) NewTicker(d time.Duration) Ticker {
	return c.real.NewTicker(d)
}
