package clock

import (
	"sort"
	"sync"
	"time"
)

// MockClock is a manually advanced clock. Callbacks registered with AfterFunc
// run synchronously inside Advance or Set, in deadline order, without the
// clock lock held, so they may schedule further callbacks.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	seq     uint64
	timers  []*mockTimer
	tickers []*mockTicker
}

type mockTimer struct {
	clock    *MockClock
	deadline time.Time
	seq      uint64
	f        func()
	stopped  bool
	fired    bool
}

// NewMockClock creates a MockClock starting at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// AfterFunc registers f to run once the clock reaches now+d. A non-positive d
// fires on the next Advance, including Advance(0).
func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &mockTimer{clock: c, deadline: c.current.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing due timers and tickers.
// Panics if d is negative.
func (c *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()
	c.runUntil(target)
}

// Set moves the clock to t. Panics if t is before the current time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	if t.Before(c.current) {
		c.mu.Unlock()
		panic("clock: cannot set time to the past")
	}
	c.mu.Unlock()
	c.runUntil(t)
}

// runUntil fires timers one at a time so that callbacks observe the clock at
// their own deadline and timers they create within the window also fire.
func (c *MockClock) runUntil(target time.Time) {
	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.current = target
			c.tickLocked()
			c.mu.Unlock()
			return
		}
		if next.deadline.After(c.current) {
			c.current = next.deadline
		}
		next.fired = true
		c.tickLocked()
		c.mu.Unlock()
		next.f()
	}
}

func (c *MockClock) nextDueLocked(target time.Time) *mockTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(c.timers, func(i, j int) bool {
		if !c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].deadline.Before(c.timers[j].deadline)
		}
		return c.timers[i].seq < c.timers[j].seq
	})
	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

type mockTicker struct {
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTicker{ch: make(chan time.Time, 1), period: d, next: c.current.Add(d)}
	c.tickers = append(c.tickers, t)
	return &mockTickerHandle{clock: c, t: t}
}

// tickLocked delivers at most one pending tick per ticker, dropping ticks for
// slow receivers like time.Ticker does.
func (c *MockClock) tickLocked() {
	for _, t := range c.tickers {
		if t.stopped || t.next.After(c.current) {
			continue
		}
		for !t.next.After(c.current) {
			t.next = t.next.Add(t.period)
		}
		select {
		case t.ch <- c.current:
		default:
		}
	}
}

type mockTickerHandle struct {
	clock *MockClock
	t     *mockTicker
}

func (h *mockTickerHandle) Chan() <-chan time.Time { return h.t.ch }

func (h *mockTickerHandle) Stop() {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	h.t.stopped = true
}
