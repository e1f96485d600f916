// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock pinned to the given time. Time moves only
// when Advance is called; every pending timer, ticker, and sleep whose
// deadline falls inside the advanced window fires in deadline order.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. AfterFunc callbacks
// run synchronously inside Advance, so a callback must not itself call
// Advance or Sleep; that would deadlock.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*pendingTimer
	changed *sync.Cond
}

type pendingTimer struct {
	deadline time.Time
	ch       chan time.Time // nil for AfterFunc entries
	fn       func()         // nil for After/Sleep/Ticker entries
	interval time.Duration  // non-zero for tickers; rearmed after firing
	stopped  bool
	fired    bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock advances past
// d. If d <= 0 the channel receives immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.add(&pendingTimer{deadline: c.now.Add(d), ch: ch})
	return ch
}

// AfterFunc schedules f to run when the clock advances past d. If
// d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	if d <= 0 {
		c.mu.Unlock()
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}
	defer c.mu.Unlock()

	entry := &pendingTimer{deadline: c.now.Add(d), fn: f}
	c.add(entry)

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if entry.stopped || entry.fired {
				return false
			}
			entry.stopped = true
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasPending := !entry.stopped && !entry.fired
			entry.stopped = false
			entry.fired = false
			entry.deadline = c.now.Add(d)
			if !wasPending {
				// The entry was removed from pending when it fired;
				// re-register it.
				c.add(entry)
			}
			return wasPending
		},
	}
}

// NewTicker returns a Ticker that fires once per interval during
// Advance. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	entry := &pendingTimer{deadline: c.now.Add(d), ch: ch, interval: d}
	c.add(entry)

	return &Ticker{
		C: ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.stopped = true
		},
	}
}

// Sleep blocks the calling goroutine until the clock advances past d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d, firing expired waiters in
// deadline order. Channel sends are non-blocking: a tick that finds
// its buffer full is dropped, matching time.Ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	// Loop because an AfterFunc callback may register new timers with
	// deadlines inside the already-advanced window.
	for {
		expired := c.takeExpired(target)
		if len(expired) == 0 {
			return
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})
		for _, entry := range expired {
			switch {
			case entry.fn != nil:
				entry.fn()
			case entry.ch != nil:
				select {
				case entry.ch <- target:
				default:
				}
			}
		}
	}
}

// WaitForTimers blocks until at least n timers are pending. Use it to
// close the race between a goroutine registering a timer and the test
// advancing the clock past it.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of active pending timers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// add registers a pending timer and wakes WaitForTimers callers.
// Caller must hold c.mu.
func (c *FakeClock) add(entry *pendingTimer) {
	c.pending = append(c.pending, entry)
	c.changed.Broadcast()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, entry := range c.pending {
		if !entry.stopped {
			count++
		}
	}
	return count
}

// takeExpired removes and returns the waiters whose deadline has
// passed, rearming tickers for their next interval.
func (c *FakeClock) takeExpired(target time.Time) []*pendingTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired, remaining []*pendingTimer
	for _, entry := range c.pending {
		if entry.stopped {
			continue
		}
		if entry.deadline.After(target) {
			remaining = append(remaining, entry)
		} else {
			expired = append(expired, entry)
		}
	}
	for _, entry := range expired {
		if entry.interval > 0 {
			entry.deadline = entry.deadline.Add(entry.interval)
			remaining = append(remaining, entry)
		} else {
			entry.fired = true
		}
	}
	c.pending = remaining
	return expired
}
