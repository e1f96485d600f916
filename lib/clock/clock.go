// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects Real(); tests inject Fake() and drive time with Advance.
//
// Chat state is full of timers (typing-signal expiry, typing-stop
// debounce, reconnect backoff, websocket ping intervals) and none of
// them may depend on the wall clock under test. Any production code
// that would call time.Now, time.After, time.AfterFunc, or
// time.NewTicker takes a Clock instead.
package clock

import "time"

// Clock is the time source injected into every timer-bearing component.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed. If d <= 0 the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real clock) or synchronously during Advance (fake
	// clock). The returned Timer cancels the pending call with Stop
	// and reschedules with Reset. Its C field is nil, matching
	// time.AfterFunc.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks on C at the given
	// interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Timer is a scheduled one-shot event. For AfterFunc timers, C is nil.
type Timer struct {
	// C delivers the fire time. Nil for AfterFunc timers.
	C <-chan time.Time

	stop  func() bool
	reset func(time.Duration) bool
}

// Stop prevents the timer from firing. Returns false if the timer has
// already fired or been stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Reset reschedules the timer to fire after duration d. Returns true
// if the timer was still pending before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }

// Ticker delivers periodic ticks on C. The channel has capacity 1,
// matching time.Ticker: if the consumer falls behind, ticks are
// dropped rather than queued.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. It does not close C.
func (t *Ticker) Stop() { t.stop() }
