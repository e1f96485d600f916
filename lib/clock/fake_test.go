// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(testEpoch)
	if !c.Now().Equal(testEpoch) {
		t.Fatalf("Now() = %v, want %v", c.Now(), testEpoch)
	}
	c.Advance(90 * time.Second)
	if want := testEpoch.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Fatalf("Now() after advance = %v, want %v", c.Now(), want)
	}
}

func TestFakeAfter(t *testing.T) {
	c := Fake(testEpoch)
	ch := c.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before the clock advanced")
	default:
	}

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired one second early")
	default:
	}

	c.Advance(time.Second)
	select {
	case fired := <-ch:
		if want := testEpoch.Add(5 * time.Second); !fired.Equal(want) {
			t.Errorf("fire time = %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterImmediate(t *testing.T) {
	c := Fake(testEpoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeAfterFunc(t *testing.T) {
	c := Fake(testEpoch)
	var calls atomic.Int32
	c.AfterFunc(3*time.Second, func() { calls.Add(1) })

	c.Advance(2 * time.Second)
	if calls.Load() != 0 {
		t.Fatal("callback ran before its deadline")
	}
	c.Advance(time.Second)
	if calls.Load() != 1 {
		t.Fatalf("callback ran %d times, want 1", calls.Load())
	}
	c.Advance(10 * time.Second)
	if calls.Load() != 1 {
		t.Fatalf("one-shot callback ran %d times after further advance", calls.Load())
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	c := Fake(testEpoch)
	var calls atomic.Int32
	timer := c.AfterFunc(3*time.Second, func() { calls.Add(1) })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer should return true")
	}
	c.Advance(time.Minute)
	if calls.Load() != 0 {
		t.Fatal("stopped timer fired")
	}
	if timer.Stop() {
		t.Fatal("second Stop should return false")
	}
}

func TestFakeAfterFuncReset(t *testing.T) {
	c := Fake(testEpoch)
	var calls atomic.Int32
	timer := c.AfterFunc(3*time.Second, func() { calls.Add(1) })

	// Reset pushes the deadline out; the original deadline must not fire.
	c.Advance(2 * time.Second)
	if !timer.Reset(5 * time.Second) {
		t.Fatal("Reset on a pending timer should return true")
	}
	c.Advance(2 * time.Second)
	if calls.Load() != 0 {
		t.Fatal("timer fired at original deadline despite reset")
	}
	c.Advance(3 * time.Second)
	if calls.Load() != 1 {
		t.Fatalf("callback ran %d times, want 1", calls.Load())
	}

	// Reset after firing re-registers the timer.
	if timer.Reset(time.Second) {
		t.Fatal("Reset on a fired timer should return false")
	}
	c.Advance(time.Second)
	if calls.Load() != 2 {
		t.Fatalf("callback ran %d times after re-arm, want 2", calls.Load())
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		c.Advance(10 * time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d missing", i+1)
		}
	}

	ticker.Stop()
	c.Advance(30 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeSleepWaitForTimers(t *testing.T) {
	c := Fake(testEpoch)
	done := make(chan struct{})
	go func() {
		c.Sleep(5 * time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after the clock advanced")
	}
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	c := Fake(testEpoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("fire order = %v, want [1 2 3]", order)
	}
}

func TestFakeAfterFuncSchedulesWithinWindow(t *testing.T) {
	c := Fake(testEpoch)
	var second atomic.Int32
	c.AfterFunc(time.Second, func() {
		// Registered during Advance with a deadline inside the
		// already-advanced window: must still fire in this Advance.
		c.AfterFunc(time.Second, func() { second.Add(1) })
	})

	c.Advance(5 * time.Second)
	if second.Load() != 1 {
		t.Fatalf("nested timer ran %d times, want 1", second.Load())
	}
}
