// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"fmt"
)

// State is the channel's connection state, readable at any time via
// Manager.State and observable via Manager.OnState. Consumers render
// against it (e.g., disabling the composer) instead of handling
// connection errors.
type State int

const (
	// StateDisconnected means no connection exists and none is being
	// attempted. The initial state, and the state after Disconnect.
	StateDisconnected State = iota

	// StateConnecting means a dial or reconnect attempt is in
	// progress within the retry budget.
	StateConnecting

	// StateConnected means the channel is live: events flow in both
	// directions.
	StateConnected

	// StateDegraded means the retry budget is exhausted. The client
	// keeps working read-only over REST; the composer stays disabled
	// until Connect is called again.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotConnected is returned by emit operations while the channel is
// not in StateConnected.
var ErrNotConnected = errors.New("channel: not connected")

// ConnectionError reports that the channel could not be established
// or re-established within the retry budget.
type ConnectionError struct {
	// Attempts is the number of dial attempts made.
	Attempts int
	// Err is the last dial error.
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("channel: connection failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
