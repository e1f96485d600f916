// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel implements the bidirectional event channel between
// the client and the chat backend.
//
// [Manager] owns the single websocket connection for an authenticated
// session. It is constructed once, passed by reference to every
// consumer, and never recreated ad hoc; at most one live channel
// exists per process. Connect is idempotent for the same identity and
// performs bounded automatic reconnection (a fixed attempt budget
// with fixed backoff); once the budget is exhausted the Manager
// settles into [StateDegraded], observable through [Manager.State]
// and [Manager.OnState], and the application falls back to REST-only
// reads with the composer disabled. Connection trouble never
// surfaces as a panic or an unsolicited error; it is a state.
//
// Incoming events are dispatched to listeners registered with
// [Manager.On] in server-emission order, from a single goroutine.
// Every registration returns a [Subscription] whose Close is the
// symmetric detach; components hold their subscriptions and close
// them on unmount so no handler survives a remount. Disconnect
// releases every listener attached through the Manager.
//
// Outgoing traffic (send message, typing signals, mark-read,
// room join/leave) is fire-and-forget: the server is the sole
// authority for fan-out, and the sender learns its own message
// persisted by receiving the same echo event every other participant
// receives.
package channel
