// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the client-side synchronization core: it reconciles
// REST snapshots with live channel events into consistent local state
// the UI renders from.
//
// The package splits along the surfaces of the product:
//
//   - Directory maintains the conversation list (snapshot load,
//     partial live updates, activity ordering, unread counts).
//   - Stream maintains the open conversation's message timeline
//     (history before live, ID de-duplication, echo-only append).
//   - TypingTracker maintains who-is-typing state with auto-expiry.
//   - Composer owns the draft, typing emission, and attachment upload
//     for the active conversation.
//   - SupportController is the standalone single-thread variant that
//     backs the support widget.
//
// Components are constructed once per session and wired to a shared
// channel.Manager; none of them creates its own connection. State
// change notification is callback-based so the UI layer can translate
// it into its own message loop.
package chat
