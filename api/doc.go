// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package api wraps the travel platform's chat REST API.
//
// [Client] holds the backend base URL and HTTP transport, shared by
// every consumer of the API. It serves the snapshot side of chat
// synchronization: the conversation list, per-conversation message
// history pages, support-thread lookup/creation, and attachment
// upload. The push side (live events) is the channel package; the two
// are reconciled by the chat package.
//
// All API errors are returned as [*APIError] with the backend's error
// code and the HTTP status. [IsAPIError] tests for a specific code.
// Request URLs are built by string concatenation from the stored base
// URL rather than url.URL manipulation, so path segments containing
// encoded characters survive untouched.
//
// The package also defines the domain types shared across the client:
// [Conversation], [Message], and the history/upload response shapes.
// Identifiers are opaque strings minted by the backend; the message ID
// is globally unique and serves as the sole de-duplication key when
// history pages and live events are merged.
package api
