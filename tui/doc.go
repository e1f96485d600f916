// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui implements the terminal user interface for tripchat.
// Built on bubbletea (Elm architecture), it provides a split-pane
// chat view with a fuzzy-filterable conversation sidebar, a markdown
// message timeline, and a composer, connected to the chat engine via
// the [Session] interface.
//
// The Session abstraction decouples rendering from the engine:
// [chat.Session] satisfies it in the binaries, while tests substitute
// an in-memory fake. The engine pushes change notifications through
// its OnChange callback; the binary bridges those into the bubbletea
// event loop as [SessionChangedMsg], so every frame re-reads the
// engine's current state instead of accumulating its own.
//
// Data flow:
//
//	[REST API / event channel]
//	        | (chat engine)
//	    [Model] <- bubbletea event loop
//	        |
//	  [terminal output]
//
// [SupportModel] is the standalone help widget variant: a single
// support thread with no directory, driven by [SupportSession].
package tui
