// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/chat"
)

// Session is the model's view of the synchronization engine.
// *chat.Session satisfies it; tests substitute a fixture.
type Session interface {
	// Directory.
	Conversations() []api.Conversation
	ActiveConversation() string
	TotalUnread() int
	OpenConversation(ctx context.Context, conversationID string) error
	CloseConversation()

	// Timeline.
	Messages() []api.Message
	StreamState() chat.StreamState
	HasOlderMessages() bool
	LoadOlderMessages(ctx context.Context) error

	// Presence.
	TypingUsers(conversationID string) []string

	// Connection.
	ConnectionState() channel.State
	ConnectionError() error
	Identity() string

	// Composer.
	Draft() string
	SetDraft(text string)
	ComposerEnabled() bool
	Send() (string, error)
}
