// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package api

import "time"

// ConversationKind distinguishes the thread types the backend serves.
type ConversationKind string

const (
	// KindPrivate is a 1:1 conversation between two users.
	KindPrivate ConversationKind = "private"
	// KindGroup is a multi-party conversation.
	KindGroup ConversationKind = "group"
	// KindSupport is a customer-support thread between a visitor (or
	// signed-in user) and the support team.
	KindSupport ConversationKind = "support"
)

// MessageType tags a message's content kind.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
	MessageVideo MessageType = "video"
	// MessageSystem is a server-injected, non-attributable notice.
	// Only support threads carry these.
	MessageSystem MessageType = "system"
)

// Party summarizes the other side of a conversation as the viewer
// sees it.
type Party struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`

	// Nickname is the viewer's personal override for the display
	// name. Empty means no override; render DisplayName.
	Nickname string `json:"nickname,omitempty"`
}

// Name returns the name to render for the party: the viewer's
// nickname override when present, the display name otherwise.
func (p Party) Name() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.DisplayName
}

// MessagePreview is the last-message summary carried on a
// conversation for sidebar rendering.
type MessagePreview struct {
	Content string      `json:"content"`
	Type    MessageType `json:"type"`
	FromMe  bool        `json:"from_me"`
	SentAt  time.Time   `json:"sent_at"`
}

// Conversation is one addressable thread. The identifier is stable
// and unique; at most one Conversation per identifier is live in a
// directory at a time.
type Conversation struct {
	ID      string           `json:"id"`
	Kind    ConversationKind `json:"kind"`
	Partner Party            `json:"partner"`

	// LastMessage previews the newest message, nil for an empty
	// conversation.
	LastMessage *MessagePreview `json:"last_message,omitempty"`

	// UnreadCount is the server-authoritative number of unread
	// messages for the viewer. Never negative.
	UnreadCount int `json:"unread_count"`

	// LastActivity orders the conversation list, newest first.
	LastActivity time.Time `json:"last_activity"`
}

// Reaction is one emoji's aggregate count on a message.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Message belongs to exactly one conversation. The ID is globally
// unique and is the sole de-duplication key when a REST history page
// and a live echo deliver the same message twice.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	SenderName     string      `json:"sender_name,omitempty"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	SentAt         time.Time   `json:"sent_at"`
	Edited         bool        `json:"edited,omitempty"`
	Reactions      []Reaction  `json:"reactions,omitempty"`
}

// System reports whether the message is a server-injected notice.
func (m Message) System() bool { return m.Type == MessageSystem }

// HistoryOptions controls message history pagination.
type HistoryOptions struct {
	// Limit caps the page size; 0 uses the server default.
	Limit int
	// Before is a message ID cursor: fetch messages older than it.
	// Empty fetches the newest page.
	Before string
}

// HistoryPage is one page of prior messages in chronological order
// (oldest first).
type HistoryPage struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	HasMore        bool      `json:"has_more"`
}

// SupportThreadRequest identifies the caller for support-thread
// lookup. Signed-in users are identified by their token; anonymous
// visitors by a client-minted visitor ID that persists across widget
// opens.
type SupportThreadRequest struct {
	VisitorID   string `json:"visitor_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// UploadResponse is returned by UploadAttachment.
type UploadResponse struct {
	URL string `json:"url"`
}

type conversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}
