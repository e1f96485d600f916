// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wayfare-labs/tripchat/api"
)

// Server-to-client event types.
const (
	// EventMessageNew carries an api.Message appended to a
	// conversation. The sender receives its own messages through this
	// event too (the echo); there is no separate acknowledgment.
	EventMessageNew = "message.new"

	// EventConversationUpdated carries a partial ConversationUpdate:
	// only the fields present in the payload changed.
	EventConversationUpdated = "conversation.updated"

	// EventMessageEdited carries the full replacement api.Message.
	EventMessageEdited = "message.edited"

	// EventMessageDeleted carries a MessageRef for the removed message.
	EventMessageDeleted = "message.deleted"

	// EventReactionUpdated carries a ReactionUpdate with the new
	// aggregate reaction summary for one message.
	EventReactionUpdated = "reaction.updated"

	// EventRoomJoined acknowledges a room.join emit.
	EventRoomJoined = "room.joined"

	// EventError carries an ErrorPayload for a rejected emit.
	EventError = "error"
)

// Typing events travel in both directions: the composer emits them,
// and the server fans them out to the other participants.
const (
	EventTypingStart = "typing.start"
	EventTypingStop  = "typing.stop"
)

// Client-to-server event types.
const (
	EventMessageSend = "message.send"
	EventMarkRead    = "read.mark"
	EventRoomJoin    = "room.join"
	EventRoomLeave   = "room.leave"
)

// Event is the wire envelope for every channel message, in both
// directions.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals an event's payload into T.
func Decode[T any](event Event) (T, error) {
	var payload T
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return payload, fmt.Errorf("channel: decoding %s payload: %w", event.Type, err)
	}
	return payload, nil
}

// ConversationUpdate is a partial update to one conversation's
// directory entry. Nil fields were not part of the update and must be
// left untouched by the receiver.
type ConversationUpdate struct {
	ConversationID string              `json:"conversation_id"`
	LastMessage    *api.MessagePreview `json:"last_message,omitempty"`
	UnreadCount    *int                `json:"unread_count,omitempty"`
	LastActivity   *time.Time          `json:"last_activity,omitempty"`
}

// TypingSignal identifies who is typing where.
type TypingSignal struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// MessageRef addresses one message within a conversation.
type MessageRef struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// ReactionUpdate replaces the aggregate reaction summary of one
// message.
type ReactionUpdate struct {
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	Reactions      []api.Reaction `json:"reactions"`
}

// RoomRef addresses a conversation room for join/leave/joined events.
type RoomRef struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessageRequest is the payload of a message.send emit. TxnID is
// a client-minted identifier carried through server logs; it is not
// used for local echo matching (the message ID on the echo is).
type SendMessageRequest struct {
	ConversationID string          `json:"conversation_id"`
	Content        string          `json:"content"`
	Type           api.MessageType `json:"type"`
	TxnID          string          `json:"txn_id"`
}

// MarkReadRequest is the payload of a read.mark emit.
type MarkReadRequest struct {
	ConversationID string `json:"conversation_id"`
}

// ErrorPayload is the payload of an error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
