// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
)

// StreamState is the lifecycle of the open conversation's timeline.
type StreamState int

const (
	// StreamIdle: no conversation is open.
	StreamIdle StreamState = iota
	// StreamLoadingHistory: the initial page is in flight. Live
	// events for the conversation are buffered, not applied.
	StreamLoadingHistory
	// StreamLive: history landed; live events apply directly.
	StreamLive
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamLoadingHistory:
		return "loadingHistory"
	case StreamLive:
		return "live"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// HistoryFetcher fetches message history pages. *api.Client satisfies
// it for regular conversations; the support widget substitutes its
// own endpoint.
type HistoryFetcher interface {
	Messages(ctx context.Context, conversationID string, options api.HistoryOptions) (*api.HistoryPage, error)
}

// StreamConfig holds configuration for creating a Stream.
type StreamConfig struct {
	// History fetches message pages.
	History HistoryFetcher
	// Channel delivers live message events and carries send emits.
	Channel *channel.Manager
	// PageSize caps history pages; 0 uses the server default.
	PageSize int
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// OnChange, if set, is called after every visible state change,
	// on whichever goroutine applied it.
	OnChange func()
}

// Stream is the message timeline of the one open conversation.
// Opening a different conversation resets it completely; messages are
// never shared across conversations. All methods are safe for
// concurrent use.
//
// The ordering guarantee: history is always applied before any live
// event for the same conversation. Events arriving while the initial
// page is in flight are buffered and merged after it lands, with the
// message ID as the de-duplication key for the overlap.
type Stream struct {
	history  HistoryFetcher
	channel  *channel.Manager
	pageSize int
	logger   *slog.Logger
	onChange func()

	mu             sync.Mutex
	state          StreamState
	conversationID string
	epoch          int
	messages       []api.Message
	seen           map[string]struct{}
	pending        []api.Message
	hasMore        bool
	subs           []*channel.Subscription
}

// NewStream creates a Stream in StreamIdle. Call Attach once to wire
// it to the channel, then Open per conversation.
func NewStream(config StreamConfig) *Stream {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		history:  config.History,
		channel:  config.Channel,
		pageSize: config.PageSize,
		logger:   logger,
		onChange: config.OnChange,
		seen:     map[string]struct{}{},
	}
}

// Attach subscribes the stream to message events. Detach is the
// symmetric teardown.
func (s *Stream) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) > 0 {
		return
	}
	s.subs = []*channel.Subscription{
		s.channel.On(channel.EventMessageNew, s.handleNew),
		s.channel.On(channel.EventMessageEdited, s.handleEdited),
		s.channel.On(channel.EventMessageDeleted, s.handleDeleted),
		s.channel.On(channel.EventReactionUpdated, s.handleReaction),
	}
}

// Detach closes the stream's channel subscriptions and resets it to
// idle.
func (s *Stream) Detach() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.resetLocked("")
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// Open switches the stream to the given conversation: full reset,
// history fetch, then live. A response landing after the user has
// already switched again is discarded, never shown under the wrong
// conversation.
func (s *Stream) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.resetLocked(conversationID)
	s.state = StreamLoadingHistory
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	page, err := s.history.Messages(ctx, conversationID, api.HistoryOptions{Limit: s.pageSize})

	s.mu.Lock()
	if s.epoch != epoch {
		// The user switched conversations while this fetch was in
		// flight. Whatever it returned belongs to a dead selection.
		s.mu.Unlock()
		s.logger.Debug("discarding stale history response", "conversation", conversationID)
		return nil
	}
	if err != nil {
		s.state = StreamIdle
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("chat: loading history for %s: %w", conversationID, err)
	}

	for _, message := range page.Messages {
		s.appendLocked(message)
	}
	// Events buffered during the fetch land after history, minus the
	// overlap the ID de-dup absorbs.
	for _, message := range s.pending {
		s.appendLocked(message)
	}
	s.pending = nil
	s.hasMore = page.HasMore
	s.state = StreamLive
	s.mu.Unlock()
	s.notify()
	return nil
}

// LoadOlder prepends the next history page. Only valid while live.
func (s *Stream) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StreamLive || !s.hasMore || len(s.messages) == 0 {
		s.mu.Unlock()
		return nil
	}
	conversationID := s.conversationID
	epoch := s.epoch
	oldest := s.messages[0].ID
	s.mu.Unlock()

	page, err := s.history.Messages(ctx, conversationID, api.HistoryOptions{
		Limit:  s.pageSize,
		Before: oldest,
	})
	if err != nil {
		return fmt.Errorf("chat: loading older messages for %s: %w", conversationID, err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	fresh := make([]api.Message, 0, len(page.Messages))
	for _, message := range page.Messages {
		if _, dup := s.seen[message.ID]; dup {
			continue
		}
		s.seen[message.ID] = struct{}{}
		fresh = append(fresh, message)
	}
	s.messages = append(fresh, s.messages...)
	s.hasMore = page.HasMore
	s.mu.Unlock()
	s.notify()
	return nil
}

// Close resets the stream to idle without detaching its
// subscriptions, for when the user backs out of a conversation.
func (s *Stream) Close() {
	s.mu.Lock()
	s.resetLocked("")
	s.mu.Unlock()
	s.notify()
}

// Send emits a message into the open conversation and returns the
// transaction ID. The timeline is NOT touched: the server echo is
// the only append path, so what the sender sees is exactly what was
// persisted and what everyone else sees.
func (s *Stream) Send(content string, messageType api.MessageType) (string, error) {
	s.mu.Lock()
	conversationID := s.conversationID
	state := s.state
	s.mu.Unlock()
	if state == StreamIdle || conversationID == "" {
		return "", fmt.Errorf("chat: no open conversation to send into")
	}
	return s.channel.SendMessage(conversationID, content, messageType)
}

// State returns the stream's lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the open conversation's ID, empty when idle.
func (s *Stream) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns the timeline oldest-first.
func (s *Stream) Messages() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// HasMore reports whether older history remains to page in.
func (s *Stream) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *Stream) handleNew(event channel.Event) {
	message, err := channel.Decode[api.Message](event)
	if err != nil {
		s.logger.Warn("dropping malformed message event", "error", err)
		return
	}

	s.mu.Lock()
	if message.ConversationID != s.conversationID {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case StreamLoadingHistory:
		s.pending = append(s.pending, message)
		s.mu.Unlock()
		return
	case StreamLive:
		added := s.appendLocked(message)
		s.mu.Unlock()
		if added {
			s.notify()
		}
	default:
		s.mu.Unlock()
	}
}

func (s *Stream) handleEdited(event channel.Event) {
	message, err := channel.Decode[api.Message](event)
	if err != nil {
		s.logger.Warn("dropping malformed edit event", "error", err)
		return
	}

	s.mu.Lock()
	if message.ConversationID != s.conversationID || s.state != StreamLive {
		s.mu.Unlock()
		return
	}
	index := s.indexOfLocked(message.ID)
	if index < 0 {
		// Edits to messages outside the loaded window are not
		// represented; the history page carries the edited form.
		s.mu.Unlock()
		return
	}
	message.Edited = true
	s.messages[index] = message
	s.mu.Unlock()
	s.notify()
}

func (s *Stream) handleDeleted(event channel.Event) {
	ref, err := channel.Decode[channel.MessageRef](event)
	if err != nil {
		s.logger.Warn("dropping malformed delete event", "error", err)
		return
	}

	s.mu.Lock()
	if ref.ConversationID != s.conversationID || s.state != StreamLive {
		s.mu.Unlock()
		return
	}
	index := s.indexOfLocked(ref.MessageID)
	if index < 0 {
		s.mu.Unlock()
		return
	}
	s.messages = slices.Delete(s.messages, index, index+1)
	// The ID stays in seen: a late duplicate of a deleted message
	// must not resurrect it.
	s.mu.Unlock()
	s.notify()
}

func (s *Stream) handleReaction(event channel.Event) {
	update, err := channel.Decode[channel.ReactionUpdate](event)
	if err != nil {
		s.logger.Warn("dropping malformed reaction event", "error", err)
		return
	}

	s.mu.Lock()
	if update.ConversationID != s.conversationID || s.state != StreamLive {
		s.mu.Unlock()
		return
	}
	index := s.indexOfLocked(update.MessageID)
	if index < 0 {
		s.mu.Unlock()
		return
	}
	s.messages[index].Reactions = update.Reactions
	s.mu.Unlock()
	s.notify()
}

// appendLocked adds one message unless its ID was already applied.
func (s *Stream) appendLocked(message api.Message) bool {
	if _, dup := s.seen[message.ID]; dup {
		return false
	}
	s.seen[message.ID] = struct{}{}
	s.messages = append(s.messages, message)
	return true
}

func (s *Stream) resetLocked(conversationID string) {
	s.epoch++
	s.state = StreamIdle
	s.conversationID = conversationID
	s.messages = nil
	s.pending = nil
	s.seen = map[string]struct{}{}
	s.hasMore = false
}

func (s *Stream) indexOfLocked(messageID string) int {
	return slices.IndexFunc(s.messages, func(m api.Message) bool {
		return m.ID == messageID
	})
}

func (s *Stream) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
