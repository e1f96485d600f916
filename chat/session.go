// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/lib/clock"
	"github.com/wayfare-labs/tripchat/lib/draftstore"
)

// SessionConfig holds configuration for creating a Session.
type SessionConfig struct {
	// Client talks to the chat backend's REST API.
	Client *api.Client
	// Channel is the session's event channel.
	Channel *channel.Manager
	// Identity is the signed-in user ID the channel connects as.
	Identity string
	// Drafts persists composer drafts. Nil keeps them in memory.
	Drafts *draftstore.Store
	// HistoryPageSize caps history pages; 0 uses the server default.
	HistoryPageSize int
	// TypingExpiry and TypingDebounce tune the typing tracker and
	// composer; zero uses the defaults.
	TypingExpiry   time.Duration
	TypingDebounce time.Duration
	// Clock drives all timers. If nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// OnChange, if set, is called whenever any component's visible
	// state changes. UI layers translate it into their own message
	// loop.
	OnChange func()
}

// Session bundles the synchronization components of one signed-in
// chat session behind a single facade: the UI renders from it and
// pushes intents into it without wiring each component itself.
type Session struct {
	client    *api.Client
	channel   *channel.Manager
	identity  string
	logger    *slog.Logger
	directory *Directory
	stream    *Stream
	typing    *TypingTracker
	composer  *Composer
}

// NewSession creates and wires the full component set. Call Start to
// connect and load the initial snapshot.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Client == nil || config.Channel == nil {
		return nil, fmt.Errorf("chat: Client and Channel are required")
	}
	if config.Identity == "" {
		return nil, fmt.Errorf("chat: Identity is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	session := &Session{
		client:   config.Client,
		channel:  config.Channel,
		identity: config.Identity,
		logger:   logger,
	}
	session.directory = NewDirectory(DirectoryConfig{
		Client:   config.Client,
		Channel:  config.Channel,
		Logger:   logger,
		OnChange: config.OnChange,
	})
	session.stream = NewStream(StreamConfig{
		History:  config.Client,
		Channel:  config.Channel,
		PageSize: config.HistoryPageSize,
		Logger:   logger,
		OnChange: config.OnChange,
	})
	session.typing = NewTypingTracker(TypingTrackerConfig{
		Channel:  config.Channel,
		Expiry:   config.TypingExpiry,
		Clock:    config.Clock,
		Logger:   logger,
		OnChange: config.OnChange,
	})
	session.composer = NewComposer(ComposerConfig{
		Stream:         session.stream,
		Channel:        config.Channel,
		Client:         config.Client,
		Drafts:         config.Drafts,
		TypingDebounce: config.TypingDebounce,
		Clock:          config.Clock,
		Logger:         logger,
	})
	return session, nil
}

// Start connects the channel, attaches every component, and loads the
// conversation snapshot. Live events that race the snapshot are safe:
// the snapshot replaces wholesale and later updates merge into it.
func (s *Session) Start(ctx context.Context) error {
	if err := s.channel.Connect(s.identity); err != nil {
		return fmt.Errorf("chat: starting session: %w", err)
	}
	s.directory.Attach()
	s.stream.Attach()
	s.typing.Attach()
	if err := s.directory.LoadSnapshot(ctx); err != nil {
		return err
	}
	return nil
}

// Stop flushes the draft and tears the session down.
func (s *Session) Stop() {
	s.composer.Flush()
	s.typing.Detach()
	s.stream.Detach()
	s.directory.Detach()
	s.channel.Disconnect()
	s.client.CloseIdleConnections()
}

// Conversations returns the directory, newest activity first.
func (s *Session) Conversations() []api.Conversation {
	return s.directory.Conversations()
}

// ActiveConversation returns the selected conversation ID.
func (s *Session) ActiveConversation() string {
	return s.directory.Active()
}

// TotalUnread sums unread counts across the directory.
func (s *Session) TotalUnread() int {
	return s.directory.TotalUnread()
}

// OpenConversation selects a conversation and loads its timeline.
func (s *Session) OpenConversation(ctx context.Context, conversationID string) error {
	if _, err := s.directory.Select(conversationID); err != nil {
		return err
	}
	s.composer.SetConversation(conversationID)
	return s.stream.Open(ctx, conversationID)
}

// CloseConversation backs out of the open conversation.
func (s *Session) CloseConversation() {
	s.composer.SetConversation("")
	s.directory.ClearSelection()
	s.stream.Close()
}

// Messages returns the open conversation's timeline, oldest first.
func (s *Session) Messages() []api.Message {
	return s.stream.Messages()
}

// StreamState reports the timeline lifecycle state.
func (s *Session) StreamState() StreamState {
	return s.stream.State()
}

// HasOlderMessages reports whether more history can page in.
func (s *Session) HasOlderMessages() bool {
	return s.stream.HasMore()
}

// LoadOlderMessages prepends the next history page.
func (s *Session) LoadOlderMessages(ctx context.Context) error {
	return s.stream.LoadOlder(ctx)
}

// TypingUsers returns who is typing in a conversation.
func (s *Session) TypingUsers(conversationID string) []string {
	return s.typing.TypingUsers(conversationID)
}

// ConnectionState reports the channel state for chrome rendering.
func (s *Session) ConnectionState() channel.State {
	return s.channel.State()
}

// ConnectionError returns the error behind a degraded channel.
func (s *Session) ConnectionError() error {
	return s.channel.LastError()
}

// Identity returns the signed-in user ID.
func (s *Session) Identity() string {
	return s.identity
}

// Draft returns the composer text for the open conversation.
func (s *Session) Draft() string {
	return s.composer.Draft()
}

// SetDraft records composer input and drives typing signals.
func (s *Session) SetDraft(text string) {
	s.composer.SetDraft(text)
}

// ComposerEnabled reports whether sending is currently possible.
func (s *Session) ComposerEnabled() bool {
	return s.composer.Enabled()
}

// Send emits the draft into the open conversation.
func (s *Session) Send() (string, error) {
	return s.composer.Send()
}

// Upload sends one attachment into the open conversation.
func (s *Session) Upload(ctx context.Context, filename, contentType string, source io.Reader, size int64, progress api.ProgressFunc) error {
	return s.composer.Upload(ctx, filename, contentType, source, size, progress)
}
