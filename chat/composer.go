// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/lib/clock"
	"github.com/wayfare-labs/tripchat/lib/draftstore"
)

// DefaultTypingDebounce is how long after the last keystroke the
// composer waits before signaling that typing stopped.
const DefaultTypingDebounce = time.Second

// ComposerConfig holds configuration for creating a Composer.
type ComposerConfig struct {
	// Stream is the timeline messages are sent into.
	Stream *Stream
	// Channel carries typing emits and gates the composer on
	// connection state.
	Channel *channel.Manager
	// Client uploads attachments. Nil disables uploads.
	Client *api.Client
	// Drafts persists per-conversation drafts. Nil keeps drafts in
	// memory only.
	Drafts *draftstore.Store
	// TypingDebounce is the quiet period before the stop signal.
	// Zero means DefaultTypingDebounce.
	TypingDebounce time.Duration
	// Clock drives the debounce timer. If nil, the real clock is
	// used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Composer owns the draft for the active conversation. It emits a
// typing-start on the first keystroke after idle and a debounced
// typing-stop after the quiet period or on send, and it runs at most
// one attachment upload at a time. All methods are safe for
// concurrent use.
type Composer struct {
	stream   *Stream
	channel  *channel.Manager
	client   *api.Client
	drafts   *draftstore.Store
	debounce time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu             sync.Mutex
	conversationID string
	draft          string
	typing         bool
	stopTimer      *clock.Timer
	uploading      bool
}

// NewComposer creates a Composer bound to a stream and channel.
func NewComposer(config ComposerConfig) *Composer {
	debounce := config.TypingDebounce
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		stream:   config.Stream,
		channel:  config.Channel,
		client:   config.Client,
		drafts:   config.Drafts,
		debounce: debounce,
		clock:    clk,
		logger:   logger,
	}
}

// SetConversation switches the composer to a conversation: the
// outgoing draft is persisted, the new conversation's stored draft
// loaded. Typing state never carries across conversations.
func (c *Composer) SetConversation(conversationID string) {
	c.mu.Lock()
	previous := c.conversationID
	previousDraft := c.draft
	c.stopTypingLocked(previous)
	c.conversationID = conversationID
	c.draft = ""
	if c.drafts != nil && conversationID != "" {
		c.draft = c.drafts.Load(conversationID)
	}
	c.mu.Unlock()

	if c.drafts != nil && previous != "" {
		if err := c.drafts.Save(previous, previousDraft); err != nil {
			c.logger.Warn("persisting draft failed", "conversation", previous, "error", err)
		}
	}
}

// SetDraft records the current composer text. The first keystroke
// after idle emits typing-start; each keystroke pushes the debounced
// typing-stop out by the quiet period.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	conversationID := c.conversationID
	c.draft = text
	if conversationID == "" {
		c.mu.Unlock()
		return
	}
	if text == "" {
		c.stopTypingLocked(conversationID)
		c.mu.Unlock()
		return
	}

	startSignal := false
	if !c.typing {
		c.typing = true
		startSignal = true
	}
	if c.stopTimer != nil {
		c.stopTimer.Reset(c.debounce)
	} else {
		c.stopTimer = c.clock.AfterFunc(c.debounce, func() {
			c.debouncedStop(conversationID)
		})
	}
	c.mu.Unlock()

	if startSignal {
		if err := c.channel.TypingStart(conversationID); err != nil {
			c.logger.Debug("typing-start emit skipped", "error", err)
		}
	}
}

// Draft returns the current composer text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Enabled reports whether the composer accepts input: the channel
// must be live and no upload in flight. Draft editing stays possible
// regardless; Enabled gates sending.
func (c *Composer) Enabled() bool {
	c.mu.Lock()
	uploading := c.uploading
	c.mu.Unlock()
	return !uploading && c.channel.State() == channel.StateConnected
}

// Uploading reports whether an attachment upload is in flight.
func (c *Composer) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

// Send emits the draft as a text message and clears it optimistically.
// The cleared draft is not restored on failure; the error surfaces
// inline and the user retypes or retries.
func (c *Composer) Send() (string, error) {
	if !c.Enabled() {
		return "", channel.ErrNotConnected
	}

	c.mu.Lock()
	conversationID := c.conversationID
	content := c.draft
	c.draft = ""
	c.stopTypingLocked(conversationID)
	c.mu.Unlock()

	if content == "" {
		return "", nil
	}
	if c.drafts != nil && conversationID != "" {
		if err := c.drafts.Save(conversationID, ""); err != nil {
			c.logger.Warn("clearing persisted draft failed", "conversation", conversationID, "error", err)
		}
	}
	return c.stream.Send(content, api.MessageText)
}

// Upload sends one attachment: upload the bytes over REST, then emit
// a message of the matching type whose content is the stored URL.
// Only one upload runs at a time; a second call fails immediately.
func (c *Composer) Upload(ctx context.Context, filename, contentType string, source io.Reader, size int64, progress api.ProgressFunc) error {
	if c.client == nil {
		return fmt.Errorf("chat: uploads are not configured")
	}
	if c.channel.State() != channel.StateConnected {
		return channel.ErrNotConnected
	}

	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return fmt.Errorf("chat: an upload is already in flight")
	}
	if c.conversationID == "" {
		c.mu.Unlock()
		return fmt.Errorf("chat: no open conversation to upload into")
	}
	c.uploading = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.uploading = false
		c.mu.Unlock()
	}()

	response, err := c.client.UploadAttachment(ctx, filename, contentType, source, size, progress)
	if err != nil {
		return fmt.Errorf("chat: uploading %s: %w", filename, err)
	}
	if _, err := c.stream.Send(response.URL, messageTypeForContent(contentType)); err != nil {
		return fmt.Errorf("chat: announcing upload of %s: %w", filename, err)
	}
	return nil
}

// Flush persists the current draft without sending, for shutdown.
func (c *Composer) Flush() {
	c.mu.Lock()
	conversationID := c.conversationID
	draft := c.draft
	c.stopTypingLocked(conversationID)
	c.mu.Unlock()

	if c.drafts != nil && conversationID != "" {
		if err := c.drafts.Save(conversationID, draft); err != nil {
			c.logger.Warn("persisting draft failed", "conversation", conversationID, "error", err)
		}
	}
}

// debouncedStop fires after the quiet period. The conversation may
// have changed since the timer was armed; only the armed conversation
// gets the stop signal.
func (c *Composer) debouncedStop(conversationID string) {
	c.mu.Lock()
	if !c.typing || c.conversationID != conversationID {
		c.mu.Unlock()
		return
	}
	c.typing = false
	c.stopTimer = nil
	c.mu.Unlock()

	if err := c.channel.TypingStop(conversationID); err != nil {
		c.logger.Debug("typing-stop emit skipped", "error", err)
	}
}

// stopTypingLocked cancels the debounce and emits the stop signal if
// typing was active. Caller holds c.mu.
func (c *Composer) stopTypingLocked(conversationID string) {
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	if !c.typing {
		return
	}
	c.typing = false
	if conversationID == "" {
		return
	}
	go func() {
		if err := c.channel.TypingStop(conversationID); err != nil {
			c.logger.Debug("typing-stop emit skipped", "error", err)
		}
	}()
}

func messageTypeForContent(contentType string) api.MessageType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return api.MessageImage
	case strings.HasPrefix(contentType, "video/"):
		return api.MessageVideo
	default:
		return api.MessageFile
	}
}
