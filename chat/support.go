// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
)

// SupportControllerConfig holds configuration for creating a
// SupportController.
type SupportControllerConfig struct {
	// Client talks to the support REST endpoints.
	Client *api.Client
	// Channel is the widget's own event channel. The widget never
	// shares the main chat page's components.
	Channel *channel.Manager
	// VisitorID identifies an anonymous visitor across widget opens.
	// Empty mints a fresh one; signed-in users pass their user ID.
	VisitorID string
	// DisplayName is shown to the support team for anonymous
	// visitors.
	DisplayName string
	// PageSize caps history pages; 0 uses the server default.
	PageSize int
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// OnChange, if set, is called after every visible state change.
	OnChange func()
}

// supportHistory adapts the support-thread history endpoint to the
// stream's fetcher contract.
type supportHistory struct {
	client *api.Client
}

func (h supportHistory) Messages(ctx context.Context, conversationID string, options api.HistoryOptions) (*api.HistoryPage, error) {
	return h.client.SupportMessages(ctx, conversationID, options)
}

// SupportController is the single-thread chat behind the support
// widget: one fetch-or-created thread, a message stream with system
// notices, and explicit room membership tied to the widget being
// open. All methods are safe for concurrent use.
type SupportController struct {
	client      *api.Client
	channel     *channel.Manager
	visitorID   string
	displayName string
	logger      *slog.Logger

	stream *Stream

	mu     sync.Mutex
	thread *api.Conversation
	opened bool
}

// NewSupportController creates a SupportController. The widget is
// closed until Open is called.
func NewSupportController(config SupportControllerConfig) *SupportController {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	visitorID := config.VisitorID
	if visitorID == "" {
		visitorID = "visitor-" + uuid.NewString()
	}
	controller := &SupportController{
		client:      config.Client,
		channel:     config.Channel,
		visitorID:   visitorID,
		displayName: config.DisplayName,
		logger:      logger,
	}
	controller.stream = NewStream(StreamConfig{
		History:  supportHistory{client: config.Client},
		Channel:  config.Channel,
		PageSize: config.PageSize,
		Logger:   logger,
		OnChange: config.OnChange,
	})
	return controller
}

// VisitorID returns the identity the widget connects as. Callers
// persist it so the visitor keeps their thread across sessions.
func (c *SupportController) VisitorID() string {
	return c.visitorID
}

// Open brings the widget up: connect the channel as the visitor,
// fetch or create the support thread, join its room, and load
// history. Opening an already-open widget is a no-op.
func (c *SupportController) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.opened {
		c.mu.Unlock()
		return nil
	}
	c.opened = true
	c.mu.Unlock()

	fail := func(err error) error {
		c.mu.Lock()
		c.opened = false
		c.mu.Unlock()
		return err
	}

	if err := c.channel.Connect(c.visitorID); err != nil {
		return fail(fmt.Errorf("chat: connecting support channel: %w", err))
	}
	if err := c.waitConnected(ctx); err != nil {
		return fail(fmt.Errorf("chat: waiting for support channel: %w", err))
	}

	thread, err := c.client.SupportThread(ctx, api.SupportThreadRequest{
		VisitorID:   c.visitorID,
		DisplayName: c.displayName,
	})
	if err != nil {
		return fail(fmt.Errorf("chat: resolving support thread: %w", err))
	}
	c.mu.Lock()
	c.thread = thread
	c.mu.Unlock()

	c.stream.Attach()
	if err := c.channel.JoinRoom(thread.ID); err != nil {
		// The server auto-joins support threads on first message, so
		// a failed join degrades to that instead of blocking the
		// widget.
		c.logger.Debug("support room join skipped", "thread", thread.ID, "error", err)
	}
	if err := c.stream.Open(ctx, thread.ID); err != nil {
		return fail(err)
	}
	return nil
}

// waitConnected blocks until the widget's channel is live, the
// connection degrades, or the context ends.
func (c *SupportController) waitConnected(ctx context.Context) error {
	settled := make(chan channel.State, 1)
	sub := c.channel.OnState(func(s channel.State) {
		if s == channel.StateConnected || s == channel.StateDegraded {
			select {
			case settled <- s:
			default:
			}
		}
	})
	defer sub.Close()

	// Check after subscribing: the transition may already have
	// happened.
	switch c.channel.State() {
	case channel.StateConnected:
		return nil
	case channel.StateDegraded:
		return c.channel.LastError()
	}

	select {
	case state := <-settled:
		if state == channel.StateDegraded {
			return c.channel.LastError()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close collapses the widget: leave the room and detach the stream.
// The thread itself survives on the server; reopening resumes it.
func (c *SupportController) Close() {
	c.mu.Lock()
	thread := c.thread
	opened := c.opened
	c.opened = false
	c.mu.Unlock()
	if !opened {
		return
	}

	if thread != nil {
		if err := c.channel.LeaveRoom(thread.ID); err != nil {
			c.logger.Debug("support room leave skipped", "thread", thread.ID, "error", err)
		}
	}
	c.stream.Detach()
}

// Opened reports whether the widget is up.
func (c *SupportController) Opened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Thread returns the resolved support conversation, nil before Open
// succeeds.
func (c *SupportController) Thread() *api.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thread
}

// Messages returns the thread's timeline, system notices included.
func (c *SupportController) Messages() []api.Message {
	return c.stream.Messages()
}

// StreamState exposes the underlying timeline state for rendering.
func (c *SupportController) StreamState() StreamState {
	return c.stream.State()
}

// Send emits a visitor message into the support thread.
func (c *SupportController) Send(content string) (string, error) {
	c.mu.Lock()
	opened := c.opened
	c.mu.Unlock()
	if !opened {
		return "", fmt.Errorf("chat: support widget is not open")
	}
	return c.stream.Send(content, api.MessageText)
}
