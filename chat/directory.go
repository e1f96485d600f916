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

// DirectoryConfig holds configuration for creating a Directory.
type DirectoryConfig struct {
	// Client fetches the conversation snapshot.
	Client *api.Client
	// Channel delivers live updates and carries mark-read emits.
	Channel *channel.Manager
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// OnChange, if set, is called after every visible state change.
	// It runs on whichever goroutine applied the mutation and must
	// not call back into the Directory.
	OnChange func()
}

// Directory is the conversation list: a snapshot from REST kept
// current by partial channel updates. Ordering is always by last
// activity, newest first. All methods are safe for concurrent use.
type Directory struct {
	client   *api.Client
	channel  *channel.Manager
	logger   *slog.Logger
	onChange func()

	mu            sync.Mutex
	conversations []api.Conversation
	activeID      string
	subs          []*channel.Subscription
}

// mutationKind tags the one reducer every directory change flows
// through. Having a single application point keeps the re-sort and
// change notification impossible to forget on any path.
type mutationKind int

const (
	mutationReplaceAll mutationKind = iota
	mutationMerge
	mutationMessageArrived
	mutationUnreadClear
)

type directoryMutation struct {
	kind     mutationKind
	snapshot []api.Conversation
	update   channel.ConversationUpdate
	message  api.Message
	target   string
}

// NewDirectory creates a Directory. Call Attach to start receiving
// live updates and LoadSnapshot to populate it.
func NewDirectory(config DirectoryConfig) *Directory {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		client:   config.Client,
		channel:  config.Channel,
		logger:   logger,
		onChange: config.OnChange,
	}
}

// Attach subscribes the directory to the channel events that drive
// it. Detach is the symmetric teardown.
func (d *Directory) Attach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.subs) > 0 {
		return
	}
	d.subs = []*channel.Subscription{
		d.channel.On(channel.EventConversationUpdated, d.handleUpdated),
		d.channel.On(channel.EventMessageNew, d.handleMessageNew),
	}
}

// Detach closes the directory's channel subscriptions. Local state is
// retained so a degraded session keeps rendering what it has.
func (d *Directory) Detach() {
	d.mu.Lock()
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// LoadSnapshot replaces the directory wholesale from the REST
// snapshot. Live updates arriving afterwards merge into it.
func (d *Directory) LoadSnapshot(ctx context.Context) error {
	conversations, err := d.client.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("chat: loading conversation snapshot: %w", err)
	}
	d.apply(directoryMutation{kind: mutationReplaceAll, snapshot: conversations})
	return nil
}

// ApplyUpdate merges one partial update into the matching entry. Only
// the fields present in the update change. Updates naming an unknown
// conversation are dropped; a conversation created mid-session shows
// up on the next snapshot load.
func (d *Directory) ApplyUpdate(update channel.ConversationUpdate) {
	d.apply(directoryMutation{kind: mutationMerge, update: update})
}

// Select marks the conversation active and zeroes its unread count
// immediately, without waiting for the server to confirm the
// mark-read. The emit failing (for example while degraded) leaves the
// optimistic zero in place; the next snapshot restores truth.
func (d *Directory) Select(conversationID string) (*api.Conversation, error) {
	d.mu.Lock()
	if d.indexOfLocked(conversationID) < 0 {
		d.mu.Unlock()
		return nil, fmt.Errorf("chat: unknown conversation %q", conversationID)
	}
	d.activeID = conversationID
	d.mu.Unlock()

	d.apply(directoryMutation{kind: mutationUnreadClear, target: conversationID})
	if err := d.channel.MarkRead(conversationID); err != nil {
		d.logger.Debug("mark-read emit skipped", "conversation", conversationID, "error", err)
	}
	selected, _ := d.Conversation(conversationID)
	return &selected, nil
}

// ClearSelection marks no conversation as active, so arriving
// messages increment unread counts again.
func (d *Directory) ClearSelection() {
	d.mu.Lock()
	d.activeID = ""
	d.mu.Unlock()
}

// Active returns the selected conversation ID, empty when none is.
func (d *Directory) Active() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeID
}

// Conversations returns the current list, newest activity first.
func (d *Directory) Conversations() []api.Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.conversations)
}

// Conversation returns one entry by ID.
func (d *Directory) Conversation(conversationID string) (api.Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index := d.indexOfLocked(conversationID); index >= 0 {
		return d.conversations[index], true
	}
	return api.Conversation{}, false
}

// TotalUnread sums unread counts across the directory, for badge
// rendering.
func (d *Directory) TotalUnread() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, conversation := range d.conversations {
		total += conversation.UnreadCount
	}
	return total
}

func (d *Directory) handleUpdated(event channel.Event) {
	update, err := channel.Decode[channel.ConversationUpdate](event)
	if err != nil {
		d.logger.Warn("dropping malformed conversation update", "error", err)
		return
	}
	d.ApplyUpdate(update)
}

func (d *Directory) handleMessageNew(event channel.Event) {
	message, err := channel.Decode[api.Message](event)
	if err != nil {
		d.logger.Warn("dropping malformed message event", "error", err)
		return
	}
	d.apply(directoryMutation{kind: mutationMessageArrived, message: message})
}

// apply is the single mutation point: every change goes through it,
// re-sorts the whole list, and fires the change callback. The list is
// never reordered piecemeal.
func (d *Directory) apply(mutation directoryMutation) {
	d.mu.Lock()
	changed := d.applyLocked(mutation)
	d.mu.Unlock()
	if changed && d.onChange != nil {
		d.onChange()
	}
}

func (d *Directory) applyLocked(mutation directoryMutation) bool {
	switch mutation.kind {
	case mutationReplaceAll:
		d.conversations = slices.Clone(mutation.snapshot)

	case mutationMerge:
		index := d.indexOfLocked(mutation.update.ConversationID)
		if index < 0 {
			d.logger.Debug("ignoring update for unknown conversation",
				"conversation", mutation.update.ConversationID)
			return false
		}
		entry := &d.conversations[index]
		if mutation.update.LastMessage != nil {
			entry.LastMessage = mutation.update.LastMessage
		}
		if mutation.update.UnreadCount != nil {
			entry.UnreadCount = *mutation.update.UnreadCount
		}
		if mutation.update.LastActivity != nil {
			entry.LastActivity = *mutation.update.LastActivity
		}

	case mutationMessageArrived:
		index := d.indexOfLocked(mutation.message.ConversationID)
		if index < 0 {
			d.logger.Debug("ignoring message for unknown conversation",
				"conversation", mutation.message.ConversationID)
			return false
		}
		entry := &d.conversations[index]
		entry.LastMessage = &api.MessagePreview{
			Content: mutation.message.Content,
			Type:    mutation.message.Type,
			FromMe:  mutation.message.SenderID == d.channel.Identity(),
			SentAt:  mutation.message.SentAt,
		}
		if mutation.message.SentAt.After(entry.LastActivity) {
			entry.LastActivity = mutation.message.SentAt
		}
		// The open conversation never accumulates unread: the user is
		// looking at it. Own echoes never count either.
		if entry.ID != d.activeID && mutation.message.SenderID != d.channel.Identity() {
			entry.UnreadCount++
		}

	case mutationUnreadClear:
		index := d.indexOfLocked(mutation.target)
		if index < 0 {
			return false
		}
		d.conversations[index].UnreadCount = 0
	}

	slices.SortStableFunc(d.conversations, func(a, b api.Conversation) int {
		return b.LastActivity.Compare(a.LastActivity)
	})
	return true
}

func (d *Directory) indexOfLocked(conversationID string) int {
	return slices.IndexFunc(d.conversations, func(c api.Conversation) bool {
		return c.ID == conversationID
	})
}
