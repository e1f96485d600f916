// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/lib/clock"
)

// DefaultTypingExpiry is how long a typing indicator survives without
// a fresh start signal. A lost stop event self-heals at this horizon.
const DefaultTypingExpiry = 5 * time.Second

// TypingTrackerConfig holds configuration for creating a
// TypingTracker.
type TypingTrackerConfig struct {
	// Channel delivers typing signals.
	Channel *channel.Manager
	// Expiry is the auto-expiry horizon. Zero means
	// DefaultTypingExpiry.
	Expiry time.Duration
	// Clock drives expiry timers. If nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// OnChange, if set, is called after every visible change.
	OnChange func()
}

type typingKey struct {
	conversationID string
	userID         string
}

// TypingTracker maintains per-conversation typing indicators. Each
// (conversation, user) flag auto-expires so a dropped stop signal
// can't stick an indicator on forever. The local user's own signals
// are ignored. All methods are safe for concurrent use.
type TypingTracker struct {
	channel  *channel.Manager
	expiry   time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	onChange func()

	mu     sync.Mutex
	timers map[typingKey]*clock.Timer
	subs   []*channel.Subscription
}

// NewTypingTracker creates a TypingTracker. Call Attach to start
// consuming typing signals.
func NewTypingTracker(config TypingTrackerConfig) *TypingTracker {
	expiry := config.Expiry
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TypingTracker{
		channel:  config.Channel,
		expiry:   expiry,
		clock:    clk,
		logger:   logger,
		onChange: config.OnChange,
		timers:   map[typingKey]*clock.Timer{},
	}
}

// Attach subscribes the tracker to typing signals. Detach is the
// symmetric teardown.
func (t *TypingTracker) Attach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) > 0 {
		return
	}
	t.subs = []*channel.Subscription{
		t.channel.On(channel.EventTypingStart, t.handleStart),
		t.channel.On(channel.EventTypingStop, t.handleStop),
	}
}

// Detach closes the tracker's subscriptions and clears all
// indicators.
func (t *TypingTracker) Detach() {
	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// TypingUsers returns the users currently typing in the conversation,
// sorted for stable rendering.
func (t *TypingTracker) TypingUsers(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var users []string
	for key := range t.timers {
		if key.conversationID == conversationID {
			users = append(users, key.userID)
		}
	}
	slices.Sort(users)
	return users
}

func (t *TypingTracker) handleStart(event channel.Event) {
	signal, err := channel.Decode[channel.TypingSignal](event)
	if err != nil {
		t.logger.Warn("dropping malformed typing signal", "error", err)
		return
	}
	if signal.UserID == "" || signal.UserID == t.channel.Identity() {
		return
	}
	key := typingKey{conversationID: signal.ConversationID, userID: signal.UserID}

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.expiry)
		t.mu.Unlock()
		return
	}
	t.timers[key] = t.clock.AfterFunc(t.expiry, func() {
		t.expire(key)
	})
	t.mu.Unlock()
	t.notify()
}

func (t *TypingTracker) handleStop(event channel.Event) {
	signal, err := channel.Decode[channel.TypingSignal](event)
	if err != nil {
		t.logger.Warn("dropping malformed typing signal", "error", err)
		return
	}
	key := typingKey{conversationID: signal.ConversationID, userID: signal.UserID}

	t.mu.Lock()
	timer, ok := t.timers[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	timer.Stop()
	delete(t.timers, key)
	t.mu.Unlock()
	t.notify()
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	if _, ok := t.timers[key]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()
	t.notify()
}

func (t *TypingTracker) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}
