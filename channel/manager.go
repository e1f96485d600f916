// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/lib/clock"
	"github.com/wayfare-labs/tripchat/lib/netutil"
)

const (
	// defaultWriteTimeout bounds a single websocket write.
	defaultWriteTimeout = 10 * time.Second

	// defaultPongTimeout is how long the read side waits for any
	// traffic (including pongs) before declaring the connection dead.
	defaultPongTimeout = 60 * time.Second

	// maxEventSize bounds a single incoming event frame.
	maxEventSize = 512 * 1024

	// outgoingBuffer is the emit queue capacity. Emits beyond it fail
	// fast rather than blocking the caller.
	outgoingBuffer = 256
)

// Config holds configuration for creating a Manager.
type Config struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string
	// Token is the bearer token sent on the handshake. Empty for
	// anonymous support sessions.
	Token string
	// ReconnectAttempts is the dial retry budget per outage.
	// Zero means 5.
	ReconnectAttempts int
	// ReconnectBackoff is the fixed delay between dial attempts.
	// Zero means 2s.
	ReconnectBackoff time.Duration
	// PingInterval is the keepalive ping period. Zero means 9/10 of
	// the pong timeout, matching the usual websocket pump tuning.
	PingInterval time.Duration
	// Dialer is used for the websocket handshake. If nil,
	// websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
	// Clock drives backoff and ping timers. If nil, the real clock
	// is used. Socket read/write deadlines always track the wall
	// clock; they are enforced by the OS, not by this Clock.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Manager owns the session's single event channel. See the package
// documentation for the lifecycle contract. All methods are safe for
// concurrent use.
type Manager struct {
	url          string
	token        string
	budget       int
	backoff      time.Duration
	pingInterval time.Duration
	dialer       *websocket.Dialer
	clock        clock.Clock
	logger       *slog.Logger

	listeners *listenerTable
	watchers  *stateTable

	mu       sync.Mutex
	state    State
	lastErr  error
	identity string
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	outgoing chan Event
}

// NewManager creates a Manager. The channel is not connected until
// Connect is called.
func NewManager(config Config) (*Manager, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("channel: URL is required")
	}

	budget := config.ReconnectAttempts
	if budget <= 0 {
		budget = 5
	}
	backoff := config.ReconnectBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	pingInterval := config.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPongTimeout * 9 / 10
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		url:          config.URL,
		token:        config.Token,
		budget:       budget,
		backoff:      backoff,
		pingInterval: pingInterval,
		dialer:       dialer,
		clock:        clk,
		logger:       logger,
		listeners:    newListenerTable(),
		watchers:     newStateTable(),
		outgoing:     make(chan Event, outgoingBuffer),
	}, nil
}

// Connect establishes the channel for the given identity (the
// signed-in user ID, or a visitor ID for anonymous support). It
// returns immediately; connection progress is observable through
// State/OnState. Calling Connect while the channel is live for the
// same identity is a no-op. Connecting as a different identity
// requires Disconnect first; a second live channel must never exist.
func (m *Manager) Connect(identity string) error {
	if identity == "" {
		return fmt.Errorf("channel: identity is required")
	}

	m.mu.Lock()
	if m.running {
		same := m.identity == identity
		m.mu.Unlock()
		if same {
			return nil
		}
		return fmt.Errorf("channel: already connected as %q; call Disconnect first", identity)
	}
	m.identity = identity
	m.running = true
	m.lastErr = nil
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	m.setState(StateConnecting)
	go m.run(runCtx, identity, done)
	return nil
}

// Disconnect tears the channel down: the socket closes, the run loop
// exits, and every listener and state watcher attached through this
// Manager is released. Safe to call when not connected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	m.listeners.clear()
	m.watchers.clear()
	m.setState(StateDisconnected)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the error that drove the channel into
// StateDegraded, or nil.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Identity returns the identity the channel was connected with.
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// On registers a listener for one event type. The returned
// Subscription's Close is the symmetric detach.
func (m *Manager) On(eventType string, handler func(Event)) *Subscription {
	return m.listeners.add(eventType, handler)
}

// OnState registers a connection-state watcher. The watcher is called
// with the new state on every transition.
func (m *Manager) OnState(handler func(State)) *Subscription {
	return m.watchers.add(handler)
}

// SendMessage emits a message into a conversation and returns the
// client transaction ID attached to the emit. The message is NOT
// appended locally: the server's echo (an EventMessageNew carrying
// the persisted message) is the single append path for sender and
// recipients alike.
func (m *Manager) SendMessage(conversationID, content string, messageType api.MessageType) (string, error) {
	txnID := uuid.NewString()
	err := m.emit(EventMessageSend, SendMessageRequest{
		ConversationID: conversationID,
		Content:        content,
		Type:           messageType,
		TxnID:          txnID,
	})
	if err != nil {
		return "", err
	}
	return txnID, nil
}

// TypingStart signals that the local user started typing.
func (m *Manager) TypingStart(conversationID string) error {
	return m.emit(EventTypingStart, TypingSignal{ConversationID: conversationID, UserID: m.Identity()})
}

// TypingStop signals that the local user stopped typing.
func (m *Manager) TypingStop(conversationID string) error {
	return m.emit(EventTypingStop, TypingSignal{ConversationID: conversationID, UserID: m.Identity()})
}

// MarkRead reports the conversation as read up to now.
func (m *Manager) MarkRead(conversationID string) error {
	return m.emit(EventMarkRead, MarkReadRequest{ConversationID: conversationID})
}

// JoinRoom subscribes the channel to a conversation's room. The
// server acknowledges with EventRoomJoined.
func (m *Manager) JoinRoom(conversationID string) error {
	return m.emit(EventRoomJoin, RoomRef{ConversationID: conversationID})
}

// LeaveRoom unsubscribes the channel from a conversation's room.
func (m *Manager) LeaveRoom(conversationID string) error {
	return m.emit(EventRoomLeave, RoomRef{ConversationID: conversationID})
}

// emit queues one outgoing event. Fails fast when the channel is not
// connected or the queue is full; callers surface this by keeping the
// composer disabled, not by retrying.
func (m *Manager) emit(eventType string, payload any) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state != StateConnected {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("channel: encoding %s payload: %w", eventType, err)
	}
	event := Event{Type: eventType, Data: data, Timestamp: m.clock.Now().UTC()}

	select {
	case m.outgoing <- event:
		return nil
	default:
		return fmt.Errorf("channel: outgoing queue full, dropping %s", eventType)
	}
}

// run is the connection loop: dial, serve until the connection drops,
// reconnect within the budget, and degrade once it is exhausted.
func (m *Manager) run(ctx context.Context, identity string, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dial(ctx, identity)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			if attempt >= m.budget {
				m.degrade(&ConnectionError{Attempts: attempt, Err: err})
				return
			}
			m.logger.Warn("channel dial failed, retrying",
				"attempt", attempt,
				"budget", m.budget,
				"error", err,
			)
			select {
			case <-m.clock.After(m.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		attempt = 0
		m.setState(StateConnected)
		m.logger.Info("channel connected", "identity", identity)

		serveErr := m.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		m.setState(StateConnecting)
		if netutil.IsExpectedCloseError(serveErr) || websocket.IsCloseError(serveErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			m.logger.Info("channel connection closed, reconnecting")
		} else {
			m.logger.Warn("channel connection lost, reconnecting", "error", serveErr)
		}
	}
}

func (m *Manager) dial(ctx context.Context, identity string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Chat-Identity", identity)
	if m.token != "" {
		header.Set("Authorization", "Bearer "+m.token)
	}
	conn, response, err := m.dialer.DialContext(ctx, m.url, header)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", m.url, err)
	}
	return conn, nil
}

// serve runs the read and write pumps for one connection and returns
// the error that ended it. The caller owns reconnection.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	connDone := make(chan struct{})
	defer close(connDone)

	// Unblock the read pump when the run loop is cancelled:
	// ReadMessage only returns once the socket closes.
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
		case <-connDone:
			conn.Close()
		}
	}()

	go m.writePump(conn, connDone)
	return m.readPump(conn)
}

// readPump reads events until the connection fails and dispatches
// them in arrival order. Running dispatch on this single goroutine is
// what preserves server-emission order for listeners.
func (m *Manager) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxEventSize)
	conn.SetReadDeadline(time.Now().Add(defaultPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultPongTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(defaultPongTimeout))

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			m.logger.Warn("channel received malformed event", "error", err)
			continue
		}
		if event.Type == EventError {
			if errPayload, decodeErr := Decode[ErrorPayload](event); decodeErr == nil {
				m.logger.Warn("channel server error event",
					"code", errPayload.Code,
					"message", errPayload.Message,
				)
			}
		}
		m.listeners.dispatch(event)
	}
}

// writePump drains the outgoing queue and sends keepalive pings until
// the connection ends.
func (m *Manager) writePump(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := m.clock.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-m.outgoing:
			conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				if !netutil.IsExpectedCloseError(err) {
					m.logger.Warn("channel write failed", "event_type", event.Type, "error", err)
				}
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-connDone:
			return
		}
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()
	m.watchers.notify(state)
}

// degrade records the terminal connection error and settles into
// StateDegraded. Connect may be called again to spend a fresh budget.
func (m *Manager) degrade(err *ConnectionError) {
	m.mu.Lock()
	m.lastErr = err
	m.running = false
	m.cancel = nil
	m.mu.Unlock()
	m.logger.Error("channel degraded, retry budget exhausted",
		"attempts", err.Attempts,
		"error", err.Err,
	)
	m.setState(StateDegraded)
}
