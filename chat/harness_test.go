// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/lib/testutil"
)

// fakeBackend serves the REST endpoints the chat components consume.
// Fixture data is mutable between requests; gates block individual
// history fetches so tests can interleave live events with them.
type fakeBackend struct {
	server *httptest.Server

	mu            sync.Mutex
	conversations []api.Conversation
	history       map[string][]api.Message
	gates         map[string]chan struct{}
	supportThread *api.Conversation
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		history: map[string][]api.Message{},
		gates:   map[string]chan struct{}{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		conversations := append([]api.Conversation(nil), b.conversations...)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"conversations": conversations})
	})
	mux.HandleFunc("GET /api/v1/chat/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		b.serveHistory(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/v1/support/thread", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		thread := b.supportThread
		b.mu.Unlock()
		if thread == nil {
			http.Error(w, `{"code":"internal_error","message":"no thread fixture"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, thread)
	})
	mux.HandleFunc("GET /api/v1/support/thread/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		b.serveHistory(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/v1/chat/attachments", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file.Close()
		writeJSON(w, api.UploadResponse{URL: "https://cdn.example.travel/" + header.Filename})
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) serveHistory(w http.ResponseWriter, r *http.Request, conversationID string) {
	b.mu.Lock()
	gate := b.gates[conversationID]
	messages := append([]api.Message(nil), b.history[conversationID]...)
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, api.HistoryPage{ConversationID: conversationID, Messages: messages})
}

// gateHistory makes history fetches for the conversation block until
// the returned function is called.
func (b *fakeBackend) gateHistory(conversationID string) func() {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[conversationID] = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (b *fakeBackend) setConversations(conversations ...api.Conversation) {
	b.mu.Lock()
	b.conversations = conversations
	b.mu.Unlock()
}

func (b *fakeBackend) setHistory(conversationID string, messages ...api.Message) {
	b.mu.Lock()
	b.history[conversationID] = messages
	b.mu.Unlock()
}

func (b *fakeBackend) setSupportThread(thread api.Conversation) {
	b.mu.Lock()
	b.supportThread = &thread
	b.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

var chatUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// fakeChannel is a websocket peer standing in for the backend's event
// channel: tests push events through it and observe what the client
// emitted.
type fakeChannel struct {
	server   *httptest.Server
	sessions chan *channelSession
}

type channelSession struct {
	identity string
	send     chan channel.Event
	received chan channel.Event
}

func newFakeChannel(t *testing.T) *fakeChannel {
	t.Helper()
	fc := &fakeChannel{sessions: make(chan *channelSession, 4)}
	fc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := &channelSession{
			identity: r.Header.Get("X-Chat-Identity"),
			send:     make(chan channel.Event, 16),
			received: make(chan channel.Event, 16),
		}
		conn, err := chatUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fc.sessions <- session
		go func() {
			for event := range session.send {
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			}
		}()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var event channel.Event
			if err := json.Unmarshal(payload, &event); err != nil {
				continue
			}
			session.received <- event
		}
	}))
	t.Cleanup(fc.server.Close)
	return fc
}

func (fc *fakeChannel) url() string {
	return "ws" + strings.TrimPrefix(fc.server.URL, "http")
}

// emit pushes one event to the connected client, encoding the payload.
func (s *channelSession) emit(t *testing.T, eventType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encoding %s payload: %v", eventType, err)
	}
	s.send <- channel.Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
}

// fixture wires a connected channel.Manager and an api.Client against
// the fakes, the way the session wiring in the binaries does.
type fixture struct {
	backend *fakeBackend
	client  *api.Client
	manager *channel.Manager
	session *channelSession
}

func newFixture(t *testing.T, identity string) *fixture {
	t.Helper()
	backend := newFakeBackend(t)
	socket := newFakeChannel(t)

	client, err := api.NewClient(api.ClientConfig{BaseURL: backend.server.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	manager, err := channel.NewManager(channel.Config{URL: socket.url(), Token: "test-token"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(manager.Disconnect)

	connected := make(chan struct{}, 1)
	sub := manager.OnState(func(s channel.State) {
		if s == channel.StateConnected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	defer sub.Close()
	if err := manager.Connect(identity); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	testutil.RequireReceive(t, connected, 5*time.Second, "channel connected")
	session := testutil.RequireReceive(t, socket.sessions, 5*time.Second, "channel session")

	return &fixture{backend: backend, client: client, manager: manager, session: session}
}

// changeSignal returns an OnChange callback and the channel it
// signals, so tests can block until a component reports a change.
func changeSignal() (func(), chan struct{}) {
	ch := make(chan struct{}, 64)
	return func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}, ch
}

func conversationFixture(id string, unread int, lastActivity time.Time) api.Conversation {
	return api.Conversation{
		ID:   id,
		Kind: api.KindPrivate,
		Partner: api.Party{
			UserID:      "partner-" + id,
			DisplayName: "Partner " + id,
		},
		UnreadCount:  unread,
		LastActivity: lastActivity,
	}
}

func messageFixture(id, conversationID, senderID, content string) api.Message {
	return api.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     "Sender " + senderID,
		Content:        content,
		Type:           api.MessageText,
		SentAt:         time.Now().UTC(),
	}
}
