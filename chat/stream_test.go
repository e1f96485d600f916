// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/lib/testutil"
)

func newTestStream(t *testing.T, fix *fixture) (*Stream, chan struct{}) {
	t.Helper()
	onChange, changed := changeSignal()
	stream := NewStream(StreamConfig{
		History:  fix.client,
		Channel:  fix.manager,
		PageSize: 50,
		OnChange: onChange,
	})
	stream.Attach()
	t.Cleanup(stream.Detach)
	return stream, changed
}

func messageIDs(messages []api.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func requireOrder(t *testing.T, got []api.Message, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("timeline = %v, want %v", messageIDs(got), want)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("timeline = %v, want %v", messageIDs(got), want)
		}
	}
}

func TestOpenLoadsHistoryThenGoesLive(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1",
		messageFixture("msg-1", "conv-1", "partner", "hi"),
		messageFixture("msg-2", "conv-1", "me", "hey"),
	)
	stream, _ := newTestStream(t, fix)

	if got := stream.State(); got != StreamIdle {
		t.Fatalf("initial state = %s", got)
	}
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := stream.State(); got != StreamLive {
		t.Fatalf("state after Open = %s, want live", got)
	}
	requireOrder(t, stream.Messages(), "msg-1", "msg-2")
}

func TestLiveEventDuringHistoryFetchLandsAfterHistory(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1",
		messageFixture("msg-1", "conv-1", "partner", "first"),
		messageFixture("msg-2", "conv-1", "partner", "second"),
	)
	release := fix.backend.gateHistory("conv-1")
	stream, changed := newTestStream(t, fix)

	// Listeners run in registration order, so once this later
	// subscription sees an event the stream has already buffered it.
	buffered := make(chan channel.Event, 4)
	sub := fix.manager.On(channel.EventMessageNew, func(e channel.Event) { buffered <- e })
	defer sub.Close()

	opened := make(chan error, 1)
	go func() { opened <- stream.Open(context.Background(), "conv-1") }()

	// The stream is loading; a live message arrives before the page.
	testutil.RequireReceive(t, changed, 5*time.Second, "loading state change")
	fix.session.emit(t, channel.EventMessageNew,
		messageFixture("msg-3", "conv-1", "partner", "third, live"))
	// One of the history messages also arrives live: the overlap a
	// reconnect produces. The ID de-dup absorbs it.
	fix.session.emit(t, channel.EventMessageNew,
		messageFixture("msg-2", "conv-1", "partner", "second"))
	testutil.RequireReceive(t, buffered, 5*time.Second, "first live event buffered")
	testutil.RequireReceive(t, buffered, 5*time.Second, "second live event buffered")
	release()

	if err := testutil.RequireReceive(t, opened, 5*time.Second, "Open returning"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// History first, buffered live after, duplicate absorbed.
	requireOrder(t, stream.Messages(), "msg-1", "msg-2", "msg-3")
}

func TestDuplicateLiveEventAppendsOnce(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	stream, changed := newTestStream(t, fix)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	message := messageFixture("msg-1", "conv-1", "partner", "hello")
	fix.session.emit(t, channel.EventMessageNew, message)
	testutil.RequireReceive(t, changed, 5*time.Second, "first append")
	fix.session.emit(t, channel.EventMessageNew, message)
	// A follow-up distinct message proves the duplicate was processed
	// and dropped, not still in flight.
	fix.session.emit(t, channel.EventMessageNew,
		messageFixture("msg-2", "conv-1", "partner", "again"))
	testutil.RequireReceive(t, changed, 5*time.Second, "second append")

	requireOrder(t, stream.Messages(), "msg-1", "msg-2")
}

func TestStaleHistoryResponseDiscarded(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-a", messageFixture("msg-a", "conv-a", "partner", "from a"))
	fix.backend.setHistory("conv-b", messageFixture("msg-b", "conv-b", "partner", "from b"))
	releaseA := fix.backend.gateHistory("conv-a")
	stream, _ := newTestStream(t, fix)

	openedA := make(chan error, 1)
	go func() { openedA <- stream.Open(context.Background(), "conv-a") }()

	// The user switches to conv-b before conv-a's page lands.
	deadline := time.Now().Add(2 * time.Second)
	for stream.State() != StreamLoadingHistory && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := stream.Open(context.Background(), "conv-b"); err != nil {
		t.Fatalf("Open conv-b: %v", err)
	}
	releaseA()
	if err := testutil.RequireReceive(t, openedA, 5*time.Second, "stale Open returning"); err != nil {
		t.Fatalf("stale Open should discard silently, got %v", err)
	}

	if got := stream.ConversationID(); got != "conv-b" {
		t.Fatalf("ConversationID = %q, want conv-b", got)
	}
	requireOrder(t, stream.Messages(), "msg-b")
}

func TestOpenResetsPreviousConversation(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-a", messageFixture("msg-a", "conv-a", "partner", "a"))
	fix.backend.setHistory("conv-b", messageFixture("msg-b", "conv-b", "partner", "b"))
	stream, _ := newTestStream(t, fix)

	if err := stream.Open(context.Background(), "conv-a"); err != nil {
		t.Fatalf("Open conv-a: %v", err)
	}
	if err := stream.Open(context.Background(), "conv-b"); err != nil {
		t.Fatalf("Open conv-b: %v", err)
	}
	// Nothing from conv-a leaks into conv-b's timeline.
	requireOrder(t, stream.Messages(), "msg-b")
}

func TestEventsForOtherConversationsIgnored(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	stream, changed := newTestStream(t, fix)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	fix.session.emit(t, channel.EventMessageNew,
		messageFixture("msg-x", "conv-other", "partner", "elsewhere"))
	fix.session.emit(t, channel.EventMessageNew,
		messageFixture("msg-1", "conv-1", "partner", "here"))
	testutil.RequireReceive(t, changed, 5*time.Second, "append")

	requireOrder(t, stream.Messages(), "msg-1")
}

func TestEditDeleteReactionAppliers(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1",
		messageFixture("msg-1", "conv-1", "partner", "original"),
		messageFixture("msg-2", "conv-1", "partner", "stays"),
	)
	stream, changed := newTestStream(t, fix)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	edited := messageFixture("msg-1", "conv-1", "partner", "corrected")
	fix.session.emit(t, channel.EventMessageEdited, edited)
	testutil.RequireReceive(t, changed, 5*time.Second, "edit applied")
	messages := stream.Messages()
	if messages[0].Content != "corrected" || !messages[0].Edited {
		t.Fatalf("after edit: %+v", messages[0])
	}

	fix.session.emit(t, channel.EventReactionUpdated, channel.ReactionUpdate{
		ConversationID: "conv-1",
		MessageID:      "msg-2",
		Reactions:      []api.Reaction{{Emoji: "✈️", Count: 2}},
	})
	testutil.RequireReceive(t, changed, 5*time.Second, "reaction applied")
	messages = stream.Messages()
	if len(messages[1].Reactions) != 1 || messages[1].Reactions[0].Count != 2 {
		t.Fatalf("after reaction: %+v", messages[1].Reactions)
	}

	fix.session.emit(t, channel.EventMessageDeleted, channel.MessageRef{
		ConversationID: "conv-1",
		MessageID:      "msg-1",
	})
	testutil.RequireReceive(t, changed, 5*time.Second, "delete applied")
	requireOrder(t, stream.Messages(), "msg-2")

	// Appliers targeting unknown messages are dropped without effect.
	fix.session.emit(t, channel.EventMessageDeleted, channel.MessageRef{
		ConversationID: "conv-1",
		MessageID:      "msg-ghost",
	})
	fix.session.emit(t, channel.EventMessageEdited,
		messageFixture("msg-ghost", "conv-1", "partner", "phantom edit"))
	fix.session.emit(t, channel.EventMessageNew,
		messageFixture("msg-3", "conv-1", "partner", "sentinel"))
	testutil.RequireReceive(t, changed, 5*time.Second, "sentinel append")
	requireOrder(t, stream.Messages(), "msg-2", "msg-3")
}

func TestSendDoesNotAppendLocally(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	stream, changed := newTestStream(t, fix)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	txnID, err := stream.Send("boarding now", api.MessageText)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if txnID == "" {
		t.Fatal("Send returned empty txn ID")
	}
	if got := stream.Messages(); len(got) != 0 {
		t.Fatalf("timeline after send = %v, want empty until echo", messageIDs(got))
	}

	// The server's echo is the single append path.
	frame := testutil.RequireReceive(t, fix.session.received, 5*time.Second, "message.send frame")
	request, err := channel.Decode[channel.SendMessageRequest](frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	echo := messageFixture("msg-echo", "conv-1", "me", request.Content)
	fix.session.emit(t, channel.EventMessageNew, echo)
	testutil.RequireReceive(t, changed, 5*time.Second, "echo append")

	messages := stream.Messages()
	requireOrder(t, messages, "msg-echo")
	if messages[0].Content != "boarding now" {
		t.Fatalf("echo content = %q", messages[0].Content)
	}
}

func TestSendWithoutOpenConversation(t *testing.T) {
	fix := newFixture(t, "me")
	stream, _ := newTestStream(t, fix)
	if _, err := stream.Send("into the void", api.MessageText); err == nil {
		t.Fatal("Send on idle stream should fail")
	}
}

func TestLoadOlderPrependsWithoutDuplicates(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1",
		messageFixture("msg-3", "conv-1", "partner", "newest page"),
	)
	stream, _ := newTestStream(t, fix)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// HasMore is false on the fixture page, so LoadOlder is a no-op.
	if err := stream.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder with no more history: %v", err)
	}
	requireOrder(t, stream.Messages(), "msg-3")
}
