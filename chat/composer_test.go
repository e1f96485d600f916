// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/lib/clock"
	"github.com/wayfare-labs/tripchat/lib/draftstore"
	"github.com/wayfare-labs/tripchat/lib/testutil"
)

func newTestComposer(t *testing.T, fix *fixture, fake *clock.FakeClock, drafts *draftstore.Store) (*Composer, *Stream) {
	t.Helper()
	stream := NewStream(StreamConfig{History: fix.client, Channel: fix.manager})
	stream.Attach()
	t.Cleanup(stream.Detach)
	composer := NewComposer(ComposerConfig{
		Stream:  stream,
		Channel: fix.manager,
		Client:  fix.client,
		Drafts:  drafts,
		Clock:   fake,
	})
	return composer, stream
}

// nextFrame receives emitted frames until one of the wanted type
// arrives, skipping unrelated traffic like read-marks.
func nextFrame(t *testing.T, session *channelSession, eventType string) channel.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-session.received:
			if event.Type == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", eventType)
		}
	}
}

func TestFirstKeystrokeEmitsTypingStart(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	fake := clock.Fake(time.Unix(1700000000, 0))
	composer, stream := newTestComposer(t, fix, fake, nil)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	composer.SetConversation("conv-1")

	composer.SetDraft("h")
	frame := nextFrame(t, fix.session, channel.EventTypingStart)
	signal, err := channel.Decode[channel.TypingSignal](frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if signal.ConversationID != "conv-1" || signal.UserID != "me" {
		t.Fatalf("typing signal = %+v", signal)
	}

	// Further keystrokes inside the debounce window emit nothing.
	composer.SetDraft("he")
	composer.SetDraft("hel")
	select {
	case event := <-fix.session.received:
		t.Fatalf("unexpected %s frame during continuous typing", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTypingStopsAfterQuietPeriod(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	fake := clock.Fake(time.Unix(1700000000, 0))
	composer, stream := newTestComposer(t, fix, fake, nil)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	composer.SetConversation("conv-1")

	composer.SetDraft("thinking")
	nextFrame(t, fix.session, channel.EventTypingStart)

	fake.Advance(DefaultTypingDebounce)
	stop := nextFrame(t, fix.session, channel.EventTypingStop)
	signal, err := channel.Decode[channel.TypingSignal](stop)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if signal.ConversationID != "conv-1" {
		t.Fatalf("stop signal = %+v", signal)
	}

	// The next keystroke after quiet starts a fresh typing episode.
	composer.SetDraft("thinking more")
	nextFrame(t, fix.session, channel.EventTypingStart)
}

func TestKeystrokesPushDebounceOut(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	fake := clock.Fake(time.Unix(1700000000, 0))
	composer, stream := newTestComposer(t, fix, fake, nil)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	composer.SetConversation("conv-1")

	composer.SetDraft("a")
	nextFrame(t, fix.session, channel.EventTypingStart)

	// Keystrokes every half-debounce keep the stop from firing.
	for range 3 {
		fake.Advance(DefaultTypingDebounce / 2)
		composer.SetDraft("more")
	}
	select {
	case event := <-fix.session.received:
		t.Fatalf("unexpected %s frame while still typing", event.Type)
	case <-time.After(50 * time.Millisecond):
	}

	fake.Advance(DefaultTypingDebounce)
	nextFrame(t, fix.session, channel.EventTypingStop)
}

func TestSendClearsDraftAndStopsTyping(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	fake := clock.Fake(time.Unix(1700000000, 0))
	composer, stream := newTestComposer(t, fix, fake, nil)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	composer.SetConversation("conv-1")

	composer.SetDraft("wheels down in ten")
	nextFrame(t, fix.session, channel.EventTypingStart)

	txnID, err := composer.Send()
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if txnID == "" {
		t.Fatal("Send returned empty txn ID")
	}
	if composer.Draft() != "" {
		t.Fatalf("draft after send = %q, want empty", composer.Draft())
	}

	frame := nextFrame(t, fix.session, channel.EventMessageSend)
	request, err := channel.Decode[channel.SendMessageRequest](frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if request.Content != "wheels down in ten" {
		t.Fatalf("sent content = %q", request.Content)
	}
	// Sending ends the typing episode without waiting for the
	// debounce.
	nextFrame(t, fix.session, channel.EventTypingStop)
}

func TestSendEmptyDraftIsNoop(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	fake := clock.Fake(time.Unix(1700000000, 0))
	composer, stream := newTestComposer(t, fix, fake, nil)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	composer.SetConversation("conv-1")

	txnID, err := composer.Send()
	if err != nil {
		t.Fatalf("Send of empty draft: %v", err)
	}
	if txnID != "" {
		t.Fatalf("empty send produced txn %q", txnID)
	}
	select {
	case event := <-fix.session.received:
		t.Fatalf("unexpected %s frame for empty send", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDraftsPersistAcrossConversationSwitches(t *testing.T) {
	fix := newFixture(t, "me")
	fake := clock.Fake(time.Unix(1700000000, 0))
	drafts, err := draftstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("draftstore.Open: %v", err)
	}
	composer, _ := newTestComposer(t, fix, fake, drafts)

	composer.SetConversation("conv-1")
	composer.SetDraft("half-written reply")
	composer.SetConversation("conv-2")
	if composer.Draft() != "" {
		t.Fatalf("draft leaked across switch: %q", composer.Draft())
	}
	composer.SetConversation("conv-1")
	if composer.Draft() != "half-written reply" {
		t.Fatalf("restored draft = %q", composer.Draft())
	}

	// A second composer over the same store sees the draft: restart
	// survival.
	composer.Flush()
	second := NewComposer(ComposerConfig{
		Stream:  NewStream(StreamConfig{History: fix.client, Channel: fix.manager}),
		Channel: fix.manager,
		Drafts:  drafts,
		Clock:   fake,
	})
	second.SetConversation("conv-1")
	if second.Draft() != "half-written reply" {
		t.Fatalf("draft after restart = %q", second.Draft())
	}
}

func TestOneUploadAtATime(t *testing.T) {
	fix := newFixture(t, "me")
	fix.backend.setHistory("conv-1")
	fake := clock.Fake(time.Unix(1700000000, 0))
	composer, stream := newTestComposer(t, fix, fake, nil)
	if err := stream.Open(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	composer.SetConversation("conv-1")

	// Stall the first upload by feeding it a reader that blocks until
	// released.
	release := make(chan struct{})
	blocking := &gatedReader{gate: release, payload: "photo bytes", started: make(chan struct{})}

	uploadDone := make(chan error, 1)
	go func() {
		uploadDone <- composer.Upload(context.Background(), "beach.jpg", "image/jpeg",
			blocking, int64(len(blocking.payload)), nil)
	}()
	testutil.RequireClosed(t, blocking.started, 5*time.Second, "first upload started")

	if err := composer.Upload(context.Background(), "second.jpg", "image/jpeg",
		strings.NewReader("x"), 1, nil); err == nil {
		t.Fatal("second concurrent upload should fail")
	}
	if !composer.Uploading() {
		t.Fatal("Uploading should report the in-flight upload")
	}
	if composer.Enabled() {
		t.Fatal("composer should be disabled while uploading")
	}

	close(release)
	if err := testutil.RequireReceive(t, uploadDone, 5*time.Second, "first upload finishing"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if composer.Uploading() {
		t.Fatal("Uploading still true after completion")
	}

	// The upload announces itself as an image message carrying the
	// stored URL.
	frame := nextFrame(t, fix.session, channel.EventMessageSend)
	request, err := channel.Decode[channel.SendMessageRequest](frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if request.Type != "image" || !strings.HasSuffix(request.Content, "/beach.jpg") {
		t.Fatalf("upload announcement = %+v", request)
	}

	// Sequential uploads are fine.
	if err := composer.Upload(context.Background(), "receipt.pdf", "application/pdf",
		strings.NewReader("pdf"), 3, nil); err != nil {
		t.Fatalf("follow-up upload: %v", err)
	}
	frame = nextFrame(t, fix.session, channel.EventMessageSend)
	request, err = channel.Decode[channel.SendMessageRequest](frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if request.Type != "file" {
		t.Fatalf("pdf announced as %q, want file", request.Type)
	}
}

// gatedReader signals when reading starts and blocks until released.
type gatedReader struct {
	gate    chan struct{}
	payload string

	started  chan struct{}
	signaled bool
	offset   int
}

func (r *gatedReader) Read(p []byte) (int, error) {
	if !r.signaled {
		r.signaled = true
		close(r.started)
	}
	<-r.gate
	if r.offset >= len(r.payload) {
		return 0, io.EOF
	}
	n := copy(p, r.payload[r.offset:])
	r.offset += n
	return n, nil
}
