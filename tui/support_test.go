// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/chat"
)

// fakeSupport is an in-memory SupportSession.
type fakeSupport struct {
	opened   bool
	closed   bool
	messages []api.Message
	sent     []string
	openErr  error
}

func (s *fakeSupport) Open(context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *fakeSupport) Close()                        { s.closed = true }
func (s *fakeSupport) Opened() bool                  { return s.opened }
func (s *fakeSupport) Messages() []api.Message       { return s.messages }
func (s *fakeSupport) StreamState() chat.StreamState { return chat.StreamLive }
func (s *fakeSupport) VisitorID() string             { return "visitor-1" }

func (s *fakeSupport) Send(content string) (string, error) {
	s.sent = append(s.sent, content)
	return "txn-1", nil
}

func testSupportModel(session *fakeSupport) SupportModel {
	model := NewSupportModel(session, DefaultTheme)

	// Run Init's commands by hand: blink plus the async open.
	if batch, ok := model.Init()().(tea.BatchMsg); ok {
		for _, sub := range batch {
			updated, _ := model.Update(sub())
			model = updated.(SupportModel)
		}
	}

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	return updated.(SupportModel)
}

func TestSupportModelOpensOnStart(t *testing.T) {
	session := &fakeSupport{
		messages: []api.Message{
			{
				ID:      "m1",
				Content: "Hi! How can we help with your trip?",
				Type:    api.MessageSystem,
				SentAt:  time.Unix(1700000000, 0),
			},
		},
	}
	model := testSupportModel(session)

	if !session.opened {
		t.Fatal("expected the controller to be opened on start")
	}
	output := ansi.Strip(model.View())
	if !strings.Contains(output, "Need a hand with your trip?") {
		t.Error("expected widget header")
	}
	if !strings.Contains(output, "How can we help with your trip?") {
		t.Error("expected the system greeting in the timeline")
	}
}

func TestSupportModelSendsAndClearsInput(t *testing.T) {
	session := &fakeSupport{}
	model := testSupportModel(session)

	for _, r := range "help" {
		updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		model = updated.(SupportModel)
	}
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(SupportModel)

	if len(session.sent) != 1 || session.sent[0] != "help" {
		t.Fatalf("expected one send of %q, got %v", "help", session.sent)
	}

	// Enter on an empty composer is a no-op.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(SupportModel)
	if len(session.sent) != 1 {
		t.Errorf("empty input should not send, got %v", session.sent)
	}
}

func TestSupportModelEscapeClosesThread(t *testing.T) {
	session := &fakeSupport{}
	model := testSupportModel(session)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEscape})
	if !session.closed {
		t.Error("expected controller Close on escape")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit")
	}
}

func TestSupportModelShowsOpenError(t *testing.T) {
	session := &fakeSupport{openErr: context.DeadlineExceeded}
	model := testSupportModel(session)

	output := ansi.Strip(model.View())
	if !strings.Contains(output, "deadline exceeded") {
		t.Errorf("expected open error surfaced in the view, got:\n%s", output)
	}
}
