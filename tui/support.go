// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wayfare-labs/tripchat/api"
	"github.com/wayfare-labs/tripchat/chat"
)

// SupportSession is the slice of the support controller the widget
// renders against.
type SupportSession interface {
	Open(ctx context.Context) error
	Close()
	Opened() bool
	Messages() []api.Message
	StreamState() chat.StreamState
	Send(content string) (string, error)
	VisitorID() string
}

// SupportChangedMsg reports that the support thread's visible state
// changed.
type SupportChangedMsg struct{}

// supportOpenedMsg carries the outcome of the asynchronous thread
// open.
type supportOpenedMsg struct {
	err error
}

// SupportModel is the standalone help widget: a single support
// thread with a one-line composer. It opens its conversation on
// start instead of offering a directory.
type SupportModel struct {
	session SupportSession
	theme   Theme

	width  int
	height int
	ready  bool
	opened bool

	input  textarea.Model
	notice string
}

// NewSupportModel creates the help widget over an unopened
// controller.
func NewSupportModel(session SupportSession, theme Theme) SupportModel {
	input := textarea.New()
	input.Placeholder = "How can we help?"
	input.CharLimit = 0
	input.SetHeight(2)
	input.ShowLineNumbers = false
	input.Focus()

	return SupportModel{
		session: session,
		theme:   theme,
		input:   input,
	}
}

func (model SupportModel) Init() tea.Cmd {
	session := model.session
	open := func() tea.Msg {
		return supportOpenedMsg{err: session.Open(context.Background())}
	}
	return tea.Batch(textarea.Blink, open)
}

func (model SupportModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.input.SetWidth(message.Width)
		model.ready = true
		return model, nil

	case supportOpenedMsg:
		if message.err != nil {
			model.notice = message.err.Error()
			return model, nil
		}
		model.opened = true
		return model, nil

	case SupportChangedMsg:
		return model, nil

	case tea.KeyMsg:
		switch message.String() {
		case "ctrl+c", "esc":
			model.session.Close()
			return model, tea.Quit
		case "enter":
			return model.sendDraft()
		}
		var cmd tea.Cmd
		model.input, cmd = model.input.Update(message)
		return model, cmd
	}

	var cmd tea.Cmd
	model.input, cmd = model.input.Update(message)
	return model, cmd
}

func (model SupportModel) sendDraft() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(model.input.Value())
	if content == "" {
		return model, nil
	}
	if _, err := model.session.Send(content); err != nil {
		model.notice = err.Error()
		return model, nil
	}
	model.notice = ""
	model.input.Reset()
	return model, nil
}

func (model SupportModel) View() string {
	if !model.ready {
		return "starting…"
	}

	header := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true).
		Render("Need a hand with your trip?")
	rule := lipgloss.NewStyle().Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", max(model.width, 1)))

	bodyHeight := model.height - 2 - 2 - 1
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	var body string
	switch {
	case model.notice != "":
		body = lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render(model.notice)
	case !model.opened || model.session.StreamState() == chat.StreamLoadingHistory:
		body = lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("connecting you with support…")
	default:
		body = renderTimeline(model.session.Messages(), model.session.VisitorID(), model.theme, model.width)
	}
	bodyLines := strings.Split(body, "\n")
	if len(bodyLines) > bodyHeight {
		bodyLines = bodyLines[len(bodyLines)-bodyHeight:]
	}
	for len(bodyLines) < bodyHeight {
		bodyLines = append(bodyLines, "")
	}

	help := lipgloss.NewStyle().Foreground(model.theme.HelpText).
		Render("enter send · esc close")

	return header + "\n" + rule + "\n" +
		strings.Join(bodyLines, "\n") + "\n" +
		model.input.View() + "\n" + help
}
