// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/wayfare-labs/tripchat/channel"
	"github.com/wayfare-labs/tripchat/chat"
)

// FocusRegion identifies which pane has keyboard focus.
type FocusRegion int

const (
	// FocusSidebar means navigation keys move the conversation
	// cursor.
	FocusSidebar FocusRegion = iota
	// FocusFilter means keystrokes go to the sidebar filter input.
	FocusFilter
	// FocusComposer means keystrokes go to the message textarea.
	FocusComposer
)

// SessionChangedMsg reports that the engine's visible state changed.
// The binary bridges the session's OnChange callback to the program
// with this message.
type SessionChangedMsg struct{}

// openResultMsg carries the outcome of an asynchronous conversation
// open.
type openResultMsg struct {
	conversationID string
	err            error
}

// olderResultMsg carries the outcome of a history page load.
type olderResultMsg struct {
	err error
}

const (
	sidebarMinWidth = 24
	sidebarMaxWidth = 40
	composerHeight  = 3
)

// Model is the main chat page: conversation sidebar, message
// viewport, composer, and presence/connection chrome.
type Model struct {
	session Session
	theme   Theme

	width  int
	height int
	ready  bool

	focus    FocusRegion
	sidebar  SidebarModel
	viewport viewport.Model
	input    textarea.Model

	notice string
}

// NewModel creates the chat page over a started session.
func NewModel(session Session, theme Theme) Model {
	input := textarea.New()
	input.Placeholder = "Message…"
	input.CharLimit = 0
	input.SetHeight(composerHeight)
	input.ShowLineNumbers = false

	return Model{
		session: session,
		theme:   theme,
		sidebar: NewSidebarModel(),
		input:   input,
	}
}

func (model Model) Init() tea.Cmd {
	return textarea.Blink
}

func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.layout()
		model.ready = true
		model.refresh()
		return model, nil

	case SessionChangedMsg:
		model.refresh()
		return model, nil

	case openResultMsg:
		if message.err != nil {
			model.notice = message.err.Error()
			return model, nil
		}
		model.notice = ""
		model.focus = FocusComposer
		model.input.SetValue(model.session.Draft())
		model.input.Focus()
		model.refresh()
		model.viewport.GotoBottom()
		return model, nil

	case olderResultMsg:
		if message.err != nil {
			model.notice = message.err.Error()
		}
		model.refresh()
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(message)
	}

	var cmd tea.Cmd
	model.input, cmd = model.input.Update(message)
	return model, cmd
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if message.String() == "ctrl+c" {
		return model, tea.Quit
	}

	switch model.focus {
	case FocusFilter:
		return model.handleFilterKey(message)
	case FocusComposer:
		return model.handleComposerKey(message)
	default:
		return model.handleSidebarKey(message)
	}
}

func (model Model) handleSidebarKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.String() {
	case "/":
		model.sidebar.FilterActive = true
		model.focus = FocusFilter
	case "up", "k":
		model.sidebar.MoveCursor(-1)
	case "down", "j":
		model.sidebar.MoveCursor(1)
	case "enter":
		if selected, ok := model.sidebar.Selected(); ok {
			return model, model.openConversation(selected.ID)
		}
	case "tab":
		if model.session.ActiveConversation() != "" {
			model.focus = FocusComposer
			model.input.Focus()
		}
	case "esc":
		model.sidebar.ClearFilter()
		model.refresh()
	case "q":
		return model, tea.Quit
	}
	return model, nil
}

func (model Model) handleFilterKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.Type {
	case tea.KeyEscape:
		model.sidebar.ClearFilter()
		model.focus = FocusSidebar
		model.refresh()
	case tea.KeyEnter:
		model.sidebar.FilterActive = false
		model.focus = FocusSidebar
	case tea.KeyBackspace:
		if model.sidebar.Filter != "" {
			runes := []rune(model.sidebar.Filter)
			model.sidebar.Filter = string(runes[:len(runes)-1])
			model.refresh()
		}
	case tea.KeyRunes:
		model.sidebar.Filter += string(message.Runes)
		model.refresh()
	}
	return model, nil
}

func (model Model) handleComposerKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.String() {
	case "esc":
		model.focus = FocusSidebar
		model.input.Blur()
		return model, nil
	case "tab":
		model.focus = FocusSidebar
		model.input.Blur()
		return model, nil
	case "pgup":
		return model, model.loadOlder()
	case "enter":
		return model.sendDraft()
	}

	var cmd tea.Cmd
	model.input, cmd = model.input.Update(message)
	// Every keystroke flows into the engine so drafts persist and
	// typing signals fire.
	model.session.SetDraft(model.input.Value())
	return model, cmd
}

func (model Model) sendDraft() (tea.Model, tea.Cmd) {
	model.session.SetDraft(model.input.Value())
	if !model.session.ComposerEnabled() {
		model.notice = "not connected; message not sent"
		return model, nil
	}
	if _, err := model.session.Send(); err != nil {
		model.notice = err.Error()
		return model, nil
	}
	model.notice = ""
	model.input.Reset()
	model.refresh()
	model.viewport.GotoBottom()
	return model, nil
}

// openConversation selects and loads a conversation off the update
// loop: the history fetch must not block rendering.
func (model Model) openConversation(conversationID string) tea.Cmd {
	session := model.session
	return func() tea.Msg {
		err := session.OpenConversation(context.Background(), conversationID)
		return openResultMsg{conversationID: conversationID, err: err}
	}
}

func (model Model) loadOlder() tea.Cmd {
	session := model.session
	return func() tea.Msg {
		return olderResultMsg{err: session.LoadOlderMessages(context.Background())}
	}
}

// refresh re-reads every rendered fact from the session. Called on
// engine change notifications and after local mutations.
func (model *Model) refresh() {
	model.sidebar.SetConversations(model.session.Conversations())
	if active := model.session.ActiveConversation(); active != "" {
		model.sidebar.CursorTo(active)
	}

	if !model.ready {
		return
	}
	atBottom := model.viewport.AtBottom()
	model.viewport.SetContent(renderTimeline(
		model.session.Messages(),
		model.session.Identity(),
		model.theme,
		model.viewport.Width,
	))
	if atBottom {
		model.viewport.GotoBottom()
	}
}

func (model *Model) layout() {
	sidebarWidth := model.sidebarWidth()
	mainWidth := model.width - sidebarWidth - 1
	if mainWidth < 20 {
		mainWidth = 20
	}
	// Header, typing line, composer, help line.
	bodyHeight := model.height - 2 - 1 - composerHeight - 1
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	if model.viewport.Width == 0 {
		model.viewport = viewport.New(mainWidth, bodyHeight)
	} else {
		model.viewport.Width = mainWidth
		model.viewport.Height = bodyHeight
	}
	model.input.SetWidth(mainWidth)
}

func (model Model) sidebarWidth() int {
	width := model.width / 4
	if width < sidebarMinWidth {
		width = sidebarMinWidth
	}
	if width > sidebarMaxWidth {
		width = sidebarMaxWidth
	}
	return width
}

func (model Model) View() string {
	if !model.ready {
		return "starting…"
	}

	sidebarWidth := model.sidebarWidth()
	bodyHeight := model.viewport.Height

	header := model.renderHeader()
	sidebarPane := model.sidebar.View(model.theme, sidebarWidth, bodyHeight+composerHeight+2, model.session.ActiveConversation())
	separator := strings.TrimRight(strings.Repeat(
		lipgloss.NewStyle().Foreground(model.theme.BorderColor).Render("│")+"\n",
		bodyHeight+composerHeight+2), "\n")

	main := model.renderMain(bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebarPane, separator, main)

	help := lipgloss.NewStyle().Foreground(model.theme.HelpText).
		Render("↑/↓ conversations · enter open · / filter · tab compose · pgup history · q quit")

	return header + "\n" + body + "\n" + help
}

func (model Model) renderHeader() string {
	title := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true).
		Render("tripchat")
	if unread := model.session.TotalUnread(); unread > 0 {
		title += lipgloss.NewStyle().Foreground(model.theme.UnreadBadgeBackground).
			Render(fmt.Sprintf(" (%d unread)", unread))
	}

	status := model.renderConnectionStatus()
	gap := model.width - lipgloss.Width(title) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}
	rule := lipgloss.NewStyle().Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", max(model.width, 1)))
	return title + strings.Repeat(" ", gap) + status + "\n" + rule
}

func (model Model) renderConnectionStatus() string {
	switch model.session.ConnectionState() {
	case channel.StateConnected:
		return lipgloss.NewStyle().Foreground(model.theme.ConnectedAccent).Render("● connected")
	case channel.StateConnecting:
		return lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("◌ connecting…")
	case channel.StateDegraded:
		return lipgloss.NewStyle().Foreground(model.theme.DegradedAccent).Render("▲ offline (read-only)")
	default:
		return lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("○ disconnected")
	}
}

func (model Model) renderMain(bodyHeight int) string {
	var sections []string

	if model.session.ActiveConversation() == "" {
		placeholder := lipgloss.NewStyle().Foreground(model.theme.FaintText).
			Render("select a conversation to start chatting")
		sections = append(sections, placeholder)
		for len(sections) < bodyHeight+composerHeight+2 {
			sections = append(sections, "")
		}
		return strings.Join(sections, "\n")
	}

	if model.session.StreamState() == chat.StreamLoadingHistory {
		sections = append(sections, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("loading history…"))
		for len(sections) < bodyHeight {
			sections = append(sections, "")
		}
	} else {
		sections = append(sections, model.viewport.View())
	}

	typing := renderTypingLine(model.session.TypingUsers(model.session.ActiveConversation()), model.theme)
	if typing == "" && model.notice != "" {
		typing = lipgloss.NewStyle().Foreground(model.theme.ErrorText).
			Render(ansi.Truncate(model.notice, model.viewport.Width, "…"))
	}
	sections = append(sections, typing)

	if model.session.ComposerEnabled() {
		sections = append(sections, model.input.View())
	} else {
		disabled := lipgloss.NewStyle().Foreground(model.theme.FaintText).Italic(true).
			Render("composer disabled while offline")
		sections = append(sections, disabled, "", "")
	}
	return strings.Join(sections, "\n")
}
