// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/junegunn/fzf/src/util"

	"github.com/wayfare-labs/tripchat/api"
)

// SidebarEntry is one conversation row after filtering: the
// conversation plus its fuzzy match details for highlighting.
type SidebarEntry struct {
	Conversation api.Conversation
	Score        int
	Positions    []int
}

// SidebarModel is the conversation list pane: the directory's
// ordering, narrowed client-side by a fuzzy filter over the partner
// names the user actually sees (nickname overrides included).
type SidebarModel struct {
	// Filter is the current query text.
	Filter string
	// FilterActive is true while keystrokes go to the filter input.
	FilterActive bool

	entries []SidebarEntry
	cursor  int
	slab    *util.Slab
}

// NewSidebarModel creates an empty sidebar.
func NewSidebarModel() SidebarModel {
	return SidebarModel{slab: util.MakeSlab(100*1024, 2048)}
}

// SetConversations replaces the sidebar's rows, reapplying the
// filter. The cursor follows the previously selected conversation
// when it is still visible, otherwise clamps.
func (sidebar *SidebarModel) SetConversations(conversations []api.Conversation) {
	var selectedID string
	if entry, ok := sidebar.Selected(); ok {
		selectedID = entry.ID
	}

	sidebar.entries = sidebar.entries[:0]
	pattern := []rune(sidebar.Filter)
	for _, conversation := range conversations {
		if sidebar.Filter == "" {
			sidebar.entries = append(sidebar.entries, SidebarEntry{Conversation: conversation})
			continue
		}
		match := fuzzyMatch(conversation.Partner.Name(), pattern, sidebar.slab)
		if match.Score <= 0 {
			continue
		}
		sidebar.entries = append(sidebar.entries, SidebarEntry{
			Conversation: conversation,
			Score:        match.Score,
			Positions:    match.Positions,
		})
	}

	sidebar.cursor = 0
	for index, entry := range sidebar.entries {
		if entry.Conversation.ID == selectedID {
			sidebar.cursor = index
			break
		}
	}
}

// Entries returns the filtered rows in directory order.
func (sidebar *SidebarModel) Entries() []SidebarEntry {
	return sidebar.entries
}

// Selected returns the conversation under the cursor.
func (sidebar *SidebarModel) Selected() (api.Conversation, bool) {
	if sidebar.cursor < 0 || sidebar.cursor >= len(sidebar.entries) {
		return api.Conversation{}, false
	}
	return sidebar.entries[sidebar.cursor].Conversation, true
}

// MoveCursor shifts the cursor by delta, clamped to the list.
func (sidebar *SidebarModel) MoveCursor(delta int) {
	sidebar.cursor += delta
	if sidebar.cursor < 0 {
		sidebar.cursor = 0
	}
	if last := len(sidebar.entries) - 1; sidebar.cursor > last {
		sidebar.cursor = max(last, 0)
	}
}

// CursorTo places the cursor on the given conversation if visible.
func (sidebar *SidebarModel) CursorTo(conversationID string) {
	for index, entry := range sidebar.entries {
		if entry.Conversation.ID == conversationID {
			sidebar.cursor = index
			return
		}
	}
}

// ClearFilter resets the filter text and deactivates it.
func (sidebar *SidebarModel) ClearFilter() {
	sidebar.Filter = ""
	sidebar.FilterActive = false
}

// View renders the sidebar at the given size.
func (sidebar *SidebarModel) View(theme Theme, width, height int, activeID string) string {
	var lines []string

	if sidebar.FilterActive || sidebar.Filter != "" {
		prompt := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Render("/" + sidebar.Filter)
		if sidebar.FilterActive {
			prompt += lipgloss.NewStyle().Foreground(theme.NormalText).Render("▌")
		}
		lines = append(lines, ansi.Truncate(prompt, width, "…"))
	}

	for index, entry := range sidebar.entries {
		if len(lines) >= height {
			break
		}
		lines = append(lines, sidebar.renderRow(theme, width, entry, index == sidebar.cursor, entry.Conversation.ID == activeID))
	}
	if len(sidebar.entries) == 0 {
		empty := "no conversations"
		if sidebar.Filter != "" {
			empty = "no matches"
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.FaintText).Render(empty))
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (sidebar *SidebarModel) renderRow(theme Theme, width int, entry SidebarEntry, underCursor, active bool) string {
	conversation := entry.Conversation

	name := conversation.Partner.Name()
	if conversation.Kind == api.KindSupport {
		name = "Support"
	}

	badge := ""
	if conversation.UnreadCount > 0 {
		badge = lipgloss.NewStyle().
			Foreground(theme.UnreadBadgeForeground).
			Background(theme.UnreadBadgeBackground).
			Render(fmt.Sprintf(" %d ", conversation.UnreadCount))
	}

	preview := ""
	if conversation.LastMessage != nil {
		preview = previewText(*conversation.LastMessage)
	}

	nameStyle := lipgloss.NewStyle().Foreground(theme.NormalText)
	if conversation.UnreadCount > 0 {
		nameStyle = nameStyle.Bold(true)
	}
	marker := "  "
	if active {
		marker = "» "
	}

	nameWidth := width - lipgloss.Width(badge) - len(marker)
	if nameWidth < 4 {
		nameWidth = 4
	}
	styledName := highlightMatches(name, entry.Positions, nameStyle, theme)
	row := marker + ansi.Truncate(styledName, nameWidth, "…") + badge
	if preview != "" {
		previewStyle := lipgloss.NewStyle().Foreground(theme.FaintText)
		row += "\n  " + previewStyle.Render(ansi.Truncate(preview, width-2, "…"))
	}

	if underCursor {
		selected := lipgloss.NewStyle().
			Background(theme.SelectedBackground).
			Foreground(theme.SelectedForeground)
		parts := strings.Split(row, "\n")
		for index, part := range parts {
			parts[index] = selected.Render(ansi.Strip(part))
		}
		row = strings.Join(parts, "\n")
	}
	return row
}

// highlightMatches styles a name with fuzzy match positions marked.
// Positions index runes of the matched text.
func highlightMatches(name string, positions []int, base lipgloss.Style, theme Theme) string {
	if len(positions) == 0 {
		return base.Render(name)
	}
	matched := make(map[int]bool, len(positions))
	for _, position := range positions {
		matched[position] = true
	}
	matchStyle := base.Background(theme.MatchBackground)

	var out strings.Builder
	for index, r := range []rune(name) {
		if matched[index] {
			out.WriteString(matchStyle.Render(string(r)))
		} else {
			out.WriteString(base.Render(string(r)))
		}
	}
	return out.String()
}

// previewText flattens a last-message preview into one sidebar line.
func previewText(preview api.MessagePreview) string {
	prefix := ""
	if preview.FromMe {
		prefix = "you: "
	}
	switch preview.Type {
	case api.MessageImage:
		return prefix + "[photo]"
	case api.MessageVideo:
		return prefix + "[video]"
	case api.MessageFile:
		return prefix + "[file]"
	default:
		return prefix + strings.ReplaceAll(preview.Content, "\n", " ")
	}
}
