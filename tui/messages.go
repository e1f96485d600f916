// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/wayfare-labs/tripchat/api"
)

// renderTimeline renders a message list for the viewport, oldest
// first. Own messages, partner messages, and system notices each get
// their own attribution style; bodies render through the markdown
// renderer.
func renderTimeline(messages []api.Message, identity string, theme Theme, width int) string {
	if len(messages) == 0 {
		return lipgloss.NewStyle().Foreground(theme.FaintText).Render("no messages yet")
	}

	var blocks []string
	previousSender := ""
	for _, message := range messages {
		if message.System() {
			blocks = append(blocks, renderSystemNotice(message, theme, width))
			previousSender = ""
			continue
		}

		// Consecutive messages from one sender share an attribution
		// line.
		if message.SenderID != previousSender {
			blocks = append(blocks, renderAttribution(message, identity, theme))
			previousSender = message.SenderID
		}
		blocks = append(blocks, renderBody(message, theme, width))
	}
	return strings.Join(blocks, "\n")
}

func renderAttribution(message api.Message, identity string, theme Theme) string {
	name := message.SenderName
	color := theme.PartnerSender
	if message.SenderID == identity {
		name = "you"
		color = theme.OwnSender
	} else if name == "" {
		name = message.SenderID
	}
	timestamp := lipgloss.NewStyle().Foreground(theme.FaintText).
		Render(message.SentAt.Local().Format("15:04"))
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(name) + " " + timestamp
}

func renderBody(message api.Message, theme Theme, width int) string {
	body := ""
	switch message.Type {
	case api.MessageImage:
		body = attachmentLine("photo", message.Content, theme)
	case api.MessageVideo:
		body = attachmentLine("video", message.Content, theme)
	case api.MessageFile:
		body = attachmentLine("file", message.Content, theme)
	default:
		body = renderMessageMarkdown(message.Content, theme, width-2)
	}

	if message.Edited {
		body += " " + lipgloss.NewStyle().Foreground(theme.FaintText).Render("(edited)")
	}
	if line := renderReactions(message.Reactions, theme); line != "" {
		body += "\n" + line
	}

	// Indent the body under its attribution line.
	indented := make([]string, 0, 4)
	for _, line := range strings.Split(body, "\n") {
		indented = append(indented, "  "+line)
	}
	return strings.Join(indented, "\n")
}

// attachmentLine renders a typed attachment message: a tagged
// placeholder plus the stored URL.
func attachmentLine(kind, url string, theme Theme) string {
	tag := lipgloss.NewStyle().Foreground(theme.FaintText).Render("[" + kind + "]")
	if url == "" {
		return tag
	}
	return tag + " " + lipgloss.NewStyle().Foreground(theme.LinkForeground).Render(url)
}

func renderReactions(reactions []api.Reaction, theme Theme) string {
	if len(reactions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(reactions))
	for _, reaction := range reactions {
		parts = append(parts, fmt.Sprintf("%s %d", reaction.Emoji, reaction.Count))
	}
	return lipgloss.NewStyle().Foreground(theme.FaintText).Render(strings.Join(parts, "  "))
}

func renderSystemNotice(message api.Message, theme Theme, width int) string {
	notice := lipgloss.NewStyle().Foreground(theme.SystemNotice).Italic(true).
		Render(message.Content)
	return ansi.Wrap("· "+notice, width, " ,.;-")
}

// renderTypingLine renders the who-is-typing indicator, empty when
// nobody is.
func renderTypingLine(users []string, theme Theme) string {
	if len(users) == 0 {
		return ""
	}
	var text string
	switch len(users) {
	case 1:
		text = users[0] + " is typing…"
	case 2:
		text = users[0] + " and " + users[1] + " are typing…"
	default:
		text = "several people are typing…"
	}
	return lipgloss.NewStyle().Foreground(theme.TypingIndicator).Italic(true).Render(text)
}
