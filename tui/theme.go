// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for tripchat's terminal surfaces.
// All colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected sidebar row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Message attribution.
	OwnSender     lipgloss.Color
	PartnerSender lipgloss.Color
	SystemNotice  lipgloss.Color

	// Sidebar accents.
	UnreadBadgeBackground lipgloss.Color
	UnreadBadgeForeground lipgloss.Color

	// Presence.
	TypingIndicator lipgloss.Color

	// Connection chrome.
	ConnectedAccent lipgloss.Color
	DegradedAccent  lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	ErrorText        lipgloss.Color

	// Links and attachment placeholders.
	LinkForeground lipgloss.Color

	// Filter match highlighting.
	MatchBackground lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	OwnSender:     lipgloss.Color("114"),
	PartnerSender: lipgloss.Color("75"),
	SystemNotice:  lipgloss.Color("179"),

	UnreadBadgeBackground: lipgloss.Color("167"),
	UnreadBadgeForeground: lipgloss.Color("255"),

	TypingIndicator: lipgloss.Color("115"),

	ConnectedAccent: lipgloss.Color("71"),
	DegradedAccent:  lipgloss.Color("173"),

	HeaderForeground: lipgloss.Color("110"),
	BorderColor:      lipgloss.Color("238"),
	HelpText:         lipgloss.Color("243"),
	ErrorText:        lipgloss.Color("167"),

	LinkForeground: lipgloss.Color("109"),

	MatchBackground: lipgloss.Color("58"),
}
