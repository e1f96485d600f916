// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching a pattern against one text:
// a relevance score (zero means no match) and the matched character
// positions for highlight rendering.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// fuzzyMatch runs fzf's FuzzyMatchV2 against the text,
// case-insensitively. The slab is an optional allocation cache for
// repeated calls over a list; nil is fine for one-off matches.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 || text == "" {
		return FuzzyResult{}
	}

	lowered := make([]rune, len(pattern))
	for index, r := range pattern {
		lowered[index] = toLowerRune(r)
	}
	chars := util.ToChars([]byte(strings.ToLower(text)))

	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}
	matched := FuzzyResult{Score: result.Score}
	if positions != nil {
		matched.Positions = *positions
	}
	return matched
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
