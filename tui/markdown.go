// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// The goldmark parser never changes configuration and is safe to
// share; parsing allocates its own per-call state.
var (
	messageParser     goldmark.Markdown
	messageParserOnce sync.Once
)

func getMessageParser() goldmark.Markdown {
	messageParserOnce.Do(func() {
		messageParser = goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		)
	})
	return messageParser
}

// renderMessageMarkdown renders a message body as styled terminal
// text at the given width. Message markdown is deliberately narrower
// than document markdown: paragraphs, emphasis, code, quotes, lists,
// and links. Soft line breaks become spaces so hard-wrapped text
// reflows at any pane width.
func renderMessageMarkdown(input string, theme Theme, width int) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := getMessageParser().Parser().Parse(text.NewReader(source))

	// Force an ANSI256 profile: the output always targets the
	// bubbletea screen, and auto-detection yields uncolored output
	// under tests with no TTY.
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &messageRenderer{
		source:      source,
		theme:       theme,
		width:       width,
		lipRenderer: lipRenderer,
	}
	ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

// messageRenderer walks the goldmark AST directly: paragraph inline
// content accumulates in a buffer and word-wraps as a unit when the
// paragraph closes, which goldmark's streaming renderer callbacks
// don't accommodate.
type messageRenderer struct {
	source []byte
	theme  Theme
	width  int

	output strings.Builder
	inline strings.Builder

	// Prefix applied to every emitted line (blockquote bars, list
	// indents). bullet, when set, replaces it for the next line only.
	prefix      string
	prefixWidth int
	bullet      string

	bold   int
	italic int
	strike int

	listCounters []int // 0 for unordered lists

	lipRenderer *lipgloss.Renderer
}

func (r *messageRenderer) style() lipgloss.Style {
	return r.lipRenderer.NewStyle()
}

func (r *messageRenderer) contentWidth() int {
	width := r.width - r.prefixWidth
	if width < 8 {
		width = 8
	}
	return width
}

func (r *messageRenderer) styledText(content string) string {
	style := r.style().Foreground(r.theme.NormalText)
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italic > 0 {
		style = style.Italic(true)
	}
	if r.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

// emitLines writes content line by line with the current prefix, the
// pending bullet consuming the first line.
func (r *messageRenderer) emitLines(content string) {
	for _, line := range strings.Split(content, "\n") {
		if r.bullet != "" {
			r.output.WriteString(r.bullet)
			r.bullet = ""
		} else {
			r.output.WriteString(r.prefix)
		}
		r.output.WriteString(line)
		r.output.WriteString("\n")
	}
}

func (r *messageRenderer) flushParagraph() {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return
	}
	r.emitLines(ansi.Wrap(content, r.contentWidth(), " ,.;-"))
}

func (r *messageRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindDocument:

	case ast.KindParagraph, ast.KindTextBlock, ast.KindHeading:
		// Headings render as plain paragraphs: chat messages have no
		// document structure worth a hierarchy.
		if entering {
			r.inline.Reset()
		} else {
			r.flushParagraph()
			if len(r.listCounters) == 0 {
				r.output.WriteString("\n")
			}
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			r.inline.WriteString(r.styledText(string(textNode.Segment.Value(r.source))))
			if textNode.SoftLineBreak() {
				r.inline.WriteString(" ")
			}
			if textNode.HardLineBreak() {
				r.inline.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styledText(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		emphasis := node.(*ast.Emphasis)
		delta := 1
		if !entering {
			delta = -1
		}
		if emphasis.Level >= 2 {
			r.bold += delta
		} else {
			r.italic += delta
		}

	case extast.KindStrikethrough:
		if entering {
			r.strike++
		} else {
			r.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			r.renderCodeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindFencedCodeBlock:
		if entering {
			r.renderCodeBlock(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			block := node.(*ast.CodeBlock)
			r.emitCode(r.blockText(block.Lines()), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			bar := r.style().Foreground(r.theme.BorderColor).Render("│ ")
			r.prefix += bar
			r.prefixWidth += 2
		} else {
			bar := r.style().Foreground(r.theme.BorderColor).Render("│ ")
			r.prefix = strings.TrimSuffix(r.prefix, bar)
			r.prefixWidth -= 2
		}

	case ast.KindList:
		if entering {
			start := 0
			if list := node.(*ast.List); list.IsOrdered() {
				start = list.Start
			}
			r.listCounters = append(r.listCounters, start)
		} else {
			r.listCounters = r.listCounters[:len(r.listCounters)-1]
		}

	case ast.KindListItem:
		if entering {
			r.enterListItem()
		} else {
			r.prefix = strings.TrimSuffix(r.prefix, "  ")
			r.prefixWidth -= 2
		}

	case ast.KindLink:
		// Children render the link text; the destination follows it.
		if !entering {
			r.renderLinkTarget(string(node.(*ast.Link).Destination))
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(r.source))
			r.inline.WriteString(r.style().Foreground(r.theme.LinkForeground).Render(url))
		}

	case ast.KindImage:
		if entering {
			// Inline images degrade to a placeholder; actual
			// attachments arrive as typed messages, not markdown.
			faint := r.style().Foreground(r.theme.FaintText)
			r.inline.WriteString(faint.Render("[image]"))
			r.renderLinkTarget(string(node.(*ast.Image).Destination))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindThematicBreak:
		if entering {
			rule := strings.Repeat("─", r.contentWidth())
			r.emitLines(r.style().Foreground(r.theme.BorderColor).Render(rule))
		}
	}

	return ast.WalkContinue, nil
}

func (r *messageRenderer) enterListItem() {
	if len(r.listCounters) == 0 {
		return
	}
	counter := &r.listCounters[len(r.listCounters)-1]
	bullet := "- "
	if *counter > 0 {
		bullet = fmt.Sprintf("%d. ", *counter)
		*counter++
	}
	r.bullet = r.prefix + bullet
	r.prefix += "  "
	r.prefixWidth += 2
}

func (r *messageRenderer) renderCodeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch typed := child.(type) {
		case *ast.Text:
			code.Write(typed.Segment.Value(r.source))
		case *ast.String:
			code.Write(typed.Value)
		}
	}
	r.inline.WriteString(r.style().Foreground(r.theme.FaintText).Render(code.String()))
}

func (r *messageRenderer) renderCodeBlock(node *ast.FencedCodeBlock) {
	r.emitCode(r.blockText(node.Lines()), string(node.Language(r.source)))
}

func (r *messageRenderer) blockText(lines *text.Segments) string {
	var content strings.Builder
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		content.Write(segment.Value(r.source))
	}
	return content.String()
}

// emitCode highlights a code block with chroma when a language is
// named, falling back to faint plain text.
func (r *messageRenderer) emitCode(code, language string) {
	highlighted := ""
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			highlighted = buffer.String()
		}
	}
	if highlighted == "" {
		highlighted = r.style().Foreground(r.theme.FaintText).Render(code)
	}
	r.emitLines(strings.TrimRight(highlighted, "\n"))
}

// renderLinkTarget appends the destination after the already-rendered
// link text.
func (r *messageRenderer) renderLinkTarget(url string) {
	if url == "" {
		return
	}
	r.inline.WriteString(" " + r.style().Foreground(r.theme.LinkForeground).Render("("+url+")"))
}
