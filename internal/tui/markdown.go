// Package tui holds the terminal rendering components used by the local
// editor host: the comparison (diff) view, the quick-pick, and the markdown
// renderer for chat responses.
package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders chat responses with glamour.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer for the given terminal width.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{renderer: r}
}

// Render renders markdown to ANSI. Falls back to the raw text when glamour is
// unavailable or fails.
func (m *MarkdownRenderer) Render(markdown string) string {
	if m.renderer == nil {
		return markdown
	}
	out, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n") + "\n"
}
