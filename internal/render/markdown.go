package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders markdown through glamour. It keeps one renderer per width.
type Markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer. style "auto" picks light or dark from the
// terminal; any other value names a glamour standard style such as "dark" or
// "notty".
func NewMarkdown(style string, width int) (*Markdown, error) {
	m := &Markdown{style: style}
	if err := m.SetWidth(width); err != nil {
		return nil, err
	}
	return m, nil
}

// SetWidth rebuilds the renderer for a new word-wrap width.
func (m *Markdown) SetWidth(width int) error {
	if width == m.width && m.renderer != nil {
		return nil
	}
	if width < 20 {
		width = 20
	}

	styleOpt := glamour.WithStandardStyle(m.style)
	if m.style == "" || m.style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	m.renderer = r
	m.width = width
	return nil
}

// Render renders text, falling back to the raw text if glamour fails.
func (m *Markdown) Render(text string) string {
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
