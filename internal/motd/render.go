package motd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ANSI renders the text for a terminal. Colours degrade to whatever the
// output profile supports.
func (t Text) ANSI() string {
	var b strings.Builder

	for _, seg := range t {
		style := lipgloss.NewStyle().
			Bold(seg.Bold).
			Italic(seg.Italic).
			Underline(seg.Underlined).
			Strikethrough(seg.Strikethrough)
		if hex := seg.Color.Hex(); hex != "" {
			style = style.Foreground(lipgloss.Color(hex))
		}

		// lipgloss pads multi-line blocks, so lines are rendered one at a time
		for i, line := range strings.Split(seg.Text, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}

	return b.String()
}
