package tui

import (
	"github.com/book-expert/tts-console/internal/markup"
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the console's lipgloss styles.
type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Help    lipgloss.Style
	Field   lipgloss.Style
	Focused lipgloss.Style
	Classes map[markup.Class]lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#11a8cd")),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		Field:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#444444")),
		Focused: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#11a8cd")),
		Classes: map[markup.Class]lipgloss.Style{
			markup.ClassDebug:    lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
			markup.ClassInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#d4d4d4")),
			markup.ClassWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e510")),
			markup.ClassError:    lipgloss.NewStyle().Foreground(lipgloss.Color("#f14c4c")),
			markup.ClassCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#cd3131")),
		},
	}
}

// line styles a display line that carries no color codes of its own by its severity class.
func (s Styles) line(rendered string) string {
	if markup.HasStyle(rendered) {
		return rendered
	}

	style, ok := s.Classes[markup.ClassOf(rendered)]
	if !ok {
		return rendered
	}

	return style.Render(rendered)
}
