package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
)

// viewportSurface paints the selected lines into a viewport.
type viewportSurface struct {
	view   *viewport.Model
	styles Styles
	// clamped is set when new content pulled the offset back; the model reports the new
	// position to the session after the current update.
	clamped bool
}

func (s *viewportSurface) Replace(lines []string) {
	styled := make([]string, len(lines))
	for i, line := range lines {
		styled[i] = s.styles.line(line)
	}

	previous := s.view.YOffset

	s.view.SetContent(strings.Join(styled, "\n"))

	maxOffset := max(s.view.TotalLineCount()-s.view.Height, 0)
	if s.view.YOffset > maxOffset {
		s.view.SetYOffset(maxOffset)
	}

	if s.view.YOffset < previous {
		s.clamped = true
	}
}

func (s *viewportSurface) ScrollToBottom() {
	s.view.GotoBottom()
}

// takeClamped reports and clears the clamped flag.
func (s *viewportSurface) takeClamped() bool {
	clamped := s.clamped
	s.clamped = false

	return clamped
}
