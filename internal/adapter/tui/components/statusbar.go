// Package components holds reusable pieces of the status widget.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hotpatch/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "r"
	Desc string // e.g. "reconnect"
}

// StatusBarModel renders a bottom line with keybinding hints and the
// target being watched.
type StatusBarModel struct {
	Hints  []KeyHint
	Target string
	Mode   string
	width  int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var parts []string
	if m.Target != "" {
		parts = append(parts, m.Target)
	}
	if m.Mode != "" {
		parts = append(parts, m.Mode)
	}
	right := theme.TextMuted.Render(strings.Join(parts, " "+theme.SymbolBullet+" "))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	if m.width <= 0 {
		return theme.StatusBar.Render(bar)
	}
	return theme.StatusBar.Width(m.width).Render(bar)
}
