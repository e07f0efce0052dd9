package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = Palette{
	title: lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).MarginBottom(1),
	ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
	err:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
	help:  lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true),
}

// Palette holds the styles the views render with.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// marker is the glyph shown before a stream in the given cache state, empty when not cached.
func (p Palette) marker(state string) string {
	switch state {
	case "", "not cached":
		return ""
	case "cached":
		return p.ok.Render("●")
	case "interrupted":
		return p.err.Render("○")
	default:
		return p.warn.Render("◐")
	}
}

func (p Palette) checkbox(selected bool) string {
	if selected {
		return p.ok.Render("[x]")
	}
	return "[ ]"
}
