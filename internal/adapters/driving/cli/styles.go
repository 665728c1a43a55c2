package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette used by styled command output.
var (
	colourPrimary = lipgloss.Color("#7C3AED") // Purple
	colourAccent  = lipgloss.Color("#06B6D4") // Cyan
	colourMuted   = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess = lipgloss.Color("#A6E3A1") // Green
	colourBorder  = lipgloss.Color("#45475A") // Border gray
)

// outputStyles holds the lipgloss styles for report-like commands.
// lipgloss drops colour on its own when stdout is not a terminal.
type outputStyles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Bar     lipgloss.Style
	Section lipgloss.Style
}

func newOutputStyles() outputStyles {
	return outputStyles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colourPrimary).
			MarginBottom(1),
		Label: lipgloss.NewStyle().
			Width(16).
			Foreground(colourMuted),
		Value: lipgloss.NewStyle().
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(colourMuted),
		Bar: lipgloss.NewStyle().
			Foreground(colourAccent),
		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(colourSuccess).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colourBorder),
	}
}
