package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/git2doc/internal/api"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	greenColor   = lipgloss.Color("#10B981") // Green
	amberColor   = lipgloss.Color("#F59E0B") // Amber
	redColor     = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	textColor    = lipgloss.Color("#F9FAFB") // Light text

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle = lipgloss.NewStyle().Foreground(redColor)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor).
			Background(lipgloss.Color("#1F2937"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(mutedColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// statusStyle colors a job status the same way across the dashboard.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case api.StatusCompleted:
		return lipgloss.NewStyle().Foreground(greenColor)
	case api.StatusProcessing:
		return lipgloss.NewStyle().Foreground(amberColor)
	case api.StatusFailed:
		return lipgloss.NewStyle().Foreground(redColor)
	default:
		return mutedStyle
	}
}
