package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/webbboot/companion/pkg/progress"
)

var (
	primaryColor = lipgloss.Color("#7aa2f7")
	successColor = lipgloss.Color("#9ece6a")
	errorColor   = lipgloss.Color("#f7768e")
	warningColor = lipgloss.Color("#e0af68")
	dimColor     = lipgloss.Color("#565f89")

	headerStyle  = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	dimStyle     = lipgloss.NewStyle().Foreground(dimColor)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "complete":
		return successStyle
	case "failed":
		return errorStyle
	default:
		return warningStyle
	}
}

// formatBytes renders a byte count the way drive sizes are usually quoted.
func formatBytes(n uint64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}

// progressLine renders one progress event for the terminal.
func progressLine(ev progress.Event) string {
	pct := fmt.Sprintf("[%3d%%]", ev.Progress)
	switch {
	case ev.Progress == progress.Failed:
		return errorStyle.Render(pct) + " " + ev.Status
	case ev.Progress == progress.Complete:
		return successStyle.Render(pct) + " " + ev.Status
	default:
		return headerStyle.Render(pct) + " " + ev.Status + dimStyle.Render(" ("+ev.Operation+")")
	}
}
