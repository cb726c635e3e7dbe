package tui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e5c07b"))

	StatusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7acc7a"))

	TabStyle       = lipgloss.NewStyle().Padding(0, 1).Faint(true)
	ActiveTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true)

	HelpStyle  = lipgloss.NewStyle().Faint(true)
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e06c75"))

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	logTimeStyle = lipgloss.NewStyle().Faint(true)
	logInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7acc7a"))
	logWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e5c07b"))
	logErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e06c75"))
)
