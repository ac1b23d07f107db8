package gallery

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor   = "#7C3AED"
	secondaryColor = "#10B981"
	dimColor       = "#6B7280"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	cardTitleStyle = lipgloss.NewStyle().Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	activeButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(secondaryColor)).
				Bold(true)

	playingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	controlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	activeSegmentStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(primaryColor))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 4)

	fullscreenCardStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color(secondaryColor)).
				Padding(2, 8)
)
