package ui

import "github.com/charmbracelet/lipgloss"

// Color palette for the watch screen
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - live servers
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Shared styles for the watch screen
var (
	// TitleStyle is for the screen header
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Bold(true).
			Padding(0, 1)

	// SubtitleStyle is for secondary header lines
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// UUIDStyle is for server identities
	UUIDStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	// NicknameStyle is for user-assigned server names
	NicknameStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Italic(true)

	// URLStyle is for server URLs
	URLStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// IPVerStyle is for the IP version tag next to each URL
	IPVerStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// WarnStyle is for the "no servers" notice
	WarnStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// CardStyle frames one server entry
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 2).
			MarginLeft(2)
)
