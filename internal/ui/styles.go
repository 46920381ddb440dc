package ui

import "github.com/charmbracelet/lipgloss"

const (
	accent     = lipgloss.Color("#2EC4B6")
	accentSoft = lipgloss.Color("#8DE4DB")
	muted      = lipgloss.Color("#6B7280")
	plain      = lipgloss.Color("#FFFFFF")
	danger     = lipgloss.Color("#FF4757")
	caution    = lipgloss.Color("#FFB84D")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginTop(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(muted).
			MarginBottom(1)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(plain)

	CheckedStyle = lipgloss.NewStyle().
			Foreground(accentSoft).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(muted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(caution)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(accentSoft).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)

	previewHeaderStyle = lipgloss.NewStyle().
				Foreground(accent).
				Bold(true).
				Padding(0, 1)

	previewCellStyle = lipgloss.NewStyle().
				Padding(0, 1)
)
