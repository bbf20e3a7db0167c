// Package tui renders the recipe full view in a terminal
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#6b7280")
	destructive = lipgloss.Color("#e53935")
	warning     = lipgloss.Color("#FFC107")
)

// Styles holds the styled components of the view
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Banner  lipgloss.Style
	Actions lipgloss.Style
	Author  lipgloss.Style
	Label   lipgloss.Style
	Prompt  lipgloss.Style
	Error   lipgloss.Style
	Footer  lipgloss.Style
}

// DefaultStyles returns the stock styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		Heading: lipgloss.NewStyle().
			Bold(true).
			MarginTop(1),
		Muted: lipgloss.NewStyle().
			Foreground(muted),
		Banner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(warning).
			Padding(0, 1),
		Actions: lipgloss.NewStyle().
			Foreground(accent),
		Author: lipgloss.NewStyle().
			Bold(true),
		Label: lipgloss.NewStyle().
			Foreground(muted),
		Prompt: lipgloss.NewStyle().
			Foreground(destructive).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(destructive),
		Footer: lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1),
	}
}
