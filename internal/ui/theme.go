package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the console colors
type Theme struct {
	accent lipgloss.Color
	muted  lipgloss.Color
	fg     lipgloss.Color
	warn   lipgloss.Color
	active lipgloss.Color
}

// DefaultTheme is a dark-terminal palette
func DefaultTheme() *Theme {
	return &Theme{
		accent: lipgloss.Color("#F5A623"),
		muted:  lipgloss.Color("#6C6C6C"),
		fg:     lipgloss.Color("#E4E4E4"),
		warn:   lipgloss.Color("#FF5F5F"),
		active: lipgloss.Color("#5FD7AF"),
	}
}

func (t *Theme) Accent() lipgloss.Color { return t.accent }
func (t *Theme) Muted() lipgloss.Color  { return t.muted }
func (t *Theme) FG() lipgloss.Color     { return t.fg }
func (t *Theme) Warn() lipgloss.Color   { return t.warn }
func (t *Theme) Active() lipgloss.Color { return t.active }

type styles struct {
	header lipgloss.Style
	dim    lipgloss.Style
	label  lipgloss.Style
	active lipgloss.Style
	muted  lipgloss.Style
	warn   lipgloss.Style
	zone   lipgloss.Style
}

func newStyles(t *Theme) styles {
	return styles{
		header: lipgloss.NewStyle().Foreground(t.Accent()).Bold(true),
		dim:    lipgloss.NewStyle().Foreground(t.Muted()),
		label:  lipgloss.NewStyle().Foreground(t.FG()),
		active: lipgloss.NewStyle().Foreground(t.Active()).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(t.Muted()).Strikethrough(true),
		warn:   lipgloss.NewStyle().Foreground(t.Warn()),
		zone: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(t.Muted()),
	}
}
