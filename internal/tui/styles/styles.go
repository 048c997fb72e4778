package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/result"
	"github.com/skillcheck-dev/skillcheck/internal/theme"
)

// Styles contains all the lipgloss styles built from a palette. A new value
// is built whenever the theme changes.
type Styles struct {
	Palette *Palette
	Theme   theme.Preference

	// Convenience styles for colors
	Primary   lipgloss.Style
	Secondary lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Text      lipgloss.Style

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Header   lipgloss.Style

	// Help bar
	HelpBar lipgloss.Style
	HelpKey lipgloss.Style

	ContentBox lipgloss.Style

	// List rows
	Item       lipgloss.Style
	ItemActive lipgloss.Style

	// Form fields
	Label        lipgloss.Style
	LabelFocused lipgloss.Style

	// Banners
	ErrorBanner   lipgloss.Style
	NoticeBanner  lipgloss.Style
	WarningBanner lipgloss.Style

	ErrorMsg   lipgloss.Style
	SuccessMsg lipgloss.Style
	WarningMsg lipgloss.Style

	StatusBar lipgloss.Style
	Badge     lipgloss.Style
}

// New builds Styles from a palette.
func New(p *Palette, pref theme.Preference) *Styles {
	s := &Styles{Palette: p, Theme: pref}

	s.Primary = lipgloss.NewStyle().Foreground(p.Primary)
	s.Secondary = lipgloss.NewStyle().Foreground(p.Secondary)
	s.Warning = lipgloss.NewStyle().Foreground(p.Warning)
	s.Error = lipgloss.NewStyle().Foreground(p.Error)
	s.Muted = lipgloss.NewStyle().Foreground(p.Muted)
	s.Text = lipgloss.NewStyle().Foreground(p.Text)

	s.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary).
		MarginBottom(1)

	s.Subtitle = lipgloss.NewStyle().
		Foreground(p.Muted).
		Italic(true)

	s.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(p.Border).
		MarginBottom(1)

	s.HelpBar = lipgloss.NewStyle().
		Foreground(p.Muted).
		MarginTop(1)

	s.HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Secondary)

	s.ContentBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(1, 2)

	s.Item = lipgloss.NewStyle().
		Padding(0, 1)

	s.ItemActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Text).
		Background(p.Surface).
		Padding(0, 1)

	s.Label = lipgloss.NewStyle().
		Foreground(p.Muted)

	s.LabelFocused = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Primary)

	s.ErrorBanner = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Error).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(p.Error).
		PaddingLeft(1)

	s.NoticeBanner = lipgloss.NewStyle().
		Foreground(p.Secondary).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(p.Secondary).
		PaddingLeft(1)

	s.WarningBanner = lipgloss.NewStyle().
		Foreground(p.Warning).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(p.Warning).
		PaddingLeft(1)

	s.ErrorMsg = lipgloss.NewStyle().
		Foreground(p.Error).
		Bold(true)

	s.SuccessMsg = lipgloss.NewStyle().
		Foreground(p.Secondary).
		Bold(true)

	s.WarningMsg = lipgloss.NewStyle().
		Foreground(p.Warning).
		Bold(true)

	s.StatusBar = lipgloss.NewStyle().
		Foreground(p.Text).
		Background(p.Surface).
		Padding(0, 1)

	s.Badge = lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	return s
}

// For builds the Styles of a theme preference.
func For(pref theme.Preference) *Styles {
	return New(PaletteFor(pref), pref)
}

// StatusColor returns the color of an attempt status.
func (s *Styles) StatusColor(status model.Status) lipgloss.Color {
	switch status.Normalize() {
	case model.StatusInProgress:
		return s.Palette.StatusInProgress
	case model.StatusPassed:
		return s.Palette.StatusPassed
	case model.StatusFailed:
		return s.Palette.StatusFailed
	default:
		return s.Palette.StatusNotStarted
	}
}

// Status renders a colored status label.
func (s *Styles) Status(status model.Status) string {
	return lipgloss.NewStyle().Foreground(s.StatusColor(status)).Render(status.Label())
}

// BandColor returns the color of a score band.
func (s *Styles) BandColor(b result.Band) lipgloss.Color {
	switch b {
	case result.BandGood:
		return s.Palette.BandGood
	case result.BandFair:
		return s.Palette.BandFair
	default:
		return s.Palette.BandPoor
	}
}

// Bar renders a horizontal score bar width cells wide, filled to percent
// in the band's color.
func (s *Styles) Bar(percent, width int) string {
	if width <= 0 {
		return ""
	}
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	fill := lipgloss.NewStyle().Foreground(s.BandColor(result.BandFor(percent)))
	empty := lipgloss.NewStyle().Foreground(s.Palette.Border)
	return fill.Render(strings.Repeat("█", filled)) + empty.Render(strings.Repeat("░", width-filled))
}
