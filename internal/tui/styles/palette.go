package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/skillcheck-dev/skillcheck/internal/theme"
)

// Palette defines the color scheme for a theme.
// All colors should meet WCAG AA contrast requirements (4.5:1 ratio)
// against the theme's background.
type Palette struct {
	// Primary accent color (used for emphasis, active elements)
	Primary lipgloss.Color
	// Secondary accent color (used for secondary emphasis, success states)
	Secondary lipgloss.Color
	// Warning color (used for warnings, attention-needed states)
	Warning lipgloss.Color
	// Error color (used for errors, failures)
	Error lipgloss.Color
	// Muted color (used for de-emphasized text)
	Muted lipgloss.Color
	// Surface color (used for bars and highlighted rows)
	Surface lipgloss.Color
	// Text color (primary text)
	Text lipgloss.Color
	// Border color (panel borders)
	Border lipgloss.Color

	// Attempt status colors
	StatusNotStarted lipgloss.Color
	StatusInProgress lipgloss.Color
	StatusPassed     lipgloss.Color
	StatusFailed     lipgloss.Color

	// Score band colors
	BandGood lipgloss.Color
	BandFair lipgloss.Color
	BandPoor lipgloss.Color
}

// DarkPalette is the purple/green scheme for dark terminals.
func DarkPalette() *Palette {
	return &Palette{
		Primary:   lipgloss.Color("#A78BFA"), // Purple (violet-400)
		Secondary: lipgloss.Color("#10B981"), // Green
		Warning:   lipgloss.Color("#F59E0B"), // Amber
		Error:     lipgloss.Color("#F87171"), // Red (red-400)
		Muted:     lipgloss.Color("#9CA3AF"), // Gray
		Surface:   lipgloss.Color("#1F2937"), // Dark surface
		Text:      lipgloss.Color("#F9FAFB"), // Light text
		Border:    lipgloss.Color("#6B7280"), // Gray-500

		StatusNotStarted: lipgloss.Color("#9CA3AF"),
		StatusInProgress: lipgloss.Color("#60A5FA"), // Blue
		StatusPassed:     lipgloss.Color("#10B981"),
		StatusFailed:     lipgloss.Color("#F87171"),

		BandGood: lipgloss.Color("#22C55E"),
		BandFair: lipgloss.Color("#FBBF24"), // Yellow
		BandPoor: lipgloss.Color("#F87171"),
	}
}

// LightPalette is the scheme for light terminals.
func LightPalette() *Palette {
	return &Palette{
		Primary:   lipgloss.Color("#6D28D9"), // Violet-700
		Secondary: lipgloss.Color("#047857"), // Emerald-700
		Warning:   lipgloss.Color("#B45309"), // Amber-700
		Error:     lipgloss.Color("#B91C1C"), // Red-700
		Muted:     lipgloss.Color("#4B5563"), // Gray-600
		Surface:   lipgloss.Color("#E5E7EB"), // Gray-200
		Text:      lipgloss.Color("#111827"), // Gray-900
		Border:    lipgloss.Color("#9CA3AF"),

		StatusNotStarted: lipgloss.Color("#4B5563"),
		StatusInProgress: lipgloss.Color("#1D4ED8"), // Blue-700
		StatusPassed:     lipgloss.Color("#047857"),
		StatusFailed:     lipgloss.Color("#B91C1C"),

		BandGood: lipgloss.Color("#15803D"),
		BandFair: lipgloss.Color("#A16207"),
		BandPoor: lipgloss.Color("#B91C1C"),
	}
}

// PaletteFor returns the palette of a theme preference.
func PaletteFor(p theme.Preference) *Palette {
	if p.IsDark() {
		return DarkPalette()
	}
	return LightPalette()
}
