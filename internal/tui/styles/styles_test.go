package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/result"
	"github.com/skillcheck-dev/skillcheck/internal/theme"
)

func TestPaletteFor(t *testing.T) {
	if PaletteFor(theme.Dark).Text == PaletteFor(theme.Light).Text {
		t.Error("dark and light palettes should use different text colors")
	}
	if got := For(theme.Light).Theme; got != theme.Light {
		t.Errorf("For(light).Theme = %q", got)
	}
}

func TestStatusColor(t *testing.T) {
	s := For(theme.Dark)
	p := s.Palette

	tests := []struct {
		status model.Status
		want   string
	}{
		{model.StatusPassed, string(p.StatusPassed)},
		{"FAILED", string(p.StatusFailed)},
		{"in progress", string(p.StatusInProgress)},
		{model.StatusNotStarted, string(p.StatusNotStarted)},
		{"", string(p.StatusNotStarted)},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := string(s.StatusColor(tt.status)); got != tt.want {
				t.Errorf("StatusColor(%q) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestBandColor(t *testing.T) {
	s := For(theme.Light)
	if s.BandColor(result.BandGood) != s.Palette.BandGood ||
		s.BandColor(result.BandFair) != s.Palette.BandFair ||
		s.BandColor(result.BandPoor) != s.Palette.BandPoor {
		t.Error("band colors do not follow the palette")
	}
}

func TestBar(t *testing.T) {
	s := For(theme.Dark)

	tests := []struct {
		percent, width int
		filled         int
	}{
		{0, 10, 0},
		{50, 10, 5},
		{100, 10, 10},
		{150, 10, 10},
		{-5, 10, 0},
	}
	for _, tt := range tests {
		bar := ansi.Strip(s.Bar(tt.percent, tt.width))
		if n := strings.Count(bar, "█"); n != tt.filled {
			t.Errorf("Bar(%d, %d) filled = %d, want %d", tt.percent, tt.width, n, tt.filled)
		}
		if w := ansi.StringWidth(bar); w != tt.width {
			t.Errorf("Bar(%d, %d) width = %d", tt.percent, tt.width, w)
		}
	}
	if s.Bar(50, 0) != "" {
		t.Error("zero-width bar should be empty")
	}
}
