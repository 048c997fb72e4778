package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/util"
)

type dashboardLoadedMsg struct {
	stats  *model.DashboardStats
	sample bool
	err    error
}

// dashboardScreen is the user dashboard: attempt counts per status and the
// most recent attempts.
type dashboardScreen struct {
	base
	stats  *model.DashboardStats
	sample bool
	err    error
	cursor int
	keys   dashboardKeys
}

type dashboardKeys struct {
	cursorKeys
	Browse key.Binding
}

func newDashboardScreen(e *env) *dashboardScreen {
	return &dashboardScreen{
		base: base{env: e},
		keys: dashboardKeys{
			cursorKeys: newCursorKeys(),
			Browse:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "browse assessments")),
		},
	}
}

func (s *dashboardScreen) Init() tea.Cmd { return s.load() }
func (s *dashboardScreen) Title() string { return "Dashboard" }

func (s *dashboardScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Up, s.keys.Down, s.keys.Select, s.keys.Browse, s.keys.Refresh}
}

func (s *dashboardScreen) load() tea.Cmd {
	s.busy = true
	return s.call(func(ctx context.Context) tea.Msg {
		stats, sample, err := s.env.browser.Dashboard(ctx)
		return dashboardLoadedMsg{stats: stats, sample: sample, err: err}
	})
}

func (s *dashboardScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardLoadedMsg:
		s.busy = false
		s.err = msg.err
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.stats, s.sample = msg.stats, msg.sample
		s.cursor = 0
		return s, nil

	case tea.KeyMsg:
		var recent []model.RecentAssessment
		if s.stats != nil {
			recent = s.stats.RecentAssessments
		}
		if s.keys.move(msg, &s.cursor, len(recent)) {
			return s, nil
		}
		switch {
		case key.Matches(msg, s.keys.Browse):
			return s, navigate(route.PathAssessments)
		case key.Matches(msg, s.keys.Refresh):
			if !s.busy {
				return s, s.load()
			}
		case key.Matches(msg, s.keys.Select):
			if s.cursor < len(recent) {
				return s, navigate(detailPath(recent[s.cursor].ID))
			}
		}
	}
	return s, nil
}

func (s *dashboardScreen) View() string {
	st := s.env.styles
	if s.stats == nil {
		if s.err != nil {
			return st.Muted.Render("Dashboard unavailable. Press r to retry.")
		}
		return st.Muted.Render("Loading dashboard...")
	}

	var b strings.Builder
	if u := s.env.user(); u != nil {
		b.WriteString(st.Text.Render("Welcome, " + u.DisplayName()))
		b.WriteString("\n\n")
	}
	if s.sample {
		b.WriteString(st.WarningBanner.Render(flow.SampleNotice))
		b.WriteString("\n\n")
	}

	c := s.stats.Stats
	cards := []string{
		s.card("Completed", c.CompletedAssessments, st.Palette.StatusPassed),
		s.card("In progress", c.InProgressAssessments, st.Palette.StatusInProgress),
		s.card("Not started", c.NotStartedAssessments, st.Palette.StatusNotStarted),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n\n")

	b.WriteString(st.Header.Render("Recent assessments"))
	b.WriteString("\n")
	if len(s.stats.RecentAssessments) == 0 {
		b.WriteString(st.Muted.Render("No attempts yet. Press a to browse assessments."))
		return b.String()
	}
	for i, ra := range s.stats.RecentAssessments {
		score := "-"
		if ra.Score != nil {
			score = fmt.Sprintf("%.0f%%", *ra.Score)
		}
		row := fmt.Sprintf("%-32s %s %6s  %s", util.Truncate(ra.Title, 32), pad(st.Status(ra.Status), 12), score, ra.Date)
		if i == s.cursor {
			b.WriteString(st.ItemActive.Render(row))
		} else {
			b.WriteString(st.Item.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *dashboardScreen) card(label string, n int, color lipgloss.Color) string {
	st := s.env.styles
	body := lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprint(n)) + "\n" + st.Muted.Render(label)
	return st.ContentBox.Width(18).MarginRight(1).Render(body)
}

// pad right-pads a possibly styled string to w cells.
func pad(s string, w int) string {
	return lipgloss.NewStyle().Width(w).Render(s)
}

func detailPath(assessmentID int) string {
	return fmt.Sprintf("/assessments/%d", assessmentID)
}
