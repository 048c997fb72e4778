package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/util"
)

// -----------------------------------------------------------------------------
// Assessment list
// -----------------------------------------------------------------------------

type listLoadedMsg struct {
	listing *flow.Listing
	err     error
}

type listScreen struct {
	base
	listing   *flow.Listing
	cursor    int
	filter    textinput.Model
	filtering bool
	keys      listKeys
}

type listKeys struct {
	cursorKeys
	Filter  key.Binding
	Details key.Binding
	Apply   key.Binding
}

func newListScreen(e *env) *listScreen {
	fi := textinput.New()
	fi.Prompt = "/ "
	fi.Placeholder = "title or glob, e.g. go*"
	fi.CharLimit = 64
	return &listScreen{
		base:   base{env: e},
		filter: fi,
		keys: listKeys{
			cursorKeys: newCursorKeys(),
			Filter:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
			Details:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "details")),
			Apply:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply filter")),
		},
	}
}

func (s *listScreen) Init() tea.Cmd   { return s.load() }
func (s *listScreen) Title() string   { return "Assessments" }
func (s *listScreen) Capturing() bool { return s.filtering }

func (s *listScreen) Keys() []key.Binding {
	if s.filtering {
		return []key.Binding{s.keys.Apply}
	}
	return []key.Binding{s.keys.Up, s.keys.Down, s.keys.Select, s.keys.Details, s.keys.Filter, s.keys.Refresh}
}

func (s *listScreen) load() tea.Cmd {
	s.busy = true
	filter := s.filter.Value()
	return s.call(func(ctx context.Context) tea.Msg {
		l, err := s.env.browser.List(ctx, filter)
		return listLoadedMsg{listing: l, err: err}
	})
}

func (s *listScreen) entries() []flow.Entry {
	if s.listing == nil {
		return nil
	}
	return s.listing.Entries
}

func (s *listScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case listLoadedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.listing = msg.listing
		s.cursor = min(s.cursor, max(0, len(s.listing.Entries)-1))
		return s, nil

	case tea.KeyMsg:
		if s.filtering {
			if key.Matches(msg, s.keys.Apply) {
				s.filtering = false
				s.filter.Blur()
				s.cursor = 0
				return s, s.load()
			}
			var cmd tea.Cmd
			s.filter, cmd = s.filter.Update(msg)
			return s, cmd
		}

		entries := s.entries()
		if s.keys.move(msg, &s.cursor, len(entries)) {
			return s, nil
		}
		switch {
		case key.Matches(msg, s.keys.Filter):
			s.filtering = true
			return s, s.filter.Focus()
		case key.Matches(msg, s.keys.Refresh):
			if !s.busy {
				return s, s.load()
			}
		case key.Matches(msg, s.keys.Select):
			if s.cursor < len(entries) {
				return s, navigate(entries[s.cursor].Target())
			}
		case key.Matches(msg, s.keys.Details):
			if s.cursor < len(entries) {
				return s, navigate(detailPath(entries[s.cursor].Assessment.ID))
			}
		}
	}
	return s, nil
}

func (s *listScreen) View() string {
	st := s.env.styles
	var b strings.Builder

	if s.filtering || s.filter.Value() != "" {
		b.WriteString(s.filter.View())
		b.WriteString("\n\n")
	}
	if s.listing == nil {
		b.WriteString(st.Muted.Render("Loading assessments..."))
		return b.String()
	}
	if s.listing.Sample {
		b.WriteString(st.WarningBanner.Render(flow.SampleNotice))
		b.WriteString("\n\n")
	}
	if len(s.listing.Entries) == 0 {
		if s.filter.Value() != "" {
			b.WriteString(st.Muted.Render("No assessments match the filter."))
		} else {
			b.WriteString(st.Muted.Render("No assessments are available yet."))
		}
		return b.String()
	}

	for i, e := range s.listing.Entries {
		a := e.Assessment
		status := model.StatusNotStarted
		if e.Attempt != nil {
			status = e.Attempt.Status
		}
		row := fmt.Sprintf("%-30s %-10s %4d min  pass %3d%%  %s %s",
			util.Truncate(a.Title, 30),
			util.Truncate(a.LanguageName, 10),
			a.DurationMinutes,
			a.PassingScore,
			pad(st.Status(status), 12),
			st.Primary.Render(string(e.Action)),
		)
		if i == s.cursor {
			b.WriteString(st.ItemActive.Render(row))
		} else {
			b.WriteString(st.Item.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// -----------------------------------------------------------------------------
// Assessment detail
// -----------------------------------------------------------------------------

type detailLoadedMsg struct {
	entry *flow.Entry
	err   error
}

type detailScreen struct {
	base
	id    int
	entry *flow.Entry
	keys  detailKeys
}

type detailKeys struct {
	Open key.Binding
	List key.Binding
}

func newDetailScreen(e *env, id int) *detailScreen {
	return &detailScreen{
		base: base{env: e},
		id:   id,
		keys: detailKeys{
			Open: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "go")),
			List: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "all assessments")),
		},
	}
}

func (s *detailScreen) Title() string { return "Assessment" }

func (s *detailScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Open, s.keys.List}
}

func (s *detailScreen) Init() tea.Cmd {
	s.busy = true
	id := s.id
	return s.call(func(ctx context.Context) tea.Msg {
		a, err := s.env.api.GetAssessment(ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		attempts, err := s.env.api.ListUserAssessments(ctx)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		attempt := flow.FindAttempt(attempts, id)
		return detailLoadedMsg{entry: &flow.Entry{Assessment: *a, Attempt: attempt, Action: flow.ActionFor(attempt)}}
	})
}

func (s *detailScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case detailLoadedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.entry = msg.entry
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.Open):
			if s.entry != nil {
				return s, navigate(s.entry.Target())
			}
		case key.Matches(msg, s.keys.List):
			return s, navigate(route.PathAssessments)
		}
	}
	return s, nil
}

func (s *detailScreen) View() string {
	st := s.env.styles
	if s.entry == nil {
		return st.Muted.Render("Loading assessment...")
	}
	a := s.entry.Assessment

	var b strings.Builder
	b.WriteString(st.Title.Render(a.Title))
	b.WriteString("\n")
	if a.Description != "" {
		b.WriteString(st.Text.Render(a.Description))
		b.WriteString("\n\n")
	}
	rows := [][2]string{
		{"Language", a.LanguageName},
		{"Questions", fmt.Sprint(len(a.Questions))},
		{"Duration", fmt.Sprintf("%d minutes", a.DurationMinutes)},
		{"Passing score", fmt.Sprintf("%d%%", a.PassingScore)},
	}
	status := model.StatusNotStarted
	if at := s.entry.Attempt; at != nil {
		status = at.Status
		if at.Score != nil {
			rows = append(rows, [2]string{"Your score", fmt.Sprintf("%.0f%%", *at.Score)})
		}
	}
	for _, r := range rows {
		b.WriteString(st.Label.Render(fmt.Sprintf("%-14s", r[0])))
		b.WriteString(st.Text.Render(r[1]))
		b.WriteString("\n")
	}
	b.WriteString(st.Label.Render(fmt.Sprintf("%-14s", "Status")))
	b.WriteString(st.Status(status))
	b.WriteString("\n\n")
	b.WriteString(st.Primary.Render(fmt.Sprintf("Press enter to %s.", strings.ToLower(string(s.entry.Action)))))
	return b.String()
}
