package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/result"
	"github.com/skillcheck-dev/skillcheck/internal/util"
)

// chromeHeight is the number of lines the root model draws around a screen.
const chromeHeight = 9

type resultLoadedMsg struct {
	report *result.Report
	err    error
}

type pdfExportedMsg struct {
	path string
	err  error
}

type resultsScreen struct {
	base
	id          int
	report      *result.Report
	showDetails bool
	vp          viewport.Model
	keys        resultsKeys
}

type resultsKeys struct {
	Details key.Binding
	Retake  key.Binding
	List    key.Binding
	Export  key.Binding
	Scroll  key.Binding
}

func newResultsScreen(e *env, id int) *resultsScreen {
	vp := viewport.New(max(20, e.width-4), max(5, e.height-chromeHeight))
	vp.KeyMap = viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		Up:           key.NewBinding(key.WithKeys("up", "k")),
		Down:         key.NewBinding(key.WithKeys("down", "j")),
	}
	return &resultsScreen{
		base: base{env: e},
		id:   id,
		vp:   vp,
		keys: resultsKeys{
			Details: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "details")),
			Retake:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retake")),
			List:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "assessments")),
			Export:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "export pdf")),
			Scroll:  key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
		},
	}
}

func (s *resultsScreen) Title() string {
	if s.report != nil {
		return s.report.Title() + " results"
	}
	return "Results"
}

func (s *resultsScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Scroll, s.keys.Details, s.keys.Retake, s.keys.List, s.keys.Export}
}

func (s *resultsScreen) Init() tea.Cmd {
	s.busy = true
	id := s.id
	return s.call(func(ctx context.Context) tea.Msg {
		r, err := result.Load(ctx, s.env.api, id)
		return resultLoadedMsg{report: r, err: err}
	})
}

func (s *resultsScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case resultLoadedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.report = msg.report
		s.refresh()
		return s, nil

	case pdfExportedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		return s, notify("Saved " + msg.path)

	case tea.WindowSizeMsg:
		s.vp.Width = max(20, msg.Width-4)
		s.vp.Height = max(5, msg.Height-chromeHeight)
		s.refresh()
		return s, nil

	case tea.KeyMsg:
		if s.report == nil {
			return s, nil
		}
		switch {
		case key.Matches(msg, s.keys.Details):
			s.showDetails = !s.showDetails
			s.refresh()
			return s, nil
		case key.Matches(msg, s.keys.Retake):
			return s, navigate(s.report.RetakePath())
		case key.Matches(msg, s.keys.List):
			return s, navigate(s.report.BackPath())
		case key.Matches(msg, s.keys.Export):
			if !s.busy {
				return s, s.export()
			}
			return s, nil
		}
	}

	var cmd tea.Cmd
	s.vp, cmd = s.vp.Update(msg)
	return s, cmd
}

func (s *resultsScreen) export() tea.Cmd {
	s.busy = true
	r := s.report
	dir := s.env.exportDir
	now := s.env.now()
	return func() tea.Msg {
		path, err := exportPDF(dir, r, now)
		return pdfExportedMsg{path: path, err: err}
	}
}

func (s *resultsScreen) refresh() {
	if s.report == nil {
		return
	}
	s.vp.SetContent(renderReport(s.env, s.report, s.showDetails, s.vp.Width))
}

func (s *resultsScreen) View() string {
	if s.report == nil {
		return s.env.styles.Muted.Render("Loading results...")
	}
	return s.vp.View()
}

// renderReport lays out the score summary, the subtopic breakdown and,
// when details is set, every question with the answer given.
func renderReport(e *env, r *result.Report, details bool, width int) string {
	st := e.styles
	var b strings.Builder

	bg := st.Palette.StatusFailed
	if r.Passed() {
		bg = st.Palette.StatusPassed
	}
	b.WriteString(st.Badge.Foreground(lipgloss.Color("#FFFFFF")).Background(bg).Render(strings.ToUpper(r.Status())))
	b.WriteString("\n\n")

	band := lipgloss.NewStyle().Bold(true).Foreground(st.BandColor(r.Band()))
	b.WriteString(band.Render(fmt.Sprintf("%d%%", r.Percent())))
	b.WriteString(st.Text.Render(fmt.Sprintf("  %d of %d correct", r.Correct(), r.Total())))
	b.WriteString("\n")
	b.WriteString(st.Bar(r.Percent(), min(40, max(10, width-2))))
	b.WriteString("\n\n")

	b.WriteString(st.Label.Render(fmt.Sprintf("%-14s", "Passing score")))
	b.WriteString(st.Text.Render(fmt.Sprintf("%d%%", r.Result.PassingScore)))
	b.WriteString("\n")
	if r.Result.TimeTaken > 0 {
		b.WriteString(st.Label.Render(fmt.Sprintf("%-14s", "Time taken")))
		b.WriteString(st.Text.Render(r.Result.TimeTaken.String()))
		b.WriteString("\n")
	}

	if subs := r.Subtopics(); len(subs) > 0 {
		b.WriteString("\n")
		b.WriteString(st.Header.Render("By subtopic"))
		b.WriteString("\n")
		for _, sub := range subs {
			name := sub.Name
			if name == "" {
				name = "General"
			}
			b.WriteString(fmt.Sprintf("%-20s %s %3d%%  %d/%d\n",
				util.Truncate(name, 20), st.Bar(sub.Percent(), 20), sub.Percent(), sub.Correct, sub.Total))
		}
	}

	if !details {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render("Press d to show every question."))
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(st.Header.Render("Questions"))
	b.WriteString("\n")
	wrap := lipgloss.NewStyle().Width(max(20, width-4))
	for _, d := range r.Details() {
		mark := st.SuccessMsg.Render("✓")
		if !d.Correct {
			mark = st.ErrorMsg.Render("✗")
		}
		b.WriteString(fmt.Sprintf("%s %d. ", mark, d.Number))
		b.WriteString(wrap.Render(d.Question))
		b.WriteString("\n")
		selected := d.Selected
		if selected == "" {
			selected = "(no answer)"
		}
		b.WriteString(st.Muted.Render("   Your answer: "))
		b.WriteString(st.Text.Render(selected))
		b.WriteString(st.Muted.Render(fmt.Sprintf("  (%d/%d pts)", d.EarnedPoints, d.Points)))
		b.WriteString("\n")
		if d.CorrectText != "" {
			b.WriteString(st.Muted.Render("   Correct answer: "))
			b.WriteString(st.SuccessMsg.Render(d.CorrectText))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// exportPDF writes the report into dir, naming the file after the
// assessment, and returns its path.
func exportPDF(dir string, r *result.Report, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create export directory")
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-results-%s.pdf", util.Slug(r.Title(), "assessment"), now.Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to create pdf")
	}
	if err := result.WritePDF(f, r, now); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "failed to write pdf")
	}
	return path, nil
}
