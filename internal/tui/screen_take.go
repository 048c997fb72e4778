package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillcheck-dev/skillcheck/internal/flow"
)

type takeOpenedMsg struct {
	session *flow.Session
	err     error
}

type takeSubmittedMsg struct {
	path string
	err  error
}

// takeTickMsg refreshes the elapsed time. id ties the tick to the screen
// that scheduled it so an abandoned screen's ticks stop.
type takeTickMsg struct {
	id int
}

var takeTickSeq int

// takeScreen presents one question at a time and submits the collected
// answers at the end.
type takeScreen struct {
	base
	id      int
	tick    int
	session *flow.Session

	question int
	choice   int
	// confirm is set after a first submit press with unanswered questions.
	confirm bool

	keys takeKeys
}

type takeKeys struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
}

func newTakeScreen(e *env, id int) *takeScreen {
	takeTickSeq++
	return &takeScreen{
		base: base{env: e},
		id:   id,
		tick: takeTickSeq,
		keys: takeKeys{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "choice")),
			Down:   key.NewBinding(key.WithKeys("down", "j")),
			Choose: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "select")),
			Next:   key.NewBinding(key.WithKeys("n", "right", "l"), key.WithHelp("n/→", "next")),
			Prev:   key.NewBinding(key.WithKeys("p", "left", "h"), key.WithHelp("p/←", "previous")),
			Submit: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
		},
	}
}

func (s *takeScreen) Title() string {
	if s.session != nil {
		return s.session.Assessment().Title
	}
	return "Assessment"
}

func (s *takeScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Up, s.keys.Choose, s.keys.Next, s.keys.Prev, s.keys.Submit}
}

func (s *takeScreen) Init() tea.Cmd {
	s.busy = true
	id := s.id
	opts := []flow.SessionOption{
		flow.WithSessionClock(s.env.now),
		flow.WithSessionLogger(s.env.logger),
	}
	return s.call(func(ctx context.Context) tea.Msg {
		sess, err := flow.Open(ctx, s.env.api, id, opts...)
		if err != nil {
			return takeOpenedMsg{err: err}
		}
		// Register the attempt now so the backend measures time from here.
		if _, err := s.env.browser.Start(ctx, id); err != nil {
			return takeOpenedMsg{err: err}
		}
		return takeOpenedMsg{session: sess}
	})
}

func (s *takeScreen) scheduleTick() tea.Cmd {
	id := s.tick
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return takeTickMsg{id: id} })
}

func (s *takeScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case takeOpenedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.session = msg.session
		s.syncChoice()
		return s, s.scheduleTick()

	case takeTickMsg:
		if msg.id != s.tick || s.session == nil || s.session.Submitted() {
			return s, nil
		}
		return s, s.scheduleTick()

	case takeSubmittedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		return s, tea.Batch(replace(msg.path), notify("Assessment submitted"))

	case tea.KeyMsg:
		if s.session == nil || s.busy {
			return s, nil
		}
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *takeScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	questions := s.session.Questions()
	if len(questions) == 0 {
		return nil
	}
	q := questions[s.question]

	if !key.Matches(msg, s.keys.Submit) {
		s.confirm = false
	}
	switch {
	case key.Matches(msg, s.keys.Up):
		if s.choice > 0 {
			s.choice--
		}
	case key.Matches(msg, s.keys.Down):
		if s.choice < len(q.Choices)-1 {
			s.choice++
		}
	case key.Matches(msg, s.keys.Choose):
		if s.choice < len(q.Choices) {
			if err := s.session.Select(q.ID, q.Choices[s.choice].ID); err != nil {
				return fail(err)
			}
		}
	case key.Matches(msg, s.keys.Next):
		if s.question < len(questions)-1 {
			s.question++
			s.syncChoice()
		}
	case key.Matches(msg, s.keys.Prev):
		if s.question > 0 {
			s.question--
			s.syncChoice()
		}
	case key.Matches(msg, s.keys.Submit):
		return s.submit()
	}
	return nil
}

// syncChoice puts the choice cursor on the current question's selection.
func (s *takeScreen) syncChoice() {
	s.choice = 0
	questions := s.session.Questions()
	if len(questions) == 0 {
		return
	}
	q := questions[s.question]
	if sel, ok := s.session.Selected(q.ID); ok {
		for i, c := range q.Choices {
			if c.ID == sel {
				s.choice = i
			}
		}
	}
}

func (s *takeScreen) submit() tea.Cmd {
	if err := s.session.CanSubmit(); err != nil {
		return fail(err)
	}
	if n := len(s.session.Unanswered()); n > 0 && !s.confirm {
		s.confirm = true
		return nil
	}
	s.confirm = false
	s.busy = true
	sess := s.session
	return s.call(func(ctx context.Context) tea.Msg {
		path, err := sess.Submit(ctx)
		return takeSubmittedMsg{path: path, err: err}
	})
}

func (s *takeScreen) View() string {
	st := s.env.styles
	if s.session == nil {
		return st.Muted.Render("Loading questions...")
	}
	questions := s.session.Questions()
	if len(questions) == 0 {
		return st.WarningMsg.Render("This assessment has no questions yet.")
	}
	q := questions[s.question]

	var b strings.Builder
	b.WriteString(s.statusLine(len(questions)))
	b.WriteString("\n")
	b.WriteString(st.Bar(s.session.Answered()*100/len(questions), 40))
	b.WriteString("\n\n")

	b.WriteString(st.Muted.Render(fmt.Sprintf("Question %d of %d", s.question+1, len(questions))))
	if q.SubtopicName != "" {
		b.WriteString(st.Muted.Render("  ·  " + q.SubtopicName))
	}
	b.WriteString("\n")
	b.WriteString(st.Title.Render(q.Text))
	b.WriteString("\n")

	sel, answered := s.session.Selected(q.ID)
	for i, c := range q.Choices {
		mark := "( )"
		if answered && c.ID == sel {
			mark = "(•)"
		}
		row := mark + " " + c.Text
		if i == s.choice {
			b.WriteString(st.ItemActive.Render(row))
		} else {
			b.WriteString(st.Item.Render(row))
		}
		b.WriteString("\n")
	}

	if s.confirm {
		n := len(s.session.Unanswered())
		b.WriteString("\n")
		b.WriteString(st.WarningBanner.Render(fmt.Sprintf(
			"%d of %d questions are unanswered. Press s again to submit anyway.", n, len(questions))))
	}
	if s.busy {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render("Submitting answers..."))
	}
	return b.String()
}

func (s *takeScreen) statusLine(total int) string {
	st := s.env.styles
	a := s.session.Assessment()
	elapsed := s.session.Elapsed().Truncate(time.Second)

	parts := []string{
		fmt.Sprintf("Answered %d/%d", s.session.Answered(), total),
		"Elapsed " + clock(elapsed),
	}
	line := st.Text.Render(strings.Join(parts, "   "))
	if a.DurationMinutes > 0 {
		limit := time.Duration(a.DurationMinutes) * time.Minute
		if elapsed > limit {
			line += "   " + st.Warning.Render("over the suggested "+clock(limit))
		} else {
			line += "   " + st.Muted.Render("of "+clock(limit))
		}
	}
	return line
}

// clock formats d as MM:SS, or H:MM:SS past an hour.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	sec := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
