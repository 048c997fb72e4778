package tui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillcheck-dev/skillcheck/internal/admin"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/util"
)

// -----------------------------------------------------------------------------
// Admin dashboard
// -----------------------------------------------------------------------------

type overviewLoadedMsg struct {
	overview *admin.Overview
	err      error
}

type adminDashboardScreen struct {
	base
	overview *admin.Overview
	keys     adminDashboardKeys
}

type adminDashboardKeys struct {
	Assessments key.Binding
	Users       key.Binding
	New         key.Binding
	Refresh     key.Binding
}

func newAdminDashboardScreen(e *env) *adminDashboardScreen {
	return &adminDashboardScreen{
		base: base{env: e},
		keys: adminDashboardKeys{
			Assessments: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assessments")),
			Users:       key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "users")),
			New:         key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new assessment")),
			Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		},
	}
}

func (s *adminDashboardScreen) Title() string { return "Admin dashboard" }

func (s *adminDashboardScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Assessments, s.keys.Users, s.keys.New, s.keys.Refresh}
}

func (s *adminDashboardScreen) Init() tea.Cmd {
	s.busy = true
	return s.call(func(ctx context.Context) tea.Msg {
		o, err := admin.LoadOverview(ctx, s.env.api)
		return overviewLoadedMsg{overview: o, err: err}
	})
}

func (s *adminDashboardScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case overviewLoadedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.overview = msg.overview
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.Assessments):
			return s, navigate(route.PathAdminAssess)
		case key.Matches(msg, s.keys.Users):
			return s, navigate(route.PathAdminUsers)
		case key.Matches(msg, s.keys.New):
			return s, navigate(route.PathAdminNew)
		case key.Matches(msg, s.keys.Refresh):
			if !s.busy {
				return s, s.Init()
			}
		}
	}
	return s, nil
}

func (s *adminDashboardScreen) View() string {
	st := s.env.styles
	if s.overview == nil {
		return st.Muted.Render("Loading overview...")
	}
	o := s.overview
	rows := [][2]string{
		{"Users", fmt.Sprintf("%d (%d admins)", o.TotalUsers, o.Admins)},
		{"Assessments", fmt.Sprint(o.TotalAssessments)},
		{"Published", fmt.Sprint(o.PublishedAssessments)},
		{"Drafts", fmt.Sprint(o.TotalAssessments - o.PublishedAssessments)},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(st.Label.Render(fmt.Sprintf("%-14s", r[0])))
		b.WriteString(st.Text.Render(r[1]))
		b.WriteString("\n")
	}
	return st.ContentBox.Render(strings.TrimRight(b.String(), "\n"))
}

// -----------------------------------------------------------------------------
// Admin assessment list
// -----------------------------------------------------------------------------

type adminAssessmentsLoadedMsg struct {
	assessments []model.Assessment
	err         error
}

type assessmentChangedMsg struct {
	assessment *model.Assessment
	deleted    int
	err        error
}

type adminAssessmentsScreen struct {
	base
	assessments []model.Assessment
	cursor      int
	// confirmDelete holds the ID awaiting a second delete press.
	confirmDelete int
	keys          adminAssessmentsKeys
}

type adminAssessmentsKeys struct {
	cursorKeys
	Publish key.Binding
	Edit    key.Binding
	New     key.Binding
	Delete  key.Binding
}

func newAdminAssessmentsScreen(e *env) *adminAssessmentsScreen {
	return &adminAssessmentsScreen{
		base: base{env: e},
		keys: adminAssessmentsKeys{
			cursorKeys: newCursorKeys(),
			Publish:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "publish/unpublish")),
			Edit:       key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
			New:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
			Delete:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete")),
		},
	}
}

func (s *adminAssessmentsScreen) Title() string { return "Manage assessments" }

func (s *adminAssessmentsScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Up, s.keys.Down, s.keys.Publish, s.keys.Edit, s.keys.New, s.keys.Delete, s.keys.Refresh}
}

func (s *adminAssessmentsScreen) Init() tea.Cmd {
	s.busy = true
	return s.call(func(ctx context.Context) tea.Msg {
		list, err := s.env.api.ListAssessments(ctx)
		return adminAssessmentsLoadedMsg{assessments: list, err: err}
	})
}

func (s *adminAssessmentsScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case adminAssessmentsLoadedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.assessments = msg.assessments
		s.cursor = min(s.cursor, max(0, len(s.assessments)-1))
		return s, nil

	case assessmentChangedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		if msg.deleted != 0 {
			for i, a := range s.assessments {
				if a.ID == msg.deleted {
					s.assessments = append(s.assessments[:i], s.assessments[i+1:]...)
					break
				}
			}
			s.cursor = min(s.cursor, max(0, len(s.assessments)-1))
			return s, notify("Assessment deleted")
		}
		for i, a := range s.assessments {
			if a.ID == msg.assessment.ID {
				s.assessments[i] = *msg.assessment
			}
		}
		state := "unpublished"
		if msg.assessment.IsPublished {
			state = "published"
		}
		return s, notify(fmt.Sprintf("%q %s", msg.assessment.Title, state))

	case tea.KeyMsg:
		if !key.Matches(msg, s.keys.Delete) {
			s.confirmDelete = 0
		}
		if s.keys.move(msg, &s.cursor, len(s.assessments)) {
			return s, nil
		}
		if key.Matches(msg, s.keys.New) {
			return s, navigate(route.PathAdminNew)
		}
		if key.Matches(msg, s.keys.Refresh) && !s.busy {
			return s, s.Init()
		}
		if s.cursor >= len(s.assessments) || s.busy {
			return s, nil
		}
		a := s.assessments[s.cursor]
		switch {
		case key.Matches(msg, s.keys.Edit):
			return s, navigate(editPath(a.ID))
		case key.Matches(msg, s.keys.Publish):
			s.busy = true
			return s, s.call(func(ctx context.Context) tea.Msg {
				updated, err := admin.TogglePublished(ctx, s.env.api, a)
				return assessmentChangedMsg{assessment: updated, err: err}
			})
		case key.Matches(msg, s.keys.Delete):
			if s.confirmDelete != a.ID {
				s.confirmDelete = a.ID
				return s, nil
			}
			s.confirmDelete = 0
			s.busy = true
			return s, s.call(func(ctx context.Context) tea.Msg {
				if err := s.env.api.DeleteAssessment(ctx, a.ID); err != nil {
					return assessmentChangedMsg{err: err}
				}
				return assessmentChangedMsg{deleted: a.ID}
			})
		}
	}
	return s, nil
}

func (s *adminAssessmentsScreen) View() string {
	st := s.env.styles
	if len(s.assessments) == 0 {
		if s.busy {
			return st.Muted.Render("Loading assessments...")
		}
		return st.Muted.Render("No assessments yet. Press n to create one.")
	}

	var b strings.Builder
	for i, a := range s.assessments {
		state := st.Muted.Render("draft")
		if a.IsPublished {
			state = st.Secondary.Render("published")
		}
		row := fmt.Sprintf("%-30s %-10s %3d q  %s",
			util.Truncate(a.Title, 30), util.Truncate(a.LanguageName, 10), len(a.Questions), state)
		if i == s.cursor {
			b.WriteString(st.ItemActive.Render(row))
		} else {
			b.WriteString(st.Item.Render(row))
		}
		b.WriteString("\n")
	}
	if s.confirmDelete != 0 {
		b.WriteString("\n")
		b.WriteString(st.WarningBanner.Render("Press D again to delete this assessment and its attempts."))
	}
	return b.String()
}

func editPath(id int) string {
	return fmt.Sprintf("/admin/assessments/%d/edit", id)
}

// -----------------------------------------------------------------------------
// Admin users
// -----------------------------------------------------------------------------

type usersLoadedMsg struct {
	users []model.User
	err   error
}

type roleChangedMsg struct {
	user *model.User
	err  error
}

type adminUsersScreen struct {
	base
	users  []model.User
	cursor int
	keys   adminUsersKeys
}

type adminUsersKeys struct {
	cursorKeys
	Role key.Binding
}

func newAdminUsersScreen(e *env) *adminUsersScreen {
	ck := newCursorKeys()
	ck.Refresh = key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh"))
	return &adminUsersScreen{
		base: base{env: e},
		keys: adminUsersKeys{
			cursorKeys: ck,
			Role:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "toggle admin")),
		},
	}
}

func (s *adminUsersScreen) Title() string { return "Manage users" }

func (s *adminUsersScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Up, s.keys.Down, s.keys.Role, s.keys.Refresh}
}

func (s *adminUsersScreen) Init() tea.Cmd {
	s.busy = true
	return s.call(func(ctx context.Context) tea.Msg {
		users, err := s.env.api.ListUsers(ctx)
		return usersLoadedMsg{users: users, err: err}
	})
}

func (s *adminUsersScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case usersLoadedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.users = msg.users
		s.cursor = min(s.cursor, max(0, len(s.users)-1))

	case roleChangedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		for i, u := range s.users {
			if u.ID == msg.user.ID {
				s.users[i] = *msg.user
			}
		}
		return s, notify(fmt.Sprintf("%s is now %s", msg.user.Username, msg.user.EffectiveRole()))

	case tea.KeyMsg:
		if s.keys.move(msg, &s.cursor, len(s.users)) {
			return s, nil
		}
		switch {
		case key.Matches(msg, s.keys.Refresh):
			if !s.busy {
				return s, s.Init()
			}
		case key.Matches(msg, s.keys.Role):
			if s.busy || s.cursor >= len(s.users) {
				return s, nil
			}
			u := s.users[s.cursor]
			if me := s.env.user(); me != nil && me.ID == u.ID {
				return s, fail(errors.NewValidationError("you cannot change your own role"))
			}
			s.busy = true
			return s, s.call(func(ctx context.Context) tea.Msg {
				updated, err := admin.ToggleRole(ctx, s.env.api, u)
				return roleChangedMsg{user: updated, err: err}
			})
		}
	}
	return s, nil
}

func (s *adminUsersScreen) View() string {
	st := s.env.styles
	if s.users == nil {
		return st.Muted.Render("Loading users...")
	}
	var b strings.Builder
	for i, u := range s.users {
		role := st.Muted.Render(string(u.EffectiveRole()))
		if u.IsAdminUser() {
			role = st.Primary.Render(string(model.RoleAdmin))
		}
		row := fmt.Sprintf("%-20s %-30s %s", util.Truncate(u.Username, 20), util.Truncate(u.Email, 30), role)
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
// Assessment editor
// -----------------------------------------------------------------------------

type editorLoadedMsg struct {
	draft     *admin.Draft
	languages []model.Language
	subtopics []model.Subtopic
	err       error
}

type editorClosedMsg struct {
	path string
	err  error
}

type draftSavedMsg struct {
	assessment *model.Assessment
	err        error
}

// editorScreen creates or edits an assessment. The draft is edited as YAML
// in the user's editor and validated when the editor exits.
type editorScreen struct {
	base
	id        int
	draft     *admin.Draft
	languages []model.Language
	subtopics []model.Subtopic
	problems  admin.FieldErrors
	keys      editorKeys
}

type editorKeys struct {
	Edit key.Binding
	Save key.Binding
}

func newEditorScreen(e *env, id int) *editorScreen {
	return &editorScreen{
		base: base{env: e},
		id:   id,
		keys: editorKeys{
			Edit: key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "open in editor")),
			Save: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		},
	}
}

func (s *editorScreen) Title() string {
	if s.id == 0 {
		return "New assessment"
	}
	return "Edit assessment"
}

func (s *editorScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Edit, s.keys.Save}
}

func (s *editorScreen) Init() tea.Cmd {
	s.busy = true
	id := s.id
	return s.call(func(ctx context.Context) tea.Msg {
		draft := admin.NewDraft()
		if id != 0 {
			a, err := s.env.api.GetAssessment(ctx, id)
			if err != nil {
				return editorLoadedMsg{err: err}
			}
			draft = admin.FromAssessment(a)
		}
		langs, err := s.env.api.ListLanguages(ctx)
		if err != nil {
			return editorLoadedMsg{err: err}
		}
		subs, err := s.env.api.ListSubtopics(ctx, 0)
		if err != nil {
			return editorLoadedMsg{err: err}
		}
		return editorLoadedMsg{draft: draft, languages: langs, subtopics: subs}
	})
}

func (s *editorScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case editorLoadedMsg:
		s.busy = false
		if msg.err != nil {
			return s, fail(msg.err)
		}
		s.draft, s.languages, s.subtopics = msg.draft, msg.languages, msg.subtopics
		if s.draft.Language == 0 && len(s.languages) > 0 {
			s.draft.Language = s.languages[0].ID
		}

	case editorClosedMsg:
		defer os.Remove(msg.path)
		if msg.err != nil {
			return s, fail(errors.Wrap(msg.err, "editor exited with an error"))
		}
		f, err := os.Open(msg.path)
		if err != nil {
			return s, fail(err)
		}
		defer f.Close()
		d, err := admin.LoadDraft(f)
		if err != nil {
			return s, fail(err)
		}
		s.draft = d
		s.validate()

	case draftSavedMsg:
		s.busy = false
		if msg.err != nil {
			var fe admin.FieldErrors
			if errors.As(msg.err, &fe) {
				s.problems = fe
				return s, nil
			}
			return s, fail(msg.err)
		}
		return s, tea.Batch(replace(route.PathAdminAssess), notify(fmt.Sprintf("Saved %q", msg.assessment.Title)))

	case tea.KeyMsg:
		if s.draft == nil || s.busy {
			return s, nil
		}
		switch {
		case key.Matches(msg, s.keys.Edit):
			return s, s.openEditor()
		case key.Matches(msg, s.keys.Save):
			if !s.validate() {
				return s, nil
			}
			s.busy = true
			id, d := s.id, s.draft
			return s, s.call(func(ctx context.Context) tea.Msg {
				a, err := admin.Save(ctx, s.env.api, id, d)
				return draftSavedMsg{assessment: a, err: err}
			})
		}
	}
	return s, nil
}

func (s *editorScreen) validate() bool {
	s.problems = nil
	if err := s.draft.Validate(); err != nil {
		var fe admin.FieldErrors
		if errors.As(err, &fe) {
			s.problems = fe
		}
		return false
	}
	return true
}

// openEditor writes the draft to a temporary file, with the known language
// and subtopic IDs as a comment header, and suspends the program while the
// editor runs.
func (s *editorScreen) openEditor() tea.Cmd {
	body, err := s.draft.Marshal()
	if err != nil {
		return fail(err)
	}
	f, err := os.CreateTemp("", "skillcheck-draft-*.yaml")
	if err != nil {
		return fail(err)
	}
	var buf bytes.Buffer
	buf.WriteString(s.reference())
	buf.Write(body)
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}

	args := strings.Fields(s.env.editor)
	if len(args) == 0 {
		args = []string{"vi"}
	}
	path := f.Name()
	cmd := exec.Command(args[0], append(args[1:], path)...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorClosedMsg{path: path, err: err}
	})
}

func (s *editorScreen) reference() string {
	var b strings.Builder
	b.WriteString("# Languages:\n")
	for _, l := range s.languages {
		fmt.Fprintf(&b, "#   %d  %s\n", l.ID, l.Name)
	}
	b.WriteString("# Subtopics:\n")
	for _, st := range s.subtopics {
		fmt.Fprintf(&b, "#   %d  %s (language %d)\n", st.ID, st.Name, st.Language)
	}
	b.WriteString("# Each question names its correct option by text.\n\n")
	return b.String()
}

func (s *editorScreen) View() string {
	st := s.env.styles
	if s.draft == nil {
		return st.Muted.Render("Loading...")
	}
	d := s.draft

	var b strings.Builder
	title := d.Title
	if title == "" {
		title = "(untitled)"
	}
	b.WriteString(st.Title.Render(title))
	b.WriteString("\n")
	lang := fmt.Sprint(d.Language)
	for _, l := range s.languages {
		if l.ID == d.Language {
			lang = l.Name
		}
	}
	state := "draft"
	if d.Published {
		state = "published"
	}
	rows := [][2]string{
		{"Language", lang},
		{"Duration", fmt.Sprintf("%d minutes", d.DurationMinutes)},
		{"Passing score", fmt.Sprintf("%d%%", d.PassingScore)},
		{"Questions", fmt.Sprint(len(d.Questions))},
		{"State", state},
	}
	for _, r := range rows {
		b.WriteString(st.Label.Render(fmt.Sprintf("%-14s", r[0])))
		b.WriteString(st.Text.Render(r[1]))
		b.WriteString("\n")
	}
	for i, q := range d.Questions {
		b.WriteString(st.Muted.Render(fmt.Sprintf("  %d. %s (%d options)", i+1, util.Truncate(q.Text, 50), len(q.Options))))
		b.WriteString("\n")
	}

	if len(s.problems) > 0 {
		b.WriteString("\n")
		b.WriteString(st.ErrorMsg.Render("Fix these before saving:"))
		b.WriteString("\n")
		for _, p := range s.problems {
			b.WriteString(st.Error.Render("  " + p.Error()))
			b.WriteString("\n")
		}
	}
	return b.String()
}
