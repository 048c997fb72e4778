package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillcheck-dev/skillcheck/internal/api"
	"github.com/skillcheck-dev/skillcheck/internal/auth"
	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/session"
	"github.com/skillcheck-dev/skillcheck/internal/tui/styles"
)

// env is the state shared by the root model and every screen. Screens keep
// a pointer so theme and size changes reach them without a message.
type env struct {
	ctx     context.Context
	auth    *auth.Manager
	api     *api.Client
	browser *flow.Browser
	store   session.Store
	logger  *logging.Logger
	styles  *styles.Styles
	now     func() time.Time

	// editor is the command used to edit assessment drafts.
	editor string
	// exportDir receives PDF exports.
	exportDir string

	width  int
	height int
}

func (e *env) user() *model.User {
	u, _ := e.auth.Current()
	return u
}

// screen is one view of the application. The root model owns navigation,
// the banner and global keys; a screen owns everything inside its frame.
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (screen, tea.Cmd)
	View() string
	Title() string
	// Keys lists the screen's bindings for the help line.
	Keys() []key.Binding
	// Capturing reports whether a text input has focus, in which case
	// single-letter global keys are passed through.
	Capturing() bool
	// Busy reports whether a backend call is in flight.
	Busy() bool
}

// base provides the defaults most screens share.
type base struct {
	env  *env
	busy bool
}

func (b *base) Capturing() bool { return false }
func (b *base) Busy() bool      { return b.busy }

// call runs fn as a tea.Cmd against the app context.
func (b *base) call(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	ctx := b.env.ctx
	return func() tea.Msg { return fn(ctx) }
}

// newScreen builds the screen for a matched route.
func newScreen(e *env, r route.Route, params route.Params, path string) screen {
	id, _ := strconv.Atoi(params["id"])

	switch r.Name {
	case route.Login:
		return newLoginScreen(e)
	case route.Register:
		return newRegisterScreen(e)
	case route.ForgotPassword:
		return newForgotScreen(e)
	case route.ResetPassword:
		return newStaticScreen(e, "Reset password", resetPasswordText)
	case route.About:
		return newStaticScreen(e, "About", aboutText)
	case route.Dashboard:
		return newDashboardScreen(e)
	case route.Assessments:
		return newListScreen(e)
	case route.AssessmentDetail:
		return newDetailScreen(e, id)
	case route.TakeAssessment:
		return newTakeScreen(e, id)
	case route.Results:
		return newResultsScreen(e, id)
	case route.AdminDashboard:
		return newAdminDashboardScreen(e)
	case route.AdminAssessments:
		return newAdminAssessmentsScreen(e)
	case route.AdminNew:
		return newEditorScreen(e, 0)
	case route.AdminEdit:
		return newEditorScreen(e, id)
	case route.AdminUsers:
		return newAdminUsersScreen(e)
	default:
		return newNotFoundScreen(e, path)
	}
}

// -----------------------------------------------------------------------------
// Static and not-found screens
// -----------------------------------------------------------------------------

const aboutText = `skillcheck lets you take programming skill assessments and review
your results, per question and per subtopic.

Scores and pass/fail decisions are computed by the server.`

const resetPasswordText = `Open the link from the reset email to choose a new password.
Then come back and log in.`

type staticScreen struct {
	base
	title string
	text  string
	keys  staticKeys
}

type staticKeys struct {
	Login key.Binding
}

func newStaticScreen(e *env, title, text string) *staticScreen {
	return &staticScreen{
		base:  base{env: e},
		title: title,
		text:  text,
		keys: staticKeys{
			Login: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue")),
		},
	}
}

func (s *staticScreen) Init() tea.Cmd { return nil }
func (s *staticScreen) Title() string { return s.title }
func (s *staticScreen) Keys() []key.Binding {
	return []key.Binding{s.keys.Login}
}

func (s *staticScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, s.keys.Login) {
		return s, navigate(route.Landing(s.env.user()))
	}
	return s, nil
}

func (s *staticScreen) View() string {
	return s.env.styles.Text.Render(s.text)
}

type notFoundScreen struct {
	*staticScreen
	path string
}

func newNotFoundScreen(e *env, path string) *notFoundScreen {
	return &notFoundScreen{
		staticScreen: newStaticScreen(e, "Not found", ""),
		path:         path,
	}
}

func (s *notFoundScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	_, cmd := s.staticScreen.Update(msg)
	return s, cmd
}

func (s *notFoundScreen) View() string {
	var b strings.Builder
	b.WriteString(s.env.styles.ErrorMsg.Render("Nothing lives at " + s.path))
	b.WriteString("\n\n")
	b.WriteString(s.env.styles.Muted.Render("Press enter to go home, esc to go back."))
	return b.String()
}
