package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/theme"
	"github.com/skillcheck-dev/skillcheck/internal/tui/styles"
)

// themeMsg reports the outcome of a theme toggle.
type themeMsg struct {
	pref theme.Preference
	err  error
}

// logoutDoneMsg is sent once the session was purged.
type logoutDoneMsg struct {
	err error
}

// banner is the one-line message shown under the header.
type banner struct {
	text  string
	isErr bool
}

// Model is the root bubbletea model. It owns navigation and the chrome
// around the current screen.
type Model struct {
	env     *env
	nav     *route.Navigator
	screen  screen
	keys    globalKeys
	help    help.Model
	spinner spinner.Model
	banner  banner

	// ready is set once the session manager finished restoring.
	ready      bool
	loggingOut bool
}

func newModel(e *env, start string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = e.styles.Primary

	h := help.New()
	applyHelpStyles(&h, e.styles)

	return Model{
		env:     e,
		nav:     route.NewNavigator(route.NewGuard(e.auth), start),
		keys:    newGlobalKeys(),
		help:    h,
		spinner: sp,
	}
}

func applyHelpStyles(h *help.Model, s *styles.Styles) {
	h.Styles.ShortKey = s.HelpKey
	h.Styles.FullKey = s.HelpKey
	h.Styles.ShortDesc = s.Muted
	h.Styles.FullDesc = s.Muted
	h.Styles.ShortSeparator = s.Muted
	h.Styles.FullSeparator = s.Muted
}

// Init restores the session before any route is rendered.
func (m Model) Init() tea.Cmd {
	a := m.env.auth
	ctx := m.env.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		a.Initialize(ctx)
		return sessionReadyMsg{}
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.env.width, m.env.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m.forward(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionReadyMsg:
		m.ready = true
		m.nav.Resume()
		return m, m.sync()

	case authChangedMsg:
		if msg.user != nil || !m.ready || m.loggingOut {
			return m, nil
		}
		if r, _, _ := route.Match(m.nav.Current()); r.Access == route.Protected {
			m.nav.ForceLogin()
			cmd := m.sync()
			m.banner = banner{text: "Your session has ended. Please log in again.", isErr: true}
			return m, cmd
		}
		return m, nil

	case navigateMsg:
		if d := m.nav.Navigate(msg.path); d.Wait {
			return m, nil
		}
		return m, m.sync()

	case replaceMsg:
		m.nav.Replace(msg.path)
		m.nav.Resume()
		return m, m.sync()

	case resetMsg:
		m.nav.Reset(msg.path)
		cmd := m.sync()
		if msg.notice != "" {
			m.banner = banner{text: msg.notice}
		}
		return m, cmd

	case backMsg:
		if _, ok := m.nav.Back(); !ok {
			return m, nil
		}
		return m, m.sync()

	case errMsg:
		logViewError(m.env.logger, m.nav.Current(), msg.err)
		// A rejected token already sent the user to login; the failing
		// view's own report would only hide why.
		if errors.Is(msg.err, errors.ErrUnauthorized) && m.env.user() == nil {
			return m, nil
		}
		m.banner = banner{text: errors.UserMessage(msg.err), isErr: true}
		return m, nil

	case noticeMsg:
		m.banner = banner{text: msg.text}
		return m, nil

	case themeMsg:
		if msg.err != nil {
			m.banner = banner{text: errors.UserMessage(msg.err), isErr: true}
		}
		m.setTheme(msg.pref)
		return m, nil

	case configChangedMsg:
		if p, err := theme.Parse(msg.theme); err == nil && p != m.env.styles.Theme {
			m.setTheme(p)
			m.banner = banner{text: "Theme changed to " + string(p)}
		}
		return m, nil

	case logoutDoneMsg:
		m.loggingOut = false
		if msg.err != nil {
			m.env.logger.Warn("session store not fully purged", "error", msg.err.Error())
		}
		m.nav.ForceLogin()
		cmd := m.sync()
		m.banner = banner{text: "You have been logged out."}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.forward(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}
	if !m.ready || m.screen == nil {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Back) {
		return m, back
	}
	if !m.screen.Capturing() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Theme):
			return m, m.toggleTheme()
		case key.Matches(msg, m.keys.Logout):
			if m.env.user() != nil && !m.loggingOut {
				m.loggingOut = true
				return m, m.logout()
			}
		}
	}

	if !m.banner.isErr {
		m.banner = banner{}
	}
	return m.forward(msg)
}

// logViewError records a view's failure at the error's own severity.
func logViewError(l *logging.Logger, path string, err error) {
	args := []any{"path", path, "error", err.Error()}
	switch errors.GetSeverity(err) {
	case errors.SeverityCritical, errors.SeverityError:
		l.Error("view error", args...)
	case errors.SeverityWarning:
		l.Warn("view error", args...)
	default:
		l.Debug("view error", args...)
	}
}

// forward hands msg to the current screen.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.screen == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.screen, cmd = m.screen.Update(msg)
	return m, cmd
}

// sync builds the screen for the navigator's current entry, resolving the
// home path and applying the view's role requirement first.
func (m *Model) sync() tea.Cmd {
	if m.banner.isErr {
		m.banner = banner{}
	}
	user := m.env.user()
	for range 4 {
		path := m.nav.Current()
		r, params, _ := route.Match(path)
		if r.Name == route.Home {
			m.nav.Replace(route.Landing(user))
			continue
		}
		if redirect, ok := route.RequireRole(user, r.Role); !ok {
			m.env.logger.Info("view requires role", "path", path, "role", string(r.Role), "redirect", redirect)
			m.nav.Replace(redirect)
			m.nav.Resume()
			continue
		}
		m.screen = newScreen(m.env, r, params, path)
		return m.screen.Init()
	}
	m.screen = newNotFoundScreen(m.env, m.nav.Current())
	return nil
}

// toggleTheme switches the displayed theme and saves the choice.
func (m Model) toggleTheme() tea.Cmd {
	ctx, store := m.env.ctx, m.env.store
	next := m.env.styles.Theme.Toggled()
	return func() tea.Msg {
		return themeMsg{pref: next, err: theme.Save(ctx, store, next)}
	}
}

func (m *Model) setTheme(p theme.Preference) {
	if p == "" {
		return
	}
	m.env.styles = styles.For(p)
	m.spinner.Style = m.env.styles.Primary
	applyHelpStyles(&m.help, m.env.styles)
}

func (m Model) logout() tea.Cmd {
	a, ctx := m.env.auth, m.env.ctx
	return func() tea.Msg {
		return logoutDoneMsg{err: a.Logout(ctx)}
	}
}

// View renders the model
func (m Model) View() string {
	st := m.env.styles
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")

	if m.banner.text != "" {
		if m.banner.isErr {
			b.WriteString(st.ErrorBanner.Render(m.banner.text))
		} else {
			b.WriteString(st.NoticeBanner.Render(m.banner.text))
		}
		b.WriteString("\n\n")
	}

	switch {
	case !m.ready:
		b.WriteString(m.spinner.View() + " " + st.Muted.Render("Restoring session..."))
	case m.screen != nil:
		b.WriteString(m.screen.View())
		if m.screen.Busy() {
			b.WriteString("\n\n")
			b.WriteString(m.spinner.View() + " " + st.Muted.Render("Working..."))
		}
	}
	b.WriteString("\n")
	b.WriteString(st.HelpBar.Render(m.help.View(m.keyHelp())))

	return lipgloss.NewStyle().Padding(0, 2).Render(b.String())
}

func (m Model) header() string {
	st := m.env.styles
	title := st.Title.UnsetMarginBottom().Render("skillcheck")
	if m.screen != nil {
		title += st.Muted.Render(" › ") + st.Text.Bold(true).Render(m.screen.Title())
	}
	right := ""
	if u := m.env.user(); u != nil {
		right = st.Muted.Render(u.DisplayName()) + " " + st.Badge.Foreground(st.Palette.Primary).Render(string(u.EffectiveRole()))
	}
	width := max(0, m.env.width-4)
	gap := max(1, width-lipgloss.Width(title)-lipgloss.Width(right))
	line := title + strings.Repeat(" ", gap) + right
	return st.Header.Width(width).Render(line)
}

func (m Model) keyHelp() keyHelp {
	var screenKeys []key.Binding
	capturing := false
	if m.screen != nil && m.ready {
		screenKeys = m.screen.Keys()
		capturing = m.screen.Capturing()
	}
	global := m.keys.bindings(m.env.user() != nil, capturing)
	return keyHelp{
		short: append(append([]key.Binding{}, screenKeys...), global...),
		full:  [][]key.Binding{screenKeys, global},
	}
}

// Path returns the path on top of the navigation history.
func (m Model) Path() string {
	return m.nav.Current()
}
