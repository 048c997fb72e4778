package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skillcheck-dev/skillcheck/internal/auth"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/route"
)

const msgFillAllFields = "Please fill in all fields"

// -----------------------------------------------------------------------------
// Login
// -----------------------------------------------------------------------------

type loginDoneMsg struct {
	res auth.LoginResult
}

type loginScreen struct {
	base
	form form
	err  string
	keys loginKeys
}

type loginKeys struct {
	Register key.Binding
	Forgot   key.Binding
}

func newLoginScreen(e *env) *loginScreen {
	return &loginScreen{
		base: base{env: e},
		form: newForm(
			field{label: "Email", input: newInput("you@example.com", false)},
			field{label: "Password", input: newInput("password", true)},
		),
		keys: loginKeys{
			Register: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "register")),
			Forgot:   key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "forgot password")),
		},
	}
}

func (s *loginScreen) Init() tea.Cmd   { return nil }
func (s *loginScreen) Title() string   { return "Log in" }
func (s *loginScreen) Capturing() bool { return true }
func (s *loginScreen) Keys() []key.Binding {
	return append(s.form.bindings(), s.keys.Register, s.keys.Forgot)
}

func (s *loginScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		s.busy = false
		if !msg.res.Success {
			s.err = msg.res.Message
			return s, nil
		}
		return s, reset(route.Landing(msg.res.User), "Welcome back, "+msg.res.User.DisplayName())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.Register):
			return s, navigate(route.PathRegister)
		case key.Matches(msg, s.keys.Forgot):
			return s, navigate(route.PathForgotPassword)
		}
	}

	cmd, submit := s.form.update(msg)
	if submit && !s.busy {
		return s, s.submit()
	}
	return s, cmd
}

func (s *loginScreen) submit() tea.Cmd {
	email, password := s.form.value(0), s.form.raw(1)
	if email == "" || password == "" {
		s.err = msgFillAllFields
		return nil
	}
	s.err = ""
	s.busy = true
	return s.call(func(ctx context.Context) tea.Msg {
		return loginDoneMsg{res: s.env.auth.Login(ctx, email, password)}
	})
}

func (s *loginScreen) View() string {
	var b strings.Builder
	if s.err != "" {
		b.WriteString(s.env.styles.ErrorMsg.Render(s.err))
		b.WriteString("\n\n")
	}
	b.WriteString(s.form.view(s.env.styles))
	b.WriteString(s.env.styles.Muted.Render("No account yet? Press ctrl+r to register."))
	return b.String()
}

// -----------------------------------------------------------------------------
// Register
// -----------------------------------------------------------------------------

type registerDoneMsg struct {
	res auth.RegisterResult
}

type registerScreen struct {
	base
	form      form
	wantAdmin bool
	err       string
	fieldErrs map[string][]string
	keys      registerKeys
}

type registerKeys struct {
	Admin key.Binding
	Login key.Binding
}

const (
	regName = iota
	regEmail
	regPassword
	regConfirm
)

func newRegisterScreen(e *env) *registerScreen {
	return &registerScreen{
		base: base{env: e},
		form: newForm(
			field{label: "Full name", input: newInput("Ada Lovelace", false)},
			field{label: "Email", input: newInput("you@example.com", false)},
			field{label: "Password", input: newInput("create a password", true)},
			field{label: "Confirm password", input: newInput("confirm your password", true)},
		),
		keys: registerKeys{
			Admin: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "request admin")),
			Login: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "log in")),
		},
	}
}

func (s *registerScreen) Init() tea.Cmd   { return nil }
func (s *registerScreen) Title() string   { return "Create an account" }
func (s *registerScreen) Capturing() bool { return true }
func (s *registerScreen) Keys() []key.Binding {
	return append(s.form.bindings(), s.keys.Admin, s.keys.Login)
}

func (s *registerScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case registerDoneMsg:
		s.busy = false
		if !msg.res.Success {
			s.err = msg.res.Message
			s.fieldErrs = msg.res.Errors
			return s, nil
		}
		return s, reset(route.PathLogin, "Registration successful. Please log in.")

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.Admin):
			s.wantAdmin = !s.wantAdmin
			return s, nil
		case key.Matches(msg, s.keys.Login):
			return s, navigate(route.PathLogin)
		}
	}

	cmd, submit := s.form.update(msg)
	if submit && !s.busy {
		return s, s.submit()
	}
	return s, cmd
}

func (s *registerScreen) submit() tea.Cmd {
	name := s.form.value(regName)
	email := s.form.value(regEmail)
	password := s.form.raw(regPassword)
	confirm := s.form.raw(regConfirm)

	s.fieldErrs = nil
	switch {
	case name == "" || email == "" || password == "" || confirm == "":
		s.err = msgFillAllFields
		return nil
	case password != confirm:
		s.err = "Passwords do not match"
		return nil
	}
	s.err = ""
	s.busy = true
	wantAdmin := s.wantAdmin
	return s.call(func(ctx context.Context) tea.Msg {
		return registerDoneMsg{res: s.env.auth.Register(ctx, name, email, password, wantAdmin)}
	})
}

func (s *registerScreen) View() string {
	st := s.env.styles
	var b strings.Builder
	if s.err != "" {
		b.WriteString(st.ErrorMsg.Render(s.err))
		b.WriteString("\n")
		for _, line := range errors.FieldLines(s.fieldErrs) {
			b.WriteString(st.Error.Render("  " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(s.form.view(st))

	box := "[ ]"
	if s.wantAdmin {
		box = "[x]"
	}
	b.WriteString(st.Text.Render(box + " Register as admin"))
	return b.String()
}

// -----------------------------------------------------------------------------
// Forgot password
// -----------------------------------------------------------------------------

type forgotDoneMsg struct {
	err error
}

type forgotScreen struct {
	base
	form form
	sent bool
	err  string
	keys forgotKeys
}

type forgotKeys struct {
	Login key.Binding
}

func newForgotScreen(e *env) *forgotScreen {
	return &forgotScreen{
		base: base{env: e},
		form: newForm(field{label: "Email", input: newInput("you@example.com", false)}),
		keys: forgotKeys{
			Login: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "back to login")),
		},
	}
}

func (s *forgotScreen) Init() tea.Cmd   { return nil }
func (s *forgotScreen) Title() string   { return "Reset your password" }
func (s *forgotScreen) Capturing() bool { return !s.sent }
func (s *forgotScreen) Keys() []key.Binding {
	if s.sent {
		return []key.Binding{s.keys.Login}
	}
	return append(s.form.bindings(), s.keys.Login)
}

func (s *forgotScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case forgotDoneMsg:
		s.busy = false
		if msg.err != nil {
			s.err = errors.UserMessage(msg.err)
			return s, nil
		}
		s.sent = true
		return s, nil

	case tea.KeyMsg:
		if key.Matches(msg, s.keys.Login) {
			return s, navigate(route.PathLogin)
		}
	}
	if s.sent {
		return s, nil
	}

	cmd, submit := s.form.update(msg)
	if submit && !s.busy {
		email := s.form.value(0)
		if email == "" {
			s.err = "Please enter your email"
			return s, nil
		}
		s.err = ""
		s.busy = true
		return s, s.call(func(ctx context.Context) tea.Msg {
			return forgotDoneMsg{err: s.env.api.ForgotPassword(ctx, email)}
		})
	}
	return s, cmd
}

func (s *forgotScreen) View() string {
	st := s.env.styles
	if s.sent {
		return st.SuccessMsg.Render("If an account exists for that email, a reset link is on its way.") +
			"\n\n" + st.Muted.Render("Press ctrl+l to return to login.")
	}
	var b strings.Builder
	if s.err != "" {
		b.WriteString(st.ErrorMsg.Render(s.err))
		b.WriteString("\n\n")
	}
	b.WriteString(st.Muted.Render("Enter your email and we will send you a reset link."))
	b.WriteString("\n\n")
	b.WriteString(s.form.view(st))
	return b.String()
}
