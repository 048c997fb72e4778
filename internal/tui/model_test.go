package tui

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillcheck-dev/skillcheck/internal/api"
	"github.com/skillcheck-dev/skillcheck/internal/auth"
	"github.com/skillcheck-dev/skillcheck/internal/devserver"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/session"
	"github.com/skillcheck-dev/skillcheck/internal/theme"
	"github.com/skillcheck-dev/skillcheck/internal/tui/styles"
)

// harness runs a Model the way the bubbletea runtime does: commands execute
// in goroutines and their messages are fed back into Update one at a time.
type harness struct {
	t       *testing.T
	m       Model
	client  *api.Client
	store   *session.MemoryStore
	msgs    chan tea.Msg
	pending int
}

// newHarness starts a devserver and a model at start. A non-empty email
// logs that user in before the model initializes.
func newHarness(t *testing.T, start, email, password string) *harness {
	t.Helper()

	srv, err := devserver.New(devserver.Options{
		Secret:     "tui-test-secret",
		TokenTTL:   time.Hour,
		Seed:       true,
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("devserver.New() error = %v", err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	store := session.NewMemoryStore()
	client, err := api.New(hs.URL+"/api/", store)
	if err != nil {
		t.Fatal(err)
	}
	mgr := auth.NewManager(store, client)
	client.SetUnauthorizedHandler(mgr.Invalidate)

	ctx := context.Background()
	if email != "" {
		resp, err := client.Login(ctx, email, password)
		if err != nil {
			t.Fatalf("Login(%s) error = %v", email, err)
		}
		if err := session.SaveSession(ctx, store, resp.Token, &resp.User); err != nil {
			t.Fatal(err)
		}
	}

	e := &env{
		ctx:       ctx,
		auth:      mgr,
		api:       client,
		browser:   flow.NewBrowser(client),
		store:     store,
		logger:    logging.NopLogger(),
		styles:    styles.For(theme.Dark),
		now:       time.Now,
		editor:    "true",
		exportDir: t.TempDir(),
	}

	h := &harness{
		t:      t,
		m:      newModel(e, start),
		client: client,
		store:  store,
		msgs:   make(chan tea.Msg, 256),
	}
	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.run(h.m.Init())
	h.settle()
	return h
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	h.pending++
	go func() { h.msgs <- cmd() }()
}

// ignored drops the timer-driven messages that would otherwise keep the
// harness busy forever.
func ignored(msg tea.Msg) bool {
	if _, ok := msg.(takeTickMsg); ok {
		return true
	}
	name := fmt.Sprintf("%T", msg)
	return strings.HasPrefix(name, "spinner.") || strings.HasPrefix(name, "cursor.")
}

func (h *harness) handle(msg tea.Msg) {
	if msg == nil || ignored(msg) {
		return
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, cmd := range batch {
			h.run(cmd)
		}
		return
	}
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	h.run(cmd)
}

func (h *harness) settle() {
	h.t.Helper()
	deadline := time.After(10 * time.Second)
	for h.pending > 0 {
		select {
		case msg := <-h.msgs:
			h.pending--
			h.handle(msg)
		case <-deadline:
			h.t.Fatalf("%d commands still pending", h.pending)
		}
	}
}

// send delivers msg and waits for every command it causes.
func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	h.handle(msg)
	h.settle()
}

func (h *harness) typeText(s string) {
	h.t.Helper()
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) press(k tea.KeyType) {
	h.t.Helper()
	h.send(tea.KeyMsg{Type: k})
}

func (h *harness) key(r rune) {
	h.t.Helper()
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func (h *harness) assertPath(want string) {
	h.t.Helper()
	if got := h.m.Path(); got != want {
		h.t.Fatalf("Path() = %q, want %q", got, want)
	}
}

// assertLoginScreen checks that the login view is the one rendered.
func (h *harness) assertLoginScreen() {
	h.t.Helper()
	h.assertPath(route.PathLogin)
	if _, ok := h.m.screen.(*loginScreen); !ok {
		h.t.Fatalf("screen = %T, want *loginScreen", h.m.screen)
	}
}

func TestModel_InitialRouting(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		email    string
		password string
		want     string
	}{
		{name: "anonymous home shows login", start: route.PathHome, want: route.PathLogin},
		{name: "anonymous protected view redirects", start: route.PathDashboard, want: route.PathLogin},
		{name: "anonymous public view renders", start: route.PathRegister, want: route.PathRegister},
		{
			name: "user home lands on dashboard", start: route.PathHome,
			email: devserver.SeedUserEmail, password: devserver.SeedUserPassword,
			want: route.PathDashboard,
		},
		{
			name: "admin home lands on admin dashboard", start: route.PathHome,
			email: devserver.SeedAdminEmail, password: devserver.SeedAdminPassword,
			want: route.PathAdminDashboard,
		},
		{
			name: "user is kept out of admin views", start: route.PathAdminUsers,
			email: devserver.SeedUserEmail, password: devserver.SeedUserPassword,
			want: route.PathDashboard,
		},
		{
			name: "admin reaches admin views", start: route.PathAdminUsers,
			email: devserver.SeedAdminEmail, password: devserver.SeedAdminPassword,
			want: route.PathAdminUsers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.start, tt.email, tt.password)
			if !h.m.ready {
				t.Fatal("model not ready after Init")
			}
			h.assertPath(tt.want)
		})
	}
}

func TestModel_LoginFlow(t *testing.T) {
	h := newHarness(t, route.PathHome, "", "")
	h.assertPath(route.PathLogin)

	h.press(tea.KeyEnter)
	ls, ok := h.m.screen.(*loginScreen)
	if !ok {
		t.Fatalf("screen = %T, want *loginScreen", h.m.screen)
	}
	if ls.err != msgFillAllFields {
		t.Errorf("empty submit error = %q, want %q", ls.err, msgFillAllFields)
	}

	h.typeText(devserver.SeedUserEmail)
	h.press(tea.KeyTab)
	h.typeText("wrong-password")
	h.press(tea.KeyEnter)
	h.assertPath(route.PathLogin)
	if ls := h.m.screen.(*loginScreen); ls.err == "" {
		t.Error("bad credentials left no error on the login screen")
	}

	// Replace the wrong password.
	h.press(tea.KeyCtrlU)
	h.typeText(devserver.SeedUserPassword)
	h.press(tea.KeyEnter)

	h.assertPath(route.PathDashboard)
	if !strings.HasPrefix(h.m.banner.text, "Welcome back") {
		t.Errorf("banner = %q, want a welcome", h.m.banner.text)
	}
	if h.m.env.user() == nil {
		t.Fatal("no current user after login")
	}
	if hist := h.m.nav.History(); len(hist) != 1 {
		t.Errorf("History() = %v, want only the landing view", hist)
	}
}

func TestModel_LoginScreenLinks(t *testing.T) {
	h := newHarness(t, route.PathLogin, "", "")

	h.press(tea.KeyCtrlR)
	h.assertPath(route.PathRegister)

	h.press(tea.KeyEsc)
	h.assertPath(route.PathLogin)

	h.press(tea.KeyCtrlF)
	h.assertPath(route.PathForgotPassword)
}

func TestModel_CapturingScreensKeepLetters(t *testing.T) {
	h := newHarness(t, route.PathLogin, "", "")

	// q is typed into the email field rather than quitting.
	h.key('q')
	ls := h.m.screen.(*loginScreen)
	if got := ls.form.raw(0); got != "q" {
		t.Errorf("email field = %q, want q", got)
	}
}

func TestModel_Logout(t *testing.T) {
	h := newHarness(t, route.PathHome, devserver.SeedUserEmail, devserver.SeedUserPassword)
	h.assertPath(route.PathDashboard)

	h.key('x')

	h.assertLoginScreen()
	if h.m.env.user() != nil {
		t.Error("user still set after logout")
	}
	if h.m.banner.text != "You have been logged out." {
		t.Errorf("banner = %q", h.m.banner.text)
	}
	if tok, _ := session.Token(context.Background(), h.store); tok != "" {
		t.Error("token still stored after logout")
	}

	// Back must not reveal the dashboard again.
	h.press(tea.KeyEsc)
	h.assertLoginScreen()
}

func TestModel_SessionEndedElsewhere(t *testing.T) {
	h := newHarness(t, route.PathAssessments, devserver.SeedUserEmail, devserver.SeedUserPassword)
	h.assertPath(route.PathAssessments)

	h.m.env.auth.Invalidate(context.Background())
	h.send(authChangedMsg{user: nil})

	h.assertLoginScreen()
	if !h.m.banner.isErr {
		t.Errorf("banner = %+v, want an error banner", h.m.banner)
	}
	ended := h.m.banner.text

	// The screen that hit the 401 reports it after the redirect.
	h.send(errMsg{err: errors.NewAPIError(http.StatusUnauthorized, "token expired")})
	if h.m.banner.text != ended {
		t.Errorf("banner after the view's 401 = %q, want %q", h.m.banner.text, ended)
	}
	h.assertLoginScreen()

	h.send(errMsg{err: errors.NewValidationError("email is required")})
	if !strings.Contains(h.m.banner.text, "email is required") {
		t.Errorf("other errors should still be shown, banner = %q", h.m.banner.text)
	}
}

func TestModel_AnonymousPublicViews(t *testing.T) {
	tests := []struct {
		start string
		want  string
		check func(screen) bool
	}{
		{start: route.PathHome, want: route.PathLogin, check: func(s screen) bool { _, ok := s.(*loginScreen); return ok }},
		{start: route.PathLogin, want: route.PathLogin, check: func(s screen) bool { _, ok := s.(*loginScreen); return ok }},
		{start: route.PathRegister, want: route.PathRegister, check: func(s screen) bool { _, ok := s.(*notFoundScreen); return !ok }},
		{start: "/about", want: "/about", check: func(s screen) bool { _, ok := s.(*notFoundScreen); return !ok }},
	}

	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			h := newHarness(t, tt.start, "", "")
			h.assertPath(tt.want)
			if !tt.check(h.m.screen) {
				t.Errorf("screen for %s = %T", tt.start, h.m.screen)
			}
		})
	}
}

func TestModel_ThemeToggle(t *testing.T) {
	h := newHarness(t, route.PathHome, devserver.SeedUserEmail, devserver.SeedUserPassword)
	if h.m.env.styles.Theme != theme.Dark {
		t.Fatalf("initial theme = %q, want dark", h.m.env.styles.Theme)
	}

	h.key('t')

	if h.m.env.styles.Theme != theme.Light {
		t.Errorf("theme after toggle = %q, want light", h.m.env.styles.Theme)
	}
	raw, err := h.store.Get(context.Background(), session.KeyTheme)
	if err != nil {
		t.Fatalf("theme not saved: %v", err)
	}
	if string(raw) != string(theme.Light) {
		t.Errorf("saved theme = %q, want light", raw)
	}
}

func TestModel_ConfigChangeAppliesTheme(t *testing.T) {
	h := newHarness(t, route.PathLogin, "", "")

	h.send(configChangedMsg{theme: "light"})
	if h.m.env.styles.Theme != theme.Light {
		t.Errorf("theme = %q, want light", h.m.env.styles.Theme)
	}

	h.send(configChangedMsg{theme: "neon"})
	if h.m.env.styles.Theme != theme.Light {
		t.Errorf("invalid theme changed the display to %q", h.m.env.styles.Theme)
	}
}

func TestModel_UnknownPath(t *testing.T) {
	h := newHarness(t, "/no/such/view", "", "")

	if _, ok := h.m.screen.(*notFoundScreen); !ok {
		t.Fatalf("screen = %T, want *notFoundScreen", h.m.screen)
	}
	if !strings.Contains(h.m.View(), "Nothing lives at /no/such/view") {
		t.Error("not-found view does not name the path")
	}
}

func TestModel_TakeAndSubmit(t *testing.T) {
	h := newHarness(t, route.PathHome, devserver.SeedUserEmail, devserver.SeedUserPassword)

	list, err := h.client.ListAssessments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var target model.Assessment
	for _, a := range list {
		if a.IsPublished {
			target = a
			break
		}
	}
	if target.ID == 0 {
		t.Fatal("no published assessment seeded")
	}

	h.send(navigateMsg{path: model.TakePath(target.ID)})
	h.assertPath(model.TakePath(target.ID))
	ts, ok := h.m.screen.(*takeScreen)
	if !ok {
		t.Fatalf("screen = %T, want *takeScreen", h.m.screen)
	}
	if ts.session == nil {
		t.Fatalf("session not opened; banner = %q", h.m.banner.text)
	}

	// Submitting with nothing selected is refused.
	h.key('s')
	h.assertPath(model.TakePath(target.ID))
	if !h.m.banner.isErr {
		t.Error("empty submit did not show an error")
	}

	h.press(tea.KeySpace)
	if got := len(ts.session.Answers()); got != 1 {
		t.Fatalf("answers after select = %d, want 1", got)
	}

	if len(ts.session.Unanswered()) > 0 {
		h.key('s')
		if !ts.confirm {
			t.Fatal("first submit with unanswered questions did not ask to confirm")
		}
		h.assertPath(model.TakePath(target.ID))
	}

	h.key('s')
	h.assertPath(model.ResultsPath(target.ID))
	if _, ok := h.m.screen.(*resultsScreen); !ok {
		t.Fatalf("screen = %T, want *resultsScreen", h.m.screen)
	}
	if h.m.banner.text != "Assessment submitted" {
		t.Errorf("banner = %q", h.m.banner.text)
	}
}

func TestLogViewError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"server failure", errors.NewAPIError(http.StatusInternalServerError, "boom"), `"level":"ERROR"`},
		{"rejected input", errors.NewAPIError(http.StatusBadRequest, "title is required"), `"level":"WARN"`},
		{"validation", errors.NewValidationError("pick an answer"), `"level":"WARN"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			logViewError(logging.NewWriterLogger(&buf, "debug"), route.PathAssessments, tt.err)
			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("log line = %s, want %s", out, tt.wantLevel)
			}
			if !strings.Contains(out, `"path":"/assessments"`) {
				t.Errorf("log line missing the path: %s", out)
			}
		})
	}
}
