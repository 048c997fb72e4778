package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/skillcheck-dev/skillcheck/internal/api"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/session"
	"github.com/skillcheck-dev/skillcheck/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	backend *testutil.Backend
	store   session.Store
	client  *api.Client
	mgr     *Manager
}

func newFixture(t *testing.T, store session.Store) *fixture {
	t.Helper()

	if store == nil {
		store = session.NewMemoryStore()
	}
	backend := testutil.NewBackend(t)
	client, err := api.New(backend.URL(), store)
	if err != nil {
		t.Fatal(err)
	}
	mgr := NewManager(store, client, WithClock(func() time.Time { return testNow }))
	client.SetUnauthorizedHandler(mgr.Invalidate)

	return &fixture{backend: backend, store: store, client: client, mgr: mgr}
}

func TestManager_LoadingUntilInitialized(t *testing.T) {
	f := newFixture(t, nil)

	if !f.mgr.Loading() {
		t.Error("Loading() = false before Initialize")
	}
	f.mgr.Initialize(context.Background())
	if f.mgr.Loading() {
		t.Error("Loading() = true after Initialize")
	}
	if f.mgr.Authenticated() {
		t.Error("empty store should initialize anonymous")
	}
}

func TestManager_InitializeDiscardsUnusableTokens(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"expired", func(t *testing.T) string { return testutil.MintToken(t, 1, testNow.Add(-time.Minute)) }},
		{"expires now", func(t *testing.T) string { return testutil.MintToken(t, 1, testNow) }},
		{"garbage", func(*testing.T) string { return "not-a-jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			testutil.SeedSession(t, f.store, tt.token(t), &model.User{ID: 1, Role: model.RoleUser})

			f.mgr.Initialize(ctx)

			if f.mgr.Authenticated() {
				t.Error("session should be anonymous")
			}
			if tok, _ := session.Token(ctx, f.store); tok != "" {
				t.Errorf("token still stored: %q", tok)
			}
			if _, err := session.User(ctx, f.store); !errors.Is(err, session.ErrNotFound) {
				t.Errorf("user still stored: err = %v", err)
			}
			if n := len(f.backend.Requests()); n != 0 {
				t.Errorf("made %d backend calls, want 0", n)
			}
		})
	}
}

func TestManager_InitializeRoundTripThroughFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	token := testutil.MintToken(t, 42, testNow.Add(time.Hour))
	testutil.SeedSession(t, store, token, &model.User{ID: 42, Username: "ada", Role: model.RoleAdmin})

	// A fresh store over the same directory stands in for an app restart.
	reopened, err := session.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, reopened)
	f.mgr.Initialize(context.Background())

	user, ok := f.mgr.Current()
	if !ok {
		t.Fatal("expected authenticated session")
	}
	if user.ID != 42 || user.Role != model.RoleAdmin {
		t.Errorf("Current() = %+v, want id 42 role admin", user)
	}
	if n := len(f.backend.Requests()); n != 0 {
		t.Errorf("made %d backend calls, want 0", n)
	}
}

func TestManager_InitializeRefreshesMissingUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	token := testutil.MintToken(t, 7, testNow.Add(time.Hour))
	if err := session.SaveToken(ctx, f.store, token); err != nil {
		t.Fatal(err)
	}
	f.backend.Reply(http.MethodGet, "users/me/", http.StatusOK, model.User{ID: 7, Role: model.RoleUser})

	f.mgr.Initialize(ctx)

	user, ok := f.mgr.Current()
	if !ok || user.ID != 7 {
		t.Fatalf("Current() = %+v, %v", user, ok)
	}
	cached, err := session.User(ctx, f.store)
	if err != nil || cached.ID != 7 {
		t.Errorf("cached user = %+v, %v", cached, err)
	}
	reqs := f.backend.RequestsTo(http.MethodGet, "users/me/")
	if len(reqs) != 1 || reqs[0].Authorization != "Bearer "+token {
		t.Errorf("users/me/ requests = %+v", reqs)
	}
}

func TestManager_InitializeRefreshFailureStaysAnonymous(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := session.SaveToken(ctx, f.store, testutil.MintToken(t, 7, testNow.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	f.backend.Reply(http.MethodGet, "users/me/", http.StatusInternalServerError, nil)

	f.mgr.Initialize(ctx)

	if f.mgr.Authenticated() {
		t.Error("session should be anonymous")
	}
	if tok, _ := session.Token(ctx, f.store); tok != "" {
		t.Error("token should be purged")
	}
}

func TestManager_LoginPersistsBackendRole(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mgr.Initialize(ctx)

	token := testutil.MintToken(t, 3, testNow.Add(time.Hour))
	f.backend.Reply(http.MethodPost, "auth/login/", http.StatusOK, model.LoginResponse{
		Token: token,
		User:  model.User{ID: 3, Email: "admin@example.com", Role: model.RoleAdmin},
	})

	var seen []*model.User
	f.mgr.Subscribe(func(u *model.User) { seen = append(seen, u) })

	res := f.mgr.Login(ctx, " admin@example.com ", "secret")
	if !res.Success {
		t.Fatalf("Login() failed: %s", res.Message)
	}
	if res.User.Role != model.RoleAdmin {
		t.Errorf("result role = %q", res.User.Role)
	}

	stored, _ := session.Token(ctx, f.store)
	if stored != token {
		t.Error("token not persisted")
	}
	cached, err := session.User(ctx, f.store)
	if err != nil || cached.Role != model.RoleAdmin {
		t.Errorf("cached user = %+v, %v", cached, err)
	}
	if user, ok := f.mgr.Current(); !ok || user.Role != model.RoleAdmin {
		t.Errorf("Current() = %+v, %v", user, ok)
	}
	if len(seen) != 1 || seen[0] == nil || seen[0].ID != 3 {
		t.Errorf("listener saw %+v", seen)
	}

	var body model.LoginRequest
	f.backend.RequestsTo(http.MethodPost, "auth/login/")[0].Decode(t, &body)
	if body.Email != "admin@example.com" || body.Password != "secret" {
		t.Errorf("login body = %+v", body)
	}
}

func TestManager_LoginFailureMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   string
	}{
		{"backend detail", http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"}, "Invalid credentials"},
		{"backend error key", http.StatusBadRequest, map[string]string{"error": "Account disabled"}, "Account disabled"},
		{"no token", http.StatusOK, map[string]any{"user": map[string]int{"id": 1}}, MessageLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			f.mgr.Initialize(ctx)
			f.backend.Reply(http.MethodPost, "auth/login/", tt.status, tt.body)

			res := f.mgr.Login(ctx, "a@example.com", "wrong")
			if res.Success {
				t.Fatal("Login() succeeded")
			}
			if res.Message != tt.want {
				t.Errorf("Message = %q, want %q", res.Message, tt.want)
			}
			if f.mgr.Authenticated() {
				t.Error("failed login must not authenticate")
			}
			if tok, _ := session.Token(ctx, f.store); tok != "" {
				t.Error("failed login must not store a token")
			}
		})
	}
}

func TestManager_Register(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mgr.Initialize(ctx)
	f.backend.Reply(http.MethodPost, "auth/register/", http.StatusCreated, map[string]string{"message": "ok"})

	res := f.mgr.Register(ctx, "Ada  King Lovelace", "ada@example.com", "pw12345678", true)
	if !res.Success {
		t.Fatalf("Register() failed: %s", res.Message)
	}
	if f.mgr.Authenticated() {
		t.Error("Register must not authenticate")
	}

	var body model.RegisterRequest
	f.backend.RequestsTo(http.MethodPost, "auth/register/")[0].Decode(t, &body)
	want := model.RegisterRequest{
		Username:  "ada_king_lovelace",
		Email:     "ada@example.com",
		Password:  "pw12345678",
		Password2: "pw12345678",
		FirstName: "Ada",
		LastName:  "King Lovelace",
		IsAdmin:   true,
	}
	if body != want {
		t.Errorf("register body = %+v, want %+v", body, want)
	}
}

func TestManager_RegisterFieldErrorsPassThrough(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.mgr.Initialize(ctx)
	f.backend.Reply(http.MethodPost, "auth/register/", http.StatusBadRequest, map[string][]string{
		"email":    {"user with this email already exists."},
		"username": {"A user with that username already exists."},
	})

	res := f.mgr.Register(ctx, "Ada", "ada@example.com", "pw", false)
	if res.Success {
		t.Fatal("Register() succeeded")
	}
	if res.Message != MessageRegistrationFailed {
		t.Errorf("Message = %q", res.Message)
	}
	if got := res.Errors["email"]; len(got) != 1 || got[0] != "user with this email already exists." {
		t.Errorf("Errors[email] = %v", got)
	}
	if _, ok := res.Errors["username"]; !ok {
		t.Error("username error dropped")
	}
}

func TestManager_Logout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.SeedSession(t, f.store, testutil.MintToken(t, 1, testNow.Add(time.Hour)), &model.User{ID: 1})
	if err := f.store.Set(ctx, session.KeyTheme, []byte("light")); err != nil {
		t.Fatal(err)
	}
	f.mgr.Initialize(ctx)

	var notified bool
	f.mgr.Subscribe(func(u *model.User) { notified = u == nil })

	if err := f.mgr.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if f.mgr.Authenticated() {
		t.Error("still authenticated after Logout")
	}
	if !notified {
		t.Error("listener not notified of logout")
	}
	if tok, _ := session.Token(ctx, f.store); tok != "" {
		t.Error("token survived Logout")
	}
	if v, _ := f.store.Get(ctx, session.KeyTheme); string(v) != "light" {
		t.Error("theme should survive Logout")
	}
	if n := len(f.backend.Requests()); n != 0 {
		t.Errorf("Logout made %d backend calls", n)
	}
}

func TestManager_UnauthorizedResponseInvalidates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.SeedSession(t, f.store, testutil.MintToken(t, 1, testNow.Add(time.Hour)), &model.User{ID: 1})
	f.mgr.Initialize(ctx)
	f.backend.Reply(http.MethodGet, "assessments/", http.StatusUnauthorized, map[string]string{"detail": "Token revoked"})

	_, err := f.client.ListAssessments(ctx)
	if !errors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("error = %v", err)
	}
	if f.mgr.Authenticated() {
		t.Error("401 should invalidate the session")
	}
	if tok, _ := session.Token(ctx, f.store); tok != "" {
		t.Error("401 should purge the token")
	}
}

func TestManager_Refresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.mgr.Refresh(ctx); !errors.Is(err, errors.ErrNotAuthenticated) {
		t.Errorf("Refresh() while anonymous: err = %v", err)
	}

	testutil.SeedSession(t, f.store, testutil.MintToken(t, 5, testNow.Add(time.Hour)), &model.User{ID: 5, Role: model.RoleUser})
	f.mgr.Initialize(ctx)
	f.backend.Reply(http.MethodGet, "users/me/", http.StatusOK, model.User{ID: 5, Role: model.RoleAdmin})

	user, err := f.mgr.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("refreshed role = %q", user.Role)
	}
	cached, _ := session.User(ctx, f.store)
	if cached.Role != model.RoleAdmin {
		t.Error("refresh did not overwrite the cached record")
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	cancel := f.mgr.Subscribe(func(*model.User) { calls++ })
	f.mgr.Initialize(context.Background())
	cancel()
	_ = f.mgr.Logout(context.Background())

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

func TestDeriveUsername(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"Ada Lovelace", "ada_lovelace"},
		{"  Grace   Brewster\tHopper ", "grace_brewster_hopper"},
		{"linus", "linus"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DeriveUsername(tt.name); got != tt.want {
			t.Errorf("DeriveUsername(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := testNow.Add(90 * time.Minute)
	got, err := TokenExpiry(testutil.MintToken(t, 1, exp))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}

	if _, err := TokenExpiry("a.b.c"); !errors.Is(err, errors.ErrInvalidToken) {
		t.Errorf("malformed token: err = %v", err)
	}
}

func TestManager_LoginLogsUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var buf strings.Builder
	mgr := NewManager(f.store, f.client,
		WithClock(func() time.Time { return testNow }),
		WithLogger(logging.NewWriterLogger(&buf, "debug")))
	mgr.Initialize(ctx)

	f.backend.Reply(http.MethodPost, "auth/login/", http.StatusOK, model.LoginResponse{
		Token: testutil.MintToken(t, 5, testNow.Add(time.Hour)),
		User:  model.User{ID: 5, Email: "user@example.com", Role: model.RoleUser},
	})
	if res := mgr.Login(ctx, "user@example.com", "secret"); !res.Success {
		t.Fatalf("Login() failed: %s", res.Message)
	}

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, `"msg":"logged in"`) {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no login entry in:\n%s", buf.String())
	}
	for _, want := range []string{`"user_id":5`, `"component":"auth"`, `"role":"user"`} {
		if !strings.Contains(line, want) {
			t.Errorf("login entry %s missing %s", line, want)
		}
	}
}
