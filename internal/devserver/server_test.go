package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/skillcheck-dev/skillcheck/internal/api"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/session"
)

type fixture struct {
	srv   *Server
	url   string
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{clock: &now}

	srv, err := New(Options{
		Secret:     "test-secret",
		TokenTTL:   time.Hour,
		Seed:       true,
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return *f.clock },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	f.srv = srv
	f.url = hs.URL + "/api/"
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

// client returns an API client logged in as email.
func (f *fixture) client(t *testing.T, email, password string) (*api.Client, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	c, err := api.New(f.url, store)
	if err != nil {
		t.Fatal(err)
	}
	if email == "" {
		return c, store
	}
	resp, err := c.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("Login(%s) error = %v", email, err)
	}
	if err := session.SaveSession(context.Background(), store, resp.Token, &resp.User); err != nil {
		t.Fatal(err)
	}
	return c, store
}

func findByTitle(t *testing.T, list []model.Assessment, title string) model.Assessment {
	t.Helper()
	for _, a := range list {
		if a.Title == title {
			return a
		}
	}
	t.Fatalf("assessment %q not found", title)
	return model.Assessment{}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	c, _ := f.client(t, "", "")
	ctx := context.Background()

	resp, err := c.Login(ctx, "ADMIN@example.com", SeedAdminPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.User.Role != model.RoleAdmin || resp.Token == "" {
		t.Errorf("Login() = %+v", resp)
	}

	claims, err := f.srv.tokens.parse(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if got := claims.ExpiresAt.Time; !got.Equal(f.clock.Add(time.Hour)) {
		t.Errorf("exp = %v", got)
	}

	_, err = c.Login(ctx, SeedUserEmail, "wrong")
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message() != "Invalid credentials" {
		t.Errorf("bad password err = %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anon, _ := f.client(t, "", "")
	if _, err := anon.Me(ctx); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("Me() without token err = %v", err)
	}

	c, store := f.client(t, SeedUserEmail, SeedUserPassword)
	me, err := c.Me(ctx)
	if err != nil || me.Email != SeedUserEmail {
		t.Fatalf("Me() = %+v, %v", me, err)
	}

	f.advance(2 * time.Hour)
	if _, err := c.Me(ctx); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("Me() with expired token err = %v", err)
	}
	if tok, err := session.Token(ctx, store); err != nil || tok != "" {
		t.Errorf("Token() after a 401 = %q, %v; want purged", tok, err)
	}
	if _, err := store.Get(ctx, session.KeyToken); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get(token) after a 401 err = %v, want ErrNotFound", err)
	}
}

func TestAdminOnlyRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, _ := f.client(t, SeedUserEmail, SeedUserPassword)
	if _, err := user.ListUsers(ctx); !errors.Is(err, errors.ErrForbidden) {
		t.Errorf("ListUsers() as user err = %v", err)
	}

	admin, _ := f.client(t, SeedAdminEmail, SeedAdminPassword)
	users, err := admin.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("ListUsers() = %v, %v", users, err)
	}

	var target model.User
	for _, u := range users {
		if u.Email == SeedUserEmail {
			target = u
		}
	}
	updated, err := admin.SetUserRole(ctx, target.ID, model.RoleAdmin)
	if err != nil || !updated.IsAdminUser() {
		t.Fatalf("SetUserRole() = %+v, %v", updated, err)
	}
	// The role is read per request, so the old token now has admin access.
	if _, err := user.ListUsers(ctx); err != nil {
		t.Errorf("ListUsers() after promotion err = %v", err)
	}
}

func TestAssessmentVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, _ := f.client(t, SeedUserEmail, SeedUserPassword)
	list, err := user.ListAssessments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	draft := findByTitle(t, list, "Python Fundamentals")
	if _, err := user.GetAssessment(ctx, draft.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unpublished assessment err = %v", err)
	}

	goBasics := findByTitle(t, list, "Go Basics")
	got, err := user.GetAssessment(ctx, goBasics.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LanguageName != "Go" || got.Questions[0].SubtopicName != "Types" {
		t.Errorf("decorations missing: %+v", got)
	}
	for _, q := range got.Questions {
		for _, ch := range q.Choices {
			if ch.IsCorrect != nil {
				t.Fatalf("choice %d leaks is_correct to a user", ch.ID)
			}
		}
	}

	admin, _ := f.client(t, SeedAdminEmail, SeedAdminPassword)
	adminView, err := admin.GetAssessment(ctx, goBasics.ID)
	if err != nil || adminView.Questions[0].Choices[0].IsCorrect == nil {
		t.Errorf("admin view = %+v, %v", adminView, err)
	}
}

func TestTakeAssessmentEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := f.client(t, SeedUserEmail, SeedUserPassword)
	admin, _ := f.client(t, SeedAdminEmail, SeedAdminPassword)

	list, _ := user.ListAssessments(ctx)
	target := findByTitle(t, list, "Go Basics")
	key, _ := admin.GetAssessment(ctx, target.ID)

	if _, err := user.StartUserAssessment(ctx, target.ID); err != nil {
		t.Fatal(err)
	}
	sess, err := flow.Open(ctx, user, target.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	// Answer the first two questions correctly and the last (2 points) wrongly.
	for i, q := range key.Questions {
		choice := q.Choices[0].ID
		for _, ch := range q.Choices {
			if ch.Correct() == (i < 2) {
				choice = ch.ID
				break
			}
		}
		if err := sess.Select(q.ID, choice); err != nil {
			t.Fatal(err)
		}
	}

	f.advance(4*time.Minute + 12*time.Second)
	path, err := sess.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if path != model.ResultsPath(target.ID) {
		t.Errorf("path = %q", path)
	}

	res, err := user.GetResult(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 50 || res.Passed() {
		t.Errorf("score = %v passed = %v; want 50, failed", res.Score, res.Passed())
	}
	if res.TimeTaken != 252 {
		t.Errorf("time_taken = %d", res.TimeTaken)
	}
	if len(res.Questions) != 3 || res.Questions[2].IsCorrect || res.Questions[2].CorrectText == "" {
		t.Errorf("questions = %+v", res.Questions)
	}

	stats, err := user.DashboardStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Stats.CompletedAssessments != 1 || stats.Stats.NotStartedAssessments != 1 {
		t.Errorf("stats = %+v", stats.Stats)
	}
	if len(stats.RecentAssessments) != 1 || stats.RecentAssessments[0].Title != "Go Basics" {
		t.Errorf("recent = %+v", stats.RecentAssessments)
	}
}

func TestSubmitAnswer_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := f.client(t, SeedUserEmail, SeedUserPassword)

	list, _ := user.ListAssessments(ctx)
	target := findByTitle(t, list, "Go Concurrency")
	ua, err := user.StartUserAssessment(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ua.Status != model.StatusNotStarted {
		t.Errorf("new attempt status = %q", ua.Status)
	}
	again, _ := user.StartUserAssessment(ctx, target.ID)
	if again.ID != ua.ID {
		t.Errorf("start should reuse attempt %d, got %d", ua.ID, again.ID)
	}

	q := target.Questions[0]
	sub := model.AnswerSubmission{UserAssessment: ua.ID, Question: q.ID, SelectedChoice: q.Choices[0].ID}
	first, err := user.SubmitAnswer(ctx, sub, "key-1")
	if err != nil {
		t.Fatal(err)
	}
	replay, err := user.SubmitAnswer(ctx, model.AnswerSubmission{UserAssessment: ua.ID, Question: q.ID, SelectedChoice: q.Choices[1].ID}, "key-1")
	if err != nil {
		t.Fatal(err)
	}
	if replay.ID != first.ID || replay.SelectedChoice != first.SelectedChoice {
		t.Errorf("replay = %+v, want %+v", replay, first)
	}

	changed, err := user.SubmitAnswer(ctx, model.AnswerSubmission{UserAssessment: ua.ID, Question: q.ID, SelectedChoice: q.Choices[1].ID}, "key-2")
	if err != nil {
		t.Fatal(err)
	}
	if changed.ID != first.ID || changed.SelectedChoice != q.Choices[1].ID {
		t.Errorf("new key should update the stored answer: %+v", changed)
	}

	attempts, _ := user.ListUserAssessments(ctx)
	if len(attempts) != 1 || attempts[0].Status != model.StatusInProgress {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestSubmitAnswer_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := f.client(t, SeedUserEmail, SeedUserPassword)

	list, _ := user.ListAssessments(ctx)
	a := findByTitle(t, list, "Go Basics")
	other := findByTitle(t, list, "Go Concurrency")
	ua, _ := user.StartUserAssessment(ctx, a.ID)

	tests := []struct {
		name  string
		sub   model.AnswerSubmission
		field string
	}{
		{"foreign question", model.AnswerSubmission{UserAssessment: ua.ID, Question: other.Questions[0].ID, SelectedChoice: other.Questions[0].Choices[0].ID}, "question"},
		{"foreign choice", model.AnswerSubmission{UserAssessment: ua.ID, Question: a.Questions[0].ID, SelectedChoice: a.Questions[1].Choices[0].ID}, "selected_choice"},
		{"unknown attempt", model.AnswerSubmission{UserAssessment: 9999, Question: a.Questions[0].ID, SelectedChoice: a.Questions[0].Choices[0].ID}, "user_assessment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := user.SubmitAnswer(ctx, tt.sub, "")
			var apiErr *errors.APIError
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
				t.Fatalf("err = %v", err)
			}
			if len(apiErr.Fields[tt.field]) == 0 {
				t.Errorf("fields = %v, want %s", apiErr.Fields, tt.field)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	c, _ := f.client(t, "", "")
	ctx := context.Background()

	err := c.Register(ctx, model.RegisterRequest{
		Username: "user", Email: SeedUserEmail, Password: "short", Password2: "other",
	})
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	for _, field := range []string{"username", "email", "password", "password2"} {
		if len(apiErr.Fields[field]) == 0 {
			t.Errorf("missing %s error in %v", field, apiErr.Fields)
		}
	}

	err = c.Register(ctx, model.RegisterRequest{
		Username: "new_user", Email: "new@example.com", Password: "longenough", Password2: "longenough",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	resp, err := c.Login(ctx, "new@example.com", "longenough")
	if err != nil || resp.User.Role != model.RoleUser {
		t.Errorf("Login() after register = %+v, %v", resp, err)
	}
}

func TestAdminAuthoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.client(t, SeedAdminEmail, SeedAdminPassword)

	langs, err := admin.ListLanguages(ctx)
	if err != nil || len(langs) != 2 {
		t.Fatalf("ListLanguages() = %v, %v", langs, err)
	}
	subs, err := admin.ListSubtopics(ctx, langs[1].ID)
	if err != nil || len(subs) != 2 {
		t.Fatalf("ListSubtopics(python) = %v, %v", subs, err)
	}

	yes, no := true, false
	created, err := admin.CreateAssessment(ctx, &model.Assessment{
		Title:        "Rust Intro",
		PassingScore: 50,
		Questions: []model.Question{{
			Text:    "Who owns a value?",
			Choices: []model.Choice{{Text: "one owner", IsCorrect: &yes}, {Text: "everyone", IsCorrect: &no}},
		}},
	})
	if err != nil || created.ID == 0 || created.Questions[0].Choices[1].ID == 0 {
		t.Fatalf("CreateAssessment() = %+v, %v", created, err)
	}

	pub, err := admin.SetPublished(ctx, created.ID, true)
	if err != nil || !pub.IsPublished {
		t.Errorf("SetPublished() = %+v, %v", pub, err)
	}

	_, err = admin.CreateAssessment(ctx, &model.Assessment{})
	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields["title"]) == 0 {
		t.Errorf("blank title err = %v", err)
	}

	if err := admin.DeleteAssessment(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.GetAssessment(ctx, created.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("deleted assessment err = %v", err)
	}
}

func TestForgotPasswordIsUniform(t *testing.T) {
	f := newFixture(t)
	h := f.srv.Handler()

	bodies := map[string]string{}
	for _, email := range []string{SeedUserEmail, "nobody@example.com"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/forgot-password/", bytes.NewBufferString(`{"email":"`+email+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		bodies[email] = rec.Body.String()
	}
	if bodies[SeedUserEmail] != bodies["nobody@example.com"] {
		t.Error("response reveals whether the account exists")
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/user-answers/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	allowed := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers"))
	if !strings.Contains(allowed, "idempotency-key") {
		t.Errorf("Access-Control-Allow-Headers = %q", allowed)
	}
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	Banner(&buf, ":8000", true)
	out := buf.String()
	if !strings.Contains(out, SeedAdminEmail) || !strings.Contains(out, ":8000") {
		t.Errorf("banner = %q", out)
	}
}

func TestScoreAttempt(t *testing.T) {
	a := &model.Assessment{Questions: []model.Question{
		{ID: 1, Points: 1}, {ID: 2, Points: 2}, {ID: 3, Points: 3},
	}}
	tests := []struct {
		name    string
		answers map[int]model.AnswerReceipt
		want    float64
	}{
		{"none", nil, 0},
		{"all", map[int]model.AnswerReceipt{1: {IsCorrect: true}, 2: {IsCorrect: true}, 3: {IsCorrect: true}}, 100},
		{"weighted", map[int]model.AnswerReceipt{1: {IsCorrect: true}, 2: {IsCorrect: false}, 3: {IsCorrect: false}}, 16.67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreAttempt(a, tt.answers); got != tt.want {
				t.Errorf("scoreAttempt() = %v, want %v", got, tt.want)
			}
		})
	}

	empty := &model.Assessment{}
	if got := scoreAttempt(empty, nil); got != 0 {
		t.Errorf("empty assessment score = %v", got)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["detail"] == "" {
		t.Errorf("body = %v", body)
	}
}
