// Package testutil provides testing utilities for skillcheck tests.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillcheck-dev/skillcheck/internal/devserver"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/session"
)

// TestSecret signs tokens minted by MintToken.
const TestSecret = "skillcheck-test-secret-0123456789"

// MintToken returns an HS256 JWT for userID that expires at exp.
func MintToken(t *testing.T, userID int, exp time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// SeedSession stores a token and user record, as a successful login would.
func SeedSession(t *testing.T, store session.Store, token string, user *model.User) {
	t.Helper()

	if err := session.SaveSession(context.Background(), store, token, user); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
}

// Request is one request seen by a Backend.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Header        http.Header
	Body          string
}

// Decode unmarshals the request body into v.
func (r Request) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(r.Body), v); err != nil {
		t.Fatalf("failed to decode %s %s body %q: %v", r.Method, r.Path, r.Body, err)
	}
}

// Response is a scripted reply.
type Response struct {
	Status int
	Body   any
}

// Handler produces a reply for a request. Returning nil falls through to
// the default 404.
type Handler func(r Request) *Response

// Backend is a scripted HTTP backend that records every request.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]Handler
	requests []Request
}

// NewBackend starts a Backend that is closed when the test completes.
// Routes are keyed by "METHOD /path".
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{routes: make(map[string]Handler)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL clients should use.
func (b *Backend) URL() string {
	return b.Server.URL + "/api/"
}

// Handle registers h for method and path (relative to /api/).
func (b *Backend) Handle(method, path string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" /api/"+strings.TrimPrefix(path, "/")] = h
}

// Reply registers a fixed response.
func (b *Backend) Reply(method, path string, status int, body any) {
	b.Handle(method, path, func(Request) *Response {
		return &Response{Status: status, Body: body}
	})
}

// Requests returns a copy of the recorded requests.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns the recorded requests for method and path.
func (b *Backend) RequestsTo(method, path string) []Request {
	want := "/api/" + strings.TrimPrefix(path, "/")
	var out []Request
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == want {
			out = append(out, r)
		}
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Header:        r.Header.Clone(),
		Body:          string(body),
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	h := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	var resp *Response
	if h != nil {
		resp = h(req)
	}
	if resp == nil {
		resp = &Response{Status: http.StatusNotFound, Body: map[string]string{"detail": "Not found."}}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if resp.Body != nil {
		_ = json.NewEncoder(w).Encode(resp.Body)
	}
}

// DevServer is a seeded development backend served over HTTP for the
// duration of a test.
type DevServer struct {
	Server *httptest.Server
}

// StartDevServer starts a seeded devserver that is closed when the test
// completes.
func StartDevServer(t *testing.T) *DevServer {
	t.Helper()

	srv, err := devserver.New(devserver.Options{
		Secret:     TestSecret,
		TokenTTL:   time.Hour,
		Seed:       true,
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("failed to create devserver: %v", err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &DevServer{Server: hs}
}

// URL returns the API root clients should use.
func (d *DevServer) URL() string {
	return d.Server.URL + "/api/"
}

// AssessmentID looks up a seeded assessment by title.
func (d *DevServer) AssessmentID(t *testing.T, title string) int {
	t.Helper()

	var login model.LoginResponse
	d.call(t, http.MethodPost, "auth/login/", "", map[string]string{
		"email":    devserver.SeedAdminEmail,
		"password": devserver.SeedAdminPassword,
	}, &login)

	var list []model.Assessment
	d.call(t, http.MethodGet, "assessments/", login.Token, nil, &list)
	for _, a := range list {
		if a.Title == title {
			return a.ID
		}
	}
	t.Fatalf("no assessment titled %q", title)
	return 0
}

func (d *DevServer) call(t *testing.T, method, path, token string, body, out any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, d.URL()+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := d.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		t.Fatalf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
}
