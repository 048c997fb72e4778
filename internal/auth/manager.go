// Package auth holds the session manager: the single answer to "is anyone
// logged in, and as whom".
//
// The Manager is an explicit service passed to whatever needs it. It reads
// the session store once at start (Initialize), writes it on login and
// logout, and notifies subscribers whenever the current user changes. Token
// expiry is only checked during Initialize; afterwards a stale token is
// detected by the backend answering 401, which the HTTP client routes to
// Invalidate.
//
// The token proves identity and nothing else. The user record always comes
// from the login response or from GET users/me/, never from token claims.
package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/session"
)

// Generic failure messages used when the backend gives none.
const (
	MessageLoginFailed        = "Login failed"
	MessageRegistrationFailed = "Registration failed"
)

// Client is the subset of the backend API the Manager needs.
type Client interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) error
	Me(ctx context.Context) (*model.User, error)
}

// LoginResult reports the outcome of Login. Login never returns an error;
// failures are described by Message.
type LoginResult struct {
	Success bool
	User    *model.User
	Message string
}

// RegisterResult reports the outcome of Register. Errors holds the
// backend's field-level validation errors untouched.
type RegisterResult struct {
	Success bool
	Message string
	Errors  map[string][]string
}

// Listener is called with the new current user (nil when anonymous).
type Listener func(user *model.User)

// Manager owns the in-memory session state.
type Manager struct {
	store  session.Store
	client Client
	logger *logging.Logger
	now    func() time.Time

	mu          sync.RWMutex
	user        *model.User
	loading     bool
	initialized bool
	listeners   map[int]Listener
	nextID      int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the Manager's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent("auth") }
}

// NewManager creates a Manager in the loading state. Call Initialize once
// before consulting it.
func NewManager(store session.Store, client Client, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		client:    client,
		logger:    logging.NopLogger(),
		now:       time.Now,
		loading:   true,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores the session from the store. It runs at most once;
// later calls return immediately. Loading() is false once it returns.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.mu.Unlock()

	user := m.restore(ctx)

	m.mu.Lock()
	m.user = user
	m.loading = false
	m.mu.Unlock()

	m.notify(user)
}

func (m *Manager) restore(ctx context.Context) *model.User {
	token, err := session.Token(ctx, m.store)
	if err != nil {
		m.logger.Warn("failed to read session token", "error", err.Error())
		return nil
	}
	if token == "" {
		m.logger.Debug("no stored session")
		return nil
	}

	exp, err := TokenExpiry(token)
	if err != nil || !exp.After(m.now()) {
		reason := "expired"
		if err != nil {
			reason = err.Error()
		}
		m.logger.Info("discarding stored session", "reason", reason)
		m.purge(ctx)
		return nil
	}

	user, err := session.User(ctx, m.store)
	if err == nil {
		m.logger.WithUser(user.ID).Info("session restored", "role", string(user.EffectiveRole()))
		return user
	}
	if !errors.Is(err, session.ErrNotFound) {
		m.logger.Warn("cached user record unusable", "error", err.Error())
	}

	user, err = m.client.Me(ctx)
	if err != nil {
		m.logger.Warn("failed to refresh user record, staying anonymous", "error", err.Error())
		m.purge(ctx)
		return nil
	}
	if err := session.SaveUser(ctx, m.store, user); err != nil {
		m.logger.WithUser(user.ID).Warn("failed to cache user record", "error", err.Error())
	}
	m.logger.WithUser(user.ID).Info("session restored from backend")
	return user
}

// Loading reports whether Initialize has not yet finished. Protected views
// must not render while it is true.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Current returns a copy of the current user.
func (m *Manager) Current() (*model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil, false
	}
	u := *m.user
	return &u, true
}

// Authenticated reports whether a user is logged in.
func (m *Manager) Authenticated() bool {
	_, ok := m.Current()
	return ok
}

// Login exchanges credentials with the backend and, on success, persists
// the token and user record before updating the current user.
func (m *Manager) Login(ctx context.Context, email, password string) LoginResult {
	resp, err := m.client.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		m.logger.Info("login rejected", "error", err.Error())
		return LoginResult{Message: failureMessage(err, MessageLoginFailed)}
	}
	if resp.Token == "" {
		m.logger.Warn("login response carried no token")
		return LoginResult{Message: MessageLoginFailed}
	}

	user := resp.User
	if err := session.SaveSession(ctx, m.store, resp.Token, &user); err != nil {
		m.logger.Error("failed to persist session", "error", err.Error())
		return LoginResult{Message: MessageLoginFailed}
	}

	m.set(&user)
	m.logger.WithUser(user.ID).Info("logged in", "role", string(user.EffectiveRole()))

	u := user
	return LoginResult{Success: true, User: &u}
}

// Register creates an account. It does not log the user in.
func (m *Manager) Register(ctx context.Context, name, email, password string, wantAdmin bool) RegisterResult {
	first, last := SplitName(name)
	req := model.RegisterRequest{
		Username:  DeriveUsername(name),
		Email:     strings.TrimSpace(email),
		Password:  password,
		Password2: password,
		FirstName: first,
		LastName:  last,
		IsAdmin:   wantAdmin,
	}

	if err := m.client.Register(ctx, req); err != nil {
		m.logger.Info("registration rejected", "username", req.Username, "error", err.Error())
		result := RegisterResult{Message: failureMessage(err, MessageRegistrationFailed)}
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
			result.Errors = apiErr.Fields
			if apiErr.Message() == http.StatusText(apiErr.Status) {
				result.Message = MessageRegistrationFailed
			}
		}
		return result
	}

	m.logger.Info("registered", "username", req.Username)
	return RegisterResult{Success: true}
}

// Logout clears the store and the current user. The backend is not called.
// The in-memory user is cleared even if the store could not be purged.
func (m *Manager) Logout(ctx context.Context) error {
	err := session.Purge(ctx, m.store)
	m.set(nil)
	m.logger.Info("logged out")
	return err
}

// Invalidate drops the session after the backend rejected the token.
func (m *Manager) Invalidate(ctx context.Context) {
	m.purge(ctx)
	if m.Authenticated() {
		m.logger.Info("session invalidated")
	}
	m.set(nil)
}

// Refresh replaces the cached user record with the backend's current one.
func (m *Manager) Refresh(ctx context.Context) (*model.User, error) {
	if !m.Authenticated() {
		return nil, errors.ErrNotAuthenticated
	}
	user, err := m.client.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := session.SaveUser(ctx, m.store, user); err != nil {
		return nil, errors.Wrap(err, "failed to cache user record")
	}
	m.set(user)

	u := *user
	return &u, nil
}

// Subscribe registers fn for current-user changes and returns a function
// that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) set(user *model.User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	m.notify(user)
}

func (m *Manager) notify(user *model.User) {
	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		if user == nil {
			l(nil)
			continue
		}
		u := *user
		l(&u)
	}
}

func (m *Manager) purge(ctx context.Context) {
	if err := session.Purge(ctx, m.store); err != nil {
		m.logger.Error("failed to purge session", "error", err.Error())
	}
}

// TokenExpiry reads the exp claim of a JWT without verifying its
// signature. Verification is the backend's job; the client only needs to
// know whether the token is worth presenting.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Wrap(errors.ErrInvalidToken, err.Error())
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrInvalidToken, err.Error())
	}
	if exp == nil {
		return time.Time{}, errors.Wrap(errors.ErrInvalidToken, "no exp claim")
	}
	return exp.Time, nil
}

// DeriveUsername builds the login handle from a display name: lowercased,
// with each run of whitespace replaced by "_".
func DeriveUsername(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// SplitName splits a display name into first word and remainder.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func failureMessage(err error, fallback string) string {
	var apiErr *errors.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return errors.UserMessage(err)
		}
		return apiErr.Message()
	}
	if errors.Is(err, errors.ErrNetwork) || errors.Is(err, errors.ErrTimeout) {
		return errors.UserMessage(err)
	}
	return fallback
}
