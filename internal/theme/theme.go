// Package theme persists the light/dark preference. A saved preference
// wins; without one the terminal background decides.
package theme

import (
	"context"
	"fmt"
	"strings"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/session"
)

// Preference is the color scheme.
type Preference string

const (
	Light Preference = "light"
	Dark  Preference = "dark"
)

// Parse accepts "light" or "dark" in any case.
func Parse(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case Light, Dark:
		return p, nil
	default:
		return "", errors.NewValidationError(fmt.Sprintf("unknown theme %q (want light or dark)", s)).WithField("theme")
	}
}

// IsDark reports whether p is the dark scheme.
func (p Preference) IsDark() bool {
	return p == Dark
}

// Toggled returns the other scheme.
func (p Preference) Toggled() Preference {
	if p == Dark {
		return Light
	}
	return Dark
}

// Detector reports whether the terminal has a dark background.
type Detector func() bool

// Load returns the saved preference. When nothing valid is saved it returns
// Dark if detect reports a dark background, Light otherwise. The second
// result reports whether the preference came from the store.
func Load(ctx context.Context, store session.Store, detect Detector) (Preference, bool) {
	if raw, err := store.Get(ctx, session.KeyTheme); err == nil {
		if p, err := Parse(string(raw)); err == nil {
			return p, true
		}
	}
	if detect != nil && detect() {
		return Dark, false
	}
	return Light, false
}

// Save stores p.
func Save(ctx context.Context, store session.Store, p Preference) error {
	if _, err := Parse(string(p)); err != nil {
		return err
	}
	return store.Set(ctx, session.KeyTheme, []byte(p))
}

// Toggle flips the current preference, saves and returns it.
func Toggle(ctx context.Context, store session.Store, detect Detector) (Preference, error) {
	current, _ := Load(ctx, store, detect)
	next := current.Toggled()
	if err := Save(ctx, store, next); err != nil {
		return current, err
	}
	return next, nil
}
