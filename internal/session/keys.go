package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// Token returns the stored session token, or "" when none is stored.
func Token(ctx context.Context, s Store) (string, error) {
	data, err := s.Get(ctx, KeyToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken stores the session token.
func SaveToken(ctx context.Context, s Store, token string) error {
	return s.Set(ctx, KeyToken, []byte(token))
}

// User returns the cached user record. It returns ErrNotFound when no record
// is stored and a decode error when the record is corrupt.
func User(ctx context.Context, s Store) (*model.User, error) {
	data, err := s.Get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("cached user record is corrupt: %w", err)
	}
	return &u, nil
}

// SaveUser stores the cached user record as JSON.
func SaveUser(ctx context.Context, s Store, u *model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return s.Set(ctx, KeyUser, data)
}

// SaveSession stores the token and user record of a successful login.
// The user is written first so that a token is never visible without its
// user record.
func SaveSession(ctx context.Context, s Store, token string, u *model.User) error {
	if err := SaveUser(ctx, s, u); err != nil {
		return err
	}
	if err := SaveToken(ctx, s, token); err != nil {
		_ = s.Delete(ctx, KeyUser)
		return err
	}
	return nil
}

// Purge removes the session token and user record. The theme preference is
// kept. Both deletes are attempted even if the first fails.
func Purge(ctx context.Context, s Store) error {
	return errors.Join(
		s.Delete(ctx, KeyToken),
		s.Delete(ctx, KeyUser),
	)
}
