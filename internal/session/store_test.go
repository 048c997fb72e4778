package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// =============================================================================
// Test Helpers
// =============================================================================

// stores returns one instance of every Store implementation.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return map[string]Store{
		"file":   fs,
		"memory": NewMemoryStore(),
	}
}

// =============================================================================
// Store contract
// =============================================================================

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, KeyToken, []byte("abc")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, err := s.Get(ctx, KeyToken)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != "abc" {
				t.Errorf("Get = %q, want abc", got)
			}

			if err := s.Set(ctx, KeyToken, []byte("def")); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			got, _ = s.Get(ctx, KeyToken)
			if string(got) != "def" {
				t.Errorf("Get after overwrite = %q, want def", got)
			}

			if err := s.Delete(ctx, KeyToken); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := s.Delete(ctx, KeyToken); err != nil {
				t.Errorf("Delete of missing key = %v, want nil", err)
			}
			if _, err := s.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after Delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_ = s.Set(ctx, KeyToken, []byte("tok"))
				}()
				go func() {
					defer wg.Done()
					if _, err := s.Get(ctx, KeyToken); err != nil && !errors.Is(err, ErrNotFound) {
						t.Errorf("Get failed: %v", err)
					}
				}()
			}
			wg.Wait()
		})
	}
}

// =============================================================================
// FileStore
// =============================================================================

func TestFileStore_NewFileStore_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "session")

	if _, err := NewFileStore(dir); err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, _ := NewFileStore(dir)
	if err := first.Set(ctx, KeyTheme, []byte("dark")); err != nil {
		t.Fatal(err)
	}

	second, _ := NewFileStore(dir)
	got, err := second.Get(ctx, KeyTheme)
	if err != nil {
		t.Fatalf("Get from new instance failed: %v", err)
	}
	if string(got) != "dark" {
		t.Errorf("Get = %q, want dark", got)
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	ctx := context.Background()
	fs, _ := NewFileStore(t.TempDir())

	if err := fs.Set(ctx, KeyToken, []byte("secret")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(fs.Dir(), KeyToken))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	entries, _ := os.ReadDir(fs.Dir())
	for _, e := range entries {
		if e.Name() != KeyToken {
			t.Errorf("unexpected leftover file %q", e.Name())
		}
	}
}

func TestFileStore_RejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	fs, _ := NewFileStore(t.TempDir())

	for _, key := range []string{"", "../escape", "a/b", `a\b`, ".tmp-1"} {
		t.Run(key, func(t *testing.T) {
			if err := fs.Set(ctx, key, []byte("x")); err == nil {
				t.Errorf("Set(%q) succeeded, want error", key)
			}
			if _, err := fs.Get(ctx, key); err == nil || errors.Is(err, ErrNotFound) {
				t.Errorf("Get(%q) = %v, want key error", key, err)
			}
		})
	}
}

// =============================================================================
// MemoryStore
// =============================================================================

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	buf := []byte("abc")
	_ = m.Set(ctx, KeyToken, buf)
	buf[0] = 'x'

	got, _ := m.Get(ctx, KeyToken)
	if string(got) != "abc" {
		t.Errorf("stored value changed through caller's slice: %q", got)
	}
	if len(m.Keys()) != 1 {
		t.Errorf("Keys() = %v", m.Keys())
	}
}

// =============================================================================
// Session helpers
// =============================================================================

func TestSessionHelpers_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			user := &model.User{ID: 7, Username: "ada", Email: "ada@example.com", Role: model.RoleAdmin}

			if err := SaveSession(ctx, s, "tok-1", user); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}
			if err := s.Set(ctx, KeyTheme, []byte("light")); err != nil {
				t.Fatal(err)
			}

			tok, err := Token(ctx, s)
			if err != nil || tok != "tok-1" {
				t.Errorf("Token() = %q, %v", tok, err)
			}
			got, err := User(ctx, s)
			if err != nil {
				t.Fatalf("User() failed: %v", err)
			}
			if got.ID != 7 || got.Role != model.RoleAdmin {
				t.Errorf("User() = %+v, want id 7 admin", got)
			}

			if err := Purge(ctx, s); err != nil {
				t.Fatalf("Purge failed: %v", err)
			}
			if tok, _ := Token(ctx, s); tok != "" {
				t.Errorf("token survived Purge: %q", tok)
			}
			if _, err := User(ctx, s); !errors.Is(err, ErrNotFound) {
				t.Errorf("User() after Purge = %v, want ErrNotFound", err)
			}
			if theme, err := s.Get(ctx, KeyTheme); err != nil || string(theme) != "light" {
				t.Errorf("theme should survive Purge, got %q, %v", theme, err)
			}
		})
	}
}

func TestUser_Corrupt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, KeyUser, []byte("{not json"))

	if _, err := User(ctx, s); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("User() = %v, want decode error", err)
	}
}

func TestToken_TrimsWhitespace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, KeyToken, []byte("tok\n"))

	if tok, _ := Token(ctx, s); tok != "tok" {
		t.Errorf("Token() = %q, want tok", tok)
	}
}
