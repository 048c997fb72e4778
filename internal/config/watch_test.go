package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tui:\n  theme: dark\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("tui:\n  theme: light\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.TUI.Theme != "light" {
			t.Errorf("TUI.Theme = %q, want light", c.TUI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the config file changed")
	}
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tui:\n  theme: dark\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 1)
	w, err := NewWatcher(path, func(*Config) {
		t.Error("onChange called for an invalid theme")
	}, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("tui:\n  theme: purple\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-errs:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a validation error")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "config.yaml"), func(*Config) {}, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	w.Stop()
	w.Stop()
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano")

	cfg := Default()
	if got := cfg.EditorCommand(); got != "nano" {
		t.Errorf("EditorCommand() = %q, want nano", got)
	}
	cfg.TUI.Editor = "code --wait"
	if got := cfg.EditorCommand(); got != "code --wait" {
		t.Errorf("EditorCommand() = %q, want the configured editor", got)
	}

	t.Setenv("EDITOR", "")
	if got := Default().EditorCommand(); got != "vi" {
		t.Errorf("EditorCommand() fallback = %q, want vi", got)
	}
}

func TestExportDir(t *testing.T) {
	cfg := Default()
	if got := cfg.ExportDir(); got != "." {
		t.Errorf("ExportDir() = %q, want .", got)
	}
	cfg.TUI.ExportDir = "/tmp/exports"
	if got := cfg.ExportDir(); got != "/tmp/exports" {
		t.Errorf("ExportDir() = %q", got)
	}
}
