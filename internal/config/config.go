package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the backend used when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// Config represents the complete skillcheck configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	TUI     TUIConfig     `mapstructure:"tui"`
	Logging LoggingConfig `mapstructure:"logging"`
	Dev     DevConfig     `mapstructure:"dev"`
}

// APIConfig controls how the client talks to the assessment backend
type APIConfig struct {
	// BaseURL is the backend root, e.g. "https://skills.example.com/api".
	// It is normalized to end with "/" before use.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds every request
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second (0 disables throttling)
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the number of requests allowed in a burst
	RateBurst int `mapstructure:"rate_burst"`
}

// SessionConfig controls where the session token and cached user live
type SessionConfig struct {
	// Dir is the directory holding the token, user and theme keys.
	// Empty means ConfigDir()/session.
	Dir string `mapstructure:"dir"`
}

// TUIConfig controls the terminal UI
type TUIConfig struct {
	// Theme forces "light" or "dark". Empty uses the saved preference,
	// then the terminal background.
	Theme string `mapstructure:"theme"`
	// AltScreen runs the TUI in the terminal's alternate screen
	AltScreen bool `mapstructure:"alt_screen"`
	// Editor edits assessment drafts. Empty uses $VISUAL, then $EDITOR.
	Editor string `mapstructure:"editor"`
	// ExportDir receives PDF result exports. Empty means the working directory.
	ExportDir string `mapstructure:"export_dir"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is the log directory. Empty means ConfigDir()/logs.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// MaxAgeDays prunes rotated files older than this (0 keeps them)
	MaxAgeDays int `mapstructure:"max_age_days"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// DevConfig controls the development backend and development-only affordances
type DevConfig struct {
	// Addr is the listen address for `skillcheck devserver`
	Addr string `mapstructure:"addr"`
	// JWTSecret signs development tokens. Empty generates one per run.
	JWTSecret string `mapstructure:"jwt_secret"`
	// TokenTTL is the lifetime of issued development tokens
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// Seed loads the sample users, languages and assessments on start
	Seed bool `mapstructure:"seed"`
	// CORSOrigins lists origins allowed to call the development backend
	CORSOrigins []string `mapstructure:"cors_origins"`
	// SampleFallback shows built-in sample assessments, clearly labelled,
	// when the backend cannot be reached. Off by default.
	SampleFallback bool `mapstructure:"sample_fallback"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   15 * time.Second,
			RateLimit: 10,
			RateBurst: 5,
		},
		TUI: TUIConfig{
			AltScreen: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Dev: DevConfig{
			Addr:        ":8000",
			TokenTTL:    24 * time.Hour,
			Seed:        true,
			CORSOrigins: []string{"*"},
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("api.base_url", defaults.API.BaseURL)
	viper.SetDefault("api.timeout", defaults.API.Timeout)
	viper.SetDefault("api.rate_limit", defaults.API.RateLimit)
	viper.SetDefault("api.rate_burst", defaults.API.RateBurst)

	viper.SetDefault("session.dir", defaults.Session.Dir)

	viper.SetDefault("tui.theme", defaults.TUI.Theme)
	viper.SetDefault("tui.alt_screen", defaults.TUI.AltScreen)
	viper.SetDefault("tui.editor", defaults.TUI.Editor)
	viper.SetDefault("tui.export_dir", defaults.TUI.ExportDir)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("dev.addr", defaults.Dev.Addr)
	viper.SetDefault("dev.jwt_secret", defaults.Dev.JWTSecret)
	viper.SetDefault("dev.token_ttl", defaults.Dev.TokenTTL)
	viper.SetDefault("dev.seed", defaults.Dev.Seed)
	viper.SetDefault("dev.cors_origins", defaults.Dev.CORSOrigins)
	viper.SetDefault("dev.sample_fallback", defaults.Dev.SampleFallback)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// NormalizeBaseURL trims whitespace and guarantees a single trailing slash,
// so relative endpoint paths resolve under the API root.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	return strings.TrimRight(raw, "/") + "/"
}

// BaseURL returns the normalized API base URL.
func (c *Config) BaseURL() string {
	return NormalizeBaseURL(c.API.BaseURL)
}

// SessionDir returns the session store directory.
func (c *Config) SessionDir() string {
	if c.Session.Dir != "" {
		return expandHome(c.Session.Dir)
	}
	return filepath.Join(ConfigDir(), "session")
}

// LogDir returns the log directory.
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return expandHome(c.Logging.Dir)
	}
	return filepath.Join(ConfigDir(), "logs")
}

// EditorCommand returns the command used to edit drafts.
func (c *Config) EditorCommand() string {
	for _, v := range []string{c.TUI.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "vi"
}

// ExportDir returns the directory PDF exports are written to.
func (c *Config) ExportDir() string {
	if c.TUI.ExportDir != "" {
		return expandHome(c.TUI.ExportDir)
	}
	return "."
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "skillcheck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skillcheck"
	}
	return filepath.Join(home, ".config", "skillcheck")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidThemes returns the accepted values of tui.theme
func ValidThemes() []string {
	return []string{"", "light", "dark"}
}
