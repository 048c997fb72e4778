package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillcheck-dev/skillcheck/internal/config"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/theme"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify skillcheck configuration",
	Long: `View or modify skillcheck configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  skillcheck config set api.base_url https://skills.example.com/api
  skillcheck config set tui.theme dark
  skillcheck config set logging.level debug

Valid keys:
  api.base_url          - Backend API root
  api.timeout           - Request timeout (e.g. 15s)
  api.rate_limit        - Max requests per second (0 disables)
  api.rate_burst        - Requests allowed in a burst
  session.dir           - Directory holding the session token
  tui.theme             - light, dark, or empty to use the stored choice
  tui.alt_screen        - Use the alternate screen (true/false)
  tui.editor            - Command used to edit assessment drafts
  tui.export_dir        - Directory for PDF exports
  logging.level         - debug, info, warn or error
  logging.dir           - Log directory
  logging.max_size_mb   - Rotate the log file at this size
  logging.max_backups   - Rotated files to keep
  logging.max_age_days  - Remove rotated files older than this
  logging.compress      - Gzip rotated files (true/false)
  dev.addr              - Development backend listen address
  dev.token_ttl         - Development token lifetime (e.g. 24h)
  dev.seed              - Seed the development backend (true/false)
  dev.sample_fallback   - Show sample assessments when offline (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/skillcheck/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "api:")
	fmt.Fprintf(out, "  base_url: %s\n", cfg.BaseURL())
	fmt.Fprintf(out, "  timeout: %s\n", cfg.API.Timeout)
	fmt.Fprintf(out, "  rate_limit: %g\n", cfg.API.RateLimit)
	fmt.Fprintf(out, "  rate_burst: %d\n", cfg.API.RateBurst)

	fmt.Fprintln(out, "session:")
	fmt.Fprintf(out, "  dir: %s\n", cfg.SessionDir())

	fmt.Fprintln(out, "tui:")
	fmt.Fprintf(out, "  theme: %q\n", cfg.TUI.Theme)
	fmt.Fprintf(out, "  alt_screen: %v\n", cfg.TUI.AltScreen)
	fmt.Fprintf(out, "  editor: %s\n", cfg.EditorCommand())
	fmt.Fprintf(out, "  export_dir: %s\n", cfg.ExportDir())

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  dir: %s\n", cfg.LogDir())
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  max_age_days: %d\n", cfg.Logging.MaxAgeDays)
	fmt.Fprintf(out, "  compress: %v\n", cfg.Logging.Compress)

	fmt.Fprintln(out, "dev:")
	fmt.Fprintf(out, "  addr: %s\n", cfg.Dev.Addr)
	fmt.Fprintf(out, "  token_ttl: %s\n", cfg.Dev.TokenTTL)
	fmt.Fprintf(out, "  seed: %v\n", cfg.Dev.Seed)
	fmt.Fprintf(out, "  cors_origins: %s\n", strings.Join(cfg.Dev.CORSOrigins, ", "))
	fmt.Fprintf(out, "  sample_fallback: %v\n", cfg.Dev.SampleFallback)

	return nil
}

// configKeys maps each settable key to its value type.
var configKeys = map[string]string{
	"api.base_url":         "string",
	"api.timeout":          "duration",
	"api.rate_limit":       "float",
	"api.rate_burst":       "int",
	"session.dir":          "string",
	"tui.theme":            "theme",
	"tui.alt_screen":       "bool",
	"tui.editor":           "string",
	"tui.export_dir":       "string",
	"logging.level":        "level",
	"logging.dir":          "string",
	"logging.max_size_mb":  "int",
	"logging.max_backups":  "int",
	"logging.max_age_days": "int",
	"logging.compress":     "bool",
	"dev.addr":             "string",
	"dev.token_ttl":        "duration",
	"dev.seed":             "bool",
	"dev.sample_fallback":  "bool",
}

// parseConfigValue converts value to the type key expects.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := configKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'skillcheck config set --help' to see valid keys", key)
	}

	switch keyType {
	case "theme":
		if value == "" {
			return "", nil
		}
		p, err := theme.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: light, dark, or empty", key, value)
		}
		return string(p), nil
	case "level":
		level := strings.ToLower(value)
		for _, l := range logging.ValidLevels() {
			if strings.EqualFold(l, level) {
				return level, nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: debug, info, warn, error", key, value)
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return intVal, nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid value for %s: expected a non-negative number", key)
		}
		return f, nil
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 15s", key)
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if used := viper.ConfigFileUsed(); used != "" {
		configFile = used
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

const defaultConfigContent = `# skillcheck configuration

# Backend API
api:
  # Root of the REST API; endpoint paths are resolved under it
  base_url: http://localhost:8000/api
  # Upper bound for every request
  timeout: 15s
  # Client-side throttle in requests per second (0 disables)
  rate_limit: 10
  rate_burst: 5

# Where the session token and cached user record are stored
# (default: ~/.config/skillcheck/session)
session:
  dir: ""

# Terminal UI
tui:
  # light or dark; empty uses the stored choice, then the terminal background
  theme: ""
  alt_screen: true
  # Command used to edit assessment drafts (default: $VISUAL, then $EDITOR)
  editor: ""
  # Directory for PDF result exports (default: current directory)
  export_dir: ""

# Debug log (JSON lines, rotated)
logging:
  level: info
  dir: ""
  max_size_mb: 10
  max_backups: 3
  max_age_days: 28
  compress: true

# Development backend (skillcheck devserver)
dev:
  addr: ":8000"
  token_ttl: 24h
  seed: true
  cors_origins: ["*"]
  # Show built-in sample assessments, clearly labelled, when the backend
  # cannot be reached
  sample_fallback: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'skillcheck config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize skillcheck's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: SKILLCHECK_* (e.g., SKILLCHECK_API_BASE_URL)")
	fmt.Fprintln(out, "A .env file in the current directory is loaded first.")

	return nil
}
