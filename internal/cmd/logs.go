package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillcheck-dev/skillcheck/internal/config"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the debug log",
	Long: `View and filter the skillcheck debug log.

By default, shows the last 50 entries. Use flags to filter and format the
output.

Examples:
  # Show the last 50 entries
  skillcheck logs

  # Show everything
  skillcheck logs -n 0

  # Follow the log in real-time
  skillcheck logs -f

  # Filter by log level
  skillcheck logs --level warn

  # Show entries from the last hour of the api component
  skillcheck logs --since 1h --component api

  # Search for specific patterns
  skillcheck logs --grep "failed|rejected"

  # Export as CSV
  skillcheck logs -n 0 --format csv > skillcheck-log.csv`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsComponent string
	logsGrep      string
	logsFormat    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only entries from this component (api, auth, flow, tui)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format: text, json or csv")
}

// logQuery is the parsed form of the logs flags.
type logQuery struct {
	filter logging.LogFilter
	grep   *regexp.Regexp
}

func newLogQuery(now time.Time) (*logQuery, error) {
	q := &logQuery{filter: logging.LogFilter{Component: logsComponent}}

	if logsLevel != "" {
		q.filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return nil, fmt.Errorf("invalid duration format: %w", err)
		}
		q.filter.Since = now.Add(-duration)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return nil, fmt.Errorf("invalid grep pattern: %w", err)
		}
		q.grep = re
	}
	return q, nil
}

// apply filters entries, searching the message and attributes for the
// grep pattern.
func (q *logQuery) apply(entries []logging.LogEntry) []logging.LogEntry {
	entries = logging.FilterLogs(entries, q.filter)
	if q.grep == nil {
		return entries
	}
	var matched []logging.LogEntry
	for _, e := range entries {
		text := e.Message
		for _, v := range e.Attrs {
			text += " " + fmt.Sprintf("%v", v)
		}
		if q.grep.MatchString(text) {
			matched = append(matched, e)
		}
	}
	return matched
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logDir := cfg.LogDir()
	out := cmd.OutOrStdout()

	q, err := newLogQuery(time.Now())
	if err != nil {
		return err
	}

	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, out, filepath.Join(logDir, logging.FileName), q)
	}

	entries, err := logging.ReadLogs(logDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(out, "No logs found.")
			fmt.Fprintln(out, "Logs are stored at:", filepath.Join(logDir, logging.FileName))
			return nil
		}
		return err
	}

	entries = q.apply(entries)
	// Apply tail limit
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	return logging.WriteEntries(out, entries, logsFormat)
}

// followLogs implements tail -f behavior for the log file
func followLogs(ctx context.Context, out io.Writer, logPath string, q *logQuery) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return fmt.Errorf("error reading log file: %w", err)
			}
			// No new data, wait briefly and try again
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		entries, err := logging.ParseLogs(strings.NewReader(line))
		if err != nil || len(entries) == 0 {
			continue
		}
		if entries = q.apply(entries); len(entries) > 0 {
			if err := logging.WriteEntries(out, entries, logsFormat); err != nil {
				return err
			}
		}
	}
}
