package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skillcheck-dev/skillcheck/internal/api"
	"github.com/skillcheck-dev/skillcheck/internal/auth"
	"github.com/skillcheck-dev/skillcheck/internal/config"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/session"
)

// deps holds the services a command works with, built from the loaded
// configuration.
type deps struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   session.Store
	api     *api.Client
	auth    *auth.Manager
	browser *flow.Browser
}

// loadDeps builds the service graph. The session is not restored yet.
func loadDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLoggerWithRotation(cfg.LogDir(), cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	store, err := session.NewFileStore(cfg.SessionDir())
	if err != nil {
		_ = logger.Close()
		return nil, errors.Wrap(err, "failed to open session store")
	}

	client, err := api.New(cfg.BaseURL(), store,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		api.WithLogger(logger),
	)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	mgr := auth.NewManager(store, client, auth.WithLogger(logger))
	client.SetUnauthorizedHandler(mgr.Invalidate)

	return &deps{
		cfg:    cfg,
		logger: logger,
		store:  store,
		api:    client,
		auth:   mgr,
		browser: flow.NewBrowser(client,
			flow.WithSampleFallback(cfg.Dev.SampleFallback),
			flow.WithBrowserLogger(logger),
		),
	}, nil
}

func (d *deps) Close() {
	_ = d.logger.Close()
}

// requireUser returns the logged-in user or a hint to log in.
func (d *deps) requireUser() (*model.User, error) {
	u, _ := d.auth.Current()
	if u == nil {
		return nil, fmt.Errorf("not logged in; run 'skillcheck login' first")
	}
	return u, nil
}

// requireAdmin is requireUser for administrator commands.
func (d *deps) requireAdmin() (*model.User, error) {
	u, err := d.requireUser()
	if err != nil {
		return nil, err
	}
	if !u.IsAdminUser() {
		return nil, fmt.Errorf("this command requires an administrator account")
	}
	return u, nil
}

// withDeps adapts a command body that needs the service graph and the
// restored session to RunE.
func withDeps(run func(cmd *cobra.Command, args []string, d *deps) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps()
		if err != nil {
			return err
		}
		defer d.Close()
		d.auth.Initialize(cmd.Context())
		if err := run(cmd, args, d); err != nil {
			d.logger.Debug("command failed", "command", cmd.CommandPath(), "error", err.Error())
			return userError(err)
		}
		return nil
	}
}

// userError replaces backend and transport errors with their user-facing
// message. Errors built by the commands themselves pass through.
func userError(err error) error {
	var apiErr *errors.APIError
	var netErr *errors.NetworkError
	var subErr *errors.SubmissionError
	if errors.As(err, &apiErr) || errors.As(err, &netErr) || errors.As(err, &subErr) {
		return errors.New(errors.UserMessage(err))
	}
	return err
}

// prompter reads answers from the command's input. Secrets are read
// without echo when the input is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{
		in:  bufio.NewReader(cmd.InOrStdin()),
		out: cmd.OutOrStdout(),
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// line prints label and returns the trimmed answer.
func (p *prompter) line(label string) (string, error) {
	_, _ = fmt.Fprint(p.out, label)
	s, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		if err == io.EOF {
			return "", fmt.Errorf("no input for %q", strings.TrimSuffix(strings.TrimSpace(label), ":"))
		}
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// secret is line without echo.
func (p *prompter) secret(label string) (string, error) {
	if !p.tty {
		return p.line(label)
	}
	_, _ = fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	_, _ = fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// confirm asks a yes/no question; anything but y or yes is no.
func (p *prompter) confirm(label string) (bool, error) {
	s, err := p.line(label + " [y/N]: ")
	if err != nil {
		return false, err
	}
	s = strings.ToLower(s)
	return s == "y" || s == "yes", nil
}
