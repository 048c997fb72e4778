package tui

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skillcheck-dev/skillcheck/internal/api"
	"github.com/skillcheck-dev/skillcheck/internal/auth"
	"github.com/skillcheck-dev/skillcheck/internal/config"
	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/session"
	"github.com/skillcheck-dev/skillcheck/internal/theme"
	"github.com/skillcheck-dev/skillcheck/internal/tui/styles"
)

// Options wires the TUI to the session manager, backend client and store.
type Options struct {
	Auth    *auth.Manager
	API     *api.Client
	Browser *flow.Browser
	Store   session.Store
	Logger  *logging.Logger

	// Theme forces "light" or "dark". Empty uses the saved preference,
	// then the terminal background.
	Theme string
	// Start is the first path shown; empty means home.
	Start     string
	Editor    string
	ExportDir string
	AltScreen bool

	// ConfigFile is watched for theme changes when set.
	ConfigFile string

	Now    func() time.Time
	Detect theme.Detector
}

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	opts    Options
	ctx     context.Context
}

// New creates a new TUI application
func New(ctx context.Context, opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Detect == nil {
		opts.Detect = lipgloss.HasDarkBackground
	}
	if opts.Browser == nil {
		opts.Browser = flow.NewBrowser(opts.API, flow.WithBrowserLogger(opts.Logger))
	}
	if opts.Start == "" {
		opts.Start = route.PathHome
	}

	e := &env{
		ctx:       ctx,
		auth:      opts.Auth,
		api:       opts.API,
		browser:   opts.Browser,
		store:     opts.Store,
		logger:    opts.Logger.WithComponent("tui"),
		styles:    styles.For(resolveTheme(ctx, opts)),
		now:       opts.Now,
		editor:    opts.Editor,
		exportDir: opts.ExportDir,
	}
	return &App{
		model: newModel(e, opts.Start),
		opts:  opts,
		ctx:   ctx,
	}
}

// resolveTheme picks the configured theme, then the saved preference, then
// the terminal background.
func resolveTheme(ctx context.Context, opts Options) theme.Preference {
	if p, err := theme.Parse(opts.Theme); err == nil && opts.Theme != "" {
		return p
	}
	p, _ := theme.Load(ctx, opts.Store, opts.Detect)
	return p
}

// Run starts the TUI application
func (a *App) Run() error {
	progOpts := []tea.ProgramOption{tea.WithContext(a.ctx)}
	if a.opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	a.program = tea.NewProgram(a.model, progOpts...)

	// Session changes made by background commands, including a 401 seen
	// by the client, reach the model as messages.
	unsubscribe := a.opts.Auth.Subscribe(func(u *model.User) {
		a.program.Send(authChangedMsg{user: u})
	})
	defer unsubscribe()

	if a.opts.ConfigFile != "" {
		w, err := config.NewWatcher(a.opts.ConfigFile, func(c *config.Config) {
			a.program.Send(configChangedMsg{theme: c.TUI.Theme})
		}, func(err error) {
			a.opts.Logger.Warn("config reload failed", "error", err.Error())
		})
		if err != nil {
			a.opts.Logger.Debug("config file not watched", "path", a.opts.ConfigFile, "error", err.Error())
		} else {
			w.Start()
			defer w.Stop()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		if _, ok := <-sigChan; ok && a.program != nil {
			a.program.Send(tea.Quit())
		}
	}()

	a.opts.Logger.Info("tui started", "start", a.opts.Start)
	_, err := a.program.Run()

	signal.Stop(sigChan)
	close(sigChan)

	a.opts.Logger.Info("tui stopped")
	return err
}
