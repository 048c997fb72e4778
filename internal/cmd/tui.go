package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillcheck-dev/skillcheck/internal/route"
	"github.com/skillcheck-dev/skillcheck/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Open the interactive terminal UI. This is also what running skillcheck
without a command does.

Examples:
  skillcheck tui
  skillcheck tui --start /assessments
  skillcheck tui --theme light`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

var (
	tuiStart string
	tuiTheme string
)

func init() {
	rootCmd.AddCommand(tuiCmd)
	addTUIFlags(tuiCmd)
}

// addTUIFlags registers the UI flags on c. The root command and tui share
// them.
func addTUIFlags(c *cobra.Command) {
	c.Flags().StringVar(&tuiStart, "start", route.PathHome, "path of the first view, e.g. /assessments")
	c.Flags().StringVar(&tuiTheme, "theme", "", "force the light or dark theme for this run")
}

func runTUI(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	themeName := d.cfg.TUI.Theme
	if tuiTheme != "" {
		themeName = tuiTheme
	}
	if _, _, ok := route.Match(tuiStart); !ok {
		return fmt.Errorf("unknown start path %q", tuiStart)
	}

	app := tui.New(cmd.Context(), tui.Options{
		Auth:       d.auth,
		API:        d.api,
		Browser:    d.browser,
		Store:      d.store,
		Logger:     d.logger,
		Theme:      themeName,
		Start:      tuiStart,
		Editor:     d.cfg.EditorCommand(),
		ExportDir:  d.cfg.ExportDir(),
		AltScreen:  d.cfg.TUI.AltScreen,
		ConfigFile: viper.ConfigFileUsed(),
		Now:        time.Now,
	})
	return app.Run()
}
