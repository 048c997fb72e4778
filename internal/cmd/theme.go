package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/skillcheck-dev/skillcheck/internal/theme"
)

var themeCmd = &cobra.Command{
	Use:   "theme [light|dark|toggle]",
	Short: "Show or change the color theme",
	Long: `Show or change the stored color theme used by the interactive UI.

Without an argument the current theme is printed. The tui.theme config key,
when set, takes precedence over the stored choice.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE:      withDeps(runTheme),
}

func init() {
	rootCmd.AddCommand(themeCmd)
}

func runTheme(cmd *cobra.Command, args []string, d *deps) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		p, saved := theme.Load(ctx, d.store, lipgloss.HasDarkBackground)
		source := "stored"
		if !saved {
			source = "detected from the terminal"
		}
		fmt.Fprintf(out, "Theme: %s (%s)\n", p, source)
		if d.cfg.TUI.Theme != "" {
			fmt.Fprintf(out, "The config file forces %s.\n", d.cfg.TUI.Theme)
		}
		return nil
	}

	var next theme.Preference
	if args[0] == "toggle" {
		p, err := theme.Toggle(ctx, d.store, lipgloss.HasDarkBackground)
		if err != nil {
			return err
		}
		next = p
	} else {
		p, err := theme.Parse(args[0])
		if err != nil {
			return err
		}
		if err := theme.Save(ctx, d.store, p); err != nil {
			return err
		}
		next = p
	}
	fmt.Fprintf(out, "Theme set to %s.\n", next)
	return nil
}
