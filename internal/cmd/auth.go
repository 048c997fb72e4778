package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/model"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the assessment platform",
	Long: `Log in with your email and password. The session is stored under the
session directory and reused by every other command until it expires or
you log out.`,
	Args: cobra.NoArgs,
	RunE: withDeps(runLogin),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runLogout),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long: `Create an account. Registration does not log you in; run
'skillcheck login' afterwards.`,
	Args: cobra.NoArgs,
	RunE: withDeps(runRegister),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runWhoami),
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password <email>",
	Short: "Request a password reset email",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runForgotPassword),
}

const forgotResetMsg = "If an account exists for that email, a reset link is on its way."

var (
	loginEmail    string
	registerName  string
	registerEmail string
	registerAdmin bool
	whoamiRefresh bool
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(forgotPasswordCmd)

	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email (prompted when empty)")

	registerCmd.Flags().StringVar(&registerName, "name", "", "full name (prompted when empty)")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email (prompted when empty)")
	registerCmd.Flags().BoolVar(&registerAdmin, "admin", false, "request the administrator role")

	whoamiCmd.Flags().BoolVar(&whoamiRefresh, "refresh", false, "reload the user record from the server")
}

func runLogin(cmd *cobra.Command, args []string, d *deps) error {
	p := newPrompter(cmd)

	email := strings.TrimSpace(loginEmail)
	var err error
	if email == "" {
		if email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	password, err := p.secret("Password: ")
	if err != nil {
		return err
	}
	if email == "" || password == "" {
		return fmt.Errorf("please fill in all fields")
	}

	res := d.auth.Login(cmd.Context(), email, password)
	if !res.Success {
		return errors.New(res.Message)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Welcome back, %s (%s)\n", res.User.DisplayName(), res.User.EffectiveRole())
	return nil
}

func runLogout(cmd *cobra.Command, args []string, d *deps) error {
	if err := d.auth.Logout(cmd.Context()); err != nil {
		d.logger.Warn("session store not fully purged", "error", err.Error())
	}
	fmt.Fprintln(cmd.OutOrStdout(), "You have been logged out.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string, d *deps) error {
	p := newPrompter(cmd)

	name, email := strings.TrimSpace(registerName), strings.TrimSpace(registerEmail)
	var err error
	if name == "" {
		if name, err = p.line("Full name: "); err != nil {
			return err
		}
	}
	if email == "" {
		if email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	password, err := p.secret("Password: ")
	if err != nil {
		return err
	}
	confirm, err := p.secret("Confirm password: ")
	if err != nil {
		return err
	}

	if name == "" || email == "" || password == "" {
		return fmt.Errorf("please fill in all fields")
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	res := d.auth.Register(cmd.Context(), name, email, password, registerAdmin)
	if !res.Success {
		lines := append([]string{res.Message}, errors.FieldLines(res.Errors)...)
		return errors.New(strings.Join(lines, "\n  "))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Registration successful. Log in with 'skillcheck login'.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string, d *deps) error {
	u, err := d.requireUser()
	if err != nil {
		return err
	}
	if whoamiRefresh {
		if u, err = d.auth.Refresh(cmd.Context()); err != nil {
			return err
		}
	}
	printUser(cmd, u)
	return nil
}

func printUser(cmd *cobra.Command, u *model.User) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:     %s\n", u.DisplayName())
	fmt.Fprintf(out, "Username: %s\n", u.Username)
	fmt.Fprintf(out, "Email:    %s\n", u.Email)
	fmt.Fprintf(out, "Role:     %s\n", u.EffectiveRole())
}

func runForgotPassword(cmd *cobra.Command, args []string, d *deps) error {
	email := strings.TrimSpace(args[0])
	if email == "" {
		return fmt.Errorf("please enter your email")
	}
	if err := d.api.ForgotPassword(cmd.Context(), email); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), forgotResetMsg)
	return nil
}
