package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skillcheck-dev/skillcheck/internal/config"
	"github.com/skillcheck-dev/skillcheck/internal/devserver"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the in-memory development backend",
	Long: `Run a development backend implementing the platform's REST API in
memory. It is seeded with an administrator, a regular user and sample
assessments so the client can be tried end to end:

  skillcheck devserver &
  skillcheck login --email user@example.com

Data is lost when the server stops. Do not expose it to a network.`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

var (
	devAddr   string
	devNoSeed bool
)

func init() {
	rootCmd.AddCommand(devserverCmd)

	devserverCmd.Flags().StringVar(&devAddr, "addr", "", "listen address (default dev.addr)")
	devserverCmd.Flags().BoolVar(&devNoSeed, "no-seed", false, "start with no users or assessments")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The server logs requests to stderr so they can be watched live.
	logger := logging.NewWriterLogger(os.Stderr, cfg.Logging.Level)

	addr := cfg.Dev.Addr
	if devAddr != "" {
		addr = devAddr
	}
	seed := cfg.Dev.Seed && !devNoSeed

	srv, err := devserver.New(devserver.Options{
		Secret:      cfg.Dev.JWTSecret,
		TokenTTL:    cfg.Dev.TokenTTL,
		Seed:        seed,
		CORSOrigins: cfg.Dev.CORSOrigins,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devserver.Banner(cmd.OutOrStdout(), addr, seed)
	return srv.ListenAndServe(ctx, addr)
}
