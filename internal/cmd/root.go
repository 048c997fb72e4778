package cmd

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillcheck-dev/skillcheck/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "skillcheck",
	Short: "Take programming skill assessments from the terminal",
	Long: `skillcheck is a terminal client for the skills-assessment platform.

Run it without a command to open the interactive UI, or use the commands
below to log in, browse and take assessments, review results and manage
the catalog as an administrator.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/skillcheck/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	addTUIFlags(rootCmd)
}

func initConfig() {
	// A project-local .env may carry SKILLCHECK_* overrides; it is optional.
	_ = godotenv.Load()

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SKILLCHECK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SKILLCHECK_API_BASE_URL for api.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
