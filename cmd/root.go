package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sautiksau/bookingsync/internal/config"
)

// rootCmd represents the base command for the bookingsync application
var rootCmd = &cobra.Command{
	Use:   "bookingsync",
	Short: "Appointment booking backend with Google Calendar synchronization",
	Long: `bookingsync accepts appointment bookings over HTTP, computes free slots
and keeps the booking ledger in step with a Google Calendar.

It can run as:
  - An HTTP server with periodic calendar import (default)
  - One-shot commands for import, availability and sync status`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// Persistent flags shared by every subcommand.
var (
	configPath string
	logLevel   string
	logFormat  string
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "bookingsync version %s\n" .Version}}`)

	// If no subcommand is provided, run the server by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BOOKINGSYNC_CONFIG"), "Path to a TOML config file (can also be set via BOOKINGSYNC_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newAvailabilityCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads the config file and environment, then applies the
// persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
