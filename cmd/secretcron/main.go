package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"github.com/systmms/secretcron/cmd/secretcron/commands"
	"github.com/systmms/secretcron/internal/config"
	"github.com/systmms/secretcron/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Wipe sealed credentials on the way out.
	defer memguard.Purge()

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "secretcron",
		Short: "Mirror rotating secrets into a local cache on the rotation schedule",
		Long: `secretcron keeps a local cache of secrets that a secret store rotates.

The check command runs from a one-shot crontab entry. It refreshes a secret
when its rotation date has passed, emails the operator and re-arms itself for
the next rotation date.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.PathRequired = cmd.Flags().Changed("config")
			cfg.Logger = logging.New(debug, noColor)
			cfg.Out = cmd.OutOrStdout()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath(), "Dotenv file with settings")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewCheckCommand(cfg),
		commands.NewRefreshCommand(cfg),
		commands.NewStatusCommand(cfg),
		commands.NewTriggersCommand(cfg),
		commands.NewHistoryCommand(cfg),
		commands.NewDoctorCommand(cfg),
	)

	return rootCmd.Execute()
}
