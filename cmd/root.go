package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"wirelens/internal/config"
	"wirelens/internal/logger"
)

var version = "1.0.0"

// appConfig is set by Execute before any command runs.
var appConfig = config.Default()

var rootCmd = &cobra.Command{
	Use:   "wirelens",
	Short: "WireLens - read Wi-Fi credentials and name badges from photos",
	Long: `WireLens reads a photo of a Wi-Fi card or a conference name badge, sends it to
Google Cloud Vision for text detection and extracts the field pair:
network name and password, or first name and surname/handle.

Images can be local files or http(s) URLs.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("WireLens executed without a command")

		cmd.Help()
	},
}

// Execute runs the CLI with the loaded configuration.
func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")

	if cfg != nil {
		appConfig = cfg
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
