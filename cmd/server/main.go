package main // Entry point package

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
)

var (
	cfg    config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "parkd <command>",
	Short: "Parking slot reservation backend",
	// Configuration is loaded once for every subcommand; missing required
	// variables abort here.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		logger = logging.New(cfg.Logging)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(consumeEventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
