package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parking-slot-reservation/internal/database"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreBackend == "memory" {
			return errors.New("migrate needs STORE_BACKEND=mysql")
		}
		db, err := database.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if rollbackSteps > 0 {
			v, err := database.Rollback(db, rollbackSteps)
			if err != nil {
				return err
			}
			logger.Info("migrations rolled back", "steps", rollbackSteps, "version", v)
			return nil
		}
		v, err := database.Migrate(db)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "version", v)
		return nil
	},
}

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "down", 0, "roll back this many migrations instead of applying")
}
