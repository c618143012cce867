package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parking-slot-reservation/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial slots and admin account",
	Long: `Loads SEED_FILE, or the built-in fixture when it is unset, and inserts
every slot and user that does not exist yet.  Running it twice is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreBackend == "memory" {
			return errors.New("seed needs STORE_BACKEND=mysql; the memory backend seeds itself on serve")
		}
		st, err := openStores()
		if err != nil {
			return err
		}
		defer st.Close()
		return runSeed(cmd.Context(), st)
	},
}

func runSeed(ctx context.Context, st *stores) error {
	seed, err := repository.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return seed.Apply(ctx, st.slots, st.users, cfg.BcryptCost, logger)
}
