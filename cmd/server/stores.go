package main

import (
	"database/sql"
	"fmt"

	"github.com/iliyamo/parking-slot-reservation/internal/database"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
	"github.com/iliyamo/parking-slot-reservation/internal/slot"
)

// slotSeedStore is what both slot backends offer.
type slotSeedStore interface {
	slot.Store
	repository.SlotSeeder
}

// stores bundles the persistence chosen by STORE_BACKEND.  db is nil for the
// memory backend.
type stores struct {
	db     *sql.DB
	slots  slotSeedStore
	users  repository.UserStore
	tokens repository.TokenStore
}

func openStores() (*stores, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store; state is lost on restart")
		return &stores{
			slots:  repository.NewMemorySlotStore(),
			users:  repository.NewMemoryUserStore(),
			tokens: repository.NewMemoryTokenStore(),
		}, nil
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return &stores{
		db:     db,
		slots:  repository.NewSlotRepo(db),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
	}, nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
