package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-sessiond/sessiond/internal/config"
	"github.com/go-sessiond/sessiond/internal/store"
)

// initializeDatabase opens the session store and runs migrations.
func initializeDatabase(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN, cfg.SessionMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	log.Printf("Session store ready (driver: %s)", cfg.DatabaseDriver)
	return db, nil
}
