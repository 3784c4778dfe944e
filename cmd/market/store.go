package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dgnmMarket/internal/config"
	"dgnmMarket/internal/storage"
	"dgnmMarket/internal/storage/badger"
	"dgnmMarket/internal/storage/postgres"
)

// openedStore is a ledger store plus its backend handle for cleanup.
type openedStore struct {
	storage.Store
	badger *badger.Store
	close  func()
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*openedStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.StoreBadger:
		db, err := badger.Open(cfg.BadgerPath, logger.Named("badger"))
		if err != nil {
			return nil, err
		}
		return &openedStore{
			Store:  db,
			badger: db,
			close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("close badger", zap.Error(err))
				}
			},
		}, nil
	case config.StorePostgres:
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &openedStore{Store: pg, close: pg.Close}, nil
	default:
		logger.Warn("using in-memory store, the ledger is lost on exit")
		return &openedStore{Store: storage.NewMemoryStore(), close: func() {}}, nil
	}
}
