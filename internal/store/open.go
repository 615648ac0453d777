package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lovetingyuan/bili-live/internal/config"
	"github.com/lovetingyuan/bili-live/internal/db"
)

// Open builds the backend selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using in-memory store; state is lost on restart")
		return NewMemory(), nil

	case config.StoreSQLite:
		s, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("SQLite store opened", "path", cfg.SQLitePath)
		return s, nil

	case config.StorePostgres:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("Postgres store connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
		return NewPostgres(pool), nil

	case config.StoreNATS:
		s, err := NewNATS(ctx, cfg.NATSURL, cfg.NATSBucket, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("NATS KV store connected", "url", cfg.NATSURL, "bucket", cfg.NATSBucket)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
