package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/repository"
)

// OpenStore builds the document store selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.TxStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory, "":
		logger.Warn("using in-memory document store; data is lost on restart")
		return NewMemoryStore(), nil
	case config.DriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return NewPostgresStore(pool), nil
	case config.DriverMongo:
		store, err := NewMongoStore(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		logger.Info("opening sqlite store", zap.String("path", cfg.SQLite.Path))
		store, err := NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
}
