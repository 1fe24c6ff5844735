package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/contactdesk/internal/config"
	"github.com/2beens/contactdesk/internal/db"
	"github.com/2beens/contactdesk/internal/store"
)

// OpenStore opens the store selected by cfg.DBDriver. The pgx pool is
// returned too when postgres is used, nil otherwise; closing the store
// closes the pool.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, *pgxpool.Pool, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         cfg.PostgresUser,
			DBPassword:     cfg.PostgresPassword,
			TracingEnabled: cfg.HoneycombEnabled,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}
		return store.NewPsqlStore(dbPool), dbPool, nil
	case config.DriverSQLite:
		sqliteStore, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqliteStore, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown db driver: %s", cfg.DBDriver)
	}
}
