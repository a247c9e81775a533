package store

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"unirag/internal/apperr"
	"unirag/internal/config"
)

// Connect opens the Postgres connection shared by the document registry, the
// conversation store and the pgvector chunk store.
func Connect(cfg *config.DatabaseConfig) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Ping verifies the store before the server accepts any request. Store
// unavailability at startup is fatal, not discovered mid-query.
func Ping(ctx context.Context, db *bun.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "database unreachable", err)
	}
	return nil
}
