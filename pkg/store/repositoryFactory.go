package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zoff-tech/queue-admin/pkg/config"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver, registered as "pgx"
	_ "github.com/lib/pq"              // PostgreSQL driver
)

var sqlOpen = sql.Open

// NewRepository opens the configured database and returns a repository over it.
// The pool is pinged once so a bad DSN fails at startup rather than on the first request.
func NewRepository(ctx context.Context, cfg config.DbSettings) (AdminRepository, error) {
	switch cfg.Driver {
	case "postgres", "pgx":
		db, err := sqlOpen(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxIdleTime > 0 {
			db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
		}
		return NewPostgresRepository(db, cfg.Schema), nil
	default:
		return nil, fmt.Errorf("unsupported DB driver: %s", cfg.Driver)
	}
}
