package pgstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/config"
)

// CreateDatabase connects to the maintenance database and creates cfg.DBName if it doesn't exist.
func CreateDatabase(ctx context.Context, cfg config.PostgresConfig) error {
	dsn, err := cfg.DSN(ctx, "postgres")
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return errors.Wrap(err, "connect failed")
	}
	defer db.Close()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRowContext(ctx, query, cfg.DBName).Scan(&exists); err != nil {
		return errors.Wrap(err, "check db exists failed")
	}
	if exists {
		return nil
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(cfg.DBName))); err != nil {
		return errors.Wrap(err, "create db failed")
	}
	return nil
}
