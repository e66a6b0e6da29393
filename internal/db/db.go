package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"climate-server/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Open returns the process-wide, read-only connection pool for the dataset.
// Requests borrow connections from it; it is closed once at shutdown.
func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	if cfg.Driver != "sqlite3" {
		return nil, fmt.Errorf("db open: unsupported driver %q (only sqlite3)", cfg.Driver)
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogSQL {
		db = sql.OpenDB(NewLoggingConnector(dsn, logger, true))
	} else {
		db, err = sql.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// CreateSchema creates the dataset tables on a writable handle. The server
// never calls it; it backs the seed tool and tests.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// VerifySchema checks that both relations expose the columns the query layer
// reads. Selecting with LIMIT 0 fails on a missing table or column without
// scanning any rows.
func VerifySchema(ctx context.Context, db *sql.DB) error {
	checks := map[string]string{
		"measurement": `SELECT id, station, date, prcp, tobs FROM measurement LIMIT 0`,
		"station":     `SELECT id, station, name, latitude, longitude, elevation FROM station LIMIT 0`,
	}
	for _, table := range []string{"station", "measurement"} {
		rows, err := db.QueryContext(ctx, checks[table])
		if err != nil {
			return fmt.Errorf("verify %s table: %w", table, err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("verify %s table: %w", table, err)
		}
	}
	return nil
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	path := cfg.Path
	if path == "" {
		return "", fmt.Errorf("db open: SQLITE_PATH is empty")
	}

	// - mode=ro: the dataset is never written by this process
	// - _busy_timeout: tolerate a seed run holding the file briefly
	params := []string{
		"mode=ro",
		"_busy_timeout=5000",
	}

	// Caller may pass a full URI such as "file:/data/hawaii.sqlite?cache=shared".
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("dataset %s: %w", path, err)
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
