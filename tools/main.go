package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"climate-server/tools/seed"

	_ "github.com/mattn/go-sqlite3"
)

const usage = `usage: %s <command>
  seed <measurements.csv> <stations.csv>  create the dataset at SQLITE_PATH from CSV exports
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	dbPath := os.Getenv("SQLITE_PATH")
	if dbPath == "" {
		dbPath = "Resources/hawaii.sqlite"
	}
	dbPath = filepath.Clean(dbPath)

	switch os.Args[1] {
	case "seed":
		if len(os.Args) != 4 {
			fmt.Fprintf(os.Stderr, usage, os.Args[0])
			os.Exit(1)
		}
		if err := runSeed(context.Background(), dbPath, os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "seed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func runSeed(ctx context.Context, dbPath, measurementsPath, stationsPath string) error {
	measurements, err := os.Open(measurementsPath)
	if err != nil {
		return err
	}
	defer measurements.Close()

	stations, err := os.Open(stationsPath)
	if err != nil {
		return err
	}
	defer stations.Close()

	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	res, err := seed.Run(ctx, conn, measurements, stations)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %s: %d stations, %d measurements\n", dbPath, res.Stations, res.Measurements)
	return nil
}

// Open opens dbPath for writing, creating the file if needed.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", buildDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

// buildDSN keeps a rollback journal so the finished file is self-contained
// and can be opened read-only without a -wal sidecar.
func buildDSN(dbPath string) string {
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=DELETE",
		"mode=rwc",
	}

	if strings.HasPrefix(dbPath, "file:") {
		sep := "?"
		if strings.Contains(dbPath, "?") {
			sep = "&"
		}
		return dbPath + sep + strings.Join(params, "&")
	}

	return fmt.Sprintf("file:%s?%s", dbPath, strings.Join(params, "&"))
}
