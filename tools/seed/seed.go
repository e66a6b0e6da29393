// Package seed builds a climate dataset file from the CSV exports of the
// measurement and station relations.
//
// Measurements are read as station,date,prcp,tobs and stations as
// station,name,latitude,longitude,elevation, each with a header row. Empty
// numeric cells load as NULL.
package seed

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	appdb "climate-server/internal/db"
	"climate-server/internal/modules/climate/types"
)

// ErrAlreadySeeded is returned when the target already holds station rows.
var ErrAlreadySeeded = errors.New("dataset already seeded")

var (
	measurementHeader = []string{"station", "date", "prcp", "tobs"}
	stationHeader     = []string{"station", "name", "latitude", "longitude", "elevation"}
)

type Result struct {
	Stations     int
	Measurements int
}

// Run creates the schema on db and loads both files in one transaction, so a
// bad row leaves the file empty rather than half loaded.
func Run(ctx context.Context, db *sql.DB, measurements, stations io.Reader) (Result, error) {
	if err := appdb.CreateSchema(ctx, db); err != nil {
		return Result{}, err
	}

	var existing int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM station`).Scan(&existing); err != nil {
		return Result{}, fmt.Errorf("count stations: %w", err)
	}
	if existing > 0 {
		return Result{}, fmt.Errorf("%w: %d stations present", ErrAlreadySeeded, existing)
	}

	stationRows, err := readStations(stations)
	if err != nil {
		return Result{}, err
	}
	measurementRows, err := readMeasurements(measurements)
	if err != nil {
		return Result{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertStations(ctx, tx, stationRows); err != nil {
		return Result{}, err
	}
	if err := insertMeasurements(ctx, tx, measurementRows); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}

	slog.Info("dataset seeded", "stations", len(stationRows), "measurements", len(measurementRows))
	return Result{Stations: len(stationRows), Measurements: len(measurementRows)}, nil
}

func readStations(r io.Reader) ([]types.Station, error) {
	records, err := readCSV(r, "stations", stationHeader)
	if err != nil {
		return nil, err
	}
	out := make([]types.Station, 0, len(records))
	for i, rec := range records {
		line := i + 2
		if rec[0] == "" {
			return nil, fmt.Errorf("stations line %d: empty station id", line)
		}
		s := types.Station{ID: rec[0], Name: rec[1]}
		if s.Latitude, err = parseNullFloat(rec[2]); err != nil {
			return nil, fmt.Errorf("stations line %d: latitude: %w", line, err)
		}
		if s.Longitude, err = parseNullFloat(rec[3]); err != nil {
			return nil, fmt.Errorf("stations line %d: longitude: %w", line, err)
		}
		if s.Elevation, err = parseNullFloat(rec[4]); err != nil {
			return nil, fmt.Errorf("stations line %d: elevation: %w", line, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func readMeasurements(r io.Reader) ([]types.Measurement, error) {
	records, err := readCSV(r, "measurements", measurementHeader)
	if err != nil {
		return nil, err
	}
	out := make([]types.Measurement, 0, len(records))
	for i, rec := range records {
		line := i + 2
		date, err := types.ParseDate(rec[1])
		if err != nil {
			return nil, fmt.Errorf("measurements line %d: %w", line, err)
		}
		m := types.Measurement{Station: rec[0], Date: date}
		if m.Precipitation, err = parseNullFloat(rec[2]); err != nil {
			return nil, fmt.Errorf("measurements line %d: prcp: %w", line, err)
		}
		if m.Temperature, err = parseNullFloat(rec[3]); err != nil {
			return nil, fmt.Errorf("measurements line %d: tobs: %w", line, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func readCSV(r io.Reader, name string, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: missing header", name)
	}
	for i, col := range header {
		if got := strings.ToLower(strings.TrimSpace(records[0][i])); got != col {
			return nil, fmt.Errorf("read %s: column %d is %q, want %q", name, i+1, records[0][i], col)
		}
	}
	return records[1:], nil
}

func parseNullFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func insertStations(ctx context.Context, tx *sql.Tx, rows []types.Station) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare station insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range rows {
		if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Latitude, s.Longitude, s.Elevation); err != nil {
			return fmt.Errorf("insert station %s: %w", s.ID, err)
		}
	}
	return nil
}

func insertMeasurements(ctx context.Context, tx *sql.Tx, rows []types.Measurement) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare measurement insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range rows {
		var station any
		if m.Station != "" {
			station = m.Station
		}
		if _, err := stmt.ExecContext(ctx, station, m.Date.String(), m.Precipitation, m.Temperature); err != nil {
			return fmt.Errorf("insert measurement %s/%s: %w", m.Station, m.Date, err)
		}
	}
	return nil
}
