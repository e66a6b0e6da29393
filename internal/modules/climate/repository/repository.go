package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"climate-server/internal/modules/climate/types"
)

//go:embed sql/get-precipitation-since.sql
var getPrecipitationSinceSQL string

//go:embed sql/get-station-ids.sql
var getStationIDsSQL string

//go:embed sql/get-station-temperatures-since.sql
var getStationTemperaturesSinceSQL string

//go:embed sql/get-temperature-stats.sql
var getTemperatureStatsSQL string

// Querier is the read capability the query layer needs. *sql.Conn, *sql.DB
// and *sql.Tx all satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ClimateRepository is the query layer over the measurement and station
// relations. Every method is a pure read; store errors are returned to the
// caller, never swallowed.
type ClimateRepository interface {
	// PrecipitationSince returns (date, prcp) for every measurement dated on
	// or after cutoff, in storage order. Null prcp rows are kept.
	PrecipitationSince(ctx context.Context, cutoff types.Date) ([]types.PrecipitationPoint, error)
	// StationIDs returns one identifier per station row, in storage order.
	StationIDs(ctx context.Context) ([]string, error)
	// TemperaturesForStationSince returns tobs for every row of stationID
	// dated on or after cutoff, duplicates and nulls included.
	TemperaturesForStationSince(ctx context.Context, stationID string, cutoff types.Date) ([]*float64, error)
	// TemperatureStats aggregates non-null tobs over start <= date and, when
	// end is non-nil, date <= end.
	TemperatureStats(ctx context.Context, start types.Date, end *types.Date) (types.TemperatureStats, error)
}

type repositoryImpl struct {
	q Querier
}

func NewRepository(q Querier) ClimateRepository {
	return &repositoryImpl{q: q}
}

func (r *repositoryImpl) PrecipitationSince(ctx context.Context, cutoff types.Date) ([]types.PrecipitationPoint, error) {
	rows, err := r.q.QueryContext(ctx, getPrecipitationSinceSQL, cutoff.String())
	if err != nil {
		return nil, fmt.Errorf("query precipitation: %w", err)
	}
	defer closeRows(rows, "precipitation")

	out := []types.PrecipitationPoint{}
	for rows.Next() {
		var (
			date sql.NullString
			prcp sql.NullFloat64
		)
		if err := rows.Scan(&date, &prcp); err != nil {
			return nil, fmt.Errorf("scan precipitation: %w", err)
		}
		out = append(out, types.PrecipitationPoint{Date: date.String, Prcp: floatPtr(prcp)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate precipitation: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) StationIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, getStationIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer closeRows(rows, "stations")

	out := []string{}
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, id.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) TemperaturesForStationSince(ctx context.Context, stationID string, cutoff types.Date) ([]*float64, error) {
	rows, err := r.q.QueryContext(ctx, getStationTemperaturesSinceSQL, stationID, cutoff.String())
	if err != nil {
		return nil, fmt.Errorf("query temperatures for %s: %w", stationID, err)
	}
	defer closeRows(rows, "temperatures")

	out := []*float64{}
	for rows.Next() {
		var tobs sql.NullFloat64
		if err := rows.Scan(&tobs); err != nil {
			return nil, fmt.Errorf("scan temperature: %w", err)
		}
		out = append(out, floatPtr(tobs))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate temperatures: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) TemperatureStats(ctx context.Context, start types.Date, end *types.Date) (types.TemperatureStats, error) {
	var endArg any
	if end != nil {
		endArg = end.String()
	}

	var lo, hi, avg sql.NullFloat64
	if err := r.q.QueryRowContext(ctx, getTemperatureStatsSQL, start.String(), endArg).Scan(&lo, &hi, &avg); err != nil {
		return types.TemperatureStats{}, fmt.Errorf("query temperature stats: %w", err)
	}
	return types.TemperatureStats{
		Min: floatPtr(lo),
		Max: floatPtr(hi),
		Avg: floatPtr(avg),
	}, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close rows", "query", what, "error", err)
	}
}
