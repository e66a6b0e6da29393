package service

import (
	"context"
	"time"

	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/types"
)

// ReferenceDate is the most recent observation date in the dataset, found
// offline with: SELECT MAX(date) FROM measurement.
var ReferenceDate = types.NewDate(2017, time.August, 23)

// MostActiveStationID is the station with the most measurement rows over the
// whole dataset, found offline with:
//
//	SELECT station, COUNT(*) FROM measurement GROUP BY station ORDER BY 2 DESC LIMIT 1
//
// The dataset is fixed, so it is not recomputed per request.
const MostActiveStationID = "USC00519281"

// LookbackDays is the width of the "last year" window ending at ReferenceDate.
const LookbackDays = 365

// Cutoff is the first date of the last-year window: ReferenceDate - 365 days.
func Cutoff() types.Date {
	return ReferenceDate.AddDays(-LookbackDays)
}

// Service shapes query layer results into response payloads. Each method
// runs inside exactly one session.
type Service struct {
	sessions repository.Sessions
}

func NewService(sessions repository.Sessions) *Service {
	return &Service{sessions: sessions}
}

// Precipitation maps date to prcp for the last year of data. Several
// stations report per date; the last row in storage order wins.
func (s *Service) Precipitation(ctx context.Context) (map[string]*float64, error) {
	var points []types.PrecipitationPoint
	err := s.sessions.WithSession(ctx, func(repo repository.ClimateRepository) error {
		var err error
		points, err = repo.PrecipitationSince(ctx, Cutoff())
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]*float64, len(points))
	for _, p := range points {
		out[p.Date] = p.Prcp
	}
	return out, nil
}

func (s *Service) Stations(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.sessions.WithSession(ctx, func(repo repository.ClimateRepository) error {
		var err error
		ids, err = repo.StationIDs(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// TemperatureObservations lists the most active station's tobs for the last
// year, one entry per row.
func (s *Service) TemperatureObservations(ctx context.Context) ([]*float64, error) {
	var tobs []*float64
	err := s.sessions.WithSession(ctx, func(repo repository.ClimateRepository) error {
		var err error
		tobs, err = repo.TemperaturesForStationSince(ctx, MostActiveStationID, Cutoff())
		return err
	})
	if err != nil {
		return nil, err
	}
	if tobs == nil {
		tobs = []*float64{}
	}
	return tobs, nil
}

// TemperatureSummary aggregates temperatures from start through end, or
// through the end of the data when end is nil.
func (s *Service) TemperatureSummary(ctx context.Context, start types.Date, end *types.Date) (types.TemperatureStats, error) {
	var stats types.TemperatureStats
	err := s.sessions.WithSession(ctx, func(repo repository.ClimateRepository) error {
		var err error
		stats, err = repo.TemperatureStats(ctx, start, end)
		return err
	})
	return stats, err
}
