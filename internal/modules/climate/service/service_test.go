package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appdb "climate-server/internal/db"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/types"

	_ "github.com/mattn/go-sqlite3"
)

// countingSessions records how many sessions were opened and closed.
type countingSessions struct {
	inner  repository.Sessions
	opened int
	closed int
}

func (c *countingSessions) WithSession(ctx context.Context, fn func(repository.ClimateRepository) error) error {
	c.opened++
	defer func() { c.closed++ }()
	return c.inner.WithSession(ctx, fn)
}

type failingSessions struct{ err error }

func (f failingSessions) WithSession(context.Context, func(repository.ClimateRepository) error) error {
	return f.err
}

func newTestDB(t *testing.T, seed string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "hawaii.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, appdb.CreateSchema(context.Background(), db))
	if seed != "" {
		_, err = db.Exec(seed)
		require.NoError(t, err)
	}
	return db
}

func newTestService(t *testing.T, seed string) (*Service, *countingSessions) {
	t.Helper()
	counting := &countingSessions{inner: repository.NewSessions(newTestDB(t, seed))}
	return NewService(counting), counting
}

func TestCutoff(t *testing.T) {
	assert.Equal(t, "2017-08-23", ReferenceDate.String())
	assert.Equal(t, "2016-08-23", Cutoff().String())
}

func TestPrecipitation_ExcludesRowsBeforeCutoff(t *testing.T) {
	svc, sessions := newTestService(t, `
		INSERT INTO measurement (station, date, prcp) VALUES
		('USC00519397', '2017-08-23', 0.00),
		('USC00519397', '2016-08-22', 1.5)
	`)

	got, err := svc.Precipitation(context.Background())
	require.NoError(t, err)

	require.Contains(t, got, "2017-08-23")
	require.NotNil(t, got["2017-08-23"])
	assert.Equal(t, 0.0, *got["2017-08-23"])
	assert.NotContains(t, got, "2016-08-22")
	assert.Equal(t, 1, sessions.opened)
	assert.Equal(t, 1, sessions.closed)
}

func TestPrecipitation_LastWriteWinsAndNullsKept(t *testing.T) {
	svc, _ := newTestService(t, `
		INSERT INTO measurement (id, station, date, prcp) VALUES
		(1, 'USC00519397', '2017-01-01', 0.25),
		(2, 'USC00513117', '2017-01-01', 0.75),
		(3, 'USC00514830', '2017-01-02', NULL)
	`)

	got, err := svc.Precipitation(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	require.NotNil(t, got["2017-01-01"])
	assert.Equal(t, 0.75, *got["2017-01-01"])
	v, ok := got["2017-01-02"]
	assert.True(t, ok, "null precipitation date must still be present")
	assert.Nil(t, v)
}

func TestStations_EmptyIsNotNil(t *testing.T) {
	svc, _ := newTestService(t, "")

	got, err := svc.Stations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStations_StableOrder(t *testing.T) {
	svc, sessions := newTestService(t, `
		INSERT INTO station (id, station, name) VALUES
		(1, 'USC00519397', 'WAIKIKI 717.2, HI US'),
		(2, 'USC00513117', 'KANEOHE 838.1, HI US'),
		(3, 'USC00519281', 'WAIHEE 837.5, HI US')
	`)

	first, err := svc.Stations(context.Background())
	require.NoError(t, err)
	second, err := svc.Stations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"USC00519397", "USC00513117", "USC00519281"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, sessions.opened)
	assert.Equal(t, sessions.opened, sessions.closed)
}

func TestTemperatureObservations_MostActiveStationOnly(t *testing.T) {
	svc, _ := newTestService(t, `
		INSERT INTO measurement (station, date, tobs) VALUES
		('USC00519281', '2016-08-22', 50),
		('USC00519281', '2016-08-23', 77),
		('USC00519397', '2016-08-23', 99),
		('USC00519281', '2017-08-18', 79),
		('USC00519281', '2017-08-18', 79)
	`)

	got, err := svc.TemperatureObservations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []float64{77, 79, 79} {
		require.NotNil(t, got[i])
		assert.Equal(t, want, *got[i])
	}
}

func TestTemperatureObservations_EmptyIsNotNil(t *testing.T) {
	svc, _ := newTestService(t, "")

	got, err := svc.TemperatureObservations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTemperatureSummary_Scenario(t *testing.T) {
	svc, _ := newTestService(t, `
		INSERT INTO measurement (station, date, tobs) VALUES
		('S1', '2017-01-01', 70),
		('S1', '2017-01-02', 75),
		('S1', '2017-01-03', 80)
	`)
	start := types.NewDate(2017, 1, 1)
	end := types.NewDate(2017, 1, 3)

	got, err := svc.TemperatureSummary(context.Background(), start, &end)
	require.NoError(t, err)

	triple := got.Triple()
	require.NotNil(t, triple[0])
	require.NotNil(t, triple[1])
	require.NotNil(t, triple[2])
	assert.Equal(t, 70.0, *triple[0])
	assert.Equal(t, 80.0, *triple[1])
	assert.Equal(t, 75.0, *triple[2])
}

func TestTemperatureSummary_EmptyRangeIsSentinel(t *testing.T) {
	svc, _ := newTestService(t, `INSERT INTO measurement (station, date, tobs) VALUES ('S1', '2017-01-01', 70)`)

	got, err := svc.TemperatureSummary(context.Background(), types.NewDate(2020, 1, 1), nil)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Equal(t, [3]*float64{nil, nil, nil}, got.Triple())
}

func TestTemperatureSummary_MinAvgMaxOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	seed := "INSERT INTO measurement (station, date, tobs) VALUES "
	base := types.NewDate(2016, 1, 1)
	for i := 0; i < 200; i++ {
		if i > 0 {
			seed += ","
		}
		d := base.AddDays(rng.Intn(365))
		tobs := "NULL"
		if rng.Intn(10) > 0 {
			tobs = fmt.Sprintf("%d", 55+rng.Intn(35))
		}
		seed += fmt.Sprintf("('S%d', '%s', %s)", rng.Intn(5), d, tobs)
	}
	svc, _ := newTestService(t, seed)

	for i := 0; i < 50; i++ {
		start := base.AddDays(rng.Intn(365))
		end := start.AddDays(rng.Intn(60))

		got, err := svc.TemperatureSummary(context.Background(), start, &end)
		require.NoError(t, err)
		if got.Empty() {
			continue
		}
		assert.LessOrEqual(t, *got.Min, *got.Avg, "range %s..%s", start, end)
		assert.LessOrEqual(t, *got.Avg, *got.Max, "range %s..%s", start, end)
	}
}

func TestService_PropagatesSessionErrors(t *testing.T) {
	boom := errors.New("store unavailable")
	svc := NewService(failingSessions{err: boom})
	ctx := context.Background()

	_, err := svc.Precipitation(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = svc.Stations(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = svc.TemperatureObservations(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = svc.TemperatureSummary(ctx, types.NewDate(2017, 1, 1), nil)
	assert.ErrorIs(t, err, boom)
}
