package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the only accepted wire and storage format for dates.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time of day or zone. It marshals to and
// from JSON as "YYYY-MM-DD".
type Date struct {
	t time.Time
}

// NewDate returns the calendar date y-m-d, normalising out-of-range values the
// way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s strictly as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }
func (d Date) IsZero() bool       { return d.t.IsZero() }

func (d Date) String() string {
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type Station struct {
	ID        string   `json:"station"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Elevation *float64 `json:"elevation"`
}

// Measurement is one row of the measurement relation. Station may be empty
// and need not match any Station.
type Measurement struct {
	Station       string   `json:"station"`
	Date          Date     `json:"date"`
	Precipitation *float64 `json:"prcp"`
	Temperature   *float64 `json:"tobs"`
}

// PrecipitationPoint is a (date, prcp) pair; Prcp is nil when the station
// reported nothing that day.
type PrecipitationPoint struct {
	Date string
	Prcp *float64
}

// TemperatureStats holds the aggregates over non-null temperatures. All three
// fields are nil when no value matched; zero is a valid temperature and is
// never used to mean "no data".
type TemperatureStats struct {
	Min *float64
	Max *float64
	Avg *float64
}

// Empty reports whether the stats carry the no-data sentinel.
func (s TemperatureStats) Empty() bool {
	return s.Min == nil && s.Max == nil && s.Avg == nil
}

// Triple projects the stats to the [min, max, avg] response shape.
func (s TemperatureStats) Triple() [3]*float64 {
	return [3]*float64{s.Min, s.Max, s.Avg}
}
