package controller

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"climate-server/internal/modules/climate/types"
	"climate-server/internal/modules/climate/views"
)

func newTestMux(t *testing.T, svc *mockService) *http.ServeMux {
	t.Helper()
	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
	mux := http.NewServeMux()
	NewClimateController(svc).RegisterRoutes(mux)
	return mux
}

func TestRoutes_literalSegmentsWinOverDates(t *testing.T) {
	svc := &mockService{
		precipitation: map[string]*float64{"2016-08-23": f(0.0)},
		stations:      []string{"USC00519281"},
		temps:         []*float64{f(77)},
	}
	mux := newTestMux(t, svc)

	tests := []struct {
		path string
		want string
	}{
		{path: "/api/v1.0/precipitation", want: `{"2016-08-23":0}`},
		{path: "/api/v1.0/stations", want: `["USC00519281"]`},
		{path: "/api/v1.0/tobs", want: `[77]`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.want {
				t.Errorf("body = %q; want %q", got, tt.want)
			}
		})
	}
	if len(svc.summaryCalls) != 0 {
		t.Errorf("summary handler reached for a literal route: %v", svc.summaryCalls)
	}
}

func TestRoutes_dateSegments(t *testing.T) {
	svc := &mockService{stats: types.TemperatureStats{Min: f(70), Max: f(80), Avg: f(75)}}
	mux := newTestMux(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1.0/2017-01-01/2017-01-31", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	if len(svc.summaryCalls) != 1 || svc.summaryCalls[0].end == nil {
		t.Fatalf("summary calls = %v; want one bounded call", svc.summaryCalls)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1.0/bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRoutes_unknownAndMethod(t *testing.T) {
	mux := newTestMux(t, &mockService{})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{method: http.MethodGet, path: "/", want: http.StatusOK},
		{method: http.MethodGet, path: "/api", want: http.StatusNotFound},
		{method: http.MethodGet, path: "/api/v1.0/a/b/c", want: http.StatusNotFound},
		{method: http.MethodPost, path: "/api/v1.0/stations", want: http.StatusMethodNotAllowed},
		{method: http.MethodDelete, path: "/api/v1.0/2017-01-01", want: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d; want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRoutes_identicalPayloads(t *testing.T) {
	svc := &mockService{precipitation: map[string]*float64{
		"2017-08-23": f(0.45), "2016-08-23": f(1.79), "2017-01-01": nil, "2016-12-31": f(0),
	}}
	mux := newTestMux(t, svc)

	var first string
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1.0/precipitation", nil))
		if i == 0 {
			first = rec.Body.String()
			continue
		}
		if rec.Body.String() != first {
			t.Fatalf("request %d body = %q; want %q", i, rec.Body.String(), first)
		}
	}
}
