package controller

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"climate-server/internal/modules/climate/service"
	"climate-server/internal/modules/climate/types"
	"climate-server/internal/modules/climate/views"
	"climate-server/internal/utils"
)

var indexRoutes = []views.RouteLink{
	{Path: "/api/v1.0/precipitation", Description: "Precipitation data for the last year", Linked: true},
	{Path: "/api/v1.0/stations", Description: "List of all weather observation stations", Linked: true},
	{Path: "/api/v1.0/tobs", Description: "Temperature observations for the most active station over the last year", Linked: true},
	{Path: "/api/v1.0/<start>", Description: "Minimum, maximum and average temperature from a start date (YYYY-MM-DD)"},
	{Path: "/api/v1.0/<start>/<end>", Description: "Minimum, maximum and average temperature for an inclusive date range (YYYY-MM-DD/YYYY-MM-DD)"},
}

func (c *climateControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := views.IndexData{
		Title:         "Welcome to the Climate App API!",
		ReferenceDate: service.ReferenceDate.String(),
		Routes:        indexRoutes,
	}
	var buf bytes.Buffer
	if err := views.RenderIndex(&buf, &data); err != nil {
		slog.Error("index template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	byDate, err := c.service.Precipitation(r.Context())
	if err != nil {
		slog.Error("precipitation query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load precipitation")
		return
	}
	utils.WriteJSON(w, http.StatusOK, byDate)
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := c.service.Stations(r.Context())
	if err != nil {
		slog.Error("stations query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
		return
	}
	utils.WriteJSON(w, http.StatusOK, stations)
}

func (c *climateControllerImpl) handleTemperatureObservations(w http.ResponseWriter, r *http.Request) {
	temps, err := c.service.TemperatureObservations(r.Context())
	if err != nil {
		slog.Error("temperature observations query failed", "station", service.MostActiveStationID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load temperature observations")
		return
	}
	utils.WriteJSON(w, http.StatusOK, temps)
}

func (c *climateControllerImpl) handleSummaryFrom(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r, "start")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.writeSummary(w, r, start, nil)
}

func (c *climateControllerImpl) handleSummaryRange(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r, "start")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.writeSummary(w, r, start, &end)
}

// writeSummary answers with [min, max, avg]. A start after end is not
// rejected; it matches nothing and yields the null triple.
func (c *climateControllerImpl) writeSummary(w http.ResponseWriter, r *http.Request, start types.Date, end *types.Date) {
	stats, err := c.service.TemperatureSummary(r.Context(), start, end)
	if err != nil {
		slog.Error("temperature summary query failed", "start", start, "end", end, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load temperature summary")
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats.Triple())
}

func parseDateParam(r *http.Request, name string) (types.Date, error) {
	raw := r.PathValue(name)
	d, err := types.ParseDate(raw)
	if err != nil {
		return types.Date{}, fmt.Errorf("invalid '%s' date %q (expected YYYY-MM-DD)", name, raw)
	}
	return d, nil
}
