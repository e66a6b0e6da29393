package climate

import (
	"database/sql"
	"net/http"

	"climate-server/internal/modules/climate/controller"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/service"
)

// RegisterFeature wires the climate routes over db and returns the service so
// other transports can share it.
func RegisterFeature(mux *http.ServeMux, db *sql.DB) *service.Service {
	climateService := service.NewService(repository.NewSessions(db))
	climateController := controller.NewClimateController(climateService)
	climateController.RegisterRoutes(mux)
	return climateService
}
