package httpapi

import (
	"net/http"
	"time"

	"climate-server/internal/config"
)

// NewServer wraps mux as request id -> metrics -> request log -> mux. A nil
// metrics skips instrumentation.
func NewServer(cfg config.Config, mux *http.ServeMux, metrics *Metrics) *http.Server {
	var h http.Handler = requestLogger(mux)
	if metrics != nil {
		h = metrics.Middleware(h)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestID(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
