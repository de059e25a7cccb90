// Package server exposes the ops HTTP surface: health, readiness, status,
// and metrics. It injects correlation IDs into request contexts for
// consistent logging.
package server

import (
	"database/sql"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/sentry/config"
	"github.com/onnwee/sentry/telemetry"
)

// NewMux returns the HTTP handler with all routes.
func NewMux(db *sql.DB, cfg *config.Config) http.Handler {
	handlers := NewHandlers(db, cfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)
	mux.HandleFunc("/status", handlers.HandleStatus)

	return withCorrelation(mux)
}

// withCorrelation reuses the caller's correlation header or generates one,
// and reflects it back on the response.
func withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
