// Package server assembles the HTTP JSON API and the optional gRPC health listener and runs them
// until the context is cancelled.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartbanker/backend/internal/health"
	"smartbanker/backend/internal/platform/httpjson"
)

// Routes is implemented by every HTTP handler group (auth, ledger, dev OTP).
type Routes interface {
	Register(r *mux.Router)
}

// Deps holds what NewRouter mounts.
type Deps struct {
	// Routes are registered in order. Nil entries are skipped.
	Routes []Routes
	// Health backs GET /healthz. If nil, /healthz always reports ok.
	Health *health.Checker
	// Metrics serves GET /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
}

// NewRouter returns the API handler. CORS wraps everything; client IP, telemetry and panic
// recovery apply to every matched route.
func NewRouter(deps Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(withRecovery, withClientIP, withTelemetry)

	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics).Methods(http.MethodGet)
	r.HandleFunc("/healthz", deps.Health.HTTPHandler()).Methods(http.MethodGet)

	for _, routes := range deps.Routes {
		if routes != nil {
			routes.Register(r)
		}
	}

	r.NotFoundHandler = withTelemetry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpjson.Error(w, http.StatusNotFound, "Not found.")
	}))
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpjson.Error(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	return withCORS(r)
}
