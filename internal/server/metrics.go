package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartbanker_http_requests_total",
		Help: "Total HTTP requests processed, labeled by route and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartbanker_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})
)

// unmatchedRoute labels requests no route matched, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return unmatchedRoute
}

type requestTimer struct {
	method string
	route  string
	timer  *prometheus.Timer
}

func newRequestTimer(method, route string) *requestTimer {
	return &requestTimer{
		method: method,
		route:  route,
		timer:  prometheus.NewTimer(httpRequestDuration.WithLabelValues(method, route)),
	}
}

func (t *requestTimer) observe(status int) {
	t.timer.ObserveDuration()
	httpRequestsTotal.WithLabelValues(t.method, t.route, strconv.Itoa(status)).Inc()
}
