package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the collectors the server feeds.
// A nil *Metrics is valid and drops every observation, so tests can wire
// handlers without a registry.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics builds the registry with process, Go runtime, HTTP, and
// WebSocket collectors. wsConns is polled on scrape; pass the connection
// registry's live count.
func NewMetrics(wsConns func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plume_http_requests_total",
			Help: "HTTP requests served, by method, route, and status class.",
		}, []string{"method", "route", "class"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plume_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
	)

	if wsConns != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "plume_ws_connections",
			Help: "Currently open WebSocket connections.",
		}, func() float64 { return float64(wsConns()) }))
	}

	return m
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	route := metricsRoute(path)
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// metricsRoute collapses unknown paths into one label to keep the route
// cardinality bounded. Every registered route is a fixed string, so exact
// matching is enough.
func metricsRoute(path string) string {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/ws", "/me",
		"/auth/register", "/auth/login",
		"/auth/verify-email", "/auth/resend-verification",
		"/auth/password-reset/request", "/auth/password-reset/confirm",
		"/auth/refresh", "/auth/logout", "/auth/logout-all",
		"/admin/force-logout":
		return path
	default:
		return "other"
	}
}
