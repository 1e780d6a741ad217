package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// Metrics bundles the prometheus collectors exported on /metrics.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	Classifications    *prometheus.CounterVec
	Alerts             *prometheus.CounterVec
	HealthScores       prometheus.Histogram
	RateLimitDropped   prometheus.Counter
	WebsocketClients   prometheus.Gauge
}

// NewMetrics registers the collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kpiwatch_requests_total",
			Help: "Total number of API requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kpiwatch_request_duration_seconds",
			Help:    "API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kpiwatch_classifications_total",
			Help: "Metrics classified, by resulting status.",
		}, []string{"status"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kpiwatch_alerts_total",
			Help: "Alerts computed, by severity.",
		}, []string{"severity"}),
		HealthScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kpiwatch_health_score",
			Help:    "Distribution of composite health scores with data.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kpiwatch_ratelimit_dropped_total",
			Help: "Total number of requests dropped by the rate limiter.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kpiwatch_websocket_clients",
			Help: "Connected alert stream clients.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDurationSec,
		m.Classifications,
		m.Alerts,
		m.HealthScores,
		m.RateLimitDropped,
		m.WebsocketClients,
	)

	return m
}

// Middleware records request counts and durations.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

func (m *Metrics) observeClassified(classified []kpi.ClassifiedMetric) {
	for _, c := range classified {
		m.Classifications.WithLabelValues(string(c.Status)).Inc()
	}
}

func (m *Metrics) observeAlerts(alerts []kpi.AlertItem) {
	for _, a := range alerts {
		m.Alerts.WithLabelValues(string(a.Severity)).Inc()
	}
}

func (m *Metrics) observeScores(scores []kpi.SubjectScore) {
	for _, s := range scores {
		if s.HasData {
			m.HealthScores.Observe(float64(s.Score))
		}
	}
}

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/ws/alerts",
		"/api/v1/classify", "/api/v1/alerts", "/api/v1/health", "/api/v1/trend",
		"/api/v1/evaluations":
		return path
	}
	switch {
	case strings.HasPrefix(path, "/api/v1/trends/"):
		return "/api/v1/trends/{key}"
	case strings.HasPrefix(path, "/api/v1/evaluations/"):
		return "/api/v1/evaluations/{n}"
	}
	return "other"
}
