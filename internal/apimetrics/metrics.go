// Package apimetrics exposes Prometheus counters and histograms for the
// HTTP API surface.
package apimetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devservers"

// Metrics holds every Prometheus collector the daemon exposes, bound
// to its own registry rather than the global default one so that
// constructing more than one Metrics (as tests do, one per server
// instance) never panics on duplicate registration.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SupervisorCalls *prometheus.CounterVec
	ServicesRunning prometheus.Gauge
}

// New builds a fresh Metrics set on its own private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled, by route and status class.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		SupervisorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_calls_total",
			Help:      "Supervisor operations issued, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ServicesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services_running",
			Help:      "Number of services observed as running on the last list call.",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.SupervisorCalls, m.ServicesRunning)
	return m
}

// Handler returns the promhttp handler serving this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
