// Package metrics holds the Prometheus collectors of the service and the
// loader.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RebuildHooks    *prometheus.CounterVec
	ActsImported    *prometheus.CounterVec
	ModalOpens      prometheus.Counter
}

// New registers every collector on a fresh registry, so tests can build as
// many instances as they need.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legis",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "legis",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.RebuildHooks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legis",
		Name:      "rebuild_hook_total",
		Help:      "Rebuild webhook notifications by result",
	}, []string{"result"})
	m.ActsImported = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legis",
		Name:      "loader_acts_total",
		Help:      "Acts processed by the loader by result",
	}, []string{"result"})
	m.ModalOpens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "legis",
		Name:      "modal_opens_total",
		Help:      "Registered act detail opens",
	})

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RebuildHooks,
		m.ActsImported,
		m.ModalOpens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Server exposes the registry on /metrics for processes without their own
// HTTP surface.
func (m *Metrics) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
