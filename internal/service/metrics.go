package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics observes supervisor operations
type Metrics interface {
	ObserveProbe(server string, up bool)
	ObserveLaunch(server string)
	ObserveShutdown(server string, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveProbe(string, bool)     {}
func (noopMetrics) ObserveLaunch(string)          {}
func (noopMetrics) ObserveShutdown(string, error) {}

// PrometheusMetrics implements Metrics using Prometheus metrics registered
// in its own registry.
type PrometheusMetrics struct {
	probes    *prometheus.CounterVec
	up        *prometheus.GaugeVec
	launches  *prometheus.CounterVec
	shutdowns *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "psiturk"
	}

	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
	}

	m.probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_probes_total",
			Help:      "Total number of liveness probes by result",
		},
		[]string{"server", "result"},
	)
	m.up = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_up",
			Help:      "Whether the server answered the last liveness probe (1) or not (0)",
		},
		[]string{"server"},
	)
	m.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_launches_total",
			Help:      "Total number of launched server processes",
		},
		[]string{"server"},
	)
	m.shutdowns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_shutdowns_total",
			Help:      "Total number of server kills by status",
		},
		[]string{"server", "status"},
	)

	m.registry.MustRegister(m.probes, m.up, m.launches, m.shutdowns)
	return m
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) ObserveProbe(server string, up bool) {
	result := "down"
	value := 0.0
	if up {
		result = "up"
		value = 1
	}
	m.probes.WithLabelValues(server, result).Inc()
	m.up.WithLabelValues(server).Set(value)
}

func (m *PrometheusMetrics) ObserveLaunch(server string) {
	m.launches.WithLabelValues(server).Inc()
}

func (m *PrometheusMetrics) ObserveShutdown(server string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.shutdowns.WithLabelValues(server, status).Inc()
}
