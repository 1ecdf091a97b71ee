package rpc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics tracks the RPC surface. Each server owns its registry
// so multiple servers in one process never collide.
type serverMetrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	errors         *prometheus.CounterVec
	tracesInFlight prometheus.Gauge
}

func newServerMetrics() *serverMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &serverMetrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "debugd",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Number of JSON-RPC requests received, by method.",
		}, []string{"method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "debugd",
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Number of JSON-RPC error responses, by method.",
		}, []string{"method"}),
		tracesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "debugd",
			Subsystem: "rpc",
			Name:      "traces_in_flight",
			Help:      "Trace calls currently executing on the trace pool.",
		}),
	}
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
