package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wirebot"

// Metrics holds the bot's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ServeErrors     prometheus.Counter
	Reconnections   prometheus.Counter
	ConnectionState *prometheus.GaugeVec
	Callbacks       *prometheus.CounterVec
	Transfers       *prometheus.CounterVec
}

// New registers the bot collectors plus Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ServeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serve_errors_total",
			Help:      "Connect-and-serve cycles that ended with an error.",
		}),
		Reconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnections_total",
			Help:      "Reconnection attempts scheduled after a failed cycle.",
		}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 for the others.",
		}, []string{"state"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Callbacks dispatched to the handler by kind.",
		}, []string{"kind"}),
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Released stream transfers by final status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.ServeErrors,
		m.Reconnections,
		m.ConnectionState,
		m.Callbacks,
		m.Transfers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetState marks state as the only active connection state.
func (m *Metrics) SetState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}
