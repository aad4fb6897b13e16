package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// Metrics holds the prometheus collectors fed by engine lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	nodeSteps    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	maxSteps     *prometheus.CounterVec
}

// NewMetrics creates the collectors on a dedicated registry, together with
// the standard Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_runs_total",
				Help: "Total number of finished runs by terminal status",
			},
			[]string{"graph", "status"},
		),
		nodeSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_node_steps_total",
				Help: "Total number of node invocations",
			},
			[]string{"graph", "node"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgraph_node_duration_seconds",
				Help:    "Duration of node invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"graph", "node"},
		),
		maxSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgraph_max_steps_exceeded_total",
				Help: "Total number of runs stopped by the max steps ceiling",
			},
			[]string{"graph"},
		),
	}

	m.registry.MustRegister(
		m.runs, m.nodeSteps, m.nodeDuration, m.maxSteps,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests or extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks recording metrics under the given graph label.
func (m *Metrics) Hooks(graph string) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeSteps.WithLabelValues(graph, e.NodeID).Inc()
			m.nodeDuration.WithLabelValues(graph, e.NodeID).Observe(e.Duration.Seconds())
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			m.runs.WithLabelValues(graph, string(e.Status)).Inc()
			if domain.KindOf(e.Err) == "max_steps_exceeded" {
				m.maxSteps.WithLabelValues(graph).Inc()
			}
		},
	}
}
