// Package metrics exposes network activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/chazu/lanegraph/pkg/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the lanegraph collectors on a private registry.
type Metrics struct {
	registry           *prometheus.Registry
	events             *prometheus.CounterVec
	meshBuilds         *prometheus.CounterVec
	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
}

// New creates a fresh registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanegraph",
		Name:      "network_events_total",
		Help:      "Topology and property changes applied to road networks",
	}, []string{"kind"})

	meshBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanegraph",
		Name:      "mesh_builds_total",
		Help:      "Meshes rebuilt after invalidation, by owning entity",
	}, []string{"owner"})

	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanegraph",
		Name:      "evaluations_total",
		Help:      "Script evaluations by outcome",
	}, []string{"result"})

	evaluationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lanegraph",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of script evaluations",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	})

	registry.MustRegister(events, meshBuilds, evaluations, evaluationDuration)

	// Pre-create every kind so scrapes show zeros.
	for _, k := range network.EventKinds() {
		if k != network.MeshBuilt {
			events.WithLabelValues(k.String())
		}
	}

	return &Metrics{
		registry:           registry,
		events:             events,
		meshBuilds:         meshBuilds,
		evaluations:        evaluations,
		evaluationDuration: evaluationDuration,
	}
}

// Observe records one network event. MeshBuilt events count toward
// mesh_builds_total by owner; everything else toward network_events_total.
func (m *Metrics) Observe(e network.Event) {
	if m == nil {
		return
	}
	if e.Kind != network.MeshBuilt {
		m.events.WithLabelValues(e.Kind.String()).Inc()
		return
	}
	m.meshBuilds.WithLabelValues(owner(e)).Inc()
}

func owner(e network.Event) string {
	switch {
	case e.LaneStrip != nil:
		return "lane-strip"
	case e.Strip != nil:
		return "strip"
	case e.Section != nil:
		return "section"
	case e.Node != nil:
		return "node"
	}
	return "unknown"
}

// Attach subscribes m to every event of n. The returned function detaches.
func (m *Metrics) Attach(n *network.Network) (detach func()) {
	return n.Subscribe(m.Observe)
}

// ObserveEvaluation records one script evaluation.
func (m *Metrics) ObserveEvaluation(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.evaluations.WithLabelValues(result).Inc()
	m.evaluationDuration.Observe(duration.Seconds())
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
