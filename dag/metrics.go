package dag

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for a Driver's runs, namespaced
// "chronodag_". A nil *Metrics is never passed around; the zero value
// returned by NewNullMetrics discards every observation.
type Metrics struct {
	nodesTotal    *prometheus.CounterVec
	nodesSkipped  *prometheus.CounterVec
	nodeLatency   *prometheus.HistogramVec
	genLatency    *prometheus.HistogramVec
	bindingWrites *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers the Driver's metric set with registry. A nil
// registry uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		nodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronodag",
			Name:      "nodes_total",
			Help:      "Nodes executed, labeled by kind and outcome (done/error).",
		}, []string{"run_id", "kind", "outcome"}),
		nodesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronodag",
			Name:      "nodes_skipped_total",
			Help:      "Nodes skipped by a when/wait guard or by required-predecessor propagation; every skip is recorded with reason \"guard\".",
		}, []string{"run_id", "reason"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronodag",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"run_id", "kind"}),
		genLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronodag",
			Name:      "generation_latency_ms",
			Help:      "Wall-clock duration of one generation (all its nodes run).",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"run_id"}),
		bindingWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronodag",
			Name:      "binding_writes_total",
			Help:      "Writes to the binding environment's document.",
		}, []string{"run_id"}),
	}
}

// NewNullMetrics returns a Metrics whose recording methods are no-ops,
// for callers that don't want a Prometheus registry at all.
func NewNullMetrics() *Metrics {
	return &Metrics{enabled: false}
}

func (m *Metrics) recordNode(runID, kind, outcome string, latency time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.nodesTotal.WithLabelValues(runID, kind, outcome).Inc()
	m.nodeLatency.WithLabelValues(runID, kind).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) recordSkip(runID, reason string) {
	if m == nil || !m.enabled {
		return
	}
	m.nodesSkipped.WithLabelValues(runID, reason).Inc()
}

func (m *Metrics) recordGeneration(runID string, latency time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.genLatency.WithLabelValues(runID).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) recordBindingWrite(runID string) {
	if m == nil || !m.enabled {
		return
	}
	m.bindingWrites.WithLabelValues(runID).Inc()
}

// Disable stops Metrics from recording further observations (for tests).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable resumes recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
