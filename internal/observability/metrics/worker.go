package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	rebuildTotal    *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	rebuildInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec

	denseVectors prometheus.Gauge
	lexicalDocs  prometheus.Gauge
	graphNodes   prometheus.Gauge
	graphEdges   prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	rebuildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Subsystem: "worker",
			Name:      "index_rebuild_total",
			Help:      "Total index rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	rebuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "worker",
			Name:      "index_rebuild_duration_seconds",
			Help:      "Index rebuild duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	rebuildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "retrieval",
			Subsystem: "worker",
			Name:      "index_rebuild_in_flight",
			Help:      "Number of in-flight index rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between corpus update publication and rebuild start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	sizeGauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "retrieval",
			Subsystem: "index",
			Name:      name,
			Help:      help,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		})
	}
	denseVectors := sizeGauge("dense_vectors", "Vectors in the dense index.")
	lexicalDocs := sizeGauge("lexical_documents", "Documents in the lexical index.")
	graphNodes := sizeGauge("graph_nodes", "Nodes in the knowledge graph.")
	graphEdges := sizeGauge("graph_edges", "Edges in the knowledge graph.")

	registry.MustRegister(
		rebuildTotal, rebuildDuration, rebuildInFlight, queueLag,
		denseVectors, lexicalDocs, graphNodes, graphEdges,
	)

	return &WorkerMetrics{
		registry:        registry,
		rebuildTotal:    rebuildTotal,
		rebuildDuration: rebuildDuration,
		rebuildInFlight: rebuildInFlight,
		queueLag:        queueLag,
		denseVectors:    denseVectors,
		lexicalDocs:     lexicalDocs,
		graphNodes:      graphNodes,
		graphEdges:      graphEdges,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRebuild() {
	m.rebuildInFlight.Inc()
}

func (m *WorkerMetrics) FinishRebuild(service string, duration time.Duration, err error) {
	m.rebuildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.rebuildTotal.WithLabelValues(service, status).Inc()
	m.rebuildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) SetIndexSizes(denseVectors, lexicalDocs, graphNodes, graphEdges int) {
	m.denseVectors.Set(float64(denseVectors))
	m.lexicalDocs.Set(float64(lexicalDocs))
	m.graphNodes.Set(float64(graphNodes))
	m.graphEdges.Set(float64(graphEdges))
}
