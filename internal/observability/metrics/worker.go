package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics tracks background index rebuilds triggered over the queue.
type WorkerMetrics struct {
	registry *prometheus.Registry

	reindexTotal    *prometheus.CounterVec
	reindexDuration *prometheus.HistogramVec
	reindexInFlight prometheus.Gauge
	corpusDocuments prometheus.Gauge
	corpusChunks    prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	reindexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbr",
			Subsystem: "worker",
			Name:      "reindex_total",
			Help:      "Total index rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	reindexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbr",
			Subsystem: "worker",
			Name:      "reindex_duration_seconds",
			Help:      "Index rebuild duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	reindexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kbr",
			Subsystem: "worker",
			Name:      "reindex_in_flight",
			Help:      "Number of index rebuilds currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	corpusDocuments := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kbr",
			Subsystem: "worker",
			Name:      "corpus_documents",
			Help:      "Documents in the last successfully built index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	corpusChunks := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kbr",
			Subsystem: "worker",
			Name:      "corpus_chunks",
			Help:      "Chunks in the last successfully built index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(reindexTotal, reindexDuration, reindexInFlight, corpusDocuments, corpusChunks)

	return &WorkerMetrics{
		registry:        registry,
		reindexTotal:    reindexTotal,
		reindexDuration: reindexDuration,
		reindexInFlight: reindexInFlight,
		corpusDocuments: corpusDocuments,
		corpusChunks:    corpusChunks,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReindex() {
	m.reindexInFlight.Inc()
}

func (m *WorkerMetrics) FinishReindex(service string, duration time.Duration, err error) {
	m.reindexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.reindexTotal.WithLabelValues(service, status).Inc()
	m.reindexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) SetCorpusSize(documents, chunks int) {
	m.corpusDocuments.Set(float64(documents))
	m.corpusChunks.Set(float64(chunks))
}
