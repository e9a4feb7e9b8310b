package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the api-side counters on a private registry so the
// /metrics endpoint exposes only what this service registers.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	routeDecisionsTotal *prometheus.CounterVec
	routeFallbacksTotal *prometheus.CounterVec
	askDuration         *prometheus.HistogramVec
	kbSourcesRetrieved  *prometheus.HistogramVec
	kbNoContextTotal    *prometheus.CounterVec
	uploadsTotal        *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbr",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbr",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kbr",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	routeDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbr",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total routed questions by chosen route.",
		},
		[]string{"service", "route"},
	)
	routeFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbr",
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Total answers produced by a fallback route.",
		},
		[]string{"service", "from", "to"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbr",
			Subsystem: "router",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end ask duration in seconds by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "route"},
	)
	kbSourcesRetrieved := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbr",
			Subsystem: "retrieval",
			Name:      "sources_per_answer",
			Help:      "Distribution of cited knowledge base sources per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	kbNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbr",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total knowledge base answers without retrieved sources.",
		},
		[]string{"service"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbr",
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total uploaded corpus documents by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		routeDecisionsTotal,
		routeFallbacksTotal,
		askDuration,
		kbSourcesRetrieved,
		kbNoContextTotal,
		uploadsTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		routeDecisionsTotal: routeDecisionsTotal,
		routeFallbacksTotal: routeFallbacksTotal,
		askDuration:         askDuration,
		kbSourcesRetrieved:  kbSourcesRetrieved,
		kbNoContextTotal:    kbNoContextTotal,
		uploadsTotal:        uploadsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses per-session paths so the label set stays bounded.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/sessions/") {
		if strings.HasSuffix(path, "/ask") {
			return "/v1/sessions/{session_id}/ask"
		}
		if strings.HasSuffix(path, "/messages") {
			return "/v1/sessions/{session_id}/messages"
		}
		return "/v1/sessions/{session_id}"
	}
	return path
}

func (m *HTTPServerMetrics) RecordRouteDecision(service, route string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	m.routeDecisionsTotal.WithLabelValues(service, route).Inc()
	m.askDuration.WithLabelValues(service, route).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRouteFallback(service, from, to string) {
	m.routeFallbacksTotal.WithLabelValues(service, from, to).Inc()
}

func (m *HTTPServerMetrics) RecordKBSources(service string, sources int) {
	m.kbSourcesRetrieved.WithLabelValues(service).Observe(float64(sources))
	if sources == 0 {
		m.kbNoContextTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordUpload(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.uploadsTotal.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
