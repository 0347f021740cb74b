package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the slice of metrics the lifecycle services report into
type Recorder interface {
	RecordTransition(entity, from, to string)
	RecordRefusedTransition(entity, reason string)
	RecordUpload(result string)
}

type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	transitionsTotal *prometheus.CounterVec
	refusedTotal     *prometheus.CounterVec
	uploadsTotal     *prometheus.CounterVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dpp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "dpp",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpp",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Committed status transitions by entity.",
		},
		[]string{"entity", "from", "to"},
	)
	refusedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpp",
			Subsystem: "lifecycle",
			Name:      "rejected_transitions_total",
			Help:      "Transitions refused by the lifecycle rules.",
		},
		[]string{"entity", "reason"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dpp",
			Subsystem: "documents",
			Name:      "uploads_total",
			Help:      "Document uploads by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		transitionsTotal,
		refusedTotal,
		uploadsTotal,
	)

	return &Metrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		transitionsTotal: transitionsTotal,
		refusedTotal:     refusedTotal,
		uploadsTotal:     uploadsTotal,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware labels requests by their chi route pattern so ids do not
// explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordTransition(entity, from, to string) {
	if from == "" {
		from = "none"
	}
	m.transitionsTotal.WithLabelValues(entity, from, to).Inc()
}

func (m *Metrics) RecordRefusedTransition(entity, reason string) {
	m.refusedTotal.WithLabelValues(entity, reason).Inc()
}

func (m *Metrics) RecordUpload(result string) {
	m.uploadsTotal.WithLabelValues(result).Inc()
}

type noop struct{}

func NewNoop() Recorder { return noop{} }

func (noop) RecordTransition(string, string, string) {}
func (noop) RecordRefusedTransition(string, string) {}
func (noop) RecordUpload(string) {}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
