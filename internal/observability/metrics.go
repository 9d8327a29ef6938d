// Package observability wires Prometheus metrics and OpenTelemetry tracing
// around the Detection Pipeline's HTTP entry point. Neither concern belongs
// inside proxy.Handler itself — both are pure request-level instrumentation
// layered on top via net/http middleware, the same way a reverse proxy
// keeps its hot-path classification logic free of telemetry plumbing.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and histograms the pipeline's HTTP middleware
// updates on every request. Registered once against a dedicated registry so
// /metrics never picks up Go runtime collectors the operator didn't ask for.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the pipeline's metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_pipeline_requests_total",
			Help: "Total requests handled by the Detection Pipeline, by response status.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_pipeline_request_duration_seconds",
			Help:    "Detection Pipeline request handling latency, from first byte in to last byte out.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

// Handler returns the /metrics exposition endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Wrap instruments next, recording a request count and duration per
// response status code (a block's 403 or the relayed upstream status) once
// the handler returns.
func (m *Metrics) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.status)
		m.requestsTotal.WithLabelValues(status).Inc()
		m.requestDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	})
}

// statusWriter captures the status code a wrapped handler wrote, since
// http.ResponseWriter alone doesn't expose it after the fact.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.status = http.StatusOK
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
