// Package metrics provides Prometheus instrumentation for outbound requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricRequestsTotal          = "foodscan_requests_total"
	MetricRequestDurationSeconds = "foodscan_request_duration_seconds"
)

// Recorder collects per-request metrics. It implements the transport
// Observer interface.
//
// Thread Safety: safe for concurrent use by multiple goroutines.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Total number of outbound requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		requestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "Outbound request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	r.registry.MustRegister(r.requestsTotal, r.requestDurationSeconds)
	return r
}

// ObserveRequest records one completed request. A zero status indicates the
// request failed before any response arrived and is labeled "error".
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.requestsTotal.WithLabelValues(method, path, label).Inc()
	r.requestDurationSeconds.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Registry returns the underlying registry, for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the scrape endpoint.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
