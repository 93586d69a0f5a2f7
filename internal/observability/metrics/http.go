package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains the collectors for the display HTTP surface.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers the collectors on registry.
func NewHTTPMetrics(registry prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"}) // path is the route pattern, not the raw URL

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "birdnet_display_http_request_duration_seconds",
		Help:    "Time taken for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.requestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_http_request_errors_total",
		Help: "Total number of HTTP request errors.",
	}, []string{"method", "path", "error_type"})
}

// RecordHTTPRequest counts a completed request and its duration.
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordHTTPRequestError counts a request that ended in an error response.
func (m *HTTPMetrics) RecordHTTPRequestError(method, path, errorType string) {
	if m == nil {
		return
	}
	m.requestErrors.WithLabelValues(method, path, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.requestErrors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.requestErrors.Collect(ch)
}
