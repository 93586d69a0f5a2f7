// Package metrics provides Prometheus collectors for the display engine.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values shared by callers
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultEmpty   = "empty"

	ReadFresh         = "fresh"
	ReadInFlight      = "in_flight"
	ReadRefreshed     = "refreshed"
	ReadNotConfigured = "not_configured"

	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"

	ProbeAlive       = "alive"
	ProbeSubstituted = "substituted"
	ProbeUnchanged   = "unchanged"
)

// DisplayMetrics holds the engine collectors. A nil *DisplayMetrics is valid
// and records nothing.
type DisplayMetrics struct {
	UpstreamFetches   *prometheus.CounterVec
	UpstreamDuration  prometheus.Histogram
	CacheReads        *prometheus.CounterVec
	FallbackPayloads  prometheus.Counter
	DailyCountLookups *prometheus.CounterVec
	ImageProbes       *prometheus.CounterVec
	ActivePins        prometheus.Gauge
}

// NewDisplayMetrics creates and registers the collectors on registry.
func NewDisplayMetrics(registry prometheus.Registerer) (*DisplayMetrics, error) {
	m := &DisplayMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register display metrics: %w", err)
	}
	return m, nil
}

func (m *DisplayMetrics) initMetrics() {
	m.UpstreamFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_upstream_fetches_total",
		Help: "Detection list fetches by result.",
	}, []string{"result"})

	m.UpstreamDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdnet_display_upstream_fetch_duration_seconds",
		Help:    "Duration of full refresh passes in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.CacheReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_cache_reads_total",
		Help: "Freshness cache reads by outcome.",
	}, []string{"outcome"})

	m.FallbackPayloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdnet_display_fallback_payloads_total",
		Help: "Number of times the offline fallback supplied the payload.",
	})

	m.DailyCountLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_daily_count_lookups_total",
		Help: "Daily count lookups by result.",
	}, []string{"result"})

	m.ImageProbes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_image_probes_total",
		Help: "Image liveness probes by result.",
	}, []string{"result"})

	m.ActivePins = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdnet_display_active_pins",
		Help: "Number of active pinned species.",
	})
}

// RecordUpstreamFetch counts a list fetch and, for completed passes, its duration.
func (m *DisplayMetrics) RecordUpstreamFetch(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamFetches.WithLabelValues(result).Inc()
	m.UpstreamDuration.Observe(elapsed.Seconds())
}

// RecordCacheRead counts a freshness cache read.
func (m *DisplayMetrics) RecordCacheRead(outcome string) {
	if m == nil {
		return
	}
	m.CacheReads.WithLabelValues(outcome).Inc()
}

// IncrementFallback counts an offline fallback payload.
func (m *DisplayMetrics) IncrementFallback() {
	if m == nil {
		return
	}
	m.FallbackPayloads.Inc()
}

// RecordDailyCountLookup counts a daily count cache lookup.
func (m *DisplayMetrics) RecordDailyCountLookup(result string) {
	if m == nil {
		return
	}
	m.DailyCountLookups.WithLabelValues(result).Inc()
}

// RecordImageProbe counts an image liveness probe.
func (m *DisplayMetrics) RecordImageProbe(result string) {
	if m == nil {
		return
	}
	m.ImageProbes.WithLabelValues(result).Inc()
}

// SetActivePins updates the active pins gauge.
func (m *DisplayMetrics) SetActivePins(n int) {
	if m == nil {
		return
	}
	m.ActivePins.Set(float64(n))
}

// Collect implements the prometheus.Collector interface.
func (m *DisplayMetrics) Collect(ch chan<- prometheus.Metric) {
	m.UpstreamFetches.Collect(ch)
	ch <- m.UpstreamDuration
	m.CacheReads.Collect(ch)
	ch <- m.FallbackPayloads
	m.DailyCountLookups.Collect(ch)
	m.ImageProbes.Collect(ch)
	ch <- m.ActivePins
}

// Describe implements the prometheus.Collector interface.
func (m *DisplayMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.UpstreamFetches.Describe(ch)
	ch <- m.UpstreamDuration.Desc()
	m.CacheReads.Describe(ch)
	ch <- m.FallbackPayloads.Desc()
	m.DailyCountLookups.Describe(ch)
	m.ImageProbes.Describe(ch)
	ch <- m.ActivePins.Desc()
}
