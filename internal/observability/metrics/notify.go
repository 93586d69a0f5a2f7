package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification channel label values
const (
	ChannelMQTT     = "mqtt"
	ChannelShoutrrr = "shoutrrr"
)

// NotifyMetrics contains the collectors for pin notifications.
type NotifyMetrics struct {
	ConnectionStatus  prometheus.Gauge
	LastConnectTime   prometheus.Gauge
	ReconnectAttempts prometheus.Counter
	Delivered         *prometheus.CounterVec
	Errors            *prometheus.CounterVec
	MessageSize       prometheus.Histogram
	PublishLatency    prometheus.Histogram
}

// NewNotifyMetrics creates and registers the collectors on registry.
func NewNotifyMetrics(registry prometheus.Registerer) (*NotifyMetrics, error) {
	m := &NotifyMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notify metrics: %w", err)
	}
	return m, nil
}

func (m *NotifyMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdnet_display_mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected).",
	})

	m.LastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdnet_display_mqtt_last_connect_time_seconds",
		Help: "Timestamp of the last successful MQTT connection.",
	})

	m.ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdnet_display_mqtt_reconnect_attempts_total",
		Help: "Total number of MQTT reconnection attempts.",
	})

	m.Delivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_notifications_delivered_total",
		Help: "Pin notifications delivered by channel.",
	}, []string{"channel"})

	m.Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdnet_display_notification_errors_total",
		Help: "Pin notification failures by channel.",
	}, []string{"channel"})

	m.MessageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdnet_display_mqtt_message_size_bytes",
		Help:    "Size of MQTT messages in bytes.",
		Buckets: prometheus.ExponentialBuckets(64, 2, 10),
	})

	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdnet_display_mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})
}

// UpdateConnectionStatus records the MQTT connection state.
func (m *NotifyMetrics) UpdateConnectionStatus(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.ConnectionStatus.Set(1)
		m.LastConnectTime.SetToCurrentTime()
		return
	}
	m.ConnectionStatus.Set(0)
}

// IncrementReconnectAttempts counts an MQTT reconnection attempt.
func (m *NotifyMetrics) IncrementReconnectAttempts() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// RecordDelivery counts a delivered notification on channel.
func (m *NotifyMetrics) RecordDelivery(channel string) {
	if m == nil {
		return
	}
	m.Delivered.WithLabelValues(channel).Inc()
}

// RecordError counts a failed notification on channel.
func (m *NotifyMetrics) RecordError(channel string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(channel).Inc()
}

// ObservePublish records an MQTT message size and its publish latency.
func (m *NotifyMetrics) ObservePublish(sizeBytes int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.MessageSize.Observe(float64(sizeBytes))
	m.PublishLatency.Observe(elapsed.Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *NotifyMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ConnectionStatus
	ch <- m.LastConnectTime
	ch <- m.ReconnectAttempts
	m.Delivered.Collect(ch)
	m.Errors.Collect(ch)
	ch <- m.MessageSize
	ch <- m.PublishLatency
}

// Describe implements the prometheus.Collector interface.
func (m *NotifyMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	ch <- m.LastConnectTime.Desc()
	ch <- m.ReconnectAttempts.Desc()
	m.Delivered.Describe(ch)
	m.Errors.Describe(ch)
	ch <- m.MessageSize.Desc()
	ch <- m.PublishLatency.Desc()
}
