package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyMetrics_Record(t *testing.T) {
	t.Parallel()

	m, err := NewNotifyMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	m.RecordDelivery(ChannelMQTT)
	m.RecordDelivery(ChannelMQTT)
	m.RecordError(ChannelShoutrrr)
	m.IncrementReconnectAttempts()
	m.ObservePublish(128, 5*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Delivered.WithLabelValues(ChannelMQTT)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues(ChannelShoutrrr)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ReconnectAttempts), 0)

	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestNotifyMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *NotifyMetrics
	assert.NotPanics(t, func() {
		m.UpdateConnectionStatus(true)
		m.RecordDelivery(ChannelMQTT)
		m.RecordError(ChannelMQTT)
		m.IncrementReconnectAttempts()
		m.ObservePublish(1, time.Millisecond)
	})
}
