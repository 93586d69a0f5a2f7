package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatAgo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0s ago"},
		{59.9, "59s ago"},
		{60, "1m ago"},
		{3599, "59m ago"},
		{3600, "1h ago"},
		{86399, "23h ago"},
		{86400, "1d ago"},
		{3 * 86400, "3d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAgo(tt.seconds), "%v seconds", tt.seconds)
	}
}

func TestSecondsAgo(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 9, 10, 0, 0, time.UTC)

	assert.InDelta(t, 300, SecondsAgo("2024-05-01 09:05:00", now), 0.001)
	assert.Zero(t, SecondsAgo("2024-05-01 09:15:00", now), "future timestamps clamp to zero")
	assert.Zero(t, SecondsAgo("", now))
	assert.Zero(t, SecondsAgo("yesterday-ish", now))
}

func TestWithDisplayFields(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 11, 5, 0, 0, time.UTC)
	set := []Detection{
		{Name: "Robin", CapturedAt: "2024-05-01 09:05:00", ConfidenceValue: 60},
		{Name: "Osprey", IsOffline: true},
	}

	out := WithDisplayFields(set, now)

	assert.Equal(t, "2h ago", out[0].TimeDisplay)
	assert.Equal(t, "60%", out[0].Confidence)
	assert.Equal(t, OfflineLabel, out[1].TimeDisplay)
	assert.Equal(t, "0%", out[1].Confidence)

	assert.Empty(t, set[0].TimeDisplay, "input is not modified")
	assert.Nil(t, WithDisplayFields(nil, now))
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	set := []Detection{
		{Name: "Robin", CapturedAt: "2024-05-01 09:05:00", TimeDisplay: "5m ago"},
		{Name: "Osprey", CapturedAt: "2024-05-01 08:00:00", ConfidenceValue: 90},
	}

	assert.Equal(t, "Robin_2024-05-01 09:05:00-Osprey_2024-05-01 08:00:00", Fingerprint(set))
	assert.Empty(t, Fingerprint(nil))

	shown := WithDisplayFields(set, time.Now())
	assert.Equal(t, Fingerprint(set), Fingerprint(shown), "display fields do not affect the fingerprint")
}

func TestCapturedTime(t *testing.T) {
	t.Parallel()

	d := Detection{CapturedAt: "2024-05-01 09:05:00"}
	assert.Equal(t, time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC), d.CapturedTime(time.UTC))

	assert.True(t, Detection{}.CapturedTime(time.UTC).IsZero())
	assert.True(t, Detection{CapturedAt: "09:05"}.CapturedTime(time.UTC).IsZero())
}
