// Package detection provides the display model for bird detections scraped
// from a BirdNET-Pi station and the reconciler that turns raw per-row
// detections into one ranked, enriched entry per species.
package detection

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// UnknownSpecies is used when a row carries no species label
	UnknownSpecies = "Unknown Species"

	// TimestampLayout is the CapturedAt format
	TimestampLayout = "2006-01-02 15:04:05"

	// DateLayout is the date format used in upstream paths and queries
	DateLayout = "2006-01-02"

	// OfflineLabel replaces the "ago" text for fallback entries
	OfflineLabel = "Offline"
)

// ErrNoDetections signals an empty or unparsable detection list. Callers
// treat it like an unreachable source and degrade to the offline fallback.
var ErrNoDetections = errors.New("no detections parsed")

// Detection is one species entry shown on the display.
type Detection struct {
	Name            string `json:"name"`
	CapturedAt      string `json:"time_raw"`
	ConfidenceValue int    `json:"confidence_value"`
	ImageURL        string `json:"image_url"`
	Copyright       string `json:"copyright"`
	DetectionsToday int    `json:"detections_today"`
	IsPinned        bool   `json:"is_pinned"`
	IsOffline       bool   `json:"is_offline"`

	// IsNewSpecies is set by the source parser and consumed by the reconciler
	IsNewSpecies bool `json:"-"`

	// Display-only, recomputed on every read
	TimeDisplay string `json:"time_display"`
	Confidence  string `json:"confidence"`
}

// CapturedTime parses CapturedAt in loc. Empty or malformed values return the
// zero time so they sort before every real timestamp.
func (d Detection) CapturedTime(loc *time.Location) time.Time {
	if d.CapturedAt == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(TimestampLayout, d.CapturedAt, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// WithDisplayFields returns a copy of d with TimeDisplay and Confidence
// computed against now.
func (d Detection) WithDisplayFields(now time.Time) Detection {
	d.Confidence = FormatConfidence(d.ConfidenceValue)
	if d.IsOffline {
		d.TimeDisplay = OfflineLabel
		return d
	}
	d.TimeDisplay = FormatAgo(SecondsAgo(d.CapturedAt, now))
	return d
}

// SecondsAgo returns the non-negative age of a CapturedAt value relative to
// now. Unparsable values yield 0.
func SecondsAgo(capturedAt string, now time.Time) float64 {
	if capturedAt == "" {
		return 0
	}
	t, err := time.ParseInLocation(TimestampLayout, capturedAt, now.Location())
	if err != nil {
		return 0
	}
	return max(0, now.Sub(t).Seconds())
}

// FormatAgo renders seconds as "Ns ago", "Nm ago", "Nh ago" or "Nd ago",
// truncating toward zero.
func FormatAgo(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds ago", int(seconds))
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", int(minutes))
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", int(hours))
	}
	return fmt.Sprintf("%dd ago", int(hours/24))
}

// FormatConfidence renders a percent value as "NN%".
func FormatConfidence(value int) string {
	return fmt.Sprintf("%d%%", value)
}

// WithDisplayFields applies Detection.WithDisplayFields to a copy of set.
func WithDisplayFields(set []Detection, now time.Time) []Detection {
	if set == nil {
		return nil
	}
	out := make([]Detection, len(set))
	for i := range set {
		out[i] = set[i].WithDisplayFields(now)
	}
	return out
}

// Fingerprint identifies a reconciled set by its ordered name and timestamp
// pairs. Two passes with the same fingerprint carry the same detections.
func Fingerprint(set []Detection) string {
	var b strings.Builder
	for i := range set {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(set[i].Name)
		b.WriteByte('_')
		b.WriteString(set[i].CapturedAt)
	}
	return b.String()
}
