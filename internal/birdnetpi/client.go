// Package birdnetpi scrapes a BirdNET-Pi station's web server: the list of
// today's detections, per-species daily counts and remote image liveness.
package birdnetpi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tphakala/birdnet-display/internal/detection"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/httpclient"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

const (
	DefaultListTimeout  = 10 * time.Second
	DefaultCountTimeout = 5 * time.Second
	DefaultProbeTimeout = 500 * time.Millisecond

	detectionsPath = "/todays_detections.php"
	listQuery      = "ajax_detections=true&display_limit=undefined&hard_limit=1000"
)

var (
	// ErrNotConfigured means no base URL has been set. It is a setup state,
	// not an outage.
	ErrNotConfigured = errors.NewStd("birdnet-pi base url not configured")

	// ErrSourceDown means the station could not be reached or answered
	// with an error status.
	ErrSourceDown = errors.NewStd("birdnet-pi source unavailable")
)

// BaseURLFunc returns the current station base URL, empty when unset.
type BaseURLFunc func() string

// ListURL returns the detection list endpoint for base.
func ListURL(base string) string {
	return strings.TrimRight(base, "/") + detectionsPath + "?" + listQuery
}

// StatsURL returns the daily count endpoint for base, species and date.
func StatsURL(base, species, date string) string {
	return strings.TrimRight(base, "/") + detectionsPath +
		"?comname=" + url.QueryEscape(species) + "&date=" + url.QueryEscape(date)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	HTTP        *httpclient.Client
	BaseURL     BaseURLFunc
	ListTimeout time.Duration
	Logger      logger.Logger
	Metrics     *metrics.DisplayMetrics
}

// Client fetches and parses the detection list.
type Client struct {
	http        *httpclient.Client
	baseURL     BaseURLFunc
	listTimeout time.Duration
	log         logger.Logger
	metrics     *metrics.DisplayMetrics
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		http:        cfg.HTTP,
		baseURL:     cfg.BaseURL,
		listTimeout: cfg.ListTimeout,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if c.http == nil {
		c.http = httpclient.New(nil)
	}
	if c.baseURL == nil {
		c.baseURL = func() string { return "" }
	}
	if c.listTimeout <= 0 {
		c.listTimeout = DefaultListTimeout
	}
	if c.log == nil {
		c.log = logger.Global().Module("birdnetpi")
	}
	return c
}

// FetchDetections downloads today's detection list and parses its rows.
// It returns ErrNotConfigured without any request when no base URL is set,
// ErrSourceDown on transport failure or non-2xx status, and
// detection.ErrNoDetections when the page holds no rows.
func (c *Client) FetchDetections(ctx context.Context, today string) ([]detection.Detection, error) {
	base := strings.TrimRight(strings.TrimSpace(c.baseURL()), "/")
	if base == "" {
		return nil, errors.New(ErrNotConfigured).
			Component("birdnetpi").
			Category(errors.CategoryState).
			Build()
	}

	baseURL, err := url.Parse(base + "/")
	if err != nil {
		return nil, errors.New(err).
			Component("birdnetpi").
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_base_url").
			Build()
	}

	listURL := ListURL(base)
	log := c.log.With(logger.String("url", logger.RedactURL(listURL)))

	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.Get(ctx, listURL)
	if err != nil {
		c.metrics.RecordUpstreamFetch(metrics.ResultError, time.Since(start))
		log.Warn("Detection list request failed", logger.Error(err))
		return nil, c.sourceDown(fmt.Errorf("%w: %w", ErrSourceDown, err), listURL, start)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.metrics.RecordUpstreamFetch(metrics.ResultError, time.Since(start))
		log.Warn("Detection list returned error status", logger.Int("status", resp.StatusCode))
		return nil, c.sourceDown(fmt.Errorf("%w: unexpected status %d", ErrSourceDown, resp.StatusCode), listURL, start)
	}

	rows, err := ParseDetections(resp.Body, baseURL, today)
	if err != nil {
		c.metrics.RecordUpstreamFetch(metrics.ResultError, time.Since(start))
		return nil, c.sourceDown(fmt.Errorf("%w: read detection list: %w", ErrSourceDown, err), listURL, start)
	}

	if len(rows) == 0 {
		c.metrics.RecordUpstreamFetch(metrics.ResultEmpty, time.Since(start))
		log.Info("Detection list holds no rows")
		return nil, detection.ErrNoDetections
	}

	c.metrics.RecordUpstreamFetch(metrics.ResultSuccess, time.Since(start))
	log.Debug("Fetched detection list",
		logger.Int("rows", len(rows)),
		logger.Duration("elapsed", time.Since(start)))
	return rows, nil
}

func (c *Client) sourceDown(err error, target string, start time.Time) error {
	return errors.New(err).
		Component("birdnetpi").
		Category(errors.CategoryNetwork).
		NetworkContext(target, c.listTimeout).
		Timing("fetch_detections", time.Since(start)).
		Build()
}
