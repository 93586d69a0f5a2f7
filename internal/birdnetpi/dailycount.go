package birdnetpi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/tphakala/birdnet-display/internal/httpclient"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

const (
	// DefaultCountExpiry bounds the daily count cache. Same-day lookups are
	// served from memory and stale dates age out.
	DefaultCountExpiry = 48 * time.Hour

	defaultCountRate  = rate.Limit(10)
	defaultCountBurst = 4
)

// DailyCounterConfig configures a DailyCounter.
type DailyCounterConfig struct {
	HTTP    *httpclient.Client
	BaseURL BaseURLFunc
	Timeout time.Duration
	Expiry  time.Duration
	// Limiter paces upstream lookups. Defaults to 10 per second.
	Limiter *rate.Limiter
	Logger  logger.Logger
	Metrics *metrics.DisplayMetrics
}

// DailyCounter resolves and caches today's detection count per species.
// Safe for concurrent use.
type DailyCounter struct {
	http    *httpclient.Client
	baseURL BaseURLFunc
	timeout time.Duration
	limiter *rate.Limiter
	cache   *cache.Cache
	log     logger.Logger
	metrics *metrics.DisplayMetrics
}

// NewDailyCounter creates a DailyCounter.
func NewDailyCounter(cfg DailyCounterConfig) *DailyCounter {
	dc := &DailyCounter{
		http:    cfg.HTTP,
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		limiter: cfg.Limiter,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if dc.http == nil {
		dc.http = httpclient.New(nil)
	}
	if dc.baseURL == nil {
		dc.baseURL = func() string { return "" }
	}
	if dc.timeout <= 0 {
		dc.timeout = DefaultCountTimeout
	}
	if dc.limiter == nil {
		dc.limiter = rate.NewLimiter(defaultCountRate, defaultCountBurst)
	}
	if dc.log == nil {
		dc.log = logger.Global().Module("birdnetpi")
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultCountExpiry
	}
	dc.cache = cache.New(expiry, expiry/2)
	return dc
}

// Count returns the number of detections of species on date. Every failure
// resolves to 0, and the result is cached for the species and date.
func (dc *DailyCounter) Count(ctx context.Context, species, date string) int {
	if species == "" {
		return 0
	}

	key := countKey(species, date)
	if v, found := dc.cache.Get(key); found {
		if n, ok := v.(int); ok {
			dc.metrics.RecordDailyCountLookup(metrics.LookupHit)
			return n
		}
	}

	base := strings.TrimSpace(dc.baseURL())
	if base == "" {
		return 0
	}

	if err := dc.limiter.Wait(ctx); err != nil {
		dc.log.Debug("Daily count lookup not paced in time",
			logger.String("species", species),
			logger.Error(err))
		return 0
	}

	n, err := dc.fetch(ctx, StatsURL(base, species, date), date)
	if err != nil {
		dc.metrics.RecordDailyCountLookup(metrics.LookupError)
		dc.log.Debug("Daily count lookup failed, using 0",
			logger.String("species", species),
			logger.String("date", date),
			logger.Error(err))
		n = 0
	} else {
		dc.metrics.RecordDailyCountLookup(metrics.LookupMiss)
	}

	dc.cache.Set(key, n, cache.DefaultExpiration)
	return n
}

// Reset drops every cached count.
func (dc *DailyCounter) Reset() {
	dc.cache.Flush()
}

// Len returns the number of cached counts.
func (dc *DailyCounter) Len() int {
	return dc.cache.ItemCount()
}

func (dc *DailyCounter) fetch(ctx context.Context, target, date string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dc.timeout)
	defer cancel()

	resp, err := dc.http.Get(ctx, target)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	v, err := jason.NewValueFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("decode daily stats: %w", err)
	}
	values, err := v.Array()
	if err != nil {
		return 0, fmt.Errorf("daily stats is not an array: %w", err)
	}

	for _, value := range values {
		entry, err := value.Object()
		if err != nil {
			continue
		}
		d, err := entry.GetString("date")
		if err != nil || d != date {
			continue
		}
		return countValue(entry)
	}
	return 0, nil
}

// countValue reads "count" as a JSON number or a numeric string
func countValue(entry *jason.Object) (int, error) {
	if n, err := entry.GetInt64("count"); err == nil {
		return int(n), nil
	}
	if f, err := entry.GetFloat64("count"); err == nil {
		return int(f), nil
	}
	s, err := entry.GetString("count")
	if err != nil {
		return 0, fmt.Errorf("count missing or not numeric: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("count %q is not numeric: %w", s, err)
	}
	return n, nil
}

func countKey(species, date string) string {
	return cases.Fold().String(species) + "|" + date
}
