// Package display serves the reconciled detection payload to the display
// clients. A FreshnessCache in front of the upstream keeps reads cheap and
// bounded, and the Engine ties the source adapter, reconciler, pinned store
// and offline fallback together behind one facade.
package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tphakala/birdnet-display/internal/detection"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

// DefaultTTL is how long a completed fetch is served before the next read
// triggers a refresh.
const DefaultTTL = 4 * time.Second

// Snapshot is one read of the cache. Detections carry freshly computed
// display fields and are never shared with the cache.
type Snapshot struct {
	Detections []detection.Detection
	SourceDown bool
	FetchedAt  time.Time
}

// Result is what a fetch produces.
type Result struct {
	Detections []detection.Detection
	SourceDown bool
}

// FetchFunc produces a fresh payload. Degraded payloads are returned as a
// Result with SourceDown set; an error or panic means the fetch itself broke.
type FetchFunc func(ctx context.Context) (Result, error)

// FallbackFunc supplies a payload when a fetch breaks and nothing has been
// cached yet.
type FallbackFunc func(ctx context.Context) []detection.Detection

// CacheConfig configures a FreshnessCache.
type CacheConfig struct {
	TTL        time.Duration
	Fetch      FetchFunc
	Fallback   FallbackFunc
	Configured func() bool
	Now        func() time.Time
	Logger     logger.Logger
	Metrics    *metrics.DisplayMetrics
}

// FreshnessCache serves the latest payload and refreshes it at most once per
// TTL. At most one refresh runs at a time; readers arriving while it runs get
// the previous payload instead of waiting. Safe for concurrent use.
type FreshnessCache struct {
	ttl        time.Duration
	fetch      FetchFunc
	fallback   FallbackFunc
	configured func() bool
	now        func() time.Time
	log        logger.Logger
	metrics    *metrics.DisplayMetrics

	// mu guards the fields below. It is never held across a fetch.
	mu         sync.Mutex
	payload    []detection.Detection
	hasPayload bool
	sourceDown bool
	fetchedAt  time.Time
	refreshing bool
	generation uint64
}

// NewFreshnessCache creates a FreshnessCache. Fetch is required.
func NewFreshnessCache(cfg CacheConfig) *FreshnessCache {
	c := &FreshnessCache{
		ttl:        cfg.TTL,
		fetch:      cfg.Fetch,
		fallback:   cfg.Fallback,
		configured: cfg.Configured,
		now:        cfg.Now,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.fallback == nil {
		c.fallback = func(context.Context) []detection.Detection { return nil }
	}
	if c.configured == nil {
		c.configured = func() bool { return true }
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = logger.Global().Module("display")
	}
	return c
}

// Read returns the current payload, refreshing it first when it is stale or
// force is set and no other refresh is running. When no upstream is
// configured it returns an empty, source-down snapshot without fetching.
func (c *FreshnessCache) Read(ctx context.Context, force bool) Snapshot {
	if !c.configured() {
		c.metrics.RecordCacheRead(metrics.ReadNotConfigured)
		return Snapshot{Detections: []detection.Detection{}, SourceDown: true}
	}

	c.mu.Lock()
	now := c.now()
	if !force && c.hasPayload && now.Sub(c.fetchedAt) < c.ttl {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.metrics.RecordCacheRead(metrics.ReadFresh)
		return c.display(snap)
	}
	if c.refreshing {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.metrics.RecordCacheRead(metrics.ReadInFlight)
		return c.display(snap)
	}
	c.refreshing = true
	gen := c.generation
	hadPayload := c.hasPayload
	c.mu.Unlock()

	// An aborted client request must not abort the shared refresh
	c.refresh(context.WithoutCancel(ctx), gen, hadPayload)

	c.mu.Lock()
	snap := c.snapshotLocked()
	if !c.hasPayload {
		// A reset discarded this refresh and nothing has been fetched since
		snap.SourceDown = true
	}
	c.mu.Unlock()
	c.metrics.RecordCacheRead(metrics.ReadRefreshed)
	return c.display(snap)
}

// Reset drops the cached payload. A refresh already running under the old
// state finishes but does not commit.
func (c *FreshnessCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.payload = nil
	c.hasPayload = false
	c.sourceDown = false
	c.fetchedAt = time.Time{}
	c.refreshing = false
}

func (c *FreshnessCache) refresh(ctx context.Context, gen uint64, hadPayload bool) {
	start := c.now()

	res, err := c.safeFetch(ctx)

	var fallback []detection.Detection
	if err != nil && !hadPayload {
		fallback = c.fallback(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		c.log.Debug("Discarding refresh started before reset")
		return
	}
	defer func() { c.refreshing = false }()

	c.fetchedAt = c.now()

	if err != nil {
		c.log.Error("Detection refresh failed", logger.Error(err))
		// An existing payload keeps its source status
		if !c.hasPayload {
			c.payload = fallback
			c.hasPayload = true
			c.sourceDown = true
		}
		return
	}

	c.payload = res.Detections
	c.hasPayload = true
	c.sourceDown = res.SourceDown
	c.log.Debug("Detection payload refreshed",
		logger.Int("detections", len(res.Detections)),
		logger.Bool("source_down", res.SourceDown),
		logger.Duration("elapsed", c.now().Sub(start)))
}

// safeFetch runs the fetch function and turns a panic into an error
func (c *FreshnessCache) safeFetch(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detection fetch panicked: %v", r)
		}
	}()
	return c.fetch(ctx)
}

func (c *FreshnessCache) snapshotLocked() Snapshot {
	return Snapshot{
		Detections: c.payload,
		SourceDown: c.sourceDown,
		FetchedAt:  c.fetchedAt,
	}
}

// display copies the payload with display fields computed for now
func (c *FreshnessCache) display(snap Snapshot) Snapshot {
	out := detection.WithDisplayFields(snap.Detections, c.now())
	if out == nil {
		out = []detection.Detection{}
	}
	snap.Detections = out
	return snap
}
