package display

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/birdnet-display/internal/birdnetpi"
	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/detection"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/httpclient"
	"github.com/tphakala/birdnet-display/internal/imagecache"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
	"github.com/tphakala/birdnet-display/internal/pinned"
)

// EngineConfig wires an Engine. Upstream, Pins, Images and Fallback are
// required; the rest take defaults.
type EngineConfig struct {
	HTTP     *httpclient.Client
	Upstream *conf.UpstreamStore
	Pins     *pinned.Store
	Images   *imagecache.Cache
	Fallback *imagecache.Fallback

	CacheTTL     time.Duration
	ListTimeout  time.Duration
	CountTimeout time.Duration
	ProbeTimeout time.Duration
	CountLimiter *rate.Limiter

	Now     func() time.Time
	Logger  logger.Logger
	Metrics *metrics.DisplayMetrics
}

// Engine is the facade used by the HTTP surface and the CLI.
type Engine struct {
	upstream   *conf.UpstreamStore
	pins       *pinned.Store
	fallback   *imagecache.Fallback
	client     *birdnetpi.Client
	counter    *birdnetpi.DailyCounter
	reconciler *detection.Reconciler
	cache      *FreshnessCache
	now        func() time.Time
	log        logger.Logger
	metrics    *metrics.DisplayMetrics

	current atomic.Pointer[conf.Upstream]

	// configMu serializes upstream record changes
	configMu sync.Mutex
}

// NewEngine creates an Engine and loads the persisted upstream record.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		upstream: cfg.Upstream,
		pins:     cfg.Pins,
		fallback: cfg.Fallback,
		now:      cfg.Now,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = logger.Global().Module("display")
	}

	rec := e.upstream.Load()
	e.current.Store(&rec)

	hc := cfg.HTTP
	if hc == nil {
		hc = httpclient.New(nil)
	}

	e.client = birdnetpi.NewClient(birdnetpi.ClientConfig{
		HTTP:        hc,
		BaseURL:     e.BaseURL,
		ListTimeout: cfg.ListTimeout,
		Logger:      e.log.Module("birdnetpi"),
		Metrics:     e.metrics,
	})
	e.counter = birdnetpi.NewDailyCounter(birdnetpi.DailyCounterConfig{
		HTTP:    hc,
		BaseURL: e.BaseURL,
		Timeout: cfg.CountTimeout,
		Limiter: cfg.CountLimiter,
		Logger:  e.log.Module("birdnetpi"),
		Metrics: e.metrics,
	})
	e.reconciler = detection.NewReconciler(detection.ReconcilerConfig{
		Pins:    e.pins,
		Counts:  e.counter,
		Prober:  birdnetpi.NewProber(hc, cfg.ProbeTimeout),
		Images:  cfg.Images,
		Logger:  e.log.Module("detection"),
		Metrics: e.metrics,
		Now:     e.now,
	})
	e.cache = NewFreshnessCache(CacheConfig{
		TTL:        cfg.CacheTTL,
		Fetch:      e.fetch,
		Fallback:   e.fallback.Sample,
		Configured: e.Configured,
		Now:        e.now,
		Logger:     e.log.Module("cache"),
		Metrics:    e.metrics,
	})

	e.log.Info("Display engine ready",
		logger.Bool("configured", rec.Configured()),
		logger.String("base_url", logger.RedactURL(rec.BaseURL)),
		logger.Int("config_version", rec.ConfigVersion))
	return e
}

// Detections returns the cached payload, refreshing it when stale.
func (e *Engine) Detections(ctx context.Context) Snapshot {
	return e.cache.Read(ctx, false)
}

// Refresh refreshes the payload unless a refresh is already running.
func (e *Engine) Refresh(ctx context.Context) Snapshot {
	return e.cache.Read(ctx, true)
}

// ActivePins returns the pinned species that are still highlighted.
func (e *Engine) ActivePins() []pinned.Pin {
	pins := e.pins.ListActive()
	e.metrics.SetActivePins(len(pins))
	return pins
}

// Dismiss un-highlights species. It reports false when species is not pinned.
func (e *Engine) Dismiss(species string) bool {
	return e.pins.Dismiss(species)
}

// DismissAll un-highlights every pinned species.
func (e *Engine) DismissAll() {
	e.pins.DismissAll()
}

// Configured reports whether a station base URL is set.
func (e *Engine) Configured() bool {
	return e.current.Load().Configured()
}

// BaseURL returns the active station base URL, empty when unset.
func (e *Engine) BaseURL() string {
	return e.current.Load().BaseURL
}

// ConfigVersion returns the version of the active upstream record.
func (e *Engine) ConfigVersion() int {
	return e.current.Load().ConfigVersion
}

// UpdateBaseURL normalizes raw, persists it with a new config version and
// switches the engine to it. Cached payloads, enrichment and daily counts
// from the previous station are dropped. Only blank input is an error; a
// failed write is logged and the new station is used for this run.
func (e *Engine) UpdateBaseURL(raw string) (string, error) {
	e.configMu.Lock()
	defer e.configMu.Unlock()

	base, err := conf.NormalizeBaseURL(raw)
	if err != nil {
		return "", err
	}

	rec, err := e.upstream.SetBaseURL(base)
	if err != nil {
		e.log.Warn("Upstream configuration not saved, keeping it in memory",
			logger.String("path", e.upstream.Path()),
			logger.Error(err))
	}

	e.apply(rec)
	return base, nil
}

// ApplyExternalConfig reloads the upstream record from disk and applies it
// when it differs from the active one. It reports whether anything changed.
func (e *Engine) ApplyExternalConfig() bool {
	e.configMu.Lock()
	defer e.configMu.Unlock()

	rec := e.upstream.Load()
	if rec == *e.current.Load() {
		return false
	}
	e.apply(rec)
	return true
}

func (e *Engine) apply(rec conf.Upstream) {
	e.current.Store(&rec)
	e.cache.Reset()
	e.reconciler.Reset()
	e.counter.Reset()

	e.log.Info("Upstream configuration applied",
		logger.String("base_url", logger.RedactURL(rec.BaseURL)),
		logger.Int("config_version", rec.ConfigVersion))
}

// fetch is the cache's fetch function. Unreachable or empty sources degrade
// to the offline payload.
func (e *Engine) fetch(ctx context.Context) (Result, error) {
	today := e.now().Format(detection.DateLayout)

	rows, err := e.client.FetchDetections(ctx, today)
	if err != nil {
		if errors.Is(err, birdnetpi.ErrNotConfigured) {
			return Result{Detections: []detection.Detection{}, SourceDown: true}, nil
		}
		return e.degraded(ctx, err), nil
	}

	set, err := e.reconciler.Reconcile(ctx, rows, today)
	if err != nil {
		return e.degraded(ctx, err), nil
	}
	return Result{Detections: set}, nil
}

func (e *Engine) degraded(ctx context.Context, cause error) Result {
	e.log.Warn("Source unavailable, serving offline payload", logger.Error(cause))
	return Result{Detections: e.fallback.Sample(ctx), SourceDown: true}
}
