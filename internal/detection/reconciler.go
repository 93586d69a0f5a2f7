package detection

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
	"github.com/tphakala/birdnet-display/internal/pinned"
)

// defaultParallelism bounds concurrent count lookups and image probes
const defaultParallelism = 4

// PinStore is the subset of the pinned species store used by the reconciler.
type PinStore interface {
	Add(species string)
	ListActive() []pinned.Pin
}

// DailyCounter resolves today's detection count for a species. Failures
// resolve to 0.
type DailyCounter interface {
	Count(ctx context.Context, species, date string) int
}

// ImageProber reports whether a remote image URL answers 200.
type ImageProber interface {
	Alive(ctx context.Context, url string) bool
}

// ImageLookup finds a locally cached image for a species.
type ImageLookup interface {
	CachedImage(species string) (imageURL, copyright string, ok bool)
}

// ReconcilerConfig wires the reconciler's collaborators. Counts, Prober and
// Images may be nil, which skips the matching enrichment step.
type ReconcilerConfig struct {
	Pins        PinStore
	Counts      DailyCounter
	Prober      ImageProber
	Images      ImageLookup
	Logger      logger.Logger
	Metrics     *metrics.DisplayMetrics
	Parallelism int
	Now         func() time.Time
}

// enrichment is the network-derived part of a detection reused across passes
type enrichment struct {
	count     int
	imageURL  string
	copyright string
}

// Reconciler deduplicates, ranks and enriches raw detections.
type Reconciler struct {
	pins        PinStore
	counts      DailyCounter
	prober      ImageProber
	images      ImageLookup
	log         logger.Logger
	metrics     *metrics.DisplayMetrics
	parallelism int
	now         func() time.Time

	mu          sync.Mutex
	generation  uint64
	fingerprint string
	memo        map[string]enrichment
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		pins:        cfg.Pins,
		counts:      cfg.Counts,
		prober:      cfg.Prober,
		images:      cfg.Images,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		parallelism: cfg.Parallelism,
		now:         cfg.Now,
	}
	if r.log == nil {
		r.log = logger.Global().Module("detection")
	}
	if r.parallelism <= 0 {
		r.parallelism = defaultParallelism
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Reconcile turns raw rows into one entry per species, newest first, with
// pin state, daily counts and live image URLs. An empty result returns
// ErrNoDetections.
func (r *Reconciler) Reconcile(ctx context.Context, rows []Detection, today string) ([]Detection, error) {
	r.pinNewSpecies(rows)

	set := Deduplicate(rows, r.now().Location())
	if len(set) == 0 {
		return nil, ErrNoDetections
	}

	fp := Fingerprint(set)

	r.mu.Lock()
	gen := r.generation
	reuse := fp == r.fingerprint && r.memo != nil
	memo := r.memo
	r.mu.Unlock()

	r.annotatePins(set)

	if reuse {
		r.log.Debug("Detection set unchanged, reusing enrichment", logger.Int("species", len(set)))
		for i := range set {
			if e, ok := memo[set[i].Name]; ok {
				set[i].DetectionsToday = e.count
				set[i].ImageURL = e.imageURL
				set[i].Copyright = e.copyright
			}
		}
		return set, nil
	}

	r.enrich(ctx, set, today)

	next := make(map[string]enrichment, len(set))
	for i := range set {
		next[set[i].Name] = enrichment{
			count:     set[i].DetectionsToday,
			imageURL:  set[i].ImageURL,
			copyright: set[i].Copyright,
		}
	}

	r.mu.Lock()
	if r.generation == gen {
		r.fingerprint = fp
		r.memo = next
	}
	r.mu.Unlock()

	return set, nil
}

// Reset forgets the previous pass so the next one re-enriches everything.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.fingerprint = ""
	r.memo = nil
}

func (r *Reconciler) pinNewSpecies(rows []Detection) {
	if r.pins == nil {
		return
	}
	for i := range rows {
		if !rows[i].IsNewSpecies {
			continue
		}
		r.pins.Add(rows[i].Name)
	}
}

func (r *Reconciler) annotatePins(set []Detection) {
	if r.pins == nil {
		return
	}
	active := r.pins.ListActive()
	names := make(map[string]struct{}, len(active))
	for _, p := range active {
		names[p.Name] = struct{}{}
	}
	for i := range set {
		_, set[i].IsPinned = names[set[i].Name]
	}
}

// enrich runs the count lookup and image probe for each entry with bounded
// parallelism. Each goroutine writes only its own index.
func (r *Reconciler) enrich(ctx context.Context, set []Detection, today string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for i := range set {
		g.Go(func() error {
			d := &set[i]
			if r.counts != nil {
				d.DetectionsToday = r.counts.Count(gctx, d.Name, today)
			}
			r.resolveImage(gctx, d)
			return nil
		})
	}

	_ = g.Wait()
}

// resolveImage keeps a live remote image, otherwise substitutes a cached one
func (r *Reconciler) resolveImage(ctx context.Context, d *Detection) {
	if d.ImageURL != "" && r.prober != nil && r.prober.Alive(ctx, d.ImageURL) {
		r.metrics.RecordImageProbe(metrics.ProbeAlive)
		return
	}
	if r.images != nil {
		if url, copyright, ok := r.images.CachedImage(d.Name); ok {
			d.ImageURL = url
			d.Copyright = copyright
			r.metrics.RecordImageProbe(metrics.ProbeSubstituted)
			return
		}
	}
	r.metrics.RecordImageProbe(metrics.ProbeUnchanged)
}

// Deduplicate keeps one entry per Name, the one with the latest CapturedAt
// (first seen wins ties), sorted newest first. The input is not modified.
func Deduplicate(rows []Detection, loc *time.Location) []Detection {
	if loc == nil {
		loc = time.Local
	}

	index := make(map[string]int, len(rows))
	times := make([]time.Time, 0, len(rows))
	set := make([]Detection, 0, len(rows))

	for i := range rows {
		t := rows[i].CapturedTime(loc)
		if j, ok := index[rows[i].Name]; ok {
			if t.After(times[j]) {
				set[j] = rows[i]
				times[j] = t
			}
			continue
		}
		index[rows[i].Name] = len(set)
		set = append(set, rows[i])
		times = append(times, t)
	}

	order := make([]int, len(set))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return times[b].Compare(times[a])
	})

	sorted := make([]Detection, len(set))
	for i, j := range order {
		sorted[i] = set[j]
		sorted[i].IsNewSpecies = false
	}
	return sorted
}
