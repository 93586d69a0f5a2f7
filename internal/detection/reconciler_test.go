package detection

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/pinned"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakePins struct {
	mu     sync.Mutex
	added  []string
	active []pinned.Pin
}

func (p *fakePins) Add(species string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, species)
	p.active = append(p.active, pinned.Pin{Name: species, PinnedUntil: testNow.Add(24 * time.Hour)})
}

func (p *fakePins) ListActive() []pinned.Pin {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pinned.Pin(nil), p.active...)
}

type fakeCounter struct {
	calls  atomic.Int32
	counts map[string]int
}

func (c *fakeCounter) Count(_ context.Context, species, _ string) int {
	c.calls.Add(1)
	return c.counts[species]
}

type fakeProber struct {
	calls atomic.Int32
	alive map[string]bool
}

func (p *fakeProber) Alive(_ context.Context, url string) bool {
	p.calls.Add(1)
	return p.alive[url]
}

type fakeImages map[string]string

func (f fakeImages) CachedImage(species string) (imageURL, copyright string, ok bool) {
	url, ok := f[species]
	if !ok {
		return "", "", false
	}
	return url, "cached " + species, true
}

type harness struct {
	pins    *fakePins
	counter *fakeCounter
	prober  *fakeProber
	r       *Reconciler
}

func newHarness() *harness {
	h := &harness{
		pins:    &fakePins{},
		counter: &fakeCounter{counts: map[string]int{"Robin": 7, "Osprey": 2}},
		prober:  &fakeProber{alive: map[string]bool{"https://img/robin.jpg": true}},
	}
	h.r = NewReconciler(ReconcilerConfig{
		Pins:    h.pins,
		Counts:  h.counter,
		Prober:  h.prober,
		Images:  fakeImages{"Osprey": "/static/bird_images/Osprey/1.jpg"},
		Logger:  logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelDebug, time.UTC).Module("detection"),
		Now:     func() time.Time { return testNow },
		Metrics: nil,
	})
	return h
}

func TestReconcile_RobinScenario(t *testing.T) {
	t.Parallel()

	h := newHarness()
	rows := []Detection{
		{Name: "Robin", CapturedAt: "2024-05-01 09:00:00", ConfidenceValue: 80},
		{Name: "Robin", CapturedAt: "2024-05-01 09:05:00", ConfidenceValue: 60},
	}

	set, err := h.r.Reconcile(context.Background(), rows, "2024-05-01")
	require.NoError(t, err)

	require.Len(t, set, 1)
	assert.Equal(t, "Robin", set[0].Name)
	assert.Equal(t, "2024-05-01 09:05:00", set[0].CapturedAt)
	assert.Equal(t, 60, set[0].ConfidenceValue)
	assert.Equal(t, 7, set[0].DetectionsToday)
}

func TestReconcile_EnrichesAndPins(t *testing.T) {
	t.Parallel()

	h := newHarness()
	rows := []Detection{
		{Name: "Robin", CapturedAt: "2024-05-01 09:05:00", ImageURL: "https://img/robin.jpg"},
		{Name: "Osprey", CapturedAt: "2024-05-01 09:30:00", ImageURL: "https://img/dead.jpg", IsNewSpecies: true},
		{Name: "Wren", CapturedAt: "2024-05-01 08:00:00"},
	}

	set, err := h.r.Reconcile(context.Background(), rows, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, set, 3)

	assert.Equal(t, []string{"Osprey", "Robin", "Wren"}, []string{set[0].Name, set[1].Name, set[2].Name})
	assert.Equal(t, []string{"Osprey"}, h.pins.added)

	osprey := set[0]
	assert.True(t, osprey.IsPinned)
	assert.False(t, osprey.IsNewSpecies)
	assert.Equal(t, "/static/bird_images/Osprey/1.jpg", osprey.ImageURL, "dead image replaced from cache")
	assert.Equal(t, "cached Osprey", osprey.Copyright)
	assert.Equal(t, 2, osprey.DetectionsToday)

	robin := set[1]
	assert.False(t, robin.IsPinned)
	assert.Equal(t, "https://img/robin.jpg", robin.ImageURL, "live image kept")

	wren := set[2]
	assert.Empty(t, wren.ImageURL, "no URL and no cached image leaves it empty")
	assert.Zero(t, wren.DetectionsToday)
}

func TestReconcile_FingerprintReuseSkipsNetwork(t *testing.T) {
	t.Parallel()

	h := newHarness()
	rows := []Detection{
		{Name: "Robin", CapturedAt: "2024-05-01 09:05:00", ImageURL: "https://img/robin.jpg"},
		{Name: "Osprey", CapturedAt: "2024-05-01 09:30:00", ImageURL: "https://img/dead.jpg"},
	}
	ctx := context.Background()

	first, err := h.r.Reconcile(ctx, rows, "2024-05-01")
	require.NoError(t, err)
	counts, probes := h.counter.calls.Load(), h.prober.calls.Load()

	// Pin state changes between passes are still reflected.
	h.pins.Add("Robin")
	second, err := h.r.Reconcile(ctx, rows, "2024-05-01")
	require.NoError(t, err)

	assert.Equal(t, counts, h.counter.calls.Load(), "no count lookups on unchanged set")
	assert.Equal(t, probes, h.prober.calls.Load(), "no image probes on unchanged set")
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].ImageURL, second[i].ImageURL)
		assert.Equal(t, first[i].DetectionsToday, second[i].DetectionsToday)
	}
	assert.True(t, second[1].IsPinned)

	h.r.Reset()
	_, err = h.r.Reconcile(ctx, rows, "2024-05-01")
	require.NoError(t, err)
	assert.Greater(t, h.counter.calls.Load(), counts, "reset forces re-enrichment")
}

func TestReconcile_ChangedSetReEnriches(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()

	_, err := h.r.Reconcile(ctx, []Detection{{Name: "Robin", CapturedAt: "2024-05-01 09:05:00"}}, "2024-05-01")
	require.NoError(t, err)
	before := h.counter.calls.Load()

	_, err = h.r.Reconcile(ctx, []Detection{{Name: "Robin", CapturedAt: "2024-05-01 09:06:00"}}, "2024-05-01")
	require.NoError(t, err)
	assert.Greater(t, h.counter.calls.Load(), before)
}

func TestReconcile_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := newHarness().r.Reconcile(context.Background(), nil, "2024-05-01")
	require.ErrorIs(t, err, ErrNoDetections)
}

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	rows := []Detection{
		{Name: "Robin", CapturedAt: "2024-05-01 09:00:00", ConfidenceValue: 80},
		{Name: "Wren", CapturedAt: ""},
		{Name: "Osprey", CapturedAt: "2024-05-01 09:05:00", ConfidenceValue: 1},
		{Name: "Osprey", CapturedAt: "2024-05-01 09:05:00", ConfidenceValue: 2},
		{Name: "Robin", CapturedAt: "2024-05-01 08:00:00", ConfidenceValue: 10},
		{Name: "Jay", CapturedAt: "not a time"},
	}

	set := Deduplicate(rows, time.UTC)

	names := make([]string, len(set))
	for i := range set {
		names[i] = set[i].Name
	}
	assert.Equal(t, []string{"Osprey", "Robin", "Wren", "Jay"}, names)
	assert.Equal(t, 1, set[0].ConfidenceValue, "ties keep the first row seen")
	assert.Equal(t, 80, set[1].ConfidenceValue, "latest timestamp wins")
}

func TestDeduplicate_Invariant(t *testing.T) {
	t.Parallel()

	var rows []Detection
	for i := range 60 {
		rows = append(rows, Detection{
			Name:       fmt.Sprintf("Species %d", i%7),
			CapturedAt: fmt.Sprintf("2024-05-01 %02d:%02d:00", (i*7)%24, (i*13)%60),
		})
	}

	set := Deduplicate(rows, time.UTC)

	seen := make(map[string]bool)
	for i, d := range set {
		assert.False(t, seen[d.Name], "duplicate %s", d.Name)
		seen[d.Name] = true
		if i > 0 {
			assert.False(t, set[i].CapturedTime(time.UTC).After(set[i-1].CapturedTime(time.UTC)), "not sorted at %d", i)
		}
		for _, r := range rows {
			if r.Name == d.Name {
				assert.False(t, r.CapturedTime(time.UTC).After(d.CapturedTime(time.UTC)), "kept row is not the latest for %s", d.Name)
			}
		}
	}
	assert.Len(t, set, 7)
}
