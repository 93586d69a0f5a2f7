package imagecache

import (
	"context"

	"github.com/spf13/afero"

	"github.com/tphakala/birdnet-display/internal/detection"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

const (
	DefaultSpeciesList = "species_list.txt"

	// fallbackSampleSize is the most species shown while offline
	fallbackSampleSize = 4
)

// Fallback builds the offline payload from the species list and the local
// image cache.
type Fallback struct {
	cache    *Cache
	fs       afero.Fs
	listPath string
	log      logger.Logger
	metrics  *metrics.DisplayMetrics
}

// NewFallback creates a Fallback reading the species list from listPath on
// fs. A nil fs uses the cache's filesystem.
func NewFallback(cache *Cache, fs afero.Fs, listPath string, m *metrics.DisplayMetrics, log logger.Logger) *Fallback {
	if fs == nil {
		fs = cache.fs
	}
	if listPath == "" {
		listPath = DefaultSpeciesList
	}
	if log == nil {
		log = logger.Global().Module("imagecache")
	}
	return &Fallback{
		cache:    cache,
		fs:       fs,
		listPath: listPath,
		log:      log.Module("fallback"),
		metrics:  m,
	}
}

// Sample returns up to four distinct species drawn at random from the
// species list, each with a cached image. Species without a cached image
// are skipped rather than replaced, so fewer entries may be returned.
func (f *Fallback) Sample(_ context.Context) []detection.Detection {
	list, err := LoadSpeciesList(f.fs, f.listPath)
	if err != nil {
		f.log.Warn("Species list unavailable, offline payload is empty",
			logger.String("path", f.listPath),
			logger.Error(err))
		return []detection.Detection{}
	}

	n := min(len(list), fallbackSampleSize)
	order := f.cache.perm(len(list))[:n]

	out := make([]detection.Detection, 0, n)
	for _, idx := range order {
		s := list[idx]
		asset, ok := f.cache.Lookup(s.CommonName)
		if !ok {
			continue
		}
		out = append(out, detection.Detection{
			Name:      s.CommonName,
			ImageURL:  asset.ImageURL,
			Copyright: asset.Copyright,
			IsOffline: true,
		})
	}

	f.metrics.IncrementFallback()
	f.log.Info("Loaded offline payload from local cache",
		logger.Int("species_listed", len(list)),
		logger.Int("species_shown", len(out)))
	return out
}
