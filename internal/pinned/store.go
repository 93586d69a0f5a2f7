// Package pinned keeps the durable, time-boxed set of highlighted species.
//
// State lives in a single JSON file keyed by species name. Every operation
// reads the file, applies its change and rewrites it atomically under one
// mutex, so the file is always the source of truth and can be edited by hand.
package pinned

import (
	"cmp"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/securefs"
)

const (
	// DefaultDuration is how long a newly pinned species stays highlighted
	DefaultDuration = 24 * time.Hour

	// legacyTimeLayout matches naive ISO timestamps written by older versions
	legacyTimeLayout = "2006-01-02T15:04:05.999999999"
)

// Pin is an active pinned species.
type Pin struct {
	Name           string    `json:"name"`
	PinnedUntil    time.Time `json:"pinned_until"`
	HoursRemaining int       `json:"hours_remaining"`
}

// Notifier receives newly pinned species.
type Notifier interface {
	SpeciesPinned(species string, until time.Time)
}

// entry is the on-disk record
type entry struct {
	PinnedUntil string `json:"pinned_until"`
	Dismissed   bool   `json:"dismissed"`
}

// Config configures a Store.
type Config struct {
	Fs       afero.Fs
	Path     string
	Duration time.Duration
	Now      func() time.Time
	Logger   logger.Logger
	Notifier Notifier
}

// Store is the pinned species store. Safe for concurrent use.
type Store struct {
	fs       afero.Fs
	path     string
	duration time.Duration
	now      func() time.Time
	log      logger.Logger
	notifier Notifier

	mu sync.Mutex
}

// NewStore creates a Store. Zero fields take defaults: the OS filesystem,
// DefaultDuration and time.Now.
func NewStore(cfg Config) *Store {
	s := &Store{
		fs:       cfg.Fs,
		path:     cfg.Path,
		duration: cfg.Duration,
		now:      cfg.Now,
		log:      cfg.Logger,
		notifier: cfg.Notifier,
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.duration <= 0 {
		s.duration = DefaultDuration
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Global().Module("pinned")
	}
	return s
}

// Add pins species for the configured duration. A species already present
// in any state, including dismissed, is left untouched. A failed write is
// logged and dropped; the notifier only hears about persisted pins.
func (s *Store) Add(species string) {
	s.mu.Lock()
	entries := s.load()
	if _, exists := entries[species]; exists {
		s.mu.Unlock()
		return
	}

	until := s.now().Add(s.duration)
	entries[species] = entry{PinnedUntil: until.Format(time.RFC3339)}
	err := s.save(entries)
	s.mu.Unlock()

	if err != nil {
		return
	}

	s.log.Info("Pinned new species",
		logger.String("species", species),
		logger.Time("pinned_until", until))
	if s.notifier != nil {
		s.notifier.SpeciesPinned(species, until)
	}
}

// Dismiss marks species as dismissed. It reports false, without writing,
// when the species is not in the store. A failed write is logged and
// dropped.
func (s *Store) Dismiss(species string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	e, ok := entries[species]
	if !ok {
		return false
	}
	e.Dismissed = true
	entries[species] = e
	_ = s.save(entries)
	return true
}

// DismissAll marks every entry dismissed. A failed write is logged and
// dropped.
func (s *Store) DismissAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	if len(entries) == 0 {
		return
	}
	for name, e := range entries {
		e.Dismissed = true
		entries[name] = e
	}
	_ = s.save(entries)
}

// ListActive returns pins that are not dismissed and not expired, newest
// pin first. Expired entries are removed, and the file is rewritten only
// when something was removed.
func (s *Store) ListActive() []Pin {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	now := s.now()
	active := make([]Pin, 0, len(entries))
	pruned := false

	for name, e := range entries {
		until, ok := s.parseTime(e.PinnedUntil, now.Location())
		if !ok || !now.Before(until) {
			delete(entries, name)
			pruned = true
			continue
		}
		if e.Dismissed {
			continue
		}
		active = append(active, Pin{
			Name:           name,
			PinnedUntil:    until,
			HoursRemaining: int(until.Sub(now).Hours()),
		})
	}

	if pruned {
		_ = s.save(entries)
	}

	slices.SortFunc(active, func(a, b Pin) int {
		if c := b.PinnedUntil.Compare(a.PinnedUntil); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return active
}

// load reads the file. Missing or unreadable files behave as empty.
func (s *Store) load() map[string]entry {
	entries := make(map[string]entry)

	data, ok, err := securefs.ReadFileIfExists(s.fs, s.path)
	if err != nil {
		s.log.Warn("Failed to read pinned species file",
			logger.String("path", s.path),
			logger.Error(err))
		return entries
	}
	if !ok || len(data) == 0 {
		return entries
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("Pinned species file is malformed, treating as empty",
			logger.String("path", s.path),
			logger.Error(err))
		return make(map[string]entry)
	}
	return entries
}

// save writes entries atomically. Failures are logged here; callers only
// need the result to decide on follow-up work.
func (s *Store) save(entries map[string]entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		s.log.Error("Failed to encode pinned species", logger.Error(err))
		return errors.New(err).
			Component("pinned").
			Category(errors.CategoryFileParsing).
			Context("operation", "encode_pinned_species").
			Build()
	}

	if err := securefs.WriteFileAtomic(s.fs, s.path, data, securefs.FilePermissions); err != nil {
		s.log.Error("Failed to write pinned species file",
			logger.String("path", s.path),
			logger.Error(err))
		return errors.New(err).
			Component("pinned").
			Category(errors.CategoryFileIO).
			FileContext(s.path, int64(len(data))).
			Context("operation", "write_pinned_species").
			Build()
	}
	return nil
}

// parseTime accepts RFC 3339 and the legacy naive layout, which is read in loc
func (s *Store) parseTime(value string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(legacyTimeLayout, value, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}
