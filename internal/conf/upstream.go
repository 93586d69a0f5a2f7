package conf

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/securefs"
)

// ErrEmptyBaseURL is returned when a blank station URL is submitted.
var ErrEmptyBaseURL = errors.NewStd("base url must not be empty")

// Upstream is the durable station configuration record.
type Upstream struct {
	BaseURL       string `json:"birdnet_pi_base_url"`
	ConfigVersion int    `json:"config_version"`
}

// Configured reports whether a station URL is set.
func (u Upstream) Configured() bool {
	return u.BaseURL != ""
}

// NormalizeBaseURL trims raw, prepends http:// when no scheme is given and
// drops trailing slashes. Blank input returns ErrEmptyBaseURL.
func NormalizeBaseURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New(ErrEmptyBaseURL).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "http://" + s
	}
	return strings.TrimRight(s, "/"), nil
}

// UpstreamStore persists the Upstream record as JSON. Safe for concurrent use.
type UpstreamStore struct {
	fs   afero.Fs
	path string
	log  logger.Logger

	mu sync.Mutex
	// issued is the highest version handed out, so versions keep rising
	// while writes are failing
	issued int
}

// NewUpstreamStore creates a store for the record at path on fs.
func NewUpstreamStore(fs afero.Fs, path string, log logger.Logger) *UpstreamStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if path == "" {
		path = DefaultStateFile
	}
	if log == nil {
		log = logger.Global().Module("conf")
	}
	return &UpstreamStore{fs: fs, path: path, log: log}
}

// Path returns the record location.
func (s *UpstreamStore) Path() string {
	return s.path
}

// Load reads the record. A missing or malformed file yields the zero record,
// which is the unconfigured state.
func (s *UpstreamStore) Load() Upstream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SetBaseURL stores base with the config version incremented and returns
// the new record. base must already be normalized. The new record is
// returned even when the write fails, together with the write error.
func (s *UpstreamStore) SetBaseURL(base string) (Upstream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.load()
	rec.BaseURL = base
	rec.ConfigVersion = max(rec.ConfigVersion, s.issued) + 1
	s.issued = rec.ConfigVersion

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return rec, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "encode_upstream_record").
			Build()
	}

	if err := securefs.WriteFileAtomic(s.fs, s.path, data, securefs.FilePermissions); err != nil {
		return rec, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			FileContext(s.path, int64(len(data))).
			Context("operation", "write_upstream_record").
			Build()
	}

	s.log.Info("Saved upstream configuration",
		logger.String("base_url", logger.RedactURL(rec.BaseURL)),
		logger.Int("config_version", rec.ConfigVersion))
	return rec, nil
}

func (s *UpstreamStore) load() Upstream {
	data, ok, err := securefs.ReadFileIfExists(s.fs, s.path)
	if err != nil {
		s.log.Warn("Failed to read upstream configuration",
			logger.String("path", s.path),
			logger.Error(err))
		return Upstream{}
	}
	if !ok || len(data) == 0 {
		return Upstream{}
	}

	var rec Upstream
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("Upstream configuration is malformed, treating as unconfigured",
			logger.String("path", s.path),
			logger.Error(err))
		return Upstream{}
	}
	rec.BaseURL = strings.TrimRight(strings.TrimSpace(rec.BaseURL), "/")
	return rec
}
