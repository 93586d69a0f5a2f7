package display

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
)

// watchDebounce coalesces the burst of events an atomic rename produces
const watchDebounce = 200 * time.Millisecond

// WatchUpstreamConfig applies edits made to the upstream record file by
// other processes until ctx is done. The parent directory is watched since
// the file is replaced by rename on every save.
func (e *Engine) WatchUpstreamConfig(ctx context.Context) error {
	path := filepath.Clean(e.upstream.Path())
	dir := filepath.Dir(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(err).
			Component("display").
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_watcher").
			Build()
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return errors.New(err).
			Component("display").
			Category(errors.CategoryFileIO).
			FileContext(dir, 0).
			Context("operation", "watch_config_dir").
			Build()
	}

	log := e.log.With(logger.String("path", path))
	log.Info("Watching upstream configuration for external changes")

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			log.Debug("Upstream configuration watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce = time.After(watchDebounce)

		case <-debounce:
			debounce = nil
			if e.ApplyExternalConfig() {
				log.Info("Applied external upstream configuration change",
					logger.Int("config_version", e.ConfigVersion()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Upstream configuration watcher error", logger.Error(err))
		}
	}
}
