// Package serve implements the serve command.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdnet-display/internal/api"
	"github.com/tphakala/birdnet-display/internal/buildinfo"
	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/display"
	"github.com/tphakala/birdnet-display/internal/httpclient"
	"github.com/tphakala/birdnet-display/internal/imagecache"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/notify"
	"github.com/tphakala/birdnet-display/internal/observability"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
	"github.com/tphakala/birdnet-display/internal/pinned"
	"github.com/tphakala/birdnet-display/internal/telemetry"
)

// Command creates the serve command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the display server",
		Long: `Serve the detection display payload over HTTP. Detections are scraped
from the configured BirdNET-Pi station, enriched and cached; when the station
is unreachable a sample of locally cached species is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, info, afero.NewOsFs())
		},
	}
}

// Run wires the engine, notifications and HTTP server and blocks until ctx
// is done.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context, fs afero.Fs) error {
	log := logger.Global().Module("display")
	log.Info("Starting birdnet-display", logger.String("version", info.Version()))

	if err := telemetry.InitSentry(settings.Telemetry, info, logger.Global().Module("telemetry")); err != nil {
		log.Warn("Error telemetry unavailable", logger.Error(err))
	}
	defer telemetry.Flush(telemetry.DefaultFlushTimeout)

	var (
		allMetrics     *observability.Metrics
		displayMetrics *metrics.DisplayMetrics
		notifyMetrics  *metrics.NotifyMetrics
	)
	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return err
		}
		allMetrics, displayMetrics, notifyMetrics = m, m.Display, m.Notify
	}

	notifier := notify.FromSettings(ctx, settings.Notify, notifyMetrics, logger.Global().Module("notify"))
	defer notifier.Close()

	engine := NewEngine(settings, info, fs, displayMetrics, notifier)
	if !engine.Configured() {
		log.Warn("No BirdNET-Pi base URL configured, POST one to /api/config/base_url",
			logger.String("listen", settings.WebServer.Listen))
	}

	server, err := api.New(api.ConfigFromSettings(settings), engine,
		api.WithLogger(logger.Global().Module("api")),
		api.WithMetrics(allMetrics),
		api.WithFs(fs))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		// The display keeps working without live reloads
		if err := engine.WatchUpstreamConfig(gctx); err != nil {
			log.Warn("Upstream configuration watcher unavailable", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info("birdnet-display stopped")
	return err
}

// NewEngine builds the display engine and its stores from settings.
func NewEngine(settings *conf.Settings, info *buildinfo.Context, fs afero.Fs, m *metrics.DisplayMetrics, notifier pinned.Notifier) *display.Engine {
	userAgent := settings.Upstream.UserAgent
	if userAgent == "" {
		userAgent = info.UserAgent()
	}

	images := imagecache.NewCache(imagecache.Config{
		Fs:        fs,
		Directory: settings.Images.Directory,
		URLPrefix: settings.Images.URLPrefix,
		Logger:    logger.Global().Module("imagecache"),
	})

	return display.NewEngine(display.EngineConfig{
		HTTP:     httpclient.New(&httpclient.Config{UserAgent: userAgent}),
		Upstream: conf.NewUpstreamStore(fs, settings.Display.StateFile, logger.Global().Module("conf")),
		Pins: pinned.NewStore(pinned.Config{
			Fs:       fs,
			Path:     settings.Display.PinnedFile,
			Duration: settings.Display.PinDuration,
			Logger:   logger.Global().Module("pinned"),
			Notifier: notifier,
		}),
		Images:       images,
		Fallback:     imagecache.NewFallback(images, fs, settings.Images.SpeciesList, m, logger.Global().Module("imagecache")),
		CacheTTL:     settings.Display.CacheTTL,
		ListTimeout:  settings.Upstream.ListTimeout,
		CountTimeout: settings.Upstream.CountTimeout,
		ProbeTimeout: settings.Upstream.ProbeTimeout,
		Logger:       logger.Global().Module("display"),
		Metrics:      m,
	})
}
