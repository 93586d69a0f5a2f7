package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"

	mw "github.com/tphakala/birdnet-display/internal/api/middleware"
	"github.com/tphakala/birdnet-display/internal/display"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
	"github.com/tphakala/birdnet-display/internal/pinned"
)

// Engine is the display engine as seen by the HTTP handlers.
type Engine interface {
	Detections(ctx context.Context) display.Snapshot
	Refresh(ctx context.Context) display.Snapshot
	ActivePins() []pinned.Pin
	Dismiss(species string) bool
	DismissAll()
	Configured() bool
	ConfigVersion() int
	UpdateBaseURL(raw string) (string, error)
}

// Server is the HTTP server of the display service.
type Server struct {
	echo    *echo.Echo
	config  *Config
	engine  Engine
	fs      afero.Fs
	log     logger.Logger
	now     func() time.Time
	metrics *metrics.HTTPMetrics

	metricsHandler http.Handler
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(log logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics records request metrics and serves /metrics when enabled.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		if m == nil {
			return
		}
		s.metrics = m.HTTP
		s.metricsHandler = m.Handler()
	}
}

// WithFs sets the filesystem the image directory is served from.
func WithFs(fs afero.Fs) ServerOption {
	return func(s *Server) {
		s.fs = fs
	}
}

// WithClock sets the clock used for generated timestamps.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// New creates the server and registers all routes.
func New(cfg *Config, engine Engine, opts ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		engine: engine,
		fs:     afero.NewOsFs(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("api")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = cfg.Debug
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.BodyLimit(cfg.BodyLimit))
	s.echo.Use(mw.NewRequestLogger(s.log, s.metrics))

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/data", s.getData)
	s.echo.GET("/health", s.getHealth)
	s.echo.GET("/debug/bird_data", s.getDebugBirdData)

	api := s.echo.Group("/api")
	api.GET("/pinned_species", s.getPinnedSpecies)
	api.POST("/dismiss_pinned/:species", s.dismissPinned)
	api.POST("/dismiss_all_pinned", s.dismissAllPinned)
	api.POST("/config/base_url", s.updateBaseURL)

	if s.config.MetricsEnabled && s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	prefix := s.config.ImageURLPrefix
	images := http.StripPrefix(prefix, http.FileServer(afero.NewHttpFs(s.fs).Dir(s.config.ImageDirectory)))
	s.echo.GET(prefix+"/*", echo.WrapHandler(noDirectoryListing(images)))
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("operation", "listen").
			Context("listen", s.config.Listen).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("HTTP server started", logger.String("address", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("operation", "serve").
			Build()
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		<-errCh
		return errors.New(err).
			Component("api").
			Category(errors.CategoryTimeout).
			Context("operation", "shutdown").
			Build()
	}
	<-errCh
	return nil
}

// noDirectoryListing hides directory indexes of the image cache
func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
