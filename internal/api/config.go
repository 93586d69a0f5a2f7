// Package api provides the HTTP surface of the display service.
package api

import (
	"net"
	"strings"
	"time"

	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/imagecache"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "64K"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BodyLimit caps request bodies, e.g. "64K"
	BodyLimit string

	// ImageDirectory is served read-only under ImageURLPrefix
	ImageDirectory string
	ImageURLPrefix string

	MetricsEnabled bool
	Debug          bool
}

// ConfigFromSettings derives the server configuration from settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	return &Config{
		Listen:          settings.WebServer.Listen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		ImageDirectory:  settings.Images.Directory,
		ImageURLPrefix:  settings.Images.URLPrefix,
		MetricsEnabled:  settings.Metrics.Enabled,
		Debug:           settings.Debug,
	}
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("listen", c.Listen).
			Build()
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.BodyLimit == "" {
		c.BodyLimit = DefaultBodyLimit
	}
	if c.ImageDirectory == "" {
		c.ImageDirectory = imagecache.DefaultDirectory
	}
	if c.ImageURLPrefix == "" {
		c.ImageURLPrefix = imagecache.DefaultURLPrefix
	}
	c.ImageURLPrefix = "/" + strings.Trim(c.ImageURLPrefix, "/")
	return nil
}
