// Package cmd assembles the birdnet-display command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-display/cmd/config"
	"github.com/tphakala/birdnet-display/cmd/pinned"
	"github.com/tphakala/birdnet-display/cmd/serve"
	"github.com/tphakala/birdnet-display/cmd/upstream"
	"github.com/tphakala/birdnet-display/internal/buildinfo"
	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/imagecache"
	"github.com/tphakala/birdnet-display/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "birdnet-display",
		Short:         "Kiosk display for a BirdNET-Pi station",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	setupFlags(rootCmd)

	rootCmd.AddCommand(
		serve.Command(settings, info),
		pinned.Command(settings),
		upstream.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		}

		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		return initialize(settings)
	}

	return rootCmd
}

// initialize installs the global logger from settings
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("listen", conf.DefaultListen, "Listen address of the HTTP server")
	flags.String("state-file", conf.DefaultStateFile, "Path of the upstream configuration record")
	flags.String("pinned-file", conf.DefaultPinnedFile, "Path of the pinned species record")
	flags.String("images", imagecache.DefaultDirectory, "Local bird image cache directory")
	flags.Duration("cache-ttl", conf.DefaultCacheTTL, "How long a fetched payload is served before refreshing")
	flags.Bool("metrics", false, "Expose Prometheus metrics at /metrics")

	// Flags override config file and environment values
	for flag, key := range map[string]string{
		"debug":       "debug",
		"listen":      "webserver.listen",
		"state-file":  "display.statefile",
		"pinned-file": "display.pinnedfile",
		"images":      "images.directory",
		"cache-ttl":   "display.cachettl",
		"metrics":     "metrics.enabled",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}
