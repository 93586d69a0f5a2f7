// config.go: settings for the display service and functions to load and save them.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/securefs"
)

//go:embed config.yaml
var configFiles embed.FS

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Listen string // address to listen on, host:port
}

// DisplaySettings contains settings for the detection display engine.
type DisplaySettings struct {
	CacheTTL    time.Duration // how long a fetched payload is served before refreshing
	StateFile   string        // upstream configuration record, JSON
	PinnedFile  string        // pinned species record, JSON
	PinDuration time.Duration // how long a new species stays pinned
}

// ImageSettings contains settings for the local image cache.
type ImageSettings struct {
	Directory   string // image cache root, one folder per species
	URLPrefix   string // URL path the directory is served under
	SpeciesList string // species list used for the offline payload
}

// UpstreamSettings contains settings for talking to the BirdNET-Pi station.
type UpstreamSettings struct {
	ListTimeout  time.Duration // detection list request timeout
	CountTimeout time.Duration // daily count request timeout
	ProbeTimeout time.Duration // image HEAD probe timeout
	UserAgent    string        // User-Agent sent upstream
}

// TelemetrySettings contains settings for error reporting.
type TelemetrySettings struct {
	Enabled   bool   // true to report errors to Sentry
	SentryDSN string // Sentry DSN
}

// MetricsSettings contains settings for Prometheus metrics.
type MetricsSettings struct {
	Enabled bool // true to expose /metrics
}

// MQTTSettings contains settings for MQTT pin notifications.
type MQTTSettings struct {
	Enabled  bool   // true to publish pin events
	Broker   string // MQTT broker URL
	Topic    string // base topic, events go to <topic>/pinned
	Username string // MQTT username
	Password string // MQTT password
}

// ShoutrrrSettings contains settings for shoutrrr pin notifications.
type ShoutrrrSettings struct {
	Enabled bool     // true to send pin events
	URLs    []string // shoutrrr service URLs
}

// NotifySettings groups pin notification channels.
type NotifySettings struct {
	MQTT     MQTTSettings
	Shoutrrr ShoutrrrSettings
}

// Settings contains all configuration options for the display service.
type Settings struct {
	Debug     bool
	WebServer WebServerSettings
	Display   DisplaySettings
	Images    ImageSettings
	Upstream  UpstreamSettings
	Logging   logger.LoggingConfig
	Telemetry TelemetrySettings
	Metrics   MetricsSettings
	Notify    NotifySettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables using the
// global viper instance and stores the result as the current settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(viper.GetViper()); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := decode(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFrom decodes and validates settings from v without touching the
// global instance. Defaults are applied to v first.
func LoadFrom(v *viper.Viper) (*Settings, error) {
	setDefaultConfig(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper initializes v with default values and reads the configuration file.
func initViper(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		logger.Global().Module("conf").Warn("Environment configuration issues", logger.Error(err))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Defaults and environment are enough to run
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfigYAML returns the embedded default configuration file.
func DefaultConfigYAML() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the embedded default configuration to path
// unless a file already exists there.
func WriteDefaultConfig(afs afero.Fs, path string) (bool, error) {
	if exists, err := afero.Exists(afs, path); err != nil || exists {
		return false, err
	}
	data, err := DefaultConfigYAML()
	if err != nil {
		return false, err
	}
	if err := securefs.WriteFileAtomic(afs, path, data, securefs.FilePermissions); err != nil {
		return false, err
	}
	return true, nil
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically; comments and layout of an existing file are not preserved.
func SaveYAMLConfig(afs afero.Fs, configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "marshal_settings").
			Build()
	}

	if err := securefs.WriteFileAtomic(afs, filepath.Clean(configPath), yamlData, securefs.FilePermissions); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			FileContext(configPath, int64(len(yamlData))).
			Context("operation", "save_settings").
			Build()
	}
	return nil
}
