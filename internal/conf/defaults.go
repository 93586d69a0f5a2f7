// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultListen      = "0.0.0.0:5000"
	DefaultCacheTTL    = 4 * time.Second
	DefaultStateFile   = "config.json"
	DefaultPinnedFile  = "pinned_species.json"
	DefaultPinDuration = 24 * time.Hour
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("webserver.listen", DefaultListen)

	v.SetDefault("display.cachettl", DefaultCacheTTL)
	v.SetDefault("display.statefile", DefaultStateFile)
	v.SetDefault("display.pinnedfile", DefaultPinnedFile)
	v.SetDefault("display.pinduration", DefaultPinDuration)

	v.SetDefault("images.directory", "static/bird_images")
	v.SetDefault("images.urlprefix", "/static/bird_images")
	v.SetDefault("images.specieslist", "species_list.txt")

	v.SetDefault("upstream.listtimeout", 10*time.Second)
	v.SetDefault("upstream.counttimeout", 5*time.Second)
	v.SetDefault("upstream.probetimeout", 500*time.Millisecond)
	v.SetDefault("upstream.useragent", "BirdNET-Display")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/display.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sentrydsn", "")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("notify.mqtt.enabled", false)
	v.SetDefault("notify.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("notify.mqtt.topic", "birdnet-display")
	v.SetDefault("notify.mqtt.username", "")
	v.SetDefault("notify.mqtt.password", "")

	v.SetDefault("notify.shoutrrr.enabled", false)
	v.SetDefault("notify.shoutrrr.urls", []string{})
}
