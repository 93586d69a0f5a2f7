// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g.
// BIRDNET_DISPLAY_DISPLAY_CACHETTL for display.cachettl.
const EnvPrefix = "BIRDNET_DISPLAY"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the explicitly validated environment bindings.
// Other keys are still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", EnvPrefix + "_DEBUG", validateEnvBool},
		{"webserver.listen", EnvPrefix + "_LISTEN", validateEnvListen},
		{"display.cachettl", EnvPrefix + "_CACHE_TTL", validateEnvDuration},
		{"display.statefile", EnvPrefix + "_STATE_FILE", validateEnvPath},
		{"display.pinnedfile", EnvPrefix + "_PINNED_FILE", validateEnvPath},
		{"images.directory", EnvPrefix + "_IMAGE_DIR", validateEnvPath},
		{"upstream.listtimeout", EnvPrefix + "_LIST_TIMEOUT", validateEnvDuration},
		{"telemetry.sentrydsn", EnvPrefix + "_SENTRY_DSN", validateEnvURL},
		{"notify.mqtt.broker", EnvPrefix + "_MQTT_BROKER", validateEnvURL},
		{"notify.mqtt.password", EnvPrefix + "_MQTT_PASSWORD", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return bindEnvVars(v)
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

// validateEnvDuration validates positive Go duration strings
func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration such as 4s or 500ms")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// validateEnvListen validates host:port listen addresses
func validateEnvListen(value string) error {
	i := strings.LastIndex(value, ":")
	if i < 0 {
		return fmt.Errorf("must be host:port")
	}
	port, err := strconv.Atoi(value[i+1:])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// validateEnvURL validates absolute URLs
func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

// validateEnvPath rejects empty paths and parent directory references
func validateEnvPath(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("path must not be empty")
	}
	for part := range strings.SplitSeq(value, "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", value)
		}
	}
	return nil
}
