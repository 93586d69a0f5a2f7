// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDisplaySettings(&settings.Display); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateImageSettings(&settings.Images); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateUpstreamSettings(&settings.Upstream); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateNotifySettings(&settings.Notify); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("webserver.listen %q is not host:port: %w", settings.Listen, err)
	}
	return nil
}

func validateDisplaySettings(settings *DisplaySettings) error {
	var errs []string

	if settings.CacheTTL <= 0 {
		errs = append(errs, "display.cachettl must be positive")
	}
	if settings.PinDuration <= 0 {
		errs = append(errs, "display.pinduration must be positive")
	}
	if strings.TrimSpace(settings.StateFile) == "" {
		errs = append(errs, "display.statefile must not be empty")
	}
	if strings.TrimSpace(settings.PinnedFile) == "" {
		errs = append(errs, "display.pinnedfile must not be empty")
	}

	return joinErrs(errs)
}

func validateImageSettings(settings *ImageSettings) error {
	var errs []string

	if strings.TrimSpace(settings.Directory) == "" {
		errs = append(errs, "images.directory must not be empty")
	}
	if !strings.HasPrefix(settings.URLPrefix, "/") {
		errs = append(errs, "images.urlprefix must start with /")
	}
	if strings.TrimSpace(settings.SpeciesList) == "" {
		errs = append(errs, "images.specieslist must not be empty")
	}

	return joinErrs(errs)
}

func validateUpstreamSettings(settings *UpstreamSettings) error {
	var errs []string

	for name, d := range map[string]time.Duration{
		"upstream.listtimeout":  settings.ListTimeout,
		"upstream.counttimeout": settings.CountTimeout,
		"upstream.probetimeout": settings.ProbeTimeout,
	} {
		if d <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}

	return joinErrs(errs)
}

func validateNotifySettings(settings *NotifySettings) error {
	var errs []string

	if settings.MQTT.Enabled {
		if settings.MQTT.Broker == "" {
			errs = append(errs, "notify.mqtt.broker is required when MQTT is enabled")
		}
		if settings.MQTT.Topic == "" {
			errs = append(errs, "notify.mqtt.topic is required when MQTT is enabled")
		}
	}
	if settings.Shoutrrr.Enabled && len(settings.Shoutrrr.URLs) == 0 {
		errs = append(errs, "notify.shoutrrr.urls is required when shoutrrr is enabled")
	}

	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	// Stable order, some checks iterate maps
	slices.Sort(errs)
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}
