// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/birdnet-display/internal/buildinfo"
	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
)

// DefaultFlushTimeout bounds how long shutdown waits for queued events
const DefaultFlushTimeout = 2 * time.Second

// InitSentry initializes the Sentry SDK and installs it as the error
// reporter. It does nothing unless telemetry is enabled with a DSN.
func InitSentry(settings conf.TelemetrySettings, info *buildinfo.Context, log logger.Logger) error {
	return initSentry(settings, info, log, nil)
}

func initSentry(settings conf.TelemetrySettings, info *buildinfo.Context, log logger.Logger, transport sentry.Transport) error {
	if log == nil {
		log = logger.Global().Module("telemetry")
	}
	if !settings.Enabled || settings.SentryDSN == "" {
		log.Info("Sentry telemetry is disabled (opt-in required)")
		errors.SetTelemetryReporter(nil)
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.SentryDSN,
		SampleRate: 1.0,

		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("birdnet-display@%s", info.Version()),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
		Transport: transport,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_sentry").
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("application", map[string]any{
			"name":       "birdnet-display",
			"version":    info.Version(),
			"build_date": info.BuildDate(),
		})
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("Sentry telemetry initialized", logger.String("release", info.Version()))
	return nil
}

// Flush waits up to timeout for queued events and detaches the reporter.
func Flush(timeout time.Duration) bool {
	errors.SetTelemetryReporter(nil)
	return sentry.Flush(timeout)
}

// applyPrivacyFilters strips host identity and everything not explicitly
// allowed from an event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	for _, key := range []string{"device", "os", "runtime"} {
		delete(event.Contexts, key)
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	delete(event.Tags, "server_name")
	delete(event.Tags, "hostname")

	if event.Request != nil {
		event.Request = &sentry.Request{Method: event.Request.Method}
	}

	return event
}
