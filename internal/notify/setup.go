package notify

import (
	"context"
	"time"

	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

const (
	defaultClientID = "birdnet-display"
	// startupConnectWait bounds how long startup blocks on the broker
	startupConnectWait = 5 * time.Second
)

// Service owns the configured senders and the dispatcher feeding them.
type Service struct {
	*Multi
	mqtt *MQTTPublisher
}

// FromSettings builds the enabled channels. A channel that cannot be set up
// is logged and skipped; the service always returns a usable notifier.
func FromSettings(ctx context.Context, settings conf.NotifySettings, m *metrics.NotifyMetrics, log logger.Logger) *Service {
	if log == nil {
		log = logger.Global().Module("notify")
	}

	svc := &Service{}
	var senders []Sender

	if settings.MQTT.Enabled {
		svc.mqtt = NewMQTTPublisher(settings.MQTT, defaultClientID, m, log)
		cctx, cancel := context.WithTimeout(ctx, startupConnectWait)
		err := svc.mqtt.Connect(cctx)
		cancel()
		if err != nil {
			log.Warn("MQTT broker not reachable yet, will keep retrying", logger.Error(err))
		}
		senders = append(senders, svc.mqtt)
		log.Info("MQTT pin notifications enabled",
			logger.String("broker", logger.RedactURL(settings.MQTT.Broker)),
			logger.String("topic", svc.mqtt.Topic()))
	}

	if settings.Shoutrrr.Enabled {
		sender, err := NewShoutrrrSender(settings.Shoutrrr.URLs, defaultSendTimeout)
		if err != nil {
			log.Error("Shoutrrr notifications disabled", logger.Error(err))
		} else {
			senders = append(senders, sender)
			log.Info("Shoutrrr pin notifications enabled", logger.Int("services", len(settings.Shoutrrr.URLs)))
		}
	}

	svc.Multi = NewMulti(MultiConfig{Senders: senders, Logger: log, Metrics: m})
	return svc
}

// Close drains pending events and disconnects from the broker.
func (s *Service) Close() {
	s.Multi.Close()
	if s.mqtt != nil {
		s.mqtt.Close()
	}
}
