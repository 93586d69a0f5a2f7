package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

const (
	pinnedSubtopic    = "pinned"
	connectTimeout    = 30 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

var errNotConnected = errors.NewStd("not connected to MQTT broker")

// MQTTPublisher publishes pin events as JSON to <topic>/pinned.
type MQTTPublisher struct {
	client  mqtt.Client
	broker  string
	topic   string
	log     logger.Logger
	metrics *metrics.NotifyMetrics
}

// NewMQTTPublisher creates a publisher for settings. Connect must be called
// before events can be delivered.
func NewMQTTPublisher(settings conf.MQTTSettings, clientID string, m *metrics.NotifyMetrics, log logger.Logger) *MQTTPublisher {
	p := newPublisher(nil, settings.Broker, settings.Topic, m, log)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(settings.Username)
	opts.SetPassword(settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)
	opts.SetReconnectingHandler(p.onReconnecting)

	p.client = mqtt.NewClient(opts)
	return p
}

func newPublisher(client mqtt.Client, broker, topic string, m *metrics.NotifyMetrics, log logger.Logger) *MQTTPublisher {
	if log == nil {
		log = logger.Global().Module("notify")
	}
	return &MQTTPublisher{
		client:  client,
		broker:  broker,
		topic:   strings.TrimRight(topic, "/") + "/" + pinnedSubtopic,
		log:     log.With(logger.String("broker", logger.RedactURL(broker))),
		metrics: m,
	}
}

// Name implements Sender.
func (p *MQTTPublisher) Name() string { return metrics.ChannelMQTT }

// Topic returns the topic events are published to.
func (p *MQTTPublisher) Topic() string { return p.topic }

// Connect starts connecting to the broker. With connect retry enabled the
// client keeps trying in the background, so a broker that is down at
// startup does not fail the service.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	if err := waitToken(ctx, token, connectTimeout); err != nil {
		return notifyError(err, errors.CategoryMQTTConnection, metrics.ChannelMQTT, "connect")
	}
	return nil
}

// Send implements Sender.
func (p *MQTTPublisher) Send(ctx context.Context, ev Event) error {
	if !p.client.IsConnected() {
		return notifyError(errNotConnected, errors.CategoryMQTTConnection, metrics.ChannelMQTT, "publish")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return notifyError(err, errors.CategoryMQTTPublish, metrics.ChannelMQTT, "marshal_event")
	}

	start := time.Now()
	token := p.client.Publish(p.topic, 1, false, payload)
	if err := waitToken(ctx, token, 0); err != nil {
		return notifyError(err, errors.CategoryMQTTPublish, metrics.ChannelMQTT, "publish")
	}
	p.metrics.ObservePublish(len(payload), time.Since(start))
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client.IsConnectionOpen() {
		p.client.Disconnect(disconnectQuiesce)
	}
	p.metrics.UpdateConnectionStatus(false)
}

func (p *MQTTPublisher) onConnect(mqtt.Client) {
	p.log.Info("Connected to MQTT broker")
	p.metrics.UpdateConnectionStatus(true)
}

func (p *MQTTPublisher) onConnectionLost(_ mqtt.Client, err error) {
	p.log.Warn("Connection to MQTT broker lost", logger.Error(err))
	p.metrics.UpdateConnectionStatus(false)
	p.metrics.RecordError(metrics.ChannelMQTT)
}

func (p *MQTTPublisher) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	p.metrics.IncrementReconnectAttempts()
}

// waitToken waits for token, ctx and an optional timeout, whichever is first
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return errors.NewStd("timed out waiting for MQTT broker")
	}
}
