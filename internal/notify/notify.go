// Package notify delivers pinned species events to MQTT and shoutrrr.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

const (
	defaultQueueSize   = 32
	defaultSendTimeout = 10 * time.Second
)

// Event describes a newly pinned species.
type Event struct {
	Species     string    `json:"species"`
	PinnedUntil time.Time `json:"pinned_until"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sender delivers events over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// MultiConfig configures a Multi.
type MultiConfig struct {
	Senders     []Sender
	QueueSize   int
	SendTimeout time.Duration
	Now         func() time.Time
	Logger      logger.Logger
	Metrics     *metrics.NotifyMetrics
}

// Multi fans pin events out to every sender from a background worker.
// Delivery failures are logged and counted, never returned to the caller.
type Multi struct {
	senders []Sender
	timeout time.Duration
	now     func() time.Time
	log     logger.Logger
	metrics *metrics.NotifyMetrics

	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewMulti creates a Multi and starts its worker. Close must be called to
// stop it.
func NewMulti(cfg MultiConfig) *Multi {
	m := &Multi{
		senders: cfg.Senders,
		timeout: cfg.SendTimeout,
		now:     cfg.Now,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}
	if m.timeout <= 0 {
		m.timeout = defaultSendTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = logger.Global().Module("notify")
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	m.queue = make(chan Event, size)

	go m.run()
	return m
}

// SpeciesPinned queues a pin event. It never blocks; events are dropped
// when the queue is full or the dispatcher is closed.
func (m *Multi) SpeciesPinned(species string, until time.Time) {
	if len(m.senders) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- Event{Species: species, PinnedUntil: until, Timestamp: m.now()}:
	default:
		m.log.Warn("Notification queue full, dropping pin event", logger.String("species", species))
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (m *Multi) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	<-m.done
}

func (m *Multi) run() {
	defer close(m.done)
	for ev := range m.queue {
		m.deliver(ev)
	}
}

func (m *Multi) deliver(ev Event) {
	for _, s := range m.senders {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err := s.Send(ctx, ev)
		cancel()

		if err != nil {
			m.metrics.RecordError(s.Name())
			m.log.Warn("Pin notification failed",
				logger.String("channel", s.Name()),
				logger.String("species", ev.Species),
				logger.Error(err))
			continue
		}
		m.metrics.RecordDelivery(s.Name())
		m.log.Debug("Pin notification delivered",
			logger.String("channel", s.Name()),
			logger.String("species", ev.Species))
	}
}

func notifyError(err error, category errors.ErrorCategory, channel, operation string) error {
	return errors.New(err).
		Component("notify").
		Category(category).
		Context("channel", channel).
		Context("operation", operation).
		Build()
}
