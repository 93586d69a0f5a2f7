package notify

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelDebug, time.UTC).Module("notify")
}

type recordingSender struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) Send(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSender) Species() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Species)
	}
	return out
}

var fixedNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestMulti_FansOutToEverySender(t *testing.T) {
	t.Parallel()

	failing := &recordingSender{name: "broken", err: errors.NewStd("service down")}
	working := &recordingSender{name: "ok"}
	m := NewMulti(MultiConfig{
		Senders: []Sender{failing, working},
		Now:     func() time.Time { return fixedNow },
		Logger:  testLogger(),
	})

	until := fixedNow.Add(24 * time.Hour)
	m.SpeciesPinned("Osprey", until)
	m.SpeciesPinned("Hoopoe", until)
	m.Close()

	assert.Equal(t, []string{"Osprey", "Hoopoe"}, failing.Species())
	assert.Equal(t, []string{"Osprey", "Hoopoe"}, working.Species(), "a failing sender does not block others")

	working.mu.Lock()
	defer working.mu.Unlock()
	assert.Equal(t, Event{Species: "Osprey", PinnedUntil: until, Timestamp: fixedNow}, working.events[0])
}

func TestMulti_DropsAfterClose(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{name: "ok"}
	m := NewMulti(MultiConfig{Senders: []Sender{sender}, Logger: testLogger()})
	m.Close()
	m.Close()

	assert.NotPanics(t, func() { m.SpeciesPinned("Osprey", fixedNow) })
	assert.Empty(t, sender.Species())
}

func TestMulti_NoSendersIsNoop(t *testing.T) {
	t.Parallel()

	m := NewMulti(MultiConfig{Logger: testLogger()})
	m.SpeciesPinned("Osprey", fixedNow)
	m.Close()
}

func TestMulti_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	blocking := &blockingSender{release: release}
	m := NewMulti(MultiConfig{Senders: []Sender{blocking}, QueueSize: 1, Logger: testLogger()})

	done := make(chan struct{})
	go func() {
		for range 10 {
			m.SpeciesPinned("Osprey", fixedNow)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SpeciesPinned blocked on a full queue")
	}

	close(release)
	m.Close()
	assert.LessOrEqual(t, blocking.calls(), 2)
}

type blockingSender struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (s *blockingSender) Name() string { return "slow" }

func (s *blockingSender) Send(context.Context, Event) error {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	<-s.release
	return nil
}

func (s *blockingSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	msg := FormatMessage(Event{Species: "Osprey", PinnedUntil: time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)})
	assert.Equal(t, "New species pinned: Osprey (until May 2 08:30)", msg)
}

func TestService_NothingEnabled(t *testing.T) {
	t.Parallel()

	svc := FromSettings(context.Background(), conf.NotifySettings{}, nil, testLogger())
	require.NotNil(t, svc.Multi)
	svc.SpeciesPinned("Osprey", fixedNow)
	svc.Close()
}
