package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-display/internal/errors"
)

func TestShoutrrrSender_DeliversToGenericWebhook(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	hook := "generic://" + strings.TrimPrefix(server.URL, "http://") + "/hook?disabletls=yes"
	sender, err := NewShoutrrrSender([]string{hook}, 2*time.Second)
	require.NoError(t, err)

	until := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, sender.Send(context.Background(), Event{Species: "Osprey", PinnedUntil: until}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "Osprey")
}

func TestShoutrrrSender_RejectsBadURLs(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrSender(nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewShoutrrrSender([]string{"nosuchservice://token@host"}, time.Second)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token@host")
}
