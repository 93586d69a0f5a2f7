package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient creates a Client closed at cleanup. A nil cfg uses defaults.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

// newStation stands in for a BirdNET-Pi web UI.
func newStation(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	station := httptest.NewServer(handler)
	t.Cleanup(station.Close)
	return station
}

// drain reads and closes a response body so the connection is reused.
func drain(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		t.Logf("closing response body: %v", err)
	}
}
