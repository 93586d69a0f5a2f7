package birdnetpi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/tphakala/birdnet-display/internal/httpclient"
)

// Prober checks remote image liveness with a short HEAD request.
type Prober struct {
	http    *httpclient.Client
	timeout time.Duration
}

// NewProber creates a Prober. A zero timeout uses DefaultProbeTimeout.
func NewProber(client *httpclient.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = httpclient.New(nil)
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{http: client, timeout: timeout}
}

// Alive reports whether url answers a HEAD request with 200 OK in time.
func (p *Prober) Alive(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.http.Head(ctx, url)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
