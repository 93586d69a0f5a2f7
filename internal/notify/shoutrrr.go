package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/observability/metrics"
)

const notificationTitle = "BirdNET Display"

// ShoutrrrSender sends pin events to every configured shoutrrr URL.
type ShoutrrrSender struct {
	router *router.ServiceRouter
}

// NewShoutrrrSender validates urls and creates a sender for them.
func NewShoutrrrSender(urls []string, timeout time.Duration) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, notifyError(errors.NewStd("at least one shoutrrr URL is required"),
			errors.CategoryConfiguration, metrics.ChannelShoutrrr, "create_sender")
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the error text can carry service tokens from the URL
		return nil, notifyError(errors.NewStd("invalid shoutrrr URL"),
			errors.CategoryConfiguration, metrics.ChannelShoutrrr, "create_sender")
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrSender{router: sender}, nil
}

// Name implements Sender.
func (s *ShoutrrrSender) Name() string { return metrics.ChannelShoutrrr }

// Send implements Sender. The router applies its own timeout.
func (s *ShoutrrrSender) Send(_ context.Context, ev Event) error {
	params := types.Params{}
	params.SetTitle(notificationTitle)

	for _, err := range s.router.Send(FormatMessage(ev), &params) {
		if err != nil {
			return notifyError(err, errors.CategoryNotification, metrics.ChannelShoutrrr, "send")
		}
	}
	return nil
}

// FormatMessage renders the human readable text of ev.
func FormatMessage(ev Event) string {
	return fmt.Sprintf("New species pinned: %s (until %s)", ev.Species, ev.PinnedUntil.Format("Jan 2 15:04"))
}
