// Package keepalive periodically pings a public URL so free-tier hosts
// do not put the process to sleep between alerts.
package keepalive

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger GETs a URL on a fixed interval.
type Pinger struct {
	url        string
	interval   time.Duration
	instanceID string
	httpClient *http.Client
}

// New creates a pinger. instanceID is sent as a header so multiple
// relays behind one URL can be told apart in access logs.
func New(url string, interval time.Duration, instanceID string) *Pinger {
	if interval <= 0 {
		interval = 280 * time.Second
	}
	return &Pinger{
		url:        url,
		interval:   interval,
		instanceID: instanceID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Start runs the ping loop until the context is canceled. No-op when
// the URL is empty.
func (p *Pinger) Start(ctx context.Context) {
	if p.url == "" {
		return
	}
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.ping(ctx)
			}
		}
	}()
}

func (p *Pinger) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		log.Error().Err(err).Msg("keepalive request build failed")
		return
	}
	if p.instanceID != "" {
		req.Header.Set("X-Instance-ID", p.instanceID)
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("keepalive ping failed")
		return
	}
	res.Body.Close()
	log.Debug().Int("status", res.StatusCode).Msg("keepalive ping sent")
}
