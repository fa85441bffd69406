package account

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Refresher periodically refreshes position caches for all active
// accounts. Each refresh takes the account's execution lock so it
// never interleaves with an in-flight order decision.
type Refresher struct {
	registry *Registry
	interval time.Duration
	notify   func(accountID string) // optional, called after a refresh
}

// NewRefresher creates a refresher over the registry.
func NewRefresher(registry *Registry, interval time.Duration, notify func(accountID string)) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{registry: registry, interval: interval, notify: notify}
}

// Start begins the refresh loop until the context is canceled.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.refreshAll(ctx)
			}
		}
	}()
}

func (r *Refresher) refreshAll(ctx context.Context) {
	for _, acct := range r.registry.ListActive() {
		a := acct
		err := a.WithLock(func() error {
			return a.Positions.Refresh(ctx, a.Gateway, a.Symbols)
		})
		if err != nil {
			log.Warn().Err(err).Str("account", a.ID).Msg("position refresh failed")
			continue
		}
		if r.notify != nil {
			r.notify(a.ID)
		}
	}
}
