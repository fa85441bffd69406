// Package account holds the configured trading accounts and their
// per-account state: gateway handle, market catalog, position cache,
// and the execution lock that serializes work per account.
package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"hookrelay/internal/position"
	"hookrelay/pkg/config"
	"hookrelay/pkg/exchange"
)

// Account is one configured exchange account. Identity fields are
// immutable after construction; the market catalog and position cache
// are refreshed over the account's lifetime.
type Account struct {
	ID         string
	Exchange   string
	MarginMode exchange.MarginMode
	Settle     string
	Symbols    []string // tracked symbols for position refresh

	Gateway   exchange.Gateway
	Positions *position.Cache

	// execMu serializes alert execution and periodic refresh for this
	// account. At most one in-flight execution per account.
	execMu sync.Mutex

	mu          sync.RWMutex
	catalog     map[string]exchange.MarketInfo
	degradedErr error
}

// New builds an account from its config entry and gateway. The account
// starts degraded until Init loads its market catalog.
func New(cfg config.AccountConfig, gw exchange.Gateway) *Account {
	mode := exchange.MarginCrossed
	if cfg.MarginMode == "isolated" {
		mode = exchange.MarginIsolated
	}
	return &Account{
		ID:          cfg.ID,
		Exchange:    cfg.Exchange,
		MarginMode:  mode,
		Settle:      cfg.Settle,
		Symbols:     cfg.Symbols,
		Gateway:     gw,
		Positions:   position.NewCache(),
		degradedErr: fmt.Errorf("not initialized"),
	}
}

// Init loads the market catalog. On failure the account is marked
// degraded: it stays in the registry for diagnostics but is excluded
// from alert execution until an explicit re-init succeeds.
func (a *Account) Init(ctx context.Context) error {
	markets, err := a.Gateway.LoadMarkets(ctx)
	if err != nil {
		a.mu.Lock()
		a.degradedErr = err
		a.mu.Unlock()
		log.Error().Err(err).Str("account", a.ID).Msg("account degraded: catalog load failed")
		return err
	}

	a.mu.Lock()
	a.catalog = markets
	a.degradedErr = nil
	a.mu.Unlock()
	log.Info().Str("account", a.ID).Int("markets", len(markets)).Msg("account initialized")
	return nil
}

// Degraded reports whether the account is excluded from execution,
// with the initialization error that caused it.
func (a *Account) Degraded() (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.degradedErr != nil, a.degradedErr
}

// Market returns the catalog entry for a canonical symbol.
func (a *Account) Market(symbol string) (exchange.MarketInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.catalog[symbol]
	return m, ok
}

// WithLock runs fn while holding the account's execution lock. Both
// alert execution and the periodic position refresher go through here
// so neither sees the other's partial state.
func (a *Account) WithLock(fn func() error) error {
	a.execMu.Lock()
	defer a.execMu.Unlock()
	return fn()
}

// SetCatalog replaces the market catalog wholesale (tests and catalog
// refresh).
func (a *Account) SetCatalog(markets map[string]exchange.MarketInfo) {
	a.mu.Lock()
	a.catalog = markets
	a.degradedErr = nil
	a.mu.Unlock()
}
