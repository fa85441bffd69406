// Package position caches per-account open positions.
package position

import (
	"context"
	"sort"
	"sync"
	"time"

	"hookrelay/pkg/exchange"
)

// Cache holds the last known open positions for one account, keyed by
// canonical symbol. Each refresh replaces the snapshot wholesale; a
// failed refresh leaves the previous snapshot in place so operators
// still see something, but trading decisions must trigger their own
// refresh rather than trust freshness.
type Cache struct {
	mu          sync.RWMutex
	positions   map[string]exchange.Position
	lastRefresh time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{positions: make(map[string]exchange.Position)}
}

// Refresh fetches positions for the tracked symbols and atomically
// replaces the snapshot, dropping flat entries. On gateway failure the
// cache is left untouched and the error returned.
func (c *Cache) Refresh(ctx context.Context, gw exchange.Gateway, symbols []string) error {
	fetched, err := gw.FetchPositions(ctx, symbols)
	if err != nil {
		return err
	}

	next := make(map[string]exchange.Position, len(fetched))
	for _, p := range fetched {
		if p.Contracts > 0 {
			next[p.Symbol] = p
		}
	}

	c.mu.Lock()
	c.positions = next
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	return nil
}

// Get returns the cached position for a symbol, if any. Pure read.
func (c *Cache) Get(symbol string) (exchange.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.positions[symbol]
	return p, ok
}

// Snapshot returns all cached positions sorted by symbol.
func (c *Cache) Snapshot() []exchange.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]exchange.Position, 0, len(c.positions))
	for _, p := range c.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// LastRefresh reports when the snapshot was last replaced; zero if never.
func (c *Cache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}
