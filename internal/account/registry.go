package account

import (
	"context"
	"errors"
	"strings"
)

// ErrAccountNotFound is returned when no configured account matches.
var ErrAccountNotFound = errors.New("account not found")

// Registry holds the configured accounts. Populated once at startup
// and read-only afterwards; only an explicit re-init request may flip
// an account's degraded state.
type Registry struct {
	accounts []*Account
	byID     map[string]*Account // lower-cased id -> account
}

// NewRegistry builds a registry from accounts in configuration order.
func NewRegistry(accounts []*Account) *Registry {
	byID := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		byID[strings.ToLower(a.ID)] = a
	}
	return &Registry{accounts: accounts, byID: byID}
}

// Lookup matches a token against account ids, case-insensitively.
func (r *Registry) Lookup(token string) (*Account, bool) {
	a, ok := r.byID[strings.ToLower(token)]
	return a, ok
}

// ListActive returns all non-degraded accounts in configuration order.
func (r *Registry) ListActive() []*Account {
	out := make([]*Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if degraded, _ := a.Degraded(); !degraded {
			out = append(out, a)
		}
	}
	return out
}

// All returns every configured account, degraded ones included.
func (r *Registry) All() []*Account {
	return r.accounts
}

// Reinit re-runs initialization for one account, the only path that
// may clear (or set) its degraded status after startup.
func (r *Registry) Reinit(ctx context.Context, id string) error {
	a, ok := r.Lookup(id)
	if !ok {
		return ErrAccountNotFound
	}
	return a.Init(ctx)
}
