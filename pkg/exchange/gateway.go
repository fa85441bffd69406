// Package exchange defines the gateway boundary between the execution
// core and a derivatives venue.
package exchange

import "context"

// Gateway abstracts one exchange account connection. Implementations
// enforce their own request timeouts; callers treat any error as a
// bounded failure, never a hang.
type Gateway interface {
	// LoadMarkets returns the venue's contract catalog keyed by
	// canonical symbol (e.g. "BTC/USDT:USDT").
	LoadMarkets(ctx context.Context) (map[string]MarketInfo, error)

	// FetchBalance returns the account balance in its settle currency.
	FetchBalance(ctx context.Context) (Balance, error)

	// FetchOrderBook returns the top of book for a symbol.
	FetchOrderBook(ctx context.Context, symbol string) (OrderBook, error)

	// FetchPositions returns open positions for the given symbols. An
	// empty slice means flat everywhere.
	FetchPositions(ctx context.Context, symbols []string) ([]Position, error)

	// SubmitMarketOrder places a market order and returns the venue ack.
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
