package exchange

import (
	"errors"
	"fmt"
)

// Sentinel failures for each gateway operation. Implementations wrap
// these so callers can classify with errors.Is while keeping the
// venue's own message in the chain.
var (
	ErrCatalogUnavailable   = errors.New("market catalog unavailable")
	ErrBalanceUnavailable   = errors.New("balance unavailable")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrPositionsUnavailable = errors.New("positions unavailable")
	ErrOrderRejected        = errors.New("order rejected")
)

// WrapOp attaches a sentinel to an underlying transport or venue error.
func WrapOp(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}
