// Package sizing converts quantity expressions into contract counts
// aligned to a market's lot rules.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"hookrelay/internal/alert"
	"hookrelay/pkg/exchange"
)

var (
	// ErrInvalidInput marks non-positive balance or reference price.
	ErrInvalidInput = errors.New("invalid sizing input")
	// ErrOrderTooSmall marks a computed quantity under the market minimum.
	ErrOrderTooSmall = errors.New("order below market minimum")
)

// Size computes the contract quantity for a quantity spec. The caller
// passes the safety-margined available balance and a reference price
// (orderbook midpoint). The result is step-aligned and at least the
// market minimum; when even the raw quantity falls under the minimum
// the function fails with ErrOrderTooSmall instead of rounding up past
// what the balance affords.
func Size(market exchange.MarketInfo, spec alert.QuantitySpec, leverage int, availableBalance, referencePrice float64) (float64, error) {
	if referencePrice <= 0 {
		return 0, fmt.Errorf("%w: reference price %v", ErrInvalidInput, referencePrice)
	}
	if availableBalance <= 0 {
		return 0, fmt.Errorf("%w: available balance %v", ErrInvalidInput, availableBalance)
	}
	if leverage < 1 {
		leverage = 1
	}
	contractSize := market.ContractSize
	if contractSize <= 0 {
		contractSize = 1
	}

	lev := float64(leverage)
	notionalPerContract := contractSize * referencePrice

	var raw float64
	switch spec.Kind {
	case alert.SpecContracts:
		raw = spec.Value
	case alert.SpecPercent:
		raw = availableBalance * spec.Value * lev / notionalPerContract
	case alert.SpecQuote:
		raw = spec.Value * lev / notionalPerContract
	default:
		raw = availableBalance * lev / notionalPerContract
	}

	qty := RoundToStep(raw, market.QtyStep)
	if qty < market.MinQty {
		if raw >= market.MinQty {
			// Flooring dropped a viable quantity under the minimum;
			// the raw size affords it, so clamp back up. The clamp must
			// stay step-aligned, so take the smallest step multiple at
			// or above the minimum.
			qty = ceilToStep(market.MinQty, market.QtyStep)
		} else {
			return 0, fmt.Errorf("%w: %v < %v", ErrOrderTooSmall, raw, market.MinQty)
		}
	}
	if qty <= 0 {
		return 0, fmt.Errorf("%w: rounds to zero", ErrOrderTooSmall)
	}
	return qty, nil
}

// RoundToStep floors a quantity to a multiple of step. A non-positive
// step leaves the quantity unchanged. Idempotent: re-rounding an
// aligned quantity returns it unchanged.
func RoundToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return snapToStep(math.Floor(qty/step+1e-9), step)
}

// ceilToStep rounds a quantity up to the nearest multiple of step.
func ceilToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return snapToStep(math.Ceil(qty/step-1e-9), step)
}

// snapToStep multiplies steps*step and snaps away binary-float drift.
func snapToStep(steps, step float64) float64 {
	aligned := steps * step
	decimals := 0
	for s := step; s < 1; s *= 10 {
		decimals++
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(aligned*scale) / scale
}
