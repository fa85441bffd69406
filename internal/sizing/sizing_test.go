package sizing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookrelay/internal/alert"
	"hookrelay/pkg/exchange"
)

var btcMarket = exchange.MarketInfo{
	Symbol:       "BTC/USDT:USDT",
	ContractSize: 1,
	MinQty:       0.001,
	QtyStep:      0.001,
}

func TestSizePercentOfBalance(t *testing.T) {
	// 1000 * 0.10 * 1 / (1 * 30000) = 0.003333... -> 0.003
	qty, err := Size(btcMarket, alert.QuantitySpec{Kind: alert.SpecPercent, Value: 0.10}, 1, 1000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.003, qty)
}

func TestSizeQuoteAmount(t *testing.T) {
	// 300 * 2 / (1 * 30000) = 0.02
	qty, err := Size(btcMarket, alert.QuantitySpec{Kind: alert.SpecQuote, Value: 300}, 2, 1000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.02, qty)
}

func TestSizeUnspecifiedDeploysFullBalance(t *testing.T) {
	// 1000 * 1 / (1 * 30000) = 0.033333... -> 0.033
	qty, err := Size(btcMarket, alert.QuantitySpec{}, 1, 1000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.033, qty)
}

func TestSizeAbsoluteContractsIgnoresLeverage(t *testing.T) {
	qty, err := Size(btcMarket, alert.QuantitySpec{Kind: alert.SpecContracts, Value: 3.5}, 10, 1000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 3.5, qty)
}

func TestSizeInvalidInput(t *testing.T) {
	spec := alert.QuantitySpec{Kind: alert.SpecPercent, Value: 0.5}

	_, err := Size(btcMarket, spec, 1, 0, 30000)
	assert.ErrorIs(t, err, ErrInvalidInput, "zero balance")

	_, err = Size(btcMarket, spec, 1, -10, 30000)
	assert.ErrorIs(t, err, ErrInvalidInput, "negative balance")

	_, err = Size(btcMarket, spec, 1, 1000, 0)
	assert.ErrorIs(t, err, ErrInvalidInput, "zero price")

	_, err = Size(btcMarket, spec, 1, 1000, -5)
	assert.ErrorIs(t, err, ErrInvalidInput, "negative price")
}

func TestSizeOrderTooSmall(t *testing.T) {
	// 10 * 0.01 / 30000 is far below the 0.001 minimum.
	_, err := Size(btcMarket, alert.QuantitySpec{Kind: alert.SpecPercent, Value: 0.01}, 1, 10, 30000)
	assert.ErrorIs(t, err, ErrOrderTooSmall)
}

func TestSizeClampsRoundingArtifactUpToMinimum(t *testing.T) {
	// raw = 0.003333 floors to 0.003, under a 0.0032 minimum that the
	// raw quantity still affords: expect a clamp, not a failure. The
	// clamp lands on the next step multiple above the minimum so the
	// submitted quantity stays step-aligned.
	market := btcMarket
	market.MinQty = 0.0032
	qty, err := Size(market, alert.QuantitySpec{Kind: alert.SpecPercent, Value: 0.10}, 1, 1000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.004, qty)
	assert.Equal(t, qty, RoundToStep(qty, market.QtyStep), "clamped qty must be step-aligned")
}

func TestSizeAlignedMinimumNeverOvershoots(t *testing.T) {
	// When the minimum is itself a step multiple, flooring a raw size
	// at or above it can never land below it, so no clamp happens and
	// the result is exactly the floored quantity.
	market := btcMarket
	market.MinQty = 0.004
	// raw = 1000 * 0.135 / 30000 = 0.0045 -> floors to 0.004.
	qty, err := Size(market, alert.QuantitySpec{Kind: alert.SpecPercent, Value: 0.135}, 1, 1000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.004, qty)
}

func TestSizeMonotonicity(t *testing.T) {
	spec := func(p float64) alert.QuantitySpec {
		return alert.QuantitySpec{Kind: alert.SpecPercent, Value: p}
	}

	// Non-decreasing in percent.
	prev := 0.0
	for _, p := range []float64{0.1, 0.25, 0.5, 0.75, 1.0} {
		qty, err := Size(btcMarket, spec(p), 1, 1000, 30000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, qty, prev, "p=%v", p)
		prev = qty
	}

	// Non-decreasing in leverage.
	prev = 0
	for _, lev := range []int{1, 2, 5, 10, 20} {
		qty, err := Size(btcMarket, spec(0.5), lev, 1000, 30000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, qty, prev, "leverage=%d", lev)
		prev = qty
	}

	// Non-decreasing in balance.
	prev = 0
	for _, bal := range []float64{100, 500, 1000, 5000, 10000} {
		qty, err := Size(btcMarket, spec(0.5), 1, bal, 30000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, qty, prev, "balance=%v", bal)
		prev = qty
	}

	// Non-increasing in price.
	prev = 1e18
	for _, price := range []float64{10000, 20000, 30000, 60000} {
		qty, err := Size(btcMarket, spec(0.5), 1, 1000, price)
		require.NoError(t, err)
		assert.LessOrEqual(t, qty, prev, "price=%v", price)
		prev = qty
	}
}

func TestRoundToStepIdempotent(t *testing.T) {
	tests := []struct {
		qty  float64
		step float64
	}{
		{0.0033333, 0.001},
		{1.2345, 0.01},
		{42, 1},
		{17.5, 0.5},
		{0.1 + 0.2, 0.1}, // classic float drift
	}
	for _, tt := range tests {
		once := RoundToStep(tt.qty, tt.step)
		twice := RoundToStep(once, tt.step)
		assert.Equal(t, once, twice, "qty=%v step=%v", tt.qty, tt.step)
	}
}

func TestRoundToStepZeroStepPassthrough(t *testing.T) {
	assert.Equal(t, 1.2345, RoundToStep(1.2345, 0))
}

func TestSizeContractSizeDefaultsToOne(t *testing.T) {
	market := btcMarket
	market.ContractSize = 0
	qty, err := Size(market, alert.QuantitySpec{Kind: alert.SpecQuote, Value: 300}, 1, 1000, 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.01, qty)
}

func TestSizeErrorsAreDistinct(t *testing.T) {
	_, errSmall := Size(btcMarket, alert.QuantitySpec{Kind: alert.SpecPercent, Value: 0.01}, 1, 10, 30000)
	_, errInput := Size(btcMarket, alert.QuantitySpec{Kind: alert.SpecPercent, Value: 0.5}, 1, -1, 30000)
	assert.False(t, errors.Is(errSmall, ErrInvalidInput))
	assert.False(t, errors.Is(errInput, ErrOrderTooSmall))
}
