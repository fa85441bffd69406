package exchange

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side that reduces a position held on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// MarginMode distinguishes isolated from cross margin.
type MarginMode string

const (
	MarginIsolated MarginMode = "isolated"
	MarginCrossed  MarginMode = "crossed"
)

// MarketInfo describes one perpetual contract. Immutable once loaded;
// a catalog refresh replaces entries wholesale.
type MarketInfo struct {
	Symbol       string  // canonical, e.g. "BTC/USDT:USDT"
	Base         string  // e.g. "BTC"
	Quote        string  // e.g. "USDT"
	Settle       string  // settle currency, e.g. "USDT"
	ContractSize float64 // quantity of base per contract, > 0
	MinQty       float64 // minimum order quantity in contracts
	QtyStep      float64 // quantity precision step, e.g. 0.001
	PriceTick    float64 // price precision step
}

// Balance is an account balance snapshot in the settle currency.
type Balance struct {
	Free  float64
	Used  float64
	Total float64
}

// OrderBook carries the top of book. If the venue quotes only one
// side, the other is zero.
type OrderBook struct {
	BestBid float64
	BestAsk float64
}

// Mid returns the midpoint of best bid and ask. With one side quoted
// it returns that side; with neither it returns zero.
func (b OrderBook) Mid() float64 {
	switch {
	case b.BestBid > 0 && b.BestAsk > 0:
		return (b.BestBid + b.BestAsk) / 2
	case b.BestBid > 0:
		return b.BestBid
	default:
		return b.BestAsk
	}
}

// PositionSide denotes the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// CloseSide returns the order side that reduces this position.
func (s PositionSide) CloseSide() Side {
	if s == PositionLong {
		return SideSell
	}
	return SideBuy
}

// Position is one open position as reported by the venue.
type Position struct {
	Symbol        string
	Side          PositionSide
	Contracts     float64 // >= 0; zero means flat
	UnrealizedPnl float64
}

// OrderRequest captures a market order intent.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Qty        float64 // contracts, step-aligned
	ReduceOnly bool
	Leverage   int    // 0 means leave venue setting untouched
	ClientID   string // optional client order id
}

// OrderResult is the venue ack for a submitted order.
type OrderResult struct {
	OrderID  string
	ClientID string
}
