// Package alert turns raw signal lines into typed trading commands.
package alert

// Action is the trading verb carried by an alert.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClose Action = "close"
)

// ParseAction maps a token to an Action, case-insensitively.
func ParseAction(token string) (Action, bool) {
	switch lower(token) {
	case "buy":
		return ActionBuy, true
	case "sell":
		return ActionSell, true
	case "close":
		return ActionClose, true
	}
	return "", false
}

// SpecKind tags the quantity expression variants.
type SpecKind int

const (
	// SpecUnspecified deploys the full available balance.
	SpecUnspecified SpecKind = iota
	// SpecContracts is a literal contract count; leverage is ignored.
	SpecContracts
	// SpecPercent is a fraction (0, 1] of available balance.
	SpecPercent
	// SpecQuote is a fixed amount in the quote currency.
	SpecQuote
)

// QuantitySpec is the tagged quantity expression from a size token.
type QuantitySpec struct {
	Kind  SpecKind
	Value float64
}

// Command is one parsed alert line, symbol still unresolved.
type Command struct {
	Action    Action
	Symbol    string // raw symbol token as received
	Quantity  QuantitySpec
	Leverage  int    // >= 1
	Timeframe string // carried for forward compatibility, unused
}
