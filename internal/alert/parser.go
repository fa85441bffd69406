package alert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed marks alerts that cannot be turned into a command.
var ErrMalformed = errors.New("malformed alert")

// Parse builds a Command from the tokens of one alert line, with the
// account token already consumed by the dispatcher. The first token
// matching an action verb becomes the action; the first plain token
// after it becomes the symbol. Remaining tokens are classified by an
// ordered rule set; unrecognized ones are ignored so new token kinds
// can be added upstream without breaking old relays.
func Parse(tokens []string) (Command, error) {
	cmd := Command{Leverage: 1}

	actionIdx := -1
	for i, tok := range tokens {
		if action, ok := ParseAction(tok); ok {
			cmd.Action = action
			actionIdx = i
			break
		}
	}
	if actionIdx < 0 {
		return Command{}, fmt.Errorf("%w: no action verb in %q", ErrMalformed, strings.Join(tokens, " "))
	}

	for _, tok := range tokens[actionIdx+1:] {
		switch {
		case parseLeverage(tok, &cmd):
		case parseTimeframe(tok, &cmd):
		case parseSize(tok, &cmd):
		case cmd.Symbol == "":
			cmd.Symbol = tok
		default:
			// unrecognized token, ignore
		}
	}

	if cmd.Symbol == "" {
		return Command{}, fmt.Errorf("%w: no symbol token", ErrMalformed)
	}
	return cmd, nil
}

// parseLeverage matches "<integer>x", e.g. "10x".
func parseLeverage(tok string, cmd *Command) bool {
	body, ok := strings.CutSuffix(lower(tok), "x")
	if !ok || body == "" {
		return false
	}
	n, err := strconv.Atoi(body)
	if err != nil || n < 1 {
		return false
	}
	cmd.Leverage = n
	return true
}

// parseTimeframe matches "<digits><m|h|d>", e.g. "15m", "4h".
func parseTimeframe(tok string, cmd *Command) bool {
	t := lower(tok)
	if len(t) < 2 {
		return false
	}
	unit := t[len(t)-1]
	if unit != 'm' && unit != 'h' && unit != 'd' {
		return false
	}
	if _, err := strconv.Atoi(t[:len(t)-1]); err != nil {
		return false
	}
	cmd.Timeframe = t
	return true
}

// parseSize matches "$<amount>", "<percent>%", or a bare number. A bare
// number above 1 is a literal contract count; at or below 1 it is a
// balance fraction.
func parseSize(tok string, cmd *Command) bool {
	if body, ok := strings.CutPrefix(tok, "$"); ok {
		v, err := strconv.ParseFloat(body, 64)
		if err != nil || v <= 0 {
			return false
		}
		cmd.Quantity = QuantitySpec{Kind: SpecQuote, Value: v}
		return true
	}
	if body, ok := strings.CutSuffix(tok, "%"); ok {
		v, err := strconv.ParseFloat(body, 64)
		if err != nil || v <= 0 || v > 100 {
			return false
		}
		cmd.Quantity = QuantitySpec{Kind: SpecPercent, Value: v / 100}
		return true
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || v <= 0 {
		return false
	}
	if v > 1 {
		cmd.Quantity = QuantitySpec{Kind: SpecContracts, Value: v}
	} else {
		cmd.Quantity = QuantitySpec{Kind: SpecPercent, Value: v}
	}
	return true
}
