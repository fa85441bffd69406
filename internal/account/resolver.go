package account

import (
	"strings"

	"hookrelay/pkg/exchange"
)

// perpSuffix is the TradingView perpetual-contract marker, e.g.
// "BTCUSDT.P".
const perpSuffix = ".P"

// Resolve maps a loosely-formatted ticker token to a canonical symbol
// in this account's catalog. Deterministic and side-effect-free.
func (a *Account) Resolve(raw string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return resolveSymbol(a.catalog, a.Settle, raw)
}

// resolveSymbol normalizes the token against a fixed catalog:
//  1. upper-case, strip a trailing perpetual marker;
//  2. "BTCUSDT"  -> "BTC/USDT:USDT" when it ends with the settle code;
//  3. "BTC/USDT" -> "BTC/USDT:USDT" when the settle suffix is missing;
//  4. look up the synthesized or original string.
func resolveSymbol(catalog map[string]exchange.MarketInfo, settle, raw string) (string, bool) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	token = strings.TrimSuffix(token, perpSuffix)
	settle = strings.ToUpper(settle)

	switch {
	case !strings.Contains(token, "/"):
		if base, ok := strings.CutSuffix(token, settle); ok && base != "" {
			token = base + "/" + settle + ":" + settle
		}
	case !strings.Contains(token, ":"):
		token += ":" + settle
	}

	if _, ok := catalog[token]; ok {
		return token, true
	}
	return "", false
}
