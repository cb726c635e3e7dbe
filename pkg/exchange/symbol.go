package exchange

import "strings"

// SplitSymbol splits a unified "BASE/QUOTE" symbol. ok is false when there is no separator.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(symbol, "/")
	return base, quote, ok
}

// JoinSymbol builds a unified symbol from its parts.
func JoinSymbol(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// HasQuote reports whether symbol is a unified pair quoted in quote (case-insensitive).
func HasQuote(symbol, quote string) bool {
	s := strings.ToUpper(symbol)
	return strings.Contains(s, "/") && strings.HasSuffix(s, "/"+strings.ToUpper(quote))
}

// WSSymbol converts a unified symbol to the form a venue uses in stream topics:
// "btcusdt" for binance and bybit, "BTC-USDT" for okx and coinbase.
func WSSymbol(symbol string, id ID) string {
	s := strings.ToUpper(strings.Join(strings.Fields(symbol), ""))
	if s == "" {
		s = "BTC/USDT"
	}
	base, quote, ok := SplitSymbol(s)
	if !ok || quote == "" {
		quote = "USDT"
	}
	switch id {
	case OKX, Coinbase:
		return base + "-" + quote
	default:
		return strings.ToLower(base + quote)
	}
}

// CompactToUnified converts "BTCUSDT" style ids to "BTC/USDT" for the
// quotes USDT and USD. Anything else is returned unchanged.
func CompactToUnified(s string) string {
	up := strings.ToUpper(strings.TrimSpace(s))
	if strings.Contains(up, "/") {
		return up
	}
	for _, quote := range []string{"USDT", "USD"} {
		if base, ok := strings.CutSuffix(up, quote); ok && base != "" {
			return base + "/" + quote
		}
	}
	return s
}
