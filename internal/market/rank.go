package market

import (
	"fmt"
	"math"
	"sort"

	"mmtrade/internal/render"
	"mmtrade/pkg/exchange"
)

// RankedSymbol is one entry of a volume ranking.
type RankedSymbol struct {
	Symbol string  `json:"symbol"`
	Volume float64 `json:"volume"`
}

// Display renders "BTC/USDT (5.0B)".
func (r RankedSymbol) Display() string {
	return fmt.Sprintf("%s (%s)", r.Symbol, render.FormatVolume(r.Volume))
}

// Rank keeps the tickers quoted in quote and sorts them by 24h volume,
// highest first. Ties keep their input order.
//
// The symbol is the ticker's Symbol, falling back to its Key. Volume is the
// quote volume, falling back to the base volume, then 0.
func Rank(tickers []exchange.Ticker, quote string) []RankedSymbol {
	out := make([]RankedSymbol, 0, len(tickers))
	for _, t := range tickers {
		symbol := t.Symbol
		if symbol == "" {
			symbol = t.Key
		}
		if symbol == "" || !exchange.HasQuote(symbol, quote) {
			continue
		}
		out = append(out, RankedSymbol{Symbol: symbol, Volume: volumeOf(t)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume > out[j].Volume
	})
	return out
}

func volumeOf(t exchange.Ticker) float64 {
	for _, v := range []*float64{t.QuoteVolume, t.BaseVolume} {
		if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			return *v
		}
	}
	return 0
}

// Fallback lists active catalog markets quoted in quote with zero volume,
// at most limit of them. Used when the ticker snapshot ranks nothing.
func Fallback(markets []exchange.Market, quote string, limit int) []RankedSymbol {
	out := make([]RankedSymbol, 0, min(len(markets), max(limit, 0)))
	for _, m := range markets {
		if len(out) >= limit {
			break
		}
		if !m.Active {
			continue
		}
		symbol := m.Symbol
		if symbol == "" {
			symbol = m.ID
		}
		if exchange.HasQuote(symbol, quote) {
			out = append(out, RankedSymbol{Symbol: symbol})
		}
	}
	return out
}

// Truncate returns a copy of at most the first limit entries.
func Truncate(list []RankedSymbol, limit int) []RankedSymbol {
	n := len(list)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]RankedSymbol, n)
	copy(out, list[:n])
	return out
}
