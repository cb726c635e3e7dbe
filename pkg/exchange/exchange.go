package exchange

import (
	"context"
	"strconv"
	"strings"

	"mmtrade/pkg/errors"
)

// ID identifies one of the supported exchanges.
type ID string

const (
	Binance  ID = "binance"
	Coinbase ID = "coinbase"
	Bybit    ID = "bybit"
	OKX      ID = "okx"
)

var (
	knownIDs     = []ID{Binance, Coinbase, Bybit, OKX}
	displayNames = map[ID]string{
		Binance:  "Binance",
		Coinbase: "Coinbase",
		Bybit:    "Bybit",
		OKX:      "OKX",
	}
)

// IDs returns the supported exchanges in display order.
func IDs() []ID {
	out := make([]ID, len(knownIDs))
	copy(out, knownIDs)
	return out
}

// ParseID resolves s (case-insensitive, surrounding space ignored) to a known ID.
func ParseID(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := displayNames[id]; ok {
		return id, nil
	}
	return "", errors.Newf(errors.KindConfig,
		"unknown exchange: %s. allowed: binance, coinbase, bybit, okx", s)
}

// DisplayName returns the human-facing exchange name, e.g. "OKX".
func (id ID) DisplayName() string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return string(id)
}

// Market is one entry of an exchange's market catalog.
type Market struct {
	ID     string `json:"id"`     // venue-native id, e.g. "BTCUSDT" or "BTC-USDT"
	Symbol string `json:"symbol"` // unified "BASE/QUOTE"
	Base   string `json:"base"`
	Quote  string `json:"quote"`
	Active bool   `json:"active"`
}

// Ticker is a 24h snapshot for one market. Nil fields were missing or not numeric.
type Ticker struct {
	Key         string   `json:"key"`    // snapshot key, usually the unified symbol
	Symbol      string   `json:"symbol"` // may be empty when the venue omits it
	QuoteVolume *float64 `json:"quoteVolume,omitempty"`
	BaseVolume  *float64 `json:"baseVolume,omitempty"`
	Last        *float64 `json:"last,omitempty"`
	High        *float64 `json:"high,omitempty"`
	Low         *float64 `json:"low,omitempty"`
	ChangePct   *float64 `json:"change,omitempty"` // 24h change in percent
}

// Client is the public market data surface every exchange adapter implements.
type Client interface {
	// LoadMarkets fetches the market catalog. Adapters keep it to translate
	// unified symbols to venue ids, so it must run before FetchOHLCV.
	LoadMarkets(ctx context.Context) ([]Market, error)
	// FetchTickers returns a 24h snapshot for every market, in response order.
	FetchTickers(ctx context.Context) ([]Ticker, error)
	// FetchOHLCV returns up to limit candles for symbol, oldest first.
	FetchOHLCV(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
	// Close releases idle connections.
	Close() error
}

// ParseNumber parses a venue numeric string. Empty or non-numeric input yields nil.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ChangePercent returns the percent move from open to last, or nil when
// either is missing or open is zero.
func ChangePercent(open, last *float64) *float64 {
	if open == nil || last == nil || *open == 0 {
		return nil
	}
	return Float((*last - *open) / *open * 100)
}
