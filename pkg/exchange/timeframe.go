package exchange

import (
	"time"

	"mmtrade/pkg/errors"
)

// Timeframe is a candle bucket size token.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
)

// TimeframeMeta holds the venue wire codes for a timeframe.
type TimeframeMeta struct {
	Minutes  int
	Binance  string
	Bybit    string // minutes as string
	OKX      string // bar
	Coinbase string // granularity enum
}

var validTimeframes = map[Timeframe]TimeframeMeta{
	Timeframe5m:  {Minutes: 5, Binance: "5m", Bybit: "5", OKX: "5m", Coinbase: "FIVE_MINUTE"},
	Timeframe15m: {Minutes: 15, Binance: "15m", Bybit: "15", OKX: "15m", Coinbase: "FIFTEEN_MINUTE"},
	Timeframe1h:  {Minutes: 60, Binance: "1h", Bybit: "60", OKX: "1H", Coinbase: "ONE_HOUR"},
	// Coinbase has no 4h granularity; the adapter resamples TWO_HOUR buckets
	Timeframe4h: {Minutes: 240, Binance: "4h", Bybit: "240", OKX: "4H", Coinbase: "TWO_HOUR"},
}

// Timeframes returns the supported tokens in ascending size.
func Timeframes() []Timeframe {
	return []Timeframe{Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h}
}

// ParseTimeframe validates s as a supported timeframe token.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := validTimeframes[tf]; !ok {
		return "", errors.Newf(errors.KindConfig, "invalid timeframe %q: must be 5m, 15m, 1h or 4h", s)
	}
	return tf, nil
}

// IsValid reports whether tf is a supported timeframe.
func (tf Timeframe) IsValid() bool {
	_, ok := validTimeframes[tf]
	return ok
}

// Meta returns the wire codes for tf. Unknown timeframes return the zero value.
func (tf Timeframe) Meta() TimeframeMeta {
	return validTimeframes[tf]
}

// Duration returns the bucket length.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(validTimeframes[tf].Minutes) * time.Minute
}
