package exchange

import "context"

// KlineUpdate is one live kline push. Closed is true for the final update of a bucket.
type KlineUpdate struct {
	Symbol string
	Candle Candle
	Closed bool
}

// Streamer pushes live candle updates for one symbol and timeframe. The
// channel is closed when ctx ends.
type Streamer interface {
	Subscribe(ctx context.Context, symbol string, tf Timeframe) (<-chan KlineUpdate, error)
}

// MergeUpdate applies a live candle to an ascending series: a candle with the
// same open time replaces the last one, a newer one is appended and the series
// trimmed to maxLen. Older candles are ignored.
func MergeUpdate(candles []Candle, c Candle, maxLen int) []Candle {
	n := len(candles)
	switch {
	case n > 0 && candles[n-1].Timestamp == c.Timestamp:
		candles[n-1] = c
	case n == 0 || candles[n-1].Timestamp < c.Timestamp:
		candles = append(candles, c)
	default:
		return candles
	}
	return Tail(candles, maxLen)
}
