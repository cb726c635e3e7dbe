package exchange

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Candle is one OHLCV bucket. On the wire it is the fixed 6-field record
// [timestamp_ms, open, high, low, close, volume].
type Candle struct {
	Timestamp int64 // bucket open, ms since epoch
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Time returns the bucket open time in UTC.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Bullish reports close >= open.
func (c Candle) Bullish() bool {
	return c.Close >= c.Open
}

// Values returns the fixed 6-field record.
func (c Candle) Values() [6]float64 {
	return [6]float64{float64(c.Timestamp), c.Open, c.High, c.Low, c.Close, c.Volume}
}

func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume})
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode candle: %w", err)
	}
	if len(raw) < 6 {
		return fmt.Errorf("decode candle: want 6 fields, got %d", len(raw))
	}
	*c = Candle{
		Timestamp: int64(raw[0]),
		Open:      raw[1],
		High:      raw[2],
		Low:       raw[3],
		Close:     raw[4],
		Volume:    raw[5],
	}
	return nil
}

// SortCandles orders candles oldest first in place.
func SortCandles(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})
}

// Resample merges ascending candles into buckets of size d aligned to the epoch.
// Open comes from the first candle of a bucket, close from the last.
func Resample(candles []Candle, d time.Duration) []Candle {
	step := d.Milliseconds()
	if step <= 0 || len(candles) == 0 {
		return candles
	}

	out := make([]Candle, 0, len(candles)/2+1)
	for _, c := range candles {
		start := c.Timestamp - c.Timestamp%step
		if n := len(out); n > 0 && out[n-1].Timestamp == start {
			last := &out[n-1]
			last.High = max(last.High, c.High)
			last.Low = min(last.Low, c.Low)
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		c.Timestamp = start
		out = append(out, c)
	}
	return out
}

// Tail returns at most the last n candles.
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
