package bybit

import (
	"strconv"

	"mmtrade/pkg/exchange"
)

// ParseKlineList converts V5 kline rows [start, open, high, low, close, volume, turnover]
// into ascending candles. Incomplete or unparseable rows are skipped.
func ParseKlineList(raw [][]string) []exchange.Candle {
	out := make([]exchange.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		start, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		var vals [5]float64
		ok := true
		for i := range vals {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		out = append(out, exchange.Candle{
			Timestamp: start,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	exchange.SortCandles(out)
	return out
}
