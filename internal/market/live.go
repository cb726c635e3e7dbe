package market

import (
	"context"
	"strings"

	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"
)

// Streamer is a live candle source for one exchange.
type Streamer = exchange.Streamer

// SupportsLive reports whether a live stream is registered for exchangeID.
func (s *Service) SupportsLive(exchangeID string) bool {
	id, err := exchange.ParseID(exchangeID)
	if err != nil {
		return false
	}
	_, ok := s.streams[id]
	return ok
}

// Live subscribes to live candle updates. Updates stop when ctx ends.
func (s *Service) Live(ctx context.Context, exchangeID, symbol, timeframe string) (<-chan exchange.KlineUpdate, error) {
	id, err := exchange.ParseID(exchangeID)
	if err != nil {
		return nil, err
	}
	tf, err := exchange.ParseTimeframe(strings.TrimSpace(timeframe))
	if err != nil {
		return nil, err
	}
	st, ok := s.streams[id]
	if !ok {
		return nil, errors.Newf(errors.KindConfig, "live candles not supported for %s", id.DisplayName())
	}
	updates, err := st.Subscribe(ctx, symbol, tf)
	if err != nil {
		return nil, errors.WrapStep(errors.KindTransport, "live stream failed", err)
	}
	return updates, nil
}
