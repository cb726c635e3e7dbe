package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mmtrade/pkg/exchange"
	"mmtrade/pkg/exchange/internal/wsstream"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
)

const DefaultStreamURL = "wss://stream.binance.com:9443/ws"

// Stream subscribes to the raw kline stream "<sym>@kline_<tf>".
type Stream struct {
	baseURL        string
	reconnectDelay time.Duration
	logger         *zap.Logger
}

var _ exchange.Streamer = (*Stream)(nil)

// NewStream creates a stream client. An empty baseURL uses DefaultStreamURL.
func NewStream(baseURL string, logger *zap.Logger) *Stream {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		baseURL:        strings.TrimRight(baseURL, "/"),
		reconnectDelay: wsstream.DefaultReconnectDelay,
		logger:         logger.With(zap.String("exchange", string(exchange.Binance))),
	}
}

// SetReconnectDelay overrides the pause between reconnect attempts.
func (s *Stream) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		s.reconnectDelay = d
	}
}

// TopicURL returns the stream URL for a unified symbol and timeframe.
func (s *Stream) TopicURL(symbol string, tf exchange.Timeframe) string {
	return fmt.Sprintf("%s/%s@kline_%s", s.baseURL, exchange.WSSymbol(symbol, exchange.Binance), tf.Meta().Binance)
}

// Subscribe dials the kline stream and delivers updates until ctx is done.
// A dropped connection is redialed. The channel is closed on return.
func (s *Stream) Subscribe(ctx context.Context, symbol string, tf exchange.Timeframe) (<-chan exchange.KlineUpdate, error) {
	return wsstream.Run(ctx, wsstream.Config{
		URL:            s.TopicURL(symbol, tf),
		ReconnectDelay: s.reconnectDelay,
		Parse: func(data []byte) []exchange.KlineUpdate {
			if u, ok := ParseKlineMessage(data); ok {
				return []exchange.KlineUpdate{u}
			}
			return nil
		},
		Logger: s.logger,
	})
}

// ParseKlineMessage decodes a kline event. ok is false for other events or bad numbers.
func ParseKlineMessage(data []byte) (exchange.KlineUpdate, bool) {
	var ev binance.WsKlineEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Event != "kline" {
		return exchange.KlineUpdate{}, false
	}

	k := ev.Kline
	var vals [5]float64
	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return exchange.KlineUpdate{}, false
		}
		vals[i] = v
	}
	return exchange.KlineUpdate{
		Symbol: exchange.CompactToUnified(ev.Symbol),
		Candle: exchange.Candle{
			Timestamp: k.StartTime,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		},
		Closed: k.IsFinal,
	}, true
}
