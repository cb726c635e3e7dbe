package bybit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"mmtrade/pkg/exchange"
	"mmtrade/pkg/exchange/internal/wsstream"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultStreamURL = "wss://stream.bybit.com/v5/public/spot"
	pingInterval     = 20 * time.Second
)

var pingMessage = []byte(`{"op":"ping"}`)

// Stream subscribes to the V5 public kline topic "kline.<interval>.<SYMBOL>".
type Stream struct {
	url            string
	reconnectDelay time.Duration
	logger         *zap.Logger
}

var _ exchange.Streamer = (*Stream)(nil)

// NewStream creates a stream client. An empty url uses DefaultStreamURL.
func NewStream(url string, logger *zap.Logger) *Stream {
	if url == "" {
		url = DefaultStreamURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		url:            url,
		reconnectDelay: wsstream.DefaultReconnectDelay,
		logger:         logger.With(zap.String("exchange", string(exchange.Bybit))),
	}
}

// SetReconnectDelay overrides the pause between reconnect attempts.
func (s *Stream) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		s.reconnectDelay = d
	}
}

// Topic returns the kline topic for a unified symbol and timeframe.
func Topic(symbol string, tf exchange.Timeframe) string {
	return "kline." + tf.Meta().Bybit + "." + strings.ToUpper(exchange.WSSymbol(symbol, exchange.Bybit))
}

// Subscribe connects, subscribes to the kline topic and delivers updates
// until ctx is done. Reconnects resubscribe.
func (s *Stream) Subscribe(ctx context.Context, symbol string, tf exchange.Timeframe) (<-chan exchange.KlineUpdate, error) {
	topic := Topic(symbol, tf)
	return wsstream.Run(ctx, wsstream.Config{
		URL:            s.url,
		ReconnectDelay: s.reconnectDelay,
		Subscribe: func(conn *websocket.Conn) error {
			return conn.WriteJSON(map[string]any{
				"op":   "subscribe",
				"args": []string{topic},
			})
		},
		Ping:         pingMessage,
		PingInterval: pingInterval,
		Parse:        ParseKlineMessage,
		Logger:       s.logger.With(zap.String("topic", topic)),
	})
}

// KlineMessage is a kline push, e.g. topic "kline.5.BTCUSDT".
type KlineMessage struct {
	Topic string    `json:"topic"`
	Data  []WSKline `json:"data"`
	Ts    int64     `json:"ts"`
	Type  string    `json:"type"` // "snapshot"
}

// WSKline is one kline entry of a push. Prices are decimal strings.
type WSKline struct {
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	Interval  string `json:"interval"`
	Open      string `json:"open"`
	Close     string `json:"close"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Volume    string `json:"volume"`
	Turnover  string `json:"turnover"`
	Confirm   bool   `json:"confirm"` // true once the interval closes
	Timestamp int64  `json:"timestamp"`
}

// ParseKlineMessage decodes a kline push. Subscription acks, pongs and
// entries with bad numbers yield nothing.
func ParseKlineMessage(data []byte) []exchange.KlineUpdate {
	var msg KlineMessage
	if err := json.Unmarshal(data, &msg); err != nil || !isKlineTopic(msg.Topic) {
		return nil
	}
	symbol := exchange.CompactToUnified(extractSymbolFromTopic(msg.Topic))

	out := make([]exchange.KlineUpdate, 0, len(msg.Data))
	for _, k := range msg.Data {
		var vals [5]float64
		ok := true
		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		out = append(out, exchange.KlineUpdate{
			Symbol: symbol,
			Candle: exchange.Candle{
				Timestamp: k.Start,
				Open:      vals[0],
				High:      vals[1],
				Low:       vals[2],
				Close:     vals[3],
				Volume:    vals[4],
			},
			Closed: k.Confirm,
		})
	}
	return out
}

func isKlineTopic(topic string) bool {
	return strings.HasPrefix(topic, "kline.")
}

// extractSymbolFromTopic parses the symbol from a topic like "kline.1.BTCUSDT".
func extractSymbolFromTopic(topic string) string {
	parts := strings.Split(topic, ".")
	if len(parts) == 3 {
		return parts[2]
	}
	return ""
}
