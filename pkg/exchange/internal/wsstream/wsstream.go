// Package wsstream runs a reconnecting websocket read loop that turns venue
// messages into kline updates.
package wsstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mmtrade/pkg/exchange"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const DefaultReconnectDelay = 3 * time.Second

// Config describes one subscription.
type Config struct {
	URL            string
	Dialer         *websocket.Dialer
	ReconnectDelay time.Duration

	// Subscribe runs on every fresh connection before reading starts. Nil
	// means the URL itself selects the stream.
	Subscribe func(conn *websocket.Conn) error

	// Ping, when set, is written every PingInterval as a text frame.
	Ping         []byte
	PingInterval time.Duration

	// Parse maps one frame to zero or more updates.
	Parse func(data []byte) []exchange.KlineUpdate

	Logger *zap.Logger
}

// Run dials cfg.URL and delivers updates until ctx is done. A dropped
// connection is redialed and resubscribed after ReconnectDelay. The returned
// channel is closed when the loop exits.
func Run(ctx context.Context, cfg Config) (<-chan exchange.KlineUpdate, error) {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("kline stream connected", zap.String("url", cfg.URL))

	out := make(chan exchange.KlineUpdate, 16)
	go listen(ctx, cfg, conn, out)
	return out, nil
}

func connect(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	conn, _, err := cfg.Dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	if cfg.Subscribe != nil {
		if err := cfg.Subscribe(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("websocket subscribe failed: %w", err)
		}
	}
	return conn, nil
}

func listen(ctx context.Context, cfg Config, conn *websocket.Conn, out chan<- exchange.KlineUpdate) {
	// mu guards current and serialises writes to it
	var mu sync.Mutex
	current := conn
	closeCurrent := func() {
		mu.Lock()
		_ = current.Close()
		mu.Unlock()
	}
	stop := context.AfterFunc(ctx, closeCurrent)

	pingDone := make(chan struct{})
	if len(cfg.Ping) > 0 && cfg.PingInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-pingDone:
					return
				case <-ticker.C:
					mu.Lock()
					_ = current.WriteMessage(websocket.TextMessage, cfg.Ping)
					mu.Unlock()
				}
			}
		}()
	}

	defer func() {
		close(pingDone)
		stop()
		closeCurrent()
		close(out)
	}()

	for {
		mu.Lock()
		c := current
		mu.Unlock()

		_, msg, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			cfg.Logger.Warn("kline stream read error", zap.String("url", cfg.URL), zap.Error(err))

			next, ok := redial(ctx, cfg)
			if !ok {
				return
			}
			mu.Lock()
			_ = current.Close()
			current = next
			mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			cfg.Logger.Info("kline stream reconnected", zap.String("url", cfg.URL))
			continue
		}

		for _, update := range cfg.Parse(msg) {
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

// redial retries until a connection succeeds or ctx ends.
func redial(ctx context.Context, cfg Config) (*websocket.Conn, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(cfg.ReconnectDelay):
		}
		conn, err := connect(ctx, cfg)
		if err != nil {
			cfg.Logger.Warn("retrying kline stream reconnect", zap.Error(err))
			continue
		}
		return conn, true
	}
}
