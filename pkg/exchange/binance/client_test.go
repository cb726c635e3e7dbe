package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeInfoJSON = `{
  "timezone": "UTC",
  "serverTime": 1700000000000,
  "symbols": [
    {"symbol": "BTCUSDT", "status": "TRADING", "baseAsset": "BTC", "quoteAsset": "USDT", "isSpotTradingAllowed": true},
    {"symbol": "ETHUSDT", "status": "TRADING", "baseAsset": "ETH", "quoteAsset": "USDT", "isSpotTradingAllowed": true},
    {"symbol": "OLDUSDT", "status": "BREAK", "baseAsset": "OLD", "quoteAsset": "USDT", "isSpotTradingAllowed": true},
    {"symbol": "PERPUSDT", "status": "TRADING", "baseAsset": "PERP", "quoteAsset": "USDT", "isSpotTradingAllowed": false}
  ]
}`

const tickersJSON = `[
  {"symbol": "BTCUSDT", "volume": "100000", "quoteVolume": "5000000000", "lastPrice": "50000", "highPrice": "51000", "lowPrice": "48000", "priceChangePercent": "2.5"},
  {"symbol": "ETHUSDT", "volume": "1000000", "quoteVolume": "", "lastPrice": "2000"},
  {"symbol": "NEWUSDT", "volume": "1", "quoteVolume": "1", "lastPrice": "1"}
]`

const klinesJSON = `[
  [1700000000000, "100.0", "110.0", "90.0", "105.0", "12.5", 1700000299999, "1300.0", 10, "6.0", "600.0", "0"],
  [1700000300000, "105.0", "106.0", "bad", "101.0", "3.0", 1700000599999, "300.0", 5, "1.0", "100.0", "0"],
  [1700000600000, "101.0", "103.0", "99.0", "102.0", "4.0", 1700000899999, "400.0", 6, "2.0", "200.0", "0"]
]`

type requestLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *requestLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *requestLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return ""
	}
	return l.calls[len(l.calls)-1]
}

func newTestServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	calls := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.add(r.URL.Path + "?" + r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoJSON))
		case "/api/v3/ticker/24hr":
			_, _ = w.Write([]byte(tickersJSON))
		case "/api/v3/klines":
			_, _ = w.Write([]byte(klinesJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":-1,"msg":"not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestLoadMarkets(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	defer c.Close()

	markets, err := c.LoadMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 3)

	assert.Equal(t, exchange.Market{ID: "BTCUSDT", Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT", Active: true}, markets[0])
	assert.False(t, markets[2].Active)
}

func TestNewUsesDedicatedHTTPClient(t *testing.T) {
	c := New(Options{})
	require.NotNil(t, c.api.HTTPClient)
	assert.NotSame(t, http.DefaultClient, c.api.HTTPClient)
	assert.Zero(t, c.api.HTTPClient.Timeout)

	c = New(Options{Timeout: 5 * time.Second})
	assert.Equal(t, 5*time.Second, c.api.HTTPClient.Timeout)
	assert.NoError(t, c.Close())
}

func TestFetchTickersMapsSymbols(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(Options{BaseURL: srv.URL})
	ctx := context.Background()

	_, err := c.LoadMarkets(ctx)
	require.NoError(t, err)

	tickers, err := c.FetchTickers(ctx)
	require.NoError(t, err)
	require.Len(t, tickers, 3)

	assert.Equal(t, "BTC/USDT", tickers[0].Symbol)
	require.NotNil(t, tickers[0].QuoteVolume)
	assert.Equal(t, 5e9, *tickers[0].QuoteVolume)
	assert.Equal(t, exchange.Float(51000), tickers[0].High)
	assert.Equal(t, exchange.Float(48000), tickers[0].Low)
	assert.Equal(t, exchange.Float(2.5), tickers[0].ChangePct)

	assert.Nil(t, tickers[1].QuoteVolume)
	require.NotNil(t, tickers[1].BaseVolume)
	assert.Equal(t, 1e6, *tickers[1].BaseVolume)

	// not in the catalog: raw key, no unified symbol
	assert.Equal(t, "NEWUSDT", tickers[2].Key)
	assert.Empty(t, tickers[2].Symbol)
}

func TestFetchOHLCV(t *testing.T) {
	srv, calls := newTestServer(t)
	c := New(Options{BaseURL: srv.URL})
	ctx := context.Background()

	_, err := c.LoadMarkets(ctx)
	require.NoError(t, err)

	candles, err := c.FetchOHLCV(ctx, "btc/usdt", exchange.Timeframe1h, 3)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, exchange.Candle{Timestamp: 1700000000000, Open: 100, High: 110, Low: 90, Close: 105, Volume: 12.5}, candles[0])
	assert.Equal(t, int64(1700000600000), candles[1].Timestamp)

	last := calls.last()
	assert.Contains(t, last, "symbol=BTCUSDT")
	assert.Contains(t, last, "interval=1h")
	assert.Contains(t, last, "limit=3")
}

func TestFetchOHLCVUnknownSymbol(t *testing.T) {
	srv, _ := newTestServer(t)
	c := New(Options{BaseURL: srv.URL})

	_, err := c.FetchOHLCV(context.Background(), "BTC/USDT", exchange.Timeframe1h, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not have market symbol")
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbols": "oops"}`))
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).LoadMarkets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindMalformed))
}

func TestParseKlineMessage(t *testing.T) {
	// full frame: E, T, L, V and Q share a letter with e, t, l, v and q
	msg := []byte(`{"e":"kline","E":1700000001000,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"s":"BTCUSDT","i":"1m","f":100,"L":200,"o":"1.5","c":"2.5","h":"3","l":"1","v":"10","n":100,"x":true,"q":"25","V":"4","Q":"9","B":"0"}}`)
	u, ok := ParseKlineMessage(msg)
	require.True(t, ok)
	assert.Equal(t, "BTC/USDT", u.Symbol)
	assert.True(t, u.Closed)
	assert.Equal(t, exchange.Candle{Timestamp: 1700000000000, Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 10}, u.Candle)

	_, ok = ParseKlineMessage([]byte(`{"result":null,"id":1}`))
	assert.False(t, ok)
	_, ok = ParseKlineMessage([]byte(`not json`))
	assert.False(t, ok)
}

func TestStreamSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"kline","E":60500,"s":"ETHUSDT","k":{"t":60000,"T":119999,"o":"1","c":"2","h":"2","l":"1","v":"5","V":"3","x":false}}`))
		// hold the connection until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := s.Subscribe(ctx, "ETH/USDT", exchange.Timeframe5m)
	require.NoError(t, err)
	assert.Equal(t, "/ws/ethusdt@kline_5m", <-paths)

	select {
	case u := <-updates:
		assert.Equal(t, "ETH/USDT", u.Symbol)
		assert.Equal(t, 2.0, u.Candle.Close)
		assert.False(t, u.Closed)
	case <-time.After(5 * time.Second):
		t.Fatal("no kline update received")
	}

	cancel()
	select {
	case _, open := <-updates:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}
