package binance

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	BaseURL string // REST base, defaults to the go-binance production URL
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client is a public spot market data adapter backed by go-binance.
type Client struct {
	api    *binance.Client
	logger *zap.Logger

	mu       sync.RWMutex
	byID     map[string]exchange.Market // "BTCUSDT"
	bySymbol map[string]exchange.Market // "BTC/USDT"
}

var _ exchange.Client = (*Client)(nil)

// New creates an unauthenticated Binance client.
func New(opts Options) *Client {
	api := binance.NewClient("", "")
	if opts.BaseURL != "" {
		api.BaseURL = opts.BaseURL
	}
	// own client, so Close never touches http.DefaultClient
	api.HTTPClient = &http.Client{Timeout: opts.Timeout}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:      api,
		logger:   logger.With(zap.String("exchange", string(exchange.Binance))),
		byID:     make(map[string]exchange.Market),
		bySymbol: make(map[string]exchange.Market),
	}
}

// LoadMarkets fetches exchangeInfo and keeps the spot markets.
func (c *Client) LoadMarkets(ctx context.Context) ([]exchange.Market, error) {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", tagMalformed(err))
	}

	markets := make([]exchange.Market, 0, len(info.Symbols))
	byID := make(map[string]exchange.Market, len(info.Symbols))
	bySymbol := make(map[string]exchange.Market, len(info.Symbols))
	for _, s := range info.Symbols {
		if !s.IsSpotTradingAllowed {
			continue
		}
		m := exchange.Market{
			ID:     s.Symbol,
			Symbol: exchange.JoinSymbol(s.BaseAsset, s.QuoteAsset),
			Base:   strings.ToUpper(s.BaseAsset),
			Quote:  strings.ToUpper(s.QuoteAsset),
			Active: s.Status == "TRADING",
		}
		markets = append(markets, m)
		byID[m.ID] = m
		bySymbol[m.Symbol] = m
	}

	c.mu.Lock()
	c.byID, c.bySymbol = byID, bySymbol
	c.mu.Unlock()

	c.logger.Debug("markets loaded", zap.Int("count", len(markets)))
	return markets, nil
}

// FetchTickers returns the 24h rolling stats for every symbol.
func (c *Client) FetchTickers(ctx context.Context) ([]exchange.Ticker, error) {
	stats, err := c.api.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 24hr tickers: %w", tagMalformed(err))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	tickers := make([]exchange.Ticker, 0, len(stats))
	for _, s := range stats {
		if s == nil {
			continue
		}
		t := exchange.Ticker{
			Key:         s.Symbol,
			QuoteVolume: exchange.ParseNumber(s.QuoteVolume),
			BaseVolume:  exchange.ParseNumber(s.Volume),
			Last:        exchange.ParseNumber(s.LastPrice),
			High:        exchange.ParseNumber(s.HighPrice),
			Low:         exchange.ParseNumber(s.LowPrice),
			ChangePct:   exchange.ParseNumber(s.PriceChangePercent),
		}
		if m, ok := c.byID[s.Symbol]; ok {
			t.Key = m.Symbol
			t.Symbol = m.Symbol
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// FetchOHLCV returns klines for a unified symbol.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf exchange.Timeframe, limit int) ([]exchange.Candle, error) {
	id, err := c.marketID(symbol)
	if err != nil {
		return nil, err
	}

	svc := c.api.NewKlinesService().Symbol(id).Interval(tf.Meta().Binance)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", id, tagMalformed(err))
	}
	return parseKlines(klines), nil
}

// Close releases idle HTTP connections.
func (c *Client) Close() error {
	c.api.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *Client) marketID(symbol string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.bySymbol[strings.ToUpper(symbol)]; ok {
		return m.ID, nil
	}
	return "", fmt.Errorf("binance does not have market symbol %s", symbol)
}

// tagMalformed marks JSON decode failures from go-binance as KindMalformed.
func tagMalformed(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) {
		return errors.Wrap(errors.KindMalformed, "malformed response", err)
	}
	return err
}

// parseKlines converts go-binance klines, skipping rows with unparseable numbers.
func parseKlines(klines []*binance.Kline) []exchange.Candle {
	out := make([]exchange.Candle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		open, err := strconv.ParseFloat(k.Open, 64)
		if err != nil {
			continue
		}
		high, err := strconv.ParseFloat(k.High, 64)
		if err != nil {
			continue
		}
		low, err := strconv.ParseFloat(k.Low, 64)
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			continue
		}
		volume, err := strconv.ParseFloat(k.Volume, 64)
		if err != nil {
			continue
		}
		out = append(out, exchange.Candle{
			Timestamp: k.OpenTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}
	return out
}
