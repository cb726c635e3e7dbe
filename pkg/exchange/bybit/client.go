package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/exchange/internal/rest"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.bybit.com"
	category       = "spot"
	maxKlineLimit  = 1000
)

// Client is a public spot market data adapter for the Bybit V5 REST API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger

	mu       sync.RWMutex
	byID     map[string]exchange.Market
	bySymbol map[string]exchange.Market
}

var _ exchange.Client = (*Client)(nil)

// NewClient creates a REST client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:     rest.New(baseURL, timeout),
		logger:   logger.With(zap.String("exchange", string(exchange.Bybit))),
		byID:     make(map[string]exchange.Market),
		bySymbol: make(map[string]exchange.Market),
	}
}

// get unwraps the V5 envelope into result.
func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	var env Response
	if err := rest.GetJSON(ctx, c.http, "bybit", path, params, &env); err != nil {
		return err
	}
	if env.RetCode != 0 {
		return fmt.Errorf("bybit error: retCode %d: %s", env.RetCode, env.RetMsg)
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return errors.Wrapf(errors.KindMalformed, err, "bybit decode %s", path)
	}
	return nil
}

// LoadMarkets fetches the spot instrument list.
func (c *Client) LoadMarkets(ctx context.Context) ([]exchange.Market, error) {
	var result instrumentList
	if err := c.get(ctx, "/v5/market/instruments-info", map[string]string{"category": category}, &result); err != nil {
		return nil, err
	}

	markets := make([]exchange.Market, 0, len(result.List))
	byID := make(map[string]exchange.Market, len(result.List))
	bySymbol := make(map[string]exchange.Market, len(result.List))
	for _, inst := range result.List {
		m := exchange.Market{
			ID:     inst.Symbol,
			Symbol: exchange.JoinSymbol(inst.BaseCoin, inst.QuoteCoin),
			Base:   strings.ToUpper(inst.BaseCoin),
			Quote:  strings.ToUpper(inst.QuoteCoin),
			Active: inst.Status == "Trading",
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

// FetchTickers returns the 24h snapshot for every spot symbol.
func (c *Client) FetchTickers(ctx context.Context) ([]exchange.Ticker, error) {
	var result tickerList
	if err := c.get(ctx, "/v5/market/tickers", map[string]string{"category": category}, &result); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	tickers := make([]exchange.Ticker, 0, len(result.List))
	for _, t := range result.List {
		ticker := exchange.Ticker{
			Key:         t.Symbol,
			QuoteVolume: exchange.ParseNumber(t.Turnover24h),
			BaseVolume:  exchange.ParseNumber(t.Volume24h),
			Last:        exchange.ParseNumber(t.LastPrice),
			High:        exchange.ParseNumber(t.HighPrice),
			Low:         exchange.ParseNumber(t.LowPrice),
		}
		if pct := exchange.ParseNumber(t.Change); pct != nil {
			ticker.ChangePct = exchange.Float(*pct * 100)
		}
		if m, ok := c.byID[t.Symbol]; ok {
			ticker.Key = m.Symbol
			ticker.Symbol = m.Symbol
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// FetchOHLCV returns up to limit candles, oldest first.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf exchange.Timeframe, limit int) ([]exchange.Candle, error) {
	id, err := c.marketID(symbol)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"category": category,
		"symbol":   id,
		"interval": tf.Meta().Bybit,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(min(limit, maxKlineLimit))
	}

	var result klineList
	if err := c.get(ctx, "/v5/market/kline", params, &result); err != nil {
		return nil, err
	}
	return ParseKlineList(result.List), nil
}

// Close releases idle HTTP connections.
func (c *Client) Close() error {
	rest.Close(c.http)
	return nil
}

func (c *Client) marketID(symbol string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.bySymbol[strings.ToUpper(symbol)]; ok {
		return m.ID, nil
	}
	return "", fmt.Errorf("bybit does not have market symbol %s", symbol)
}
