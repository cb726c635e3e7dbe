package coinbase

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"mmtrade/pkg/exchange"
	"mmtrade/pkg/exchange/internal/rest"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.coinbase.com"
	productsPath   = "/api/v3/brokerage/market/products"
	maxCandles     = 350
)

type product struct {
	ProductID         string `json:"product_id"` // "BTC-USD"
	Price             string `json:"price"`
	Volume24h         string `json:"volume_24h"`
	ApproxQuoteVolume string `json:"approximate_quote_24h_volume"`
	ChangePct24h      string `json:"price_percentage_change_24h"`
	BaseCurrencyID    string `json:"base_currency_id"`
	QuoteCurrencyID   string `json:"quote_currency_id"`
	Status            string `json:"status"`
	TradingDisabled   bool   `json:"trading_disabled"`
	ProductType       string `json:"product_type"`
}

type productsResponse struct {
	Products    []product `json:"products"`
	NumProducts int       `json:"num_products"`
}

type candle struct {
	Start  string `json:"start"` // unix seconds
	Low    string `json:"low"`
	High   string `json:"high"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

type candlesResponse struct {
	Candles []candle `json:"candles"`
}

// Client is a public spot adapter for the Coinbase Advanced Trade market endpoints.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
	now    func() time.Time

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
		logger:   logger.With(zap.String("exchange", string(exchange.Coinbase))),
		now:      time.Now,
		byID:     make(map[string]exchange.Market),
		bySymbol: make(map[string]exchange.Market),
	}
}

// SetNow overrides the clock used to compute candle windows.
func (c *Client) SetNow(now func() time.Time) {
	c.now = now
}

func (c *Client) products(ctx context.Context) ([]product, error) {
	var resp productsResponse
	if err := rest.GetJSON(ctx, c.http, "coinbase", productsPath, map[string]string{"product_type": "SPOT"}, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// LoadMarkets fetches the spot product catalog.
func (c *Client) LoadMarkets(ctx context.Context) ([]exchange.Market, error) {
	products, err := c.products(ctx)
	if err != nil {
		return nil, err
	}

	markets := make([]exchange.Market, 0, len(products))
	byID := make(map[string]exchange.Market, len(products))
	bySymbol := make(map[string]exchange.Market, len(products))
	for _, p := range products {
		m := exchange.Market{
			ID:     p.ProductID,
			Symbol: exchange.JoinSymbol(p.BaseCurrencyID, p.QuoteCurrencyID),
			Base:   strings.ToUpper(p.BaseCurrencyID),
			Quote:  strings.ToUpper(p.QuoteCurrencyID),
			Active: p.Status == "online" && !p.TradingDisabled,
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

// FetchTickers reads the 24h stats carried on the product list.
func (c *Client) FetchTickers(ctx context.Context) ([]exchange.Ticker, error) {
	products, err := c.products(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make([]exchange.Ticker, 0, len(products))
	for _, p := range products {
		symbol := exchange.JoinSymbol(p.BaseCurrencyID, p.QuoteCurrencyID)
		tickers = append(tickers, exchange.Ticker{
			Key:         symbol,
			Symbol:      symbol,
			QuoteVolume: exchange.ParseNumber(p.ApproxQuoteVolume),
			BaseVolume:  exchange.ParseNumber(p.Volume24h),
			Last:        exchange.ParseNumber(p.Price),
			ChangePct:   exchange.ParseNumber(p.ChangePct24h), // no 24h high/low on the product list
		})
	}
	return tickers, nil
}

// FetchOHLCV returns up to limit candles, oldest first. Coinbase has no 4h
// granularity, so 4h is built from TWO_HOUR candles.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf exchange.Timeframe, limit int) ([]exchange.Candle, error) {
	id, err := c.marketID(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = maxCandles
	}

	step := tf.Duration()
	fetch := limit
	if tf == exchange.Timeframe4h {
		step = 2 * time.Hour
		fetch = 2*limit + 1
	}
	fetch = min(fetch, maxCandles)

	end := c.now().UTC()
	start := end.Add(-time.Duration(fetch) * step)
	params := map[string]string{
		"granularity": tf.Meta().Coinbase,
		"start":       strconv.FormatInt(start.Unix(), 10),
		"end":         strconv.FormatInt(end.Unix(), 10),
		"limit":       strconv.Itoa(fetch),
	}

	var resp candlesResponse
	path := productsPath + "/" + url.PathEscape(id) + "/candles"
	if err := rest.GetJSON(ctx, c.http, "coinbase", path, params, &resp); err != nil {
		return nil, err
	}

	candles := parseCandles(resp.Candles)
	if tf == exchange.Timeframe4h {
		candles = exchange.Resample(candles, tf.Duration())
	}
	return exchange.Tail(candles, limit), nil
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
	return "", fmt.Errorf("coinbase does not have market symbol %s", symbol)
}

func parseCandles(raw []candle) []exchange.Candle {
	out := make([]exchange.Candle, 0, len(raw))
	for _, r := range raw {
		sec, err := strconv.ParseInt(r.Start, 10, 64)
		if err != nil {
			continue
		}
		fields := [5]*float64{
			exchange.ParseNumber(r.Open),
			exchange.ParseNumber(r.High),
			exchange.ParseNumber(r.Low),
			exchange.ParseNumber(r.Close),
			exchange.ParseNumber(r.Volume),
		}
		if fields[0] == nil || fields[1] == nil || fields[2] == nil || fields[3] == nil || fields[4] == nil {
			continue
		}
		out = append(out, exchange.Candle{
			Timestamp: sec * 1000,
			Open:      *fields[0],
			High:      *fields[1],
			Low:       *fields[2],
			Close:     *fields[3],
			Volume:    *fields[4],
		})
	}
	exchange.SortCandles(out)
	return out
}
