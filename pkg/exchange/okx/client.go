package okx

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
	DefaultBaseURL  = "https://www.okx.com"
	instType        = "SPOT"
	maxCandlesLimit = 300
)

// response is the v5 envelope. Code "0" means success.
type response struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type instrument struct {
	InstID   string `json:"instId"` // "BTC-USDT"
	BaseCcy  string `json:"baseCcy"`
	QuoteCcy string `json:"quoteCcy"`
	State    string `json:"state"` // "live", "suspend", "preopen"
}

type ticker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	Vol24h    string `json:"vol24h"`    // base currency
	VolCcy24h string `json:"volCcy24h"` // quote currency for SPOT
	Open24h   string `json:"open24h"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
}

// Client is a public spot market data adapter for the OKX v5 REST API.
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
		logger:   logger.With(zap.String("exchange", string(exchange.OKX))),
		byID:     make(map[string]exchange.Market),
		bySymbol: make(map[string]exchange.Market),
	}
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, data any) error {
	var env response
	if err := rest.GetJSON(ctx, c.http, "okx", path, params, &env); err != nil {
		return err
	}
	if env.Code != "0" {
		return fmt.Errorf("okx error: code %s: %s", env.Code, env.Msg)
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return errors.Wrapf(errors.KindMalformed, err, "okx decode %s", path)
	}
	return nil
}

// LoadMarkets fetches the SPOT instruments.
func (c *Client) LoadMarkets(ctx context.Context) ([]exchange.Market, error) {
	var instruments []instrument
	if err := c.get(ctx, "/api/v5/public/instruments", map[string]string{"instType": instType}, &instruments); err != nil {
		return nil, err
	}

	markets := make([]exchange.Market, 0, len(instruments))
	byID := make(map[string]exchange.Market, len(instruments))
	bySymbol := make(map[string]exchange.Market, len(instruments))
	for _, inst := range instruments {
		m := exchange.Market{
			ID:     inst.InstID,
			Symbol: exchange.JoinSymbol(inst.BaseCcy, inst.QuoteCcy),
			Base:   strings.ToUpper(inst.BaseCcy),
			Quote:  strings.ToUpper(inst.QuoteCcy),
			Active: inst.State == "live",
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

// FetchTickers returns the 24h snapshot for every SPOT instrument.
func (c *Client) FetchTickers(ctx context.Context) ([]exchange.Ticker, error) {
	var raw []ticker
	if err := c.get(ctx, "/api/v5/market/tickers", map[string]string{"instType": instType}, &raw); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	tickers := make([]exchange.Ticker, 0, len(raw))
	for _, t := range raw {
		last := exchange.ParseNumber(t.Last)
		out := exchange.Ticker{
			Key:         t.InstID,
			QuoteVolume: exchange.ParseNumber(t.VolCcy24h),
			BaseVolume:  exchange.ParseNumber(t.Vol24h),
			Last:        last,
			High:        exchange.ParseNumber(t.High24h),
			Low:         exchange.ParseNumber(t.Low24h),
			ChangePct:   exchange.ChangePercent(exchange.ParseNumber(t.Open24h), last),
		}
		if m, ok := c.byID[t.InstID]; ok {
			out.Key = m.Symbol
			out.Symbol = m.Symbol
		}
		tickers = append(tickers, out)
	}
	return tickers, nil
}

// FetchOHLCV returns up to limit candles, oldest first. OKX serves at most 300 per call.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf exchange.Timeframe, limit int) ([]exchange.Candle, error) {
	id, err := c.marketID(symbol)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"instId": id,
		"bar":    tf.Meta().OKX,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(min(limit, maxCandlesLimit))
	}

	var rows [][]string
	if err := c.get(ctx, "/api/v5/market/candles", params, &rows); err != nil {
		return nil, err
	}
	return parseCandles(rows), nil
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
	return "", fmt.Errorf("okx does not have market symbol %s", symbol)
}

// parseCandles reads [ts, o, h, l, c, vol, ...] rows, newest first, into ascending candles.
func parseCandles(rows [][]string) []exchange.Candle {
	out := make([]exchange.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		var vals [5]float64
		valid := true
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(row[i+1], 64); err != nil {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		out = append(out, exchange.Candle{Timestamp: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]})
	}
	exchange.SortCandles(out)
	return out
}
