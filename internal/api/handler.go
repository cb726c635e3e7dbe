package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mmtrade/internal/market"
	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type symbolsResponse struct {
	Symbols []market.RankedSymbol `json:"symbols"`
}

type ohlcvResponse struct {
	OHLCV []exchange.Candle `json:"ohlcv"`
}

// tickerResponse is the 24h stats body. volume is base volume, else quote.
type tickerResponse struct {
	Exchange string   `json:"exchange"`
	Symbol   string   `json:"symbol"`
	Last     *float64 `json:"last"`
	High     *float64 `json:"high"`
	Low      *float64 `json:"low"`
	Change   *float64 `json:"change"`
	Volume   *float64 `json:"volume"`
}

// Index handles GET / with service info.
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"name":      ServiceName,
		"endpoints": []string{"/api/exchanges", "/api/symbols", "/api/ohlcv", "/api/ohlcv/fetch_kline", "/api/ticker", "/health"},
		"rateLimit": "global, one request per 1.2s",
		"timeoutMs": DefaultTimeout.Milliseconds(),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   ServiceVersion,
	})
}

// GetExchanges handles GET /api/exchanges.
func (h *Handler) GetExchanges(c *gin.Context) {
	opts := market.Exchanges()
	names := make([]string, len(opts))
	for i, o := range opts {
		names[i] = o.Name
	}
	c.JSON(http.StatusOK, gin.H{"exchanges": names})
}

// GetSymbols handles GET /api/symbols?exchange=binance&limit=10.
func (h *Handler) GetSymbols(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	exchangeID := c.DefaultQuery("exchange", string(exchange.Binance))
	limit := min(queryInt(c, "limit", defaultSymbolLimit), maxSymbolLimit)

	symbols, err := h.market.TopSymbols(ctx, exchangeID, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, symbolsResponse{Symbols: symbols})
}

// GetOHLCV handles GET /api/ohlcv?exchange&symbol&timeframe&limit.
func (h *Handler) GetOHLCV(c *gin.Context) {
	timeframe := c.Query("timeframe")
	if timeframe == "" {
		timeframe = c.DefaultQuery("interval", string(exchange.Timeframe1h))
	}
	h.serveOHLCV(c, c.Query("symbol"), timeframe)
}

// GetKline handles GET /api/ohlcv/fetch_kline?symbol=BTCUSDT&interval=1h.
// Compact symbols are converted and an interval suffix after ':' is dropped.
func (h *Handler) GetKline(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		h.respondError(c, http.StatusBadRequest, "symbol is required")
		return
	}
	symbol = exchange.CompactToUnified(symbol)

	timeframe := c.Query("interval")
	if timeframe == "" {
		timeframe = c.DefaultQuery("timeframe", string(exchange.Timeframe1h))
	}
	timeframe, _, _ = strings.Cut(timeframe, ":")
	h.serveOHLCV(c, symbol, timeframe)
}

func (h *Handler) serveOHLCV(c *gin.Context, symbol, timeframe string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	if symbol == "" {
		symbol = "BTC/USDT"
	}
	if _, err := exchange.ParseTimeframe(timeframe); err != nil {
		h.handleError(c, err)
		return
	}
	exchangeID := c.DefaultQuery("exchange", string(exchange.Binance))
	limit := min(queryInt(c, "limit", defaultCandleLimit), maxCandleLimit)

	candles, err := h.market.Candles(ctx, exchangeID, symbol, timeframe, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ohlcvResponse{OHLCV: candles})
}

// GetTicker handles GET /api/ticker?exchange=binance&symbol=BTC/USDT.
func (h *Handler) GetTicker(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	exchangeID := strings.ToLower(strings.TrimSpace(c.DefaultQuery("exchange", string(exchange.Binance))))
	symbol := c.DefaultQuery("symbol", "BTC/USDT")

	t, err := h.market.Ticker(ctx, exchangeID, symbol)
	if err != nil {
		h.handleError(c, err)
		return
	}
	volume := t.BaseVolume
	if volume == nil {
		volume = t.QuoteVolume
	}
	c.JSON(http.StatusOK, tickerResponse{
		Exchange: exchangeID,
		Symbol:   t.Symbol,
		Last:     t.Last,
		High:     t.High,
		Low:      t.Low,
		Change:   t.ChangePct,
		Volume:   volume,
	})
}

// queryInt parses a positive int query value, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// handleError maps configuration errors to 400 and everything else to 500.
func (h *Handler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.IsKind(err, errors.KindConfig) {
		status = http.StatusBadRequest
	}

	h.logger.Error("api error",
		zap.String("request_id", c.GetString(RequestIDContextKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status_code", status),
		zap.Error(err),
	)
	h.respondError(c, status, err.Error())
}

func (h *Handler) respondError(c *gin.Context, status int, msg string) {
	requestID := c.GetString(RequestIDContextKey)
	if requestID == "" {
		requestID = "unknown"
	}
	c.JSON(status, gin.H{
		"error":      msg,
		"request_id": requestID,
	})
}
