// Package api serves market data over HTTP for browser front-ends.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mmtrade/internal/market"
	"mmtrade/pkg/exchange"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 30 * time.Second
	ServiceName         = "mmtrade-api"
	ServiceVersion      = "1.0.0"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"

	defaultSymbolLimit = 10
	maxSymbolLimit     = 20
	defaultCandleLimit = 50
	maxCandleLimit     = 2000
)

// MarketService is the slice of market.Service the handlers use.
type MarketService interface {
	TopSymbols(ctx context.Context, exchangeID string, limit int) ([]market.RankedSymbol, error)
	Candles(ctx context.Context, exchangeID, symbol, timeframe string, limit int) ([]exchange.Candle, error)
	Ticker(ctx context.Context, exchangeID, symbol string) (exchange.Ticker, error)
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	market MarketService
	logger *zap.Logger
}

func NewHandler(svc MarketService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{market: svc, logger: logger}
}

// Routes builds the gin engine with middleware and all endpoints.
func (h *Handler) Routes() *gin.Engine {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(zapLoggerMiddleware(h.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/", h.Index)
	router.GET("/health", h.HealthCheck)

	v := router.Group("/api")
	v.GET("/exchanges", h.GetExchanges)
	v.GET("/symbols", h.GetSymbols)
	v.GET("/ohlcv", h.GetOHLCV)
	v.GET("/ohlcv/fetch_kline", h.GetKline)
	v.GET("/ticker", h.GetTicker)

	return router
}

// Serve runs the API on addr until ctx is cancelled, then shuts down gracefully.
func (h *Handler) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.logger.Info("api shutting down")
	return srv.Shutdown(shutdownCtx)
}
