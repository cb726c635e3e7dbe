package main

import (
	"context"
	"fmt"
	"time"

	"mmtrade/config"
	"mmtrade/internal/market"
	storageredis "mmtrade/internal/storage/redis"
	"mmtrade/logger"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/exchange/binance"
	"mmtrade/pkg/exchange/bybit"
	"mmtrade/pkg/ratelimit"

	"go.uber.org/zap"
)

// loadConfig reads the config named by --config, or searches the default paths.
func loadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

func newLogger(cfg *config.Config, quiet bool) (*zap.Logger, error) {
	var opts []logger.Option
	if quiet {
		opts = append(opts, logger.Quiet())
	}
	log, err := logger.New(cfg.Log, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// newTickerCache picks the configured backend. An unreachable Redis falls
// back to memory.
func newTickerCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (market.TickerCache, func()) {
	if cfg.Cache.Backend != "redis" {
		return market.NewMemoryCache(), func() {}
	}

	client := storageredis.NewClient(cfg.Redis)
	cache := storageredis.NewTickerCache(client, cfg.Market.TickerTTL, log)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, using in-memory ticker cache", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return market.NewMemoryCache(), func() {}
	}
	log.Info("redis ticker cache", zap.String("addr", cfg.Redis.Addr))
	return cache, func() { _ = client.Close() }
}

// newService wires the limiter, cache, exchange factory and the live streams.
func newService(ctx context.Context, cfg *config.Config, log *zap.Logger) (*market.Service, func()) {
	cache, closeCache := newTickerCache(ctx, cfg, log)
	svc := market.NewService(
		market.DefaultFactory(cfg.Exchanges, log),
		market.WithLimiter(ratelimit.New(cfg.Market.MinInterval)),
		market.WithCache(cache),
		market.WithTTL(cfg.Market.TickerTTL),
		market.WithQuote(cfg.Market.Quote),
		market.WithCandleLimit(cfg.Market.CandleLimit),
		market.WithStreamer(exchange.Binance, binance.NewStream(cfg.Exchanges.BinanceStreamURL, log)),
		market.WithStreamer(exchange.Bybit, bybit.NewStream(cfg.Exchanges.BybitStreamURL, log)),
		market.WithLogger(log),
	)
	return svc, closeCache
}
