package market

import (
	"mmtrade/config"
	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/exchange/binance"
	"mmtrade/pkg/exchange/bybit"
	"mmtrade/pkg/exchange/coinbase"
	"mmtrade/pkg/exchange/okx"

	"go.uber.org/zap"
)

// Factory builds a fresh public client for an exchange. The Service closes it after each call.
type Factory func(id exchange.ID) (exchange.Client, error)

// DefaultFactory builds the venue adapters from config.
func DefaultFactory(cfg config.ExchangesConfig, logger *zap.Logger) Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(id exchange.ID) (exchange.Client, error) {
		switch id {
		case exchange.Binance:
			return binance.New(binance.Options{BaseURL: cfg.BinanceURL, Timeout: cfg.Timeout, Logger: logger}), nil
		case exchange.Bybit:
			return bybit.NewClient(cfg.BybitURL, cfg.Timeout, logger), nil
		case exchange.OKX:
			return okx.NewClient(cfg.OKXURL, cfg.Timeout, logger), nil
		case exchange.Coinbase:
			return coinbase.NewClient(cfg.CoinbaseURL, cfg.Timeout, logger), nil
		}
		return nil, errors.Newf(errors.KindConfig, "unknown exchange: %s", id)
	}
}
