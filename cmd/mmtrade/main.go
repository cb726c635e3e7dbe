package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mmtrade/internal/market"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	exchangeFlag := &cli.StringFlag{
		Name:    "exchange",
		Aliases: []string{"e"},
		Usage:   "exchange id (binance, coinbase, bybit, okx)",
		Value:   "binance",
	}

	return &cli.Command{
		Name:  "mmtrade",
		Usage: "crypto market data dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.yaml",
			},
		},
		Action: tuiAction,
		Commands: []*cli.Command{
			{
				Name:   "tui",
				Usage:  "start the terminal dashboard",
				Action: tuiAction,
			},
			{
				Name:  "symbols",
				Usage: "print the top symbols by 24h volume",
				Flags: []cli.Flag{
					exchangeFlag,
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "number of symbols", Value: market.DefaultTopLimit},
				},
				Action: symbolsAction,
			},
			{
				Name:  "candles",
				Usage: "print an OHLCV table",
				Flags: []cli.Flag{
					exchangeFlag,
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "unified symbol", Value: "BTC/USDT"},
					&cli.StringFlag{Name: "timeframe", Aliases: []string{"t"}, Usage: "5m, 15m, 1h or 4h", Value: "1h"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "number of candles", Value: market.DefaultCandleLimit},
					&cli.BoolFlag{Name: "color", Usage: "colour rows by direction"},
				},
				Action: candlesAction,
			},
			{
				Name:  "ticker",
				Usage: "print 24h stats for one symbol",
				Flags: []cli.Flag{
					exchangeFlag,
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "unified symbol", Value: "BTC/USDT"},
				},
				Action: tickerAction,
			},
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, overrides server.addr"},
				},
				Action: serveAction,
			},
			{
				Name:  "mmt",
				Usage: "call the MMT.gg API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "exchange", Usage: "MMT exchange, overrides mmt.exchange"},
					&cli.StringFlag{Name: "symbol", Usage: "MMT symbol, overrides mmt.symbol"},
					&cli.StringFlag{Name: "tf", Usage: "MMT timeframe, overrides mmt.tf"},
				},
				Commands: []*cli.Command{
					{Name: "ping", Usage: "connectivity check", Action: mmtAction("ping")},
					{Name: "markets", Usage: "list markets", Action: mmtAction("markets")},
					{
						Name:  "candles",
						Usage: "fetch OHLCVT candles",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "from", Usage: "unix seconds"},
							&cli.IntFlag{Name: "to", Usage: "unix seconds"},
						},
						Action: mmtAction("candles"),
					},
					{
						Name:  "vd",
						Usage: "fetch volume delta",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "bucket", Usage: "bucket size", Value: 11},
						},
						Action: mmtAction("vd"),
					},
				},
			},
		},
	}
}

