package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mmtrade/internal/api"
	"mmtrade/internal/render"
	"mmtrade/internal/tui"
	"mmtrade/pkg/mmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func tuiAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	// stdout belongs to the TUI; entries go to the log file and the panel
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	sink := &tui.PanelSink{}
	svcLog := log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, tui.NewPanelCore(sink, zapcore.WarnLevel))
	}))

	svc, closeCache := newService(ctx, cfg, svcLog)
	defer closeCache()

	apiKey, err := cfg.MMT.ResolveAPIKey(ctx, nil)
	if err != nil {
		log.Warn("mmt api key lookup failed", zap.Error(err))
	}

	model := tui.NewModel(tui.Options{
		Market: svc,
		NewMMT: tui.DefaultMMTFactory(cfg.MMT.BaseURL, cfg.MMT.Timeout, log),
		Settings: tui.MMTSettings{
			Exchange: cfg.MMT.Exchange,
			Symbol:   cfg.MMT.Symbol,
			TF:       cfg.MMT.TF,
			Region:   cfg.MMT.Region,
		},
		APIKey:      apiKey,
		TopLimit:    cfg.Market.TopLimit,
		CandleLimit: cfg.Market.CandleLimit,
		Logger:      log,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(p)
	defer sink.Detach()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func symbolsAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, closeCache := newService(ctx, cfg, log)
	defer closeCache()

	symbols, err := svc.TopSymbols(ctx, cmd.String("exchange"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		fmt.Println(render.NoData)
		return nil
	}
	for i, s := range symbols {
		fmt.Printf("%2d. %-16s %10s\n", i+1, s.Symbol, render.FormatVolume(s.Volume))
	}
	return nil
}

func candlesAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, closeCache := newService(ctx, cfg, log)
	defer closeCache()

	limit := int(cmd.Int("limit"))
	candles, err := svc.Candles(ctx, cmd.String("exchange"), cmd.String("symbol"), cmd.String("timeframe"), limit)
	if err != nil {
		return err
	}
	if cmd.Bool("color") {
		fmt.Println(render.OHLCVColored(candles, limit))
	} else {
		fmt.Println(render.OHLCVTable(candles, limit))
	}
	if len(candles) > 0 {
		fmt.Println()
		fmt.Println(render.Summary(candles))
	}
	return nil
}

func tickerAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, closeCache := newService(ctx, cfg, log)
	defer closeCache()

	t, err := svc.Ticker(ctx, cmd.String("exchange"), cmd.String("symbol"))
	if err != nil {
		return err
	}
	fmt.Println(render.TickerLine(t))
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	svc, closeCache := newService(ctx, cfg, log)
	defer closeCache()

	addr := cmd.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return api.NewHandler(svc, log).Serve(ctx, addr)
}

func mmtAction(op string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"))
		if err != nil {
			return err
		}
		log, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer log.Sync()

		apiKey, err := cfg.MMT.ResolveAPIKey(ctx, nil)
		if err != nil {
			return err
		}
		opts := []mmt.Option{
			mmt.WithRegion(cfg.MMT.Region),
			mmt.WithAPIKey(apiKey),
			mmt.WithTimeout(cfg.MMT.Timeout),
			mmt.WithLogger(log),
		}
		if cfg.MMT.BaseURL != "" {
			opts = append(opts, mmt.WithBaseURL(cfg.MMT.BaseURL))
		}
		client := mmt.New(opts...)
		defer client.Close()

		exchangeID := orFlag(cmd, "exchange", cfg.MMT.Exchange)
		symbol := orFlag(cmd, "symbol", cfg.MMT.Symbol)
		tf := orFlag(cmd, "tf", cfg.MMT.TF)

		var resp mmt.Response
		switch op {
		case "ping":
			resp = client.Ping(ctx)
		case "markets":
			resp = client.Markets(ctx)
		case "candles":
			p := mmt.CandlesParams{Exchange: exchangeID, Symbol: symbol, TF: tf}
			if cmd.IsSet("from") {
				from := int64(cmd.Int("from"))
				p.From = &from
			}
			if cmd.IsSet("to") {
				to := int64(cmd.Int("to"))
				p.To = &to
			}
			resp = client.Candles(ctx, p)
		case "vd":
			resp = client.VolumeDelta(ctx, mmt.VDParams{Exchange: exchangeID, Symbol: symbol, TF: tf, Bucket: int(cmd.Int("bucket"))})
		default:
			return fmt.Errorf("unknown mmt operation %q", op)
		}

		fmt.Fprintln(os.Stdout, resp.String())
		if !resp.OK() {
			return fmt.Errorf("mmt %s: status %d", op, resp.Status)
		}
		return nil
	}
}

func orFlag(cmd *cli.Command, name, fallback string) string {
	if v := strings.TrimSpace(cmd.String(name)); v != "" {
		return v
	}
	return fallback
}
