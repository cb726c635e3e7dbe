package tui

import (
	"context"
	"time"

	"mmtrade/internal/market"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/mmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// requestTimeout bounds one worker; the limiter alone may wait a few seconds.
const requestTimeout = 60 * time.Second

// MarketService is what the data tab needs from market.Service.
type MarketService interface {
	TopSymbols(ctx context.Context, exchangeID string, limit int) ([]market.RankedSymbol, error)
	Candles(ctx context.Context, exchangeID, symbol, timeframe string, limit int) ([]exchange.Candle, error)
	SupportsLive(exchangeID string) bool
	Live(ctx context.Context, exchangeID, symbol, timeframe string) (<-chan exchange.KlineUpdate, error)
}

// MMTClient is what the MMT tab needs from mmt.Client.
type MMTClient interface {
	Ping(ctx context.Context) mmt.Response
	Candles(ctx context.Context, p mmt.CandlesParams) mmt.Response
	Close()
}

// MMTFactory builds an MMT client for a region and key.
type MMTFactory func(region, apiKey string) MMTClient

// DefaultMMTFactory builds resty-backed mmt.Clients. A non-empty baseURL
// overrides the region URL.
func DefaultMMTFactory(baseURL string, timeout time.Duration, logger *zap.Logger) MMTFactory {
	return func(region, apiKey string) MMTClient {
		opts := []mmt.Option{
			mmt.WithRegion(region),
			mmt.WithAPIKey(apiKey),
			mmt.WithTimeout(timeout),
			mmt.WithLogger(logger),
		}
		if baseURL != "" {
			opts = append(opts, mmt.WithBaseURL(baseURL))
		}
		return mmt.New(opts...)
	}
}

func loadSymbolsCmd(svc MarketService, seq int, exchangeID string, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		symbols, err := svc.TopSymbols(ctx, exchangeID, limit)
		return symbolsMsg{seq: seq, exchange: exchangeID, symbols: symbols, err: err}
	}
}

func loadCandlesCmd(svc MarketService, seq int, exchangeID, symbol, timeframe string, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		candles, err := svc.Candles(ctx, exchangeID, symbol, timeframe, limit)
		return candlesMsg{seq: seq, candles: candles, err: err}
	}
}

func startLiveCmd(ctx context.Context, svc MarketService, seq int, exchangeID, symbol, timeframe string) tea.Cmd {
	return func() tea.Msg {
		updates, err := svc.Live(ctx, exchangeID, symbol, timeframe)
		if err != nil {
			return liveClosedMsg{seq: seq, err: err}
		}
		return liveStartedMsg{seq: seq, updates: updates}
	}
}

// waitLive reads one update; the model re-issues it after every liveMsg.
func waitLive(seq int, updates <-chan exchange.KlineUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return liveClosedMsg{seq: seq}
		}
		return liveMsg{seq: seq, update: u}
	}
}

func mmtPingCmd(client MMTClient) tea.Cmd {
	return func() tea.Msg {
		return mmtResultMsg{op: "Test", resp: client.Ping(context.Background())}
	}
}

func mmtCandlesCmd(client MMTClient, s MMTSettings) tea.Cmd {
	return func() tea.Msg {
		resp := client.Candles(context.Background(), mmt.CandlesParams{
			Exchange: s.Exchange,
			Symbol:   s.Symbol,
			TF:       s.TF,
		})
		return mmtResultMsg{op: "Candles", resp: resp}
	}
}
