package market

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) LoadMarkets(ctx context.Context) ([]exchange.Market, error) {
	args := m.Called(ctx)
	markets, _ := args.Get(0).([]exchange.Market)
	return markets, args.Error(1)
}

func (m *mockClient) FetchTickers(ctx context.Context) ([]exchange.Ticker, error) {
	args := m.Called(ctx)
	tickers, _ := args.Get(0).([]exchange.Ticker)
	return tickers, args.Error(1)
}

func (m *mockClient) FetchOHLCV(ctx context.Context, symbol string, tf exchange.Timeframe, limit int) ([]exchange.Candle, error) {
	args := m.Called(ctx, symbol, tf, limit)
	candles, _ := args.Get(0).([]exchange.Candle)
	return candles, args.Error(1)
}

func (m *mockClient) Close() error {
	return m.Called().Error(0)
}

func ticker(symbol string, quoteVol float64) exchange.Ticker {
	return exchange.Ticker{Key: symbol, Symbol: symbol, QuoteVolume: exchange.Float(quoteVol)}
}

var catalog = []exchange.Market{
	{ID: "BTCUSDT", Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT", Active: true},
	{ID: "ETHUSDT", Symbol: "ETH/USDT", Base: "ETH", Quote: "USDT", Active: true},
}

type ServiceSuite struct {
	suite.Suite
	clock    *ratelimit.FakeClock
	client   *mockClient
	builds   atomic.Int32
	service  *Service
	buildErr error
}

func (s *ServiceSuite) SetupTest() {
	s.clock = ratelimit.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.client = &mockClient{}
	s.builds.Store(0)
	s.buildErr = nil
	factory := func(id exchange.ID) (exchange.Client, error) {
		s.builds.Add(1)
		if s.buildErr != nil {
			return nil, s.buildErr
		}
		return s.client, nil
	}
	s.service = NewService(factory,
		WithLimiter(ratelimit.New(ratelimit.DefaultMinInterval, ratelimit.WithClock(s.clock))),
		WithClock(s.clock),
	)
}

func (s *ServiceSuite) expectSnapshot(tickers []exchange.Ticker) {
	s.client.On("LoadMarkets", mock.Anything).Return(catalog, nil)
	s.client.On("FetchTickers", mock.Anything).Return(tickers, nil)
	s.client.On("Close").Return(nil)
}

func (s *ServiceSuite) TestUnknownExchangeFailsBeforeNetwork() {
	_, err := s.service.TopSymbols(context.Background(), "kraken", 5)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindConfig))

	_, err = s.service.Candles(context.Background(), "kraken", "BTC/USDT", "1h", 5)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindConfig))

	s.Equal(int32(0), s.builds.Load())
	s.Empty(s.clock.Sleeps())
	s.True(s.service.limiter.Last().IsZero())
}

func (s *ServiceSuite) TestTopSymbolsFiltersQuote() {
	s.expectSnapshot([]exchange.Ticker{
		ticker("BTC/USDT", 5e9),
		ticker("ETH/USDT", 2e9),
		ticker("XYZ/BUSD", 9e9),
	})

	got, err := s.service.TopSymbols(context.Background(), "Binance", 5)
	s.Require().NoError(err)
	s.Equal([]RankedSymbol{{Symbol: "BTC/USDT", Volume: 5e9}, {Symbol: "ETH/USDT", Volume: 2e9}}, got)
	s.client.AssertCalled(s.T(), "Close")
}

func (s *ServiceSuite) TestTopSymbolsCacheWithinTTL() {
	s.expectSnapshot([]exchange.Ticker{ticker("BTC/USDT", 3), ticker("ETH/USDT", 2), ticker("SOL/USDT", 1)})
	ctx := context.Background()

	first, err := s.service.TopSymbols(ctx, "okx", 10)
	s.Require().NoError(err)

	s.clock.Advance(299 * time.Second)
	second, err := s.service.TopSymbols(ctx, "okx", 10)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(int32(1), s.builds.Load())
	s.client.AssertNumberOfCalls(s.T(), "FetchTickers", 1)

	// served from the full cached list, truncated per call
	top, err := s.service.TopSymbols(ctx, "okx", 2)
	s.Require().NoError(err)
	s.Equal([]RankedSymbol{{Symbol: "BTC/USDT", Volume: 3}, {Symbol: "ETH/USDT", Volume: 2}}, top)
	s.Equal(int32(1), s.builds.Load())

	s.clock.Advance(2 * time.Second)
	_, err = s.service.TopSymbols(ctx, "okx", 10)
	s.Require().NoError(err)
	s.Equal(int32(2), s.builds.Load())
	s.client.AssertNumberOfCalls(s.T(), "FetchTickers", 2)
}

func (s *ServiceSuite) TestTopSymbolsDefaultLimit() {
	tickers := make([]exchange.Ticker, 0, 15)
	for i := 0; i < 15; i++ {
		tickers = append(tickers, ticker(string(rune('A'+i))+"/USDT", float64(i)))
	}
	s.expectSnapshot(tickers)

	got, err := s.service.TopSymbols(context.Background(), "bybit", 0)
	s.Require().NoError(err)
	s.Len(got, DefaultTopLimit)
	s.Equal("O/USDT", got[0].Symbol)
}

func (s *ServiceSuite) TestTopSymbolsFallbackToCatalog() {
	s.client.On("LoadMarkets", mock.Anything).Return([]exchange.Market{
		{ID: "BTCUSDT", Symbol: "BTC/USDT", Active: true},
		{ID: "OLDUSDT", Symbol: "OLD/USDT", Active: false},
		{ID: "ETHBTC", Symbol: "ETH/BTC", Active: true},
		{ID: "ETHUSDT", Symbol: "ETH/USDT", Active: true},
		{ID: "SOLUSDT", Symbol: "SOL/USDT", Active: true},
	}, nil)
	s.client.On("FetchTickers", mock.Anything).Return([]exchange.Ticker{ticker("ETH/BTC", 10)}, nil)
	s.client.On("Close").Return(nil)

	got, err := s.service.TopSymbols(context.Background(), "coinbase", 2)
	s.Require().NoError(err)
	s.Equal([]RankedSymbol{{Symbol: "BTC/USDT"}, {Symbol: "ETH/USDT"}}, got)
}

func (s *ServiceSuite) TestTopSymbolsWrapsStepErrors() {
	s.client.On("LoadMarkets", mock.Anything).Return(nil, stderrors.New("dial tcp: refused")).Once()
	s.client.On("Close").Return(nil)

	_, err := s.service.TopSymbols(context.Background(), "binance", 5)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindTransport))
	s.Contains(err.Error(), "load markets failed: dial tcp: refused")
	s.client.AssertCalled(s.T(), "Close")

	s.client.On("LoadMarkets", mock.Anything).Return(catalog, nil)
	s.client.On("FetchTickers", mock.Anything).Return(nil, stderrors.New("timeout"))
	_, err = s.service.TopSymbols(context.Background(), "binance", 5)
	s.Require().Error(err)
	s.Contains(err.Error(), "fetch tickers failed: timeout")
	s.client.AssertNumberOfCalls(s.T(), "Close", 2)
}

func (s *ServiceSuite) TestStepErrorsKeepMalformedKind() {
	decodeErr := errors.Wrapf(errors.KindMalformed, stderrors.New("unexpected EOF"), "okx decode %s", "/api/v5/market/tickers")
	s.client.On("LoadMarkets", mock.Anything).Return(catalog, nil)
	s.client.On("FetchTickers", mock.Anything).Return(nil, decodeErr)
	s.client.On("FetchOHLCV", mock.Anything, "BTC/USDT", exchange.Timeframe1h, 50).Return(nil, decodeErr)
	s.client.On("Close").Return(nil)

	_, err := s.service.TopSymbols(context.Background(), "okx", 5)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindMalformed))
	s.Contains(err.Error(), "fetch tickers failed: okx decode")

	_, err = s.service.Candles(context.Background(), "okx", "BTC/USDT", "1h", 0)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindMalformed))
}

func (s *ServiceSuite) TestTicker() {
	btc := exchange.Ticker{Key: "BTC/USDT", Symbol: "BTC/USDT", Last: exchange.Float(50000), High: exchange.Float(51000)}
	s.expectSnapshot([]exchange.Ticker{ticker("ETH/USDT", 2), btc})

	got, err := s.service.Ticker(context.Background(), "binance", " btc/usdt ")
	s.Require().NoError(err)
	s.Equal(btc, got)
	s.client.AssertNumberOfCalls(s.T(), "Close", 1)

	_, err = s.service.Ticker(context.Background(), "binance", "XYZ/USDT")
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindConfig))
	s.Contains(err.Error(), "does not have market symbol XYZ/USDT")

	_, err = s.service.Ticker(context.Background(), "binance", "")
	s.True(errors.IsKind(err, errors.KindConfig))
	s.client.AssertNumberOfCalls(s.T(), "FetchTickers", 2)
}

func (s *ServiceSuite) TestFactoryError() {
	s.buildErr = stderrors.New("no adapter")
	_, err := s.service.TopSymbols(context.Background(), "binance", 5)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindConfig))
}

func (s *ServiceSuite) TestLimiterSpacesFetches() {
	s.expectSnapshot([]exchange.Ticker{ticker("BTC/USDT", 1)})
	s.client.On("FetchOHLCV", mock.Anything, "BTC/USDT", exchange.Timeframe1h, 50).Return([]exchange.Candle{{Timestamp: 1}}, nil)
	ctx := context.Background()

	_, err := s.service.TopSymbols(ctx, "binance", 5)
	s.Require().NoError(err)
	_, err = s.service.Candles(ctx, "binance", "BTC/USDT", "1h", 0)
	s.Require().NoError(err)

	// one global limiter: the second exchange request waited the full interval
	s.Equal([]time.Duration{ratelimit.DefaultMinInterval}, s.clock.Sleeps())
}

func (s *ServiceSuite) TestCandlesEmptyResult() {
	s.client.On("LoadMarkets", mock.Anything).Return(catalog, nil)
	s.client.On("FetchOHLCV", mock.Anything, "ETH/USDT", exchange.Timeframe5m, 20).Return(nil, nil)
	s.client.On("Close").Return(nil)

	got, err := s.service.Candles(context.Background(), "bybit", "ETH/USDT", "5m", 20)
	s.Require().NoError(err)
	s.NotNil(got)
	s.Empty(got)
	s.client.AssertCalled(s.T(), "Close")
}

func (s *ServiceSuite) TestCandlesErrors() {
	_, err := s.service.Candles(context.Background(), "binance", "BTC/USDT", "2h", 10)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindConfig))

	_, err = s.service.Candles(context.Background(), "binance", " ", "1h", 10)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindConfig))
	s.Equal(int32(0), s.builds.Load())

	s.client.On("LoadMarkets", mock.Anything).Return(catalog, nil)
	s.client.On("FetchOHLCV", mock.Anything, "BTC/USDT", exchange.Timeframe4h, 10).Return(nil, stderrors.New("bad symbol"))
	s.client.On("Close").Return(nil)
	_, err = s.service.Candles(context.Background(), "binance", "BTC/USDT", "4h", 10)
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindTransport))
	s.Contains(err.Error(), "ohlcv failed: bad symbol")
	s.client.AssertCalled(s.T(), "Close")
}

func (s *ServiceSuite) TestLiveRequiresStreamer() {
	_, err := s.service.Live(context.Background(), "okx", "BTC/USDT", "1h")
	s.Require().Error(err)
	s.True(errors.IsKind(err, errors.KindConfig))
	s.False(s.service.SupportsLive("okx"))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

type fakeStreamer struct {
	symbol string
	tf     exchange.Timeframe
}

func (f *fakeStreamer) Subscribe(_ context.Context, symbol string, tf exchange.Timeframe) (<-chan exchange.KlineUpdate, error) {
	f.symbol, f.tf = symbol, tf
	ch := make(chan exchange.KlineUpdate, 1)
	ch <- exchange.KlineUpdate{Symbol: symbol, Candle: exchange.Candle{Timestamp: 1, Close: 2}}
	close(ch)
	return ch, nil
}

func TestLiveDelegates(t *testing.T) {
	st := &fakeStreamer{}
	svc := NewService(nil, WithStreamer(exchange.Binance, st))
	require.True(t, svc.SupportsLive("BINANCE"))

	updates, err := svc.Live(context.Background(), "binance", "ETH/USDT", "15m")
	require.NoError(t, err)
	u := <-updates
	assert.Equal(t, 2.0, u.Candle.Close)
	assert.Equal(t, "ETH/USDT", st.symbol)
	assert.Equal(t, exchange.Timeframe15m, st.tf)
}

func TestServiceOptions(t *testing.T) {
	svc := NewService(nil, WithQuote(" usdc "), WithTTL(time.Minute), WithCandleLimit(20), WithQuote(""))
	assert.Equal(t, "USDC", svc.Quote())
	assert.Equal(t, time.Minute, svc.ttl)
	assert.Equal(t, 20, svc.candleLimit)
}

func TestExchanges(t *testing.T) {
	got := Exchanges()
	require.Len(t, got, 4)
	assert.Equal(t, ExchangeOption{Name: "Binance", ID: exchange.Binance}, got[0])
	assert.Equal(t, ExchangeOption{Name: "OKX", ID: exchange.OKX}, got[3])
}
