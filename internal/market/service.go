// Package market ranks exchange symbols by volume and fetches candles,
// throttled by one shared rate limiter.
package market

import (
	"context"
	"strings"
	"time"

	"mmtrade/pkg/errors"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/ratelimit"

	"go.uber.org/zap"
)

const (
	DefaultTopLimit    = 10
	DefaultCandleLimit = 50
	DefaultTickerTTL   = 300 * time.Second
	DefaultQuote       = "USDT"
)

// Service owns the limiter, ticker cache and client factory shared by all callers.
type Service struct {
	factory     Factory
	limiter     *ratelimit.Limiter
	cache       TickerCache
	ttl         time.Duration
	quote       string
	candleLimit int
	now         func() time.Time
	streams     map[exchange.ID]Streamer
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

func WithCache(c TickerCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithTTL sets how long a ranked list stays fresh.
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithQuote sets the settlement currency symbols are filtered on.
func WithQuote(q string) Option {
	return func(s *Service) {
		if q = strings.TrimSpace(q); q != "" {
			s.quote = strings.ToUpper(q)
		}
	}
}

// WithCandleLimit sets the candle count used when a caller passes limit <= 0.
func WithCandleLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.candleLimit = n
		}
	}
}

// WithClock sets the time source for cache freshness.
func WithClock(c ratelimit.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.now = c.Now
		}
	}
}

// WithStreamer registers a live candle source for an exchange.
func WithStreamer(id exchange.ID, st Streamer) Option {
	return func(s *Service) {
		if st != nil {
			s.streams[id] = st
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. Without options it uses a 1.2s limiter, an
// in-memory cache with a 300s TTL and the USDT quote.
func NewService(factory Factory, opts ...Option) *Service {
	s := &Service{
		factory:     factory,
		limiter:     ratelimit.New(ratelimit.DefaultMinInterval),
		cache:       NewMemoryCache(),
		ttl:         DefaultTickerTTL,
		quote:       DefaultQuote,
		candleLimit: DefaultCandleLimit,
		now:         time.Now,
		streams:     make(map[exchange.ID]Streamer),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote returns the settlement currency used for ranking.
func (s *Service) Quote() string {
	return s.quote
}

// TopSymbols returns up to limit symbols quoted in the service quote, by
// descending 24h volume. A fresh cached ranking is served without touching
// the limiter or the network.
func (s *Service) TopSymbols(ctx context.Context, exchangeID string, limit int) ([]RankedSymbol, error) {
	id, err := exchange.ParseID(exchangeID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	now := s.now()
	if entry, ok := s.cache.Get(ctx, id); ok && now.Sub(entry.CreatedAt) < s.ttl {
		s.logger.Debug("ticker cache hit", zap.String("exchange", string(id)), zap.Int("symbols", len(entry.Symbols)))
		return Truncate(entry.Symbols, limit), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.KindTransport, "rate limit wait", err)
	}

	client, err := s.factory(id)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, "create client failed", err)
	}
	defer s.closeClient(id, client)

	markets, err := client.LoadMarkets(ctx)
	if err != nil {
		return nil, errors.WrapStep(errors.KindTransport, "load markets failed", err)
	}
	tickers, err := client.FetchTickers(ctx)
	if err != nil {
		return nil, errors.WrapStep(errors.KindTransport, "fetch tickers failed", err)
	}

	ranked := Rank(tickers, s.quote)
	if len(ranked) == 0 && len(markets) > 0 {
		ranked = Fallback(markets, s.quote, limit)
		s.logger.Info("no ranked tickers, using market catalog",
			zap.String("exchange", string(id)), zap.Int("symbols", len(ranked)))
	}

	s.cache.Set(ctx, id, CacheEntry{CreatedAt: now, Symbols: ranked})
	s.logger.Info("symbols ranked",
		zap.String("exchange", string(id)),
		zap.Int("tickers", len(tickers)),
		zap.Int("ranked", len(ranked)))
	return Truncate(ranked, limit), nil
}

// Candles fetches up to limit candles for symbol, oldest first. It is never
// cached. An empty venue response yields an empty, non-nil slice.
func (s *Service) Candles(ctx context.Context, exchangeID, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	id, err := exchange.ParseID(exchangeID)
	if err != nil {
		return nil, err
	}
	tf, err := exchange.ParseTimeframe(strings.TrimSpace(timeframe))
	if err != nil {
		return nil, err
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, errors.New(errors.KindConfig, "symbol is required")
	}
	if limit <= 0 {
		limit = s.candleLimit
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.KindTransport, "rate limit wait", err)
	}

	client, err := s.factory(id)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, "create client failed", err)
	}
	defer s.closeClient(id, client)

	if _, err := client.LoadMarkets(ctx); err != nil {
		return nil, errors.WrapStep(errors.KindTransport, "ohlcv failed", err)
	}
	candles, err := client.FetchOHLCV(ctx, symbol, tf, limit)
	if err != nil {
		return nil, errors.WrapStep(errors.KindTransport, "ohlcv failed", err)
	}
	if len(candles) == 0 {
		return []exchange.Candle{}, nil
	}

	s.logger.Debug("candles fetched",
		zap.String("exchange", string(id)),
		zap.String("symbol", symbol),
		zap.String("timeframe", string(tf)),
		zap.Int("count", len(candles)))
	return candles, nil
}

// Ticker returns the 24h snapshot for one unified symbol. Like Candles it is
// rate limited and never cached.
func (s *Service) Ticker(ctx context.Context, exchangeID, symbol string) (exchange.Ticker, error) {
	id, err := exchange.ParseID(exchangeID)
	if err != nil {
		return exchange.Ticker{}, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return exchange.Ticker{}, errors.New(errors.KindConfig, "symbol is required")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return exchange.Ticker{}, errors.Wrap(errors.KindTransport, "rate limit wait", err)
	}

	client, err := s.factory(id)
	if err != nil {
		return exchange.Ticker{}, errors.Wrap(errors.KindConfig, "create client failed", err)
	}
	defer s.closeClient(id, client)

	if _, err := client.LoadMarkets(ctx); err != nil {
		return exchange.Ticker{}, errors.WrapStep(errors.KindTransport, "load markets failed", err)
	}
	tickers, err := client.FetchTickers(ctx)
	if err != nil {
		return exchange.Ticker{}, errors.WrapStep(errors.KindTransport, "fetch tickers failed", err)
	}
	for _, t := range tickers {
		if t.Symbol == symbol {
			return t, nil
		}
	}
	return exchange.Ticker{}, errors.Newf(errors.KindConfig, "%s does not have market symbol %s", id, symbol)
}

func (s *Service) closeClient(id exchange.ID, c exchange.Client) {
	if err := c.Close(); err != nil {
		s.logger.Warn("close client", zap.String("exchange", string(id)), zap.Error(err))
	}
}

// ExchangeOption pairs a display name with its identifier.
type ExchangeOption struct {
	Name string      `json:"name"`
	ID   exchange.ID `json:"id"`
}

// Exchanges lists the supported exchanges in display order.
func Exchanges() []ExchangeOption {
	ids := exchange.IDs()
	out := make([]ExchangeOption, len(ids))
	for i, id := range ids {
		out[i] = ExchangeOption{Name: id.DisplayName(), ID: id}
	}
	return out
}
