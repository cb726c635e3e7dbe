package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mmtrade/config"
	"mmtrade/internal/market"
	"mmtrade/pkg/exchange"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ market.TickerCache = (*TickerCache)(nil)

const keyPrefix = "tickers"

// TickerCache keeps ranked symbol lists in Redis as JSON, one key per exchange.
// Keys expire after ttl; freshness inside that window is decided by the caller.
type TickerCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient opens a go-redis client from config.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewTickerCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *TickerCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickerCache{client: client, ttl: ttl, logger: logger}
}

// Ping checks the connection to the Redis server.
func (c *TickerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *TickerCache) key(id exchange.ID) string {
	return fmt.Sprintf("%s:%s", keyPrefix, id)
}

// Get reads the entry for id. Redis errors and undecodable values count as a miss.
func (c *TickerCache) Get(ctx context.Context, id exchange.ID) (market.CacheEntry, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis ticker cache get failed", zap.String("exchange", string(id)), zap.Error(err))
		}
		return market.CacheEntry{}, false
	}

	var entry market.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("redis ticker cache entry undecodable", zap.String("exchange", string(id)), zap.Error(err))
		return market.CacheEntry{}, false
	}
	if entry.Symbols == nil {
		entry.Symbols = []market.RankedSymbol{}
	}
	return entry, true
}

// Set stores entry for id. Failures are logged; the ranking is still returned to callers.
func (c *TickerCache) Set(ctx context.Context, id exchange.ID, entry market.CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("redis ticker cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis ticker cache set failed", zap.String("exchange", string(id)), zap.Error(err))
	}
}

// Delete removes the entry for id.
func (c *TickerCache) Delete(ctx context.Context, id exchange.ID) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
