package main

import (
	"context"
	"testing"

	"mmtrade/config"
	"mmtrade/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCommandTree(t *testing.T) {
	cmd := newCommand()

	names := make([]string, 0, len(cmd.Commands))
	for _, c := range cmd.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"tui", "symbols", "candles", "ticker", "serve", "mmt"}, names)

	mmtCmd := cmd.Commands[4]
	sub := make([]string, 0, len(mmtCmd.Commands))
	for _, c := range mmtCmd.Commands {
		sub = append(sub, c.Name)
	}
	assert.Equal(t, []string{"ping", "markets", "candles", "vd"}, sub)
}

func TestNewTickerCacheMemory(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cache, closeFn := newTickerCache(context.Background(), cfg, zap.NewNop())
	defer closeFn()
	assert.IsType(t, &market.MemoryCache{}, cache)
}

func TestNewTickerCacheRedisFallback(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Cache.Backend = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"

	cache, closeFn := newTickerCache(context.Background(), cfg, zap.NewNop())
	defer closeFn()
	assert.IsType(t, &market.MemoryCache{}, cache)
}
