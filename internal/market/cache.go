package market

import (
	"context"
	"sync"
	"time"

	"mmtrade/pkg/exchange"
)

// CacheEntry is the full ranked list for one exchange and when it was built.
type CacheEntry struct {
	CreatedAt time.Time      `json:"created_at"`
	Symbols   []RankedSymbol `json:"symbols"`
}

// TickerCache stores ranked lists per exchange. Freshness is decided by the
// caller from CreatedAt.
type TickerCache interface {
	Get(ctx context.Context, id exchange.ID) (CacheEntry, bool)
	Set(ctx context.Context, id exchange.ID, entry CacheEntry)
}

// MemoryCache is an in-process TickerCache. Entries are replaced, never evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[exchange.ID]CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[exchange.ID]CacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, id exchange.ID) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return CacheEntry{}, false
	}
	return CacheEntry{CreatedAt: e.CreatedAt, Symbols: Truncate(e.Symbols, -1)}, true
}

func (c *MemoryCache) Set(_ context.Context, id exchange.ID, entry CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = CacheEntry{CreatedAt: entry.CreatedAt, Symbols: Truncate(entry.Symbols, -1)}
}

// Len returns the number of cached exchanges.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
