package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/username/dinartools/backend/src/logger"
	"github.com/username/dinartools/backend/src/models"
)

const cacheKeyPrefix = "stock_"

// CacheKey is the KV key under which a code's snapshot is stored.
func CacheKey(code string) string {
	return cacheKeyPrefix + code
}

// MarketCache applies a fixed TTL over a KVStore. Stale entries stay in the
// store and are simply ignored until the next successful fetch overwrites them.
type MarketCache struct {
	store KVStore
	ttl   time.Duration
}

func NewMarketCache(store KVStore, ttl time.Duration) *MarketCache {
	return &MarketCache{store: store, ttl: ttl}
}

// Lookup returns the entry for code when now - timestamp < TTL.
func (c *MarketCache) Lookup(ctx context.Context, code string, now time.Time) (models.CacheEntry, bool) {
	raw, found, err := c.store.Get(ctx, CacheKey(code))
	if err != nil {
		logger.FromContext(ctx).Warn("Market cache read failed", "code", code, "error", err)
		return models.CacheEntry{}, false
	}
	if !found {
		return models.CacheEntry{}, false
	}
	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.FromContext(ctx).Warn("Ignoring corrupt market cache entry", "code", code, "error", err)
		return models.CacheEntry{}, false
	}
	if now.UnixMilli()-entry.Timestamp >= c.ttl.Milliseconds() {
		return models.CacheEntry{}, false
	}
	return entry, true
}

// Store overwrites the entry for code.
func (c *MarketCache) Store(ctx context.Context, code string, entry models.CacheEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry for %s: %w", code, err)
	}
	if err := c.store.Set(ctx, CacheKey(code), string(b)); err != nil {
		return fmt.Errorf("write cache entry for %s: %w", code, err)
	}
	return nil
}
