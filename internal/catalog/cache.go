package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// cachedRecord mirrors Record for the cache codec; the StockRef variant is
// flattened into a kind tag since interfaces do not round-trip JSON.
type cachedRecord struct {
	Record
	// Shadows Record.Stock so the interface never hits the JSON codec.
	Stock     StockRef  `json:"-"`
	StockKind string    `json:"stockKind,omitempty"`
	StockID   uuid.UUID `json:"stockId,omitempty"`
}

// CachedLookup layers the Redis cache in front of another catalog lookup.
type CachedLookup struct {
	Inner Lookup
	Cache *Cache
}

// Get returns the cached record when present, falling back to the inner
// lookup and populating the cache on the way out. Cache failures are
// treated as misses.
func (l CachedLookup) Get(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (Record, error) {
	key := cacheKey(productID, variantID)
	var cached cachedRecord
	if ok, err := l.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		rec := cached.Record
		switch cached.StockKind {
		case "product":
			rec.Stock = ProductStock{ProductID: cached.StockID}
		case "variant":
			rec.Stock = VariantStock{VariantID: cached.StockID}
		}
		return rec, nil
	}
	rec, err := l.Inner.Get(ctx, productID, variantID)
	if err != nil {
		return Record{}, err
	}
	toCache := cachedRecord{Record: rec}
	switch ref := rec.Stock.(type) {
	case ProductStock:
		toCache.StockKind, toCache.StockID = "product", ref.ProductID
	case VariantStock:
		toCache.StockKind, toCache.StockID = "variant", ref.VariantID
	}
	_ = l.Cache.SetJSON(ctx, key, toCache)
	return rec, nil
}

func cacheKey(productID uuid.UUID, variantID *uuid.UUID) string {
	if variantID != nil {
		return "catalog:record:" + productID.String() + ":" + variantID.String()
	}
	return "catalog:record:" + productID.String()
}
