package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

type backend interface {
	FindTransaction(ctx context.Context, id string) (*domain.TransactionDetails, error)
	FindCustomer(ctx context.Context, id string) (*domain.CustomerDetails, error)
	FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error)
	FindAllCampaignBought(ctx context.Context) ([]domain.CampaignBought, error)
}

const cacheVersion = 1

// CachedRows is the value stored under every cache key: the serialized read
// model rows of one lookup.
type CachedRows struct {
	Version  int              `json:"version"`
	CachedAt time.Time        `json:"cachedAt"`
	Rows     []map[string]any `json:"rows"`
}

// Cache wraps the read-model queries with a Redis read-through cache. Writes
// happen in the projection worker, which refreshes or evicts the keys below.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, now: time.Now}
}

func (c *Cache) FindTransaction(ctx context.Context, id string) (*domain.TransactionDetails, error) {
	key := TransactionCacheKey(id)
	if rows, ok := c.load(ctx, key); ok && len(rows) == 1 {
		if t, err := domain.DeserializeTransactionDetails(rows[0]); err == nil {
			return &t, nil
		}
		c.Evict(ctx, key)
	}
	t, err := c.base.FindTransaction(ctx, id)
	if err != nil || t == nil {
		return t, err
	}
	c.StoreTransaction(ctx, *t)
	return t, nil
}

func (c *Cache) FindCustomer(ctx context.Context, id string) (*domain.CustomerDetails, error) {
	key := CustomerCacheKey(id)
	if rows, ok := c.load(ctx, key); ok && len(rows) == 1 {
		if cd, err := domain.DeserializeCustomerDetails(rows[0]); err == nil {
			return &cd, nil
		}
		c.Evict(ctx, key)
	}
	cd, err := c.base.FindCustomer(ctx, id)
	if err != nil || cd == nil {
		return cd, err
	}
	c.StoreCustomer(ctx, *cd)
	return cd, nil
}

func (c *Cache) FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error) {
	key := CustomerCampaignsCacheKey(customerID, used)
	if rows, ok := c.load(ctx, key); ok {
		out := make([]domain.CampaignBought, 0, len(rows))
		for _, r := range rows {
			cb, err := domain.DeserializeCampaignBought(r)
			if err != nil {
				out = nil
				break
			}
			out = append(out, cb)
		}
		if out != nil {
			return out, nil
		}
		c.Evict(ctx, key)
	}
	list, err := c.base.FindCampaignBoughtByCustomerAndUsed(ctx, customerID, used)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(list))
	for _, cb := range list {
		rows = append(rows, cb.Serialize())
	}
	c.store(ctx, key, rows)
	return list, nil
}

// FindAllCampaignBought is not cached.
func (c *Cache) FindAllCampaignBought(ctx context.Context) ([]domain.CampaignBought, error) {
	return c.base.FindAllCampaignBought(ctx)
}

// StoreTransaction replaces the cached transaction row.
func (c *Cache) StoreTransaction(ctx context.Context, t domain.TransactionDetails) {
	c.store(ctx, TransactionCacheKey(t.ID()), []map[string]any{t.Serialize()})
}

// StoreCustomer replaces the cached customer row.
func (c *Cache) StoreCustomer(ctx context.Context, cd domain.CustomerDetails) {
	c.store(ctx, CustomerCacheKey(cd.ID()), []map[string]any{cd.Serialize()})
}

// Evict drops the given keys.
func (c *Cache) Evict(ctx context.Context, keys ...string) {
	if c.redis == nil || len(keys) == 0 {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func (c *Cache) load(ctx context.Context, key string) ([]map[string]any, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var entry CachedRows
	if err := json.Unmarshal(data, &entry); err != nil || entry.Version != cacheVersion {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return entry.Rows, true
}

func (c *Cache) store(ctx context.Context, key string, rows []map[string]any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(CachedRows{Version: cacheVersion, CachedAt: c.now().UTC(), Rows: rows})
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func TransactionCacheKey(id string) string {
	return "tx:" + id
}

func CustomerCacheKey(id string) string {
	return "cu:" + id
}

func CustomerCampaignsCacheKey(customerID string, used bool) string {
	return "cb:" + customerID + ":" + strconv.FormatBool(used)
}
