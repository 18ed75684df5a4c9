package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

type stubBackend struct {
	findTransactionFn func(ctx context.Context, id string) (*domain.TransactionDetails, error)
	findCustomerFn    func(ctx context.Context, id string) (*domain.CustomerDetails, error)
	findByUsedFn      func(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error)
}

func (s *stubBackend) FindTransaction(ctx context.Context, id string) (*domain.TransactionDetails, error) {
	if s.findTransactionFn == nil {
		return nil, errors.New("unexpected FindTransaction call")
	}
	return s.findTransactionFn(ctx, id)
}

func (s *stubBackend) FindCustomer(ctx context.Context, id string) (*domain.CustomerDetails, error) {
	if s.findCustomerFn == nil {
		return nil, errors.New("unexpected FindCustomer call")
	}
	return s.findCustomerFn(ctx, id)
}

func (s *stubBackend) FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error) {
	if s.findByUsedFn == nil {
		return nil, errors.New("unexpected FindCampaignBoughtByCustomerAndUsed call")
	}
	return s.findByUsedFn(ctx, customerID, used)
}

func (s *stubBackend) FindAllCampaignBought(ctx context.Context) ([]domain.CampaignBought, error) {
	return nil, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheFindTransactionMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	tx := domain.TransactionDetails{TransactionID: "t1", PurchaseDate: time.Unix(100, 0).UTC(), DocumentType: domain.TransactionTypeSell}

	var calls int
	cache := NewCache(&stubBackend{
		findTransactionFn: func(ctx context.Context, id string) (*domain.TransactionDetails, error) {
			calls++
			if id != "t1" {
				t.Fatalf("unexpected id: %s", id)
			}
			cp := tx
			return &cp, nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		got, err := cache.FindTransaction(ctx, "t1")
		if err != nil || got == nil || got.TransactionID != "t1" || !got.PurchaseDate.Equal(tx.PurchaseDate) {
			t.Fatalf("find %d: %#v %v", i, got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(TransactionCacheKey("t1")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestCacheDoesNotStoreMissingRows(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewCache(&stubBackend{
		findCustomerFn: func(ctx context.Context, id string) (*domain.CustomerDetails, error) { return nil, nil },
	}, client, time.Minute)
	got, err := cache.FindCustomer(context.Background(), "c1")
	if err != nil || got != nil {
		t.Fatalf("expected nil customer, got %#v %v", got, err)
	}
	if mr.Exists(CustomerCacheKey("c1")) {
		t.Fatalf("missing row must not be cached")
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := newTestRedis(t)
	key := CustomerCacheKey("c1")
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cache := NewCache(&stubBackend{
		findCustomerFn: func(ctx context.Context, id string) (*domain.CustomerDetails, error) {
			return &domain.CustomerDetails{CustomerID: id, FirstName: "Joe"}, nil
		},
	}, client, time.Minute)
	got, err := cache.FindCustomer(context.Background(), "c1")
	if err != nil || got == nil || got.FirstName != "Joe" {
		t.Fatalf("unexpected customer: %#v %v", got, err)
	}
	if !mr.Exists(key) {
		t.Fatalf("expected refreshed cache entry")
	}
}

func TestCacheCampaignListAndEvict(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	var calls int
	cache := NewCache(&stubBackend{
		findByUsedFn: func(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error) {
			calls++
			if used {
				return []domain.CampaignBought{}, nil
			}
			return []domain.CampaignBought{boughtRow("a", nil)}, nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		list, err := cache.FindCampaignBoughtByCustomerAndUsed(ctx, customerID, false)
		if err != nil || len(list) != 1 || list[0].Coupon.Code != "a" {
			t.Fatalf("find %d: %#v %v", i, list, err)
		}
		empty, err := cache.FindCampaignBoughtByCustomerAndUsed(ctx, customerID, true)
		if err != nil || empty == nil || len(empty) != 0 {
			t.Fatalf("find used %d: %#v %v", i, empty, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", calls)
	}

	cache.Evict(ctx, CustomerCampaignsCacheKey(customerID, false))
	if _, err := cache.FindCampaignBoughtByCustomerAndUsed(ctx, customerID, false); err != nil {
		t.Fatalf("find after evict: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected reload after evict, got %d calls", calls)
	}
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	var calls int
	cache := NewCache(&stubBackend{
		findTransactionFn: func(ctx context.Context, id string) (*domain.TransactionDetails, error) {
			calls++
			return &domain.TransactionDetails{TransactionID: id}, nil
		},
	}, nil, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cache.FindTransaction(context.Background(), "t1"); err != nil {
			t.Fatalf("find: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected pass-through, got %d calls", calls)
	}
}

func TestCacheKeys(t *testing.T) {
	if TransactionCacheKey("t") != "tx:t" || CustomerCacheKey("c") != "cu:c" || CustomerCampaignsCacheKey("c", true) != "cb:c:true" {
		t.Fatalf("unexpected cache keys")
	}
}
