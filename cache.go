package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
	"github.com/ksuena0213/open-loyalty-framework/storage"
)

type cacheStore interface {
	FindTransaction(ctx context.Context, id string) (*domain.TransactionDetails, error)
	FindCustomer(ctx context.Context, id string) (*domain.CustomerDetails, error)
}

type cacheWriter interface {
	StoreTransaction(ctx context.Context, t domain.TransactionDetails)
	StoreCustomer(ctx context.Context, c domain.CustomerDetails)
	Evict(ctx context.Context, keys ...string)
}

type cacheRefresher interface {
	Refresh(ctx context.Context, p domain.Payload)
}

// cacheUpdater keeps the query cache in step with the projections. Rows are
// re-read from the store after each applied event; lists are evicted.
type cacheUpdater struct {
	store cacheStore
	cache cacheWriter
}

func newCacheUpdater(store cacheStore, cache cacheWriter) *cacheUpdater {
	return &cacheUpdater{store: store, cache: cache}
}

func (c *cacheUpdater) Refresh(ctx context.Context, p domain.Payload) {
	if c == nil || c.store == nil || c.cache == nil {
		return
	}
	switch e := p.(type) {
	case domain.TransactionWasRegistered:
		c.refreshTransaction(ctx, e.TransactionID)
	case domain.LabelsWereAppendedToTransaction:
		c.refreshTransaction(ctx, e.TransactionID)
	case domain.CustomerWasAssignedToTransaction:
		c.refreshTransaction(ctx, e.TransactionID)
		c.refreshCustomer(ctx, e.CustomerID)
	case domain.CustomerWasRegistered:
		c.refreshCustomer(ctx, e.CustomerID)
	case domain.CustomerDetailsWereUpdated:
		c.refreshCustomer(ctx, e.CustomerID)
	case domain.CampaignWasBoughtByCustomer:
		c.refreshCustomer(ctx, e.CustomerID)
		c.evictCampaigns(ctx, e.CustomerID)
	case domain.CampaignUsageWasChanged:
		c.evictCampaigns(ctx, e.CustomerID)
	case domain.CampaignStatusWasChanged:
		c.evictCampaigns(ctx, e.CustomerID)
	}
}

func (c *cacheUpdater) refreshTransaction(ctx context.Context, id string) {
	t, err := c.store.FindTransaction(ctx, id)
	if err != nil {
		log.WithError(err).WithField("transaction", id).Error("failed to load transaction for cache")
	}
	if err != nil || t == nil {
		c.cache.Evict(ctx, storage.TransactionCacheKey(id))
		return
	}
	c.cache.StoreTransaction(ctx, *t)
}

func (c *cacheUpdater) refreshCustomer(ctx context.Context, id string) {
	if id == "" {
		return
	}
	cd, err := c.store.FindCustomer(ctx, id)
	if err != nil {
		log.WithError(err).WithField("customer", id).Error("failed to load customer for cache")
	}
	if err != nil || cd == nil {
		c.cache.Evict(ctx, storage.CustomerCacheKey(id))
		return
	}
	c.cache.StoreCustomer(ctx, *cd)
}

func (c *cacheUpdater) evictCampaigns(ctx context.Context, customerID string) {
	c.cache.Evict(ctx,
		storage.CustomerCampaignsCacheKey(customerID, false),
		storage.CustomerCampaignsCacheKey(customerID, true),
	)
}
