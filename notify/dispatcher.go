package notify

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

type readModels interface {
	domain.CustomerRepository
	domain.AccountRepository
	domain.CampaignCatalog
}

// Dispatcher sends the notifications that follow applied events. It runs
// after projection, so it reads the updated rows.
type Dispatcher struct {
	provider *EmailProvider
	store    readModels
}

func NewDispatcher(provider *EmailProvider, store readModels) *Dispatcher {
	return &Dispatcher{provider: provider, store: store}
}

// Notify reacts to p. Events without a notification are ignored.
func (d *Dispatcher) Notify(ctx context.Context, p domain.Payload) error {
	switch e := p.(type) {
	case domain.CampaignWasBoughtByCustomer:
		return d.campaignBought(ctx, e)
	case domain.PointsWereAdded:
		return d.pointsAdded(ctx, e)
	}
	return nil
}

func (d *Dispatcher) customer(ctx context.Context, id string) (*domain.CustomerDetails, error) {
	c, err := d.store.FindCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		log.WithField("customer", id).Warn("no customer details for notification")
	}
	return c, nil
}

func (d *Dispatcher) campaignBought(ctx context.Context, e domain.CampaignWasBoughtByCustomer) error {
	c, err := d.customer(ctx, e.CustomerID)
	if err != nil || c == nil {
		return err
	}
	campaign, err := d.store.GetCampaign(ctx, e.CampaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		campaign = &domain.Campaign{ID: e.CampaignID, Name: e.CampaignName, Reward: e.Reward, CostInPoints: e.CostInPoints}
	}
	_, err = d.provider.CustomerBoughtCampaign(ctx, *c, *campaign, e.Coupon)
	return err
}

func (d *Dispatcher) pointsAdded(ctx context.Context, e domain.PointsWereAdded) error {
	c, err := d.customer(ctx, e.CustomerID)
	if err != nil || c == nil {
		return err
	}
	var available float64
	a, err := d.store.FindAccount(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	if a != nil {
		available = a.AvailableAmount
	}
	_, err = d.provider.AddPointsToCustomer(ctx, *c, available, e.Points)
	return err
}
