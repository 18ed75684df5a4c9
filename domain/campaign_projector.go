package domain

import "context"

// CampaignBoughtProjector maintains one CampaignBought row per purchased
// coupon. Rows are enriched from the campaign catalog, the customer details
// and the customer's points account at purchase time.
type CampaignBoughtProjector struct {
	repo      CampaignBoughtRepository
	campaigns CampaignCatalog
	customers CustomerRepository
	accounts  AccountRepository
}

func NewCampaignBoughtProjector(repo CampaignBoughtRepository, campaigns CampaignCatalog, customers CustomerRepository, accounts AccountRepository) *CampaignBoughtProjector {
	return &CampaignBoughtProjector{repo: repo, campaigns: campaigns, customers: customers, accounts: accounts}
}

func (p *CampaignBoughtProjector) Name() string { return campaignBoughtModel }

func (p *CampaignBoughtProjector) Subscriptions() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		CampaignWasBoughtByCustomerType: handle(p.bought),
		CampaignUsageWasChangedType:     handle(p.usageChanged),
		CampaignStatusWasChangedType:    handle(p.statusChanged),
	}
}

func (p *CampaignBoughtProjector) bought(ctx context.Context, e CampaignWasBoughtByCustomer) error {
	row := CampaignBought{
		CampaignID:    e.CampaignID,
		CustomerID:    e.CustomerID,
		PurchasedAt:   e.CreatedAt,
		Coupon:        e.Coupon,
		CampaignType:  e.Reward,
		CampaignName:  e.CampaignName,
		CostInPoints:  e.CostInPoints,
		Status:        e.Status,
		ActiveSince:   e.ActiveSince,
		ActiveTo:      e.ActiveTo,
		TransactionID: e.TransactionID,
	}
	if row.Status == "" {
		row.Status = CampaignStatusActive
	}

	// The catalog entry wins over the denormalized copy on the event.
	campaign, err := p.campaigns.GetCampaign(ctx, e.CampaignID)
	if err != nil {
		return err
	}
	if campaign != nil {
		row.CampaignType = campaign.Reward
		row.CampaignName = campaign.Name
		row.CostInPoints = campaign.CostInPoints
		row.TaxPriceValue = campaign.TaxPriceValue
	}

	customer, err := p.customers.FindCustomer(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	if customer != nil {
		row.CustomerEmail = customer.Email
		row.CustomerPhone = customer.Phone
		row.CustomerName = customer.FirstName
		row.CustomerLastname = customer.LastName
	}

	account, err := p.accounts.FindAccount(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	if account != nil {
		row.CurrentPointsAmount = int(account.AvailableAmount)
	}

	existing, err := p.repo.FindCampaignBought(ctx, row.ID())
	if err != nil {
		return err
	}
	if existing != nil {
		row.Used = existing.Used
	}
	return p.repo.UpsertCampaignBought(ctx, row)
}

func (p *CampaignBoughtProjector) usageChanged(ctx context.Context, e CampaignUsageWasChanged) error {
	row, err := p.load(ctx, CampaignBoughtID(e.CampaignID, e.CustomerID, e.Coupon), e.EventType())
	if err != nil {
		return err
	}
	used := e.Used
	row.Used = &used
	return p.repo.UpsertCampaignBought(ctx, *row)
}

func (p *CampaignBoughtProjector) statusChanged(ctx context.Context, e CampaignStatusWasChanged) error {
	row, err := p.load(ctx, CampaignBoughtID(e.CampaignID, e.CustomerID, e.Coupon), e.EventType())
	if err != nil {
		return err
	}
	row.Status = e.Status
	return p.repo.UpsertCampaignBought(ctx, *row)
}

func (p *CampaignBoughtProjector) load(ctx context.Context, id, event string) (*CampaignBought, error) {
	row, err := p.repo.FindCampaignBought(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &MissingReadModelRowError{Model: campaignBoughtModel, Key: id, Event: event}
	}
	return row, nil
}
