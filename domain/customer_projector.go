package domain

import "context"

// CustomerDetailsProjector maintains CustomerDetails rows, including the
// counters fed by transaction and campaign events.
type CustomerDetailsProjector struct {
	customers    CustomerRepository
	transactions TransactionRepository
}

func NewCustomerDetailsProjector(customers CustomerRepository, transactions TransactionRepository) *CustomerDetailsProjector {
	return &CustomerDetailsProjector{customers: customers, transactions: transactions}
}

func (p *CustomerDetailsProjector) Name() string { return customerDetailsModel }

func (p *CustomerDetailsProjector) Subscriptions() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		CustomerWasRegisteredType:            handle(p.registered),
		CustomerDetailsWereUpdatedType:       handle(p.detailsUpdated),
		CustomerWasAssignedToTransactionType: handle(p.transactionAssigned),
		CampaignWasBoughtByCustomerType:      handle(p.campaignBought),
	}
}

func (p *CustomerDetailsProjector) registered(ctx context.Context, e CustomerWasRegistered) error {
	c := newCustomerDetails(e.CustomerID, e.Data, e.UpdatedAt)
	existing, err := p.customers.FindCustomer(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	if existing != nil {
		c.TransactionsCount = existing.TransactionsCount
		c.TransactionsAmount = existing.TransactionsAmount
		c.CampaignPurchasesCount = existing.CampaignPurchasesCount
	}
	return p.customers.UpsertCustomer(ctx, c)
}

func (p *CustomerDetailsProjector) detailsUpdated(ctx context.Context, e CustomerDetailsWereUpdated) error {
	c, err := p.load(ctx, e.CustomerID, e.EventType())
	if err != nil {
		return err
	}
	c.apply(e.Changes)
	c.UpdatedAt = e.UpdatedAt
	return p.customers.UpsertCustomer(ctx, *c)
}

// transactionAssigned adds the transaction gross value to the customer
// totals. Redelivery counts the transaction again.
func (p *CustomerDetailsProjector) transactionAssigned(ctx context.Context, e CustomerWasAssignedToTransaction) error {
	c, err := p.load(ctx, e.CustomerID, e.EventType())
	if err != nil {
		return err
	}
	t, err := p.transactions.FindTransaction(ctx, e.TransactionID)
	if err != nil {
		return err
	}
	if t == nil {
		return &MissingReadModelRowError{Model: transactionDetailsModel, Key: e.TransactionID, Event: e.EventType()}
	}
	c.TransactionsCount++
	c.TransactionsAmount += t.GetGrossValue(ItemFilter{})
	return p.customers.UpsertCustomer(ctx, *c)
}

func (p *CustomerDetailsProjector) campaignBought(ctx context.Context, e CampaignWasBoughtByCustomer) error {
	c, err := p.load(ctx, e.CustomerID, e.EventType())
	if err != nil {
		return err
	}
	c.CampaignPurchasesCount++
	return p.customers.UpsertCustomer(ctx, *c)
}

func (p *CustomerDetailsProjector) load(ctx context.Context, id, event string) (*CustomerDetails, error) {
	c, err := p.customers.FindCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &MissingReadModelRowError{Model: customerDetailsModel, Key: id, Event: event}
	}
	return c, nil
}
