package domain

import "context"

// Find methods return a nil row and a nil error when the key is absent.
// Upserts are atomic per key; nothing spans more than one row.

type TransactionRepository interface {
	FindTransaction(ctx context.Context, id string) (*TransactionDetails, error)
	UpsertTransaction(ctx context.Context, t TransactionDetails) error
	FindAllTransactions(ctx context.Context) ([]TransactionDetails, error)
}

type CampaignBoughtRepository interface {
	FindCampaignBought(ctx context.Context, id string) (*CampaignBought, error)
	UpsertCampaignBought(ctx context.Context, c CampaignBought) error
	FindAllCampaignBought(ctx context.Context) ([]CampaignBought, error)
	// FindCampaignBoughtByCustomerAndUsed scans the customer's purchases; an
	// unset usage flag counts as unused.
	FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]CampaignBought, error)
}

type CustomerRepository interface {
	FindCustomer(ctx context.Context, id string) (*CustomerDetails, error)
	UpsertCustomer(ctx context.Context, c CustomerDetails) error
	FindAllCustomers(ctx context.Context) ([]CustomerDetails, error)
}

type AccountRepository interface {
	FindAccount(ctx context.Context, customerID string) (*AccountDetails, error)
	UpsertAccount(ctx context.Context, a AccountDetails) error
}

// CampaignCatalog resolves campaign definitions by id.
type CampaignCatalog interface {
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
}

// ReadModelStore is everything the projectors write to.
type ReadModelStore interface {
	TransactionRepository
	CampaignBoughtRepository
	CustomerRepository
	AccountRepository
	CampaignCatalog
}
