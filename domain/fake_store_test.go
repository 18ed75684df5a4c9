package domain

import (
	"context"
	"errors"
	"sort"
)

type fakeStore struct {
	transactions map[string]TransactionDetails
	bought       map[string]CampaignBought
	customers    map[string]CustomerDetails
	accounts     map[string]AccountDetails
	campaigns    map[string]Campaign

	upserts   int
	findErr   error
	boughtErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transactions: map[string]TransactionDetails{},
		bought:       map[string]CampaignBought{},
		customers:    map[string]CustomerDetails{},
		accounts:     map[string]AccountDetails{},
		campaigns:    map[string]Campaign{},
	}
}

func (f *fakeStore) FindTransaction(ctx context.Context, id string) (*TransactionDetails, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) UpsertTransaction(ctx context.Context, t TransactionDetails) error {
	f.upserts++
	f.transactions[t.ID()] = t
	return nil
}

func (f *fakeStore) FindAllTransactions(ctx context.Context) ([]TransactionDetails, error) {
	var out []TransactionDetails
	for _, t := range f.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (f *fakeStore) FindCampaignBought(ctx context.Context, id string) (*CampaignBought, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.bought[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) UpsertCampaignBought(ctx context.Context, c CampaignBought) error {
	if f.boughtErr != nil {
		return f.boughtErr
	}
	f.upserts++
	f.bought[c.ID()] = c
	return nil
}

func (f *fakeStore) FindAllCampaignBought(ctx context.Context) ([]CampaignBought, error) {
	var out []CampaignBought
	for _, c := range f.bought {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (f *fakeStore) FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]CampaignBought, error) {
	all, _ := f.FindAllCampaignBought(ctx)
	var out []CampaignBought
	for _, c := range all {
		if c.CustomerID == customerID && c.IsUsed() == used {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindCustomer(ctx context.Context, id string) (*CustomerDetails, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) UpsertCustomer(ctx context.Context, c CustomerDetails) error {
	f.upserts++
	f.customers[c.ID()] = c
	return nil
}

func (f *fakeStore) FindAllCustomers(ctx context.Context) ([]CustomerDetails, error) {
	var out []CustomerDetails
	for _, c := range f.customers {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) FindAccount(ctx context.Context, customerID string) (*AccountDetails, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	a, ok := f.accounts[customerID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeStore) UpsertAccount(ctx context.Context, a AccountDetails) error {
	f.upserts++
	f.accounts[a.ID()] = a
	return nil
}

func (f *fakeStore) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.campaigns[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

var errStoreDown = errors.New("store down")

var _ ReadModelStore = (*fakeStore)(nil)
