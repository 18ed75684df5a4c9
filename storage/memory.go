package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

// Memory is an in-process read-model store. Rows are kept in their
// serialized form so reads never alias stored state.
type Memory struct {
	mu           sync.RWMutex
	transactions map[string]map[string]any
	bought       map[string]map[string]any
	customers    map[string]map[string]any
	accounts     map[string]map[string]any
	campaigns    map[string]domain.Campaign
}

func NewMemory() *Memory {
	return &Memory{
		transactions: map[string]map[string]any{},
		bought:       map[string]map[string]any{},
		customers:    map[string]map[string]any{},
		accounts:     map[string]map[string]any{},
		campaigns:    map[string]domain.Campaign{},
	}
}

func (m *Memory) find(table map[string]map[string]any, key string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := table[key]
	return data, ok
}

func (m *Memory) put(table map[string]map[string]any, key string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table[key] = data
}

// all returns the rows ordered by key.
func (m *Memory) all(table map[string]map[string]any) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, table[k])
	}
	return out
}

func findIn[T any](m *Memory, table map[string]map[string]any, key string, fn func(map[string]any) (T, error)) (*T, error) {
	data, ok := m.find(table, key)
	if !ok {
		return nil, nil
	}
	v, err := fn(data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func allIn[T any](m *Memory, table map[string]map[string]any, fn func(map[string]any) (T, error)) ([]T, error) {
	rows := m.all(table)
	out := make([]T, 0, len(rows))
	for _, data := range rows {
		v, err := fn(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory) FindTransaction(ctx context.Context, id string) (*domain.TransactionDetails, error) {
	return findIn(m, m.transactions, id, domain.DeserializeTransactionDetails)
}

func (m *Memory) UpsertTransaction(ctx context.Context, t domain.TransactionDetails) error {
	m.put(m.transactions, t.ID(), t.Serialize())
	return nil
}

func (m *Memory) FindAllTransactions(ctx context.Context) ([]domain.TransactionDetails, error) {
	return allIn(m, m.transactions, domain.DeserializeTransactionDetails)
}

func (m *Memory) FindCampaignBought(ctx context.Context, id string) (*domain.CampaignBought, error) {
	return findIn(m, m.bought, id, domain.DeserializeCampaignBought)
}

func (m *Memory) UpsertCampaignBought(ctx context.Context, c domain.CampaignBought) error {
	m.put(m.bought, c.ID(), c.Serialize())
	return nil
}

func (m *Memory) FindAllCampaignBought(ctx context.Context) ([]domain.CampaignBought, error) {
	return allIn(m, m.bought, domain.DeserializeCampaignBought)
}

func (m *Memory) FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error) {
	all, err := m.FindAllCampaignBought(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.CampaignBought{}
	for _, c := range all {
		if c.CustomerID == customerID && c.IsUsed() == used {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) FindCustomer(ctx context.Context, id string) (*domain.CustomerDetails, error) {
	return findIn(m, m.customers, id, domain.DeserializeCustomerDetails)
}

func (m *Memory) UpsertCustomer(ctx context.Context, c domain.CustomerDetails) error {
	m.put(m.customers, c.ID(), c.Serialize())
	return nil
}

func (m *Memory) FindAllCustomers(ctx context.Context) ([]domain.CustomerDetails, error) {
	return allIn(m, m.customers, domain.DeserializeCustomerDetails)
}

func (m *Memory) FindAccount(ctx context.Context, customerID string) (*domain.AccountDetails, error) {
	return findIn(m, m.accounts, customerID, domain.DeserializeAccountDetails)
}

func (m *Memory) UpsertAccount(ctx context.Context, a domain.AccountDetails) error {
	m.put(m.accounts, a.ID(), a.Serialize())
	return nil
}

func (m *Memory) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) UpsertCampaign(ctx context.Context, c domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	return nil
}

var _ domain.ReadModelStore = (*Memory)(nil)
