package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, o *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, o *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	NewListEntitiesPager(o *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

type eventQueue interface {
	DequeueMessage(ctx context.Context, o *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
}

type outboundQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Tables names the read-model tables.
type Tables struct {
	Transactions   string
	CampaignBought string
	Customers      string
	Accounts       string
	Campaigns      string
}

// Names lists the configured table names.
func (t Tables) Names() []string {
	return []string{t.Transactions, t.CampaignBought, t.Customers, t.Accounts, t.Campaigns}
}

// Storage implements the read-model repositories on Azure Table Storage and
// reads domain events from an Azure queue.
type Storage struct {
	events        eventQueue
	notifications outboundQueue
	transactions  tableClient
	bought        tableClient
	customers     tableClient
	accounts      tableClient
	campaigns     tableClient
	now           func() time.Time
}

func tablesClientOptions() *aztables.ClientOptions {
	return &aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
}

func queueClientOptions() *azqueue.ClientOptions {
	return &azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
}

// New creates a Storage from connection parameters. notificationsQueue may be
// empty, in which case EnqueueEmail fails.
func New(connStr, eventsQueue, notificationsQueue string, tables Tables) (*Storage, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, tablesClientOptions())
	if err != nil {
		return nil, err
	}
	events, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, queueClientOptions())
	if err != nil {
		return nil, err
	}
	s := &Storage{
		events:       events,
		transactions: svc.NewClient(tables.Transactions),
		bought:       svc.NewClient(tables.CampaignBought),
		customers:    svc.NewClient(tables.Customers),
		accounts:     svc.NewClient(tables.Accounts),
		campaigns:    svc.NewClient(tables.Campaigns),
		now:          time.Now,
	}
	if notificationsQueue != "" {
		nq, err := azqueue.NewQueueClientFromConnectionString(connStr, notificationsQueue, queueClientOptions())
		if err != nil {
			return nil, err
		}
		s.notifications = nq
	}
	return s, nil
}

// Dequeue retrieves a single message from the events queue.
func (s *Storage) Dequeue(ctx context.Context) (*azqueue.DequeuedMessage, error) {
	resp, err := s.events.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return resp.Messages[0], nil
}

// Delete removes a processed message from the queue.
func (s *Storage) Delete(ctx context.Context, id, receipt string) error {
	_, err := s.events.DeleteMessage(ctx, id, receipt, nil)
	return err
}

// EnqueueEmail sends a composed email message to the notifications queue.
func (s *Storage) EnqueueEmail(ctx context.Context, payload []byte) error {
	if s.notifications == nil {
		return errors.New("notifications queue not configured")
	}
	_, err := s.notifications.EnqueueMessage(ctx, string(payload), nil)
	return err
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

func (s *Storage) getRow(ctx context.Context, table tableClient, pk, rk string) (map[string]any, error) {
	ent, err := table.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var row RowEntity
	if err := json.Unmarshal(ent.Value, &row); err != nil {
		return nil, err
	}
	return decodePayload(row.Payload)
}

func decodePayload(payload string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Storage) upsertRow(ctx context.Context, table tableClient, row RowEntity, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	row.Payload = string(payload)
	row.UpdatedAt = s.now().Unix()
	row.UpdatedAtType = EdmInt64
	if row.Used != nil {
		row.UsedType = EdmBoolean
	}
	ent, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = table.UpsertEntity(ctx, ent, nil)
	return err
}

func listRows(ctx context.Context, table tableClient, filter string) ([]RowEntity, error) {
	opts := &aztables.ListEntitiesOptions{}
	if filter != "" {
		opts.Filter = &filter
	}
	pager := table.NewListEntitiesPager(opts)
	rows := []RowEntity{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var row RowEntity
			if err := json.Unmarshal(e, &row); err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func decodeRows[T any](rows []RowEntity, fn func(map[string]any) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		data, err := decodePayload(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: %w", row.PartitionKey, row.RowKey, err)
		}
		v, err := fn(data)
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: %w", row.PartitionKey, row.RowKey, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeOne[T any](data map[string]any, err error, fn func(map[string]any) (T, error)) (*T, error) {
	if err != nil || data == nil {
		return nil, err
	}
	v, err := fn(data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func partitionFilter(pk string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(pk, "'", "''") + "'"
}

// FindTransaction returns the transaction row, or nil if absent.
func (s *Storage) FindTransaction(ctx context.Context, id string) (*domain.TransactionDetails, error) {
	data, err := s.getRow(ctx, s.transactions, id, id)
	return decodeOne(data, err, domain.DeserializeTransactionDetails)
}

func (s *Storage) UpsertTransaction(ctx context.Context, t domain.TransactionDetails) error {
	row := RowEntity{Entity: Entity{PartitionKey: t.ID(), RowKey: t.ID()}, CustomerID: t.CustomerID}
	return s.upsertRow(ctx, s.transactions, row, t.Serialize())
}

func (s *Storage) FindAllTransactions(ctx context.Context) ([]domain.TransactionDetails, error) {
	rows, err := listRows(ctx, s.transactions, "")
	if err != nil {
		return nil, err
	}
	return decodeRows(rows, domain.DeserializeTransactionDetails)
}

// boughtPartition recovers the customer id from a CampaignBought key.
func boughtPartition(id string) string {
	parts := strings.SplitN(id, "_", 3)
	if len(parts) < 2 {
		return id
	}
	return parts[1]
}

// FindCampaignBought looks a purchase up by its CampaignBoughtID.
func (s *Storage) FindCampaignBought(ctx context.Context, id string) (*domain.CampaignBought, error) {
	data, err := s.getRow(ctx, s.bought, boughtPartition(id), id)
	return decodeOne(data, err, domain.DeserializeCampaignBought)
}

func (s *Storage) UpsertCampaignBought(ctx context.Context, c domain.CampaignBought) error {
	row := RowEntity{
		Entity:     Entity{PartitionKey: c.CustomerID, RowKey: c.ID()},
		CustomerID: c.CustomerID,
		Used:       c.Used,
	}
	return s.upsertRow(ctx, s.bought, row, c.Serialize())
}

func (s *Storage) FindAllCampaignBought(ctx context.Context) ([]domain.CampaignBought, error) {
	rows, err := listRows(ctx, s.bought, "")
	if err != nil {
		return nil, err
	}
	return decodeRows(rows, domain.DeserializeCampaignBought)
}

// FindCampaignBoughtByCustomerAndUsed scans the customer's partition. Rows
// without a usage flag count as unused.
func (s *Storage) FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error) {
	rows, err := listRows(ctx, s.bought, partitionFilter(customerID))
	if err != nil {
		return nil, err
	}
	all, err := decodeRows(rows, domain.DeserializeCampaignBought)
	if err != nil {
		return nil, err
	}
	out := []domain.CampaignBought{}
	for _, c := range all {
		if c.IsUsed() == used {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Storage) FindCustomer(ctx context.Context, id string) (*domain.CustomerDetails, error) {
	data, err := s.getRow(ctx, s.customers, id, id)
	return decodeOne(data, err, domain.DeserializeCustomerDetails)
}

func (s *Storage) UpsertCustomer(ctx context.Context, c domain.CustomerDetails) error {
	row := RowEntity{Entity: Entity{PartitionKey: c.ID(), RowKey: c.ID()}, CustomerID: c.CustomerID}
	return s.upsertRow(ctx, s.customers, row, c.Serialize())
}

func (s *Storage) FindAllCustomers(ctx context.Context) ([]domain.CustomerDetails, error) {
	rows, err := listRows(ctx, s.customers, "")
	if err != nil {
		return nil, err
	}
	return decodeRows(rows, domain.DeserializeCustomerDetails)
}

func (s *Storage) FindAccount(ctx context.Context, customerID string) (*domain.AccountDetails, error) {
	data, err := s.getRow(ctx, s.accounts, customerID, customerID)
	return decodeOne(data, err, domain.DeserializeAccountDetails)
}

func (s *Storage) UpsertAccount(ctx context.Context, a domain.AccountDetails) error {
	row := RowEntity{Entity: Entity{PartitionKey: a.ID(), RowKey: a.ID()}, CustomerID: a.CustomerID}
	return s.upsertRow(ctx, s.accounts, row, a.Serialize())
}

// GetCampaign reads a campaign catalog entry, or nil if absent.
func (s *Storage) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	ent, err := s.campaigns.GetEntity(ctx, id, id, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var row CampaignEntity
	if err := json.Unmarshal(ent.Value, &row); err != nil {
		return nil, err
	}
	var c domain.Campaign
	if err := json.Unmarshal([]byte(row.Payload), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCampaign writes a campaign catalog entry.
func (s *Storage) UpsertCampaign(ctx context.Context, c domain.Campaign) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ent, err := json.Marshal(CampaignEntity{Entity: Entity{PartitionKey: c.ID, RowKey: c.ID}, Payload: string(payload)})
	if err != nil {
		return err
	}
	_, err = s.campaigns.UpsertEntity(ctx, ent, nil)
	return err
}

var _ domain.ReadModelStore = (*Storage)(nil)
