package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
	"github.com/ksuena0213/open-loyalty-framework/storage"
)

const (
	txID       = "00000000-0000-0000-0000-000000000001"
	customerID = "00000000-0000-0000-0000-000000000002"
	campaignID = "00000000-0000-0000-0000-000000000003"
)

type failingStore struct{ err error }

func (f failingStore) FindTransaction(context.Context, string) (*domain.TransactionDetails, error) {
	return nil, f.err
}

func (f failingStore) FindCustomer(context.Context, string) (*domain.CustomerDetails, error) {
	return nil, f.err
}

func (f failingStore) FindCampaignBoughtByCustomerAndUsed(context.Context, string, bool) ([]domain.CampaignBought, error) {
	return nil, f.err
}

func (f failingStore) FindAllCampaignBought(context.Context) ([]domain.CampaignBought, error) {
	return nil, f.err
}

func seededStore(t *testing.T) *storage.Memory {
	t.Helper()
	ctx := context.Background()
	m := storage.NewMemory()
	tx := domain.TransactionDetails{
		TransactionID: txID,
		PurchaseDate:  time.Unix(1700000000, 0).UTC(),
		DocumentType:  domain.TransactionTypeSell,
		Items: []domain.Item{
			{SKU: domain.SKU{Code: "A"}, GrossValue: 10, Category: "food", Labels: []domain.Label{{Key: "color", Value: "red"}}},
			{SKU: domain.SKU{Code: "B"}, GrossValue: 20, Category: "toys"},
			{SKU: domain.SKU{Code: "SHIP"}, GrossValue: 5, Category: "delivery"},
		},
		ExcludedDeliverySKUs:    []string{"SHIP"},
		ExcludedLevelSKUs:       []string{"A"},
		ExcludedLevelCategories: []string{"food"},
	}
	if err := m.UpsertTransaction(ctx, tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	if err := m.UpsertCustomer(ctx, domain.CustomerDetails{CustomerID: customerID, FirstName: "Joe"}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	used := true
	for _, row := range []domain.CampaignBought{
		{CampaignID: campaignID, CustomerID: customerID, Coupon: domain.Coupon{Code: "one"}},
		{CampaignID: campaignID, CustomerID: customerID, Coupon: domain.Coupon{Code: "two"}, Used: &used},
	} {
		if err := m.UpsertCampaignBought(ctx, row); err != nil {
			t.Fatalf("seed campaign bought: %v", err)
		}
	}
	return m
}

func doRequest(t *testing.T, store Store, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	Register(e, store, nil, logger)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := sonic.ConfigStd.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestGetTransaction(t *testing.T) {
	rec := doRequest(t, seededStore(t), "/api/transactions/"+txID)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["transactionId"] != txID || body["documentType"] != domain.TransactionTypeSell {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestGetTransactionNotFoundAndInvalidID(t *testing.T) {
	store := seededStore(t)
	if rec := doRequest(t, store, "/api/transactions/00000000-0000-0000-0000-0000000000ff"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := doRequest(t, store, "/api/transactions/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetTransactionValue(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantGross    float64
		wantNoShip   float64
		wantSelected int
	}{
		{name: "all", query: "", wantGross: 35, wantNoShip: 30, wantSelected: 3},
		{name: "exclude sku", query: "?excludeSku=B", wantGross: 15, wantNoShip: 10, wantSelected: 2},
		{name: "exclude delivery", query: "?excludeDelivery=true", wantGross: 30, wantNoShip: 30, wantSelected: 2},
		{name: "include label", query: "?includeLabel=color:red", wantGross: 10, wantNoShip: 10, wantSelected: 1},
		{name: "exclude label wins over include", query: "?excludeLabel=color:red&includeLabel=color:red", wantGross: 25, wantNoShip: 20, wantSelected: 2},
	}
	store := seededStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, store, "/api/transactions/"+txID+"/value"+tt.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
			}
			var body transactionValueResponse
			decodeBody(t, rec, &body)
			if body.GrossValue != tt.wantGross || body.GrossValueWithoutDelivery != tt.wantNoShip || len(body.Items) != tt.wantSelected {
				t.Fatalf("unexpected values: %#v", body)
			}
			// item A matches both the excluded SKU and category lists
			if body.AmountExcludedForLevel != 20 {
				t.Fatalf("unexpected excluded amount: %v", body.AmountExcludedForLevel)
			}
		})
	}
}

func TestGetTransactionValueRejectsBadFlag(t *testing.T) {
	rec := doRequest(t, seededStore(t), "/api/transactions/"+txID+"/value?excludeDelivery=maybe")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetCustomer(t *testing.T) {
	rec := doRequest(t, seededStore(t), "/api/customers/"+customerID)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["firstName"] != "Joe" {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestGetCustomerCampaignsByUsage(t *testing.T) {
	store := seededStore(t)
	for query, want := range map[string]string{"": "one", "?used=false": "one", "?used=true": "two"} {
		rec := doRequest(t, store, "/api/customers/"+customerID+"/campaigns"+query)
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: unexpected status %d", query, rec.Code)
		}
		var body campaignsResponse
		decodeBody(t, rec, &body)
		if body.Total != 1 || body.Campaigns[0]["coupon"] != want {
			t.Fatalf("%q: unexpected body %#v", query, body)
		}
	}
	if rec := doRequest(t, store, "/api/customers/"+customerID+"/campaigns?used=sometimes"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetBoughtCampaigns(t *testing.T) {
	rec := doRequest(t, seededStore(t), "/api/campaigns/bought")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body campaignsResponse
	decodeBody(t, rec, &body)
	if body.Total != 2 || len(body.Campaigns) != 2 {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestStorageErrorsReturn500(t *testing.T) {
	store := failingStore{err: errors.New("table unavailable")}
	for _, target := range []string{
		"/api/transactions/" + txID,
		"/api/transactions/" + txID + "/value",
		"/api/customers/" + customerID,
		"/api/customers/" + customerID + "/campaigns",
		"/api/campaigns/bought",
	} {
		rec := doRequest(t, store, target)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", target, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "table unavailable") {
			t.Fatalf("%s: storage error leaked to client: %q", target, rec.Body.String())
		}
	}
}

func TestHealthz(t *testing.T) {
	if rec := doRequest(t, failingStore{}, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
