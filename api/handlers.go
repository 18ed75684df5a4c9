package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

// Store is the read side the query API serves from.
type Store interface {
	FindTransaction(ctx context.Context, id string) (*domain.TransactionDetails, error)
	FindCustomer(ctx context.Context, id string) (*domain.CustomerDetails, error)
	FindCampaignBoughtByCustomerAndUsed(ctx context.Context, customerID string, used bool) ([]domain.CampaignBought, error)
	FindAllCampaignBought(ctx context.Context) ([]domain.CampaignBought, error)
}

// Register wires up all API routes on the provided Echo instance. The
// customer stream is only served when broker is set.
func Register(e *echo.Echo, store Store, broker *UpdateBroker, logger *log.Logger) {
	e.GET("/api/transactions/:id", observed(logger, "/api/transactions/:id", getTransaction(store)))
	e.GET("/api/transactions/:id/value", observed(logger, "/api/transactions/:id/value", getTransactionValue(store)))
	e.GET("/api/customers/:id", observed(logger, "/api/customers/:id", getCustomer(store)))
	e.GET("/api/customers/:id/campaigns", observed(logger, "/api/customers/:id/campaigns", getCustomerCampaigns(store)))
	e.GET("/api/campaigns/bought", observed(logger, "/api/campaigns/bought", getBoughtCampaigns(store)))
	e.GET("/healthz", healthz)
	if broker != nil {
		e.GET("/api/customers/:id/stream", streamCustomer(store, broker))
	}
}

type observedHandler func(c echo.Context, m *requestMetrics) error

func observed(logger *log.Logger, route string, h observedHandler) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newRequestMetrics(c.Request().Context(), logger, route)
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()
		return h(c, metrics)
	}
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

type transactionValueResponse struct {
	TransactionID             string           `json:"transactionId"`
	GrossValue                float64          `json:"grossValue"`
	GrossValueWithoutDelivery float64          `json:"grossValueWithoutDelivery"`
	AmountExcludedForLevel    float64          `json:"amountExcludedForLevel"`
	Items                     []map[string]any `json:"items"`
}

type campaignsResponse struct {
	Campaigns []map[string]any `json:"campaigns"`
	Total     int              `json:"total"`
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pathID(c echo.Context, m *requestMetrics) (string, bool, error) {
	id := c.Param("id")
	if !validID(id) {
		m.SetErrorStage("invalid_id")
		return "", false, c.String(http.StatusBadRequest, "invalid id")
	}
	return id, true, nil
}

func storageFailure(c echo.Context, m *requestMetrics, err error) error {
	m.SetErrorStage("storage")
	c.Logger().Error(err)
	return c.String(http.StatusInternalServerError, "storage unavailable")
}

func loadTransaction(c echo.Context, m *requestMetrics, store Store) (*domain.TransactionDetails, error) {
	id, ok, err := pathID(c, m)
	if !ok {
		return nil, err
	}
	start := time.Now()
	tx, err := store.FindTransaction(c.Request().Context(), id)
	m.ObserveFetch(time.Since(start))
	if err != nil {
		return nil, storageFailure(c, m, err)
	}
	if tx == nil {
		m.SetErrorStage("not_found")
		return nil, c.String(http.StatusNotFound, "transaction not found")
	}
	return tx, nil
}

func getTransaction(store Store) observedHandler {
	return func(c echo.Context, m *requestMetrics) error {
		tx, err := loadTransaction(c, m, store)
		if tx == nil {
			return err
		}
		m.SetRowsReturned(1)
		return c.JSON(http.StatusOK, tx.Serialize())
	}
}

// getTransactionValue evaluates the transaction aggregates. Labels are
// passed as key:value pairs and every filter parameter may repeat.
func getTransactionValue(store Store) observedHandler {
	return func(c echo.Context, m *requestMetrics) error {
		excludeDelivery := false
		if v := strings.TrimSpace(c.QueryParam("excludeDelivery")); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				m.SetErrorStage("invalid_exclude_delivery")
				return c.String(http.StatusBadRequest, "invalid excludeDelivery")
			}
			excludeDelivery = b
		}
		tx, err := loadTransaction(c, m, store)
		if tx == nil {
			return err
		}
		q := c.QueryParams()
		filter := domain.NewItemFilter(queryValues(q["excludeSku"]), queryValues(q["excludeLabel"]), queryValues(q["includeLabel"]), excludeDelivery)
		items := tx.GetFilteredItems(filter)
		resp := transactionValueResponse{
			TransactionID:             tx.TransactionID,
			GrossValue:                tx.GetGrossValue(filter),
			GrossValueWithoutDelivery: tx.GetGrossValueWithoutDeliveryCosts(filter.ExcludeSKUs, filter.ExcludeLabels, filter.IncludeLabels),
			AmountExcludedForLevel:    tx.GetAmountExcludedForLevel(),
			Items:                     make([]map[string]any, 0, len(items)),
		}
		for _, item := range items {
			resp.Items = append(resp.Items, item.Serialize())
		}
		m.SetRowsReturned(len(items))
		return c.JSON(http.StatusOK, resp)
	}
}

func queryValues(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getCustomer(store Store) observedHandler {
	return func(c echo.Context, m *requestMetrics) error {
		id, ok, err := pathID(c, m)
		if !ok {
			return err
		}
		start := time.Now()
		customer, err := store.FindCustomer(c.Request().Context(), id)
		m.ObserveFetch(time.Since(start))
		if err != nil {
			return storageFailure(c, m, err)
		}
		if customer == nil {
			m.SetErrorStage("not_found")
			return c.String(http.StatusNotFound, "customer not found")
		}
		m.SetRowsReturned(1)
		return c.JSON(http.StatusOK, customer.Serialize())
	}
}

func getCustomerCampaigns(store Store) observedHandler {
	return func(c echo.Context, m *requestMetrics) error {
		id, ok, err := pathID(c, m)
		if !ok {
			return err
		}
		used := false
		if v := strings.TrimSpace(c.QueryParam("used")); v != "" {
			used, err = strconv.ParseBool(v)
			if err != nil {
				m.SetErrorStage("invalid_used")
				return c.String(http.StatusBadRequest, "invalid used flag")
			}
		}
		start := time.Now()
		rows, err := store.FindCampaignBoughtByCustomerAndUsed(c.Request().Context(), id, used)
		m.ObserveFetch(time.Since(start))
		if err != nil {
			return storageFailure(c, m, err)
		}
		m.SetRowsReturned(len(rows))
		return c.JSON(http.StatusOK, newCampaignsResponse(rows))
	}
}

func getBoughtCampaigns(store Store) observedHandler {
	return func(c echo.Context, m *requestMetrics) error {
		start := time.Now()
		rows, err := store.FindAllCampaignBought(c.Request().Context())
		m.ObserveFetch(time.Since(start))
		if err != nil {
			return storageFailure(c, m, err)
		}
		m.SetRowsReturned(len(rows))
		return c.JSON(http.StatusOK, newCampaignsResponse(rows))
	}
}

func newCampaignsResponse(rows []domain.CampaignBought) campaignsResponse {
	resp := campaignsResponse{Campaigns: make([]map[string]any, 0, len(rows)), Total: len(rows)}
	for _, r := range rows {
		resp.Campaigns = append(resp.Campaigns, r.Serialize())
	}
	return resp
}
