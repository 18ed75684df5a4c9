package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/domain"
	"github.com/ksuena0213/open-loyalty-framework/storage"
)

type campaignWriter interface {
	UpsertCampaign(ctx context.Context, c domain.Campaign) error
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	eventsQueue := os.Getenv("DOMAIN_EVENTS_QUEUE")
	notificationsQueue := os.Getenv("NOTIFICATIONS_QUEUE")
	tables := storage.Tables{
		Transactions:   envOr("TRANSACTIONS_TABLE", "TransactionDetails"),
		CampaignBought: envOr("CAMPAIGN_BOUGHT_TABLE", "CampaignBought"),
		Customers:      envOr("CUSTOMERS_TABLE", "CustomerDetails"),
		Accounts:       envOr("ACCOUNTS_TABLE", "AccountDetails"),
		Campaigns:      envOr("CAMPAIGNS_TABLE", "Campaigns"),
	}

	ctx := context.Background()
	if err := storage.Provision(ctx, connStr, tables.Names(), []string{eventsQueue, notificationsQueue}); err != nil {
		log.Fatalf("provision: %v", err)
	}

	if path := os.Getenv("CAMPAIGN_CATALOG_FILE"); path != "" {
		st, err := storage.New(connStr, eventsQueue, notificationsQueue, tables)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open catalog: %v", err)
		}
		defer f.Close()
		campaigns, err := loadCatalog(f)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
		if err := seedCatalog(ctx, st, campaigns); err != nil {
			log.Fatalf("seed catalog: %v", err)
		}
		log.WithField("campaigns", len(campaigns)).Info("campaign catalog seeded")
	}

	log.Info("storage init complete")
}

// loadCatalog reads a JSON array of campaign definitions.
func loadCatalog(r io.Reader) ([]domain.Campaign, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var campaigns []domain.Campaign
	if err := sonic.ConfigStd.Unmarshal(data, &campaigns); err != nil {
		return nil, err
	}
	for i, c := range campaigns {
		if c.ID == "" {
			return nil, fmt.Errorf("campaign %d: missing campaignId", i)
		}
		if c.CostInPoints < 0 {
			return nil, fmt.Errorf("campaign %s: negative costInPoints", c.ID)
		}
	}
	return campaigns, nil
}

func seedCatalog(ctx context.Context, w campaignWriter, campaigns []domain.Campaign) error {
	var errs []error
	for _, c := range campaigns {
		if err := w.UpsertCampaign(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			continue
		}
		log.WithField("campaign", c.ID).Debug("campaign upserted")
	}
	return errors.Join(errs...)
}
