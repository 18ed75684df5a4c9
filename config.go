package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ksuena0213/open-loyalty-framework/domain"
	"github.com/ksuena0213/open-loyalty-framework/notify"
	"github.com/ksuena0213/open-loyalty-framework/storage"
)

const (
	storeTable  = "table"
	storeMemory = "memory"
)

type config struct {
	ConnStr            string
	EventsQueue        string
	NotificationsQueue string
	Tables             storage.Tables
	RedisConn          string
	ReadModelStore     string
	MissingRowPolicy   domain.MissingRowPolicy
	DedupTTL           time.Duration
	CacheTTL           time.Duration
	UpdatesChannel     string
	PollInterval       time.Duration
	ListenAddr         string
	Email              notify.Params
}

func envOr(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

// loadConfig reads the service configuration from the environment.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		ConnStr:            getenv("STORAGE_CONNECTION_STRING"),
		EventsQueue:        getenv("DOMAIN_EVENTS_QUEUE"),
		NotificationsQueue: getenv("NOTIFICATIONS_QUEUE"),
		Tables: storage.Tables{
			Transactions:   envOr(getenv, "TRANSACTIONS_TABLE", "TransactionDetails"),
			CampaignBought: envOr(getenv, "CAMPAIGN_BOUGHT_TABLE", "CampaignBought"),
			Customers:      envOr(getenv, "CUSTOMERS_TABLE", "CustomerDetails"),
			Accounts:       envOr(getenv, "ACCOUNTS_TABLE", "AccountDetails"),
			Campaigns:      envOr(getenv, "CAMPAIGNS_TABLE", "Campaigns"),
		},
		RedisConn:      getenv("REDIS_CONNECTION_STRING"),
		ReadModelStore: envOr(getenv, "READ_MODEL_STORE", storeTable),
		UpdatesChannel: envOr(getenv, "READ_MODEL_UPDATES_CHANNEL", "readmodel-updates"),
		ListenAddr:     ":" + envOr(getenv, "API_PORT", envOr(getenv, "FUNCTIONS_CUSTOMHANDLER_PORT", "8080")),
		Email: notify.Params{
			FromName:           envOr(getenv, "EMAIL_FROM_NAME", "Loyalty Program"),
			FromAddress:        getenv("EMAIL_FROM_ADDRESS"),
			LoyaltyProgramName: envOr(getenv, "LOYALTY_PROGRAM_NAME", "Loyalty Program"),
			EcommerceAddress:   getenv("ECOMMERCE_ADDRESS"),
		},
	}
	if cfg.ConnStr == "" || cfg.EventsQueue == "" {
		return cfg, errors.New("missing storage config")
	}
	if cfg.ReadModelStore != storeTable && cfg.ReadModelStore != storeMemory {
		return cfg, fmt.Errorf("invalid READ_MODEL_STORE: %q", cfg.ReadModelStore)
	}
	if cfg.NotificationsQueue != "" && cfg.Email.FromAddress == "" {
		return cfg, errors.New("missing EMAIL_FROM_ADDRESS for notifications")
	}

	var err error
	if cfg.MissingRowPolicy, err = domain.ParseMissingRowPolicy(strings.ToLower(getenv("MISSING_ROW_POLICY"))); err != nil {
		return cfg, err
	}
	if cfg.DedupTTL, err = envDuration(getenv, "EVENT_DEDUP_TTL", 0); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = envDuration(getenv, "READ_MODEL_CACHE_TTL", time.Hour); err != nil {
		return cfg, err
	}
	if cfg.PollInterval, err = envDuration(getenv, "QUEUE_POLL_INTERVAL", time.Second); err != nil {
		return cfg, err
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	return cfg, nil
}

// parseRedisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if ok, _ := strconv.ParseBool(kv[1]); ok {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
