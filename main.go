package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ksuena0213/open-loyalty-framework/api"
	"github.com/ksuena0213/open-loyalty-framework/domain"
	"github.com/ksuena0213/open-loyalty-framework/notify"
	"github.com/ksuena0213/open-loyalty-framework/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("Read-model projector starting")

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	st, err := storage.New(cfg.ConnStr, cfg.EventsQueue, cfg.NotificationsQueue, cfg.Tables)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	var readModels domain.ReadModelStore = st
	if cfg.ReadModelStore == storeMemory {
		log.Warn("read models are kept in memory and lost on restart")
		readModels = storage.NewMemory()
	}

	var rc *redis.Client
	if cfg.RedisConn != "" {
		rc = redis.NewClient(parseRedisOptions(cfg.RedisConn))
		defer rc.Close()
	} else {
		log.Warn("no redis configured: cache, update channel and event dedup are off")
	}
	cache := storage.NewCache(readModels, rc, cfg.CacheTTL)

	proc := &processor{
		registry: domain.NewDefaultRegistry(readModels, cfg.MissingRowPolicy),
		cache:    newCacheUpdater(readModels, cache),
		redis:    rc,
		channel:  cfg.UpdatesChannel,
		logger:   log.StandardLogger(),
	}
	if rc != nil && cfg.DedupTTL > 0 {
		proc.dedup = newEventDeduper(rc, cfg.DedupTTL)
	}
	if cfg.NotificationsQueue != "" {
		provider := notify.NewEmailProvider(notify.NewQueueMailer(st), cfg.Email)
		proc.notifier = notify.NewDispatcher(provider, readModels)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	var broker *api.UpdateBroker
	if rc != nil {
		broker = api.NewUpdateBroker()
		go broker.Listen(ctx, rc, cfg.UpdatesChannel)
	}
	api.Register(e, cache, broker, log.StandardLogger())
	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api: %v", err)
		}
	}()

	runWorker(ctx, st, proc, cfg.PollInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("api shutdown")
	}
}
