package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianaseka61-max/sautipesa-bridge/pkg/config"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/db"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/handler"
	bridgehttp "github.com/brianaseka61-max/sautipesa-bridge/pkg/http"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/hub"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/logging"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/mpesa"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/stats"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.NewLogger("BRIDGE", cfg.LogLevel)

	store, err := db.NewStore(cfg.DatabaseURL)
	if err != nil {
		log.FatalF("database connection failed: %s", err)
	}
	defer store.Close()

	schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.EnsureSchema(schemaCtx); err != nil {
		cancel()
		log.FatalF("schema setup failed: %s", err)
	}
	cancel()
	log.Info("Database is connected")

	// Redis is optional; without it polling is served from postgres alone.
	var cache handler.RecentCache
	if cfg.RedisConn != "" {
		recentCache, err := db.NewRecentCache(cfg.RedisConn, cfg.RecentWindow)
		if err != nil {
			log.FatalF("redis connection failed: %s", err)
		}
		defer recentCache.Close()
		cache = recentCache
		log.Info("Recent-payment cache is connected")
	}

	sessionHub := hub.NewHub()
	gateway := mpesa.NewClient(cfg.DarajaBaseURL, cfg.CallbackBaseURL, cfg.GatewayTimeout)
	counters := stats.New()

	bridgeHandler := handler.NewBridgeHandler(store, store, cache, gateway, sessionHub, counters, log, cfg.RecentWindow)

	router := bridgehttp.NewRouter(bridgeHandler, sessionHub, log)
	router.RegisterRoutes()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info("Shutting down gracefully...")
		_ = router.App.Shutdown()
	}()

	log.InfoF("SautiPesa Bridge live on port %s", cfg.HTTPPort)
	if err := router.App.Listen(":" + cfg.HTTPPort); err != nil {
		log.FatalF("Failed to start server: %s", err)
	}
}
