package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricelink/src/broadcast"
	"pricelink/src/config"
	"pricelink/src/helpers"
	"pricelink/src/interfaces"
	"pricelink/src/keystore"
	"pricelink/src/logger"
	"pricelink/src/metrics"
	"pricelink/src/network"
	"pricelink/src/poller"
	"pricelink/src/pricecache"
	"pricelink/src/prices"
	"pricelink/src/provider/coingecko"
	"pricelink/src/ratelimit"
	"pricelink/src/server"
	"pricelink/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Storage
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewSQLiteDB(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	// The database may still be coming up alongside us; give it a moment.
	if _, err := helpers.RetryWithBackoff("database initialization", 3, time.Second, func() (interface{}, error) {
		return nil, db.Initialize()
	}); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	if cfg.Storage.SeedDevData {
		if err := db.SeedDev(); err != nil {
			appLogger.Warning("Dev seed failed: %v", err)
		}
	}

	// 2. Core components
	keys := keystore.NewStore(db, logger.NewLogger(cfg.LogLevel, "KeyStore"))
	limiter := ratelimit.NewLimiter(cfg.RateLimit.RetentionMinutes, logger.NewLogger(cfg.LogLevel, "RateLimiter"))
	cache := pricecache.NewCache()

	netMgr := network.NewManager(cfg.MConfig, logger.NewLogger(cfg.LogLevel, "Network"))
	source := coingecko.NewSource(cfg.MConfig, db, netMgr, logger.NewLogger(cfg.LogLevel, "CoinGecko"))

	priceSvc := prices.NewService(
		source,
		cache,
		time.Duration(cfg.Cache.TTLMs)*time.Millisecond,
		logger.NewLogger(cfg.LogLevel, "PriceService"),
	)

	caster := broadcast.NewBroadcaster(keys, cfg.Stream, logger.NewLogger(cfg.LogLevel, "Broadcaster"))
	metrics.Init(caster.ActiveConnections)

	pricePoller := poller.NewPoller(
		caster,
		priceSvc,
		time.Duration(cfg.Poller.DelayMs)*time.Millisecond,
		cfg.Provider.BatchSize,
		cfg.Network.ConcurrentRequests,
		logger.NewLogger(cfg.LogLevel, "PricePoller"),
	)
	keepalive := poller.NewKeepAlive(
		caster,
		time.Duration(cfg.Stream.KeepaliveSeconds)*time.Second,
		logger.NewLogger(cfg.LogLevel, "KeepAlive"),
	)

	srv := server.NewAPIServer(cfg.MConfig, limiter, keys, priceSvc, caster, db, logger.NewLogger(cfg.LogLevel, "APIServer"))

	// 3. Background tasks: poller, keepalive, rate-window sweeper.
	// Each runs on its own period and is isolated from the others.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pricePoller.Run(ctx)
	go keepalive.Run(ctx)
	go limiter.RunSweeper(ctx, time.Duration(cfg.RateLimit.CleanupIntervalSeconds)*time.Second)

	// 4. HTTP server
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 5. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down...")
	case err := <-serverErr:
		appLogger.Error("Server failed: %v", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Warning("Shutdown error: %v", err)
	}
}
