package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
	"github.com/paaavkata/coinbase-mirror/pkg/utils"

	"github.com/paaavkata/coinbase-mirror/internal/checkpoint"
	"github.com/paaavkata/coinbase-mirror/internal/collector"
	"github.com/paaavkata/coinbase-mirror/internal/config"
	mirrorDB "github.com/paaavkata/coinbase-mirror/internal/database"
	"github.com/paaavkata/coinbase-mirror/internal/health"
	"github.com/paaavkata/coinbase-mirror/internal/lock"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := utils.NewLogger("collector")

	// Load configuration
	cfg := config.Load()
	logger.WithFields(logrus.Fields{
		"exchange":    cfg.Exchange,
		"pair":        cfg.Pair,
		"granularity": cfg.Granularity,
		"candle_cron": cfg.CandleSyncCron,
		"trade_cron":  cfg.TradeSyncCron,
		"redis":       cfg.Redis.Addr != "",
	}).Info("Configuration loaded")

	// Initialize database connection
	db, err := database.NewConnection(cfg.Database.DbUri, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to migrate database schema")
	}

	client, err := coinbase.NewClient(cfg.Coinbase, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Coinbase client")
	}

	// Initialize repositories and engines
	checkpoints := checkpoint.NewStore(db, logger)
	repo := mirrorDB.NewRepository(db, checkpoints, logger)
	candles := collector.NewCandleSync(cfg.Exchange, client, repo, logger)
	trades := collector.NewTradeSync(cfg.Exchange, client, repo, logger)

	var locker lock.Locker = lock.NewMemoryLocker()
	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.WithError(err).Warn("Redis not available, using in-process locks")
			redisClient.Close()
		} else {
			logger.WithField("addr", cfg.Redis.Addr).Info("Redis locks connected")
			locker = lock.NewRedisLocker(redisClient, cfg.LockTTL)
			rdb = redisClient
			defer redisClient.Close()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := collector.NewMetrics(registry)

	scheduler := collector.NewScheduler(candles, trades, locker, metrics, collector.ScheduleConfig{
		Exchange:    cfg.Exchange,
		Pair:        cfg.Pair,
		Granularity: cfg.Granularity,
		CandleSpec:  cfg.CandleSyncCron,
		TradeSpec:   cfg.TradeSyncCron,
	}, logger)

	// Initialize health checker
	healthChecker := health.NewHealthChecker(db, rdb, registry, logger)
	healthServer := healthChecker.StartServer(cfg.MetricsPort)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the scheduler
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	logger.Info("Collector service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down collector service...")

	// Cancel in-flight syncs, then wait for them to return
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shutdown health server gracefully")
	}

	logger.Info("Collector service stopped")
}
