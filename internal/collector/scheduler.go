package collector

import (
	"context"
	"errors"
	"time"

	"github.com/paaavkata/coinbase-mirror/internal/lock"
	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrLocked is returned by RunOnce when another writer holds a series.
var ErrLocked = errors.New("series is locked by another writer")

type ScheduleConfig struct {
	Exchange    string
	Pair        string
	Granularity int64
	CandleSpec  string
	TradeSpec   string
}

// Scheduler is the driver: it runs both engines on cron schedules and keeps
// a single writer per series through the locker.
type Scheduler struct {
	candles *CandleSync
	trades  *TradeSync
	locker  lock.Locker
	metrics *Metrics
	cron    *cron.Cron
	config  ScheduleConfig
	logger  *logrus.Logger
}

func NewScheduler(candles *CandleSync, trades *TradeSync, locker lock.Locker, metrics *Metrics, config ScheduleConfig, logger *logrus.Logger) *Scheduler {
	cronScheduler := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	)

	return &Scheduler{
		candles: candles,
		trades:  trades,
		locker:  locker,
		metrics: metrics,
		cron:    cronScheduler,
		config:  config,
		logger:  logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"pair":        s.config.Pair,
		"granularity": s.config.Granularity,
		"candle_cron": s.config.CandleSpec,
		"trade_cron":  s.config.TradeSpec,
	}).Info("Starting sync scheduler")

	_, err := s.cron.AddFunc(s.config.CandleSpec, func() {
		s.syncCandles(ctx)
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.config.TradeSpec, func() {
		s.syncTrades(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()

	// Run initial sync
	go func() {
		s.syncCandles(ctx)
		s.syncTrades(ctx)
	}()

	s.logger.Info("Sync scheduler started successfully")
	return nil
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping sync scheduler")
	<-s.cron.Stop().Done()
}

// RunOnce performs one candle and one trade sync and returns the first error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, candleErr := s.syncCandles(ctx)
	_, tradeErr := s.syncTrades(ctx)
	return errors.Join(candleErr, tradeErr)
}

func (s *Scheduler) syncCandles(ctx context.Context) (model.SyncResult, error) {
	key := model.CandleSeries(s.config.Exchange, s.config.Pair, s.config.Granularity)
	return s.run(ctx, key, func() (model.SyncResult, error) {
		return s.candles.Sync(ctx, s.config.Pair, s.config.Granularity)
	})
}

func (s *Scheduler) syncTrades(ctx context.Context) (model.SyncResult, error) {
	key := model.TradeSeries(s.config.Exchange, s.config.Pair)
	return s.run(ctx, key, func() (model.SyncResult, error) {
		return s.trades.Sync(ctx, s.config.Pair)
	})
}

func (s *Scheduler) run(ctx context.Context, key model.SeriesKey, sync func() (model.SyncResult, error)) (model.SyncResult, error) {
	logger := s.logger.WithField("series", key.String())

	release, ok, err := s.locker.TryLock(ctx, key.String())
	if err != nil {
		logger.WithError(err).Error("Failed to acquire series lock")
		return model.NoChange(), err
	}
	if !ok {
		logger.Warn("Series is being synced by another writer, skipping")
		return model.NoChange(), ErrLocked
	}
	defer release()

	start := time.Now()
	res, err := sync()
	took := time.Since(start)
	s.metrics.Observe(key.Kind, res, err, took)

	if err != nil {
		logger.WithError(err).Error("Sync cycle failed")
		return res, err
	}

	logger.WithFields(logrus.Fields{
		"duration_ms": took.Milliseconds(),
		"result":      res.String(),
	}).Info("Sync cycle completed successfully")
	return res, nil
}
