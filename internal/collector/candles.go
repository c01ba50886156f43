package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/sirupsen/logrus"
)

type CandleStore interface {
	LastCandleTime(ctx context.Context, key model.SeriesKey) (int64, bool, error)
	SaveCandles(ctx context.Context, key model.SeriesKey, candles []model.Candle, cp model.Checkpoint) (model.SaveResult, error)
}

// CandleSync pulls the exchange's recent candle window and stores the
// buckets newer than the local watermark.
//
// Calls for the same (pair, granularity) must not overlap; the watermark
// read and the write are not atomic with respect to each other.
type CandleSync struct {
	exchange string
	source   CandleSource
	store    CandleStore
	logger   *logrus.Logger
	now      func() time.Time
}

func NewCandleSync(exchange string, source CandleSource, store CandleStore, logger *logrus.Logger) *CandleSync {
	return &CandleSync{
		exchange: exchange,
		source:   source,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *CandleSync) Sync(ctx context.Context, pair string, granularity int64) (model.SyncResult, error) {
	key := model.CandleSeries(s.exchange, pair, granularity)

	fetched, err := s.source.GetCandles(ctx, pair, granularity)
	if err != nil {
		return model.NoChange(), fmt.Errorf("failed to fetch candles for %s: %w", key, fetchError(err))
	}
	if len(fetched) == 0 {
		return model.NoChange(), fmt.Errorf("%w: exchange returned no candles for %s", coinbase.ErrFetch, key)
	}

	newest, oldest := candleBounds(fetched)

	watermark, stored, err := s.store.LastCandleTime(ctx, key)
	if err != nil {
		return model.NoChange(), err
	}

	if stored && newest == watermark {
		s.logger.WithFields(logrus.Fields{
			"series":    key.String(),
			"watermark": watermark,
		}).Debug("No new candles")
		return model.NoChange(), nil
	}

	fresh := make([]model.Candle, 0, len(fetched))
	for _, c := range fetched {
		if stored && c.Time <= watermark {
			continue
		}
		fresh = append(fresh, toModelCandle(c))
	}
	if len(fresh) == 0 {
		s.logger.WithFields(logrus.Fields{
			"series":    key.String(),
			"watermark": watermark,
			"newest":    newest,
		}).Warn("Exchange window is older than the stored candles")
		return model.NoChange(), nil
	}

	res, err := s.store.SaveCandles(ctx, key, fresh, model.Checkpoint{
		SyncTime:      s.now(),
		CoverageStart: oldest,
	})
	if err != nil {
		return model.NoChange(), err
	}

	s.logger.WithFields(logrus.Fields{
		"series":         key.String(),
		"fetched_count":  len(fetched),
		"inserted_count": res.Inserted,
		"coverage_start": oldest,
		"last_row_id":    res.LastRowID,
	}).Info("Candle sync completed")

	return model.Inserted(res.Inserted), nil
}
