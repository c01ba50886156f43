package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/sirupsen/logrus"
)

type TradeStore interface {
	SaveNewTrades(ctx context.Context, key model.SeriesKey, trades []model.Trade, cp model.Checkpoint) (model.SaveResult, error)
}

// TradeSync pulls the exchange's recent trades and stores the ones whose
// ids are not stored yet.
type TradeSync struct {
	exchange string
	source   TradeSource
	store    TradeStore
	logger   *logrus.Logger
	now      func() time.Time
}

func NewTradeSync(exchange string, source TradeSource, store TradeStore, logger *logrus.Logger) *TradeSync {
	return &TradeSync{
		exchange: exchange,
		source:   source,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *TradeSync) Sync(ctx context.Context, pair string) (model.SyncResult, error) {
	key := model.TradeSeries(s.exchange, pair)

	fetched, err := s.source.GetTrades(ctx, pair)
	if err != nil {
		return model.NoChange(), fmt.Errorf("failed to fetch trades for %s: %w", key, fetchError(err))
	}
	if len(fetched) == 0 {
		return model.NoChange(), fmt.Errorf("%w: exchange returned no trades for %s", coinbase.ErrFetch, key)
	}

	trades := make([]model.Trade, 0, len(fetched))
	for _, raw := range fetched {
		t, err := parseTrade(raw)
		if err != nil {
			return model.NoChange(), fmt.Errorf("%w: %v", coinbase.ErrFetch, err)
		}
		trades = append(trades, t)
	}

	oldest := trades[0].Time
	for _, t := range trades[1:] {
		if t.Time < oldest {
			oldest = t.Time
		}
	}

	res, err := s.store.SaveNewTrades(ctx, key, trades, model.Checkpoint{
		SyncTime:      s.now(),
		CoverageStart: oldest,
	})
	if err != nil {
		return model.NoChange(), err
	}

	if res.Inserted == 0 {
		s.logger.WithField("series", key.String()).Debug("No new trades")
		return model.NoChange(), nil
	}

	s.logger.WithFields(logrus.Fields{
		"series":         key.String(),
		"fetched_count":  len(fetched),
		"inserted_count": res.Inserted,
		"coverage_start": oldest,
		"last_row_id":    res.LastRowID,
	}).Info("Trade sync completed")

	return model.Inserted(res.Inserted), nil
}
