package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/paaavkata/coinbase-mirror/internal/checkpoint"
	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
	"github.com/sirupsen/logrus"
)

const (
	candleColumns = 17
	tradeColumns  = 7
)

type Repository struct {
	db          *database.DB
	checkpoints *checkpoint.Store
	logger      *logrus.Logger
}

func NewRepository(db *database.DB, checkpoints *checkpoint.Store, logger *logrus.Logger) *Repository {
	return &Repository{
		db:          db,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

func (r *Repository) LastCandleTime(ctx context.Context, key model.SeriesKey) (int64, bool, error) {
	return r.checkpoints.LastCandleTime(ctx, key)
}

func (r *Repository) LatestCheckpoint(ctx context.Context, key model.SeriesKey) (*model.Checkpoint, error) {
	return r.checkpoints.Latest(ctx, key)
}

// SaveCandles inserts candles and appends cp in one transaction. Buckets
// already stored are skipped. No checkpoint is written when nothing was
// inserted.
func (r *Repository) SaveCandles(ctx context.Context, key model.SeriesKey, candles []model.Candle, cp model.Checkpoint) (model.SaveResult, error) {
	var result model.SaveResult
	if len(candles) == 0 {
		return result, nil
	}

	start := time.Now()

	query := `
        INSERT INTO candles (exchange, pair, granularity, time, high, low, open, close, volume,
                             quote_volume, weighted_avg, sma_7, ema_7, sma_30, ema_30, sma_200, ema_200)
        VALUES `

	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*candleColumns)

	for i, c := range candles {
		values = append(values, placeholders(i*candleColumns, candleColumns))
		args = append(args, key.Exchange, key.Pair, key.Granularity, c.Time,
			database.NewDecimal(c.High), database.NewDecimal(c.Low), database.NewDecimal(c.Open),
			database.NewDecimal(c.Close), database.NewDecimal(c.Volume),
			database.NewDecimal(c.QuoteVolume), database.NewDecimal(c.WeightedAvg),
			database.NewDecimal(c.SMA7), database.NewDecimal(c.EMA7),
			database.NewDecimal(c.SMA30), database.NewDecimal(c.EMA30),
			database.NewDecimal(c.SMA200), database.NewDecimal(c.EMA200))
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (exchange, pair, granularity, time) DO NOTHING RETURNING id"

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		ids, err := insertReturningIDs(ctx, tx, query, args)
		if err != nil {
			return fmt.Errorf("%w: failed to insert candles for %s: %v", database.ErrStore, key, err)
		}

		return r.recordCheckpoint(ctx, tx, key, ids, cp, &result)
	})
	if err != nil {
		r.logger.WithError(err).WithField("series", key.String()).Error("Failed to save candles")
		return model.SaveResult{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"series":        key.String(),
		"records_count": result.Inserted,
		"skipped_count": len(candles) - result.Inserted,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Successfully saved candles")

	return result, nil
}

// SaveNewTrades anti-joins trades against the stored trade ids of the
// series, inserts only the unseen ones and appends cp, all in one
// transaction. No checkpoint is written when every trade is known.
func (r *Repository) SaveNewTrades(ctx context.Context, key model.SeriesKey, trades []model.Trade, cp model.Checkpoint) (model.SaveResult, error) {
	var result model.SaveResult
	if len(trades) == 0 {
		return result, nil
	}

	start := time.Now()

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		known, err := r.knownTradeIDs(ctx, tx, key, trades)
		if err != nil {
			return err
		}

		fresh := make([]model.Trade, 0, len(trades))
		for _, t := range trades {
			if _, ok := known[t.TradeID]; ok {
				continue
			}
			// guard against the same id twice in one response
			known[t.TradeID] = struct{}{}
			fresh = append(fresh, t)
		}
		if len(fresh) == 0 {
			return nil
		}

		query := `
        INSERT INTO trades (exchange, pair, trade_id, size, price, time, side)
        VALUES `

		values := make([]string, 0, len(fresh))
		args := make([]interface{}, 0, len(fresh)*tradeColumns)
		for i, t := range fresh {
			values = append(values, placeholders(i*tradeColumns, tradeColumns))
			args = append(args, key.Exchange, key.Pair, t.TradeID,
				database.NewDecimal(t.Size), database.NewDecimal(t.Price), t.Time, t.Side)
		}

		query += strings.Join(values, ", ")
		query += " ON CONFLICT (exchange, pair, trade_id) DO NOTHING RETURNING id"

		ids, err := insertReturningIDs(ctx, tx, query, args)
		if err != nil {
			return fmt.Errorf("%w: failed to insert trades for %s: %v", database.ErrStore, key, err)
		}

		return r.recordCheckpoint(ctx, tx, key, ids, cp, &result)
	})
	if err != nil {
		r.logger.WithError(err).WithField("series", key.String()).Error("Failed to save trades")
		return model.SaveResult{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"series":        key.String(),
		"records_count": result.Inserted,
		"skipped_count": len(trades) - result.Inserted,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Successfully saved trades")

	return result, nil
}

func (r *Repository) knownTradeIDs(ctx context.Context, tx *sql.Tx, key model.SeriesKey, trades []model.Trade) (map[string]struct{}, error) {
	ids := make([]string, len(trades))
	for i, t := range trades {
		ids[i] = t.TradeID
	}

	query := `
        SELECT trade_id
        FROM trades
        WHERE exchange = $1 AND pair = $2 AND trade_id = ANY($3)
    `

	rows, err := tx.QueryContext(ctx, query, key.Exchange, key.Pair, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query known trades for %s: %v", database.ErrStore, key, err)
	}
	defer rows.Close()

	known := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade id: %v", database.ErrStore, err)
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read known trades: %v", database.ErrStore, err)
	}

	return known, nil
}

func (r *Repository) recordCheckpoint(ctx context.Context, tx *sql.Tx, key model.SeriesKey, ids []int64, cp model.Checkpoint, result *model.SaveResult) error {
	if len(ids) == 0 {
		return nil
	}

	cp.Series = key
	cp.LastRowID = ids[len(ids)-1]

	cpID, err := r.checkpoints.Record(ctx, tx, cp)
	if err != nil {
		return err
	}

	result.Inserted = len(ids)
	result.LastRowID = cp.LastRowID
	result.CheckpointID = cpID
	return nil
}

func insertReturningIDs(ctx context.Context, tx *sql.Tx, query string, args []interface{}) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeholders renders "($n+1, ..., $n+count)".
func placeholders(offset, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", offset+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
