// Package checkpoint keeps the append-only log of synchronization runs.
//
// A checkpoint row is written in the same transaction as the data it
// describes, after the data rows. The newest row for a series is
// authoritative; rows are never updated or deleted.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
	"github.com/sirupsen/logrus"
)

type Store struct {
	db     database.Querier
	logger *logrus.Logger
}

func NewStore(db database.Querier, logger *logrus.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Latest returns the most recent checkpoint of the series, or nil if the
// series was never synchronized.
func (s *Store) Latest(ctx context.Context, key model.SeriesKey) (*model.Checkpoint, error) {
	query := `
        SELECT id, sync_time, coverage_start, last_row_id
        FROM checkpoints
        WHERE exchange = $1 AND pair = $2 AND data_kind = $3 AND granularity = $4
        ORDER BY id DESC
        LIMIT 1
    `

	cp := model.Checkpoint{Series: key}
	err := s.db.QueryRowContext(ctx, query, key.Exchange, key.Pair, string(key.Kind), key.Granularity).Scan(
		&cp.ID, &cp.SyncTime, &cp.CoverageStart, &cp.LastRowID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get latest checkpoint for %s: %v", database.ErrStore, key, err)
	}

	return &cp, nil
}

// LastCandleTime returns the newest bucket time stored for a candle series.
// The boolean is false when no candle is stored yet.
func (s *Store) LastCandleTime(ctx context.Context, key model.SeriesKey) (int64, bool, error) {
	query := `
        SELECT MAX(time)
        FROM candles
        WHERE exchange = $1 AND pair = $2 AND granularity = $3
    `

	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, key.Exchange, key.Pair, key.Granularity).Scan(&last); err != nil {
		return 0, false, fmt.Errorf("%w: failed to get last candle time for %s: %v", database.ErrStore, key, err)
	}

	return last.Int64, last.Valid, nil
}

// Record appends a checkpoint through q, which is normally the transaction
// that inserted the data rows.
func (s *Store) Record(ctx context.Context, q database.Querier, cp model.Checkpoint) (int64, error) {
	query := `
        INSERT INTO checkpoints
        (exchange, pair, data_kind, granularity, sync_time, coverage_start, last_row_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `

	var id int64
	err := q.QueryRowContext(ctx, query,
		cp.Series.Exchange, cp.Series.Pair, string(cp.Series.Kind), cp.Series.Granularity,
		cp.SyncTime, cp.CoverageStart, cp.LastRowID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to record checkpoint for %s: %v", database.ErrStore, cp.Series, err)
	}

	s.logger.WithFields(logrus.Fields{
		"checkpoint_id":  id,
		"series":         cp.Series.String(),
		"coverage_start": cp.CoverageStart,
		"last_row_id":    cp.LastRowID,
	}).Debug("Recorded checkpoint")

	return id, nil
}
