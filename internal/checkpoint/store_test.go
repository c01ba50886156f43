package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewStore(db, logger), db, mock
}

var series = model.CandleSeries("coinbase", "BTC-USD", 300)

func TestLatestReturnsNilWhenNeverSynced(t *testing.T) {
	s, _, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM checkpoints")).
		WithArgs("coinbase", "BTC-USD", "candles", int64(300)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sync_time", "coverage_start", "last_row_id"}))

	cp, err := s.Latest(context.Background(), series)
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReturnsNewestRow(t *testing.T) {
	s, _, mock := newStore(t)
	syncTime := time.Unix(1672531300, 0).UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id DESC")).
		WithArgs("coinbase", "BTC-USD", "candles", int64(300)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sync_time", "coverage_start", "last_row_id"}).
			AddRow(int64(9), syncTime, int64(700), int64(42)))

	cp, err := s.Latest(context.Background(), series)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(9), cp.ID)
	assert.Equal(t, int64(700), cp.CoverageStart)
	assert.Equal(t, int64(42), cp.LastRowID)
	assert.Equal(t, series, cp.Series)
}

func TestLatestQueryFailureIsStoreError(t *testing.T) {
	s, _, mock := newStore(t)
	mock.ExpectQuery("FROM checkpoints").WillReturnError(errors.New("connection reset"))

	_, err := s.Latest(context.Background(), series)
	assert.ErrorIs(t, err, database.ErrStore)
}

func TestLastCandleTime(t *testing.T) {
	s, _, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(time)")).
		WithArgs("coinbase", "BTC-USD", int64(300)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(time)")).
		WithArgs("coinbase", "BTC-USD", int64(300)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(1000)))

	_, ok, err := s.LastCandleTime(context.Background(), series)
	require.NoError(t, err)
	assert.False(t, ok)

	last, ok, err := s.LastCandleTime(context.Background(), series)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAppendsThroughGivenQuerier(t *testing.T) {
	s, db, mock := newStore(t)
	syncTime := time.Unix(1672531300, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO checkpoints")).
		WithArgs("coinbase", "BTC-USD", "trades", int64(0), syncTime, int64(1672531200), int64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	id, err := s.Record(context.Background(), tx, model.Checkpoint{
		Series:        model.TradeSeries("coinbase", "BTC-USD"),
		SyncTime:      syncTime,
		CoverageStart: 1672531200,
		LastRowID:     17,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
