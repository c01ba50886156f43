package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/paaavkata/coinbase-mirror/internal/lock"
	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	candleSource *MockCandleSource
	candleStore  *MockCandleStore
	tradeSource  *MockTradeSource
	tradeStore   *MockTradeStore
	locker       *lock.MemoryLocker
	metrics      *Metrics
	scheduler    *Scheduler
}

func newSchedulerFixture() *schedulerFixture {
	f := &schedulerFixture{
		candleSource: new(MockCandleSource),
		candleStore:  new(MockCandleStore),
		tradeSource:  new(MockTradeSource),
		tradeStore:   new(MockTradeStore),
		locker:       lock.NewMemoryLocker(),
		metrics:      NewMetrics(prometheus.NewRegistry()),
	}

	f.scheduler = NewScheduler(
		newCandleSync(f.candleSource, f.candleStore),
		newTradeSync(f.tradeSource, f.tradeStore),
		f.locker,
		f.metrics,
		ScheduleConfig{
			Exchange:    "coinbase",
			Pair:        "BTC-USD",
			Granularity: 300,
			CandleSpec:  "0 */5 * * * *",
			TradeSpec:   "*/30 * * * * *",
		},
		quietLogger(),
	)
	return f
}

func TestScheduler_RunOnceSyncsBothSeries(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()

	f.candleSource.On("GetCandles", ctx, "BTC-USD", int64(300)).Return(btcCandles(), nil)
	f.candleStore.On("LastCandleTime", ctx, mock.Anything).Return(int64(0), false, nil)
	f.candleStore.On("SaveCandles", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SaveResult{Inserted: 2, LastRowID: 2, CheckpointID: 1}, nil)
	f.tradeSource.On("GetTrades", ctx, "BTC-USD").Return([]coinbase.Trade{btcTrade()}, nil)
	f.tradeStore.On("SaveNewTrades", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SaveResult{}, nil)

	require.NoError(t, f.scheduler.RunOnce(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("candles", "inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("trades", "no_change")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.rows.WithLabelValues("candles")))
	f.candleStore.AssertExpectations(t)
	f.tradeStore.AssertExpectations(t)
}

func TestScheduler_RunOnceJoinsErrors(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()

	f.candleSource.On("GetCandles", ctx, "BTC-USD", int64(300)).Return(nil, errors.New("boom"))
	f.tradeSource.On("GetTrades", ctx, "BTC-USD").Return([]coinbase.Trade{btcTrade()}, nil)
	f.tradeStore.On("SaveNewTrades", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SaveResult{}, database.ErrStore)

	err := f.scheduler.RunOnce(ctx)

	assert.ErrorIs(t, err, coinbase.ErrFetch)
	assert.ErrorIs(t, err, database.ErrStore)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("candles", "fetch_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("trades", "store_error")))
}

func TestScheduler_SkipsLockedSeries(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()

	key := model.CandleSeries("coinbase", "BTC-USD", 300)
	release, ok, err := f.locker.TryLock(ctx, key.String())
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	res, err := f.scheduler.syncCandles(ctx)

	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, res.Changed())
	f.candleSource.AssertNotCalled(t, "GetCandles", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_ReleasesLockAfterRun(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()

	f.tradeSource.On("GetTrades", ctx, "BTC-USD").Return([]coinbase.Trade{btcTrade()}, nil)
	f.tradeStore.On("SaveNewTrades", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SaveResult{Inserted: 1, LastRowID: 1, CheckpointID: 1}, nil)

	_, err := f.scheduler.syncTrades(ctx)
	require.NoError(t, err)

	release, ok, err := f.locker.TryLock(ctx, model.TradeSeries("coinbase", "BTC-USD").String())
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestScheduler_StartRejectsBadCronExpression(t *testing.T) {
	f := newSchedulerFixture()
	f.scheduler.config.CandleSpec = "not a cron spec"

	err := f.scheduler.Start(context.Background())

	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe(model.KindCandles, model.Inserted(1), nil, 0)
	})
}
