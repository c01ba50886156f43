package collector

import (
	"context"
	"io"

	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type MockCandleSource struct {
	mock.Mock
}

func (m *MockCandleSource) GetCandles(ctx context.Context, pair string, granularity int64) ([]coinbase.Candle, error) {
	args := m.Called(ctx, pair, granularity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coinbase.Candle), args.Error(1)
}

type MockTradeSource struct {
	mock.Mock
}

func (m *MockTradeSource) GetTrades(ctx context.Context, pair string) ([]coinbase.Trade, error) {
	args := m.Called(ctx, pair)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coinbase.Trade), args.Error(1)
}

type MockCandleStore struct {
	mock.Mock
}

func (m *MockCandleStore) LastCandleTime(ctx context.Context, key model.SeriesKey) (int64, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockCandleStore) SaveCandles(ctx context.Context, key model.SeriesKey, candles []model.Candle, cp model.Checkpoint) (model.SaveResult, error) {
	args := m.Called(ctx, key, candles, cp)
	return args.Get(0).(model.SaveResult), args.Error(1)
}

type MockTradeStore struct {
	mock.Mock
}

func (m *MockTradeStore) SaveNewTrades(ctx context.Context, key model.SeriesKey, trades []model.Trade, cp model.Checkpoint) (model.SaveResult, error) {
	args := m.Called(ctx, key, trades, cp)
	return args.Get(0).(model.SaveResult), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
