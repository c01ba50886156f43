package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/shopspring/decimal"
)

// CandleSource is the read-only candle endpoint of the exchange.
type CandleSource interface {
	GetCandles(ctx context.Context, pair string, granularity int64) ([]coinbase.Candle, error)
}

// TradeSource is the read-only recent-trades endpoint of the exchange.
type TradeSource interface {
	GetTrades(ctx context.Context, pair string) ([]coinbase.Trade, error)
}

// fetchError makes sure every failure of a source reads as ErrFetch.
func fetchError(err error) error {
	if errors.Is(err, coinbase.ErrFetch) {
		return err
	}
	return fmt.Errorf("%w: %v", coinbase.ErrFetch, err)
}

// toModelCandle maps an exchange bucket to a stored row with every derived
// column zeroed.
func toModelCandle(c coinbase.Candle) model.Candle {
	return model.Candle{
		Time:        c.Time,
		High:        c.High,
		Low:         c.Low,
		Open:        c.Open,
		Close:       c.Close,
		Volume:      c.Volume,
		QuoteVolume: decimal.Zero,
		WeightedAvg: decimal.Zero,
		SMA7:        decimal.Zero,
		EMA7:        decimal.Zero,
		SMA30:       decimal.Zero,
		EMA30:       decimal.Zero,
		SMA200:      decimal.Zero,
		EMA200:      decimal.Zero,
	}
}

// candleBounds returns the newest and oldest bucket times of a non-empty series.
func candleBounds(candles []coinbase.Candle) (newest, oldest int64) {
	newest, oldest = candles[0].Time, candles[0].Time
	for _, c := range candles[1:] {
		if c.Time > newest {
			newest = c.Time
		}
		if c.Time < oldest {
			oldest = c.Time
		}
	}
	return newest, oldest
}

// parseTrade converts an exchange trade, turning its ISO-8601 execution time
// into epoch seconds.
func parseTrade(t coinbase.Trade) (model.Trade, error) {
	id := strings.TrimSpace(string(t.TradeID))
	if id == "" {
		return model.Trade{}, fmt.Errorf("trade without id")
	}

	executed, err := time.Parse(time.RFC3339, t.Time)
	if err != nil {
		return model.Trade{}, fmt.Errorf("trade %s has invalid time %q: %w", id, t.Time, err)
	}

	side := strings.ToLower(t.Side)
	if side != "buy" && side != "sell" {
		return model.Trade{}, fmt.Errorf("trade %s has invalid side %q", id, t.Side)
	}

	return model.Trade{
		TradeID: id,
		Size:    t.Size,
		Price:   t.Price,
		Time:    executed.Unix(),
		Side:    side,
	}, nil
}
