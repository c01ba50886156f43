package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DataKind string

const (
	KindCandles DataKind = "candles"
	KindTrades  DataKind = "trades"
)

// NoGranularity is the granularity recorded for trade series.
const NoGranularity int64 = 0

// SeriesKey identifies one synchronized stream of data.
type SeriesKey struct {
	Exchange    string
	Pair        string
	Kind        DataKind
	Granularity int64
}

func CandleSeries(exchange, pair string, granularity int64) SeriesKey {
	return SeriesKey{Exchange: exchange, Pair: pair, Kind: KindCandles, Granularity: granularity}
}

func TradeSeries(exchange, pair string) SeriesKey {
	return SeriesKey{Exchange: exchange, Pair: pair, Kind: KindTrades, Granularity: NoGranularity}
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", k.Exchange, k.Pair, k.Kind, k.Granularity)
}

// Checkpoint is one append-only record of a completed sync run.
type Checkpoint struct {
	ID            int64     `db:"id"`
	Series        SeriesKey `db:"-"`
	SyncTime      time.Time `db:"sync_time"`
	CoverageStart int64     `db:"coverage_start"`
	LastRowID     int64     `db:"last_row_id"`
}

// Candle is a stored bucket. Derived columns are zero at insertion and are
// filled by a separate process.
type Candle struct {
	ID          int64           `db:"id"`
	Time        int64           `db:"time"`
	High        decimal.Decimal `db:"high"`
	Low         decimal.Decimal `db:"low"`
	Open        decimal.Decimal `db:"open"`
	Close       decimal.Decimal `db:"close"`
	Volume      decimal.Decimal `db:"volume"`
	QuoteVolume decimal.Decimal `db:"quote_volume"`
	WeightedAvg decimal.Decimal `db:"weighted_avg"`
	SMA7        decimal.Decimal `db:"sma_7"`
	EMA7        decimal.Decimal `db:"ema_7"`
	SMA30       decimal.Decimal `db:"sma_30"`
	EMA30       decimal.Decimal `db:"ema_30"`
	SMA200      decimal.Decimal `db:"sma_200"`
	EMA200      decimal.Decimal `db:"ema_200"`
}

type Trade struct {
	ID      int64           `db:"id"`
	TradeID string          `db:"trade_id"`
	Size    decimal.Decimal `db:"size"`
	Price   decimal.Decimal `db:"price"`
	Time    int64           `db:"time"`
	Side    string          `db:"side"`
}

// SyncResult reports the outcome of one sync run.
type SyncResult struct {
	Inserted int
}

func NoChange() SyncResult {
	return SyncResult{}
}

func Inserted(n int) SyncResult {
	return SyncResult{Inserted: n}
}

func (r SyncResult) Changed() bool {
	return r.Inserted > 0
}

func (r SyncResult) String() string {
	if !r.Changed() {
		return "no change"
	}
	return fmt.Sprintf("inserted %d", r.Inserted)
}
