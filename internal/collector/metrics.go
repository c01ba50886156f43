package collector

import (
	"errors"
	"time"

	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	runs     *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coinbase_mirror",
			Name:      "sync_runs_total",
			Help:      "Sync runs by data kind and outcome.",
		}, []string{"kind", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coinbase_mirror",
			Name:      "rows_inserted_total",
			Help:      "Rows inserted by sync runs.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coinbase_mirror",
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(m.runs, m.rows, m.duration)
	return m
}

func (m *Metrics) Observe(kind model.DataKind, res model.SyncResult, err error, took time.Duration) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(string(kind), outcome(res, err)).Inc()
	m.rows.WithLabelValues(string(kind)).Add(float64(res.Inserted))
	m.duration.WithLabelValues(string(kind)).Observe(took.Seconds())
}

func outcome(res model.SyncResult, err error) string {
	switch {
	case errors.Is(err, coinbase.ErrFetch):
		return "fetch_error"
	case errors.Is(err, database.ErrStore):
		return "store_error"
	case err != nil:
		return "error"
	case res.Changed():
		return "inserted"
	default:
		return "no_change"
	}
}
