// Package telemetry exposes Prometheus counters for backtest runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "backtester"

// Metrics holds the counters of one or more runs. A nil *Metrics records
// nothing.
type Metrics struct {
	TradesOpened   *prometheus.CounterVec
	TradesClosed   *prometheus.CounterVec
	BuyRejections  *prometheus.CounterVec
	DataWarnings   *prometheus.CounterVec
	ExitConflicts  prometheus.Counter
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	LastEndCapital prometheus.Gauge
}

// NewMetrics registers the run metrics on reg. Use a fresh registry per
// process or test; registering twice on the same one panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TradesOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_opened_total",
			Help:      "Total number of simulated trades opened by pair",
		}, []string{"pair"}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Total number of simulated trades closed by sell reason",
		}, []string{"reason"}),
		BuyRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buy_rejections_total",
			Help:      "Total number of buy signals refused by reason",
		}, []string{"reason"}),
		DataWarnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_warnings_total",
			Help:      "Total number of candle data inconsistencies by kind",
		}, []string{"kind"}),
		ExitConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exit_conflicts_total",
			Help:      "Total number of candles where ROI and stoploss both fired",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of backtest runs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		LastEndCapital: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_end_capital",
			Help:      "End capital of the most recent run in quote currency",
		}),
	}
}

// TradeOpened increments the opened trades counter.
func (m *Metrics) TradeOpened(pair string) {
	if m == nil {
		return
	}
	m.TradesOpened.WithLabelValues(orUnknown(pair)).Inc()
}

// TradeClosed increments the closed trades counter.
func (m *Metrics) TradeClosed(reason string) {
	if m == nil {
		return
	}
	m.TradesClosed.WithLabelValues(orUnknown(reason)).Inc()
}

// BuyRejected increments the buy rejection counter.
func (m *Metrics) BuyRejected(reason string) {
	if m == nil {
		return
	}
	m.BuyRejections.WithLabelValues(orUnknown(reason)).Inc()
}

// DataWarning increments the data inconsistency counter.
func (m *Metrics) DataWarning(kind string) {
	if m == nil {
		return
	}
	m.DataWarnings.WithLabelValues(orUnknown(kind)).Inc()
}

// ExitConflict increments the ROI/stoploss conflict counter.
func (m *Metrics) ExitConflict() {
	if m == nil {
		return
	}
	m.ExitConflicts.Inc()
}

// RunFinished records the outcome of a run.
func (m *Metrics) RunFinished(err error, took time.Duration, endCapital float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(took.Seconds())
	if err == nil {
		m.LastEndCapital.Set(endCapital)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
