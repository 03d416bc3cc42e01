// Package report assembles the final result of a backtest and renders or
// persists it.
package report

import (
	"math"

	"github.com/google/uuid"
	"github.com/guyghost/backtester/internal/backtesting"
	"github.com/guyghost/backtester/internal/ledger"
	"github.com/guyghost/backtester/internal/statistics"
	"github.com/shopspring/decimal"
)

// OpenTradeSummary describes a trade still open at the end of the run.
type OpenTradeSummary struct {
	Pair        string
	OpenedAt    int64
	OpenPrice   decimal.Decimal
	Capital     decimal.Decimal
	ProfitRatio float64
}

// Result is the assembled outcome of a run. It holds copies of everything it
// exposes and is not modified after New returns.
type Result struct {
	RunID string

	Main       statistics.MainResults
	Coins      []statistics.CoinInsights
	OpenTrades []OpenTradeSummary
	Trades     []ledger.Trade

	CapitalSeries  []backtesting.Point
	RealisedSeries []backtesting.Point

	Charts Charts
}

// New computes the statistics of out and assembles the result.
func New(out *backtesting.Outcome) *Result {
	main, coins := statistics.Compute(out)

	r := &Result{
		RunID:          uuid.NewString(),
		Main:           *main,
		Coins:          coins,
		Trades:         out.Ledger.Trades(),
		CapitalSeries:  append([]backtesting.Point(nil), out.CapitalSeries...),
		RealisedSeries: append([]backtesting.Point(nil), out.RealisedSeries...),
		Charts:         buildCharts(out),
	}
	for _, t := range out.Ledger.OpenTrades() {
		r.OpenTrades = append(r.OpenTrades, OpenTradeSummary{
			Pair:        t.Pair,
			OpenedAt:    t.OpenedAt,
			OpenPrice:   t.OpenPrice,
			Capital:     t.Capital,
			ProfitRatio: t.ProfitRatio,
		})
	}
	return r
}

// LossFunc maps a result to a value to be minimised by a hyperparameter
// search.
type LossFunc func(*Result) float64

// Loss evaluates fn on the result.
func (r *Result) Loss(fn LossFunc) float64 {
	return fn(r)
}

// ProfitLoss rewards overall profit.
func ProfitLoss(r *Result) float64 {
	return -r.Main.OverallProfitRatio
}

// SharpeLoss rewards the 90 day Sharpe ratio. Runs without a defined ratio
// get +Inf so that any defined result is preferred.
func SharpeLoss(r *Result) float64 {
	if r.Main.Sharpe90d == nil {
		return math.Inf(1)
	}
	return -*r.Main.Sharpe90d
}

// DrawdownAdjustedLoss rewards profit and penalises the deepest seen
// drawdown.
func DrawdownAdjustedLoss(r *Result) float64 {
	return -r.Main.OverallProfitRatio - r.Main.MaxSeenDrawdown.Ratio
}
