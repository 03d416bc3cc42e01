// Package statistics derives portfolio and per-pair metrics from a finished
// backtest.
package statistics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Drawdown is the deepest drop of a capital series. To is zero while the
// series has not recovered.
type Drawdown struct {
	Ratio float64
	From  int64 // running peak at the bottom
	At    int64 // bottom
	To    int64 // first recovery to the peak
}

// Span is the longest stretch, in timeframe units, between a peak and its
// recovery.
type Span struct {
	Length    int
	From      int64
	To        int64 // zero while ongoing
	IsOngoing bool
	// Unresolved is set when the series ends below its running peak, even
	// if a longer recovered span was picked.
	Unresolved bool
}

// Buckets counts calendar periods by absolute result and by result relative
// to the market.
type Buckets struct {
	ProfWin  int `json:"prof_win"`
	ProfDraw int `json:"prof_draw"`
	ProfLoss int `json:"prof_loss"`
	PerfWin  int `json:"perf_win"`
	PerfDraw int `json:"perf_draw"`
	PerfLoss int `json:"perf_loss"`
}

// Total returns the number of periods counted.
func (b Buckets) Total() int {
	return b.ProfWin + b.ProfDraw + b.ProfLoss
}

// TradeRef points at a notable trade.
type TradeRef struct {
	Pair        string
	OpenedAt    int64
	ProfitRatio float64
}

// MainResults holds the portfolio level metrics of a run.
type MainResults struct {
	StrategyName   string
	CurrencySymbol string
	Timeframe      string
	From           int64 // first simulated tick
	To             int64 // last simulated tick
	DurationDays   float64
	NTicks         int
	NPairs         int

	StartingCapital    decimal.Decimal
	EndCapital         decimal.Decimal
	FreeBudget         decimal.Decimal
	OverallProfitRatio float64
	TotalFees          decimal.Decimal

	MaxRealisedDrawdown     float64
	MaxSeenDrawdown         Drawdown
	LongestRealisedDrawdown Span
	LongestSeenDrawdown     Span

	NTrades            int
	NLeftOpenTrades    int
	NTradesWithLoss    int
	NConsecutiveLosses int
	WinRate            float64
	BestTrade          *TradeRef
	WorstTrade         *TradeRef

	AvgTradeDuration      time.Duration
	LongestTradeDuration  time.Duration
	ShortestTradeDuration time.Duration

	RiskRewardRatio float64
	VolumeTurnover  float64

	// Nil when the deviation over the window is zero or undefined.
	Sharpe90d  *float64
	Sharpe3y   *float64
	Sortino90d *float64
	Sortino3y  *float64

	Weeks  Buckets
	Months Buckets

	AvgMarketChange float64
	BTCMarketChange *float64
	BTCDrawdown     *float64

	NRejections   int
	Rejections    map[string]int
	NConflicts    int
	NDataWarnings int
}

// CoinInsights holds the metrics of a single pair.
type CoinInsights struct {
	Pair string

	CumProfitRatio   float64 // product of closed trade ratios
	TotalProfitRatio float64 // CumProfitRatio - 1
	AvgProfitRatio   float64 // mean of (ratio - 1)
	ProfitCurrency   decimal.Decimal

	NTrades     int
	NWins       int
	NLosses     int
	NOpenTrades int

	MarketChange   float64
	MarketDrawdown float64

	MaxSeenDrawdown     float64
	MaxRealisedDrawdown float64

	AvgDuration      time.Duration
	LongestDuration  time.Duration
	ShortestDuration time.Duration

	Weeks  Buckets
	Months Buckets

	NROI            int
	NStoploss       int
	NSellSignal     int
	NStoplossAndROI int
}
