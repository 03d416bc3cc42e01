package statistics

import (
	"time"

	"github.com/guyghost/backtester/internal/backtesting"
	"github.com/guyghost/backtester/internal/ledger"
	"github.com/guyghost/backtester/internal/logger"
	"github.com/guyghost/backtester/internal/market"
	"github.com/guyghost/backtester/pkg/utils"
	"github.com/shopspring/decimal"
)

const (
	dayMillis     = int64(24 * time.Hour / time.Millisecond)
	shortWindow   = 90
	longWindow    = 3 * 365
	riskFreeRatio = 0.0
)

// Compute derives the portfolio metrics and the per-pair insights of a run.
// It does not modify out and can be called any number of times.
func Compute(out *backtesting.Outcome) (*MainResults, []CoinInsights) {
	cfg := out.Config
	closed := out.Ledger.ClosedTrades()
	open := out.Ledger.OpenTrades()

	r := &MainResults{
		StrategyName:    cfg.StrategyName,
		CurrencySymbol:  cfg.CurrencySymbol,
		Timeframe:       cfg.Timeframe.String(),
		DurationDays:    out.DurationDays(),
		NTicks:          len(out.Ticks),
		NPairs:          len(cfg.Pairs),
		StartingCapital: cfg.StartingCapital,
		EndCapital:      out.EndCapital,
		FreeBudget:      out.FreeBudget,
		NTrades:         len(closed),
		NLeftOpenTrades: len(open),
		BTCMarketChange: cfg.BTCMarketChange,
		BTCDrawdown:     cfg.BTCDrawdown,
		NRejections:     out.TotalRejections(),
		Rejections:      make(map[string]int, len(out.Rejections)),
		NConflicts:      out.Conflicts,
		NDataWarnings:   len(out.DataIssues),
		TotalFees:       decimal.Zero,
	}
	if len(out.Ticks) > 0 {
		r.From = out.Ticks[0]
		r.To = out.Ticks[len(out.Ticks)-1]
	}
	for reason, n := range out.Rejections {
		r.Rejections[string(reason)] = n
	}
	if cfg.StartingCapital.IsPositive() {
		r.OverallProfitRatio = out.EndCapital.Sub(cfg.StartingCapital).Div(cfg.StartingCapital).InexactFloat64()
	}

	realised := values(out.RealisedSeries)
	seen := values(out.CapitalSeries)

	r.MaxRealisedDrawdown = utils.MaxDrawdownRatio(realised)
	r.MaxSeenDrawdown = drawdownAt(out.CapitalSeries, seen)
	r.LongestRealisedDrawdown = spanAt(out.RealisedSeries, utils.LongestDrawdown(realised))
	r.LongestSeenDrawdown = spanAt(out.CapitalSeries, utils.LongestDrawdown(seen))

	tradeCounts(r, closed)
	r.AvgTradeDuration, r.LongestTradeDuration, r.ShortestTradeDuration = durations(closed)
	r.RiskRewardRatio = riskReward(closed)

	turnover := decimal.Zero
	for t := range out.Ledger.Closed() {
		turnover = turnover.Add(t.StartingAmount.Abs())
		r.TotalFees = r.TotalFees.Add(t.FeePaid)
	}
	for t := range out.Ledger.Opened() {
		turnover = turnover.Add(t.StartingAmount.Abs())
		r.TotalFees = r.TotalFees.Add(t.FeePaid)
	}
	if r.DurationDays > 0 && cfg.StartingCapital.IsPositive() {
		r.VolumeTurnover = turnover.Div(cfg.StartingCapital).InexactFloat64() / r.DurationDays
	}

	daily := dailyReturns(out)
	r.Sharpe90d = ratio(utils.Sharpe, daily, shortWindow)
	r.Sharpe3y = ratio(utils.Sharpe, daily, longWindow)
	r.Sortino90d = ratio(utils.Sortino, daily, shortWindow)
	r.Sortino3y = ratio(utils.Sortino, daily, longWindow)

	markets := marketSeriesOf(out)
	start := cfg.StartingCapital.InexactFloat64()
	portfolio := samples(out.CapitalSeries[min(1, len(out.CapitalSeries)):])
	r.Weeks = countBuckets(Week, portfolio, start, markets)
	r.Months = countBuckets(Month, portfolio, start, markets)

	coins := coinInsights(out)
	if len(coins) > 0 {
		sum := 0.0
		for _, c := range coins {
			sum += c.MarketChange
		}
		r.AvgMarketChange = sum / float64(len(coins))
	}

	logger.Component("statistics").Debug("Statistics computed",
		"trades", r.NTrades,
		"pairs", len(coins),
		"max_seen_drawdown", r.MaxSeenDrawdown.Ratio,
	)
	return r, coins
}

func tradeCounts(r *MainResults, closed []ledger.Trade) {
	run, wins := 0, 0
	for i, t := range closed {
		if t.IsLoss() {
			r.NTradesWithLoss++
			run++
			r.NConsecutiveLosses = max(r.NConsecutiveLosses, run)
		} else {
			run = 0
		}
		if t.ProfitRatio > 1 {
			wins++
		}

		ref := &TradeRef{Pair: t.Pair, OpenedAt: t.OpenedAt, ProfitRatio: t.ProfitRatio}
		if i == 0 || t.ProfitRatio > r.BestTrade.ProfitRatio {
			r.BestTrade = ref
		}
		if i == 0 || t.ProfitRatio < r.WorstTrade.ProfitRatio {
			r.WorstTrade = ref
		}
	}
	if len(closed) > 0 {
		r.WinRate = float64(wins) / float64(len(closed))
	}
}

func durations(closed []ledger.Trade) (avg, longest, shortest time.Duration) {
	if len(closed) == 0 {
		return 0, 0, 0
	}
	var total time.Duration
	shortest = closed[0].Duration()
	for _, t := range closed {
		d := t.Duration()
		total += d
		longest = max(longest, d)
		shortest = min(shortest, d)
	}
	return total / time.Duration(len(closed)), longest, shortest
}

// riskReward is mean winning profit over the absolute mean losing profit.
func riskReward(closed []ledger.Trade) float64 {
	var wins, losses []float64
	for _, t := range closed {
		p := t.ProfitRatio - 1
		switch {
		case p > 0:
			wins = append(wins, p)
		case p < 0:
			losses = append(losses, p)
		}
	}
	if len(wins) == 0 || len(losses) == 0 {
		return 0
	}
	meanLoss := utils.Mean(losses)
	if meanLoss == 0 {
		return 0
	}
	return utils.Mean(wins) / -meanLoss
}

// dailyReturns returns the day over day change of the last capital value of
// each UTC day, measured from the starting capital.
func dailyReturns(out *backtesting.Outcome) []float64 {
	if len(out.CapitalSeries) < 2 {
		return nil
	}
	daily := []float64{out.Config.StartingCapital.InexactFloat64()}
	lastDay := int64(-1)
	for _, p := range out.CapitalSeries[1:] {
		day := p.Timestamp / dayMillis
		v := p.Value.InexactFloat64()
		if day == lastDay {
			daily[len(daily)-1] = v
			continue
		}
		daily = append(daily, v)
		lastDay = day
	}
	return utils.PctChange(daily)
}

// ratio applies kernel to the last window daily returns, or to all of them
// when the run is shorter.
func ratio(kernel func([]float64, float64) (float64, bool), returns []float64, window int) *float64 {
	if len(returns) > window {
		returns = returns[len(returns)-window:]
	}
	v, ok := kernel(returns, riskFreeRatio)
	if !ok {
		return nil
	}
	return &v
}

func drawdownAt(series []backtesting.Point, vals []float64) Drawdown {
	dd := utils.MaxDrawdown(vals)
	if dd.Ratio == 0 {
		return Drawdown{}
	}
	out := Drawdown{
		Ratio: dd.Ratio,
		From:  series[dd.PeakIndex].Timestamp,
		At:    series[dd.BottomIndex].Timestamp,
	}
	if dd.RecoveryIndex >= 0 {
		out.To = series[dd.RecoveryIndex].Timestamp
	}
	return out
}

func spanAt(series []backtesting.Point, s utils.DrawdownSpan) Span {
	if s.Length == 0 {
		return Span{}
	}
	out := Span{
		Length:     s.Length,
		From:       series[s.Start].Timestamp,
		IsOngoing:  s.IsOngoing,
		Unresolved: s.Unresolved,
	}
	if !s.IsOngoing {
		out.To = series[s.End].Timestamp
	}
	return out
}

func values(series []backtesting.Point) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Value.InexactFloat64()
	}
	return out
}

func samples(series []backtesting.Point) []sample {
	out := make([]sample, len(series))
	for i, p := range series {
		out[i] = sample{ts: p.Timestamp, v: p.Value.InexactFloat64()}
	}
	return out
}

// windowCandles returns the candles of a pair inside the simulated window.
func windowCandles(out *backtesting.Outcome, f *market.PairFrame) []market.Candle {
	return f.Between(out.Config.From, out.Config.To)
}

func marketSeriesOf(out *backtesting.Outcome) []marketSeries {
	var markets []marketSeries
	for _, pair := range out.Config.Pairs {
		f, ok := out.Frames[pair]
		if !ok {
			continue
		}
		if m, ok := closesOf(windowCandles(out, f)); ok {
			markets = append(markets, m)
		}
	}
	return markets
}

func closesOf(candles []market.Candle) (marketSeries, bool) {
	if len(candles) == 0 {
		return marketSeries{}, false
	}
	m := marketSeries{
		start:  candles[0].Open.InexactFloat64(),
		closes: make([]sample, len(candles)),
	}
	for i, c := range candles {
		m.closes[i] = sample{ts: c.Timestamp, v: c.Close.InexactFloat64()}
	}
	return m, true
}
