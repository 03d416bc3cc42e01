package statistics

import (
	"sort"

	"github.com/guyghost/backtester/internal/backtesting"
	"github.com/guyghost/backtester/internal/ledger"
	"github.com/guyghost/backtester/pkg/utils"
	"github.com/shopspring/decimal"
)

// coinInsights computes the insights of every configured pair, traded or
// not, in configuration order.
func coinInsights(out *backtesting.Outcome) []CoinInsights {
	byPair := out.Ledger.TradesByPair()
	coins := make([]CoinInsights, 0, len(out.Config.Pairs))
	for _, pair := range out.Config.Pairs {
		coins = append(coins, coinInsight(out, pair, byPair[pair]))
	}
	return coins
}

func coinInsight(out *backtesting.Outcome, pair string, trades []ledger.Trade) CoinInsights {
	c := CoinInsights{
		Pair:           pair,
		CumProfitRatio: 1,
		ProfitCurrency: decimal.Zero,
	}

	var closed []ledger.Trade
	for _, t := range trades {
		if t.IsOpen() {
			c.NOpenTrades++
			continue
		}
		closed = append(closed, t)
	}
	sort.SliceStable(closed, func(i, j int) bool { return closed[i].ClosedAt < closed[j].ClosedAt })

	realised := []float64{1}
	seen := []float64{1}
	cum := 1.0
	profits := make([]float64, 0, len(closed))
	for _, t := range closed {
		seen = append(seen, cum*(1+t.MaxSeenDrawdown))
		cum *= t.ProfitRatio
		seen = append(seen, cum)
		realised = append(realised, cum)
		profits = append(profits, t.ProfitRatio-1)

		c.ProfitCurrency = c.ProfitCurrency.Add(t.ProfitCurrency)
		switch {
		case t.ProfitRatio > 1:
			c.NWins++
		case t.ProfitRatio < 1:
			c.NLosses++
		}
		switch t.SellReason {
		case ledger.SellReasonROI:
			c.NROI++
		case ledger.SellReasonStoploss:
			c.NStoploss++
		case ledger.SellReasonSellSignal:
			c.NSellSignal++
		case ledger.SellReasonStoplossAndROI:
			c.NStoplossAndROI++
		}
	}

	c.NTrades = len(closed)
	c.CumProfitRatio = cum
	c.TotalProfitRatio = cum - 1
	if len(profits) > 0 {
		c.AvgProfitRatio = utils.Mean(profits)
	}
	c.MaxRealisedDrawdown = utils.MaxDrawdownRatio(realised)
	c.MaxSeenDrawdown = utils.MaxDrawdownRatio(seen)
	c.AvgDuration, c.LongestDuration, c.ShortestDuration = durations(closed)

	f, ok := out.Frames[pair]
	if !ok {
		return c
	}
	m, ok := closesOf(windowCandles(out, f))
	if !ok {
		return c
	}

	closes := make([]float64, len(m.closes))
	for i, s := range m.closes {
		closes[i] = s.v
	}
	if first := closes[0]; first > 0 {
		c.MarketChange = closes[len(closes)-1]/first - 1
	}
	c.MarketDrawdown = utils.MaxDrawdownRatio(closes)

	// The pair's own ratio, stepped at each close, against its market.
	pairSeries := make([]sample, len(m.closes))
	next := 0
	level := 1.0
	for i, s := range m.closes {
		for next < len(closed) && closed[next].ClosedAt <= s.ts {
			level *= closed[next].ProfitRatio
			next++
		}
		pairSeries[i] = sample{ts: s.ts, v: level}
	}
	markets := []marketSeries{m}
	c.Weeks = countBuckets(Week, pairSeries, 1, markets)
	c.Months = countBuckets(Month, pairSeries, 1, markets)
	return c
}
