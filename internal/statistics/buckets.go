package statistics

import (
	"fmt"
	"time"
)

const (
	profitThreshold = 1.001
	lossThreshold   = 0.999
	perfMargin      = 0.001
)

// Period selects the calendar bucketing.
type Period int

const (
	Week Period = iota
	Month
)

func (p Period) key(ts int64) string {
	t := time.UnixMilli(ts).UTC()
	if p == Week {
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	}
	return t.Format("2006-01")
}

type sample struct {
	ts int64
	v  float64
}

// bucketRatio is the end-of-period value over the previous period's end.
type bucketRatio struct {
	key   string
	ratio float64
}

// periodRatios splits series into calendar periods. The first period is
// measured against start.
func periodRatios(p Period, series []sample, start float64) []bucketRatio {
	var out []bucketRatio
	prev := start
	for i, s := range series {
		last := i == len(series)-1 || p.key(series[i+1].ts) != p.key(s.ts)
		if !last {
			continue
		}
		r := 1.0
		if prev > 0 {
			r = s.v / prev
		}
		out = append(out, bucketRatio{key: p.key(s.ts), ratio: r})
		prev = s.v
	}
	return out
}

// countBuckets classifies every period of portfolio against the average of
// the market ratios for the same period. Periods without market data are
// compared to a flat market.
func countBuckets(p Period, portfolio []sample, start float64, markets []marketSeries) Buckets {
	marketSum := make(map[string]float64)
	marketN := make(map[string]int)
	for _, m := range markets {
		for _, br := range periodRatios(p, m.closes, m.start) {
			marketSum[br.key] += br.ratio
			marketN[br.key]++
		}
	}

	var b Buckets
	for _, br := range periodRatios(p, portfolio, start) {
		switch {
		case br.ratio > profitThreshold:
			b.ProfWin++
		case br.ratio < lossThreshold:
			b.ProfLoss++
		default:
			b.ProfDraw++
		}

		market := 1.0
		if n := marketN[br.key]; n > 0 {
			market = marketSum[br.key] / float64(n)
		}
		switch diff := br.ratio - market; {
		case diff > perfMargin:
			b.PerfWin++
		case diff < -perfMargin:
			b.PerfLoss++
		default:
			b.PerfDraw++
		}
	}
	return b
}

// marketSeries is a pair's close prices with the first open as reference.
type marketSeries struct {
	start  float64
	closes []sample
}
