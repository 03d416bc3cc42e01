package utils

import "math"

// Sharpe returns mean(r-rf) / stddev(r-rf) over the non-NaN returns. The
// second result is false when the deviation is zero or undefined.
func Sharpe(returns []float64, rf float64) (float64, bool) {
	excess := make([]float64, 0, len(returns))
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		excess = append(excess, r-rf)
	}

	sd := StandardDeviation(excess)
	if math.IsNaN(sd) || sd == 0 {
		return 0, false
	}
	return Mean(excess) / sd, true
}

// Sortino returns (mean(r) - rf) / sqrt(mean(min(r, 0)^2)) over the non-NaN
// returns. The second result is false when the downside deviation is zero.
func Sortino(returns []float64, rf float64) (float64, bool) {
	var sum, downside float64
	n := 0
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		sum += r
		if r < 0 {
			downside += r * r
		}
		n++
	}
	if n == 0 || downside == 0 {
		return 0, false
	}
	dd := math.Sqrt(downside / float64(n))
	return (sum/float64(n) - rf) / dd, true
}
