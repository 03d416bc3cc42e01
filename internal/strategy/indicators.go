package strategy

import (
	"github.com/shopspring/decimal"
)

// Series is an indicator aligned index for index with its input. Entries in
// the warm-up window are invalid.
type Series []decimal.NullDecimal

// At returns the value at i and whether it is defined.
func (s Series) At(i int) (decimal.Decimal, bool) {
	if i < 0 || i >= len(s) || !s[i].Valid {
		return decimal.Zero, false
	}
	return s[i].Decimal, true
}

// Valid returns the number of defined entries.
func (s Series) Valid() int {
	n := 0
	for _, v := range s {
		if v.Valid {
			n++
		}
	}
	return n
}

// EMA calculates the Exponential Moving Average, seeded with the SMA of the
// first period values.
func EMA(prices []decimal.Decimal, period int) Series {
	return emaFrom(prices, period, 0)
}

// emaFrom computes an EMA over prices[start:], aligned to prices.
func emaFrom(prices []decimal.Decimal, period, start int) Series {
	result := make(Series, len(prices))
	if period <= 0 || len(prices)-start < period {
		return result
	}

	multiplier := decimal.NewFromFloat(2.0 / float64(period+1))

	// Calculate initial SMA
	sum := decimal.Zero
	for i := start; i < start+period; i++ {
		sum = sum.Add(prices[i])
	}
	prev := sum.Div(decimal.NewFromInt(int64(period)))
	result[start+period-1] = decimal.NewNullDecimal(prev)

	for i := start + period; i < len(prices); i++ {
		prev = prices[i].Sub(prev).Mul(multiplier).Add(prev)
		result[i] = decimal.NewNullDecimal(prev)
	}
	return result
}

// SMA calculates the Simple Moving Average
func SMA(prices []decimal.Decimal, period int) Series {
	return smaFrom(prices, period, 0)
}

func smaFrom(prices []decimal.Decimal, period, start int) Series {
	result := make(Series, len(prices))
	if period <= 0 || len(prices)-start < period {
		return result
	}

	n := decimal.NewFromInt(int64(period))
	sum := decimal.Zero
	for i := start; i < len(prices); i++ {
		sum = sum.Add(prices[i])
		if i-start >= period {
			sum = sum.Sub(prices[i-period])
		}
		if i-start >= period-1 {
			result[i] = decimal.NewNullDecimal(sum.Div(n))
		}
	}
	return result
}

// RSI calculates the Relative Strength Index from EMAs of gains and losses.
// The first defined value is at index period.
func RSI(prices []decimal.Decimal, period int) Series {
	result := make(Series, len(prices))
	if period <= 0 || len(prices) < period+1 {
		return result
	}

	gains := make([]decimal.Decimal, len(prices))
	losses := make([]decimal.Decimal, len(prices))
	for i := 1; i < len(prices); i++ {
		change := prices[i].Sub(prices[i-1])
		if change.IsPositive() {
			gains[i] = change
		} else {
			losses[i] = change.Abs()
		}
	}

	gainEMA := emaFrom(gains, period, 1)
	lossEMA := emaFrom(losses, period, 1)

	hundred := decimal.NewFromInt(100)
	for i := period; i < len(prices); i++ {
		gain, loss := gainEMA[i].Decimal, lossEMA[i].Decimal
		if loss.IsZero() {
			result[i] = decimal.NewNullDecimal(hundred)
			continue
		}
		rs := gain.Div(loss)
		result[i] = decimal.NewNullDecimal(hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs))))
	}
	return result
}

// ATR calculates the Average True Range as the SMA of true ranges. The first
// defined value is at index period.
func ATR(high, low, close []decimal.Decimal, period int) Series {
	n := min(len(high), len(low), len(close))
	result := make(Series, n)
	if period <= 0 || n < period+1 {
		return result
	}

	trueRanges := make([]decimal.Decimal, n)
	for i := 1; i < n; i++ {
		hl := high[i].Sub(low[i])
		hc := high[i].Sub(close[i-1]).Abs()
		lc := low[i].Sub(close[i-1]).Abs()
		trueRanges[i] = decimal.Max(hl, hc, lc)
	}
	return smaFrom(trueRanges, period, 1)
}
