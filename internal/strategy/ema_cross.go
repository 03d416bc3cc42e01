// Package strategy attaches buy, sell and dynamic stoploss signals to
// candles before they are simulated.
package strategy

import (
	"fmt"

	"github.com/guyghost/backtester/internal/logger"
	"github.com/guyghost/backtester/internal/market"
	"github.com/shopspring/decimal"
)

// Strategy populates signals on the candles of one pair.
type Strategy interface {
	Name() string
	// Populate returns a copy of candles with signals set. The input is not
	// modified.
	Populate(pair string, candles []market.Candle) []market.Candle
}

// EMACrossConfig parameterises EMACross.
type EMACrossConfig struct {
	ShortPeriod   int
	LongPeriod    int
	RSIPeriod     int
	RSIOverbought float64
	ATRPeriod     int
	// ATRMultiplier places the dynamic stop at the previous close - k*ATR.
	// Zero disables it.
	ATRMultiplier float64
}

// DefaultEMACrossConfig returns the 9/21 crossover with an RSI 14 filter.
func DefaultEMACrossConfig() EMACrossConfig {
	return EMACrossConfig{
		ShortPeriod:   9,
		LongPeriod:    21,
		RSIPeriod:     14,
		RSIOverbought: 70,
		ATRPeriod:     14,
		ATRMultiplier: 2,
	}
}

// Validate checks the periods.
func (c EMACrossConfig) Validate() error {
	if c.ShortPeriod <= 0 || c.LongPeriod <= 0 || c.RSIPeriod <= 0 {
		return fmt.Errorf("ema cross: periods must be positive")
	}
	if c.ShortPeriod >= c.LongPeriod {
		return fmt.Errorf("ema cross: short period %d must be below long period %d", c.ShortPeriod, c.LongPeriod)
	}
	if c.RSIOverbought <= 0 || c.RSIOverbought > 100 {
		return fmt.Errorf("ema cross: rsi overbought %v out of (0, 100]", c.RSIOverbought)
	}
	if c.ATRMultiplier < 0 || (c.ATRMultiplier > 0 && c.ATRPeriod <= 0) {
		return fmt.Errorf("ema cross: invalid atr settings")
	}
	return nil
}

// EMACross buys when the short EMA crosses above the long EMA while RSI is
// below the overbought level, and sells on the opposite cross.
type EMACross struct {
	cfg EMACrossConfig
	log *logger.Logger
}

// NewEMACross creates the strategy.
func NewEMACross(cfg EMACrossConfig) (*EMACross, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &EMACross{cfg: cfg, log: logger.Component("strategy")}, nil
}

// Name returns "ema_cross".
func (s *EMACross) Name() string { return "ema_cross" }

// Populate sets Buy, Sell and DynamicStoploss on a copy of candles.
func (s *EMACross) Populate(pair string, candles []market.Candle) []market.Candle {
	out := make([]market.Candle, len(candles))
	copy(out, candles)

	n := len(out)
	closes := make([]decimal.Decimal, n)
	highs := make([]decimal.Decimal, n)
	lows := make([]decimal.Decimal, n)
	for i, c := range out {
		closes[i], highs[i], lows[i] = c.Close, c.High, c.Low
	}

	short := EMA(closes, s.cfg.ShortPeriod)
	long := EMA(closes, s.cfg.LongPeriod)
	rsi := RSI(closes, s.cfg.RSIPeriod)
	var atr Series
	if s.cfg.ATRMultiplier > 0 {
		atr = ATR(highs, lows, closes, s.cfg.ATRPeriod)
	}
	overbought := decimal.NewFromFloat(s.cfg.RSIOverbought)
	mult := decimal.NewFromFloat(s.cfg.ATRMultiplier)

	// Signals and the stop on candle i are derived from closed candles up to
	// i-1, since the simulator fills at the open of candle i.
	buys, sells := 0, 0
	for i := range out {
		out[i].Buy, out[i].Sell = false, false
		out[i].DynamicStoploss = decimal.NullDecimal{}

		j := i - 1
		if a, ok := atr.At(j); ok {
			if stop := closes[j].Sub(a.Mul(mult)); stop.IsPositive() {
				out[i].DynamicStoploss = decimal.NewNullDecimal(stop)
			}
		}

		prevShort, ok1 := short.At(j - 1)
		prevLong, ok2 := long.At(j - 1)
		curShort, ok3 := short.At(j)
		curLong, ok4 := long.At(j)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}

		switch {
		case prevShort.LessThanOrEqual(prevLong) && curShort.GreaterThan(curLong):
			if r, ok := rsi.At(j); ok && r.LessThan(overbought) {
				out[i].Buy = true
				buys++
			}
		case prevShort.GreaterThanOrEqual(prevLong) && curShort.LessThan(curLong):
			out[i].Sell = true
			sells++
		}
	}

	s.log.Debug("signals populated", "pair", pair, "candles", n, "buys", buys, "sells", sells)
	return out
}
