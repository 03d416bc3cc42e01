package backtesting

import (
	"fmt"
	"strings"

	"github.com/guyghost/backtester/internal/ledger"
	"github.com/guyghost/backtester/internal/market"
	"github.com/shopspring/decimal"
)

// StoplossType selects how the stop price of an open trade is derived.
type StoplossType string

const (
	StoplossStatic   StoplossType = "static"
	StoplossTrailing StoplossType = "trailing"
	StoplossDynamic  StoplossType = "dynamic"
)

// ParseStoplossType accepts static, trailing and dynamic.
func ParseStoplossType(s string) (StoplossType, error) {
	switch t := StoplossType(strings.ToLower(strings.TrimSpace(s))); t {
	case StoplossStatic, StoplossTrailing, StoplossDynamic:
		return t, nil
	case "standard":
		return "", fmt.Errorf("%q, use %q: %w", s, StoplossStatic, ErrUnknownStoplossType)
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownStoplossType)
}

// Stoploss is the downside exit rule of a run.
type Stoploss struct {
	Type    StoplossType
	Percent float64 // negative, e.g. -10 for a 10% stop
}

// Target returns the stop price of trade on candle c. The trade's high water
// mark must already include c.High. ok is false when no stop applies.
func (s Stoploss) Target(trade *ledger.Trade, c market.Candle) (target decimal.Decimal, ok bool) {
	switch s.Type {
	case StoplossStatic:
		return trade.OpenPrice.Mul(s.factor()), true
	case StoplossTrailing:
		return trade.HighWater.Mul(s.factor()), true
	case StoplossDynamic:
		if !c.DynamicStoploss.Valid {
			return decimal.Zero, false
		}
		if c.DynamicStoploss.Decimal.GreaterThan(trade.OpenPrice) {
			return decimal.Zero, false
		}
		return c.DynamicStoploss.Decimal, true
	}
	return decimal.Zero, false
}

// Evaluate reports whether the stop is hit within c and at which price.
// A gap below the stop executes at the candle open.
func (s Stoploss) Evaluate(trade *ledger.Trade, c market.Candle) (price decimal.Decimal, fired bool) {
	target, ok := s.Target(trade, c)
	if !ok || c.Low.GreaterThan(target) {
		return decimal.Zero, false
	}
	return decimal.Min(c.Open, target), true
}

func (s Stoploss) factor() decimal.Decimal {
	return decimal.NewFromInt(1).Add(decimal.NewFromFloat(s.Percent).Div(decimal.NewFromInt(100)))
}
