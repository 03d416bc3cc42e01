// Package ledger records the positions opened and closed during a backtest.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a trade.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// SellReason explains why a trade was closed.
type SellReason string

const (
	SellReasonNone           SellReason = "NONE"
	SellReasonROI            SellReason = "ROI"
	SellReasonStoploss       SellReason = "STOPLOSS"
	SellReasonSellSignal     SellReason = "SELL_SIGNAL"
	SellReasonStoplossAndROI SellReason = "STOPLOSS_AND_ROI"
)

// Trade is a single long position on a pair.
type Trade struct {
	ID     string
	Pair   string
	Status Status

	OpenedAt int64 // unix ms of the entry candle
	ClosedAt int64 // unix ms of the exit candle, 0 while open

	OpenPrice  decimal.Decimal
	ClosePrice decimal.Decimal

	// StartingAmount is the quote currency taken from the budget, before the buy fee.
	StartingAmount decimal.Decimal
	// Capital is the mark-to-market value of the position; after close it is
	// the amount returned to the budget net of the sell fee.
	Capital decimal.Decimal
	// CurrencyAmount is the position size in the base asset after the buy fee.
	CurrencyAmount decimal.Decimal
	FeePaid        decimal.Decimal

	ProfitRatio     float64
	ProfitCurrency  decimal.Decimal
	MaxSeenDrawdown float64
	SellReason      SellReason

	// HighWater is the highest price reached since entry. It drives the
	// trailing stoploss and the seen drawdown.
	HighWater decimal.Decimal
}

// IsOpen reports whether the trade is still open.
func (t Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// Duration returns the holding time of a closed trade, or zero.
func (t Trade) Duration() time.Duration {
	if t.IsOpen() || t.ClosedAt < t.OpenedAt {
		return 0
	}
	return time.Duration(t.ClosedAt-t.OpenedAt) * time.Millisecond
}

// HoldMinutes returns the minutes elapsed between entry and ts.
func (t Trade) HoldMinutes(ts int64) float64 {
	return float64(ts-t.OpenedAt) / float64(time.Minute/time.Millisecond)
}

// IsLoss reports whether a trade returned less than its stake.
func (t Trade) IsLoss() bool {
	return t.ProfitRatio < 1
}
