package ledger

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateOpenTrade = errors.New("pair already has an open trade")
	ErrMaxOpenTrades      = errors.New("max open trades reached")
	ErrNoOpenTrade        = errors.New("pair has no open trade")
	ErrCloseBeforeOpen    = errors.New("close time not after open time")
)

// Exit carries the execution details of a close.
type Exit struct {
	At       int64
	Price    decimal.Decimal
	Capital  decimal.Decimal // returned to the budget, net of the sell fee
	SellFee  decimal.Decimal
	Reason   SellReason
	Drawdown float64 // worst drawdown reached on the exit candle
}

// Ledger holds open and closed trades. Openings and closings are append-only
// and a trade is never modified once closed.
type Ledger struct {
	maxOpen int

	open      map[string]*Trade
	openOrder []string
	closed    []Trade
	lastClose map[string]int64
}

// New creates an empty ledger allowing at most maxOpen concurrent trades.
func New(maxOpen int) *Ledger {
	return &Ledger{
		maxOpen:   maxOpen,
		open:      make(map[string]*Trade),
		lastClose: make(map[string]int64),
	}
}

// Open records a new open trade.
func (l *Ledger) Open(t Trade) (*Trade, error) {
	if _, exists := l.open[t.Pair]; exists {
		return nil, fmt.Errorf("%s: %w", t.Pair, ErrDuplicateOpenTrade)
	}
	if len(l.open) >= l.maxOpen {
		return nil, fmt.Errorf("%s: %w", t.Pair, ErrMaxOpenTrades)
	}

	t.Status = StatusOpen
	t.SellReason = SellReasonNone
	trade := &t
	l.open[t.Pair] = trade
	l.openOrder = append(l.openOrder, t.Pair)
	return trade, nil
}

// Close moves the open trade of pair to the closed list.
func (l *Ledger) Close(pair string, c Exit) (Trade, error) {
	trade, ok := l.open[pair]
	if !ok {
		return Trade{}, fmt.Errorf("%s: %w", pair, ErrNoOpenTrade)
	}
	if c.At <= trade.OpenedAt {
		return Trade{}, fmt.Errorf("%s: closed at %d, opened at %d: %w", pair, c.At, trade.OpenedAt, ErrCloseBeforeOpen)
	}

	trade.Status = StatusClosed
	trade.ClosedAt = c.At
	trade.ClosePrice = c.Price
	trade.Capital = c.Capital
	trade.FeePaid = trade.FeePaid.Add(c.SellFee)
	trade.SellReason = c.Reason
	trade.ProfitCurrency = c.Capital.Sub(trade.StartingAmount)
	if trade.StartingAmount.IsPositive() {
		trade.ProfitRatio = c.Capital.Div(trade.StartingAmount).InexactFloat64()
	}
	if c.Drawdown < trade.MaxSeenDrawdown {
		trade.MaxSeenDrawdown = c.Drawdown
	}

	closed := *trade
	l.closed = append(l.closed, closed)
	l.lastClose[pair] = c.At

	delete(l.open, pair)
	for i, p := range l.openOrder {
		if p == pair {
			l.openOrder = append(l.openOrder[:i], l.openOrder[i+1:]...)
			break
		}
	}
	return closed, nil
}

// Position returns the live open trade of pair. Only the simulator that owns
// the ledger may mutate it.
func (l *Ledger) Position(pair string) (*Trade, bool) {
	t, ok := l.open[pair]
	return t, ok
}

// LastClosedAt returns the close time of the most recent trade on pair.
func (l *Ledger) LastClosedAt(pair string) (int64, bool) {
	ts, ok := l.lastClose[pair]
	return ts, ok
}

// NumOpen returns the number of open trades.
func (l *Ledger) NumOpen() int {
	return len(l.open)
}

// OpenCapital returns the summed mark-to-market value of open trades.
func (l *Ledger) OpenCapital() decimal.Decimal {
	total := decimal.Zero
	for _, pair := range l.openOrder {
		total = total.Add(l.open[pair].Capital)
	}
	return total
}

// OpenTrades returns copies of the open trades in opening order.
func (l *Ledger) OpenTrades() []Trade {
	out := make([]Trade, 0, len(l.openOrder))
	for _, pair := range l.openOrder {
		out = append(out, *l.open[pair])
	}
	return out
}

// ClosedTrades returns the closed trades in closing order.
func (l *Ledger) ClosedTrades() []Trade {
	out := make([]Trade, len(l.closed))
	copy(out, l.closed)
	return out
}

// Trades returns every trade, closed and open, sorted by open time then pair.
func (l *Ledger) Trades() []Trade {
	out := append(l.ClosedTrades(), l.OpenTrades()...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OpenedAt != out[j].OpenedAt {
			return out[i].OpenedAt < out[j].OpenedAt
		}
		return out[i].Pair < out[j].Pair
	})
	return out
}

// TradesByPair groups all trades per pair, each group in open-time order.
func (l *Ledger) TradesByPair() map[string][]Trade {
	out := make(map[string][]Trade)
	for _, t := range l.Trades() {
		out[t.Pair] = append(out[t.Pair], t)
	}
	return out
}

// Closed iterates over closed trades in closing order.
func (l *Ledger) Closed() iter.Seq[Trade] {
	return func(yield func(Trade) bool) {
		for _, t := range l.closed {
			if !yield(t) {
				return
			}
		}
	}
}

// Opened iterates over open trades in opening order.
func (l *Ledger) Opened() iter.Seq[Trade] {
	return func(yield func(Trade) bool) {
		for _, pair := range l.openOrder {
			if !yield(*l.open[pair]) {
				return
			}
		}
	}
}
