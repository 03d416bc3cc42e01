package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/guyghost/backtester/internal/ledger"
	"github.com/shopspring/decimal"
)

// TradeRecord is one entry of trades_log.json.
type TradeRecord struct {
	Status         string          `json:"status"`
	OpenedAt       int64           `json:"opened_at"`
	ClosedAt       *int64          `json:"closed_at"`
	Pair           string          `json:"pair"`
	OpenPrice      decimal.Decimal `json:"open_price"`
	FeePaid        decimal.Decimal `json:"fee_paid"`
	StartingAmount decimal.Decimal `json:"starting_amount"`
	Capital        decimal.Decimal `json:"capital"`
	CurrencyAmount decimal.Decimal `json:"currency_amount"`
	SellReason     string          `json:"sell_reason"`
}

// TradesLog groups trade records by open time. Several pairs may open on the
// same candle so each key holds a list sorted by pair.
type TradesLog map[string][]TradeRecord

// NewTradesLog builds the log of trades.
func NewTradesLog(trades []ledger.Trade) TradesLog {
	log := make(TradesLog)
	for _, t := range trades {
		rec := TradeRecord{
			Status:         string(t.Status),
			OpenedAt:       t.OpenedAt,
			Pair:           t.Pair,
			OpenPrice:      t.OpenPrice,
			FeePaid:        t.FeePaid,
			StartingAmount: t.StartingAmount,
			Capital:        t.Capital,
			CurrencyAmount: t.CurrencyAmount,
			SellReason:     string(t.SellReason),
		}
		if !t.IsOpen() {
			closedAt := t.ClosedAt
			rec.ClosedAt = &closedAt
		}
		key := strconv.FormatInt(t.OpenedAt, 10)
		log[key] = append(log[key], rec)
	}
	for _, recs := range log {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Pair < recs[j].Pair })
	}
	return log
}

// Keys returns the open times in ascending order.
func (l TradesLog) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.ParseInt(keys[i], 10, 64)
		b, _ := strconv.ParseInt(keys[j], 10, 64)
		return a < b
	})
	return keys
}

// WriteTradesLog encodes the log of trades to w. Keys are written in
// ascending order.
func WriteTradesLog(w io.Writer, trades []ledger.Trade) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewTradesLog(trades)); err != nil {
		return fmt.Errorf("failed to encode trades log: %w", err)
	}
	return nil
}

// SaveTradesLog writes trades_log.json to path. A failed close is reported,
// since the file may be incomplete.
func SaveTradesLog(path string, trades []ledger.Trade) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trades log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close trades log: %w", cerr)
		}
	}()
	return WriteTradesLog(f, trades)
}

// LoadTradesLog reads a trades_log.json file.
func LoadTradesLog(path string) (TradesLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trades log: %w", err)
	}
	var log TradesLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to decode trades log: %w", err)
	}
	return log, nil
}
