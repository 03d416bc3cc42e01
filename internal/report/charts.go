package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/guyghost/backtester/internal/backtesting"
)

// EquityChart is the portfolio curve payload.
type EquityChart struct {
	Timestamps []int64   `json:"timestamps"`
	Capital    []float64 `json:"capital"`
	Realised   []float64 `json:"realised"`
}

// Marker is a trade entry or exit on a coin chart.
type Marker struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Reason    string  `json:"reason,omitempty"`
}

// CoinChart is the price curve of one pair with its trades.
type CoinChart struct {
	Pair       string    `json:"pair"`
	Timestamps []int64   `json:"timestamps"`
	Close      []float64 `json:"close"`
	Buys       []Marker  `json:"buys"`
	Sells      []Marker  `json:"sells"`
}

// Charts holds every chart payload of a run. Rendering is left to the
// consumer.
type Charts struct {
	Equity EquityChart `json:"equity"`
	Coins  []CoinChart `json:"coins"`
}

func buildCharts(out *backtesting.Outcome) Charts {
	var c Charts
	for i, p := range out.CapitalSeries {
		c.Equity.Timestamps = append(c.Equity.Timestamps, p.Timestamp)
		c.Equity.Capital = append(c.Equity.Capital, p.Value.InexactFloat64())
		if i < len(out.RealisedSeries) {
			c.Equity.Realised = append(c.Equity.Realised, out.RealisedSeries[i].Value.InexactFloat64())
		}
	}

	byPair := out.Ledger.TradesByPair()
	for _, pair := range out.Config.Pairs {
		chart := CoinChart{Pair: pair, Buys: []Marker{}, Sells: []Marker{}}
		if f, ok := out.Frames[pair]; ok {
			for _, candle := range f.Between(out.Config.From, out.Config.To) {
				chart.Timestamps = append(chart.Timestamps, candle.Timestamp)
				chart.Close = append(chart.Close, candle.Close.InexactFloat64())
			}
		}
		for _, t := range byPair[pair] {
			chart.Buys = append(chart.Buys, Marker{Timestamp: t.OpenedAt, Price: t.OpenPrice.InexactFloat64()})
			if !t.IsOpen() {
				chart.Sells = append(chart.Sells, Marker{
					Timestamp: t.ClosedAt,
					Price:     t.ClosePrice.InexactFloat64(),
					Reason:    string(t.SellReason),
				})
			}
		}
		c.Coins = append(c.Coins, chart)
	}
	return c
}

// SaveCharts writes the chart payloads as JSON.
func SaveCharts(path string, c Charts) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode charts: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write charts: %w", err)
	}
	return nil
}
