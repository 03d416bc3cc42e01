package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guyghost/backtester/internal/statistics"
	"github.com/olekukonko/tablewriter"
)

var (
	successColor = lipgloss.Color("#00FF87")
	errorColor   = lipgloss.Color("#FF5555")
	mutedColor   = lipgloss.Color("#6272A4")

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// Reporter renders results as console tables.
type Reporter struct {
	out io.Writer
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{out: w}
}

// Render writes the summary, the per-pair table and the open trades.
func (r *Reporter) Render(res *Result) error {
	m := res.Main

	fmt.Fprintln(r.out, titleStyle.Render(fmt.Sprintf("BACKTEST %s  %s  %s", m.StrategyName, m.Timeframe, res.RunID)))
	fmt.Fprintf(r.out, "%s -> %s (%.1f days, %d ticks, %d pairs)\n\n",
		formatTime(m.From), formatTime(m.To), m.DurationDays, m.NTicks, m.NPairs)

	fmt.Fprintln(r.out, sectionStyle.Render("OVERALL PERFORMANCE"))
	summary := tablewriter.NewWriter(r.out)
	summary.Header("Metric", "Value")
	for _, row := range summaryRows(m) {
		if err := summary.Append(row[0], row[1]); err != nil {
			return fmt.Errorf("failed to add summary row %q: %w", row[0], err)
		}
	}
	if err := summary.Render(); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}

	if len(res.Coins) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, sectionStyle.Render("PAIRS"))
		coins := tablewriter.NewWriter(r.out)
		coins.Header("Pair", "Trades", "Win/Loss", "Profit %", "Profit "+m.CurrencySymbol,
			"Market %", "Max DD %", "Avg Hold", "ROI", "SL", "Sell")
		for _, c := range sortedCoins(res.Coins) {
			err := coins.Append(
				c.Pair,
				fmt.Sprintf("%d", c.NTrades),
				fmt.Sprintf("%d/%d", c.NWins, c.NLosses),
				colorPct(c.TotalProfitRatio),
				c.ProfitCurrency.StringFixed(2),
				pct(c.MarketChange),
				pct(c.MaxSeenDrawdown),
				formatDuration(c.AvgDuration),
				fmt.Sprintf("%d", c.NROI),
				fmt.Sprintf("%d", c.NStoploss+c.NStoplossAndROI),
				fmt.Sprintf("%d", c.NSellSignal),
			)
			if err != nil {
				return fmt.Errorf("failed to add pair row %s: %w", c.Pair, err)
			}
		}
		if err := coins.Render(); err != nil {
			return fmt.Errorf("failed to render pairs: %w", err)
		}
	}

	if len(res.OpenTrades) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, sectionStyle.Render("OPEN TRADES"))
		open := tablewriter.NewWriter(r.out)
		open.Header("Pair", "Opened", "Open Price", "Capital", "Profit %")
		for _, t := range res.OpenTrades {
			err := open.Append(
				t.Pair,
				formatTime(t.OpenedAt),
				t.OpenPrice.String(),
				t.Capital.StringFixed(2),
				colorPct(t.ProfitRatio-1),
			)
			if err != nil {
				return fmt.Errorf("failed to add open trade row %s: %w", t.Pair, err)
			}
		}
		if err := open.Render(); err != nil {
			return fmt.Errorf("failed to render open trades: %w", err)
		}
	}
	return nil
}

// Summary returns a one line summary of the result.
func (r *Reporter) Summary(res *Result) string {
	m := res.Main
	return fmt.Sprintf(
		"Return: %.2f%% | Trades: %d | Win Rate: %.2f%% | Max DD: %.2f%% | End: %s %s",
		m.OverallProfitRatio*100,
		m.NTrades,
		m.WinRate*100,
		m.MaxSeenDrawdown.Ratio*100,
		m.EndCapital.StringFixed(2),
		m.CurrencySymbol,
	)
}

func summaryRows(m statistics.MainResults) [][2]string {
	rows := [][2]string{
		{"Starting capital", m.StartingCapital.StringFixed(2) + " " + m.CurrencySymbol},
		{"End capital", m.EndCapital.StringFixed(2) + " " + m.CurrencySymbol},
		{"Overall profit", colorPct(m.OverallProfitRatio)},
		{"Total fees", m.TotalFees.StringFixed(4)},
		{"Max realised drawdown", pct(m.MaxRealisedDrawdown)},
		{"Max seen drawdown", pct(m.MaxSeenDrawdown.Ratio)},
		{"Longest realised drawdown", spanString(m.LongestRealisedDrawdown)},
		{"Longest seen drawdown", spanString(m.LongestSeenDrawdown)},
		{"Trades (closed / open)", fmt.Sprintf("%d / %d", m.NTrades, m.NLeftOpenTrades)},
		{"Losing trades", fmt.Sprintf("%d (max %d in a row)", m.NTradesWithLoss, m.NConsecutiveLosses)},
		{"Win rate", pct(m.WinRate)},
		{"Avg / longest / shortest hold", fmt.Sprintf("%s / %s / %s",
			formatDuration(m.AvgTradeDuration), formatDuration(m.LongestTradeDuration), formatDuration(m.ShortestTradeDuration))},
		{"Risk reward", fmt.Sprintf("%.2f", m.RiskRewardRatio)},
		{"Volume turnover", fmt.Sprintf("%.2f /day", m.VolumeTurnover)},
		{"Sharpe 90d / 3y", ratioString(m.Sharpe90d) + " / " + ratioString(m.Sharpe3y)},
		{"Sortino 90d / 3y", ratioString(m.Sortino90d) + " / " + ratioString(m.Sortino3y)},
		{"Weeks win/draw/loss", bucketString(m.Weeks, false)},
		{"Weeks vs market", bucketString(m.Weeks, true)},
		{"Months win/draw/loss", bucketString(m.Months, false)},
		{"Months vs market", bucketString(m.Months, true)},
		{"Avg market change", pct(m.AvgMarketChange)},
		{"Rejected buys", fmt.Sprintf("%d", m.NRejections)},
		{"ROI/stoploss conflicts", fmt.Sprintf("%d", m.NConflicts)},
		{"Data warnings", fmt.Sprintf("%d", m.NDataWarnings)},
	}
	if m.BestTrade != nil {
		rows = append(rows,
			[2]string{"Best trade", fmt.Sprintf("%s %s", m.BestTrade.Pair, pct(m.BestTrade.ProfitRatio-1))},
			[2]string{"Worst trade", fmt.Sprintf("%s %s", m.WorstTrade.Pair, pct(m.WorstTrade.ProfitRatio-1))},
		)
	}
	if m.BTCMarketChange != nil {
		rows = append(rows, [2]string{"BTC market change", pct(*m.BTCMarketChange)})
	}
	if m.BTCDrawdown != nil {
		rows = append(rows, [2]string{"BTC drawdown", pct(*m.BTCDrawdown)})
	}
	return rows
}

func sortedCoins(coins []statistics.CoinInsights) []statistics.CoinInsights {
	out := append([]statistics.CoinInsights(nil), coins...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalProfitRatio > out[j].TotalProfitRatio })
	return out
}

func pct(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}

func colorPct(ratio float64) string {
	switch {
	case ratio > 0:
		return successStyle.Render(pct(ratio))
	case ratio < 0:
		return errorStyle.Render(pct(ratio))
	}
	return pct(ratio)
}

func ratioString(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func spanString(s statistics.Span) string {
	if s.Length == 0 {
		return "-"
	}
	if s.IsOngoing {
		return fmt.Sprintf("%d (ongoing)", s.Length)
	}
	if s.Unresolved {
		return fmt.Sprintf("%d (still in drawdown)", s.Length)
	}
	return fmt.Sprintf("%d", s.Length)
}

func bucketString(b statistics.Buckets, perf bool) string {
	if perf {
		return fmt.Sprintf("%d / %d / %d", b.PerfWin, b.PerfDraw, b.PerfLoss)
	}
	return fmt.Sprintf("%d / %d / %d", b.ProfWin, b.ProfDraw, b.ProfLoss)
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd%dh", days, hours)
}
