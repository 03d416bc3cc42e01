package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrade(pair string, openedAt int64) Trade {
	return Trade{
		ID:             pair + "-1",
		Pair:           pair,
		OpenedAt:       openedAt,
		OpenPrice:      decimal.NewFromInt(1),
		StartingAmount: decimal.NewFromInt(100),
		Capital:        decimal.NewFromInt(99),
		CurrencyAmount: decimal.NewFromInt(99),
		FeePaid:        decimal.NewFromInt(1),
		HighWater:      decimal.NewFromInt(1),
	}
}

func TestLedger_OpenAndClose(t *testing.T) {
	l := New(3)

	trade, err := l.Open(newTrade("BTC/USDT", 1000))
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, trade.Status)
	assert.Equal(t, SellReasonNone, trade.SellReason)
	assert.Equal(t, 1, l.NumOpen())

	closed, err := l.Close("BTC/USDT", Exit{
		At:      2000,
		Price:   decimal.NewFromInt(2),
		Capital: decimal.RequireFromString("196.02"),
		SellFee: decimal.RequireFromString("1.98"),
		Reason:  SellReasonSellSignal,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, int64(2000), closed.ClosedAt)
	assert.InDelta(t, 1.9602, closed.ProfitRatio, 1e-12)
	assert.True(t, closed.ProfitCurrency.Equal(decimal.RequireFromString("96.02")))
	assert.True(t, closed.FeePaid.Equal(decimal.RequireFromString("2.98")))
	assert.Equal(t, 0, l.NumOpen())

	last, ok := l.LastClosedAt("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, int64(2000), last)
}

func TestLedger_RejectsDuplicateOpenTrade(t *testing.T) {
	l := New(3)
	_, err := l.Open(newTrade("BTC/USDT", 1000))
	require.NoError(t, err)

	_, err = l.Open(newTrade("BTC/USDT", 2000))
	assert.ErrorIs(t, err, ErrDuplicateOpenTrade)
}

func TestLedger_RejectsBeyondMaxOpen(t *testing.T) {
	l := New(1)
	_, err := l.Open(newTrade("BTC/USDT", 1000))
	require.NoError(t, err)

	_, err = l.Open(newTrade("ETH/USDT", 1000))
	assert.ErrorIs(t, err, ErrMaxOpenTrades)
}

func TestLedger_CloseRequiresLaterTimestamp(t *testing.T) {
	l := New(1)
	_, err := l.Open(newTrade("BTC/USDT", 1000))
	require.NoError(t, err)

	_, err = l.Close("BTC/USDT", Exit{At: 1000, Capital: decimal.NewFromInt(99)})
	assert.ErrorIs(t, err, ErrCloseBeforeOpen)

	_, err = l.Close("ETH/USDT", Exit{At: 2000})
	assert.ErrorIs(t, err, ErrNoOpenTrade)
}

func TestLedger_ClosedTradeIsNotAliased(t *testing.T) {
	l := New(2)
	_, err := l.Open(newTrade("BTC/USDT", 1000))
	require.NoError(t, err)
	_, err = l.Close("BTC/USDT", Exit{At: 2000, Capital: decimal.NewFromInt(50), Reason: SellReasonStoploss})
	require.NoError(t, err)

	closed := l.ClosedTrades()
	closed[0].Capital = decimal.NewFromInt(1)

	assert.True(t, l.ClosedTrades()[0].Capital.Equal(decimal.NewFromInt(50)))
}

func TestLedger_Accessors(t *testing.T) {
	l := New(3)
	_, err := l.Open(newTrade("ETH/USDT", 1000))
	require.NoError(t, err)
	_, err = l.Open(newTrade("BTC/USDT", 1000))
	require.NoError(t, err)
	_, err = l.Close("ETH/USDT", Exit{At: 3000, Capital: decimal.NewFromInt(110), Reason: SellReasonROI})
	require.NoError(t, err)
	_, err = l.Open(newTrade("ETH/USDT", 4000))
	require.NoError(t, err)

	assert.Len(t, l.OpenTrades(), 2)
	assert.Len(t, l.ClosedTrades(), 1)
	assert.True(t, l.OpenCapital().Equal(decimal.NewFromInt(198)))

	all := l.Trades()
	require.Len(t, all, 3)
	assert.Equal(t, "BTC/USDT", all[0].Pair)
	assert.Equal(t, "ETH/USDT", all[1].Pair)
	assert.Equal(t, int64(4000), all[2].OpenedAt)

	byPair := l.TradesByPair()
	assert.Len(t, byPair["ETH/USDT"], 2)
	assert.Len(t, byPair["BTC/USDT"], 1)

	var closedPairs, openPairs []string
	for tr := range l.Closed() {
		closedPairs = append(closedPairs, tr.Pair)
	}
	for tr := range l.Opened() {
		openPairs = append(openPairs, tr.Pair)
	}
	assert.Equal(t, []string{"ETH/USDT"}, closedPairs)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, openPairs)
}

func TestTrade_DurationAndHoldMinutes(t *testing.T) {
	tr := newTrade("BTC/USDT", 0)
	assert.Zero(t, tr.Duration())
	assert.InDelta(t, 90, tr.HoldMinutes(90*60*1000), 1e-9)

	tr.Status = StatusClosed
	tr.ClosedAt = 3_600_000
	assert.Equal(t, "1h0m0s", tr.Duration().String())
}
