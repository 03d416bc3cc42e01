package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hour = int64(time.Hour / time.Millisecond)

func at(ts ...int64) []Candle {
	out := make([]Candle, len(ts))
	for i, t := range ts {
		p := decimal.NewFromInt(int64(i + 1))
		out[i] = Candle{Timestamp: t, Open: p, High: p, Low: p, Close: p}
	}
	return out
}

func TestNewPairFrame(t *testing.T) {
	tf := MustParseTimeframe("1h")

	tests := []struct {
		name   string
		ts     []int64
		kept   []int64
		issues []IssueKind
	}{
		{"clean", []int64{0, hour, 2 * hour}, []int64{0, hour, 2 * hour}, nil},
		{"duplicate dropped", []int64{0, hour, hour, 2 * hour}, []int64{0, hour, 2 * hour}, []IssueKind{IssueDuplicate}},
		{"unaligned dropped", []int64{0, hour + 60000, 2 * hour}, []int64{0, 2 * hour}, []IssueKind{IssueUnaligned, IssueGap}},
		{"gap reported once", []int64{0, 4 * hour}, []int64{0, 4 * hour}, []IssueKind{IssueGap}},
		{"empty", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewPairFrame("BTC/USDT", at(tt.ts...), tf)
			require.NoError(t, err)

			var kept []int64
			for _, c := range f.Candles() {
				kept = append(kept, c.Timestamp)
			}
			assert.Equal(t, tt.kept, kept)

			var kinds []IssueKind
			for _, issue := range f.Issues() {
				assert.Equal(t, "BTC/USDT", issue.Pair)
				kinds = append(kinds, issue.Kind)
			}
			assert.Equal(t, tt.issues, kinds)
		})
	}
}

func TestNewPairFrame_NonMonotone(t *testing.T) {
	_, err := NewPairFrame("BTC/USDT", at(hour, 0), MustParseTimeframe("1h"))
	assert.ErrorIs(t, err, ErrNonMonotoneTimestamp)
}

func TestPairFrame_Lookups(t *testing.T) {
	f, err := NewPairFrame("BTC/USDT", at(0, hour, 3*hour), MustParseTimeframe("1h"))
	require.NoError(t, err)

	c, ok := f.At(hour)
	require.True(t, ok)
	assert.True(t, c.Close.Equal(decimal.NewFromInt(2)))
	_, ok = f.At(2 * hour)
	assert.False(t, ok)

	c, ok = f.Before(3 * hour)
	require.True(t, ok)
	assert.Equal(t, hour, c.Timestamp)
	_, ok = f.Before(0)
	assert.False(t, ok)

	assert.True(t, f.Covers(2*hour))
	assert.False(t, f.Covers(4*hour))
	assert.Equal(t, int64(0), f.FirstTimestamp())
	assert.Equal(t, 3*hour, f.LastTimestamp())
	assert.Equal(t, 3, f.Len())

	assert.Len(t, f.Between(hour, 3*hour), 1, "to is exclusive")
	assert.Len(t, f.Between(0, 0), 3, "zero bounds are open")

	cs := f.Candles()
	cs[0].Buy = true
	c, _ = f.At(0)
	assert.False(t, c.Buy, "Candles returns a copy")
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1m", time.Minute, false},
		{"30m", 30 * time.Minute, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"", 0, true},
		{"h", 0, true},
		{"0h", 0, true},
		{"5y", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tf, err := ParseTimeframe(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeframe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tf.Duration())
			assert.Equal(t, tt.want.Milliseconds(), tf.Milliseconds())
			assert.Equal(t, tt.in, tf.String())
		})
	}

	assert.Panics(t, func() { MustParseTimeframe("bad") })
}

func TestParsePair(t *testing.T) {
	base, quote, err := ParsePair("ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH", base)
	assert.Equal(t, "USDT", quote)
	assert.Equal(t, "ETH_USDT.csv", PairFileName("ETH/USDT"))

	for _, bad := range []string{"ETHUSDT", "/USDT", "ETH/", "A/B/C"} {
		_, _, err := ParsePair(bad)
		assert.ErrorIs(t, err, ErrInvalidPair, bad)
	}
}
