package strategy

import (
	"testing"
	"time"

	"github.com/guyghost/backtester/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vShape falls for n candles then rises for n candles.
func vShape(n int) []market.Candle {
	var out []market.Candle
	price := 100.0
	for i := 0; i < 2*n; i++ {
		if i < n {
			price -= 1
		} else {
			price += 1.5
		}
		p := decimal.NewFromFloat(price)
		out = append(out, market.Candle{
			Timestamp: int64(i) * int64(time.Hour/time.Millisecond),
			Open:      p, High: p.Add(decimal.NewFromFloat(0.5)), Low: p.Sub(decimal.NewFromFloat(0.5)), Close: p,
		})
	}
	return out
}

func TestEMACrossConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EMACrossConfig)
		wantErr bool
	}{
		{"default", func(*EMACrossConfig) {}, false},
		{"short not below long", func(c *EMACrossConfig) { c.ShortPeriod = 21 }, true},
		{"zero rsi period", func(c *EMACrossConfig) { c.RSIPeriod = 0 }, true},
		{"overbought above 100", func(c *EMACrossConfig) { c.RSIOverbought = 120 }, true},
		{"negative atr multiplier", func(c *EMACrossConfig) { c.ATRMultiplier = -1 }, true},
		{"atr disabled", func(c *EMACrossConfig) { c.ATRMultiplier = 0; c.ATRPeriod = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEMACrossConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEMACross_Populate(t *testing.T) {
	cfg := EMACrossConfig{ShortPeriod: 3, LongPeriod: 6, RSIPeriod: 3, RSIOverbought: 100, ATRPeriod: 3, ATRMultiplier: 2}
	s, err := NewEMACross(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ema_cross", s.Name())

	in := vShape(15)
	out := s.Populate("BTC/USDT", in)
	require.Len(t, out, len(in))

	var buys []int
	for i, c := range out {
		if c.Buy {
			buys = append(buys, i)
		}
		assert.False(t, c.Buy && c.Sell, "candle %d", i)
	}
	require.Len(t, buys, 1, "one upward cross")
	assert.Greater(t, buys[0], 15, "cross happens on the way up")

	c := out[buys[0]]
	require.True(t, c.DynamicStoploss.Valid)
	assert.True(t, c.DynamicStoploss.Decimal.LessThan(c.Close))

	for _, c := range in {
		assert.False(t, c.Buy, "input untouched")
	}
}

func TestEMACross_SignalsUsePriorCandles(t *testing.T) {
	cfg := EMACrossConfig{ShortPeriod: 3, LongPeriod: 6, RSIPeriod: 3, RSIOverbought: 100, ATRPeriod: 3, ATRMultiplier: 2}
	s, err := NewEMACross(cfg)
	require.NoError(t, err)

	base := s.Populate("BTC/USDT", vShape(15))
	for i := 1; i < len(base); i++ {
		for _, close := range []int64{1, 1000} {
			in := vShape(15)
			in[i].Close = decimal.NewFromInt(close)
			out := s.Populate("BTC/USDT", in)
			assert.Equal(t, base[i].Buy, out[i].Buy, "buy on candle %d with close %d", i, close)
			assert.Equal(t, base[i].Sell, out[i].Sell, "sell on candle %d with close %d", i, close)
			assert.Equal(t, base[i].DynamicStoploss, out[i].DynamicStoploss, "stop on candle %d with close %d", i, close)
		}
	}
}

func TestEMACross_SellOnDownCross(t *testing.T) {
	cfg := EMACrossConfig{ShortPeriod: 2, LongPeriod: 4, RSIPeriod: 2, RSIOverbought: 100}
	s, err := NewEMACross(cfg)
	require.NoError(t, err)

	// Rise then fall: the short EMA drops under the long one.
	in := vShape(10)
	for i := range in {
		in[i].Close = decimal.NewFromInt(200).Sub(in[i].Close)
	}
	out := s.Populate("ETH/USDT", in)

	sells := 0
	for _, c := range out {
		if c.Sell {
			sells++
		}
		assert.False(t, c.Buy)
		assert.False(t, c.DynamicStoploss.Valid, "atr disabled")
	}
	assert.Equal(t, 1, sells)
}

func TestEMACross_RSIFilter(t *testing.T) {
	cfg := EMACrossConfig{ShortPeriod: 3, LongPeriod: 6, RSIPeriod: 3, RSIOverbought: 1}
	s, err := NewEMACross(cfg)
	require.NoError(t, err)

	for _, c := range s.Populate("BTC/USDT", vShape(15)) {
		assert.False(t, c.Buy, "overbought blocks entries")
	}
}

func TestEMACross_ShortInput(t *testing.T) {
	s, err := NewEMACross(DefaultEMACrossConfig())
	require.NoError(t, err)

	out := s.Populate("BTC/USDT", vShape(3))
	for _, c := range out {
		assert.False(t, c.Buy || c.Sell)
	}
	assert.Empty(t, s.Populate("BTC/USDT", nil))
}
