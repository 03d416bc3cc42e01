package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guyghost/backtester/internal/backtesting"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdir moves into an empty directory so no stray .env is picked up.
func chdir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad_YAML(t *testing.T) {
	chdir(t)
	path := writeFile(t, `
backtest:
  starting_capital: "500"
  fee: "0.002"
  max_open_trades: 2
  exposure_per_trade: "0.5"
  stoploss: -5
  stoploss_type: trailing
  roi:
    0: 4
    60: 2
    120: 0
  pairs: [ETH/USDT, ADA/USDT]
  randomize_pair_order: true
  seed: 42
  buy_cooldown: 3
  from: "2024-01-01"
  to: "2024-02-01T00:00:00Z"
  timeframe: 30m
strategy:
  short_ema_period: 5
storage:
  dsn: ":memory:"
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Backtest.StartingCapital.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 5, cfg.Strategy.ShortEMAPeriod)
	assert.Equal(t, 21, cfg.Strategy.LongEMAPeriod, "default kept")
	assert.Equal(t, ":memory:", cfg.Storage.DSN)

	bt, err := cfg.ToBacktesting()
	require.NoError(t, err)
	assert.True(t, bt.Fee.Equal(decimal.NewFromFloat(0.002)))
	assert.Equal(t, 2, bt.MaxOpenTrades)
	assert.Equal(t, backtesting.StoplossTrailing, bt.StoplossType)
	assert.Equal(t, []string{"ETH/USDT", "ADA/USDT"}, bt.Pairs)
	assert.True(t, bt.RandomizePairOrder)
	assert.Equal(t, uint64(42), bt.Seed)
	assert.Equal(t, 3, bt.BuyCooldown)
	assert.Equal(t, 30*time.Minute, bt.Timeframe.Duration())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), bt.From)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), bt.To)
	assert.Equal(t, map[int]float64{0: 4, 60: 2, 120: 0}, bt.ROI.Map())
	assert.Equal(t, "ema_cross", bt.StrategyName)
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)
	cfg, err := Load("")
	require.NoError(t, err)

	bt, err := cfg.ToBacktesting()
	require.NoError(t, err)
	def := backtesting.DefaultConfig()
	assert.True(t, bt.StartingCapital.Equal(def.StartingCapital))
	assert.Equal(t, def.MaxOpenTrades, bt.MaxOpenTrades)
	assert.Equal(t, backtesting.StoplossStatic, bt.StoplossType)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, bt.Pairs)
	assert.True(t, bt.ROI.IsEmpty())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ExplicitZeros(t *testing.T) {
	chdir(t)
	path := writeFile(t, `
backtest:
  fee: 0
strategy:
  atr_multiplier: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Strategy.ATRMultiplier)
	assert.Zero(t, *cfg.Strategy.ATRMultiplier, "zero disables the dynamic stop")

	bt, err := cfg.ToBacktesting()
	require.NoError(t, err)
	assert.True(t, bt.Fee.IsZero(), "zero fee kept, got %s", bt.Fee)
	assert.Equal(t, backtesting.DefaultConfig().Stoploss, bt.Stoploss, "absent stoploss defaulted")

	cfg, err = Load(writeFile(t, "backtest:\n  stoploss: 0\n"))
	require.NoError(t, err)
	_, err = cfg.ToBacktesting()
	assert.ErrorIs(t, err, backtesting.ErrStoplossRange)

	t.Setenv("BACKTEST_FEE", "0")
	cfg, err = Load("")
	require.NoError(t, err)
	bt, err = cfg.ToBacktesting()
	require.NoError(t, err)
	assert.True(t, bt.Fee.IsZero())
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("BACKTEST_STARTING_CAPITAL", "2500")
	t.Setenv("BACKTEST_MAX_OPEN_TRADES", "5")
	t.Setenv("BACKTEST_PAIRS", "SOL/USDT, DOT/USDT,")
	t.Setenv("BACKTEST_TIMEFRAME", "4h")
	t.Setenv("BACKTEST_FROM", "1704067200000")
	t.Setenv("BACKTEST_DB", "runs.db")
	t.Setenv("LOG_FORMAT", "json")

	path := writeFile(t, "backtest:\n  max_open_trades: 1\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Backtest.MaxOpenTrades, "env wins over file")
	assert.Equal(t, []string{"SOL/USDT", "DOT/USDT"}, cfg.Backtest.Pairs)
	assert.Equal(t, "runs.db", cfg.Storage.DSN)
	assert.Equal(t, "json", cfg.LoggerConfig().Format)

	bt, err := cfg.ToBacktesting()
	require.NoError(t, err)
	assert.True(t, bt.StartingCapital.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, int64(1704067200000), bt.From)
	assert.Equal(t, 4*time.Hour, bt.Timeframe.Duration())
}

func TestLoad_DotEnv(t *testing.T) {
	chdir(t)
	require.NoError(t, os.WriteFile(".env", []byte("BACKTEST_SEED=7\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("BACKTEST_SEED") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Backtest.Seed)
}

func TestLoad_Errors(t *testing.T) {
	chdir(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "backtest: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("BACKTEST_FEE", "abc")
	_, err = Load("")
	assert.Error(t, err)
}

func TestToBacktesting_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"standard stoploss type", func(c *Config) { c.Backtest.StoplossType = "standard" }, backtesting.ErrUnknownStoplossType},
		{"increasing roi", func(c *Config) { c.Backtest.ROI = map[int]float64{0: 1, 30: 2} }, backtesting.ErrMalformedROI},
		{"bad timeframe", func(c *Config) { c.Backtest.Timeframe = "7x" }, backtesting.ErrInvalidTimeframe},
		{"stoploss out of range", func(c *Config) { sl := -150.0; c.Backtest.Stoploss = &sl }, backtesting.ErrStoplossRange},
		{"currency mismatch", func(c *Config) { c.Backtest.Pairs = []string{"BTC/USDT", "ETH/BTC"} }, backtesting.ErrCurrencyMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			_, err := cfg.ToBacktesting()
			assert.ErrorIs(t, err, tt.target)
		})
	}

	cfg := Default()
	cfg.Backtest.From = "yesterday"
	_, err := cfg.ToBacktesting()
	assert.Error(t, err)
}
