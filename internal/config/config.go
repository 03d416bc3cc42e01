// Package config loads backtest configuration from YAML, .env and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guyghost/backtester/internal/backtesting"
	"github.com/guyghost/backtester/internal/logger"
	"github.com/guyghost/backtester/internal/market"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of a backtest run.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Strategy StrategyConfig `yaml:"strategy"`
	Data     DataConfig     `yaml:"data"`
	Output   OutputConfig   `yaml:"output"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// BacktestConfig holds the simulator parameters.
type BacktestConfig struct {
	StartingCapital decimal.Decimal `yaml:"starting_capital"`
	// Fee and Stoploss are pointers so that an explicit zero is kept: a zero
	// fee is valid, a zero stoploss must reach validation.
	Fee                *decimal.Decimal `yaml:"fee"`
	MaxOpenTrades      int              `yaml:"max_open_trades"`
	ExposurePerTrade   decimal.Decimal  `yaml:"exposure_per_trade"`
	Stoploss           *float64         `yaml:"stoploss"`
	StoplossType       string           `yaml:"stoploss_type"`
	ROI                map[int]float64  `yaml:"roi"` // minutes held -> required ratio
	Pairs              []string         `yaml:"pairs"`
	RandomizePairOrder bool             `yaml:"randomize_pair_order"`
	Seed               uint64           `yaml:"seed"`
	BuyCooldown        int              `yaml:"buy_cooldown"`
	From               string           `yaml:"from"` // RFC 3339, date or unix ms
	To                 string           `yaml:"to"`
	Timeframe          string           `yaml:"timeframe"`
	CurrencySymbol     string           `yaml:"currency_symbol"`
	BTCMarketChange    *float64         `yaml:"btc_market_change"`
	BTCDrawdown        *float64         `yaml:"btc_drawdown"`
}

// StrategyConfig parameterises the reference strategy.
type StrategyConfig struct {
	Name            string   `yaml:"name"`
	ShortEMAPeriod  int      `yaml:"short_ema_period"`
	LongEMAPeriod   int      `yaml:"long_ema_period"`
	RSIPeriod       int      `yaml:"rsi_period"`
	RSIOverbought   float64  `yaml:"rsi_overbought"`
	ATRPeriod       int      `yaml:"atr_period"`
	ATRMultiplier   *float64 `yaml:"atr_multiplier"` // 0 disables the dynamic stoploss
	DynamicStoploss bool     `yaml:"dynamic_stoploss"`
}

// DataConfig tells where candles come from.
type DataConfig struct {
	Dir string `yaml:"dir"` // one <BASE>_<QUOTE>.csv per pair; empty generates samples
	// SampleCandles is the number of generated candles per pair when Dir is empty.
	SampleCandles int `yaml:"sample_candles"`
}

// OutputConfig controls the artifacts written after a run.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	MetricsFile string `yaml:"metrics_file"` // Prometheus text exposition, optional
}

// StorageConfig controls the run archive.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file, ":memory:", or empty to disable
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, then a .env file if present, then the
// BACKTEST_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)
	return &cfg, nil
}

// ToBacktesting converts and validates the simulator configuration.
func (c *Config) ToBacktesting() (backtesting.Config, error) {
	b := c.Backtest
	def := backtesting.DefaultConfig()
	if b.Fee != nil {
		def.Fee = *b.Fee
	}
	if b.Stoploss != nil {
		def.Stoploss = *b.Stoploss
	}
	out := backtesting.Config{
		StartingCapital:    b.StartingCapital,
		Fee:                def.Fee,
		MaxOpenTrades:      b.MaxOpenTrades,
		ExposurePerTrade:   b.ExposurePerTrade,
		Stoploss:           def.Stoploss,
		Pairs:              append([]string(nil), b.Pairs...),
		RandomizePairOrder: b.RandomizePairOrder,
		Seed:               b.Seed,
		BuyCooldown:        b.BuyCooldown,
		CurrencySymbol:     b.CurrencySymbol,
		StrategyName:       c.Strategy.Name,
		BTCMarketChange:    b.BTCMarketChange,
		BTCDrawdown:        b.BTCDrawdown,
	}

	st, err := backtesting.ParseStoplossType(b.StoplossType)
	if err != nil {
		return out, fmt.Errorf("config: stoploss_type: %w", err)
	}
	out.StoplossType = st

	roi, err := backtesting.NewROITable(b.ROI)
	if err != nil {
		return out, fmt.Errorf("config: roi: %w", err)
	}
	out.ROI = roi

	tf, err := market.ParseTimeframe(b.Timeframe)
	if err != nil {
		return out, fmt.Errorf("config: timeframe: %w", err)
	}
	out.Timeframe = tf

	if out.From, err = parseTime(b.From); err != nil {
		return out, fmt.Errorf("config: from: %w", err)
	}
	if out.To, err = parseTime(b.To); err != nil {
		return out, fmt.Errorf("config: to: %w", err)
	}

	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      logger.ParseLevel(c.Log.Level),
		Format:     c.Log.Format,
		OutputPath: c.Log.File,
	}
}

// applyEnvOverrides overrides values with BACKTEST_* variables when present.
func applyEnvOverrides(cfg *Config) error {
	b := &cfg.Backtest

	if v := os.Getenv("BACKTEST_STARTING_CAPITAL"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("BACKTEST_STARTING_CAPITAL: %w", err)
		}
		b.StartingCapital = d
	}
	if v := os.Getenv("BACKTEST_FEE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("BACKTEST_FEE: %w", err)
		}
		b.Fee = &d
	}
	if v := os.Getenv("BACKTEST_MAX_OPEN_TRADES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BACKTEST_MAX_OPEN_TRADES: %w", err)
		}
		b.MaxOpenTrades = n
	}
	if v := os.Getenv("BACKTEST_STOPLOSS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BACKTEST_STOPLOSS: %w", err)
		}
		b.Stoploss = &f
	}
	if v := os.Getenv("BACKTEST_STOPLOSS_TYPE"); v != "" {
		b.StoplossType = v
	}
	if v := os.Getenv("BACKTEST_PAIRS"); v != "" {
		b.Pairs = splitList(v)
	}
	if v := os.Getenv("BACKTEST_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("BACKTEST_SEED: %w", err)
		}
		b.Seed = n
	}
	if v := os.Getenv("BACKTEST_TIMEFRAME"); v != "" {
		b.Timeframe = v
	}
	if v := os.Getenv("BACKTEST_FROM"); v != "" {
		b.From = v
	}
	if v := os.Getenv("BACKTEST_TO"); v != "" {
		b.To = v
	}
	if v := os.Getenv("BACKTEST_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("BACKTEST_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("BACKTEST_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// setDefaults fills the zero values. Fee, Stoploss and ATRMultiplier are only
// defaulted when absent, so an explicit zero survives.
func setDefaults(cfg *Config) {
	b := &cfg.Backtest
	def := backtesting.DefaultConfig()

	if b.StartingCapital.IsZero() {
		b.StartingCapital = def.StartingCapital
	}
	if b.Fee == nil {
		b.Fee = &def.Fee
	}
	if b.MaxOpenTrades == 0 {
		b.MaxOpenTrades = def.MaxOpenTrades
	}
	if b.ExposurePerTrade.IsZero() {
		b.ExposurePerTrade = def.ExposurePerTrade
	}
	if b.Stoploss == nil {
		b.Stoploss = &def.Stoploss
	}
	if b.StoplossType == "" {
		b.StoplossType = string(def.StoplossType)
	}
	if b.Timeframe == "" {
		b.Timeframe = def.Timeframe.String()
	}
	if b.CurrencySymbol == "" {
		b.CurrencySymbol = def.CurrencySymbol
	}
	if len(b.Pairs) == 0 {
		b.Pairs = []string{"BTC/" + b.CurrencySymbol, "ETH/" + b.CurrencySymbol}
	}

	s := &cfg.Strategy
	if s.Name == "" {
		s.Name = def.StrategyName
	}
	if s.ShortEMAPeriod == 0 {
		s.ShortEMAPeriod = 9
	}
	if s.LongEMAPeriod == 0 {
		s.LongEMAPeriod = 21
	}
	if s.RSIPeriod == 0 {
		s.RSIPeriod = 14
	}
	if s.RSIOverbought == 0 {
		s.RSIOverbought = 70
	}
	if s.ATRPeriod == 0 {
		s.ATRPeriod = 14
	}
	if s.ATRMultiplier == nil {
		mult := 2.0
		s.ATRMultiplier = &mult
	}

	if cfg.Data.SampleCandles <= 0 {
		cfg.Data.SampleCandles = 500
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "user_data/backtest_results"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTime accepts unix milliseconds, RFC 3339 or a YYYY-MM-DD date (UTC).
// Empty means unbounded.
func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return t.UnixMilli(), nil
}
