package backtesting

import (
	"github.com/guyghost/backtester/internal/ledger"
	"github.com/guyghost/backtester/internal/market"
	"github.com/shopspring/decimal"
)

// Config holds the parameters of a backtest run. They are fixed for the
// whole run.
type Config struct {
	// Capital
	StartingCapital decimal.Decimal
	Fee             decimal.Decimal // per execution, e.g. 0.001 for 0.1%

	// Position sizing
	MaxOpenTrades    int
	ExposurePerTrade decimal.Decimal // fraction of a slot, in (0, 1]

	// Exits
	Stoploss     float64 // percent, e.g. -10
	StoplossType StoplossType
	ROI          ROITable

	// Pairs and ordering
	Pairs              []string
	RandomizePairOrder bool
	Seed               uint64
	BuyCooldown        int // ticks after a close before the pair may buy again

	// Time range, unix ms, [From, To). Zero is unbounded.
	From      int64
	To        int64
	Timeframe market.Timeframe

	CurrencySymbol string
	StrategyName   string

	// Optional BTC baseline for the report.
	BTCMarketChange *float64
	BTCDrawdown     *float64
}

// DefaultConfig returns default backtesting configuration
func DefaultConfig() Config {
	return Config{
		StartingCapital:  decimal.NewFromInt(1000),
		Fee:              decimal.NewFromFloat(0.001), // 0.1%
		MaxOpenTrades:    3,
		ExposurePerTrade: decimal.NewFromInt(1),
		Stoploss:         -10,
		StoplossType:     StoplossStatic,
		Timeframe:        market.MustParseTimeframe("1h"),
		CurrencySymbol:   "USDT",
		StrategyName:     "ema_cross",
	}
}

// StoplossRule returns the stoploss variant configured for the run.
func (c Config) StoplossRule() Stoploss {
	return Stoploss{Type: c.StoplossType, Percent: c.Stoploss}
}

// Validate checks the configuration before a run.
func (c Config) Validate() error {
	if !c.StartingCapital.IsPositive() {
		return configError("starting_capital: %w", ErrMissingParameter)
	}
	if c.Fee.IsNegative() || c.Fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return configError("fee %s: %w", c.Fee, ErrParameterRange)
	}
	if c.MaxOpenTrades < 1 {
		return configError("max_open_trades %d: %w", c.MaxOpenTrades, ErrMaxOpenTrades)
	}
	if !c.ExposurePerTrade.IsPositive() || c.ExposurePerTrade.GreaterThan(decimal.NewFromInt(1)) {
		return configError("exposure_per_trade %s: %w", c.ExposurePerTrade, ErrParameterRange)
	}
	if c.Stoploss < -100 || c.Stoploss >= 0 {
		return configError("stoploss %v: %w", c.Stoploss, ErrStoplossRange)
	}
	if _, err := ParseStoplossType(string(c.StoplossType)); err != nil {
		return configError("stoploss_type: %w", err)
	}
	if c.BuyCooldown < 0 {
		return configError("buy_cooldown %d: %w", c.BuyCooldown, ErrParameterRange)
	}
	if c.Timeframe.IsZero() {
		return configError("timeframe: %w", ErrInvalidTimeframe)
	}
	if c.To != 0 && c.To <= c.From {
		return configError("backtesting_to %d not after backtesting_from %d: %w", c.To, c.From, ErrParameterRange)
	}
	if len(c.Pairs) == 0 {
		return configError("pairs: %w", ErrMissingParameter)
	}

	quote := c.CurrencySymbol
	seen := make(map[string]bool, len(c.Pairs))
	for _, pair := range c.Pairs {
		_, q, err := market.ParsePair(pair)
		if err != nil {
			return configError("pairs: %w", err)
		}
		if seen[pair] {
			return configError("pair %s listed twice: %w", pair, ErrParameterRange)
		}
		seen[pair] = true
		if quote == "" {
			quote = q
		}
		if q != quote {
			return configError("%s quoted in %s, expected %s: %w", pair, q, quote, ErrCurrencyMismatch)
		}
	}
	return nil
}

// Point is one entry of a capital series.
type Point struct {
	Timestamp int64
	Value     decimal.Decimal
}

// RejectReason explains why a buy signal did not open a trade.
type RejectReason string

const (
	RejectMaxOpenTrades RejectReason = "max_open_trades"
	RejectCooldown      RejectReason = "cooldown"
	RejectBudget        RejectReason = "budget"
)

// Outcome is the state left by a finished simulation. The statistics engine
// reads it and never mutates it.
type Outcome struct {
	Config Config
	Frames map[string]*market.PairFrame
	Ledger *ledger.Ledger

	// CapitalSeries is free budget plus open trade capital per tick, and
	// RealisedSeries is starting capital plus closed profit per tick. Both
	// start with a synthetic point holding the starting capital.
	CapitalSeries  []Point
	RealisedSeries []Point

	Ticks      []int64
	FreeBudget decimal.Decimal
	EndCapital decimal.Decimal

	Rejections map[RejectReason]int
	// Conflicts counts candles where ROI and stoploss both fired.
	Conflicts  int
	DataIssues []market.DataIssue
}

// TotalRejections returns the number of refused buy signals.
func (o *Outcome) TotalRejections() int {
	n := 0
	for _, v := range o.Rejections {
		n += v
	}
	return n
}

// DurationDays returns the simulated span in days, at least one timeframe.
func (o *Outcome) DurationDays() float64 {
	if len(o.Ticks) == 0 {
		return 0
	}
	span := o.Ticks[len(o.Ticks)-1] - o.Ticks[0] + o.Config.Timeframe.Milliseconds()
	return float64(span) / float64(24*60*60*1000)
}
