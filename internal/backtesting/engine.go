package backtesting

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
	"github.com/guyghost/backtester/internal/ledger"
	"github.com/guyghost/backtester/internal/logger"
	"github.com/guyghost/backtester/internal/market"
	"github.com/shopspring/decimal"
)

var tradeNamespace = uuid.MustParse("6f1d3c52-8f7e-4c1b-9a55-2c1e0b7d9a10")

// Recorder receives run events for metrics. Implementations must tolerate
// being called once per tick and pair.
type Recorder interface {
	TradeOpened(pair string)
	TradeClosed(reason string)
	BuyRejected(reason string)
	DataWarning(kind string)
	ExitConflict()
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger used for trade and data events.
func WithLogger(l *logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l.Component("backtesting")
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Simulator) {
		s.recorder = r
	}
}

// Simulator is the per-tick trading state machine. A Simulator runs once.
type Simulator struct {
	config   Config
	frames   map[string]*market.PairFrame
	stoploss Stoploss
	rng      *rand.Rand
	log      *logger.Logger
	recorder Recorder

	one decimal.Decimal
	net decimal.Decimal // 1 - fee

	// State
	ledger     *ledger.Ledger
	free       decimal.Decimal
	realised   decimal.Decimal
	capital    []Point
	realisedPt []Point
	rejections map[RejectReason]int
	conflicts  int
	ran        bool
}

// NewSimulator validates cfg and prepares a run over frames. Configured pairs
// without a frame simply never trade.
func NewSimulator(cfg Config, frames map[string]*market.PairFrame, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		config:     cfg,
		frames:     make(map[string]*market.PairFrame, len(cfg.Pairs)),
		stoploss:   cfg.StoplossRule(),
		log:        logger.Component("backtesting"),
		one:        decimal.NewFromInt(1),
		ledger:     ledger.New(cfg.MaxOpenTrades),
		free:       cfg.StartingCapital,
		rejections: make(map[RejectReason]int),
	}
	s.net = s.one.Sub(cfg.Fee)
	if cfg.RandomizePairOrder {
		s.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}

	for _, pair := range cfg.Pairs {
		if f, ok := frames[pair]; ok && f != nil {
			s.frames[pair] = f
		}
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run simulates every tick in the configured window. Trades still open at
// the end stay open. Cancelling ctx abandons the run between ticks.
func (s *Simulator) Run(ctx context.Context) (*Outcome, error) {
	if s.ran {
		return nil, fmt.Errorf("simulator already ran")
	}
	s.ran = true

	issues := s.reportDataIssues()
	ticks := s.ticks()

	step := s.config.Timeframe.Milliseconds()
	origin := int64(0)
	if len(ticks) > 0 {
		origin = ticks[0] - step
	}
	s.capital = append(s.capital, Point{Timestamp: origin, Value: s.config.StartingCapital})
	s.realisedPt = append(s.realisedPt, Point{Timestamp: origin, Value: s.config.StartingCapital})
	s.realised = s.config.StartingCapital

	pairs := make([]string, len(s.config.Pairs))
	copy(pairs, s.config.Pairs)

	for _, t := range ticks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.rng != nil {
			s.rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
		}
		if err := s.tick(t, pairs); err != nil {
			s.log.WithError(err).Error("Simulation aborted", "timestamp", t)
			return nil, err
		}
	}

	end := s.free.Add(s.ledger.OpenCapital())
	s.log.Info("Backtest finished",
		"ticks", len(ticks),
		"closed_trades", len(s.ledger.ClosedTrades()),
		"open_trades", s.ledger.NumOpen(),
		"end_capital", end.StringFixed(2),
	)

	return &Outcome{
		Config:         s.config,
		Frames:         s.frames,
		Ledger:         s.ledger,
		CapitalSeries:  s.capital,
		RealisedSeries: s.realisedPt,
		Ticks:          ticks,
		FreeBudget:     s.free,
		EndCapital:     end,
		Rejections:     s.rejections,
		Conflicts:      s.conflicts,
		DataIssues:     issues,
	}, nil
}

// tick runs the exit pass for every pair, then the entry pass, then records
// the capital series.
func (s *Simulator) tick(t int64, pairs []string) error {
	candles := make(map[string]market.Candle, len(pairs))
	for _, pair := range pairs {
		f, ok := s.frames[pair]
		if !ok {
			continue
		}
		c, ok := f.At(t)
		if !ok {
			if f.Covers(t) {
				// The last valid candle keeps marking the trade; no exit or entry.
				s.log.Pair(pair).Debug("No candle for tick, holding previous mark", "timestamp", t)
			}
			continue
		}
		candles[pair] = c
	}

	for _, pair := range pairs {
		c, ok := candles[pair]
		if !ok {
			continue
		}
		if err := s.exit(pair, t, c); err != nil {
			return err
		}
	}

	for _, pair := range pairs {
		c, ok := candles[pair]
		if !ok || !c.Buy {
			continue
		}
		if err := s.enter(pair, t, c); err != nil {
			return err
		}
	}

	if s.free.IsNegative() {
		return newError(KindSimulationInvariant, "", t, ErrNegativeBudget)
	}

	s.capital = append(s.capital, Point{Timestamp: t, Value: s.free.Add(s.ledger.OpenCapital())})
	s.realisedPt = append(s.realisedPt, Point{Timestamp: t, Value: s.realised})
	return nil
}

// exit updates the open trade of pair on candle c and closes it when ROI,
// stoploss or a sell signal fires.
func (s *Simulator) exit(pair string, t int64, c market.Candle) error {
	trade, ok := s.ledger.Position(pair)
	if !ok {
		return nil
	}

	if trade.HighWater.IsPositive() {
		dd := c.Low.Div(trade.HighWater).Sub(s.one).InexactFloat64()
		if dd < trade.MaxSeenDrawdown {
			trade.MaxSeenDrawdown = dd
		}
	}
	if c.High.GreaterThan(trade.HighWater) {
		trade.HighWater = c.High
	}

	roiPrice, roiHit := s.roi(trade, t, c)
	stopPrice, stopHit := s.stoploss.Evaluate(trade, c)

	var (
		reason ledger.SellReason
		price  decimal.Decimal
	)
	switch {
	case roiHit && stopHit:
		return s.closeConflict(trade, t, c)
	case roiHit:
		reason, price = ledger.SellReasonROI, roiPrice
	case stopHit:
		reason, price = ledger.SellReasonStoploss, stopPrice
	case c.Sell:
		reason, price = ledger.SellReasonSellSignal, c.Close
	default:
		trade.Capital = trade.CurrencyAmount.Mul(c.Close).Mul(s.net)
		trade.ProfitRatio = s.ratio(trade.Capital, trade.StartingAmount)
		return nil
	}

	gross := trade.CurrencyAmount.Mul(price)
	fee := gross.Mul(s.config.Fee)
	return s.close(trade, ledger.Exit{
		At:       t,
		Price:    price,
		Capital:  gross.Sub(fee),
		SellFee:  fee,
		Reason:   reason,
		Drawdown: trade.MaxSeenDrawdown,
	})
}

// closeConflict closes a trade whose ROI and stoploss both fired within one
// candle. The intra-candle order is unknown so the trade returns its stake
// minus both fees.
func (s *Simulator) closeConflict(trade *ledger.Trade, t int64, c market.Candle) error {
	s.conflicts++
	if s.recorder != nil {
		s.recorder.ExitConflict()
	}
	s.log.Pair(trade.Pair).Warn("ROI and stoploss hit on the same candle", "timestamp", t)

	afterBuy := trade.StartingAmount.Mul(s.net)
	fee := afterBuy.Mul(s.config.Fee)
	return s.close(trade, ledger.Exit{
		At:       t,
		Price:    c.Open,
		Capital:  afterBuy.Sub(fee),
		SellFee:  fee,
		Reason:   ledger.SellReasonStoplossAndROI,
		Drawdown: trade.MaxSeenDrawdown,
	})
}

func (s *Simulator) close(trade *ledger.Trade, exit ledger.Exit) error {
	closed, err := s.ledger.Close(trade.Pair, exit)
	if err != nil {
		return newError(KindSimulationInvariant, trade.Pair, exit.At, err)
	}

	s.free = s.free.Add(closed.Capital)
	s.realised = s.realised.Add(closed.ProfitCurrency)

	if s.recorder != nil {
		s.recorder.TradeClosed(string(closed.SellReason))
	}
	s.log.Pair(closed.Pair).Trade("trade_closed", map[string]any{
		"timestamp":    exit.At,
		"reason":       string(closed.SellReason),
		"close_price":  closed.ClosePrice.String(),
		"profit_ratio": closed.ProfitRatio,
	})
	return nil
}

// roi returns the take-profit execution price when the ROI target in force
// for the trade's hold time is reached within c.
func (s *Simulator) roi(trade *ledger.Trade, t int64, c market.Candle) (decimal.Decimal, bool) {
	required, ok := s.config.ROI.Required(trade.HoldMinutes(t))
	if !ok {
		return decimal.Zero, false
	}
	target := trade.OpenPrice.Mul(s.one.Add(decimal.NewFromFloat(required).Div(decimal.NewFromInt(100))))
	if c.High.LessThan(target) {
		return decimal.Zero, false
	}
	return decimal.Max(c.Open, target), true
}

// enter admits a buy signal on pair when no trade is open there, the
// cooldown has elapsed and a slot is free.
func (s *Simulator) enter(pair string, t int64, c market.Candle) error {
	if _, open := s.ledger.Position(pair); open {
		return nil
	}

	if last, ok := s.ledger.LastClosedAt(pair); ok {
		if t <= last+int64(s.config.BuyCooldown)*s.config.Timeframe.Milliseconds() {
			s.reject(pair, t, RejectCooldown)
			return nil
		}
	}

	nOpen := s.ledger.NumOpen()
	if nOpen >= s.config.MaxOpenTrades {
		s.reject(pair, t, RejectMaxOpenTrades)
		return nil
	}

	slots := min(s.config.MaxOpenTrades, len(s.config.Pairs)) - nOpen
	if slots <= 0 || !c.Open.IsPositive() {
		s.reject(pair, t, RejectBudget)
		return nil
	}
	stake := s.free.Div(decimal.NewFromInt(int64(slots))).Mul(s.config.ExposurePerTrade)
	if !stake.IsPositive() || stake.GreaterThan(s.free) {
		s.reject(pair, t, RejectBudget)
		return nil
	}

	buyFee := stake.Mul(s.config.Fee)
	amount := stake.Sub(buyFee).Div(c.Open)
	trade := ledger.Trade{
		ID:             uuid.NewSHA1(tradeNamespace, fmt.Appendf(nil, "%s@%d", pair, t)).String(),
		Pair:           pair,
		OpenedAt:       t,
		OpenPrice:      c.Open,
		StartingAmount: stake,
		CurrencyAmount: amount,
		FeePaid:        buyFee,
		HighWater:      c.Open,
	}
	trade.Capital = amount.Mul(c.Close).Mul(s.net)
	trade.ProfitRatio = s.ratio(trade.Capital, stake)

	if _, err := s.ledger.Open(trade); err != nil {
		return newError(KindSimulationInvariant, pair, t, err)
	}
	s.free = s.free.Sub(stake)

	if s.recorder != nil {
		s.recorder.TradeOpened(pair)
	}
	s.log.Pair(pair).Trade("trade_opened", map[string]any{
		"timestamp":  t,
		"open_price": c.Open.String(),
		"stake":      stake.String(),
	})
	return nil
}

func (s *Simulator) reject(pair string, t int64, reason RejectReason) {
	s.rejections[reason]++
	if s.recorder != nil {
		s.recorder.BuyRejected(string(reason))
	}
	s.log.Pair(pair).Debug("Buy signal rejected", "timestamp", t, "reason", string(reason))
}

func (s *Simulator) ratio(capital, stake decimal.Decimal) float64 {
	if !stake.IsPositive() {
		return 0
	}
	return capital.Div(stake).InexactFloat64()
}

// ticks returns the union of candle timestamps within [From, To).
func (s *Simulator) ticks() []int64 {
	seen := make(map[int64]struct{})
	for _, f := range s.frames {
		for _, c := range f.Between(s.config.From, s.config.To) {
			seen[c.Timestamp] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// reportDataIssues logs and counts the inconsistencies found while the
// frames were built.
func (s *Simulator) reportDataIssues() []market.DataIssue {
	var issues []market.DataIssue
	for _, pair := range s.config.Pairs {
		f, ok := s.frames[pair]
		if !ok {
			s.log.Pair(pair).Warn("No candles for pair")
			continue
		}
		for _, issue := range f.Issues() {
			issues = append(issues, issue)
			if s.recorder != nil {
				s.recorder.DataWarning(string(issue.Kind))
			}
			s.log.Pair(pair).DataIssue(map[string]any{
				"kind":      string(issue.Kind),
				"timestamp": issue.Timestamp,
				"detail":    issue.Detail,
			})
		}
	}
	return issues
}
