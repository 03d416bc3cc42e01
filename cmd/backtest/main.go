package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/guyghost/backtester/internal/backtesting"
	"github.com/guyghost/backtester/internal/config"
	"github.com/guyghost/backtester/internal/logger"
	"github.com/guyghost/backtester/internal/market"
	"github.com/guyghost/backtester/internal/report"
	"github.com/guyghost/backtester/internal/storage"
	"github.com/guyghost/backtester/internal/strategy"
	"github.com/guyghost/backtester/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	configFile     = flag.String("config", "", "Path to YAML configuration file")
	dataDir        = flag.String("data", "", "Directory with one <BASE>_<QUOTE>.csv per pair (overrides config)")
	generateSample = flag.Bool("generate-sample", false, "Generate sample data instead of loading from files")
	outputDir      = flag.String("output", "", "Directory for trades_log.json and charts.json (overrides config)")
	dbPath         = flag.String("db", "", "SQLite file to archive the run in (overrides config)")
	listRuns       = flag.Bool("list-runs", false, "List archived runs and exit")
	verbose        = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		logger.Default().Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlags(cfg)

	logCfg := cfg.LoggerConfig()
	if *verbose {
		logCfg.Level = logger.ParseLevel("debug")
	}
	logger.SetDefault(logger.New(logCfg))
	log := logger.Component("cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listRuns {
		return printRuns(ctx, cfg.Storage.DSN)
	}

	btCfg, err := cfg.ToBacktesting()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	strat, err := strategy.NewEMACross(strategy.EMACrossConfig{
		ShortPeriod:   cfg.Strategy.ShortEMAPeriod,
		LongPeriod:    cfg.Strategy.LongEMAPeriod,
		RSIPeriod:     cfg.Strategy.RSIPeriod,
		RSIOverbought: cfg.Strategy.RSIOverbought,
		ATRPeriod:     cfg.Strategy.ATRPeriod,
		ATRMultiplier: *cfg.Strategy.ATRMultiplier,
	})
	if err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	candles, err := loadCandles(cfg, btCfg)
	if err != nil {
		return err
	}

	frames := make(map[string]*market.PairFrame, len(candles))
	for pair, cs := range candles {
		f, err := backtesting.NewFrame(pair, strat.Populate(pair, cs), btCfg.Timeframe)
		if err != nil {
			return fmt.Errorf("invalid candles: %w", err)
		}
		frames[pair] = f
		log.Info("pair loaded", "pair", pair, "candles", f.Len(), "issues", len(f.Issues()))
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	sim, err := backtesting.NewSimulator(btCfg, frames,
		backtesting.WithLogger(logger.Default()),
		backtesting.WithRecorder(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}

	log.Info("running backtest",
		"strategy", strat.Name(),
		"pairs", len(btCfg.Pairs),
		"timeframe", btCfg.Timeframe.String(),
		"max_open_trades", btCfg.MaxOpenTrades,
	)
	started := time.Now()
	out, err := sim.Run(ctx)
	took := time.Since(started)

	endCapital := 0.0
	if out != nil {
		endCapital = out.EndCapital.InexactFloat64()
	}
	metrics.RunFinished(err, took, endCapital)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	res := report.New(out)
	log = log.Run(res.RunID)
	log.Info("backtest completed", "took", took.Round(time.Millisecond), "ticks", len(out.Ticks))

	if err := writeArtifacts(cfg.Output.Dir, res); err != nil {
		return err
	}

	if cfg.Storage.DSN != "" {
		if err := archive(ctx, cfg.Storage.DSN, res); err != nil {
			return err
		}
		log.Info("run archived", "db", cfg.Storage.DSN)
	}

	if cfg.Output.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.Output.MetricsFile, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	reporter := report.NewReporter(os.Stdout)
	if err := reporter.Render(res); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	log.Info(reporter.Summary(res))
	return nil
}

func applyFlags(cfg *config.Config) {
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *generateSample {
		cfg.Data.Dir = ""
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *dbPath != "" {
		cfg.Storage.DSN = *dbPath
	}
}

// loadCandles reads the configured pairs from disk, or generates sample
// series when no data directory is set.
func loadCandles(cfg *config.Config, btCfg backtesting.Config) (map[string][]market.Candle, error) {
	if cfg.Data.Dir != "" {
		data, err := market.LoadDir(cfg.Data.Dir, btCfg.Pairs)
		if err != nil {
			return nil, fmt.Errorf("failed to load data: %w", err)
		}
		return data, nil
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if btCfg.From != 0 {
		start = time.UnixMilli(btCfg.From).UTC()
	}
	data := make(map[string][]market.Candle, len(btCfg.Pairs))
	for i, pair := range btCfg.Pairs {
		data[pair] = market.GenerateSample(start, btCfg.Timeframe, cfg.Data.SampleCandles, 100*float64(i+1))
	}
	logger.Component("cli").Info("generated sample data", "pairs", len(data), "candles", cfg.Data.SampleCandles)
	return data, nil
}

func writeArtifacts(dir string, res *report.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := report.SaveTradesLog(filepath.Join(dir, "trades_log.json"), res.Trades); err != nil {
		return err
	}
	return report.SaveCharts(filepath.Join(dir, "charts.json"), res.Charts)
}

func archive(ctx context.Context, dsn string, res *report.Result) error {
	store, err := storage.NewSQLiteStore(dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, res)
}

func printRuns(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("no database configured, use -db")
	}
	store, err := storage.NewSQLiteStore(dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, 20)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-10s %-4s %8.2f%%  %d trades\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.ID, r.Strategy, r.Timeframe, r.ProfitRatio*100, r.NTrades)
	}
	return nil
}
