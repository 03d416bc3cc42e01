package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/guyghost/backtester/internal/backtesting"
	"github.com/guyghost/backtester/internal/config"
	"github.com/guyghost/backtester/internal/market"
	"github.com/guyghost/backtester/internal/report"
	"github.com/guyghost/backtester/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCandles_Sample(t *testing.T) {
	cfg := config.Default()
	cfg.Data.SampleCandles = 50
	btCfg, err := cfg.ToBacktesting()
	require.NoError(t, err)

	data, err := loadCandles(cfg, btCfg)
	require.NoError(t, err)
	require.Len(t, data, len(btCfg.Pairs))
	for _, pair := range btCfg.Pairs {
		assert.Len(t, data[pair], 50)
	}
}

func TestLoadCandles_MissingDir(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Dir = filepath.Join(t.TempDir(), "missing")
	btCfg, err := cfg.ToBacktesting()
	require.NoError(t, err)

	_, err = loadCandles(cfg, btCfg)
	assert.Error(t, err)
}

func TestWriteArtifactsAndArchive(t *testing.T) {
	cfg := config.Default()
	cfg.Data.SampleCandles = 200
	btCfg, err := cfg.ToBacktesting()
	require.NoError(t, err)

	data, err := loadCandles(cfg, btCfg)
	require.NoError(t, err)
	frames := make(map[string]*market.PairFrame)
	for pair, cs := range data {
		f, err := backtesting.NewFrame(pair, cs, btCfg.Timeframe)
		require.NoError(t, err)
		frames[pair] = f
	}
	sim, err := backtesting.NewSimulator(btCfg, frames)
	require.NoError(t, err)
	out, err := sim.Run(context.Background())
	require.NoError(t, err)
	res := report.New(out)

	dir := filepath.Join(t.TempDir(), "results")
	require.NoError(t, writeArtifacts(dir, res))
	for _, name := range []string{"trades_log.json", "charts.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	db := filepath.Join(t.TempDir(), "runs.db")
	require.NoError(t, archive(context.Background(), db, res))

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
}
