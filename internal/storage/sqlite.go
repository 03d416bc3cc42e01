// Package storage archives finished backtest runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guyghost/backtester/internal/report"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id                    TEXT PRIMARY KEY,
    created_at            DATETIME NOT NULL,
    strategy              TEXT     NOT NULL,
    timeframe             TEXT     NOT NULL,
    currency              TEXT     NOT NULL,
    from_ts               INTEGER  NOT NULL,
    to_ts                 INTEGER  NOT NULL,
    starting_capital      TEXT     NOT NULL,
    end_capital           TEXT     NOT NULL,
    profit_ratio          REAL     NOT NULL,
    max_seen_drawdown     REAL     NOT NULL,
    max_realised_drawdown REAL     NOT NULL,
    n_trades              INTEGER  NOT NULL,
    n_open_trades         INTEGER  NOT NULL,
    sharpe_90d            REAL
);

CREATE TABLE IF NOT EXISTS trades (
    run_id          TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    pair            TEXT    NOT NULL,
    status          TEXT    NOT NULL,
    opened_at       INTEGER NOT NULL,
    closed_at       INTEGER,
    open_price      TEXT    NOT NULL,
    close_price     TEXT,
    starting_amount TEXT    NOT NULL,
    capital         TEXT    NOT NULL,
    currency_amount TEXT    NOT NULL,
    fee_paid        TEXT    NOT NULL,
    profit_ratio    REAL    NOT NULL,
    sell_reason     TEXT    NOT NULL,
    PRIMARY KEY (run_id, pair, opened_at)
);

CREATE TABLE IF NOT EXISTS capital (
    run_id    TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    ts        INTEGER NOT NULL,
    seen      TEXT    NOT NULL,
    realised  TEXT    NOT NULL,
    seq       INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the stored headline of a run.
type RunSummary struct {
	ID                  string
	CreatedAt           time.Time
	Strategy            string
	Timeframe           string
	Currency            string
	From                int64
	To                  int64
	StartingCapital     decimal.Decimal
	EndCapital          decimal.Decimal
	ProfitRatio         float64
	MaxSeenDrawdown     float64
	MaxRealisedDrawdown float64
	NTrades             int
	NOpenTrades         int
	Sharpe90d           *float64
}

// StoredTrade is a trade row of a stored run.
type StoredTrade struct {
	Pair           string
	Status         string
	OpenedAt       int64
	ClosedAt       *int64
	OpenPrice      decimal.Decimal
	ClosePrice     decimal.NullDecimal
	StartingAmount decimal.Decimal
	Capital        decimal.Decimal
	CurrencyAmount decimal.Decimal
	FeePaid        decimal.Decimal
	ProfitRatio    float64
	SellReason     string
}

// SQLiteStore persists runs in a SQLite database (pure Go, no cgo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path. Use ":memory:" for
// a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer; also keeps :memory: on one connection
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores the summary, trades and capital series of res in one
// transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, res *report.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin: %w", err)
	}
	defer tx.Rollback()

	m := res.Main
	var sharpe sql.NullFloat64
	if m.Sharpe90d != nil {
		sharpe = sql.NullFloat64{Float64: *m.Sharpe90d, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, strategy, timeframe, currency, from_ts, to_ts,
			starting_capital, end_capital, profit_ratio, max_seen_drawdown, max_realised_drawdown,
			n_trades, n_open_trades, sharpe_90d)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, time.Now().UTC(), m.StrategyName, m.Timeframe, m.CurrencySymbol, m.From, m.To,
		m.StartingCapital.String(), m.EndCapital.String(), m.OverallProfitRatio,
		m.MaxSeenDrawdown.Ratio, m.MaxRealisedDrawdown, m.NTrades, m.NLeftOpenTrades, sharpe,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", res.RunID, err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, pair, status, opened_at, closed_at, open_price, close_price,
			starting_amount, capital, currency_amount, fee_paid, profit_ratio, sell_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare trades: %w", err)
	}
	defer tradeStmt.Close()

	for _, t := range res.Trades {
		var closedAt sql.NullInt64
		var closePrice sql.NullString
		if !t.IsOpen() {
			closedAt = sql.NullInt64{Int64: t.ClosedAt, Valid: true}
			closePrice = sql.NullString{String: t.ClosePrice.String(), Valid: true}
		}
		_, err := tradeStmt.ExecContext(ctx, res.RunID, t.Pair, string(t.Status), t.OpenedAt, closedAt,
			t.OpenPrice.String(), closePrice, t.StartingAmount.String(), t.Capital.String(),
			t.CurrencyAmount.String(), t.FeePaid.String(), t.ProfitRatio, string(t.SellReason))
		if err != nil {
			return fmt.Errorf("storage.SaveRun: insert trade %s@%d: %w", t.Pair, t.OpenedAt, err)
		}
	}

	capStmt, err := tx.PrepareContext(ctx, `INSERT INTO capital (run_id, ts, seen, realised, seq) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare capital: %w", err)
	}
	defer capStmt.Close()

	for i, p := range res.CapitalSeries {
		realised := p.Value
		if i < len(res.RealisedSeries) {
			realised = res.RealisedSeries[i].Value
		}
		if _, err := capStmt.ExecContext(ctx, res.RunID, p.Timestamp, p.Value.String(), realised.String(), i); err != nil {
			return fmt.Errorf("storage.SaveRun: insert capital point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, strategy, timeframe, currency, from_ts, to_ts, starting_capital,
			end_capital, profit_ratio, max_seen_drawdown, max_realised_drawdown, n_trades,
			n_open_trades, sharpe_90d
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r          RunSummary
			start, end string
			sharpe     sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Strategy, &r.Timeframe, &r.Currency, &r.From, &r.To,
			&start, &end, &r.ProfitRatio, &r.MaxSeenDrawdown, &r.MaxRealisedDrawdown, &r.NTrades,
			&r.NOpenTrades, &sharpe); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan: %w", err)
		}
		if r.StartingCapital, err = decimal.NewFromString(start); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: starting capital: %w", err)
		}
		if r.EndCapital, err = decimal.NewFromString(end); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: end capital: %w", err)
		}
		if sharpe.Valid {
			v := sharpe.Float64
			r.Sharpe90d = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadTrades returns the trades of a run ordered by open time then pair.
func (s *SQLiteStore) LoadTrades(ctx context.Context, runID string) ([]StoredTrade, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.LoadTrades: %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.LoadTrades: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pair, status, opened_at, closed_at, open_price, close_price, starting_amount,
			capital, currency_amount, fee_paid, profit_ratio, sell_reason
		FROM trades WHERE run_id = ? ORDER BY opened_at, pair`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadTrades: %w", err)
	}
	defer rows.Close()

	var out []StoredTrade
	for rows.Next() {
		var (
			t                                      StoredTrade
			closedAt                               sql.NullInt64
			closePrice                             sql.NullString
			openPrice, stake, capital, amount, fee string
		)
		if err := rows.Scan(&t.Pair, &t.Status, &t.OpenedAt, &closedAt, &openPrice, &closePrice,
			&stake, &capital, &amount, &fee, &t.ProfitRatio, &t.SellReason); err != nil {
			return nil, fmt.Errorf("storage.LoadTrades: scan: %w", err)
		}
		if closedAt.Valid {
			v := closedAt.Int64
			t.ClosedAt = &v
		}
		if closePrice.Valid {
			p, err := decimal.NewFromString(closePrice.String)
			if err != nil {
				return nil, fmt.Errorf("storage.LoadTrades: close price: %w", err)
			}
			t.ClosePrice = decimal.NewNullDecimal(p)
		}
		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&t.OpenPrice, openPrice},
			{&t.StartingAmount, stake},
			{&t.Capital, capital},
			{&t.CurrencyAmount, amount},
			{&t.FeePaid, fee},
		} {
			v, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, fmt.Errorf("storage.LoadTrades: %w", err)
			}
			*f.dst = v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LoadCapital returns the seen and realised capital series of a run.
func (s *SQLiteStore) LoadCapital(ctx context.Context, runID string) (seen, realised []decimal.Decimal, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seen, realised FROM capital WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("storage.LoadCapital: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, nil, fmt.Errorf("storage.LoadCapital: scan: %w", err)
		}
		va, err := decimal.NewFromString(a)
		if err != nil {
			return nil, nil, fmt.Errorf("storage.LoadCapital: %w", err)
		}
		vb, err := decimal.NewFromString(b)
		if err != nil {
			return nil, nil, fmt.Errorf("storage.LoadCapital: %w", err)
		}
		seen = append(seen, va)
		realised = append(realised, vb)
	}
	return seen, realised, rows.Err()
}
