package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/guyghost/backtester/internal/logger"
	"github.com/shopspring/decimal"
)

// LoadCSV loads candles for a pair from a CSV file.
// Expected columns: timestamp,open,high,low,close,volume[,buy,sell[,dynamic_stoploss]]
// timestamp can be a Unix timestamp (seconds or milliseconds) or RFC3339.
func LoadCSV(filename, pair string) ([]Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, pair)
}

// ReadCSV parses candles from r in file order. Rows that cannot be parsed are
// skipped; ordering is left for NewPairFrame to check.
func ReadCSV(r io.Reader, pair string) ([]Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	candles := make([]Candle, 0)
	skipped := 0
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		// Header row
		if first {
			first = false
			if len(record) > 1 {
				if _, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64); err != nil {
					continue
				}
			}
		}

		if len(record) < 6 {
			skipped++
			continue
		}

		candle, err := parseRecord(record)
		if err != nil {
			skipped++
			continue
		}
		candles = append(candles, candle)
	}

	if skipped > 0 {
		logger.Component("market").Pair(pair).Warn("skipped unparseable candle rows", "rows", skipped)
	}

	return candles, nil
}

// LoadDir loads one BASE_QUOTE.csv file per pair from dir.
func LoadDir(dir string, pairs []string) (map[string][]Candle, error) {
	out := make(map[string][]Candle, len(pairs))
	for _, pair := range pairs {
		candles, err := LoadCSV(filepath.Join(dir, PairFileName(pair)), pair)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", pair, err)
		}
		out[pair] = candles
	}
	return out, nil
}

func parseRecord(record []string) (Candle, error) {
	ts, err := parseTimestamp(strings.TrimSpace(record[0]))
	if err != nil {
		return Candle{}, err
	}

	fields := make([]decimal.Decimal, 5)
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := range fields {
		v, err := decimal.NewFromString(strings.TrimSpace(record[i+1]))
		if err != nil {
			return Candle{}, fmt.Errorf("invalid %s: %w", names[i], err)
		}
		if v.IsNegative() {
			return Candle{}, fmt.Errorf("negative %s", names[i])
		}
		fields[i] = v
	}

	c := Candle{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}

	if len(record) > 6 {
		c.Buy = parseFlag(record[6])
	}
	if len(record) > 7 {
		c.Sell = parseFlag(record[7])
	}
	if len(record) > 8 {
		if s := strings.TrimSpace(record[8]); s != "" {
			v, err := decimal.NewFromString(s)
			if err != nil {
				return Candle{}, fmt.Errorf("invalid dynamic_stoploss: %w", err)
			}
			c.DynamicStoploss = decimal.NewNullDecimal(v)
		}
	}

	return c, nil
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// parseTimestamp returns unix milliseconds.
func parseTimestamp(s string) (int64, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts > 10000000000 {
			return ts, nil
		}
		return ts * 1000, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}

	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UnixMilli(), nil
		}
	}

	return 0, fmt.Errorf("unable to parse timestamp: %s", s)
}

// GenerateSample produces n deterministic candles oscillating around
// basePrice, starting at start and spaced by tf.
func GenerateSample(start time.Time, tf Timeframe, n int, basePrice float64) []Candle {
	candles := make([]Candle, 0, n)
	ts := start.UnixMilli()
	price := basePrice

	for i := 0; i < n; i++ {
		wave := math.Sin(float64(i)/12) * 0.004
		drift := (float64(i%10) - 4.5) * 0.0004
		open := price
		closePrice := price * (1 + wave + drift)

		high := math.Max(open, closePrice) * 1.002
		low := math.Min(open, closePrice) * 0.998

		candles = append(candles, Candle{
			Timestamp: ts,
			Open:      decimal.NewFromFloat(open).Round(8),
			High:      decimal.NewFromFloat(high).Round(8),
			Low:       decimal.NewFromFloat(low).Round(8),
			Close:     decimal.NewFromFloat(closePrice).Round(8),
			Volume:    decimal.NewFromFloat(1000 + float64(i%500)),
		})

		ts += tf.Milliseconds()
		price = closePrice
	}

	return candles
}
