package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNonMonotoneTimestamp is returned when a frame's candles go back in time.
var ErrNonMonotoneTimestamp = errors.New("non-monotone candle timestamp")

// Candle represents one OHLCV row together with the signals a strategy
// attached to it.
type Candle struct {
	Timestamp int64 // unix milliseconds, candle open time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal

	Buy  bool
	Sell bool

	// DynamicStoploss is the absolute stop price for this candle when the
	// strategy uses a dynamic stoploss.
	DynamicStoploss decimal.NullDecimal
}

// Time returns the candle open time in UTC.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// IssueKind classifies a data inconsistency found in a frame.
type IssueKind string

const (
	IssueDuplicate IssueKind = "duplicate_candle"
	IssueUnaligned IssueKind = "unaligned_timestamp"
	IssueGap       IssueKind = "missing_candles"
)

// DataIssue describes a non-fatal inconsistency in a pair's candles.
type DataIssue struct {
	Pair      string
	Kind      IssueKind
	Timestamp int64
	Detail    string
}

func (d DataIssue) String() string {
	return fmt.Sprintf("%s %s at %d: %s", d.Pair, d.Kind, d.Timestamp, d.Detail)
}

// PairFrame is the ordered candle stream of a single pair.
type PairFrame struct {
	Pair      string
	Timeframe Timeframe

	candles []Candle
	index   map[int64]int
	issues  []DataIssue
}

// NewPairFrame validates and indexes candles for a pair. Candles must be in
// ascending order. Duplicates and candles off the timeframe grid are dropped
// and reported as issues; a timestamp lower than its predecessor is fatal.
func NewPairFrame(pair string, candles []Candle, tf Timeframe) (*PairFrame, error) {
	f := &PairFrame{
		Pair:      pair,
		Timeframe: tf,
		candles:   make([]Candle, 0, len(candles)),
		index:     make(map[int64]int, len(candles)),
	}

	step := tf.Milliseconds()
	for _, c := range candles {
		if len(f.candles) == 0 {
			f.append(c)
			continue
		}

		first := f.candles[0].Timestamp
		prev := f.candles[len(f.candles)-1].Timestamp

		switch {
		case c.Timestamp < prev:
			return nil, fmt.Errorf("%s: candle %d after %d: %w", pair, c.Timestamp, prev, ErrNonMonotoneTimestamp)
		case c.Timestamp == prev:
			f.issues = append(f.issues, DataIssue{Pair: pair, Kind: IssueDuplicate, Timestamp: c.Timestamp, Detail: "duplicate dropped"})
			continue
		case step > 0 && (c.Timestamp-first)%step != 0:
			f.issues = append(f.issues, DataIssue{Pair: pair, Kind: IssueUnaligned, Timestamp: c.Timestamp, Detail: "off " + tf.String() + " grid, dropped"})
			continue
		}

		if step > 0 && c.Timestamp-prev > step {
			missing := (c.Timestamp-prev)/step - 1
			f.issues = append(f.issues, DataIssue{
				Pair:      pair,
				Kind:      IssueGap,
				Timestamp: prev + step,
				Detail:    fmt.Sprintf("%d candles missing before %d", missing, c.Timestamp),
			})
		}
		f.append(c)
	}

	return f, nil
}

func (f *PairFrame) append(c Candle) {
	f.index[c.Timestamp] = len(f.candles)
	f.candles = append(f.candles, c)
}

// At returns the candle opened at ts.
func (f *PairFrame) At(ts int64) (Candle, bool) {
	i, ok := f.index[ts]
	if !ok {
		return Candle{}, false
	}
	return f.candles[i], true
}

// Before returns the last candle strictly before ts.
func (f *PairFrame) Before(ts int64) (Candle, bool) {
	var (
		found Candle
		ok    bool
	)
	for _, c := range f.candles {
		if c.Timestamp >= ts {
			break
		}
		found, ok = c, true
	}
	return found, ok
}

// Covers reports whether ts lies between the first and last valid candle.
func (f *PairFrame) Covers(ts int64) bool {
	if len(f.candles) == 0 {
		return false
	}
	return ts >= f.FirstTimestamp() && ts <= f.LastTimestamp()
}

// FirstTimestamp returns the open time of the first valid candle.
func (f *PairFrame) FirstTimestamp() int64 {
	if len(f.candles) == 0 {
		return 0
	}
	return f.candles[0].Timestamp
}

// LastTimestamp returns the open time of the last valid candle.
func (f *PairFrame) LastTimestamp() int64 {
	if len(f.candles) == 0 {
		return 0
	}
	return f.candles[len(f.candles)-1].Timestamp
}

// Len returns the number of valid candles.
func (f *PairFrame) Len() int {
	return len(f.candles)
}

// Candles returns a copy of the frame's candles.
func (f *PairFrame) Candles() []Candle {
	dst := make([]Candle, len(f.candles))
	copy(dst, f.candles)
	return dst
}

// Between returns the candles with from <= ts < to. A zero bound is open.
func (f *PairFrame) Between(from, to int64) []Candle {
	var out []Candle
	for _, c := range f.candles {
		if from != 0 && c.Timestamp < from {
			continue
		}
		if to != 0 && c.Timestamp >= to {
			break
		}
		out = append(out, c)
	}
	return out
}

// Issues returns the data inconsistencies found while building the frame.
func (f *PairFrame) Issues() []DataIssue {
	return f.issues
}
